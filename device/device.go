// SPDX-License-Identifier: EPL-2.0

package device

// BufferID names a device sample buffer.
type BufferID uint32

// SourceID names a device playback source.
type SourceID uint32

// State is the playback state of a source.
type State int

const (
	Initial State = iota
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Format is the sample layout of a buffer upload.
type Format int

const (
	Mono16 Format = iota + 1
	Stereo16
)

// Channels returns the channel count of the format, 0 when unknown.
func (f Format) Channels() int {
	switch f {
	case Mono16:
		return 1
	case Stereo16:
		return 2
	default:
		return 0
	}
}

func (f Format) String() string {
	switch f {
	case Mono16:
		return "mono16"
	case Stereo16:
		return "stereo16"
	default:
		return "unknown"
	}
}

// FormatFor picks the 16-bit format for a decoded channel count.
func FormatFor(channels int) Format {
	if channels == 1 {
		return Mono16
	}
	return Stereo16
}

// Device is the native audio API the engine drives. Buffers hold uploaded
// PCM; sources play a FIFO queue of buffers. A queued buffer becomes
// "processed" once the source has played past it, and only processed buffers
// may be unqueued from a playing or paused source.
//
// Implementations must be safe for concurrent use.
type Device interface {
	GenBuffers(n int) ([]BufferID, error)
	DeleteBuffers(ids []BufferID) error
	BufferData(id BufferID, format Format, data []int16, sampleRate int) error

	GenSource() (SourceID, error)
	DeleteSource(id SourceID) error

	Play(id SourceID) error
	Pause(id SourceID) error
	Stop(id SourceID) error
	State(id SourceID) (State, error)

	QueueBuffers(id SourceID, buffers ...BufferID) error
	// UnqueueBuffers removes n buffers from the head of the queue.
	UnqueueBuffers(id SourceID, n int) ([]BufferID, error)
	QueuedBuffers(id SourceID) (int, error)
	ProcessedBuffers(id SourceID) (int, error)

	SetGain(id SourceID, gain float32) error
	SetPitch(id SourceID, pitch float32) error
}
