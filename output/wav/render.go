// SPDX-License-Identifier: EPL-2.0

// Package wav renders a soft device offline into a 16-bit PCM WAV file.
package wav

import (
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ik5/audstream/output"
	"github.com/ik5/audstream/utils"
)

const (
	bitDepth  = 16
	pcmFormat = 1
)

// ErrDuration is returned for a non-positive render length.
var ErrDuration = errors.New("wav: duration must be positive")

// ChunkFrames is how many frames Render mixes between two ticks.
const ChunkFrames = 1024

// Render mixes d of audio from m into w. tick, if not nil, runs before every
// chunk; pass the Streamer's Update to keep streams fed while rendering
// faster than real time. It returns the number of frames written.
func Render(m output.Mixer, w io.WriteSeeker, d time.Duration, tick func()) (int, error) {
	if d <= 0 {
		return 0, ErrDuration
	}

	rate, channels := m.SampleRate(), m.Channels()
	total := int(d.Seconds() * float64(rate))

	enc := gowav.NewEncoder(w, rate, bitDepth, channels, pcmFormat)

	mix := make([]float32, ChunkFrames*channels)
	pcm := make([]int16, len(mix))
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: rate},
		Data:           make([]int, len(mix)),
		SourceBitDepth: bitDepth,
	}

	written := 0
	for written < total {
		if tick != nil {
			tick()
		}

		frames := min(ChunkFrames, total-written)
		n := frames * channels

		m.Mix(mix[:n])
		utils.CastBuffer(mix, pcm, n)
		for i, v := range pcm[:n] {
			buf.Data[i] = int(v)
		}
		buf.Data = buf.Data[:n]

		if err := enc.Write(buf); err != nil {
			return written, fmt.Errorf("wav: write: %w", err)
		}
		buf.Data = buf.Data[:cap(buf.Data)]
		written += frames
	}

	if err := enc.Close(); err != nil {
		return written, fmt.Errorf("wav: close: %w", err)
	}

	return written, nil
}
