// SPDX-License-Identifier: EPL-2.0

package bgm

import (
	"errors"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/device"
	"github.com/ik5/audstream/stream"
)

// Song is a piece of music backed by one stream. The stream is prepared when
// the song is created, so the first Play starts without a decode stall.
type Song struct {
	s *stream.Stream
}

// NewSong takes ownership of s and prepares it.
func NewSong(s *stream.Stream) (*Song, error) {
	if err := s.Prepare(); err != nil {
		return nil, errors.Join(err, s.Dispose())
	}

	return &Song{s: s}, nil
}

// OpenSong opens path on st with the decoder the registry picks for it.
func OpenSong(st *stream.Streamer, reg *audio.Registry, path string, opts ...stream.StreamOption) (*Song, error) {
	s, err := stream.OpenFile(st, reg, path, opts...)
	if err != nil {
		return nil, err
	}

	return NewSong(s)
}

func (s *Song) Stream() *stream.Stream { return s.s }
func (s *Song) Name() string           { return s.s.Name() }
func (s *Song) Prepared() bool         { return s.s.Ready() }

// FinishedPlaying reports whether the current play cycle of a song that does
// not loop has ended and the device has played out what was queued.
func (s *Song) FinishedPlaying() bool {
	if !s.s.Finished() || s.s.Looping() {
		return false
	}

	state, err := s.s.State()
	return err != nil || state != device.Playing
}

func (s *Song) Play() error  { return s.s.Play() }
func (s *Song) Pause() error { return s.s.Pause() }
func (s *Song) Stop() error  { return s.s.Stop() }

func (s *Song) Dispose() error {
	if s.s.Disposed() {
		return nil
	}
	return errors.Join(s.s.Stop(), s.s.Dispose())
}

func (s *Song) Volume() float32           { return s.s.Volume() }
func (s *Song) SetVolume(v float32) error { return s.s.SetVolume(v) }
func (s *Song) Pitch() float32            { return s.s.Pitch() }
func (s *Song) SetPitch(p float32) error  { return s.s.SetPitch(p) }
func (s *Song) Looping() bool             { return s.s.Looping() }
func (s *Song) SetLooping(on bool)        { s.s.SetLooping(on) }
