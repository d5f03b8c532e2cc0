// SPDX-License-Identifier: EPL-2.0

// Package oto plays a soft device through ebitengine/oto.
//
// oto allows one context per process, so Open may be called only once.
package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/rs/zerolog"

	"github.com/ik5/audstream/output"
)

// DefaultLatency is the buffer oto keeps ahead of the speaker.
const DefaultLatency = 100 * time.Millisecond

type Option func(*Sink)

func WithLatency(d time.Duration) Option {
	return func(s *Sink) { s.latency = d }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Sink) { s.log = l }
}

// Sink pulls the mix of a device into an oto player.
type Sink struct {
	log     zerolog.Logger
	latency time.Duration

	mu     sync.Mutex
	ctx    *oto.Context
	player *oto.Player
	closed bool
}

// Open creates the oto context at the mixer's format and starts playing it.
func Open(m output.Mixer, opts ...Option) (*Sink, error) {
	s := &Sink{
		log:     zerolog.Nop(),
		latency: DefaultLatency,
	}
	for _, o := range opts {
		o(s)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   m.SampleRate(),
		ChannelCount: m.Channels(),
		Format:       oto.FormatFloat32LE,
		BufferSize:   s.latency,
	})
	if err != nil {
		return nil, fmt.Errorf("oto: new context: %w", err)
	}
	<-ready

	s.ctx = ctx
	s.player = ctx.NewPlayer(m.Reader())
	s.player.Play()

	s.log.Debug().
		Int("rate", m.SampleRate()).
		Int("channels", m.Channels()).
		Dur("latency", s.latency).
		Msg("oto sink open")

	return s, nil
}

// Suspend pauses the audio hardware. Streams keep their state.
func (s *Sink) Suspend() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return output.ErrClosed
	}
	return s.ctx.Suspend()
}

func (s *Sink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return output.ErrClosed
	}
	return s.ctx.Resume()
}

// Err reports an error the player or context hit while running.
func (s *Sink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	if err := s.player.Err(); err != nil {
		return err
	}
	return s.ctx.Err()
}

// Close stops the player. The oto context itself lives until exit.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.player.Pause()
	return s.player.Close()
}
