// SPDX-License-Identifier: EPL-2.0

// Package malgo plays a soft device through miniaudio.
package malgo

import (
	"fmt"
	"io"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"github.com/ik5/audstream/output"
)

// DefaultPeriod is the device period in milliseconds.
const DefaultPeriod = 20

type Option func(*Sink)

// WithPeriod sets the device period in milliseconds.
func WithPeriod(ms int) Option {
	return func(s *Sink) { s.period = ms }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Sink) { s.log = l }
}

// Sink fills a miniaudio playback device from the mix of a device.
type Sink struct {
	log    zerolog.Logger
	period int

	mu     sync.Mutex
	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
	src    io.Reader
	closed bool
}

// Open starts a playback device at the mixer's format.
func Open(m output.Mixer, opts ...Option) (*Sink, error) {
	s := &Sink{
		log:    zerolog.Nop(),
		period: DefaultPeriod,
		src:    m.Reader(),
	}
	for _, o := range opts {
		o(s)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		s.log.Debug().Str("backend", "malgo").Msg(message)
	})
	if err != nil {
		return nil, fmt.Errorf("malgo: init context: %w", err)
	}
	s.ctx = ctx

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = uint32(m.Channels())
	cfg.SampleRate = uint32(m.SampleRate())
	cfg.PeriodSizeInMilliseconds = uint32(s.period)
	cfg.PerformanceProfile = malgo.LowLatency

	dev, err := malgo.InitDevice(ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) { s.fill(out) },
	})
	if err != nil {
		s.freeContext()
		return nil, fmt.Errorf("malgo: init device: %w", err)
	}
	s.dev = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		s.freeContext()
		return nil, fmt.Errorf("malgo: start: %w", err)
	}

	s.log.Debug().
		Int("rate", m.SampleRate()).
		Int("channels", m.Channels()).
		Int("period_ms", s.period).
		Msg("malgo sink open")

	return s, nil
}

// fill runs on the miniaudio thread. out always holds whole frames.
func (s *Sink) fill(out []byte) {
	n, _ := s.src.Read(out)
	clear(out[n:])
}

func (s *Sink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return output.ErrClosed
	}
	return s.dev.Stop()
}

func (s *Sink) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return output.ErrClosed
	}
	return s.dev.Start()
}

// Close stops the device and frees the miniaudio context.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	s.dev.Uninit()
	return s.freeContext()
}

func (s *Sink) freeContext() error {
	err := s.ctx.Uninit()
	s.ctx.Free()
	return err
}
