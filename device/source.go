// SPDX-License-Identifier: EPL-2.0

package device

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Source is an owned playback source. Every call goes through the Checker,
// and Release deletes the device source exactly once.
type Source struct {
	dev Device
	chk *Checker
	id  SourceID

	mu    sync.Mutex // guards gain, pitch
	gain  float32
	pitch float32

	released atomic.Bool
}

func NewSource(dev Device, chk *Checker) (*Source, error) {
	if chk == nil {
		chk = NewChecker(DefaultPolicy)
	}

	id, err := dev.GenSource()
	if err != nil {
		return nil, fmt.Errorf("gen source: %w", err)
	}

	return &Source{
		dev:   dev,
		chk:   chk,
		id:    id,
		gain:  1,
		pitch: 1,
	}, nil
}

func (s *Source) ID() SourceID      { return s.id }
func (s *Source) Released() bool    { return s.released.Load() }
func (s *Source) Checker() *Checker { return s.chk }

func (s *Source) call(op string, fn func() error) error {
	if s.released.Load() {
		return s.chk.Check(op, ErrReleased)
	}
	return s.chk.Check(op, fn())
}

func (s *Source) Play() error {
	return s.call("play", func() error { return s.dev.Play(s.id) })
}

func (s *Source) Pause() error {
	return s.call("pause", func() error { return s.dev.Pause(s.id) })
}

func (s *Source) Stop() error {
	return s.call("stop", func() error { return s.dev.Stop(s.id) })
}

// State reports the device state. A released source reads as Stopped.
func (s *Source) State() (State, error) {
	if s.released.Load() {
		return Stopped, nil
	}

	st, err := s.dev.State(s.id)
	if err != nil {
		return Stopped, s.chk.Check("state", err)
	}

	return st, nil
}

func (s *Source) Queue(ids ...BufferID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.call("queue buffers", func() error { return s.dev.QueueBuffers(s.id, ids...) })
}

// QueueReported queues ids like Queue but always returns a failed device
// call, after the Checker has logged it.
func (s *Source) QueueReported(ids ...BufferID) error {
	if len(ids) == 0 {
		return nil
	}
	if s.released.Load() {
		return s.chk.Report("queue buffers", ErrReleased)
	}
	return s.chk.Report("queue buffers", s.dev.QueueBuffers(s.id, ids...))
}

func (s *Source) Queued() (int, error) {
	var n int
	err := s.call("queued buffers", func() (err error) {
		n, err = s.dev.QueuedBuffers(s.id)
		return err
	})
	return n, err
}

func (s *Source) Processed() (int, error) {
	var n int
	err := s.call("processed buffers", func() (err error) {
		n, err = s.dev.ProcessedBuffers(s.id)
		return err
	})
	return n, err
}

// UnqueueProcessed removes every buffer the source has finished playing.
func (s *Source) UnqueueProcessed() ([]BufferID, error) {
	n, err := s.Processed()
	if err != nil || n == 0 {
		return nil, err
	}

	var ids []BufferID
	err = s.call("unqueue processed", func() (err error) {
		ids, err = s.dev.UnqueueBuffers(s.id, n)
		return err
	})
	return ids, err
}

// UnqueueAll removes the whole queue. Devices refuse this while buffers are
// still pending on a playing source; see Empty.
func (s *Source) UnqueueAll() ([]BufferID, error) {
	n, err := s.Queued()
	if err != nil || n == 0 {
		return nil, err
	}

	var ids []BufferID
	err = s.call("unqueue all", func() (err error) {
		ids, err = s.dev.UnqueueBuffers(s.id, n)
		return err
	})
	return ids, err
}

// Empty unqueues every buffer. Some drivers fail to unqueue a count that
// includes pending buffers; that failure is absorbed by unqueueing what is
// processed, forcing a stop and trying once more.
func (s *Source) Empty() error {
	if s.released.Load() {
		return s.chk.Check("empty", ErrReleased)
	}

	return s.empty(true)
}

func (s *Source) empty(retry bool) error {
	queued, err := s.dev.QueuedBuffers(s.id)
	if err != nil {
		return s.chk.Check("queued buffers", err)
	}
	if queued <= 0 {
		return nil
	}

	_, err = s.dev.UnqueueBuffers(s.id, queued)
	if err == nil {
		return nil
	}
	if !retry {
		return s.chk.Check("unqueue all", err)
	}

	if processed, perr := s.dev.ProcessedBuffers(s.id); perr == nil && processed > 0 {
		_, _ = s.dev.UnqueueBuffers(s.id, processed)
	}

	if err := s.dev.Stop(s.id); err != nil {
		return s.chk.Check("stop", err)
	}

	return s.empty(false)
}

func (s *Source) Gain() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

func (s *Source) SetGain(g float32) error {
	if g < 0 {
		return s.chk.Check("set gain", ErrInvalidValue)
	}

	s.mu.Lock()
	s.gain = g
	s.mu.Unlock()

	return s.call("set gain", func() error { return s.dev.SetGain(s.id, g) })
}

func (s *Source) Pitch() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pitch
}

func (s *Source) SetPitch(p float32) error {
	if p <= 0 {
		return s.chk.Check("set pitch", ErrInvalidValue)
	}

	s.mu.Lock()
	s.pitch = p
	s.mu.Unlock()

	return s.call("set pitch", func() error { return s.dev.SetPitch(s.id, p) })
}

// Release stops the source if needed and deletes it. Only the first call
// does anything.
func (s *Source) Release() error {
	if !s.released.CompareAndSwap(false, true) {
		return nil
	}

	if st, err := s.dev.State(s.id); err == nil && st != Stopped && st != Initial {
		if err := s.dev.Stop(s.id); err != nil {
			_ = s.chk.Check("stop", err)
		}
	}

	return s.chk.Check("delete source", s.dev.DeleteSource(s.id))
}
