// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/device"
)

// token completes once per play cycle.
type token struct {
	ch   chan struct{}
	once sync.Once
}

func newToken() *token { return &token{ch: make(chan struct{})} }

func (t *token) fire() bool {
	fired := false
	t.once.Do(func() {
		close(t.ch)
		fired = true
	})
	return fired
}

func (t *token) fired() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

type StreamOption func(*Stream)

// WithBufferCount sets the ring size. Values below 1 are rejected by
// NewStream.
func WithBufferCount(n int) StreamOption {
	return func(s *Stream) { s.bufferCount = n }
}

func WithLooping(loop bool) StreamOption {
	return func(s *Stream) { s.looping.Store(loop) }
}

// WithName labels the stream in logs.
func WithName(name string) StreamOption {
	return func(s *Stream) { s.name = name }
}

var streamSeq atomic.Uint64

// Stream plays one decoded source through one device source and a ring of
// device buffers. The first buffer is filled synchronously by Prepare; the
// Streamer fills the rest while the stream is registered.
//
// Locks are taken in the order prepareMu, stopMu, then the Streamer's own
// locks.
type Stream struct {
	streamer *Streamer
	name     string
	log      zerolog.Logger

	r   io.ReadSeekCloser
	dec audio.Decoder
	pcm audio.Source // open decoder; guarded by the streamer's decode lock

	src         *device.Source
	ring        *device.BufferRing
	bufferCount int
	pending     []device.BufferID // queued on the device, head first

	prepareMu sync.Mutex
	stopMu    sync.Mutex
	done      *token // guarded by stopMu

	ready     atomic.Bool
	preparing atomic.Bool
	looping   atomic.Bool
	disposed  atomic.Bool
}

// NewStream takes ownership of r. The device source and buffer ring are
// allocated now; nothing is decoded until Prepare or Play.
func NewStream(streamer *Streamer, r io.ReadSeekCloser, dec audio.Decoder, opts ...StreamOption) (*Stream, error) {
	if streamer.closed.Load() {
		return nil, ErrClosed
	}

	s := &Stream{
		streamer:    streamer,
		r:           r,
		dec:         dec,
		bufferCount: DefaultBufferCount,
		done:        newToken(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.bufferCount < 1 {
		return nil, fmt.Errorf("%w: %d", ErrBufferCount, s.bufferCount)
	}
	if s.name == "" {
		s.name = "stream-" + strconv.FormatUint(streamSeq.Add(1), 10)
	}
	s.log = streamer.log.With().Str("stream", s.name).Logger()

	src, err := device.NewSource(streamer.dev, streamer.chk)
	if err != nil {
		return nil, err
	}

	ring, err := device.NewBufferRing(streamer.dev, s.bufferCount, streamer.chk)
	if err != nil {
		return nil, errors.Join(err, src.Release())
	}

	s.src = src
	s.ring = ring

	return s, nil
}

// OpenFile opens path and picks its decoder from the file extension.
func OpenFile(streamer *Streamer, reg *audio.Registry, path string, opts ...StreamOption) (*Stream, error) {
	dec, err := reg.ForPath(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	opts = append([]StreamOption{WithName(filepath.Base(path))}, opts...)

	s, err := NewStream(streamer, f, dec, opts...)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}

	return s, nil
}

func (s *Stream) Name() string       { return s.name }
func (s *Stream) BufferCount() int   { return s.bufferCount }
func (s *Stream) Ready() bool        { return s.ready.Load() }
func (s *Stream) Looping() bool      { return s.looping.Load() }
func (s *Stream) SetLooping(on bool) { s.looping.Store(on) }
func (s *Stream) Disposed() bool     { return s.disposed.Load() }

// SourceID exposes the device source, mostly for tests and diagnostics.
func (s *Stream) SourceID() device.SourceID { return s.src.ID() }

// Buffers returns the ring's buffer ids in ring order.
func (s *Stream) Buffers() []device.BufferID { return slices.Clone(s.ring.IDs()) }

func (s *Stream) State() (device.State, error) { return s.src.State() }

func (s *Stream) Volume() float32 { return s.src.Gain() }
func (s *Stream) Pitch() float32  { return s.src.Pitch() }

func (s *Stream) SetVolume(v float32) error {
	if s.disposed.Load() {
		return ErrDisposed
	}
	return s.src.SetGain(v)
}

func (s *Stream) SetPitch(p float32) error {
	if s.disposed.Load() {
		return ErrDisposed
	}
	return s.src.SetPitch(p)
}

// Done is closed when the current play cycle finishes: the decoder ran out
// on a non-looping stream, or the stream was stopped or disposed.
func (s *Stream) Done() <-chan struct{} {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.done.ch
}

// Finished polls Done.
func (s *Stream) Finished() bool {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()
	return s.done.fired()
}

// Prepare opens the decoder, fills and queues the first buffer and registers
// the stream for refilling. A stream that is already playing or paused is
// left alone; a stopped one is rewound and its queue emptied first.
func (s *Stream) Prepare() error {
	if s.disposed.Load() {
		return ErrDisposed
	}

	s.prepareMu.Lock()
	defer s.prepareMu.Unlock()

	if s.disposed.Load() {
		return ErrDisposed
	}
	if s.preparing.Load() {
		return nil
	}

	state, err := s.src.State()
	if err != nil {
		return err
	}

	switch state {
	case device.Playing, device.Paused:
		return nil
	case device.Stopped:
		s.ready.Store(false)
		s.closeDecoder()
		if err := s.src.Empty(); err != nil {
			return err
		}
		s.pending = s.pending[:0]
	}

	if s.ready.Load() {
		return nil
	}

	s.preparing.Store(true)
	if err := s.open(); err != nil {
		s.preparing.Store(false)
		return err
	}

	if err := s.prime(); err != nil {
		s.closeDecoder()
		s.preparing.Store(false)
		return err
	}

	s.ready.Store(true)
	s.streamer.AddStream(s)

	s.log.Debug().Msg("prepared")

	return nil
}

// Play starts a new play cycle, or resumes a paused stream.
func (s *Stream) Play() error {
	if s.disposed.Load() {
		return ErrDisposed
	}

	state, err := s.src.State()
	if err != nil {
		return err
	}

	switch state {
	case device.Playing:
		return nil
	case device.Paused:
		return s.Resume()
	}

	if err := s.Prepare(); err != nil {
		return err
	}

	s.stopMu.Lock()
	if s.done.fired() {
		s.done = newToken()
	}
	s.stopMu.Unlock()

	err = s.src.Play()
	s.preparing.Store(false)
	s.streamer.AddStream(s)

	return err
}

// Pause only acts on a playing stream. The stream stops taking refill
// cycles until it resumes.
func (s *Stream) Pause() error {
	if s.disposed.Load() {
		return ErrDisposed
	}

	state, err := s.src.State()
	if err != nil || state != device.Playing {
		return err
	}

	s.streamer.RemoveStream(s)

	return s.src.Pause()
}

// Resume only acts on a paused stream.
func (s *Stream) Resume() error {
	if s.disposed.Load() {
		return ErrDisposed
	}

	state, err := s.src.State()
	if err != nil || state != device.Paused {
		return err
	}

	s.streamer.AddStream(s)

	return s.src.Play()
}

// Stop halts playback if it is active. Whatever the state, the current play
// cycle completes and the stream leaves the Streamer, so stopping a stream
// that never played is not an error.
func (s *Stream) Stop() error {
	if s.disposed.Load() {
		return ErrDisposed
	}

	return s.stop()
}

func (s *Stream) stop() error {
	var err error
	if state, _ := s.src.State(); state == device.Playing || state == device.Paused {
		err = s.src.Stop()
	}

	s.finish()

	return err
}

// finish completes the play cycle and unregisters, in that order.
func (s *Stream) finish() {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	s.done.fire()
	s.streamer.RemoveStream(s)
}

// Dispose stops the stream and releases everything it owns. Only the first
// call does anything; every release step runs and the first error is
// returned.
func (s *Stream) Dispose() error {
	if !s.disposed.CompareAndSwap(false, true) {
		return nil
	}

	var first error
	keep := func(err error) {
		if first == nil && err != nil {
			first = err
		}
	}

	state, err := s.src.State()
	keep(err)
	keep(s.stop())

	// wait out an in-flight refill
	s.prepareMu.Lock()
	defer s.prepareMu.Unlock()

	if state != device.Initial {
		keep(s.src.Empty())
	}
	s.pending = nil

	s.ready.Store(false)
	s.closeDecoder()

	if err := s.r.Close(); err != nil {
		keep(fmt.Errorf("close: %w", err))
	}

	keep(s.src.Release())
	keep(s.ring.Release())

	s.log.Debug().Msg("disposed")

	return first
}

// open seeks the byte source back to the start and builds a decoder over it.
func (s *Stream) open() error {
	if _, err := s.r.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	pcm, err := s.dec.Decode(s.r)
	if err != nil {
		return fmt.Errorf("open decoder: %w", err)
	}

	s.streamer.decodeMu.Lock()
	old := s.pcm
	s.pcm = pcm
	s.streamer.decodeMu.Unlock()

	if old != nil {
		if err := old.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close decoder")
		}
	}

	return nil
}

func (s *Stream) decoder() audio.Source { return s.pcm }

func (s *Stream) closeDecoder() {
	s.streamer.decodeMu.Lock()
	defer s.streamer.decodeMu.Unlock()

	if s.pcm == nil {
		return
	}
	if err := s.pcm.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close decoder")
	}
	s.pcm = nil
}

// rewind restarts decoding at time zero, reopening the decoder when it
// cannot seek by itself.
func (s *Stream) rewind() error {
	s.streamer.decodeMu.Lock()
	if rw, ok := s.pcm.(audio.Rewinder); ok {
		err := rw.Rewind()
		s.streamer.decodeMu.Unlock()
		return err
	}
	s.streamer.decodeMu.Unlock()

	s.closeDecoder()

	return s.open()
}

// prime fills and queues the first buffer. A device failure the policy does
// not raise leaves the ring to the refill cycle.
func (s *Stream) prime() error {
	first := s.ring.IDs()[0]

	_, _, err := s.streamer.fill(s, first)
	if err == nil {
		err = s.queue(first)
	}

	return s.streamer.raised(err)
}

// queue hands ids to the device. Only buffers the device accepted count as
// pending, so a refused buffer is offered again by free.
func (s *Stream) queue(ids ...device.BufferID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.src.QueueReported(ids...); err != nil {
		return fmt.Errorf("%w: %w", ErrQueue, err)
	}
	s.pending = append(s.pending, ids...)
	return nil
}

func (s *Stream) unqueueProcessed() ([]device.BufferID, error) {
	ids, err := s.src.UnqueueProcessed()
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		if i := slices.Index(s.pending, id); i >= 0 {
			s.pending = slices.Delete(s.pending, i, i+1)
		}
	}

	return ids, nil
}

// free lists ring buffers that are not queued on the device, in ring order.
func (s *Stream) free() []device.BufferID {
	var ids []device.BufferID
	for _, id := range s.ring.IDs() {
		if !slices.Contains(s.pending, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// restartIfStalled replays a source the device stopped on underrun while the
// stream still has buffers queued.
func (s *Stream) restartIfStalled(log zerolog.Logger) {
	s.stopMu.Lock()
	defer s.stopMu.Unlock()

	if s.preparing.Load() || len(s.pending) == 0 || !s.streamer.Contains(s) {
		return
	}

	state, err := s.src.State()
	if err != nil || state != device.Stopped {
		return
	}

	log.Debug().Msg("restarting stalled source")
	if err := s.src.Play(); err != nil {
		log.Warn().Err(err).Msg("restart")
	}
}
