// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/device"
	"github.com/ik5/audstream/utils"
)

const (
	DefaultBufferSize  = 44100
	DefaultUpdateRate  = 10
	DefaultBufferCount = 3
)

// Config sizes the scheduler. BufferSize counts samples (not frames) per
// device buffer. UpdateRate is refill cycles per second; Manual or a zero
// rate leaves Update to the caller.
type Config struct {
	BufferSize int  `mapstructure:"buffer_size"`
	UpdateRate int  `mapstructure:"update_rate"`
	Manual     bool `mapstructure:"manual"`
}

func DefaultConfig() Config {
	return Config{
		BufferSize: DefaultBufferSize,
		UpdateRate: DefaultUpdateRate,
	}
}

func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("%w: %d", ErrBufferSize, c.BufferSize)
	}
	if c.UpdateRate < 0 {
		return fmt.Errorf("%w: %d", ErrUpdateRate, c.UpdateRate)
	}
	return nil
}

type Option func(*Streamer)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Streamer) { s.log = l }
}

// WithChecker sets the device error policy used by every stream created on
// the streamer.
func WithChecker(c *device.Checker) Option {
	return func(s *Streamer) { s.chk = c }
}

// Streamer keeps registered streams fed. Each refill cycle reclaims the
// buffers a source has played, decodes fresh PCM into them and queues them
// again.
type Streamer struct {
	dev        device.Device
	chk        *device.Checker
	log        zerolog.Logger
	bufferSize int
	updateRate int

	mu      sync.Mutex
	streams []*Stream

	// scratch memory shared by every decode
	decodeMu sync.Mutex
	scratch  []float32
	pcm      []int16

	closed    atomic.Bool
	quit      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewStreamer(dev device.Device, cfg Config, opts ...Option) (*Streamer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Streamer{
		dev:        dev,
		log:        zerolog.Nop(),
		bufferSize: cfg.BufferSize,
		updateRate: cfg.UpdateRate,
		scratch:    make([]float32, cfg.BufferSize),
		pcm:        make([]int16, cfg.BufferSize),
		quit:       make(chan struct{}),
	}
	if cfg.Manual {
		s.updateRate = 0
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.chk == nil {
		s.chk = device.NewChecker(device.DefaultPolicy)
	}

	if s.updateRate > 0 {
		s.wg.Add(1)
		go s.run()
	}

	return s, nil
}

func (s *Streamer) Device() device.Device    { return s.dev }
func (s *Streamer) Checker() *device.Checker { return s.chk }
func (s *Streamer) Logger() zerolog.Logger   { return s.log }
func (s *Streamer) BufferSize() int          { return s.bufferSize }
func (s *Streamer) UpdateRate() int          { return s.updateRate }

func (s *Streamer) run() {
	defer s.wg.Done()

	interval := time.Second / time.Duration(s.updateRate)
	timer := time.NewTimer(interval)
	defer timer.Stop()

	s.log.Debug().Dur("interval", interval).Msg("streamer started")

	for {
		s.Update()

		timer.Reset(interval)
		select {
		case <-s.quit:
			s.log.Debug().Msg("streamer stopped")
			return
		case <-timer.C:
		}
	}
}

// AddStream registers st for refilling. It reports whether st was added.
func (s *Streamer) AddStream(st *Stream) bool {
	if s.closed.Load() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if slices.Contains(s.streams, st) {
		return false
	}
	s.streams = append(s.streams, st)

	return true
}

// RemoveStream unregisters st. It reports whether st was registered.
func (s *Streamer) RemoveStream(st *Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.Index(s.streams, st)
	if i < 0 {
		return false
	}
	s.streams = slices.Delete(s.streams, i, i+1)

	return true
}

func (s *Streamer) Contains(st *Stream) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Contains(s.streams, st)
}

func (s *Streamer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

func (s *Streamer) snapshot() []*Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.streams)
}

// FillBuffer decodes the next BufferSize samples of st into buf. It reports
// end of stream when the decoder came back short. A failed upload wraps
// ErrUpload and is returned whatever the device error policy, since buf
// then holds stale audio.
func (s *Streamer) FillBuffer(st *Stream, buf device.BufferID) (bool, error) {
	_, eos, err := s.fill(st, buf)
	return eos, err
}

func (s *Streamer) fill(st *Stream, buf device.BufferID) (int, bool, error) {
	s.decodeMu.Lock()
	defer s.decodeMu.Unlock()

	src := st.decoder()
	if src == nil {
		return 0, true, ErrNotReady
	}

	ch := max(src.Channels(), 1)
	want := len(s.scratch) - len(s.scratch)%ch

	n, err := readFull(src, s.scratch[:want])
	if err != nil {
		return n, true, fmt.Errorf("decode: %w", err)
	}

	utils.CastBuffer(s.scratch, s.pcm, n)

	err = st.ring.UploadReported(buf, device.FormatFor(ch), s.pcm[:n], src.SampleRate())
	if err != nil {
		return n, n < want, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	return n, n < want, nil
}

// raised filters a failed upload or queue call through the device error
// policy. The Checker has logged it already.
func (s *Streamer) raised(err error) error {
	if (errors.Is(err, ErrUpload) || errors.Is(err, ErrQueue)) && !s.chk.Raises() {
		return nil
	}
	return err
}

// readFull keeps reading until dst is full or the source ends. A source
// that returns nothing without an error is taken as ended.
func readFull(src audio.Source, dst []float32) (int, error) {
	total := 0
	for total < len(dst) {
		n, err := src.ReadSamples(dst[total:])
		total += n

		if errors.Is(err, io.EOF) {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}

	return total, nil
}

// Update runs one refill cycle over every registered stream. Failures are
// logged per stream and never stop the cycle.
func (s *Streamer) Update() {
	if s.closed.Load() {
		return
	}

	for _, st := range s.snapshot() {
		s.refill(st)
	}
}

func (s *Streamer) refill(st *Stream) {
	log := s.log.With().Str("stream", st.name).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("refill panicked")
		}
	}()

	st.prepareMu.Lock()
	defer st.prepareMu.Unlock()

	if st.disposed.Load() || !s.Contains(st) {
		return
	}

	queued, err := st.src.Queued()
	if err != nil {
		log.Warn().Err(err).Msg("queued buffers")
		return
	}
	processed, err := st.src.Processed()
	if err != nil {
		log.Warn().Err(err).Msg("processed buffers")
		return
	}
	if processed == 0 && queued >= st.ring.Len() {
		return
	}

	var candidates []device.BufferID
	if processed > 0 {
		candidates, err = st.unqueueProcessed()
		if err != nil {
			log.Warn().Err(err).Msg("unqueue processed")
			return
		}
	} else {
		candidates = st.free()
	}

	filled := make([]device.BufferID, 0, len(candidates))
	for _, id := range candidates {
		n, eos, err := s.fill(st, id)
		if err != nil {
			// the buffer holds stale audio and stays off the device
			if err := s.raised(err); err != nil {
				log.Warn().Err(err).Uint32("buffer", uint32(id)).Msg("fill buffer")
			}
			break
		}

		if eos && st.Looping() {
			if err := st.rewind(); err != nil {
				log.Warn().Err(err).Msg("rewind")
				if n > 0 {
					filled = append(filled, id)
				}
				break
			}

			if n == 0 {
				// the end fell on a buffer boundary; reuse the buffer for the restart
				n, _, err = s.fill(st, id)
				if err != nil {
					if err := s.raised(err); err != nil {
						log.Warn().Err(err).Uint32("buffer", uint32(id)).Msg("fill buffer")
					}
					break
				}
				if n == 0 {
					break
				}
			}
			filled = append(filled, id)
			log.Debug().Msg("looped")
			continue
		}

		if n > 0 {
			filled = append(filled, id)
		}
		if eos {
			log.Debug().Msg("end of stream")
			st.finish()
			break
		}
	}

	if err := s.raised(st.queue(filled...)); err != nil {
		log.Warn().Err(err).Msg("queue buffers")
	}

	st.restartIfStalled(log)
}

// Close stops the background worker and drops every registration. Streams
// stay usable but are no longer refilled.
func (s *Streamer) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)

		s.mu.Lock()
		s.streams = nil
		s.mu.Unlock()

		close(s.quit)
		s.wg.Wait()
	})

	return nil
}
