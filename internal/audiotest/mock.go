// SPDX-License-Identifier: EPL-2.0

// Package audiotest holds synthetic sources for tests. It mirrors the
// audio.Source method set without importing audio, so audio's own tests can
// use it.
package audiotest

import (
	"bytes"
	"errors"
	"io"
	"math"
	"sync"
)

// Waveform returns the sample for frame and channel.
type Waveform func(frame int, channel int) float32

// MockSource generates totalFrames frames of a waveform and can be rewound.
type MockSource struct {
	mu sync.Mutex

	sampleRate  int
	channels    int
	totalFrames int
	position    int
	waveform    Waveform

	rewinds int
	closed  bool
	readErr error
}

func NewMockSource(sampleRate, channels, totalFrames int, waveform Waveform) *MockSource {
	return &MockSource{
		sampleRate:  sampleRate,
		channels:    channels,
		totalFrames: totalFrames,
		waveform:    waveform,
	}
}

func NewSilentSource(sampleRate, channels, totalFrames int) *MockSource {
	return NewConstantSource(sampleRate, channels, totalFrames, 0)
}

func NewSineSource(sampleRate, channels, totalFrames int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame, _ int) float32 {
		t := float64(frame) / float64(sampleRate)
		return float32(math.Sin(2 * math.Pi * frequency * t))
	})
}

func NewConstantSource(sampleRate, channels, totalFrames int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(_, _ int) float32 {
		return value
	})
}

// NewRampSource encodes the frame index into every sample as frame/scale, so
// tests can tell from decoded PCM where in the source a buffer started.
func NewRampSource(sampleRate, channels, totalFrames int, scale float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalFrames, func(frame, _ int) float32 {
		return float32(frame) / scale
	})
}

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BufSize() int    { return 4096 }

func (m *MockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MockSource) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Position is the next frame ReadSamples will produce.
func (m *MockSource) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

// Rewind restarts the waveform at frame zero.
func (m *MockSource) Rewind() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.position = 0
	m.rewinds++
	return nil
}

func (m *MockSource) Rewinds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewinds
}

// FailWith makes every following read return err.
func (m *MockSource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readErr = err
}

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.readErr != nil {
		return 0, m.readErr
	}
	if m.position >= m.totalFrames {
		return 0, io.EOF
	}

	frames := min(len(dst)/m.channels, m.totalFrames-m.position)
	for f := range frames {
		for ch := range m.channels {
			dst[f*m.channels+ch] = m.waveform(m.position+f, ch)
		}
	}
	m.position += frames

	if m.position >= m.totalFrames {
		return frames * m.channels, io.EOF
	}

	return frames * m.channels, nil
}

// Reader is an in-memory io.ReadSeekCloser that remembers Close.
type Reader struct {
	*bytes.Reader

	mu     sync.Mutex
	closed int
}

var ErrClosed = errors.New("audiotest: reader closed")

func NewReader(data []byte) *Reader {
	return &Reader{Reader: bytes.NewReader(data)}
}

func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed++
	if r.closed > 1 {
		return ErrClosed
	}
	return nil
}

// CloseCount reports how many times Close was called.
func (r *Reader) CloseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
