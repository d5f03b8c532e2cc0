// SPDX-License-Identifier: EPL-2.0

// Package streamtest provides decoders over synthetic sources, so streams can
// be exercised without audio files.
package streamtest

import (
	"io"
	"sync"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/internal/audiotest"
)

// Decoder hands out a fresh MockSource from New on every Decode and keeps
// them for inspection.
type Decoder struct {
	New func() *audiotest.MockSource
	// Plain hides Rewind, so streams have to reopen the decoder to loop.
	Plain bool

	mu       sync.Mutex
	produced []*audiotest.MockSource
}

var _ audio.Decoder = (*Decoder)(nil)

// Ramp decodes a mono ramp of frames frames at rate.
func Ramp(rate, frames int) *Decoder {
	return &Decoder{New: func() *audiotest.MockSource {
		return audiotest.NewRampSource(rate, 1, frames, float32(frames))
	}}
}

func (d *Decoder) Decode(io.Reader) (audio.Source, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	src := d.New()
	d.produced = append(d.produced, src)
	if d.Plain {
		return plain{src}, nil
	}
	return src, nil
}

// Opened reports how many sources were decoded.
func (d *Decoder) Opened() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.produced)
}

// Source returns the i-th decoded source.
func (d *Decoder) Source(i int) *audiotest.MockSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.produced[i]
}

// Last returns the most recently decoded source.
func (d *Decoder) Last() *audiotest.MockSource {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.produced[len(d.produced)-1]
}

type plain struct{ m *audiotest.MockSource }

func (p plain) SampleRate() int                        { return p.m.SampleRate() }
func (p plain) Channels() int                          { return p.m.Channels() }
func (p plain) BufSize() int                           { return p.m.BufSize() }
func (p plain) Close() error                           { return p.m.Close() }
func (p plain) ReadSamples(dst []float32) (int, error) { return p.m.ReadSamples(dst) }
