// SPDX-License-Identifier: EPL-2.0

package soft

import (
	"fmt"
	"io"
	"sync"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/device"
)

// Config describes the mixed output.
type Config struct {
	SampleRate int
	Channels   int
}

func DefaultConfig() Config {
	return Config{SampleRate: 44100, Channels: 2}
}

type buffer struct {
	format device.Format
	rate   int
	data   []int16
	refs   int // queue slots across all sources
}

func (b *buffer) frames() int {
	ch := b.format.Channels()
	if ch == 0 {
		return 0
	}
	return len(b.data) / ch
}

type voice struct {
	state     device.State
	queue     []device.BufferID
	processed int
	cursor    int // frame offset into queue[processed]

	gain  float32
	pitch float32

	resampler *audio.Resampler
	pipe      audio.Source
	tmp       []float32
}

// Device is a software implementation of device.Device. It keeps OpenAL's
// queue rules and mixes every playing source into one output stream that an
// output sink pulls with Mix or Reader.
type Device struct {
	mu sync.Mutex

	rate     int
	channels int

	nextBuffer device.BufferID
	nextSource device.SourceID
	buffers    map[device.BufferID]*buffer
	sources    map[device.SourceID]*voice
}

var _ device.Device = (*Device)(nil)

func New(cfg Config) (*Device, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate %d: %w", cfg.SampleRate, device.ErrInvalidValue)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("%d output channels: %w", cfg.Channels, device.ErrInvalidValue)
	}

	return &Device{
		rate:     cfg.SampleRate,
		channels: cfg.Channels,
		buffers:  make(map[device.BufferID]*buffer),
		sources:  make(map[device.SourceID]*voice),
	}, nil
}

func (d *Device) SampleRate() int { return d.rate }
func (d *Device) Channels() int   { return d.channels }

func (d *Device) GenBuffers(n int) ([]device.BufferID, error) {
	if n <= 0 {
		return nil, device.ErrInvalidValue
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ids := make([]device.BufferID, n)
	for i := range ids {
		d.nextBuffer++
		ids[i] = d.nextBuffer
		d.buffers[d.nextBuffer] = &buffer{}
	}

	return ids, nil
}

func (d *Device) DeleteBuffers(ids []device.BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, id := range ids {
		b, ok := d.buffers[id]
		if !ok {
			return device.ErrInvalidName
		}
		if b.refs > 0 {
			return device.ErrInvalidOperation
		}
	}

	for _, id := range ids {
		delete(d.buffers, id)
	}

	return nil
}

func (d *Device) BufferData(id device.BufferID, format device.Format, data []int16, sampleRate int) error {
	ch := format.Channels()
	if ch == 0 || sampleRate <= 0 || len(data)%ch != 0 {
		return device.ErrInvalidValue
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	b, ok := d.buffers[id]
	if !ok {
		return device.ErrInvalidName
	}
	if b.refs > 0 {
		return device.ErrInvalidOperation
	}

	b.format = format
	b.rate = sampleRate
	b.data = append(b.data[:0], data...)

	return nil
}

func (d *Device) GenSource() (device.SourceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextSource++
	d.sources[d.nextSource] = &voice{state: device.Initial, gain: 1, pitch: 1}

	return d.nextSource, nil
}

func (d *Device) DeleteSource(id device.SourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.sources[id]
	if !ok {
		return device.ErrInvalidName
	}

	d.release(v.queue)
	delete(d.sources, id)

	return nil
}

func (d *Device) voice(id device.SourceID) (*voice, error) {
	v, ok := d.sources[id]
	if !ok {
		return nil, device.ErrInvalidName
	}
	return v, nil
}

func (d *Device) release(ids []device.BufferID) {
	for _, id := range ids {
		if b, ok := d.buffers[id]; ok && b.refs > 0 {
			b.refs--
		}
	}
}

// Play starts from the head of the queue unless the source was paused.
// Playing an already playing source is a no-op.
func (d *Device) Play(id device.SourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return err
	}

	switch v.state {
	case device.Playing:
		return nil
	case device.Paused:
		v.state = device.Playing
		return nil
	}

	v.processed = 0
	v.cursor = 0
	v.pipe = nil
	v.resampler = nil

	if len(v.queue) == 0 {
		v.state = device.Stopped
		return nil
	}
	v.state = device.Playing

	return nil
}

func (d *Device) Pause(id device.SourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return err
	}

	if v.state == device.Playing {
		v.state = device.Paused
	}

	return nil
}

// Stop marks every queued buffer processed.
func (d *Device) Stop(id device.SourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return err
	}

	v.halt()

	return nil
}

func (v *voice) halt() {
	v.state = device.Stopped
	v.processed = len(v.queue)
	v.cursor = 0
	v.pipe = nil
	v.resampler = nil
}

func (d *Device) State(id device.SourceID) (device.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return device.Initial, err
	}

	return v.state, nil
}

func (d *Device) QueueBuffers(id device.SourceID, ids ...device.BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return err
	}

	for _, bid := range ids {
		if _, ok := d.buffers[bid]; !ok {
			return device.ErrInvalidName
		}
	}

	for _, bid := range ids {
		d.buffers[bid].refs++
	}
	v.queue = append(v.queue, ids...)

	return nil
}

// UnqueueBuffers only hands back processed buffers from a playing or paused
// source; an initial or stopped source gives up any of its queue.
func (d *Device) UnqueueBuffers(id device.SourceID, n int) ([]device.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return nil, err
	}

	if n < 0 || n > len(v.queue) {
		return nil, device.ErrInvalidValue
	}
	if (v.state == device.Playing || v.state == device.Paused) && n > v.processed {
		return nil, device.ErrInvalidOperation
	}

	out := make([]device.BufferID, n)
	copy(out, v.queue[:n])
	d.release(out)
	v.queue = append(v.queue[:0], v.queue[n:]...)

	// the cursor stays on the buffer being played unless that went too
	if n > v.processed {
		v.processed = 0
		v.cursor = 0
	} else {
		v.processed -= n
	}

	return out, nil
}

func (d *Device) QueuedBuffers(id device.SourceID) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return 0, err
	}

	return len(v.queue), nil
}

func (d *Device) ProcessedBuffers(id device.SourceID) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return 0, err
	}

	if v.state == device.Initial {
		return 0, nil
	}

	return v.processed, nil
}

func (d *Device) SetGain(id device.SourceID, gain float32) error {
	if gain < 0 {
		return device.ErrInvalidValue
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return err
	}
	v.gain = gain

	return nil
}

func (d *Device) SetPitch(id device.SourceID, pitch float32) error {
	if pitch <= 0 {
		return device.ErrInvalidValue
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := d.voice(id)
	if err != nil {
		return err
	}

	v.pitch = pitch
	if v.resampler != nil {
		v.resampler.SetPitch(float64(pitch))
	}

	return nil
}

// Reader exposes the mix as interleaved little-endian float32 bytes, the
// layout oto and miniaudio take.
func (d *Device) Reader() io.Reader {
	return &byteReader{d: d}
}
