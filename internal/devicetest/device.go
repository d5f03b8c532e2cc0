// SPDX-License-Identifier: EPL-2.0

// Package devicetest provides a scripted device.Device. Nothing plays by
// itself: tests mark buffers processed and move sources between states, and
// read back what was uploaded, queued and played.
package devicetest

import (
	"slices"
	"sync"

	"github.com/ik5/audstream/device"
)

// Upload is one BufferData call.
type Upload struct {
	Buffer device.BufferID
	Format device.Format
	Rate   int
	Data   []int16
}

type buffer struct {
	data []int16
	refs int
}

type source struct {
	state     device.State
	queue     []device.BufferID
	processed int
	gain      float32
	pitch     float32
}

type Device struct {
	mu sync.Mutex

	nextBuffer device.BufferID
	nextSource device.SourceID
	buffers    map[device.BufferID]*buffer
	sources    map[device.SourceID]*source

	uploads []Upload
	calls   map[string]int

	// unqueue calls still to fail
	quirks int
	// queue and buffer data calls still to fail
	queueFails  int
	uploadFails int
}

var _ device.Device = (*Device)(nil)

func New() *Device {
	return &Device{
		buffers: make(map[device.BufferID]*buffer),
		sources: make(map[device.SourceID]*source),
		calls:   make(map[string]int),
	}
}

func (d *Device) count(op string) { d.calls[op]++ }

// Calls reports how many times op ("play", "stop", "unqueue", ...) was called.
func (d *Device) Calls(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[op]
}

// Uploads returns every BufferData call so far, oldest first.
func (d *Device) Uploads() []Upload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.uploads)
}

// Queue returns the buffers queued on id, head first.
func (d *Device) Queue(id device.SourceID) []device.BufferID {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sources[id]; ok {
		return slices.Clone(s.queue)
	}
	return nil
}

// Sources returns the number of live sources.
func (d *Device) Sources() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.sources)
}

// Buffers returns the number of live buffers.
func (d *Device) Buffers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.buffers)
}

// Process marks n more queued buffers of id as played.
func (d *Device) Process(id device.SourceID, n int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sources[id]; ok {
		s.processed = min(s.processed+n, len(s.queue))
	}
}

// Underrun plays out the whole queue and stops the source.
func (d *Device) Underrun(id device.SourceID) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sources[id]; ok {
		s.state = device.Stopped
		s.processed = len(s.queue)
	}
}

// FailUnqueue makes the next n unqueue calls fail with ErrInvalidOperation
// whatever the source state, as some drivers do.
func (d *Device) FailUnqueue(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quirks = n
}

// FailQueue makes the next n queue calls fail with ErrInvalidOperation
// before touching the source.
func (d *Device) FailQueue(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.queueFails = n
}

// FailBufferData makes the next n buffer data calls fail with
// ErrInvalidOperation, leaving the buffer contents as they were.
func (d *Device) FailBufferData(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.uploadFails = n
}

func (d *Device) GenBuffers(n int) ([]device.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("gen buffers")

	if n <= 0 {
		return nil, device.ErrInvalidValue
	}

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
	d.count("delete buffers")

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
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("buffer data")

	if d.uploadFails > 0 {
		d.uploadFails--
		return device.ErrInvalidOperation
	}

	b, ok := d.buffers[id]
	if !ok {
		return device.ErrInvalidName
	}
	if b.refs > 0 {
		return device.ErrInvalidOperation
	}
	if format.Channels() == 0 || sampleRate <= 0 {
		return device.ErrInvalidValue
	}

	b.data = slices.Clone(data)
	d.uploads = append(d.uploads, Upload{Buffer: id, Format: format, Rate: sampleRate, Data: b.data})

	return nil
}

func (d *Device) GenSource() (device.SourceID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("gen source")

	d.nextSource++
	d.sources[d.nextSource] = &source{state: device.Initial, gain: 1, pitch: 1}

	return d.nextSource, nil
}

func (d *Device) DeleteSource(id device.SourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("delete source")

	s, ok := d.sources[id]
	if !ok {
		return device.ErrInvalidName
	}
	for _, bid := range s.queue {
		d.buffers[bid].refs--
	}
	delete(d.sources, id)

	return nil
}

func (d *Device) source(id device.SourceID) (*source, error) {
	s, ok := d.sources[id]
	if !ok {
		return nil, device.ErrInvalidName
	}
	return s, nil
}

func (d *Device) Play(id device.SourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("play")

	s, err := d.source(id)
	if err != nil {
		return err
	}

	switch s.state {
	case device.Playing:
	case device.Paused:
		s.state = device.Playing
	default:
		s.processed = 0
		s.state = device.Playing
	}

	return nil
}

func (d *Device) Pause(id device.SourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("pause")

	s, err := d.source(id)
	if err != nil {
		return err
	}
	if s.state == device.Playing {
		s.state = device.Paused
	}

	return nil
}

func (d *Device) Stop(id device.SourceID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("stop")

	s, err := d.source(id)
	if err != nil {
		return err
	}
	s.state = device.Stopped
	s.processed = len(s.queue)

	return nil
}

func (d *Device) State(id device.SourceID) (device.State, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.source(id)
	if err != nil {
		return device.Initial, err
	}
	return s.state, nil
}

func (d *Device) QueueBuffers(id device.SourceID, ids ...device.BufferID) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("queue")

	if d.queueFails > 0 {
		d.queueFails--
		return device.ErrInvalidOperation
	}

	s, err := d.source(id)
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
	s.queue = append(s.queue, ids...)

	return nil
}

func (d *Device) UnqueueBuffers(id device.SourceID, n int) ([]device.BufferID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("unqueue")

	s, err := d.source(id)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > len(s.queue) {
		return nil, device.ErrInvalidValue
	}
	if d.quirks > 0 {
		d.quirks--
		return nil, device.ErrInvalidOperation
	}
	if n > s.processed && (s.state == device.Playing || s.state == device.Paused) {
		return nil, device.ErrInvalidOperation
	}

	out := slices.Clone(s.queue[:n])
	for _, bid := range out {
		d.buffers[bid].refs--
	}
	s.queue = slices.Delete(s.queue, 0, n)
	s.processed = max(s.processed-n, 0)

	return out, nil
}

func (d *Device) QueuedBuffers(id device.SourceID) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.source(id)
	if err != nil {
		return 0, err
	}
	return len(s.queue), nil
}

func (d *Device) ProcessedBuffers(id device.SourceID) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	s, err := d.source(id)
	if err != nil {
		return 0, err
	}
	return s.processed, nil
}

func (d *Device) SetGain(id device.SourceID, gain float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("set gain")

	s, err := d.source(id)
	if err != nil {
		return err
	}
	s.gain = gain

	return nil
}

func (d *Device) SetPitch(id device.SourceID, pitch float32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count("set pitch")

	s, err := d.source(id)
	if err != nil {
		return err
	}
	s.pitch = pitch

	return nil
}

// Gain and Pitch read back what the source was last set to.
func (d *Device) Gain(id device.SourceID) float32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sources[id]; ok {
		return s.gain
	}
	return 0
}

func (d *Device) Pitch(id device.SourceID) float32 {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.sources[id]; ok {
		return s.pitch
	}
	return 0
}
