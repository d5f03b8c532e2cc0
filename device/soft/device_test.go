// SPDX-License-Identifier: EPL-2.0

package soft

import (
	"encoding/binary"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audstream/device"
)

const rate = 8000

func newDevice(t *testing.T, channels int) *Device {
	t.Helper()

	d, err := New(Config{SampleRate: rate, Channels: channels})
	require.NoError(t, err)
	return d
}

// constant returns frames frames of v on every channel.
func constant(frames, channels int, v int16) []int16 {
	out := make([]int16, frames*channels)
	for i := range out {
		out[i] = v
	}
	return out
}

// voiceWith queues one buffer per entry of datas on a fresh source.
func voiceWith(t *testing.T, d *Device, format device.Format, datas ...[]int16) (device.SourceID, []device.BufferID) {
	t.Helper()

	id, err := d.GenSource()
	require.NoError(t, err)

	bufs, err := d.GenBuffers(len(datas))
	require.NoError(t, err)
	for i, data := range datas {
		require.NoError(t, d.BufferData(bufs[i], format, data, rate))
	}
	require.NoError(t, d.QueueBuffers(id, bufs...))

	return id, bufs
}

func state(t *testing.T, d *Device, id device.SourceID) device.State {
	t.Helper()

	s, err := d.State(id)
	require.NoError(t, err)
	return s
}

func processed(t *testing.T, d *Device, id device.SourceID) int {
	t.Helper()

	n, err := d.ProcessedBuffers(id)
	require.NoError(t, err)
	return n
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "zero rate", cfg: Config{SampleRate: 0, Channels: 2}},
		{name: "no channels", cfg: Config{SampleRate: rate, Channels: 0}},
		{name: "surround", cfg: Config{SampleRate: rate, Channels: 6}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(tt.cfg)
			assert.ErrorIs(t, err, device.ErrInvalidValue)
		})
	}

	d, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, 44100, d.SampleRate())
	assert.Equal(t, 2, d.Channels())
}

func TestBufferRules(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 1)
	id, bufs := voiceWith(t, d, device.Mono16, constant(10, 1, 1))

	assert.ErrorIs(t, d.BufferData(bufs[0], device.Mono16, []int16{1}, rate), device.ErrInvalidOperation)
	assert.ErrorIs(t, d.DeleteBuffers(bufs), device.ErrInvalidOperation)
	assert.ErrorIs(t, d.BufferData(bufs[0]+100, device.Mono16, []int16{1}, rate), device.ErrInvalidName)
	assert.ErrorIs(t, d.BufferData(bufs[0], device.Stereo16, []int16{1, 2, 3}, rate), device.ErrInvalidValue)
	assert.ErrorIs(t, d.QueueBuffers(id, 999), device.ErrInvalidName)

	require.NoError(t, d.DeleteSource(id))
	require.NoError(t, d.DeleteBuffers(bufs))
	assert.ErrorIs(t, d.DeleteSource(id), device.ErrInvalidName)
}

func TestQueueRules(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 1)
	id, bufs := voiceWith(t, d, device.Mono16,
		constant(10, 1, 1), constant(10, 1, 2), constant(10, 1, 3))

	assert.Equal(t, device.Initial, state(t, d, id))
	assert.Equal(t, 0, processed(t, d, id))

	require.NoError(t, d.Play(id))
	assert.Equal(t, device.Playing, state(t, d, id))

	_, err := d.UnqueueBuffers(id, 1)
	assert.ErrorIs(t, err, device.ErrInvalidOperation, "nothing processed yet")
	_, err = d.UnqueueBuffers(id, 4)
	assert.ErrorIs(t, err, device.ErrInvalidValue)

	require.NoError(t, d.Pause(id))
	assert.Equal(t, device.Paused, state(t, d, id))
	_, err = d.UnqueueBuffers(id, 1)
	assert.ErrorIs(t, err, device.ErrInvalidOperation)

	require.NoError(t, d.Stop(id))
	assert.Equal(t, device.Stopped, state(t, d, id))
	assert.Equal(t, 3, processed(t, d, id))

	got, err := d.UnqueueBuffers(id, 2)
	require.NoError(t, err)
	assert.Equal(t, bufs[:2], got)
	assert.Equal(t, 1, processed(t, d, id))

	n, err := d.QueuedBuffers(id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, d.Play(id))
	assert.Equal(t, 0, processed(t, d, id), "play from stopped restarts the queue")
}

func TestPlayEmptyQueueStops(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 2)
	id, err := d.GenSource()
	require.NoError(t, err)

	require.NoError(t, d.Play(id))
	assert.Equal(t, device.Stopped, state(t, d, id))
}

func TestMixMono(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 1)
	id, _ := voiceWith(t, d, device.Mono16, constant(100, 1, 16384), constant(100, 1, 16384))
	require.NoError(t, d.Play(id))

	out := make([]float32, 50)
	d.Mix(out)
	for i, v := range out {
		require.InDelta(t, 0.5, v, 1e-3, "sample %d", i)
	}
	assert.Equal(t, 0, processed(t, d, id))

	d.Mix(make([]float32, 60))
	assert.Equal(t, 1, processed(t, d, id))
	assert.Equal(t, device.Playing, state(t, d, id))
}

func TestMixGain(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 1)
	id, _ := voiceWith(t, d, device.Mono16, constant(100, 1, 16384))
	require.NoError(t, d.SetGain(id, 0.5))
	require.NoError(t, d.Play(id))

	out := make([]float32, 10)
	d.Mix(out)
	assert.InDelta(t, 0.25, out[0], 1e-3)

	assert.ErrorIs(t, d.SetGain(id, -1), device.ErrInvalidValue)
}

func TestMixUnderrunStops(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 1)
	id, _ := voiceWith(t, d, device.Mono16, constant(100, 1, 16384))
	require.NoError(t, d.Play(id))

	out := make([]float32, 256)
	d.Mix(out)

	assert.InDelta(t, 0.5, out[0], 1e-3)
	assert.InDelta(t, 0.5, out[90], 1e-3)
	assert.Zero(t, out[150])
	assert.Equal(t, device.Stopped, state(t, d, id))
	assert.Equal(t, 1, processed(t, d, id))
}

func TestMixChannelMapping(t *testing.T) {
	t.Parallel()

	t.Run("mono voice on stereo output", func(t *testing.T) {
		t.Parallel()

		d := newDevice(t, 2)
		id, _ := voiceWith(t, d, device.Mono16, constant(100, 1, 16384))
		require.NoError(t, d.Play(id))

		out := make([]float32, 20)
		d.Mix(out)
		assert.InDelta(t, 0.5, out[0], 1e-3)
		assert.InDelta(t, 0.5, out[1], 1e-3)
	})

	t.Run("stereo voice on mono output", func(t *testing.T) {
		t.Parallel()

		d := newDevice(t, 1)
		data := make([]int16, 200)
		for i := range 100 {
			data[2*i] = 32767
			data[2*i+1] = 0
		}
		id, _ := voiceWith(t, d, device.Stereo16, data)
		require.NoError(t, d.Play(id))

		out := make([]float32, 10)
		d.Mix(out)
		assert.InDelta(t, 0.5, out[0], 1e-3)
	})
}

func TestMixSumsAndClamps(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 1)
	a, _ := voiceWith(t, d, device.Mono16, constant(100, 1, 24575))
	b, _ := voiceWith(t, d, device.Mono16, constant(100, 1, 24575))
	require.NoError(t, d.Play(a))
	require.NoError(t, d.Play(b))

	out := make([]float32, 10)
	d.Mix(out)
	for _, v := range out {
		assert.InDelta(t, 1.0, v, 1e-6)
	}

	require.NoError(t, d.Pause(b))
	d.Mix(out)
	assert.InDelta(t, 0.75, out[0], 1e-3)
}

func TestMixPitch(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 1)
	id, _ := voiceWith(t, d, device.Mono16, constant(200, 1, 16384))
	require.NoError(t, d.SetPitch(id, 2))
	require.NoError(t, d.Play(id))

	out := make([]float32, 200)
	d.Mix(out)

	assert.InDelta(t, 0.5, out[10], 1e-3)
	assert.Zero(t, out[150], "twice the speed plays out in half the frames")
	assert.Equal(t, device.Stopped, state(t, d, id))
	assert.ErrorIs(t, d.SetPitch(id, 0), device.ErrInvalidValue)
}

func TestUnqueueWhilePlayingKeepsPosition(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 1)
	ramp := func(base int16) []int16 {
		out := make([]int16, 100)
		for i := range out {
			out[i] = base + int16(i)
		}
		return out
	}
	id, bufs := voiceWith(t, d, device.Mono16, ramp(0), ramp(1000))
	require.NoError(t, d.Play(id))

	out := make([]float32, 120)
	d.Mix(out)
	require.Equal(t, 1, processed(t, d, id))

	got, err := d.UnqueueBuffers(id, 1)
	require.NoError(t, err)
	assert.Equal(t, bufs[:1], got)

	d.Mix(out[:1])
	assert.InDelta(t, float64(1020)/32767, out[0], 1e-6)
}

func TestReader(t *testing.T) {
	t.Parallel()

	d := newDevice(t, 2)
	id, _ := voiceWith(t, d, device.Mono16, constant(100, 1, 16384))
	require.NoError(t, d.Play(id))

	p := make([]byte, 100)
	n, err := d.Reader().Read(p)
	require.NoError(t, err)
	assert.Equal(t, 96, n, "whole stereo frames only")

	samples := make([]float32, n/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
	}
	assert.True(t, slices.IndexFunc(samples, func(v float32) bool { return math.Abs(float64(v)-0.5) > 1e-3 }) < 0)

	n, err = d.Reader().Read(make([]byte, 7))
	require.NoError(t, err)
	assert.Zero(t, n)
}
