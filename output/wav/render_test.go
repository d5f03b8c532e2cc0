// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	gowav "github.com/go-audio/wav"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audstream/device"
	"github.com/ik5/audstream/device/soft"
	"github.com/ik5/audstream/internal/audiotest"
	"github.com/ik5/audstream/internal/streamtest"
	"github.com/ik5/audstream/stream"
)

type constMixer struct {
	rate, channels int
	value          float32
	mixed          int
}

func (c *constMixer) SampleRate() int { return c.rate }
func (c *constMixer) Channels() int   { return c.channels }
func (c *constMixer) Reader() io.Reader {
	return nil
}

func (c *constMixer) Mix(dst []float32) {
	for i := range dst {
		dst[i] = c.value
	}
	c.mixed += len(dst)
}

func renderFile(t *testing.T) *os.File {
	t.Helper()

	f, err := os.Create(filepath.Join(t.TempDir(), "out.wav"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })

	return f
}

func decodeFile(t *testing.T, f *os.File) *gowav.Decoder {
	t.Helper()

	_, err := f.Seek(0, io.SeekStart)
	require.NoError(t, err)

	dec := gowav.NewDecoder(f)
	require.True(t, dec.IsValidFile())

	return dec
}

func TestRenderRejectsZeroDuration(t *testing.T) {
	t.Parallel()

	_, err := Render(&constMixer{rate: 8000, channels: 1}, renderFile(t), 0, nil)
	assert.ErrorIs(t, err, ErrDuration)
}

func TestRenderConstant(t *testing.T) {
	t.Parallel()

	m := &constMixer{rate: 8000, channels: 2, value: 0.5}
	f := renderFile(t)
	ticks := 0

	frames, err := Render(m, f, 500*time.Millisecond, func() { ticks++ })
	require.NoError(t, err)

	assert.Equal(t, 4000, frames)
	assert.Equal(t, 8000, m.mixed)
	assert.Equal(t, (4000+ChunkFrames-1)/ChunkFrames, ticks)

	dec := decodeFile(t, f)
	buf, err := dec.FullPCMBuffer()
	require.NoError(t, err)

	assert.Equal(t, uint32(8000), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)
	assert.Equal(t, uint16(16), dec.BitDepth)
	require.Len(t, buf.Data, 8000)
	assert.Equal(t, 16384, buf.Data[0])
	assert.Equal(t, 16384, buf.Data[len(buf.Data)-1])
}

func TestRenderStreamThroughSoftDevice(t *testing.T) {
	t.Parallel()

	dev, err := soft.New(soft.Config{SampleRate: 8000, Channels: 1})
	require.NoError(t, err)

	st, err := stream.NewStreamer(dev, stream.Config{BufferSize: 2048, Manual: true},
		stream.WithLogger(zerolog.Nop()),
		stream.WithChecker(device.NewChecker(device.LogConsole, device.WithConsole(io.Discard))))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	dec := &streamtest.Decoder{New: func() *audiotest.MockSource {
		return audiotest.NewConstantSource(8000, 1, 4000, 0.25)
	}}
	s, err := stream.NewStream(st, audiotest.NewReader(nil), dec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Dispose() })
	require.NoError(t, s.Play())

	f := renderFile(t)
	frames, err := Render(dev, f, time.Second, st.Update)
	require.NoError(t, err)
	assert.Equal(t, 8000, frames)

	out, err := decodeFile(t, f).FullPCMBuffer()
	require.NoError(t, err)
	require.Len(t, out.Data, 8000)

	// half a second of audio, then silence once the stream ran dry
	assert.Equal(t, 8192, out.Data[0])
	assert.Equal(t, 8192, out.Data[3998])
	assert.Equal(t, 0, out.Data[4000])
	assert.Equal(t, 0, out.Data[7999])
	assert.True(t, s.Finished())
}
