// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audstream/audio"
	"github.com/ik5/audstream/device"
	"github.com/ik5/audstream/internal/audiotest"
	"github.com/ik5/audstream/internal/devicetest"
	"github.com/ik5/audstream/internal/streamtest"
)

const testRate = 44100

func rampDecoder(frames int) *streamtest.Decoder {
	return streamtest.Ramp(testRate, frames)
}

func quietChecker() *device.Checker {
	return device.NewChecker(device.LogConsole, device.WithConsole(io.Discard))
}

func newTestStreamer(t *testing.T, bufferSize int) (*Streamer, *devicetest.Device) {
	t.Helper()

	dev := devicetest.New()
	st, err := NewStreamer(dev, Config{BufferSize: bufferSize, Manual: true},
		WithChecker(quietChecker()), WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return st, dev
}

func newTestStream(t *testing.T, st *Streamer, dec audio.Decoder, opts ...StreamOption) (*Stream, *audiotest.Reader) {
	t.Helper()

	r := audiotest.NewReader([]byte("stream"))
	s, err := NewStream(st, r, dec, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Dispose() })

	return s, r
}

// firstSamples returns the first PCM sample of every upload.
func firstSamples(ups []devicetest.Upload) []int16 {
	out := make([]int16, 0, len(ups))
	for _, u := range ups {
		if len(u.Data) > 0 {
			out = append(out, u.Data[0])
		}
	}
	return out
}
