// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/audstream/internal/audiotest"
)

// drain reads src to the end in chunks of size samples.
func drain(t *testing.T, src Source, size int) []float32 {
	t.Helper()

	buf := make([]float32, size)
	var out []float32
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
		if n == 0 {
			t.Fatal("ReadSamples() made no progress")
		}
	}
}

func TestResamplerMetadata(t *testing.T) {
	t.Parallel()

	r := NewResampler(audiotest.NewSilentSource(44100, 2, 1000), 8000)

	if r.SampleRate() != 8000 {
		t.Errorf("SampleRate() = %d, want 8000", r.SampleRate())
	}
	if r.Channels() != 2 {
		t.Errorf("Channels() = %d, want 2", r.Channels())
	}
	if r.Pitch() != 1 {
		t.Errorf("Pitch() = %v, want 1", r.Pitch())
	}
}

func TestResamplerSameRateIsExact(t *testing.T) {
	t.Parallel()

	src := audiotest.NewRampSource(8000, 1, 100, 100)
	out := drain(t, NewResampler(src, 8000), 32)

	if len(out) < 98 || len(out) > 100 {
		t.Fatalf("got %d samples, want about 100", len(out))
	}
	for i, v := range out {
		want := float32(i) / 100
		if math.Abs(float64(v-want)) > 1e-6 {
			t.Fatalf("out[%d] = %v, want %v", i, v, want)
		}
	}
}

func TestResamplerLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		srcRate  int
		dstRate  int
		channels int
		frames   int
		pitch    float64
		want     int // output frames
	}{
		{name: "downsample", srcRate: 44100, dstRate: 8000, channels: 1, frames: 44100, pitch: 1, want: 8000},
		{name: "upsample", srcRate: 8000, dstRate: 44100, channels: 1, frames: 8000, pitch: 1, want: 44100},
		{name: "stereo downsample", srcRate: 48000, dstRate: 16000, channels: 2, frames: 48000, pitch: 1, want: 16000},
		{name: "octave up", srcRate: 8000, dstRate: 8000, channels: 1, frames: 8000, pitch: 2, want: 4000},
		{name: "half speed", srcRate: 8000, dstRate: 8000, channels: 2, frames: 4000, pitch: 0.5, want: 8000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := NewResampler(audiotest.NewSineSource(tt.srcRate, tt.channels, tt.frames, 440), tt.dstRate)
			r.SetPitch(tt.pitch)

			out := drain(t, r, 1024*tt.channels)
			if len(out)%tt.channels != 0 {
				t.Fatalf("got %d samples, not whole frames", len(out))
			}

			got := len(out) / tt.channels
			tolerance := tt.want / 100
			if got < tt.want-tolerance || got > tt.want+tolerance {
				t.Errorf("got %d frames, want %d ± %d", got, tt.want, tolerance)
			}
			for i, v := range out {
				if v < -1.1 || v > 1.1 {
					t.Fatalf("out[%d] = %v out of range", i, v)
				}
			}
		})
	}
}

func TestResamplerIgnoresBadPitch(t *testing.T) {
	t.Parallel()

	r := NewResampler(audiotest.NewSilentSource(8000, 1, 10), 8000)
	r.SetPitch(1.5)
	r.SetPitch(0)
	r.SetPitch(-2)

	if r.Pitch() != 1.5 {
		t.Errorf("Pitch() = %v, want 1.5", r.Pitch())
	}
}

func TestResamplerRejectsPartialFrames(t *testing.T) {
	t.Parallel()

	r := NewResampler(audiotest.NewSilentSource(8000, 2, 10), 8000)

	_, err := r.ReadSamples(make([]float32, 3))
	if !errors.Is(err, ErrInvalidDstSize) {
		t.Errorf("ReadSamples() error = %v, want %v", err, ErrInvalidDstSize)
	}
}

func TestResamplerEmptySource(t *testing.T) {
	t.Parallel()

	r := NewResampler(audiotest.NewSilentSource(8000, 1, 0), 8000)

	n, err := r.ReadSamples(make([]float32, 16))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() = %d, %v, want 0, EOF", n, err)
	}
}

func TestResamplerPropagatesErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	src := audiotest.NewSilentSource(8000, 1, 1000)
	r := NewResampler(src, 8000)

	if _, err := r.ReadSamples(make([]float32, 16)); err != nil {
		t.Fatalf("ReadSamples() error = %v", err)
	}

	src.FailWith(boom)
	if _, err := drainErr(r); !errors.Is(err, boom) {
		t.Errorf("error = %v, want %v", err, boom)
	}
}

func drainErr(src Source) (int, error) {
	buf := make([]float32, 64)
	total := 0
	for {
		n, err := src.ReadSamples(buf)
		total += n
		if err != nil {
			return total, err
		}
	}
}

func TestResamplerClose(t *testing.T) {
	t.Parallel()

	src := audiotest.NewSilentSource(8000, 1, 10)
	if err := NewResampler(src, 16000).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !src.Closed() {
		t.Error("source not closed")
	}
}

func BenchmarkResampler(b *testing.B) {
	buf := make([]float32, 4096)
	for b.Loop() {
		r := NewResampler(audiotest.NewSineSource(44100, 2, 44100, 440), 48000)
		for {
			if _, err := r.ReadSamples(buf); err != nil {
				break
			}
		}
	}
}
