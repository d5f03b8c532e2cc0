// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"math"
	"testing"

	"github.com/ik5/audstream/internal/audiotest"
)

func TestMonoMixer(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		waveform audiotest.Waveform
		want     float32
	}{
		{
			name:     "mono passes through",
			channels: 1,
			waveform: func(int, int) float32 { return 0.3 },
			want:     0.3,
		},
		{
			name:     "stereo averages",
			channels: 2,
			waveform: func(_, ch int) float32 { return []float32{0.2, 0.6}[ch] },
			want:     0.4,
		},
		{
			name:     "opposite phase cancels",
			channels: 2,
			waveform: func(_, ch int) float32 { return []float32{1, -1}[ch] },
			want:     0,
		},
		{
			name:     "four channels",
			channels: 4,
			waveform: func(_, ch int) float32 { return float32(ch) / 4 },
			want:     0.375,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := audiotest.NewMockSource(8000, tt.channels, 100, tt.waveform)
			m := NewMonoMixer(src)

			if m.Channels() != 1 {
				t.Errorf("Channels() = %d, want 1", m.Channels())
			}
			if m.SampleRate() != 8000 {
				t.Errorf("SampleRate() = %d, want 8000", m.SampleRate())
			}

			out := drain(t, m, 30)
			if len(out) != 100 {
				t.Fatalf("got %d samples, want 100", len(out))
			}
			for i, v := range out {
				if math.Abs(float64(v-tt.want)) > 1e-6 {
					t.Fatalf("out[%d] = %v, want %v", i, v, tt.want)
				}
			}
		})
	}
}

func TestMonoMixerLargeRead(t *testing.T) {
	t.Parallel()

	m := NewMonoMixer(audiotest.NewConstantSource(8000, 2, 10000, 0.5))

	dst := make([]float32, 10000)
	n, err := m.ReadSamples(dst)
	if n != 10000 {
		t.Fatalf("ReadSamples() = %d, want 10000", n)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadSamples() error = %v", err)
	}
}

func TestMonoMixerEmptyDst(t *testing.T) {
	t.Parallel()

	src := audiotest.NewConstantSource(8000, 2, 10, 0.5)
	n, err := NewMonoMixer(src).ReadSamples(nil)
	if n != 0 || err != nil {
		t.Errorf("ReadSamples(nil) = %d, %v", n, err)
	}
	if src.Position() != 0 {
		t.Errorf("source advanced to %d", src.Position())
	}
}

func TestMonoMixerClose(t *testing.T) {
	t.Parallel()

	src := audiotest.NewSilentSource(8000, 2, 10)
	if err := NewMonoMixer(src).Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !src.Closed() {
		t.Error("source not closed")
	}
}
