// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"testing"
)

// fakeMP3 serves 16-bit stereo PCM like gomp3.Decoder, at most chunk bytes
// per Read.
type fakeMP3 struct {
	*bytes.Reader
	chunk   int
	readErr error
}

func (f *fakeMP3) SampleRate() int { return 44100 }

func (f *fakeMP3) Read(p []byte) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.chunk > 0 && len(p) > f.chunk {
		p = p[:f.chunk]
	}
	return f.Reader.Read(p)
}

func pcm(samples ...int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func newSource(f *fakeMP3) *source {
	return &source{dec: f, sampleRate: f.SampleRate()}
}

func TestSourceConvertsPCM(t *testing.T) {
	t.Parallel()

	s := newSource(&fakeMP3{Reader: bytes.NewReader(pcm(16384, -16384, 32767, -32768)), chunk: 3})

	dst := make([]float32, 4)
	n, err := s.ReadSamples(dst)
	if n != 4 {
		t.Fatalf("ReadSamples() = %d, %v, want 4", n, err)
	}
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("ReadSamples() error = %v", err)
	}

	want := []float32{0.5, -0.5, 32767.0 / 32768, -1}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestSourceShortRead(t *testing.T) {
	t.Parallel()

	s := newSource(&fakeMP3{Reader: bytes.NewReader(pcm(1, 2, 3, 4, 5, 6))})

	dst := make([]float32, 16)
	n, err := s.ReadSamples(dst)
	if n != 6 || !errors.Is(err, io.EOF) {
		t.Fatalf("ReadSamples() = %d, %v, want 6, EOF", n, err)
	}

	n, err = s.ReadSamples(dst)
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("ReadSamples() at end = %d, %v, want 0, EOF", n, err)
	}
}

func TestSourceKeepsHalfSample(t *testing.T) {
	t.Parallel()

	// one and a half samples, then the rest arrives after a rewind
	data := pcm(100, 200)
	s := newSource(&fakeMP3{Reader: bytes.NewReader(data[:3])})

	dst := make([]float32, 2)
	n, _ := s.ReadSamples(dst)
	if n != 1 {
		t.Fatalf("ReadSamples() = %d, want 1", n)
	}
	if len(s.pending) != 1 {
		t.Fatalf("pending = %d bytes, want 1", len(s.pending))
	}

	if err := s.Rewind(); err != nil {
		t.Fatalf("Rewind() error = %v", err)
	}
	if len(s.pending) != 0 {
		t.Error("Rewind kept a stale half sample")
	}
}

func TestSourceRewind(t *testing.T) {
	t.Parallel()

	s := newSource(&fakeMP3{Reader: bytes.NewReader(pcm(8192, 8192, 0, 0))})

	dst := make([]float32, 4)
	if _, err := s.ReadSamples(dst); err != nil && !errors.Is(err, io.EOF) {
		t.Fatal(err)
	}
	if err := s.Rewind(); err != nil {
		t.Fatalf("Rewind() error = %v", err)
	}

	clear(dst)
	n, _ := s.ReadSamples(dst[:2])
	if n != 2 || dst[0] != 0.25 {
		t.Errorf("after rewind got %d samples, first %v", n, dst[0])
	}
}

func TestSourceErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := newSource(&fakeMP3{Reader: bytes.NewReader(nil), readErr: boom})

	if _, err := s.ReadSamples(make([]float32, 4)); !errors.Is(err, boom) {
		t.Errorf("ReadSamples() error = %v, want %v", err, boom)
	}
	if n, err := s.ReadSamples(make([]float32, 1)); n != 0 || err != nil {
		t.Errorf("ReadSamples() of a torn frame = %d, %v", n, err)
	}
}

func TestSourceMetadata(t *testing.T) {
	t.Parallel()

	s := newSource(&fakeMP3{Reader: bytes.NewReader(nil)})
	if s.Channels() != 2 || s.SampleRate() != 44100 {
		t.Errorf("got %d Hz, %d channels", s.SampleRate(), s.Channels())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	if _, err := (Decoder{}).Decode(bytes.NewReader(nil)); err == nil {
		t.Error("Decode() accepted an empty stream")
	}
}
