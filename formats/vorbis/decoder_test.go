// SPDX-License-Identifier: EPL-2.0

package vorbis

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

// fakeOgg serves samples from memory the way oggvorbis.Reader does.
type fakeOgg struct {
	rate     int
	channels int
	data     []float32
	pos      int // in samples
	seekErr  error
	readErr  error
}

func (f *fakeOgg) SampleRate() int { return f.rate }
func (f *fakeOgg) Channels() int   { return f.channels }
func (f *fakeOgg) Position() int64 { return int64(f.pos / f.channels) }

func (f *fakeOgg) Read(p []float32) (int, error) {
	if f.readErr != nil {
		return 0, f.readErr
	}
	if f.pos >= len(f.data) {
		return 0, io.EOF
	}
	n := copy(p, f.data[f.pos:])
	f.pos += n
	return n, nil
}

func (f *fakeOgg) SetPosition(frame int64) error {
	if f.seekErr != nil {
		return f.seekErr
	}
	f.pos = int(frame) * f.channels
	return nil
}

func newFake(channels, frames int) *fakeOgg {
	data := make([]float32, channels*frames)
	for i := range data {
		data[i] = float32(i) / float32(len(data))
	}
	return &fakeOgg{rate: 22050, channels: channels, data: data}
}

func TestSourceReadsWholeFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		channels int
		dst      int
		want     int
	}{
		{name: "mono", channels: 1, dst: 7, want: 7},
		{name: "stereo drops torn frame", channels: 2, dst: 7, want: 6},
		{name: "dst smaller than a frame", channels: 2, dst: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := newFake(tt.channels, 100)
			s := &source{dec: fake, sampleRate: fake.rate, channels: fake.channels}

			n, err := s.ReadSamples(make([]float32, tt.dst))
			if err != nil {
				t.Fatalf("ReadSamples() error = %v", err)
			}
			if n != tt.want {
				t.Errorf("ReadSamples() = %d, want %d", n, tt.want)
			}
		})
	}
}

func TestSourceEOFAndRewind(t *testing.T) {
	t.Parallel()

	fake := newFake(2, 10)
	s := &source{dec: fake, sampleRate: fake.rate, channels: 2}

	buf := make([]float32, 64)
	n, err := s.ReadSamples(buf)
	if n != 20 || err != nil {
		t.Fatalf("ReadSamples() = %d, %v, want 20, nil", n, err)
	}
	if s.Position() != 10 {
		t.Errorf("Position() = %d, want 10", s.Position())
	}

	n, err = s.ReadSamples(buf)
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("ReadSamples() at end = %d, %v, want 0, EOF", n, err)
	}

	if err := s.Rewind(); err != nil {
		t.Fatalf("Rewind() error = %v", err)
	}
	n, err = s.ReadSamples(buf[:4])
	if n != 4 || err != nil {
		t.Fatalf("ReadSamples() after rewind = %d, %v", n, err)
	}
	if buf[0] != 0 {
		t.Errorf("first sample after rewind = %v, want 0", buf[0])
	}
}

func TestSourceErrors(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")

	fake := newFake(1, 10)
	fake.readErr = boom
	fake.seekErr = boom
	s := &source{dec: fake, sampleRate: fake.rate, channels: 1}

	if _, err := s.ReadSamples(make([]float32, 4)); !errors.Is(err, boom) {
		t.Errorf("ReadSamples() error = %v, want %v", err, boom)
	}
	if err := s.Rewind(); !errors.Is(err, boom) {
		t.Errorf("Rewind() error = %v, want %v", err, boom)
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "not ogg", data: []byte("RIFF....WAVEfmt ")},
		{name: "truncated capture", data: []byte("OggS\x00\x02")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, err := (Decoder{}).Decode(bytes.NewReader(tt.data)); err == nil {
				t.Error("Decode() accepted invalid data")
			}
		})
	}
}
