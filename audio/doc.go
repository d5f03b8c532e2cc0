// SPDX-License-Identifier: EPL-2.0

// Package audio holds the sample-level contracts shared by decoders, the
// software device and the streaming engine.
//
// # Source Interface
//
// Every decoder yields a Source producing interleaved float32 samples in
// [-1.0, 1.0]:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Sources that can restart from the beginning without reopening the
// underlying file also implement Rewinder. Streams that loop prefer it and
// fall back to reopening the file otherwise.
//
// # Resampling
//
// The Resampler converts a Source to another rate with cubic interpolation.
// Its pitch can be changed while reading, which the software device uses to
// play a voice faster or slower:
//
//	r := audio.NewResampler(src, 48000)
//	r.SetPitch(1.5)
//
// # Channel Mixing
//
// The MonoMixer averages all channels of a Source down to one.
//
// # Format Registry
//
// The Registry maps file extensions to decoders:
//
//	reg := audio.NewRegistry()
//	reg.Register("ogg", vorbis.Decoder{})
//	dec, err := reg.ForPath("music/theme.ogg")
//
// # Error Handling
//
// ReadSamples returns io.EOF once a Source is exhausted. It may return the
// final samples together with io.EOF.
package audio
