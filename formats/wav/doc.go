// SPDX-License-Identifier: EPL-2.0

// Package wav decodes PCM WAV files for streaming playback.
//
// Parsing is done by github.com/go-audio/wav, which walks the RIFF chunks
// instead of assuming the canonical 44-byte header. Integer PCM at 8, 16, 24
// and 32 bits is accepted, mono or multi-channel, any sample rate.
//
//	src, err := wav.Decoder{}.Decode(file)
//
// Sources implement audio.Rewinder. Non-seekable readers are buffered in
// memory first, since go-audio needs an io.ReadSeeker.
package wav
