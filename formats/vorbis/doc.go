// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis files for streaming playback.
//
// Decoding is done by github.com/jfreymuth/oggvorbis. Samples come out as
// interleaved float32 in [-1.0, 1.0], which is what the streaming engine
// converts to 16-bit PCM for device buffers.
//
//	src, err := vorbis.Decoder{}.Decode(file)
//
// When the reader passed to Decode is seekable (an *os.File is), the returned
// source also implements audio.Rewinder, so looping streams restart without
// reopening the file.
package vorbis
