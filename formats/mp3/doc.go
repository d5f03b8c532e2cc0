// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MP3 files for streaming playback.
//
// It wraps github.com/hajimehoshi/go-mp3, which always emits 16-bit stereo,
// so sources report two channels regardless of the file's channel mode.
//
//	src, err := mp3.Decoder{}.Decode(file)
//
// Sources implement audio.Rewinder when the reader given to Decode is an
// io.Seeker.
package mp3
