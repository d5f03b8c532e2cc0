// SPDX-License-Identifier: EPL-2.0

// Package output holds what the sinks share. Each sink lives in its own
// subpackage so a program links only the audio backend it uses.
package output

import (
	"errors"
	"io"
)

var (
	// ErrClosed is returned by a sink used after Close.
	ErrClosed = errors.New("output: sink closed")
	// ErrBackend is returned for a backend name no sink answers to.
	ErrBackend = errors.New("output: unsupported backend")
)

// Mixer is a device that renders its playing sources on demand. soft.Device
// is one.
type Mixer interface {
	SampleRate() int
	Channels() int
	// Mix renders len(dst) interleaved float32 samples.
	Mix(dst []float32)
	// Reader streams the mix as float32 little-endian bytes.
	Reader() io.Reader
}
