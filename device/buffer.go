// SPDX-License-Identifier: EPL-2.0

package device

import (
	"fmt"
	"slices"
	"sync/atomic"
)

// BufferRing is an owned, fixed-size set of device buffers.
type BufferRing struct {
	dev Device
	chk *Checker
	ids []BufferID

	released atomic.Bool
}

func NewBufferRing(dev Device, n int, chk *Checker) (*BufferRing, error) {
	if n <= 0 {
		return nil, fmt.Errorf("gen %d buffers: %w", n, ErrInvalidValue)
	}
	if chk == nil {
		chk = NewChecker(DefaultPolicy)
	}

	ids, err := dev.GenBuffers(n)
	if err != nil {
		return nil, fmt.Errorf("gen buffers: %w", err)
	}

	return &BufferRing{dev: dev, chk: chk, ids: ids}, nil
}

// IDs returns the buffer ids in ring order. The slice must not be modified.
func (b *BufferRing) IDs() []BufferID { return b.ids }
func (b *BufferRing) Len() int        { return len(b.ids) }
func (b *BufferRing) Released() bool  { return b.released.Load() }

// Contains reports whether id belongs to this ring.
func (b *BufferRing) Contains(id BufferID) bool {
	return slices.Contains(b.ids, id)
}

// Upload copies PCM into buffer id.
func (b *BufferRing) Upload(id BufferID, format Format, data []int16, sampleRate int) error {
	if b.released.Load() {
		return b.chk.Check("buffer data", ErrReleased)
	}
	return b.chk.Check("buffer data", b.dev.BufferData(id, format, data, sampleRate))
}

// UploadReported is Upload that always returns a failed device call, after
// the Checker has logged it.
func (b *BufferRing) UploadReported(id BufferID, format Format, data []int16, sampleRate int) error {
	if b.released.Load() {
		return b.chk.Report("buffer data", ErrReleased)
	}
	return b.chk.Report("buffer data", b.dev.BufferData(id, format, data, sampleRate))
}

// Release deletes the buffers. Only the first call does anything.
func (b *BufferRing) Release() error {
	if !b.released.CompareAndSwap(false, true) {
		return nil
	}
	return b.chk.Check("delete buffers", b.dev.DeleteBuffers(b.ids))
}
