// SPDX-License-Identifier: EPL-2.0

package stream

import "errors"

var (
	ErrDisposed    = errors.New("stream disposed")
	ErrNotReady    = errors.New("stream has no open decoder")
	ErrClosed      = errors.New("streamer closed")
	ErrBufferSize  = errors.New("buffer size must be positive")
	ErrUpdateRate  = errors.New("update rate must not be negative")
	ErrBufferCount = errors.New("buffer count must be positive")
	ErrUpload      = errors.New("buffer upload failed")
	ErrQueue       = errors.New("buffer queue failed")
)
