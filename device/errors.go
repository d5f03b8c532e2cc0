// SPDX-License-Identifier: EPL-2.0

package device

import "errors"

var (
	// ErrInvalidName is returned for an unknown buffer or source id.
	ErrInvalidName = errors.New("invalid name")
	// ErrInvalidOperation is returned when the call is not allowed in the
	// current state, e.g. unqueueing buffers that are still pending.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrInvalidValue is returned for out of range arguments.
	ErrInvalidValue = errors.New("invalid value")
	// ErrReleased is returned by owned resources after Release.
	ErrReleased = errors.New("device resource already released")
)
