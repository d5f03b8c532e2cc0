// SPDX-License-Identifier: EPL-2.0

// Package device describes the native playback API the streaming engine
// drives and wraps its handles in owned types.
//
// # Contract
//
// Device follows the OpenAL buffer-queue model: sources play a FIFO of
// buffers, report how many are queued and how many were processed, and stop
// on their own when the queue runs dry. package device/soft implements it in
// pure Go.
//
// # Owned Resources
//
// Source and BufferRing own a device handle each. Release is idempotent and
// safe to race; after it, calls fail with ErrReleased instead of touching a
// deleted handle.
//
// # Error Policy
//
// Every call made through Source or BufferRing passes its error to a
// Checker. The Checker's Policy decides whether the error is ignored, logged
// to the console, logged to a file, raised to the caller, or any combination:
//
//	chk, err := device.OpenChecker(device.LogConsole|device.LogFile, "audio-errors.log")
//	src, err := device.NewSource(dev, chk)
//
// Only Raise makes Check return the error. The default policy logs to the
// console.
package device
