// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF files using github.com/go-audio/aiff.
//
// Only 16 and 24-bit integer PCM is accepted. Sources do not implement
// audio.Rewinder; a looping stream reopens the file instead.
package aiff
