// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// Float32ToInt16 scales x by 32767 and rounds to the nearest integer.
// Input outside [-1, 1] is clamped first, so the result never wraps.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}

	return int16(math.Round(float64(x) * math.MaxInt16))
}

// CastBuffer converts the first n samples of in to 16-bit PCM in out.
// n is capped to the shorter of the two slices; the count written is returned.
func CastBuffer(in []float32, out []int16, n int) int {
	n = min(n, len(in), len(out))
	for i := range n {
		out[i] = Float32ToInt16(in[i])
	}

	return n
}

// Int16ToFloat32 maps a PCM sample back to [-1, 1].
func Int16ToFloat32(v int16) float32 {
	if v == math.MinInt16 {
		return -1
	}

	return float32(v) / math.MaxInt16
}

// IntToFloat32 normalizes a signed PCM sample of the given bit depth to
// [-1, 1]. Unknown depths are treated as 16-bit.
func IntToFloat32(v int, bitDepth int) float32 {
	var full float32
	switch bitDepth {
	case 8:
		full = 128.0
	case 24:
		full = 8388608.0
	case 32:
		full = 2147483648.0
	default:
		full = 32768.0
	}

	return float32(v) / full
}
