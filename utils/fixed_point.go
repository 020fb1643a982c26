// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// FloatToFixed quantizes x to a signed integer of bits significant bits,
// rounding to nearest and clamping to the representable range. The result
// sits in the low bits of the word.
func FloatToFixed(x float32, bits int) int32 {
	scale := math.Ldexp(1, bits-1)
	v := math.Round(float64(x) * scale)

	hi := scale - 1
	lo := -scale
	if v > hi {
		v = hi
	} else if v < lo {
		v = lo
	}

	return int32(v)
}

// FixedToFloat is the inverse of FloatToFixed for low aligned samples.
func FixedToFloat(v int32, bits int) float32 {
	return float32(float64(v) / math.Ldexp(1, bits-1))
}

// HighToFloat converts a sample aligned to the top of a 32-bit word.
func HighToFloat(v int32) float32 {
	return float32(float64(v) / (1 << 31))
}
