// SPDX-License-Identifier: EPL-2.0

package utils

// AlignHighToLow moves samples whose bits significant bits occupy the top of
// a 32-bit word down to the bottom of it. The shift is arithmetic, so the
// sign is kept. Every channel and frame is shifted by the same amount.
func AlignHighToLow(buf []int32, bits int) {
	if bits <= 0 || bits >= 32 {
		return
	}

	shift := uint(32 - bits)
	for i, v := range buf {
		buf[i] = v >> shift
	}
}

// AlignLowToHigh is the inverse of AlignHighToLow.
func AlignLowToHigh(buf []int32, bits int) {
	if bits <= 0 || bits >= 32 {
		return
	}

	shift := uint(32 - bits)
	for i, v := range buf {
		buf[i] = v << shift
	}
}
