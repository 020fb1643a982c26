// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF and AIFF-C files through github.com/go-audio/aiff.
//
// 8, 16, 24 and 32-bit big endian PCM is supported. The returned source
// implements audio.IntSource for bit exact integer reads and audio.Seeker.
// AIFF carries no seek table, so SeekFrame rewinds the file and decodes
// forward to the target frame.
//
//	src, err := aiff.Decoder{}.Decode(file)
//	if errors.Is(err, aiff.ErrUnsupportedBitDepth) {
//	    // 12-bit and other odd sizes
//	}
//
// Errors:
//   - ErrNotAiffFile: the input is not a FORM/AIFF stream
//   - ErrUnsupportedBitDepth: sample size other than 8, 16, 24 or 32
//   - ErrUnsupportedAiffLayout: missing or invalid COMM chunk
package aiff
