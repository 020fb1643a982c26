// SPDX-License-Identifier: EPL-2.0

// Package opus decodes Ogg Opus files through gopkg.in/hraban/opus.v2.
//
// The library binds libopus and libopusfile through cgo, so the decoder is
// only built with the opus build tag:
//
//	go build -tags opus ./cmd/bitperfect
//
// Without the tag Decoder still claims the .opus extension, parses the
// OpusHead header and returns ErrUnavailable. Output is always 48 kHz float.
// The stream has no frame index, so seeking falls back to reopening the
// file and decoding forward.
package opus
