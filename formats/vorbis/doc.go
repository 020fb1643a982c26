// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis files with github.com/jfreymuth/oggvorbis.
//
// Vorbis decodes straight to float, so the source does not implement
// audio.IntSource and reports a BitDepth of 0. Seeking uses the library's
// page bisection through SetPosition and needs a seekable input, which
// Decoder.Decode always has.
//
//	src, err := vorbis.Decoder{}.Decode(file)
//	err = src.(audio.Seeker).SeekFrame(48000 * 60)
package vorbis
