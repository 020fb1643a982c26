// SPDX-License-Identifier: EPL-2.0

// Package mp3 provides MP3 audio file decoding.
//
// This package uses github.com/hajimehoshi/go-mp3, which always produces
// 16-bit stereo PCM. Mono files are upmixed by the library.
//
//	src, err := mp3.Decoder{}.Decode(file)
//	buf := make([]float32, 4096)
//	n, err := src.ReadSamples(buf)
//
// The source also implements audio.IntSource, returning the decoder's
// 16-bit output in the top half of each int32, and audio.Seeker. Seeking is
// a byte seek into the decoded stream, which go-mp3 resolves from its frame
// table.
//
// Frames reports the decoded length when the library can compute it, and
// zero otherwise.
package mp3
