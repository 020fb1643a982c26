// SPDX-License-Identifier: EPL-2.0

// Package flac decodes FLAC files with github.com/mewkiz/flac.
//
// Samples come out of the library as planar int32 at the stream's native
// width. The source interleaves them and implements audio.IntSource for bit
// exact output, and audio.Seeker on top of the stream's seek table.
package flac
