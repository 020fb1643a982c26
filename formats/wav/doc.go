// SPDX-License-Identifier: EPL-2.0

// Package wav reads and writes RIFF/WAVE files.
//
// Header parsing and chunk walking is done by github.com/go-audio/wav. Once
// the data chunk is found the decoder reads PCM straight from the file, so
// SeekFrame is a single Seek call.
//
// # Supported Formats
//
//   - integer PCM, 8, 16, 24 and 32 bits, including WAVE_FORMAT_EXTENSIBLE
//   - 32-bit IEEE float
//   - any channel count and sample rate
//
// Integer files return a source that also implements audio.IntSource, which
// yields samples in the top bits of an int32 with no float round trip:
//
//	src, _ := wav.Decoder{}.Decode(file)
//	if ints, ok := src.(audio.IntSource); ok {
//	    n, err := ints.ReadInt32(buf)
//	}
//
// # Writing WAV Files
//
// WritePCM writes interleaved integer samples (right aligned) at 8 to 32
// bits. WriteFloat32 writes IEEE float. WriteWAV16 is a shortcut for mono
// 16-bit.
//
// # Errors
//
//   - ErrNotWavFile: the input is not a RIFF/WAVE stream
//   - ErrUnsupportedEncoding: compressed or unusual sample formats
//   - ErrNoDataChunk: no data chunk after the header
//   - ErrUnsupportedWavLayout: inconsistent channel/sample layout
package wav
