// SPDX-License-Identifier: EPL-2.0

// Package audio provides the contracts shared by every part of the player.
//
// This package contains:
//   - Source interface for decoded audio input
//   - Decoder interface and the extension Registry
//   - StreamFormat, the layout of device and buffer streams
//   - ChannelMap for routing track channels onto device channels
//   - Metadata read from file tags
//   - The error taxonomy used across the engine
//
// # Source Interface
//
// The Source interface is the foundation of decoding:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    BitDepth() int
//	    Frames() int64
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Sources that store integer PCM may also implement IntSource, which hands
// out samples aligned to the top of a 32-bit word without a float round
// trip. Sources that can reposition implement Seeker.
//
// # Format Registry
//
// Each decoder declares the extensions it handles. Lookups are
// case-insensitive and return the first decoder, in registration order,
// declaring the extension:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	name, decoder, ok := registry.ForPath("track.WAV")
//
// # Sample Format
//
// Float samples are float32 in the range [-1.0, 1.0]. Integer samples are
// int32, aligned high when read from an IntSource and aligned low once
// they are ready for the output path.
//
// # Error Handling
//
// Decoding returns io.EOF when no more data is available. Failures are
// typed: UnsupportedFormatError, DecodeOpenError, DeviceUnavailableError,
// FormatNegotiationError, HoggingError and ConverterError. Each matches its
// sentinel with errors.Is:
//
//	if errors.Is(err, audio.ErrUnsupportedFormat) {
//	    // skip the track
//	}
package audio
