// SPDX-License-Identifier: EPL-2.0

// Package bitperfect plays audio files through an output device without
// touching the samples on the way: the file is decoded at the rate the
// device runs at, in the integer format the device takes when it can, into
// one of two buffers the real-time callback plays from.
//
// # Layout
//
// The work is split in packages:
//   - audio: stream formats, the decoder registry and the typed errors
//   - formats/...: WAV, AIFF, FLAC, MP3, Ogg Vorbis and Opus decoders
//   - resample: the native and soxr sample rate converters
//   - decoder: turns a file into buffers at a target rate and format
//   - buffer and loader: the two slots and their background loads
//   - output: the device abstraction, with malgo and oto hosts
//   - engine: the playback state machine and the render callback
//   - config: preferences, loaded and watched with viper
//
// # Playback
//
//	host, _ := malgo.New()
//	eng := engine.New(host, decoder.NewFactory(formats.Default()))
//	defer eng.Close()
//
//	_ = eng.LoadFile(ctx, "track.flac", 0)
//	_ = eng.InitiatePlayback(ctx)
//
// # Offline rendering
//
// RenderFile runs the same decode path without a device, which is handy to
// check what a device would receive:
//
//	r, err := bitperfect.RenderFile(ctx, "track.flac", bitperfect.Options{
//	    SampleRate: 96000,
//	    Bits:       24,
//	})
//
// The command in cmd/bitperfect wraps both.
package bitperfect
