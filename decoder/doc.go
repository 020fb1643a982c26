// SPDX-License-Identifier: EPL-2.0

// Package decoder turns an audio file into buffers ready for playback.
//
// A Factory picks the format decoder by file extension and returns a
// Decoder. Before the first load the caller fixes the target sample rate and,
// optionally, an integer output layout; after that the decoder fills buffers
// chunk by chunk:
//
//	d, err := factory.Create("track.flac")
//	if err != nil {
//		return err
//	}
//	defer d.Close()
//
//	_ = d.SetTargetSampleRate(96000)
//	buf, res, err := d.LoadInitialBuffer(ctx, 256<<20)
//	for err == nil && !res.Completed {
//		buf, res, err = d.LoadChunk(ctx, res.NextPosition, 256<<20)
//	}
//
// Loading where the previous chunk stopped continues the stream, converter
// state included, so a track loaded in chunks is sample for sample the same
// as one loaded whole. Any other start position repositions the source.
//
// In integer mode samples come out as int32 with the device's significant
// bits at the low end. Integer sources played at their own rate are copied
// without a float round trip.
package decoder
