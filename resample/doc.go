// SPDX-License-Identifier: EPL-2.0

// Package resample converts float audio between sample rates.
//
// Two engines are available and are chosen once per stream:
//   - EngineNative: streaming Catmull-Rom cubic interpolation, with linear
//     interpolation at QualityLowest and a one-pole low-pass when
//     downsampling
//   - EngineSoxr: the polyphase FIR converter of go-audio-resampler, with
//     the five quality levels mapped onto its Quick..VeryHigh presets
//
// Both keep their filter state between calls, so a track converted in
// chunks is identical to the same track converted in one call:
//
//	conv, _ := resample.New(resample.Config{
//	    Engine:   resample.EngineSoxr,
//	    Quality:  resample.QualityMax,
//	    InRate:   44100,
//	    OutRate:  48000,
//	    Channels: 2,
//	})
//	out, _ = conv.Process(out, chunk1)
//	out, _ = conv.Process(out, chunk2)
//	out, _ = conv.Flush(out)
//
// After Flush the output holds exactly OutputFrames(inputFrames) frames.
package resample
