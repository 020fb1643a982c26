// SPDX-License-Identifier: EPL-2.0

package audio

import "fmt"

// StreamFormat describes the layout of a PCM stream as a device or a buffer
// slot sees it.
type StreamFormat struct {
	SampleRate int
	Channels   int
	// BitsPerChannel is the number of significant bits per sample.
	BitsPerChannel int
	// BytesPerSample is the container size, e.g. 3 for packed 24-bit or 4 for 24-in-32.
	BytesPerSample int
	Float          bool
	// AlignedHigh is set when the significant bits sit at the top of the container.
	AlignedHigh bool
}

// Float32Format is the format used for every float buffer in the engine.
func Float32Format(rate, channels int) StreamFormat {
	return StreamFormat{
		SampleRate:     rate,
		Channels:       channels,
		BitsPerChannel: 32,
		BytesPerSample: 4,
		Float:          true,
	}
}

// IntFormat is a signed integer format with bits significant bits.
func IntFormat(rate, channels, bits int) StreamFormat {
	return StreamFormat{
		SampleRate:     rate,
		Channels:       channels,
		BitsPerChannel: bits,
		BytesPerSample: (bits + 7) / 8,
	}
}

// BytesPerFrame is the size of one interleaved frame.
func (f StreamFormat) BytesPerFrame() int {
	return f.BytesPerSample * f.Channels
}

// AlignShift is the right shift that moves a high-aligned sample of this
// format to the bottom of a 32-bit word.
func (f StreamFormat) AlignShift() uint {
	if f.Float || f.BitsPerChannel <= 0 || f.BitsPerChannel >= 32 {
		return 0
	}
	return uint(32 - f.BitsPerChannel)
}

// SameLayout reports whether two formats differ only in sample rate.
func (f StreamFormat) SameLayout(o StreamFormat) bool {
	return f.Channels == o.Channels &&
		f.BitsPerChannel == o.BitsPerChannel &&
		f.BytesPerSample == o.BytesPerSample &&
		f.Float == o.Float
}

func (f StreamFormat) String() string {
	kind := "int"
	if f.Float {
		kind = "float"
	}
	return fmt.Sprintf("%dHz/%dch/%d-bit %s", f.SampleRate, f.Channels, f.BitsPerChannel, kind)
}
