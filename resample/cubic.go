// SPDX-License-Identifier: EPL-2.0

package resample

import (
	"math"

	"github.com/ik5/bitperfect/utils"
)

// cubic converts interleaved frames pushed into it using cubic (or, at the
// lowest quality, linear) interpolation. Works on interleaved samples and
// preserves channel count. Includes basic anti-aliasing filtering when
// downsampling.
//
// Output frame k sits at source position k*inRate/outRate. The position is
// computed from k in integer arithmetic instead of being accumulated, so the
// output does not depend on how the input was split into calls.
type cubic struct {
	inRate   int64
	outRate  int64
	channels int
	linear   bool

	// Ring buffer holding the newest 4 frames, indexed by absolute frame
	// number modulo 4.
	frames [4][]float32

	received int64 // frames pushed so far
	next     int64 // index of the next output frame

	// Simple low-pass filter state for anti-aliasing (when downsampling)
	filterState []float32
	useFilter   bool
	filterAlpha float32

	taps [4]float32
}

func newCubic(inRate, outRate, channels int, linear bool) *cubic {
	c := &cubic{
		inRate:      int64(inRate),
		outRate:     int64(outRate),
		channels:    channels,
		linear:      linear,
		useFilter:   inRate > outRate,
		filterState: make([]float32, channels),
	}

	if c.useFilter {
		// One-pole low-pass with its corner at the destination Nyquist
		// frequency. For real band limiting use the soxr engine.
		fc := 0.5 * float64(outRate)
		c.filterAlpha = float32(1 - math.Exp(-2*math.Pi*fc/float64(inRate)))
	}

	for i := range c.frames {
		c.frames[i] = make([]float32, channels)
	}

	return c
}

// lookahead is how many frames past the left neighbour the kernel needs.
func (c *cubic) lookahead() int64 {
	if c.linear {
		return 1
	}
	return 2
}

func (c *cubic) push(x []float32) {
	slot := c.frames[c.received&3]
	copy(slot, x)

	if c.useFilter {
		if c.received == 0 {
			// Initialize filter state with first sample to avoid warm-up transients
			copy(c.filterState, x)
		}
		for ch := range c.channels {
			// One-pole low-pass: y[n] = alpha * x[n] + (1-alpha) * y[n-1]
			slot[ch] = c.filterAlpha*slot[ch] + (1-c.filterAlpha)*c.filterState[ch]
			c.filterState[ch] = slot[ch]
		}
	}

	c.received++
}

// frame returns frame j, duplicating edge frames outside [0, received).
func (c *cubic) frame(j int64) []float32 {
	if j < 0 {
		j = 0
	}
	if j > c.received-1 {
		j = c.received - 1
	}
	return c.frames[j&3]
}

func (c *cubic) emit(dst []float32, k int64) []float32 {
	num := k * c.inRate
	i := num / c.outRate
	alpha := float32(float64(num%c.outRate) / float64(c.outRate))

	if c.linear {
		y1, y2 := c.frame(i), c.frame(i+1)
		for ch := range c.channels {
			dst = append(dst, utils.LinearInterpolate(y1[ch], y2[ch], alpha))
		}
		return dst
	}

	y0, y1, y2, y3 := c.frame(i-1), c.frame(i), c.frame(i+1), c.frame(i+2)
	for ch := range c.channels {
		dst = append(dst, utils.CubicInterpolate(y0[ch], y1[ch], y2[ch], y3[ch], alpha))
	}
	return dst
}

func (c *cubic) process(dst, in []float32) ([]float32, error) {
	if len(in)%c.channels != 0 {
		return dst, errInvalidInput
	}

	la := c.lookahead()
	for f := 0; f < len(in); f += c.channels {
		c.push(in[f : f+c.channels])

		for {
			i := c.next * c.inRate / c.outRate
			if i+la > c.received-1 {
				break
			}
			dst = c.emit(dst, c.next)
			c.next++
		}
	}

	return dst, nil
}

func (c *cubic) flush(dst []float32) ([]float32, error) {
	if c.received == 0 {
		return dst, nil
	}

	total := OutputFrames(c.received, int(c.inRate), int(c.outRate))
	for ; c.next < total; c.next++ {
		dst = c.emit(dst, c.next)
	}

	return dst, nil
}

func (c *cubic) reset() error {
	c.received = 0
	c.next = 0
	for i := range c.filterState {
		c.filterState[i] = 0
	}
	return nil
}
