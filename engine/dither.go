// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"math"

	"github.com/ik5/bitperfect/config"
	"github.com/ik5/bitperfect/utils"
)

type ditherMode uint32

const (
	ditherNone ditherMode = iota
	ditherRectangular
	ditherTriangular
)

func ditherModeOf(d config.Dither) ditherMode {
	switch d {
	case config.DitherRectangular:
		return ditherRectangular
	case config.DitherTriangular:
		return ditherTriangular
	default:
		return ditherNone
	}
}

// maxDitherBits is the widest output that gets noise. float32 has no
// resolution below that.
const maxDitherBits = 24

func (r *renderer) setDither(d config.Dither) { r.dither.Store(uint32(ditherModeOf(d))) }

// quantize converts v to a low aligned integer of bits bits, adding noise
// of the given mode first. Digital silence stays silent. RT only.
func (r *renderer) quantize(v float32, bits int, mode ditherMode) int32 {
	if mode != ditherNone && v != 0 && bits <= maxDitherBits {
		lsb := float32(math.Ldexp(1, 1-bits))
		switch mode {
		case ditherRectangular:
			v += (r.uniform() - 0.5) * lsb
		case ditherTriangular:
			v += (r.uniform() - r.uniform()) * lsb
		}
	}
	return utils.FloatToFixed(v, bits)
}

// uniform is in [0, 1).
func (r *renderer) uniform() float32 {
	return float32(r.noise.Uint64()>>40) / (1 << 24)
}
