// SPDX-License-Identifier: EPL-2.0

package resample

import (
	resampler "github.com/tphakala/go-audio-resampler"
)

// monoEngine is the part of the library's float32 engine we use. One engine
// runs per channel so channel count never reaches the library.
type monoEngine interface {
	Process(in []float32) ([]float32, error)
	Flush() ([]float32, error)
}

// newMonoEngine maps our five levels onto the library presets.
func newMonoEngine(inRate, outRate float64, q Quality) (monoEngine, error) {
	switch q {
	case QualityLowest:
		return resampler.NewEngineFloat32(inRate, outRate, resampler.QualityQuick)
	case QualityLow:
		return resampler.NewEngineFloat32(inRate, outRate, resampler.QualityLow)
	case QualityMedium:
		return resampler.NewEngineFloat32(inRate, outRate, resampler.QualityMedium)
	case QualityHigh:
		return resampler.NewEngineFloat32(inRate, outRate, resampler.QualityHigh)
	default:
		return resampler.NewEngineFloat32(inRate, outRate, resampler.QualityVeryHigh)
	}
}

type soxr struct {
	inRate   int
	outRate  int
	channels int
	quality  Quality

	engines []monoEngine
	planar  []float32
	pending [][]float32
}

func newSoxr(inRate, outRate, channels int, q Quality) (*soxr, error) {
	s := &soxr{
		inRate:   inRate,
		outRate:  outRate,
		channels: channels,
		quality:  q,
		pending:  make([][]float32, channels),
	}

	if err := s.reset(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *soxr) reset() error {
	engines := make([]monoEngine, s.channels)
	for ch := range engines {
		e, err := newMonoEngine(float64(s.inRate), float64(s.outRate), s.quality)
		if err != nil {
			return err
		}
		engines[ch] = e
	}

	s.engines = engines
	for ch := range s.pending {
		s.pending[ch] = s.pending[ch][:0]
	}

	return nil
}

func (s *soxr) process(dst, in []float32) ([]float32, error) {
	if len(in)%s.channels != 0 {
		return dst, errInvalidInput
	}

	frames := len(in) / s.channels
	if cap(s.planar) < frames {
		s.planar = make([]float32, frames)
	}
	planar := s.planar[:frames]

	for ch, e := range s.engines {
		for f := range frames {
			planar[f] = in[f*s.channels+ch]
		}

		out, err := e.Process(planar)
		if err != nil {
			return dst, err
		}
		s.pending[ch] = append(s.pending[ch], out...)
	}

	return s.interleave(dst), nil
}

func (s *soxr) flush(dst []float32) ([]float32, error) {
	for ch, e := range s.engines {
		out, err := e.Flush()
		if err != nil {
			return dst, err
		}
		s.pending[ch] = append(s.pending[ch], out...)
	}

	return s.interleave(dst), nil
}

// interleave emits the frames every channel has produced and keeps the rest.
func (s *soxr) interleave(dst []float32) []float32 {
	n := len(s.pending[0])
	for _, p := range s.pending[1:] {
		n = min(n, len(p))
	}

	for f := range n {
		for ch := range s.channels {
			dst = append(dst, s.pending[ch][f])
		}
	}

	for ch, p := range s.pending {
		s.pending[ch] = p[:copy(p, p[n:])]
	}

	return dst
}
