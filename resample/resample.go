// SPDX-License-Identifier: EPL-2.0

package resample

import (
	"errors"
	"fmt"

	"github.com/ik5/bitperfect/audio"
)

var errInvalidInput = errors.New("input length must be a multiple of channels")

// Engine selects the conversion implementation.
type Engine int

const (
	// EngineNative is the built-in streaming cubic interpolator.
	EngineNative Engine = iota
	// EngineSoxr is the polyphase FIR converter from go-audio-resampler.
	EngineSoxr
)

func (e Engine) String() string {
	switch e {
	case EngineNative:
		return "native"
	case EngineSoxr:
		return "soxr"
	default:
		return fmt.Sprintf("engine(%d)", int(e))
	}
}

// ParseEngine maps a configuration name to an Engine.
func ParseEngine(s string) (Engine, error) {
	switch s {
	case "native", "":
		return EngineNative, nil
	case "soxr", "library":
		return EngineSoxr, nil
	}
	return EngineNative, fmt.Errorf("unknown converter engine %q", s)
}

// Quality goes from QualityLowest to QualityMax.
type Quality int

const (
	QualityLowest Quality = iota
	QualityLow
	QualityMedium
	QualityHigh
	QualityMax
)

func (q Quality) Valid() bool { return q >= QualityLowest && q <= QualityMax }

// Config selects the engine and the conversion.
type Config struct {
	Engine   Engine
	Quality  Quality
	InRate   int
	OutRate  int
	Channels int
}

type kernel interface {
	process(dst, in []float32) ([]float32, error)
	flush(dst []float32) ([]float32, error)
	reset() error
}

// Converter turns interleaved float frames at InRate into frames at OutRate.
// It keeps its filter state between calls: feeding a stream in pieces gives
// the same output as feeding it whole. After Flush the total output is
// exactly OutputFrames(input frames) long.
//
// A Converter is not safe for concurrent use.
type Converter struct {
	cfg Config
	k   kernel

	inFrames  int64
	outFrames int64
	flushed   bool

	last []float32
}

// OutputFrames is the number of frames a conversion of in frames produces.
func OutputFrames(in int64, inRate, outRate int) int64 {
	if inRate <= 0 {
		return 0
	}
	return in * int64(outRate) / int64(inRate)
}

func New(cfg Config) (*Converter, error) {
	if cfg.InRate <= 0 || cfg.OutRate <= 0 || cfg.Channels <= 0 {
		return nil, &audio.ConverterError{
			Engine: cfg.Engine.String(),
			Err:    fmt.Errorf("invalid conversion %d -> %d Hz, %d channels", cfg.InRate, cfg.OutRate, cfg.Channels),
		}
	}
	if !cfg.Quality.Valid() {
		return nil, &audio.ConverterError{Engine: cfg.Engine.String(), Err: fmt.Errorf("invalid quality %d", cfg.Quality)}
	}

	c := &Converter{
		cfg:  cfg,
		last: make([]float32, cfg.Channels),
	}

	switch {
	case cfg.InRate == cfg.OutRate:
		c.k = passthrough{}
	case cfg.Engine == EngineSoxr:
		k, err := newSoxr(cfg.InRate, cfg.OutRate, cfg.Channels, cfg.Quality)
		if err != nil {
			return nil, &audio.ConverterError{Engine: cfg.Engine.String(), Err: err}
		}
		c.k = k
	case cfg.Engine == EngineNative:
		c.k = newCubic(cfg.InRate, cfg.OutRate, cfg.Channels, cfg.Quality == QualityLowest)
	default:
		return nil, &audio.ConverterError{Engine: cfg.Engine.String(), Err: errors.New("unknown engine")}
	}

	return c, nil
}

func (c *Converter) Config() Config { return c.cfg }

// Ratio is OutRate/InRate.
func (c *Converter) Ratio() float64 { return float64(c.cfg.OutRate) / float64(c.cfg.InRate) }

// Process converts in and appends the result to dst.
func (c *Converter) Process(dst, in []float32) ([]float32, error) {
	if c.flushed {
		return dst, &audio.ConverterError{Engine: c.cfg.Engine.String(), Err: errors.New("process after flush")}
	}
	if len(in) == 0 {
		return dst, nil
	}
	if len(in)%c.cfg.Channels != 0 {
		return dst, &audio.ConverterError{Engine: c.cfg.Engine.String(), Err: errInvalidInput}
	}

	start := len(dst)
	dst, err := c.k.process(dst, in)
	if err != nil {
		return dst[:start], &audio.ConverterError{Engine: c.cfg.Engine.String(), Err: err}
	}

	c.inFrames += int64(len(in) / c.cfg.Channels)
	c.account(dst[start:])

	return dst, nil
}

// Flush drains the engine at the end of the input and appends the tail to
// dst. The output is trimmed or padded with the last frame so the total
// frame count is exact.
func (c *Converter) Flush(dst []float32) ([]float32, error) {
	if c.flushed {
		return dst, nil
	}
	c.flushed = true

	start := len(dst)
	dst, err := c.k.flush(dst)
	if err != nil {
		return dst[:start], &audio.ConverterError{Engine: c.cfg.Engine.String(), Err: err}
	}

	want := OutputFrames(c.inFrames, c.cfg.InRate, c.cfg.OutRate)
	have := c.outFrames + int64((len(dst)-start)/c.cfg.Channels)

	switch {
	case have > want:
		excess := int(have-want) * c.cfg.Channels
		keep := max(len(dst)-excess, start)
		dst = dst[:keep]
	case have < want:
		if len(dst) > start {
			copy(c.last, dst[len(dst)-c.cfg.Channels:])
		}
		for range want - have {
			dst = append(dst, c.last...)
		}
	}

	c.account(dst[start:])

	return dst, nil
}

// Reset drops all state so the converter can start a new, unrelated stream.
func (c *Converter) Reset() error {
	c.inFrames = 0
	c.outFrames = 0
	c.flushed = false
	for i := range c.last {
		c.last[i] = 0
	}

	if err := c.k.reset(); err != nil {
		return &audio.ConverterError{Engine: c.cfg.Engine.String(), Err: err}
	}
	return nil
}

// Frames reports input consumed and output produced so far.
func (c *Converter) Frames() (in, out int64) { return c.inFrames, c.outFrames }

func (c *Converter) account(out []float32) {
	n := len(out) / c.cfg.Channels
	if n == 0 {
		return
	}
	c.outFrames += int64(n)
	copy(c.last, out[len(out)-c.cfg.Channels:])
}

type passthrough struct{}

func (passthrough) process(dst, in []float32) ([]float32, error) { return append(dst, in...), nil }
func (passthrough) flush(dst []float32) ([]float32, error)       { return dst, nil }
func (passthrough) reset() error                                 { return nil }
