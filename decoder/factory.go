// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/resample"
)

// Factory creates decoders for files by extension.
type Factory struct {
	registry *audio.Registry
	engine   resample.Engine
	quality  resample.Quality
	logger   *log.Logger
}

type Option func(*Factory)

// WithConverter selects the sample rate converter used by every decoder the
// factory creates.
func WithConverter(engine resample.Engine, quality resample.Quality) Option {
	return func(f *Factory) {
		f.engine = engine
		f.quality = quality
	}
}

func WithLogger(l *log.Logger) Option {
	return func(f *Factory) {
		f.logger = l
	}
}

func NewFactory(reg *audio.Registry, opts ...Option) *Factory {
	f := &Factory{
		registry: reg,
		engine:   resample.EngineNative,
		quality:  resample.QualityHigh,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Supported reports whether some decoder declares the extension of path.
func (f *Factory) Supported(path string) bool {
	_, _, ok := f.registry.ForPath(path)
	return ok
}

// Create opens path with the first decoder that declares its extension.
// The error is an *audio.UnsupportedFormatError when there is none and an
// *audio.DecodeOpenError when the file cannot be opened or parsed.
func (f *Factory) Create(path string) (*Decoder, error) {
	format, dec, ok := f.registry.ForPath(path)
	if !ok {
		return nil, &audio.UnsupportedFormatError{
			Path: path,
			Ext:  strings.TrimPrefix(filepath.Ext(path), "."),
		}
	}

	logger := f.logger.With("file", filepath.Base(path), "format", format)

	md, err := readTags(path)
	if err != nil {
		logger.Debug("no usable tags", "err", err)
	}
	if md.Title == "" {
		md.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	file, src, err := open(path, dec)
	if err != nil {
		return nil, &audio.DecodeOpenError{Path: path, Err: err}
	}

	if src.Channels() <= 0 || src.SampleRate() <= 0 {
		_ = src.Close()
		_ = file.Close()
		return nil, &audio.DecodeOpenError{
			Path: path,
			Err:  fmt.Errorf("invalid stream: %d channels at %d Hz", src.Channels(), src.SampleRate()),
		}
	}

	d := &Decoder{
		path:       path,
		format:     format,
		dec:        dec,
		file:       file,
		src:        src,
		engine:     f.engine,
		quality:    f.quality,
		logger:     logger,
		nativeRate: src.SampleRate(),
		targetRate: src.SampleRate(),
		channels:   src.Channels(),
		bitDepth:   src.BitDepth(),
		srcFrames:  src.Frames(),
		md:         md,
	}

	logger.Debug("opened",
		"rate", d.nativeRate,
		"channels", d.channels,
		"bits", d.bitDepth,
		"frames", d.srcFrames,
	)

	return d, nil
}

func open(path string, dec audio.Decoder) (*os.File, audio.Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	src, err := dec.Decode(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}
	return file, src, nil
}

func readTags(path string) (audio.Metadata, error) {
	file, err := os.Open(path)
	if err != nil {
		return audio.Metadata{}, err
	}
	defer file.Close()

	return audio.ReadMetadata(file)
}
