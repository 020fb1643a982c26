// SPDX-License-Identifier: EPL-2.0

package bitperfect

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/decoder"
	"github.com/ik5/bitperfect/formats"
	"github.com/ik5/bitperfect/resample"
)

// DefaultChunkBytes is the size of the buffers RenderFile decodes into.
const DefaultChunkBytes = 8 << 20

// Options controls RenderFile. The zero value decodes at the native rate
// into float samples.
type Options struct {
	// Registry resolves the decoder. Nil means every built-in format.
	Registry *audio.Registry
	// SampleRate is the output rate, 0 for the rate of the file.
	SampleRate int
	// Bits selects integer output with that many significant bits in the
	// low end of each int32. 0 means float.
	Bits int
	// Engine and Quality pick the sample rate converter. Only used when
	// SampleRate differs from the rate of the file.
	Engine  resample.Engine
	Quality resample.Quality
	// ChunkBytes bounds each decode pass, DefaultChunkBytes when 0.
	ChunkBytes int
	Logger     *log.Logger
}

// Rendered is a whole track in memory. Exactly one of Float and Int is set.
type Rendered struct {
	Format   audio.StreamFormat
	Float    []float32
	Int      []int32
	Metadata audio.Metadata
}

// Frames is the length of the track in frames.
func (r *Rendered) Frames() int64 {
	if r.Format.Channels == 0 {
		return 0
	}
	if r.Int != nil {
		return int64(len(r.Int) / r.Format.Channels)
	}
	return int64(len(r.Float) / r.Format.Channels)
}

// RenderFile decodes the file at path the way the playback engine loads it,
// chunk after chunk until the track ends, and returns the interleaved
// samples.
func RenderFile(ctx context.Context, path string, opts Options) (*Rendered, error) {
	reg := opts.Registry
	if reg == nil {
		reg = formats.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	chunk := opts.ChunkBytes
	if chunk <= 0 {
		chunk = DefaultChunkBytes
	}

	factory := decoder.NewFactory(reg,
		decoder.WithConverter(opts.Engine, opts.Quality),
		decoder.WithLogger(logger),
	)
	d, err := factory.Create(path)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	if opts.SampleRate > 0 {
		if err := d.SetTargetSampleRate(opts.SampleRate); err != nil {
			return nil, err
		}
	}

	out := &Rendered{Metadata: d.Metadata()}
	if opts.Bits > 0 {
		out.Format = audio.IntFormat(d.TargetRate(), d.Channels(), opts.Bits)
		if err := d.SetIntegerMode(true, out.Format); err != nil {
			return nil, err
		}
		out.Int = []int32{}
	} else {
		out.Format = audio.Float32Format(d.TargetRate(), d.Channels())
		out.Float = []float32{}
	}

	ch := int64(d.Channels())
	var pos int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		buf, res, err := d.LoadChunk(ctx, pos, chunk)
		if err != nil {
			return nil, fmt.Errorf("render %s at frame %d: %w", path, pos, err)
		}

		n := res.Frames * ch
		if buf.Int != nil {
			out.Int = append(out.Int, buf.Int[:n]...)
		} else {
			out.Float = append(out.Float, buf.Float[:n]...)
		}

		if res.Completed || res.Frames == 0 {
			break
		}
		pos = res.NextPosition
	}

	logger.Debug("rendered",
		"file", path,
		"format", out.Format,
		"frames", out.Frames(),
	)

	return out, nil
}
