// SPDX-License-Identifier: EPL-2.0

package flac

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/bitperfect/audio"
	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
)

var (
	// ErrNotFlacFile indicates the stream does not start with a valid FLAC header
	ErrNotFlacFile = errors.New("not a FLAC file")

	// ErrUnsupportedBitDepth is returned for sample sizes above 32 bits
	ErrUnsupportedBitDepth = errors.New("unsupported FLAC bit depth")
)

// flacStream is the part of *flac.Stream the source uses.
type flacStream interface {
	ParseNext() (*frame.Frame, error)
	Seek(sampleNum uint64) (uint64, error)
	Close() error
}

type source struct {
	stream     flacStream
	sampleRate int
	channels   int
	bitDepth   int
	frames     int64

	// current holds the undelivered tail of the last parsed FLAC frame.
	current *frame.Frame
	offset  int
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) BitDepth() int   { return s.bitDepth }
func (s *source) Frames() int64   { return s.frames }
func (s *source) BufSize() int    { return 4096 * s.channels }
func (s *source) Close() error    { return s.stream.Close() }

// next makes sure s.current has samples left, parsing a new frame if needed.
func (s *source) next() error {
	for s.current == nil || s.offset >= int(s.current.BlockSize) {
		f, err := s.stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return io.EOF
			}
			return fmt.Errorf("%w", err)
		}
		s.current = f
		s.offset = 0
	}
	return nil
}

// fill walks whole frames into dst through put and returns the sample count.
func (s *source) fill(n int, put func(i int, v int32)) (int, error) {
	n -= n % s.channels
	written := 0

	for written < n {
		if err := s.next(); err != nil {
			if errors.Is(err, io.EOF) {
				if written == 0 {
					return 0, io.EOF
				}
				return written, io.EOF
			}
			return written, err
		}

		avail := int(s.current.BlockSize) - s.offset
		take := min(avail, (n-written)/s.channels)
		for i := range take {
			for ch := range s.channels {
				put(written, s.current.Subframes[ch].Samples[s.offset+i])
				written++
			}
		}
		s.offset += take
	}

	return written, nil
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	scale := 1 / float32(int64(1)<<(s.bitDepth-1))
	return s.fill(len(dst), func(i int, v int32) {
		dst[i] = float32(v) * scale
	})
}

// ReadInt32 returns samples aligned to the top of the 32-bit word.
func (s *source) ReadInt32(dst []int32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	shift := 32 - s.bitDepth
	return s.fill(len(dst), func(i int, v int32) {
		dst[i] = v << shift
	})
}

// SeekFrame uses the stream's seek table. The library lands on the start of
// the FLAC frame holding the target; the remainder is skipped here.
func (s *source) SeekFrame(target int64) error {
	if target < 0 || (s.frames > 0 && target > s.frames) {
		return fmt.Errorf("seek to frame %d: out of range [0, %d]", target, s.frames)
	}

	// The end of stream is reached by parking after the last sample.
	seekTo := target
	if s.frames > 0 && target == s.frames {
		seekTo--
	}

	start, err := s.stream.Seek(uint64(seekTo))
	if err != nil {
		return fmt.Errorf("%w", err)
	}

	s.current = nil
	if err := s.next(); err != nil {
		return err
	}
	s.offset = int(uint64(target) - start)

	return nil
}

type Decoder struct{}

func (Decoder) Extensions() []string { return []string{"flac"} }

func (Decoder) Decode(r io.ReadSeeker) (audio.Source, error) {
	stream, err := flac.NewSeek(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotFlacFile, err)
	}

	bitDepth := int(stream.Info.BitsPerSample)
	if bitDepth < 4 || bitDepth > 32 {
		_ = stream.Close()
		return nil, fmt.Errorf("%w: %d-bit", ErrUnsupportedBitDepth, bitDepth)
	}

	return &source{
		stream:     stream,
		sampleRate: int(stream.Info.SampleRate),
		channels:   int(stream.Info.NChannels),
		bitDepth:   bitDepth,
		frames:     int64(stream.Info.NSamples),
	}, nil
}
