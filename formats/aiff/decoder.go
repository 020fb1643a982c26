// SPDX-License-Identifier: EPL-2.0

package aiff

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/utils"
)

// aiffReader is an interface for aiff.Decoder to allow testing
type aiffReader interface {
	Format() *goaudio.Format
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// source wraps go-audio aiff.Decoder to implement audio.Source
type source struct {
	dec        aiffReader
	sampleRate int
	channels   int
	bitDepth   int
	frames     int64
	pos        int64
	intBuf     *goaudio.IntBuffer

	// reopen rewinds the file and returns a fresh decoder positioned at
	// the first sample. AIFF has no frame index, so seeking decodes
	// forward from there.
	reopen func() (aiffReader, error)
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) BitDepth() int   { return s.bitDepth }
func (s *source) Frames() int64   { return s.frames }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int {
	if s.intBuf != nil {
		return cap(s.intBuf.Data)
	}
	return 4096
}

// read pulls up to n samples, rounded down to whole frames, into s.intBuf.
func (s *source) read(n int) (int, error) {
	n -= n % s.channels
	if n == 0 {
		return 0, nil
	}

	if s.intBuf == nil || cap(s.intBuf.Data) < n {
		s.intBuf = &goaudio.IntBuffer{
			Data:           make([]int, n),
			Format:         s.dec.Format(),
			SourceBitDepth: s.bitDepth,
		}
	}
	s.intBuf.Data = s.intBuf.Data[:n]

	got, err := s.dec.PCMBuffer(s.intBuf)
	got -= got % s.channels
	s.pos += int64(got / s.channels)

	if got == 0 {
		if err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	if got < n && err == nil {
		return got, io.EOF
	}
	return got, err
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.read(len(dst))

	scale := float32(int64(1) << (s.bitDepth - 1))
	for i := range n {
		dst[i] = float32(s.intBuf.Data[i]) / scale
	}

	return n, err
}

// ReadInt32 returns samples aligned to the top of the 32-bit word.
func (s *source) ReadInt32(dst []int32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.read(len(dst))

	for i := range n {
		dst[i] = int32(s.intBuf.Data[i])
	}
	utils.AlignLowToHigh(dst[:n], s.bitDepth)

	return n, err
}

func (s *source) SeekFrame(frame int64) error {
	if s.reopen == nil {
		return audio.ErrSeekNotSupported
	}
	if frame < 0 || (s.frames > 0 && frame > s.frames) {
		return fmt.Errorf("seek to frame %d: out of range [0, %d]", frame, s.frames)
	}

	dec, err := s.reopen()
	if err != nil {
		return err
	}
	s.dec = dec
	s.pos = 0

	skip := make([]int32, 4096*s.channels)
	for s.pos < frame {
		want := min(int64(len(skip)), (frame-s.pos)*int64(s.channels))
		_, err := s.ReadInt32(skip[:want])
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
	}

	return nil
}

type Decoder struct{}

func (Decoder) Extensions() []string { return []string{"aif", "aiff", "aifc"} }

func open(rs io.ReadSeeker) (*aiff.Decoder, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAiffFile
	}

	dec.ReadInfo()
	return dec, nil
}

func (Decoder) Decode(r io.ReadSeeker) (audio.Source, error) {
	dec, err := open(r)
	if err != nil {
		return nil, err
	}

	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d-bit", ErrUnsupportedBitDepth, bitDepth)
	}

	format := dec.Format()
	if format == nil || format.NumChannels <= 0 {
		return nil, ErrUnsupportedAiffLayout
	}

	return &source{
		dec:        dec,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
		bitDepth:   bitDepth,
		frames:     int64(dec.NumSampleFrames),
		reopen: func() (aiffReader, error) {
			return open(r)
		},
	}, nil
}
