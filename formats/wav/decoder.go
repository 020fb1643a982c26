// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	gowav "github.com/go-audio/wav"
	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/utils"
)

const (
	formatPCM        = 1
	formatFloat      = 3
	formatExtensible = 0xFFFE
)

// source reads the PCM chunk straight from the underlying file. go-audio/wav
// has already validated the header and positioned the reader on the data.
type source struct {
	r          io.ReadSeeker
	sampleRate int
	channels   int
	bitDepth   int
	float      bool

	dataStart  int64
	frames     int64
	blockAlign int
	pos        int64 // frames read so far

	buf []byte
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) BitDepth() int   { return s.bitDepth }
func (s *source) Frames() int64   { return s.frames }
func (s *source) BufSize() int    { return cap(s.buf) / (s.blockAlign / s.channels) }
func (s *source) Close() error    { return nil }

// read fills s.buf with up to samples samples worth of bytes and returns the
// number of whole samples read.
func (s *source) read(samples int) (int, error) {
	frames := int64(samples / s.channels)
	if left := s.frames - s.pos; frames > left {
		frames = left
	}
	if frames <= 0 {
		return 0, io.EOF
	}

	size := int(frames) * s.blockAlign
	if cap(s.buf) < size {
		s.buf = make([]byte, size)
	}
	s.buf = s.buf[:size]

	n, err := io.ReadFull(s.r, s.buf)
	got := n / s.blockAlign
	s.pos += int64(got)

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF):
		// Truncated data chunk: deliver what is there, then stop.
		s.frames = s.pos
		if got == 0 {
			return 0, io.EOF
		}
	case err != nil:
		return 0, fmt.Errorf("%w", err)
	}

	return got * s.channels, nil
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.read(len(dst))
	if n == 0 {
		return 0, err
	}

	bps := s.blockAlign / s.channels
	for i := range n {
		b := s.buf[i*bps : i*bps+bps]
		if s.float {
			dst[i] = math.Float32frombits(binary.LittleEndian.Uint32(b))
			continue
		}
		dst[i] = utils.HighToFloat(decodeHigh(b))
	}

	if s.pos >= s.frames {
		return n, io.EOF
	}
	return n, nil
}

func (s *source) SeekFrame(frame int64) error {
	if frame < 0 || frame > s.frames {
		return fmt.Errorf("seek to frame %d: out of range [0, %d]", frame, s.frames)
	}
	if _, err := s.r.Seek(s.dataStart+frame*int64(s.blockAlign), io.SeekStart); err != nil {
		return fmt.Errorf("%w", err)
	}
	s.pos = frame
	return nil
}

// intSource adds bit exact integer reads for PCM files.
type intSource struct {
	*source
}

// ReadInt32 returns samples aligned to the top of the 32-bit word.
func (s intSource) ReadInt32(dst []int32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	n, err := s.read(len(dst))
	if n == 0 {
		return 0, err
	}

	bps := s.blockAlign / s.channels
	for i := range n {
		dst[i] = decodeHigh(s.buf[i*bps : i*bps+bps])
	}

	if s.pos >= s.frames {
		return n, io.EOF
	}
	return n, nil
}

// decodeHigh decodes one little endian PCM sample of len(b) bytes into the
// top bits of an int32. 8-bit WAV is unsigned.
func decodeHigh(b []byte) int32 {
	switch len(b) {
	case 1:
		return int32(int8(b[0]-128)) << 24
	case 2:
		return int32(int16(binary.LittleEndian.Uint16(b))) << 16
	case 3:
		return int32(uint32(b[0])<<8 | uint32(b[1])<<16 | uint32(b[2])<<24)
	default:
		return int32(binary.LittleEndian.Uint32(b))
	}
}

type Decoder struct{}

func (Decoder) Extensions() []string { return []string{"wav", "wave"} }

func (Decoder) Decode(r io.ReadSeeker) (audio.Source, error) {
	dec := gowav.NewDecoder(r)
	if !dec.IsValidFile() {
		if err := dec.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: %w", ErrNotWavFile, err)
		}
		return nil, ErrNotWavFile
	}

	channels := int(dec.NumChans)
	bitDepth := int(dec.BitDepth)

	var float bool
	switch dec.WavAudioFormat {
	case formatPCM, formatExtensible:
		if bitDepth != 8 && bitDepth != 16 && bitDepth != 24 && bitDepth != 32 {
			return nil, fmt.Errorf("%w: %d-bit", ErrUnsupportedEncoding, bitDepth)
		}
	case formatFloat:
		if bitDepth != 32 {
			return nil, fmt.Errorf("%w: %d-bit float", ErrUnsupportedEncoding, bitDepth)
		}
		float = true
	default:
		return nil, fmt.Errorf("%w: format tag %#x", ErrUnsupportedEncoding, dec.WavAudioFormat)
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoDataChunk, err)
	}

	dataStart, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	blockAlign := channels * ((bitDepth + 7) / 8)
	if blockAlign == 0 {
		return nil, ErrUnsupportedWavLayout
	}

	src := &source{
		r:          r,
		sampleRate: int(dec.SampleRate),
		channels:   channels,
		bitDepth:   bitDepth,
		float:      float,
		dataStart:  dataStart,
		frames:     int64(dec.PCMSize) / int64(blockAlign),
		blockAlign: blockAlign,
		buf:        make([]byte, 0, 4096*blockAlign),
	}

	if float {
		return src, nil
	}
	return intSource{src}, nil
}
