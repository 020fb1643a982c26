// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"errors"
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/ik5/bitperfect/audio"
)

// go-mp3 always produces 16-bit little endian stereo.
const (
	channels      = 2
	bytesPerFrame = 4
)

// mp3Reader is an interface for gomp3.Decoder to allow testing
type mp3Reader interface {
	io.ReadSeeker
	SampleRate() int
	Length() int64
}

type source struct {
	dec        mp3Reader
	sampleRate int
	frames     int64
	buf        []byte
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return channels }
func (s *source) BitDepth() int   { return 16 }
func (s *source) Frames() int64   { return s.frames }
func (s *source) Close() error    { return nil }
func (s *source) BufSize() int    { return cap(s.buf) / 2 } // return sample capacity, not bytes

// read fills s.buf with whole frames and returns the number of samples.
func (s *source) read(samples int) (int, error) {
	bytesNeeded := (samples / channels) * bytesPerFrame
	if bytesNeeded == 0 {
		return 0, nil
	}
	if cap(s.buf) < bytesNeeded {
		s.buf = make([]byte, bytesNeeded)
	}
	s.buf = s.buf[:bytesNeeded]

	n, err := io.ReadFull(s.dec, s.buf)
	n -= n % bytesPerFrame

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		err = io.EOF
	case err != nil && !errors.Is(err, io.EOF):
		err = fmt.Errorf("%w", err)
	}

	return n / 2, err
}

func (s *source) ReadSamples(dst []float32) (int, error) {
	n, err := s.read(len(dst))

	for i := range n {
		val := int16(uint16(s.buf[2*i]) | uint16(s.buf[2*i+1])<<8)
		dst[i] = float32(val) / 32768.0
	}

	return n, err
}

// ReadInt32 returns the decoded 16-bit samples in the top half of each word.
func (s *source) ReadInt32(dst []int32) (int, error) {
	n, err := s.read(len(dst))

	for i := range n {
		val := int16(uint16(s.buf[2*i]) | uint16(s.buf[2*i+1])<<8)
		dst[i] = int32(val) << 16
	}

	return n, err
}

func (s *source) SeekFrame(frame int64) error {
	if frame < 0 || (s.frames > 0 && frame > s.frames) {
		return fmt.Errorf("seek to frame %d: out of range [0, %d]", frame, s.frames)
	}
	if _, err := s.dec.Seek(frame*bytesPerFrame, io.SeekStart); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

type Decoder struct{}

func (Decoder) Extensions() []string { return []string{"mp3"} }

func (Decoder) Decode(r io.ReadSeeker) (audio.Source, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	return newSource(dec), nil
}

func newSource(dec mp3Reader) *source {
	var frames int64
	if l := dec.Length(); l > 0 {
		frames = l / bytesPerFrame
	}

	return &source{
		dec:        dec,
		sampleRate: dec.SampleRate(),
		frames:     frames,
		buf:        make([]byte, 8192),
	}
}
