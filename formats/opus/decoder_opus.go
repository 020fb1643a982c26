// SPDX-License-Identifier: EPL-2.0

//go:build opus

package opus

import (
	"errors"
	"fmt"
	"io"

	"github.com/ik5/bitperfect/audio"
	hopus "gopkg.in/hraban/opus.v2"
)

type source struct {
	stream   *hopus.Stream
	channels int
}

func (s *source) SampleRate() int { return SampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) BitDepth() int   { return 0 }
func (s *source) Frames() int64   { return 0 }
func (s *source) BufSize() int    { return 5760 * s.channels }
func (s *source) Close() error    { return s.stream.Close() }

// ReadSamples decodes whole Opus packets; libopusfile reports frames.
func (s *source) ReadSamples(dst []float32) (int, error) {
	if len(dst) < s.channels {
		return 0, nil
	}

	frames, err := s.stream.ReadFloat32(dst[:len(dst)-len(dst)%s.channels])
	if err != nil {
		if errors.Is(err, io.EOF) {
			return frames * s.channels, io.EOF
		}
		return frames * s.channels, fmt.Errorf("%w", err)
	}
	return frames * s.channels, nil
}

func (Decoder) Decode(r io.ReadSeeker) (audio.Source, error) {
	head, err := ReadHead(r)
	if err != nil {
		return nil, err
	}

	stream, err := hopus.NewStream(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotOpusFile, err)
	}

	return &source{stream: stream, channels: head.Channels}, nil
}
