// SPDX-License-Identifier: EPL-2.0

package opus

import (
	"bytes"
	"errors"
	"io"
)

// Opus always decodes at 48 kHz regardless of the input rate in the header.
const SampleRate = 48000

var (
	// ErrNotOpusFile indicates no OpusHead packet was found
	ErrNotOpusFile = errors.New("not an Ogg Opus file")

	// ErrUnavailable is returned when the binary was built without libopusfile
	ErrUnavailable = errors.New("opus support not compiled in (build with -tags opus)")
)

// Head is the part of the OpusHead identification header we need.
type Head struct {
	Channels    int
	PreSkip     int
	InputRate   int
	MappingType int
}

// ReadHead finds the OpusHead packet in the first Ogg page and rewinds r.
func ReadHead(r io.ReadSeeker) (Head, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Head{}, err
	}

	page := make([]byte, 512)
	n, err := io.ReadFull(r, page)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return Head{}, ErrNotOpusFile
	}
	page = page[:n]

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Head{}, err
	}

	if !bytes.HasPrefix(page, []byte("OggS")) {
		return Head{}, ErrNotOpusFile
	}

	i := bytes.Index(page, []byte("OpusHead"))
	if i < 0 || len(page) < i+19 {
		return Head{}, ErrNotOpusFile
	}
	h := page[i:]

	head := Head{
		Channels:    int(h[9]),
		PreSkip:     int(h[10]) | int(h[11])<<8,
		InputRate:   int(h[12]) | int(h[13])<<8 | int(h[14])<<16 | int(h[15])<<24,
		MappingType: int(h[18]),
	}
	if head.Channels == 0 {
		return Head{}, ErrNotOpusFile
	}

	return head, nil
}

// Decoder claims the opus extension in every build so lookups stay stable.
type Decoder struct{}

func (Decoder) Extensions() []string { return []string{"opus"} }
