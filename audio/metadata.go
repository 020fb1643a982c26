// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dhowden/tag"
)

// Picture is an embedded cover image.
type Picture struct {
	MIMEType string
	Data     []byte
}

// Metadata is what the UI shows for a track. Title falls back to the file
// name when the file carries no tags.
type Metadata struct {
	Title       string
	Artist      string
	Album       string
	Composer    string
	TrackNumber int
	Cover       *Picture
	Duration    time.Duration

	BitDepth       int
	FileSampleRate int
	PlayingRate    int
	IntegerMode    bool
}

// ReadMetadata reads whatever tags r carries. A file without tags is not an
// error: the zero Metadata is returned.
func ReadMetadata(r io.ReadSeeker) (Metadata, error) {
	var md Metadata

	m, err := tag.ReadFrom(r)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return md, nil
	}
	if err != nil {
		return md, fmt.Errorf("reading tags: %w", err)
	}

	md.Title = m.Title()
	md.Artist = m.Artist()
	md.Album = m.Album()
	md.Composer = m.Composer()
	md.TrackNumber, _ = m.Track()

	if p := m.Picture(); p != nil {
		md.Cover = &Picture{MIMEType: p.MIMEType, Data: p.Data}
	}

	return md, nil
}
