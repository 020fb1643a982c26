// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/formats/wav"
)

// Decoder is an audio.Decoder that ignores the file content and builds its
// sources with Open. Every Decode call gets a fresh source.
type Decoder struct {
	Exts []string
	Open func() (audio.Source, error)

	opened atomic.Int64
}

func (d *Decoder) Extensions() []string { return d.Exts }

func (d *Decoder) Decode(io.ReadSeeker) (audio.Source, error) {
	d.opened.Add(1)
	return d.Open()
}

// Opened counts the Decode calls.
func (d *Decoder) Opened() int64 { return d.opened.Load() }

// TouchFile creates an empty file called name in a test directory and
// returns its path.
func TouchFile(t testing.TB, name string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, nil, 0o600); err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	return path
}

// WriteRampWAV writes frames of RampValue as an integer WAV file and returns
// its path.
func WriteRampWAV(t testing.TB, name string, rate, channels, bits, frames int) string {
	t.Helper()

	samples := make([]int32, frames*channels)
	for f := range frames {
		for c := range channels {
			samples[f*channels+c] = RampValue(f, c)
		}
	}

	path := filepath.Join(t.TempDir(), name)
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer file.Close()

	if err := wav.WritePCM(file, rate, channels, bits, samples); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
