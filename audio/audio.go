// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"io"
	"path/filepath"
	"strings"
	"sync"
)

type Source interface {
	// SampleRate of the PCM stream in Hz.
	SampleRate() int
	// Channels count (e.g., 1=mono, 2=stereo).
	Channels() int
	// BitDepth is the native resolution of the stored samples (16 for MP3, 24 for most hi-res files),
	// or 0 for codecs that decode straight to float.
	BitDepth() int
	// Frames is the total length in frames, or 0 when the container does not say.
	// Compressed formats may only give an estimate here.
	Frames() int64
	// ReadSamples fills dst with interleaved float32 samples in [-1,1].
	// Returns number of float32 values written (not frames). When n == 0 with err == io.EOF, the stream is finished.
	ReadSamples(dst []float32) (n int, err error)

	BufSize() int

	// Close releases any resources.
	Close() error
}

// IntSource is implemented by sources that store integer PCM and can hand it
// out without a float round trip. Samples are aligned to the most significant
// bits of the 32-bit word.
type IntSource interface {
	ReadInt32(dst []int32) (n int, err error)
}

// Seeker is implemented by sources that can reposition to an arbitrary frame.
type Seeker interface {
	SeekFrame(frame int64) error
}

// Decoder constructs a Source from an input stream and declares the file
// extensions (lower case, no dot) it handles.
type Decoder interface {
	Extensions() []string
	Decode(r io.ReadSeeker) (Source, error)
}

type entry struct {
	name string
	dec  Decoder
}

// Registry for decoders by format key (e.g., "wav", "mp3", "vorbis").
// Extension lookups go through the decoders in registration order and return
// the first one that declares the extension.
type Registry struct {
	codecs []entry

	mtx *sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		mtx: &sync.RWMutex{},
	}
}

// Register adds d under format. Registering an existing format replaces the
// decoder but keeps its position.
func (r *Registry) Register(format string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for i := range r.codecs {
		if r.codecs[i].name == format {
			r.codecs[i].dec = d
			return
		}
	}
	r.codecs = append(r.codecs, entry{name: format, dec: d})
}

func (r *Registry) Get(format string) (Decoder, bool) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, e := range r.codecs {
		if e.name == format {
			return e.dec, true
		}
	}
	return nil, false
}

// ForExtension returns the first decoder declaring ext. The leading dot is
// optional and the match is case-insensitive.
func (r *Registry) ForExtension(ext string) (string, Decoder, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if ext == "" {
		return "", nil, false
	}

	r.mtx.RLock()
	defer r.mtx.RUnlock()

	for _, e := range r.codecs {
		for _, x := range e.dec.Extensions() {
			if strings.EqualFold(x, ext) {
				return e.name, e.dec, true
			}
		}
	}
	return "", nil, false
}

// ForPath is ForExtension applied to the extension of path.
func (r *Registry) ForPath(path string) (string, Decoder, bool) {
	return r.ForExtension(filepath.Ext(path))
}

// Extensions lists every extension known to the registry, in lookup order.
func (r *Registry) Extensions() []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	var out []string
	seen := make(map[string]struct{})
	for _, e := range r.codecs {
		for _, x := range e.dec.Extensions() {
			x = strings.ToLower(x)
			if _, ok := seen[x]; ok {
				continue
			}
			seen[x] = struct{}{}
			out = append(out, x)
		}
	}
	return out
}
