// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"io"
	"sync"
	"testing"
)

// mockDecoder is a test decoder implementation
type mockDecoder struct {
	name string
	exts []string
}

func (d *mockDecoder) Extensions() []string { return d.exts }

func (d *mockDecoder) Decode(r io.ReadSeeker) (Source, error) {
	return silence{}, nil
}

// silence is an empty stereo stream.
type silence struct{}

func (silence) SampleRate() int                    { return 44100 }
func (silence) Channels() int                      { return 2 }
func (silence) BitDepth() int                      { return 16 }
func (silence) Frames() int64                      { return 0 }
func (silence) ReadSamples([]float32) (int, error) { return 0, io.EOF }
func (silence) BufSize() int                       { return 4096 }
func (silence) Close() error                       { return nil }

// failingDecoder always returns an error
type failingDecoder struct{}

func (d *failingDecoder) Extensions() []string { return []string{"bad"} }

func (d *failingDecoder) Decode(r io.ReadSeeker) (Source, error) {
	return nil, errors.New("decode failed")
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	decoder := &mockDecoder{name: "wav", exts: []string{"wav"}}

	registry.Register("wav", decoder)

	got, ok := registry.Get("wav")
	if !ok {
		t.Fatal("Registry.Get() failed to retrieve registered decoder")
	}

	if got != decoder {
		t.Error("Registry.Get() returned different decoder instance")
	}
}

func TestRegistry_GetNonExistent(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()

	_, ok := registry.Get("nonexistent")
	if ok {
		t.Error("Registry.Get() returned ok=true for non-existent format")
	}
}

func TestRegistry_ForExtension(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	wavDecoder := &mockDecoder{name: "wav", exts: []string{"wav", "wave"}}
	mp3Decoder := &mockDecoder{name: "mp3", exts: []string{"mp3"}}
	oggDecoder := &mockDecoder{name: "vorbis", exts: []string{"ogg", "oga"}}

	registry.Register("wav", wavDecoder)
	registry.Register("mp3", mp3Decoder)
	registry.Register("vorbis", oggDecoder)

	tests := []struct {
		ext      string
		wantName string
		want     Decoder
		wantOK   bool
	}{
		{"wav", "wav", wavDecoder, true},
		{".wav", "wav", wavDecoder, true},
		{"WAVE", "wav", wavDecoder, true},
		{"Mp3", "mp3", mp3Decoder, true},
		{"oga", "vorbis", oggDecoder, true},
		{"flac", "", nil, false},
		{"", "", nil, false},
		{".", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			t.Parallel()

			name, got, ok := registry.ForExtension(tt.ext)
			if ok != tt.wantOK {
				t.Fatalf("ForExtension(%q) ok = %v, want %v", tt.ext, ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if name != tt.wantName {
				t.Errorf("ForExtension(%q) name = %q, want %q", tt.ext, name, tt.wantName)
			}
			if got != tt.want {
				t.Errorf("ForExtension(%q) returned wrong decoder", tt.ext)
			}
		})
	}
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	first := &mockDecoder{name: "first", exts: []string{"ogg"}}
	second := &mockDecoder{name: "second", exts: []string{"ogg", "opus"}}

	registry.Register("first", first)
	registry.Register("second", second)

	name, got, ok := registry.ForExtension("ogg")
	if !ok || got != first || name != "first" {
		t.Errorf("ForExtension(ogg) = %q, %v, %v; want first registered decoder", name, got, ok)
	}

	name, got, ok = registry.ForExtension("opus")
	if !ok || got != second || name != "second" {
		t.Errorf("ForExtension(opus) = %q, %v, %v; want second decoder", name, got, ok)
	}
}

func TestRegistry_ForPath(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("wav", &mockDecoder{exts: []string{"wav"}})

	if _, _, ok := registry.ForPath("/music/Track 01.WAV"); !ok {
		t.Error("ForPath() did not match upper case extension")
	}
	if _, _, ok := registry.ForPath("/music/noext"); ok {
		t.Error("ForPath() matched a file without extension")
	}
}

func TestRegistry_Overwrite(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	decoder1 := &mockDecoder{name: "first", exts: []string{"wav"}}
	decoder2 := &mockDecoder{name: "second", exts: []string{"wav"}}
	other := &mockDecoder{name: "other", exts: []string{"wav"}}

	registry.Register("wav", decoder1)
	registry.Register("other", other)
	registry.Register("wav", decoder2)

	got, ok := registry.Get("wav")
	if !ok {
		t.Fatal("Registry.Get() failed after overwrite")
	}

	if got != decoder2 {
		t.Error("Registry.Get() did not return the overwritten decoder")
	}

	// Overwriting keeps the lookup position.
	if _, d, _ := registry.ForExtension("wav"); d != decoder2 {
		t.Error("ForExtension() lost the position of the overwritten decoder")
	}
}

func TestRegistry_Extensions(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("a", &mockDecoder{exts: []string{"wav", "WAVE"}})
	registry.Register("b", &mockDecoder{exts: []string{"wav", "mp3"}})

	got := registry.Extensions()
	want := []string{"wav", "wave", "mp3"}

	if len(got) != len(want) {
		t.Fatalf("Extensions() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Extensions()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	decoder := &mockDecoder{name: "test", exts: []string{"tst"}}

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			registry.Register("format", decoder)
		}()
		go func() {
			defer wg.Done()
			registry.ForExtension("tst")
		}()
	}
	wg.Wait()

	if _, ok := registry.Get("format"); !ok {
		t.Error("Registry.Get() failed after concurrent registration")
	}
}

func TestRegistry_FailingDecoder(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("bad", &failingDecoder{})

	_, dec, ok := registry.ForExtension("bad")
	if !ok {
		t.Fatal("ForExtension(bad) not found")
	}

	if _, err := dec.Decode(nil); err == nil {
		t.Error("Decode() error = nil, want error")
	}
}

func TestStreamFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		f             StreamFormat
		bytesPerFrame int
		shift         uint
	}{
		{"float stereo", Float32Format(44100, 2), 8, 0},
		{"16-bit stereo", IntFormat(44100, 2, 16), 4, 16},
		{"24-bit packed", IntFormat(96000, 2, 24), 6, 8},
		{"32-bit", IntFormat(192000, 2, 32), 8, 0},
		{"20-bit in 24", StreamFormat{Channels: 2, BitsPerChannel: 20, BytesPerSample: 3}, 6, 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.f.BytesPerFrame(); got != tt.bytesPerFrame {
				t.Errorf("BytesPerFrame() = %d, want %d", got, tt.bytesPerFrame)
			}
			if got := tt.f.AlignShift(); got != tt.shift {
				t.Errorf("AlignShift() = %d, want %d", got, tt.shift)
			}
		})
	}
}

func TestStreamFormat_SameLayout(t *testing.T) {
	t.Parallel()

	a := IntFormat(44100, 2, 24)
	b := IntFormat(96000, 2, 24)
	c := Float32Format(44100, 2)

	if !a.SameLayout(b) {
		t.Error("formats differing only in rate should share layout")
	}
	if a.SameLayout(c) {
		t.Error("int and float formats should not share layout")
	}
}
