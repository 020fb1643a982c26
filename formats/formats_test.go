// SPDX-License-Identifier: EPL-2.0

package formats

import (
	"testing"

	"github.com/ik5/bitperfect/audio"
)

func TestRegister_ExtensionMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"a.wav", "wav", true},
		{"a.WAVE", "wav", true},
		{"a.aif", "aiff", true},
		{"a.aiff", "aiff", true},
		{"a.AIFC", "aiff", true},
		{"a.flac", "flac", true},
		{"a.mp3", "mp3", true},
		{"a.ogg", "vorbis", true},
		{"a.oga", "vorbis", true},
		{"a.opus", "opus", true},
		{"a.m4a", "", false},
		{"a.txt", "", false},
		{"noext", "", false},
	}

	reg := audio.NewRegistry()
	Register(reg)

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			name, dec, ok := reg.ForPath(tt.path)
			if ok != tt.ok || name != tt.want {
				t.Errorf("ForPath(%q) = %q, %v, want %q, %v", tt.path, name, ok, tt.want, tt.ok)
			}
			if ok && dec == nil {
				t.Errorf("ForPath(%q) returned a nil decoder", tt.path)
			}
		})
	}
}

func TestDefault_Shared(t *testing.T) {
	t.Parallel()

	if Default() != Default() {
		t.Error("Default() returned different registries")
	}
	if got := len(Default().Extensions()); got != 10 {
		t.Errorf("Default() knows %d extensions, want 10", got)
	}
}
