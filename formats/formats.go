// SPDX-License-Identifier: EPL-2.0

// Package formats wires every decoder variant into an audio.Registry.
package formats

import (
	"sync"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/formats/aiff"
	"github.com/ik5/bitperfect/formats/flac"
	"github.com/ik5/bitperfect/formats/mp3"
	"github.com/ik5/bitperfect/formats/opus"
	"github.com/ik5/bitperfect/formats/vorbis"
	"github.com/ik5/bitperfect/formats/wav"
)

// Register adds the decoders in lookup order.
func Register(reg *audio.Registry) {
	reg.Register("wav", wav.Decoder{})
	reg.Register("aiff", aiff.Decoder{})
	reg.Register("flac", flac.Decoder{})
	reg.Register("mp3", mp3.Decoder{})
	reg.Register("vorbis", vorbis.Decoder{})
	reg.Register("opus", opus.Decoder{})
}

// Default returns a shared registry holding every decoder.
var Default = sync.OnceValue(func() *audio.Registry {
	reg := audio.NewRegistry()
	Register(reg)
	return reg
})
