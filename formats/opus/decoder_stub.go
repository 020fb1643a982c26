// SPDX-License-Identifier: EPL-2.0

//go:build !opus

package opus

import (
	"io"

	"github.com/ik5/bitperfect/audio"
)

// Decode validates the header so probes can still tell a real Opus file
// from junk, then reports that decoding is unavailable.
func (Decoder) Decode(r io.ReadSeeker) (audio.Source, error) {
	if _, err := ReadHead(r); err != nil {
		return nil, err
	}
	return nil, ErrUnavailable
}
