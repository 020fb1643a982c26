// SPDX-License-Identifier: EPL-2.0

//go:build !opus

package opus

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecoder_Unavailable(t *testing.T) {
	t.Parallel()

	_, err := Decoder{}.Decode(bytes.NewReader(oggOpusHead(2, 48000)))
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("Decode() error = %v, want ErrUnavailable", err)
	}

	_, err = Decoder{}.Decode(bytes.NewReader([]byte("junk")))
	if !errors.Is(err, ErrNotOpusFile) {
		t.Errorf("Decode(junk) error = %v, want ErrNotOpusFile", err)
	}
}
