// SPDX-License-Identifier: EPL-2.0

package mp3_test

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/formats/mp3"
)

// ExampleDecoder_Decode shows how to decode an MP3 file.
func ExampleDecoder_Decode() {
	f, err := os.Open("input.mp3")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	src, err := mp3.Decoder{}.Decode(f)
	if err != nil {
		log.Fatal(err)
	}

	duration := time.Duration(src.Frames()) * time.Second / time.Duration(src.SampleRate())
	fmt.Printf("Decoded MP3: %d Hz, %d channels, %s\n", src.SampleRate(), src.Channels(), duration)
}

// ExampleDecoder_Decode_seek starts decoding thirty seconds in.
func ExampleDecoder_Decode_seek() {
	f, err := os.Open("input.mp3")
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	src, err := mp3.Decoder{}.Decode(f)
	if err != nil {
		log.Fatal(err)
	}

	if err := src.(audio.Seeker).SeekFrame(int64(30 * src.SampleRate())); err != nil {
		log.Fatal(err)
	}

	buf := make([]float32, 4096)
	n, _ := src.ReadSamples(buf)
	fmt.Printf("Read %d samples\n", n)
}
