// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/utils"
)

func encodePCM(t *testing.T, rate, channels, bits int, samples []int32) *bytes.Reader {
	t.Helper()

	buf := new(bytes.Buffer)
	if err := WritePCM(buf, rate, channels, bits, samples); err != nil {
		t.Fatalf("WritePCM() error = %v", err)
	}
	return bytes.NewReader(buf.Bytes())
}

func readAll(t *testing.T, src audio.Source) []float32 {
	t.Helper()

	var out []float32
	buf := make([]float32, 7)
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
}

func TestDecoder_Extensions(t *testing.T) {
	t.Parallel()

	exts := Decoder{}.Extensions()
	if len(exts) != 2 || exts[0] != "wav" || exts[1] != "wave" {
		t.Errorf("Extensions() = %v, want [wav wave]", exts)
	}
}

func TestDecoder_PCM16Mono(t *testing.T) {
	t.Parallel()

	samples := []int16{0, 16384, -16384, 32767, -32768}
	buf := new(bytes.Buffer)
	if err := WriteWAV16(buf, 16000, samples); err != nil {
		t.Fatal(err)
	}

	src, err := Decoder{}.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	defer src.Close()

	if src.SampleRate() != 16000 {
		t.Errorf("SampleRate() = %d, want 16000", src.SampleRate())
	}
	if src.Channels() != 1 {
		t.Errorf("Channels() = %d, want 1", src.Channels())
	}
	if src.BitDepth() != 16 {
		t.Errorf("BitDepth() = %d, want 16", src.BitDepth())
	}
	if src.Frames() != int64(len(samples)) {
		t.Errorf("Frames() = %d, want %d", src.Frames(), len(samples))
	}

	got := readAll(t, src)
	if len(got) != len(samples) {
		t.Fatalf("read %d samples, want %d", len(got), len(samples))
	}
	for i, s := range samples {
		if want := float32(s) / 32768; got[i] != want {
			t.Errorf("sample %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestDecoder_IntegerBitExact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		bits    int
		samples []int32
	}{
		{"8-bit", 8, []int32{0, 1, -1, 127, -128, 64}},
		{"16-bit", 16, []int32{0, 1, -1, 32767, -32768, 1234}},
		{"24-bit", 24, []int32{0, 1, -1, 1<<23 - 1, -1 << 23, 0x123456}},
		{"32-bit", 32, []int32{0, 1, -1, 1<<31 - 1, -1 << 31, 0x12345678}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, err := Decoder{}.Decode(encodePCM(t, 96000, 2, tt.bits, tt.samples))
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			is, ok := src.(audio.IntSource)
			if !ok {
				t.Fatal("integer WAV source does not implement audio.IntSource")
			}

			got := make([]int32, len(tt.samples)+2)
			n, err := is.ReadInt32(got)
			if err != nil && !errors.Is(err, io.EOF) {
				t.Fatalf("ReadInt32() error = %v", err)
			}
			if n != len(tt.samples) {
				t.Fatalf("ReadInt32() n = %d, want %d", n, len(tt.samples))
			}

			got = got[:n]
			utils.AlignHighToLow(got, tt.bits)
			for i, want := range tt.samples {
				if got[i] != want {
					t.Errorf("sample %d = %d, want %d", i, got[i], want)
				}
			}
		})
	}
}

func TestDecoder_Float32(t *testing.T) {
	t.Parallel()

	samples := []float32{0, 0.5, -0.5, 0.25, 1, -1}
	buf := new(bytes.Buffer)
	if err := WriteFloat32(buf, 48000, 2, samples); err != nil {
		t.Fatal(err)
	}

	src, err := Decoder{}.Decode(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if _, ok := src.(audio.IntSource); ok {
		t.Error("float WAV source should not implement audio.IntSource")
	}
	if src.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", src.Frames())
	}

	got := readAll(t, src)
	for i, want := range samples {
		if got[i] != want {
			t.Errorf("sample %d = %v, want %v", i, got[i], want)
		}
	}
}

func TestDecoder_SeekFrame(t *testing.T) {
	t.Parallel()

	samples := make([]int32, 200)
	for i := range samples {
		samples[i] = int32(i)
	}

	src, err := Decoder{}.Decode(encodePCM(t, 44100, 2, 16, samples))
	if err != nil {
		t.Fatal(err)
	}
	seeker, ok := src.(audio.Seeker)
	if !ok {
		t.Fatal("WAV source does not implement audio.Seeker")
	}

	// Read a little first so the seek has something to undo.
	scratch := make([]float32, 10)
	if _, err := src.ReadSamples(scratch); err != nil {
		t.Fatal(err)
	}

	if err := seeker.SeekFrame(40); err != nil {
		t.Fatalf("SeekFrame() error = %v", err)
	}

	got := make([]int32, 4)
	if _, err := src.(audio.IntSource).ReadInt32(got); err != nil {
		t.Fatal(err)
	}
	utils.AlignHighToLow(got, 16)
	for i, want := range []int32{80, 81, 82, 83} {
		if got[i] != want {
			t.Errorf("after seek sample %d = %d, want %d", i, got[i], want)
		}
	}

	if err := seeker.SeekFrame(101); err == nil {
		t.Error("SeekFrame() past the end should fail")
	}
	if err := seeker.SeekFrame(-1); err == nil {
		t.Error("SeekFrame(-1) should fail")
	}
}

func TestDecoder_PartialFrameRead(t *testing.T) {
	t.Parallel()

	src, err := Decoder{}.Decode(encodePCM(t, 8000, 2, 16, []int32{1, 2, 3, 4, 5, 6}))
	if err != nil {
		t.Fatal(err)
	}

	// An odd destination only receives whole frames.
	buf := make([]float32, 3)
	n, err := src.ReadSamples(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("ReadSamples(3) n = %d, want 2", n)
	}
}

func TestDecoder_TruncatedData(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	if err := WritePCM(buf, 8000, 1, 16, make([]int32, 100)); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()[:headerSize+10]

	src, err := Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	got := readAll(t, src)
	if len(got) != 5 {
		t.Errorf("read %d samples from truncated file, want 5", len(got))
	}
	if src.Frames() != 5 {
		t.Errorf("Frames() after truncation = %d, want 5", src.Frames())
	}
}

func TestDecoder_Errors(t *testing.T) {
	t.Parallel()

	adpcm := new(bytes.Buffer)
	_ = writeHeader(adpcm, 2, 8000, 1, 16, 4)
	adpcm.Write([]byte{0, 0, 0, 0})

	float64bit := new(bytes.Buffer)
	_ = writeHeader(float64bit, formatFloat, 8000, 1, 64, 8)
	float64bit.Write(make([]byte, 8))

	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"not a wav file", []byte("this is definitely not a RIFF stream at all"), ErrNotWavFile},
		{"empty", nil, ErrNotWavFile},
		{"adpcm", adpcm.Bytes(), ErrUnsupportedEncoding},
		{"64-bit float", float64bit.Bytes(), ErrUnsupportedEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decoder{}.Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decode() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestSource_ReadSamplesEmptyBuffer(t *testing.T) {
	t.Parallel()

	src, err := Decoder{}.Decode(encodePCM(t, 8000, 1, 16, []int32{1, 2}))
	if err != nil {
		t.Fatal(err)
	}

	n, err := src.ReadSamples(nil)
	if n != 0 || err != nil {
		t.Errorf("ReadSamples(nil) = %d, %v, want 0, nil", n, err)
	}
}

func TestSource_ReadAfterEOF(t *testing.T) {
	t.Parallel()

	src, err := Decoder{}.Decode(encodePCM(t, 8000, 1, 16, []int32{1, 2}))
	if err != nil {
		t.Fatal(err)
	}

	_ = readAll(t, src)

	n, err := src.ReadSamples(make([]float32, 4))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() after EOF = %d, %v, want 0, EOF", n, err)
	}
}

func BenchmarkSource_ReadInt32(b *testing.B) {
	samples := make([]int32, 2*48000)
	buf := new(bytes.Buffer)
	if err := WritePCM(buf, 48000, 2, 24, samples); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()

	dst := make([]int32, 4096)

	b.ResetTimer()
	b.ReportAllocs()

	for range b.N {
		src, _ := Decoder{}.Decode(bytes.NewReader(data))
		is := src.(audio.IntSource)
		for {
			if _, err := is.ReadInt32(dst); err != nil {
				break
			}
		}
	}
}
