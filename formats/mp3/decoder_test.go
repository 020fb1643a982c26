// SPDX-License-Identifier: EPL-2.0

package mp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

// mockMP3Reader simulates the gomp3.Decoder for testing
type mockMP3Reader struct {
	sampleRate   int
	samples      []int16 // PCM samples (16-bit stereo)
	offset       int     // in samples
	returnErrors bool
}

func (m *mockMP3Reader) SampleRate() int { return m.sampleRate }
func (m *mockMP3Reader) Length() int64   { return int64(len(m.samples) * 2) }

func (m *mockMP3Reader) Seek(offset int64, whence int) (int64, error) {
	if whence != io.SeekStart || offset < 0 || offset%2 != 0 {
		return 0, errors.New("unsupported seek")
	}
	m.offset = int(offset / 2)
	return offset, nil
}

func (m *mockMP3Reader) Read(buf []byte) (int, error) {
	if m.returnErrors {
		return 0, errors.New("corrupt frame")
	}

	if m.offset >= len(m.samples) {
		return 0, io.EOF
	}

	// Hand out at most 6 bytes per call like a decoder crossing frame
	// boundaries, including odd splits.
	samplesToRead := min(len(buf)/2, len(m.samples)-m.offset, 3)
	for i := range samplesToRead {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(m.samples[m.offset+i]))
	}
	m.offset += samplesToRead

	return samplesToRead * 2, nil
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	_, err := Decoder{}.Decode(bytes.NewReader([]byte("This is not MP3 data")))
	if err == nil {
		t.Error("Decode() error = nil, want error for invalid data")
	}
}

func TestDecoder_EmptyInput(t *testing.T) {
	t.Parallel()

	_, err := Decoder{}.Decode(bytes.NewReader([]byte{}))
	if err == nil {
		t.Error("Decode() error = nil, want error for empty input")
	}
}

func TestDecoder_Extensions(t *testing.T) {
	t.Parallel()

	if exts := (Decoder{}).Extensions(); len(exts) != 1 || exts[0] != "mp3" {
		t.Errorf("Extensions() = %v, want [mp3]", exts)
	}
}

func TestSource_Metadata(t *testing.T) {
	t.Parallel()

	src := newSource(&mockMP3Reader{sampleRate: 44100, samples: make([]int16, 100)})

	if src.SampleRate() != 44100 {
		t.Errorf("SampleRate() = %d, want 44100", src.SampleRate())
	}
	if src.Channels() != 2 {
		t.Errorf("Channels() = %d, want 2", src.Channels())
	}
	if src.BitDepth() != 16 {
		t.Errorf("BitDepth() = %d, want 16", src.BitDepth())
	}
	if src.Frames() != 50 {
		t.Errorf("Frames() = %d, want 50", src.Frames())
	}
	if src.BufSize() <= 0 {
		t.Errorf("BufSize() = %d, want positive value", src.BufSize())
	}
}

func TestSource_ReadSamples(t *testing.T) {
	t.Parallel()

	testSamples := []int16{0, 16384, 32767, -16384, -32768, 8192, -8192, 0}
	src := newSource(&mockMP3Reader{sampleRate: 8000, samples: testSamples})

	dst := make([]float32, 8)
	n, err := src.ReadSamples(dst)
	if err != nil && err != io.EOF {
		t.Fatalf("ReadSamples() error = %v", err)
	}
	if n != 8 {
		t.Errorf("ReadSamples() n = %d, want 8", n)
	}

	expected := []float32{0.0, 0.5, 1.0, -0.5, -1.0, 0.25, -0.25, 0.0}
	for i := range n {
		if math.Abs(float64(dst[i]-expected[i])) > 0.01 {
			t.Errorf("dst[%d] = %v, want ~%v", i, dst[i], expected[i])
		}
	}
}

func TestSource_ReadInt32(t *testing.T) {
	t.Parallel()

	src := newSource(&mockMP3Reader{sampleRate: 44100, samples: []int16{1, -1, 32767, -32768}})

	dst := make([]int32, 4)
	n, err := src.ReadInt32(dst)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}
	if n != 4 {
		t.Fatalf("ReadInt32() n = %d, want 4", n)
	}

	want := []int32{1 << 16, -1 << 16, 32767 << 16, -32768 << 16}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %#x, want %#x", i, dst[i], want[i])
		}
	}
}

func TestSource_ReadSamples_EmptyBuffer(t *testing.T) {
	t.Parallel()

	src := newSource(&mockMP3Reader{sampleRate: 44100, samples: make([]int16, 100)})

	n, err := src.ReadSamples(nil)
	if n != 0 || err != nil {
		t.Errorf("ReadSamples(nil) = %d, %v, want 0, nil", n, err)
	}
}

func TestSource_ReadSamples_EOF(t *testing.T) {
	t.Parallel()

	src := newSource(&mockMP3Reader{sampleRate: 44100, samples: []int16{100, 200, 300, 400, 500, 600}})

	dst := make([]float32, 4)
	n1, err1 := src.ReadSamples(dst)
	if err1 != nil || n1 != 4 {
		t.Errorf("first ReadSamples() = %d, %v, want 4, nil", n1, err1)
	}

	n2, err2 := src.ReadSamples(dst)
	if err2 != io.EOF || n2 != 2 {
		t.Errorf("second ReadSamples() = %d, %v, want 2, EOF", n2, err2)
	}

	n3, err3 := src.ReadSamples(dst)
	if err3 != io.EOF || n3 != 0 {
		t.Errorf("third ReadSamples() = %d, %v, want 0, EOF", n3, err3)
	}
}

func TestSource_ReadSamples_WholeFrames(t *testing.T) {
	t.Parallel()

	src := newSource(&mockMP3Reader{sampleRate: 44100, samples: make([]int16, 20)})

	// 5 samples cover only 2 stereo frames.
	n, err := src.ReadSamples(make([]float32, 5))
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 {
		t.Errorf("ReadSamples(5) n = %d, want 4", n)
	}
}

func TestSource_ReadSamples_Error(t *testing.T) {
	t.Parallel()

	src := newSource(&mockMP3Reader{sampleRate: 44100, samples: make([]int16, 10), returnErrors: true})

	_, err := src.ReadSamples(make([]float32, 4))
	if err == nil || errors.Is(err, io.EOF) {
		t.Errorf("ReadSamples() error = %v, want decode error", err)
	}
}

func TestSource_SeekFrame(t *testing.T) {
	t.Parallel()

	samples := make([]int16, 40)
	for i := range samples {
		samples[i] = int16(i)
	}
	src := newSource(&mockMP3Reader{sampleRate: 44100, samples: samples})

	if err := src.SeekFrame(5); err != nil {
		t.Fatalf("SeekFrame() error = %v", err)
	}

	dst := make([]int32, 2)
	if _, err := src.ReadInt32(dst); err != nil {
		t.Fatal(err)
	}
	if dst[0]>>16 != 10 || dst[1]>>16 != 11 {
		t.Errorf("after SeekFrame(5) got %d, %d, want 10, 11", dst[0]>>16, dst[1]>>16)
	}

	if err := src.SeekFrame(21); err == nil {
		t.Error("SeekFrame() past the end should fail")
	}
}

func TestSource_MultipleReads(t *testing.T) {
	t.Parallel()

	samples := make([]int16, 1000)
	src := newSource(&mockMP3Reader{sampleRate: 44100, samples: samples})

	dst := make([]float32, 256)
	total := 0
	for {
		n, err := src.ReadSamples(dst)
		total += n
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
	}

	if total != len(samples) {
		t.Errorf("total samples = %d, want %d", total, len(samples))
	}
}

func BenchmarkSource_ReadSamples(b *testing.B) {
	samples := make([]int16, 44100*10)
	for i := range samples {
		samples[i] = int16(i % 1000)
	}

	mockReader := &mockMP3Reader{sampleRate: 44100, samples: samples}
	src := newSource(mockReader)
	dst := make([]float32, 4096)

	b.ResetTimer()
	b.ReportAllocs()

	for b.Loop() {
		mockReader.offset = 0
		_, _ = src.ReadSamples(dst)
	}
}
