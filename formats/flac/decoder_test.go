// SPDX-License-Identifier: EPL-2.0

package flac

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/ik5/bitperfect/audio"
	"github.com/mewkiz/flac/frame"
)

// mockStream serves fixed size FLAC frames from planar samples.
type mockStream struct {
	planar    [][]int32
	blockSize int
	pos       int // next sample index
	closed    bool
	failAt    int
}

func (m *mockStream) ParseNext() (*frame.Frame, error) {
	total := len(m.planar[0])
	if m.failAt > 0 && m.pos >= m.failAt {
		return nil, errors.New("crc mismatch")
	}
	if m.pos >= total {
		return nil, io.EOF
	}

	n := min(m.blockSize, total-m.pos)
	f := &frame.Frame{Header: frame.Header{BlockSize: uint16(n)}}
	for ch := range m.planar {
		f.Subframes = append(f.Subframes, &frame.Subframe{Samples: m.planar[ch][m.pos : m.pos+n]})
	}
	m.pos += n
	return f, nil
}

func (m *mockStream) Seek(sampleNum uint64) (uint64, error) {
	start := int(sampleNum) / m.blockSize * m.blockSize
	m.pos = start
	return uint64(start), nil
}

func (m *mockStream) Close() error {
	m.closed = true
	return nil
}

// newMock builds an interleaved ramp and the matching source.
func newMock(channels, frames, blockSize, bits int) (*source, *mockStream, []int32) {
	planar := make([][]int32, channels)
	interleaved := make([]int32, 0, channels*frames)
	for ch := range planar {
		planar[ch] = make([]int32, frames)
	}
	for i := range frames {
		for ch := range channels {
			v := int32(i*channels + ch)
			planar[ch][i] = v
			interleaved = append(interleaved, v)
		}
	}

	m := &mockStream{planar: planar, blockSize: blockSize}
	return &source{
		stream:     m,
		sampleRate: 44100,
		channels:   channels,
		bitDepth:   bits,
		frames:     int64(frames),
	}, m, interleaved
}

func TestDecoder_Extensions(t *testing.T) {
	t.Parallel()

	if exts := (Decoder{}).Extensions(); len(exts) != 1 || exts[0] != "flac" {
		t.Errorf("Extensions() = %v, want [flac]", exts)
	}
}

func TestDecoder_InvalidInput(t *testing.T) {
	t.Parallel()

	_, err := Decoder{}.Decode(bytes.NewReader([]byte("fLaX but not really")))
	if !errors.Is(err, ErrNotFlacFile) {
		t.Errorf("Decode() error = %v, want ErrNotFlacFile", err)
	}
}

func TestSource_ReadInt32AcrossFrames(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		channels  int
		blockSize int
		readSize  int
	}{
		{"stereo small reads", 2, 16, 6},
		{"stereo reads span frames", 2, 5, 22},
		{"mono", 1, 7, 3},
		{"six channels", 6, 4, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src, _, want := newMock(tt.channels, 50, tt.blockSize, 16)

			var got []int32
			buf := make([]int32, tt.readSize)
			for {
				n, err := src.ReadInt32(buf)
				for _, v := range buf[:n] {
					got = append(got, v>>16)
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					t.Fatal(err)
				}
			}

			if len(got) != len(want) {
				t.Fatalf("read %d samples, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("sample %d = %d, want %d", i, got[i], want[i])
				}
			}
		})
	}
}

func TestSource_ReadSamplesScale(t *testing.T) {
	t.Parallel()

	m := &mockStream{planar: [][]int32{{1 << 23, -1 << 23, 1 << 22}}, blockSize: 8}
	src := &source{stream: m, sampleRate: 96000, channels: 1, bitDepth: 24, frames: 3}

	dst := make([]float32, 3)
	n, err := src.ReadSamples(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("n = %d, want 3", n)
	}

	want := []float32{1, -1, 0.5}
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("dst[%d] = %v, want %v", i, dst[i], want[i])
		}
	}
}

func TestSource_SeekFrame(t *testing.T) {
	t.Parallel()

	src, _, want := newMock(2, 100, 16, 16)
	var seeker audio.Seeker = src

	for _, target := range []int64{0, 15, 16, 17, 63, 99} {
		if err := seeker.SeekFrame(target); err != nil {
			t.Fatalf("SeekFrame(%d) error = %v", target, err)
		}

		buf := make([]int32, 2)
		if _, err := src.ReadInt32(buf); err != nil && !errors.Is(err, io.EOF) {
			t.Fatal(err)
		}
		if got := buf[0] >> 16; got != want[target*2] {
			t.Errorf("after SeekFrame(%d) first sample = %d, want %d", target, got, want[target*2])
		}
	}
}

func TestSource_SeekToEnd(t *testing.T) {
	t.Parallel()

	src, _, _ := newMock(2, 100, 16, 16)

	if err := src.SeekFrame(100); err != nil {
		t.Fatalf("SeekFrame(end) error = %v", err)
	}

	n, err := src.ReadInt32(make([]int32, 8))
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Errorf("read after seeking to end = %d, %v, want 0, EOF", n, err)
	}

	if err := src.SeekFrame(101); err == nil {
		t.Error("SeekFrame() past the end should fail")
	}
}

func TestSource_DecodeError(t *testing.T) {
	t.Parallel()

	src, m, _ := newMock(1, 100, 10, 16)
	m.failAt = 20

	buf := make([]int32, 30)
	n, err := src.ReadInt32(buf)
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("ReadInt32() error = %v, want decode error", err)
	}
	if n != 20 {
		t.Errorf("n = %d, want the 20 samples decoded before the error", n)
	}
}

func TestSource_Close(t *testing.T) {
	t.Parallel()

	src, m, _ := newMock(1, 10, 10, 16)
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if !m.closed {
		t.Error("Close() did not close the stream")
	}
}

func BenchmarkSource_ReadInt32(b *testing.B) {
	src, m, _ := newMock(2, 44100, 4096, 16)
	buf := make([]int32, 4096)

	b.ReportAllocs()

	for b.Loop() {
		m.pos = 0
		src.current = nil
		for {
			if _, err := src.ReadInt32(buf); err != nil {
				break
			}
		}
	}
}
