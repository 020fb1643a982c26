// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync/atomic"
	"time"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/utils"
)

// MockSource is a test helper that generates audio data for testing.
// It implements audio.Source, audio.IntSource and audio.Seeker.
//
// With a non-zero bit depth every sample is quantized to that depth first,
// so the float and integer reads describe the same PCM.
type MockSource struct {
	sampleRate   int
	channels     int
	bitDepth     int
	totalSamples int // Total samples to generate (per channel)
	generated    int // Samples generated so far (per channel)
	waveform     func(sample int, channel int) float32

	delay  time.Duration
	gate   chan struct{}
	reads  atomic.Int64
	closed atomic.Bool
	failAt int
}

// NewMockSource creates a new mock audio source.
// totalSamples is the total number of samples per channel to generate.
// waveform is a function that generates sample values given sample index and channel.
func NewMockSource(sampleRate, channels, totalSamples int, waveform func(sample int, channel int) float32) *MockSource {
	return &MockSource{
		sampleRate:   sampleRate,
		channels:     channels,
		bitDepth:     16,
		totalSamples: totalSamples,
		generated:    0,
		waveform:     waveform,
		failAt:       -1,
	}
}

// NewSilentSource creates a mock source that generates silence (all zeros).
func NewSilentSource(sampleRate, channels, totalSamples int) *MockSource {
	return NewMockSource(sampleRate, channels, totalSamples, func(sample int, channel int) float32 {
		return 0.0
	})
}

// NewSineSource creates a mock source that generates a sine wave.
func NewSineSource(sampleRate, channels, totalSamples int, frequency float64) *MockSource {
	return NewMockSource(sampleRate, channels, totalSamples, func(sample int, channel int) float32 {
		t := float64(sample) / float64(sampleRate)
		return float32(0.8 * math.Sin(2*math.Pi*frequency*t+float64(channel)))
	})
}

// NewConstantSource creates a mock source with constant value.
func NewConstantSource(sampleRate, channels, totalSamples int, value float32) *MockSource {
	return NewMockSource(sampleRate, channels, totalSamples, func(sample int, channel int) float32 {
		return value
	})
}

// RampValue is the integer sample NewRampSource produces at frame and
// channel. It fits in 16 bits.
func RampValue(frame, channel int) int32 {
	return int32((frame*3+channel*101)%2001 - 1000)
}

// NewRampSource generates RampValue at bitDepth. Every sample is exact in
// float32, so integer and float reads agree bit for bit.
func NewRampSource(sampleRate, channels, totalSamples, bitDepth int) *MockSource {
	scale := math.Ldexp(1, bitDepth-1)
	m := NewMockSource(sampleRate, channels, totalSamples, func(sample int, channel int) float32 {
		return float32(float64(RampValue(sample, channel)) / scale)
	})
	m.bitDepth = bitDepth
	return m
}

// WithBitDepth sets the quantization depth. Zero makes a float source.
func (m *MockSource) WithBitDepth(bits int) *MockSource {
	m.bitDepth = bits
	return m
}

// WithReadDelay makes every read sleep for d.
func (m *MockSource) WithReadDelay(d time.Duration) *MockSource {
	m.delay = d
	return m
}

// WithGate makes every read wait for a value on gate. Closing the gate
// releases all reads.
func (m *MockSource) WithGate(gate chan struct{}) *MockSource {
	m.gate = gate
	return m
}

// WithFailureAt makes the read that would cross frame return ErrMockRead.
func (m *MockSource) WithFailureAt(frame int) *MockSource {
	m.failAt = frame
	return m
}

// ErrMockRead is returned by a source configured WithFailureAt.
var ErrMockRead = errors.New("mock read failure")

func (m *MockSource) SampleRate() int { return m.sampleRate }
func (m *MockSource) Channels() int   { return m.channels }
func (m *MockSource) BitDepth() int   { return m.bitDepth }
func (m *MockSource) Frames() int64   { return int64(m.totalSamples) }
func (m *MockSource) BufSize() int    { return 4096 }

func (m *MockSource) Close() error {
	m.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (m *MockSource) Closed() bool { return m.closed.Load() }

// Reads counts the read calls so far.
func (m *MockSource) Reads() int64 { return m.reads.Load() }

// Position is the next frame to be generated.
func (m *MockSource) Position() int { return m.generated }

// Reset resets the generated sample counter to allow re-reading
func (m *MockSource) Reset() {
	m.generated = 0
}

func (m *MockSource) SeekFrame(frame int64) error {
	if frame < 0 || frame > int64(m.totalSamples) {
		return fmt.Errorf("seek to frame %d: out of range [0, %d]", frame, m.totalSamples)
	}
	m.generated = int(frame)
	return nil
}

// next returns how many frames the next read of dst samples yields.
func (m *MockSource) next(dst int) (int, error) {
	m.reads.Add(1)

	if m.gate != nil {
		<-m.gate
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}

	if m.generated >= m.totalSamples {
		return 0, io.EOF
	}

	// Calculate how many frames we can write
	framesRequested := dst / m.channels
	framesAvailable := m.totalSamples - m.generated
	framesToWrite := min(framesRequested, framesAvailable)

	if m.failAt >= 0 && m.generated+framesToWrite > m.failAt {
		return 0, ErrMockRead
	}

	return framesToWrite, nil
}

func (m *MockSource) sample(frame, channel int) float32 {
	v := m.waveform(frame, channel)
	if m.bitDepth > 0 && m.bitDepth < 32 {
		return utils.FixedToFloat(utils.FloatToFixed(v, m.bitDepth), m.bitDepth)
	}
	return v
}

func (m *MockSource) ReadSamples(dst []float32) (int, error) {
	framesToWrite, err := m.next(len(dst))
	if framesToWrite == 0 {
		return 0, err
	}

	// Generate samples
	for frame := range framesToWrite {
		sampleIndex := m.generated + frame
		for ch := range m.channels {
			dst[frame*m.channels+ch] = m.sample(sampleIndex, ch)
		}
	}

	m.generated += framesToWrite
	samplesWritten := framesToWrite * m.channels

	if m.generated >= m.totalSamples {
		return samplesWritten, io.EOF
	}

	return samplesWritten, nil
}

// ReadInt32 returns the quantized samples aligned to the top of the word.
func (m *MockSource) ReadInt32(dst []int32) (int, error) {
	bits := m.bitDepth
	if bits <= 0 {
		bits = 32
	}

	framesToWrite, err := m.next(len(dst))
	if framesToWrite == 0 {
		return 0, err
	}

	for frame := range framesToWrite {
		sampleIndex := m.generated + frame
		for ch := range m.channels {
			dst[frame*m.channels+ch] = utils.FloatToFixed(m.waveform(sampleIndex, ch), bits) << (32 - bits)
		}
	}

	m.generated += framesToWrite
	samplesWritten := framesToWrite * m.channels

	if m.generated >= m.totalSamples {
		return samplesWritten, io.EOF
	}

	return samplesWritten, nil
}

// Plain hides every optional interface of src, leaving a bare audio.Source
// that cannot seek or hand out integers.
func Plain(src audio.Source) audio.Source {
	return plain{src}
}

type plain struct {
	audio.Source
}
