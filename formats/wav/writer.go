// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

const headerSize = 44

// writeHeader writes a canonical 44 byte RIFF/WAVE header.
func writeHeader(w io.Writer, format uint16, sampleRate, channels, bits, dataSize int) error {
	blockAlign := channels * (bits / 8)

	header := make([]byte, headerSize)

	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+dataSize))
	copy(header[8:12], "WAVE")

	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], format)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bits))

	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], uint32(dataSize))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

// WritePCM writes interleaved integer PCM. Samples are right aligned, so a
// 24-bit sample spans [-1<<23, 1<<23).
func WritePCM(w io.Writer, sampleRate, channels, bits int, samples []int32) error {
	if channels <= 0 || len(samples)%channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrUnsupportedWavLayout, len(samples), channels)
	}
	if bits != 8 && bits != 16 && bits != 24 && bits != 32 {
		return fmt.Errorf("%w: %d-bit", ErrUnsupportedEncoding, bits)
	}

	bps := bits / 8
	if err := writeHeader(w, formatPCM, sampleRate, channels, bits, len(samples)*bps); err != nil {
		return err
	}

	const chunkSize = 8192
	buf := make([]byte, min(len(samples), chunkSize)*bps)

	for i := 0; i < len(samples); i += chunkSize {
		chunk := samples[i:min(i+chunkSize, len(samples))]
		out := buf[:len(chunk)*bps]

		for j, s := range chunk {
			b := out[j*bps : j*bps+bps]
			switch bps {
			case 1:
				b[0] = byte(s + 128)
			case 2:
				binary.LittleEndian.PutUint16(b, uint16(s))
			case 3:
				b[0], b[1], b[2] = byte(s), byte(s>>8), byte(s>>16)
			default:
				binary.LittleEndian.PutUint32(b, uint32(s))
			}
		}

		if _, err := w.Write(out); err != nil {
			return fmt.Errorf("%w", err)
		}
	}

	return nil
}

// WriteFloat32 writes interleaved IEEE float samples.
func WriteFloat32(w io.Writer, sampleRate, channels int, samples []float32) error {
	if channels <= 0 || len(samples)%channels != 0 {
		return fmt.Errorf("%w: %d samples for %d channels", ErrUnsupportedWavLayout, len(samples), channels)
	}

	if err := writeHeader(w, formatFloat, sampleRate, channels, 32, len(samples)*4); err != nil {
		return err
	}

	const chunkSize = 8192
	buf := make([]byte, min(len(samples), chunkSize)*4)

	for i := 0; i < len(samples); i += chunkSize {
		chunk := samples[i:min(i+chunkSize, len(samples))]
		out := buf[:len(chunk)*4]
		for j, s := range chunk {
			binary.LittleEndian.PutUint32(out[j*4:], math.Float32bits(s))
		}
		if _, err := w.Write(out); err != nil {
			return fmt.Errorf("%w", err)
		}
	}

	return nil
}

// WriteWAV16 writes a mono 16-bit PCM WAV at sampleRate.
func WriteWAV16(w io.Writer, sampleRate int, samples []int16) error {
	wide := make([]int32, len(samples))
	for i, s := range samples {
		wide[i] = int32(s)
	}
	return WritePCM(w, sampleRate, 1, 16, wide)
}
