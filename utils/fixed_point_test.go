// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"math"
	"testing"
)

func TestFloatToFixedMonotonic(t *testing.T) {
	t.Parallel()

	for _, bits := range []int{16, 24, 32} {
		prev := FloatToFixed(-1.5, bits)
		for x := float32(-1.5); x <= 1.5; x += 0.0001 {
			got := FloatToFixed(x, bits)
			if got < prev {
				t.Fatalf("FloatToFixed(%v, %d) = %d, below %d", x, bits, got, prev)
			}
			prev = got
		}
	}
}

func TestFloatToFixed_ZeroAllocs(t *testing.T) {
	src := make([]float32, 4096)
	for i := range src {
		src[i] = float32(math.Sin(float64(i) * 0.01))
	}
	dst := make([]int32, len(src))

	allocs := testing.AllocsPerRun(100, func() {
		for i, x := range src {
			dst[i] = FloatToFixed(x, 24)
		}
	})

	if allocs > 0 {
		t.Errorf("FloatToFixed allocated %v times, want 0", allocs)
	}
}

func BenchmarkFloatToFixed(b *testing.B) {
	src := make([]float32, 4096)
	for i := range src {
		src[i] = float32(math.Sin(float64(i) * 0.01))
	}
	dst := make([]int32, len(src))

	b.ReportAllocs()
	b.ResetTimer()

	for b.Loop() {
		for i, x := range src {
			dst[i] = FloatToFixed(x, 24)
		}
	}
}

func TestFloatToFixed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input float32
		bits  int
		want  int32
	}{
		{"zero 16", 0, 16, 0},
		{"full scale clamps 16", 1.0, 16, math.MaxInt16},
		{"negative full scale 16", -1.0, 16, math.MinInt16},
		{"half 16", 0.5, 16, 16384},
		{"half 24", 0.5, 24, 1 << 22},
		{"negative half 24", -0.5, 24, -(1 << 22)},
		{"full scale clamps 24", 1.0, 24, 1<<23 - 1},
		{"over range 24", 3.0, 24, 1<<23 - 1},
		{"under range 24", -3.0, 24, -(1 << 23)},
		{"rounds to nearest", 1.6 / 32768, 16, 2},
		{"full scale clamps 32", 1.0, 32, math.MaxInt32},
		{"negative full scale 32", -1.0, 32, math.MinInt32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := FloatToFixed(tt.input, tt.bits); got != tt.want {
				t.Errorf("FloatToFixed(%v, %d) = %d, want %d", tt.input, tt.bits, got, tt.want)
			}
		})
	}
}

// TestFixedToFloatRoundTrip checks that every 16-bit value survives a trip
// through float32.
func TestFixedToFloatRoundTrip(t *testing.T) {
	t.Parallel()

	for v := int32(math.MinInt16); v <= math.MaxInt16; v++ {
		got := FloatToFixed(FixedToFloat(v, 16), 16)
		if got != v {
			t.Fatalf("round trip of %d = %d", v, got)
		}
	}
}

func TestHighToFloat(t *testing.T) {
	t.Parallel()

	if got := HighToFloat(math.MinInt32); got != -1 {
		t.Errorf("HighToFloat(MinInt32) = %v, want -1", got)
	}
	if got := HighToFloat(1 << 30); got != 0.5 {
		t.Errorf("HighToFloat(1<<30) = %v, want 0.5", got)
	}
}
