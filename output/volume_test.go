// SPDX-License-Identifier: EPL-2.0

package output

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCurve_RoundTrip(t *testing.T) {
	t.Parallel()

	curves := []Curve{
		{Kind: CurveAmplitude, MinDB: -96, MaxDB: 0},
		{Kind: CurveSquare, MinDB: -96, MaxDB: 0},
		{Kind: CurveDecibels, MinDB: -64, MaxDB: 0},
	}

	for _, c := range curves {
		t.Run(c.Kind.String(), func(t *testing.T) {
			t.Parallel()

			for _, s := range []float32{0.05, 0.1, 0.25, 0.5, 0.75, 1} {
				db := c.ScalarToDecibels(s)
				assert.GreaterOrEqual(t, db, c.MinDB)
				assert.LessOrEqual(t, db, c.MaxDB)
				assert.InDelta(t, s, c.DecibelsToScalar(db), 1e-4, "scalar %v via %v dB", s, db)
			}
		})
	}
}

func TestCurve_Bounds(t *testing.T) {
	t.Parallel()

	c := DefaultCurve
	assert.Equal(t, c.MinDB, c.ScalarToDecibels(0))
	assert.Equal(t, c.MinDB, c.ScalarToDecibels(-1))
	assert.Equal(t, c.MaxDB, c.ScalarToDecibels(2))
	assert.Zero(t, c.DecibelsToScalar(-200))
	assert.Equal(t, float32(1), c.DecibelsToScalar(12))
	assert.InDelta(t, -6.02, c.ScalarToDecibels(0.5), 0.01)
}

func TestGain(t *testing.T) {
	t.Parallel()

	assert.Zero(t, Gain(DefaultCurve, 0))
	assert.InDelta(t, 1, Gain(DefaultCurve, 1), 1e-6)
	assert.InDelta(t, 0.5, Gain(DefaultCurve, 0.5), 1e-4)
	assert.InDelta(t, 0.25, Gain(Curve{Kind: CurveSquare, MinDB: -96}, 0.5), 1e-4)
}
