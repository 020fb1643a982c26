// SPDX-License-Identifier: EPL-2.0

package output

import (
	"fmt"
	"math"
)

// VolumeControl is a physical volume control on a device.
type VolumeControl interface {
	Scalar() (float32, error)
	SetScalar(v float32) error
	Curve() TransferCurve
}

// TransferCurve maps a control's scalar position in [0, 1] to decibels.
type TransferCurve interface {
	ScalarToDecibels(s float32) float32
	DecibelsToScalar(db float32) float32
}

// CurveKind is the shape of a Curve.
type CurveKind int

const (
	// CurveAmplitude treats the scalar as a linear gain.
	CurveAmplitude CurveKind = iota
	// CurveSquare treats the scalar as the square root of the gain.
	CurveSquare
	// CurveDecibels spreads the scalar evenly over [MinDB, MaxDB].
	CurveDecibels
)

func (k CurveKind) String() string {
	switch k {
	case CurveAmplitude:
		return "amplitude"
	case CurveSquare:
		return "square"
	case CurveDecibels:
		return "decibels"
	default:
		return fmt.Sprintf("curve(%d)", int(k))
	}
}

// Curve is a TransferCurve over [MinDB, MaxDB]. A scalar of 0 is MinDB.
type Curve struct {
	Kind  CurveKind
	MinDB float32
	MaxDB float32
}

// DefaultCurve is the curve assumed when a device does not report one.
var DefaultCurve = Curve{Kind: CurveAmplitude, MinDB: -96, MaxDB: 0}

func (c Curve) ScalarToDecibels(s float32) float32 {
	if s <= 0 {
		return c.MinDB
	}
	s = min(s, 1)

	var db float64
	switch c.Kind {
	case CurveSquare:
		db = 40 * math.Log10(float64(s))
	case CurveDecibels:
		db = float64(c.MinDB) + float64(s)*float64(c.MaxDB-c.MinDB)
	default:
		db = 20 * math.Log10(float64(s))
	}

	return clampDB(float32(db), c.MinDB, c.MaxDB)
}

func (c Curve) DecibelsToScalar(db float32) float32 {
	if db <= c.MinDB {
		return 0
	}
	db = min(db, c.MaxDB)

	var s float64
	switch c.Kind {
	case CurveSquare:
		s = math.Pow(10, float64(db)/40)
	case CurveDecibels:
		if c.MaxDB == c.MinDB {
			return 1
		}
		s = float64(db-c.MinDB) / float64(c.MaxDB-c.MinDB)
	default:
		s = math.Pow(10, float64(db)/20)
	}

	return float32(min(max(s, 0), 1))
}

func clampDB(db, lo, hi float32) float32 {
	return min(max(db, lo), hi)
}

// Gain is the linear amplitude for a scalar on curve.
func Gain(curve TransferCurve, s float32) float32 {
	if s <= 0 {
		return 0
	}
	return float32(math.Pow(10, float64(curve.ScalarToDecibels(s))/20))
}
