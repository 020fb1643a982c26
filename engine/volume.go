// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"github.com/ik5/bitperfect/output"
)

// SetMasterVolume sets the volume to scalar in [0, 1]. kind asks for the
// physical control of the device; when there is none, or kind asks for the
// virtual one, the gain is applied to the samples. The kind used is passed
// to VolumeChanged.
//
// Physical volume leaves the samples untouched.
func (e *Engine) SetMasterVolume(scalar float32, kind output.VolumeCaps) error {
	scalar = min(max(scalar, 0), 1)

	e.mu.Lock()
	used := output.VolumeVirtual
	if kind&output.VolumePhysical != 0 && e.device != nil {
		if vc := e.device.Volume(); vc != nil {
			if err := vc.SetScalar(scalar); err != nil {
				e.mu.Unlock()
				return err
			}
			used = output.VolumePhysical
		}
	}

	if used == output.VolumePhysical {
		e.r.setGain(1)
	} else {
		e.r.setGain(output.Gain(output.DefaultCurve, scalar))
	}
	e.volume = scalar
	e.mu.Unlock()

	e.logger.Debug("volume", "scalar", scalar, "physical", used == output.VolumePhysical)
	e.cb.VolumeChanged(scalar, used)
	return nil
}

// Volume is the last scalar given to SetMasterVolume.
func (e *Engine) Volume() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.volume
}

// VolumeDecibels is the attenuation of the current volume on the device's
// transfer curve, or on the default curve when the device has no control.
func (e *Engine) VolumeDecibels() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var curve output.TransferCurve = output.DefaultCurve
	if e.device != nil {
		if vc := e.device.Volume(); vc != nil {
			curve = vc.Curve()
		}
	}
	return curve.ScalarToDecibels(e.volume)
}

// Mute silences the output without touching the volume.
func (e *Engine) Mute() {
	if !e.r.muted.Swap(true) {
		e.logger.Debug("muted")
	}
}

func (e *Engine) Unmute() {
	if e.r.muted.Swap(false) {
		e.logger.Debug("unmuted")
	}
}
