// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("invalid phase transition")

// Phase is the playback state of the engine.
type Phase int

const (
	Idle Phase = iota
	InitiatingPlayback
	HoggingDevice
	DeviceHogged
	ChangingStreamFormat
	FinishingDeviceInitialization
	Playing
	Paused
	Stopped
	SwitchingBackToFloatMode
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case InitiatingPlayback:
		return "initiating playback"
	case HoggingDevice:
		return "hogging device"
	case DeviceHogged:
		return "device hogged"
	case ChangingStreamFormat:
		return "changing stream format"
	case FinishingDeviceInitialization:
		return "finishing device initialization"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case SwitchingBackToFloatMode:
		return "switching back to float mode"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Active reports whether the device is started in this phase.
func (p Phase) Active() bool {
	return p == Playing || p == Paused || p == SwitchingBackToFloatMode
}

var transitions = map[Phase][]Phase{
	Idle:                          {InitiatingPlayback},
	Stopped:                       {InitiatingPlayback, Idle},
	InitiatingPlayback:            {HoggingDevice, ChangingStreamFormat, FinishingDeviceInitialization, Idle},
	HoggingDevice:                 {DeviceHogged, Idle},
	DeviceHogged:                  {ChangingStreamFormat, FinishingDeviceInitialization, Idle},
	ChangingStreamFormat:          {FinishingDeviceInitialization, Playing, Paused, Idle, Stopped},
	FinishingDeviceInitialization: {Playing, Idle},
	Playing:                       {Paused, Stopped, ChangingStreamFormat, SwitchingBackToFloatMode},
	Paused:                        {Playing, Stopped, ChangingStreamFormat, SwitchingBackToFloatMode},
	SwitchingBackToFloatMode:      {Playing, Paused, Stopped},
}

// CanTransition reports whether the engine may go from one phase to the
// other.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

func checkTransition(from, to Phase) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// PauseReason is a bitmask of the reasons output is held. Output resumes
// once every reason is cleared.
type PauseReason uint32

const (
	PauseExplicit           PauseReason = 1
	PauseSampleRateChanging PauseReason = 2
	PauseBufferSizeChanging PauseReason = 4
)
