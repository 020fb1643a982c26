// SPDX-License-Identifier: EPL-2.0

package output

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/ik5/bitperfect/audio"
)

var (
	ErrNoDevice      = errors.New("no output device")
	ErrClosed        = errors.New("output closed")
	ErrNotRunning    = errors.New("device not running")
	ErrAlreadyActive = errors.New("device already started")
)

// VolumeCaps is a bitmask of the volume controls a device offers.
type VolumeCaps uint8

const (
	VolumePhysical VolumeCaps = 1
	VolumeVirtual  VolumeCaps = 2
)

// DeviceInfo is what a host knows about one playback device.
type DeviceInfo struct {
	UID       string
	Name      string
	IsDefault bool
	Channels  int

	// SampleRates is sorted ascending.
	SampleRates []int
	// PhysicalFormats are the integer formats the hardware takes directly.
	PhysicalFormats []audio.StreamFormat
	// VirtualFormats are the float mix formats of the device.
	VirtualFormats []audio.StreamFormat

	MinBufferFrames int
	MaxBufferFrames int

	// PreferredStereo names the device channels for left and right.
	PreferredStereo [2]int

	Volume VolumeCaps
}

// SupportsRate reports whether rate is one of the device rates.
func (d DeviceInfo) SupportsRate(rate int) bool {
	return slices.Contains(d.SampleRates, rate)
}

// MaxRate is the highest supported rate, or 0 when the device lists none.
func (d DeviceInfo) MaxRate() int {
	if len(d.SampleRates) == 0 {
		return 0
	}
	return slices.Max(d.SampleRates)
}

// IntegerFormat picks the physical format with the fewest valid bits that
// still holds minBits, so integer samples pass without truncation.
func (d DeviceInfo) IntegerFormat(rate, minBits int) (audio.StreamFormat, bool) {
	var best audio.StreamFormat
	found := false

	for _, f := range d.PhysicalFormats {
		if f.Float || f.BitsPerChannel < minBits {
			continue
		}
		if !found || f.BitsPerChannel < best.BitsPerChannel {
			best = f
			found = true
		}
	}

	if !found {
		return audio.StreamFormat{}, false
	}

	best.SampleRate = rate
	if best.Channels == 0 {
		best.Channels = d.Channels
	}
	return best, true
}

// FloatFormat is the float mix format at rate.
func (d DeviceInfo) FloatFormat(rate int) audio.StreamFormat {
	for _, f := range d.VirtualFormats {
		if f.Float {
			f.SampleRate = rate
			if f.Channels == 0 {
				f.Channels = d.Channels
			}
			return f
		}
	}
	return audio.Float32Format(rate, max(d.Channels, 1))
}

// ClampBufferFrames limits n to the device range. Zero bounds are open.
func (d DeviceInfo) ClampBufferFrames(n int) int {
	if d.MinBufferFrames > 0 && n < d.MinBufferFrames {
		n = d.MinBufferFrames
	}
	if d.MaxBufferFrames > 0 && n > d.MaxBufferFrames {
		n = d.MaxBufferFrames
	}
	return n
}

// NotificationKind tells what changed on the host.
type NotificationKind int

const (
	HogChanged NotificationKind = iota + 1
	FormatChanged
	DeviceStopped
	DeviceListChanged
	DeviceRemoved
	BufferSizeChanged
	// DataSourceChanged is posted when the device switches its output
	// port, e.g. from speakers to headphones.
	DataSourceChanged
)

func (k NotificationKind) String() string {
	switch k {
	case HogChanged:
		return "hog changed"
	case FormatChanged:
		return "format changed"
	case DeviceStopped:
		return "device stopped"
	case DeviceListChanged:
		return "device list changed"
	case DeviceRemoved:
		return "device removed"
	case BufferSizeChanged:
		return "buffer size changed"
	case DataSourceChanged:
		return "data source changed"
	default:
		return fmt.Sprintf("notification(%d)", int(k))
	}
}

// Notification is posted by a host when a device property changes, either
// because a request completed or because the system changed it.
type Notification struct {
	Kind   NotificationKind
	UID    string
	Format audio.StreamFormat
	Hogged bool
	Frames int
	// Err is set when a requested change failed.
	Err error
}

// RenderFunc fills out with frames frames in the current device format. It is
// called on the device clock and must not block.
type RenderFunc func(out []byte, frames int)

// Host enumerates devices and posts their notifications. A host posts every
// notification on one channel, so they are handled in order.
type Host interface {
	Devices() ([]DeviceInfo, error)
	Default() (DeviceInfo, error)
	Open(uid string) (Device, error)
	Notifications() <-chan Notification
	Close() error
}

// Device is one opened playback device.
//
// Hog and SetFormat start a change and return. The outcome is posted as a
// HogChanged or FormatChanged notification.
type Device interface {
	Info() DeviceInfo
	Format() audio.StreamFormat

	Hog(ctx context.Context) error
	ReleaseHog() error
	Hogged() bool

	SetFormat(ctx context.Context, f audio.StreamFormat) error
	SetBufferFrameSize(n int) (int, error)
	BufferFrameSize() int

	Start(render RenderFunc) error
	Stop() error

	// Volume is nil when the device has no physical volume control.
	Volume() VolumeControl

	Close() error
}
