// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"context"
	"slices"
	"sync"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/output"
)

// StereoDAC describes a two channel device with 16/24/32-bit integer formats,
// a float mix format, the common rates and a physical volume control.
func StereoDAC(uid string) output.DeviceInfo {
	return output.DeviceInfo{
		UID:         uid,
		Name:        "Fake DAC " + uid,
		Channels:    2,
		SampleRates: []int{44100, 48000, 88200, 96000, 176400, 192000},
		PhysicalFormats: []audio.StreamFormat{
			audio.IntFormat(0, 2, 16),
			{Channels: 2, BitsPerChannel: 24, BytesPerSample: 4},
			audio.IntFormat(0, 2, 32),
		},
		VirtualFormats:  []audio.StreamFormat{audio.Float32Format(0, 2)},
		MinBufferFrames: 32,
		MaxBufferFrames: 8192,
		PreferredStereo: [2]int{0, 1},
		Volume:          output.VolumePhysical | output.VolumeVirtual,
	}
}

// FakeHost is an in-memory output.Host. Requests complete synchronously and
// their notifications are queued in order.
type FakeHost struct {
	// Configure, when set, sees every device before Open returns it.
	Configure func(d *FakeDevice)

	mu      sync.Mutex
	devices []output.DeviceInfo
	opened  map[string]*FakeDevice
	closed  bool

	notes chan output.Notification
}

func NewFakeHost(devices ...output.DeviceInfo) *FakeHost {
	return &FakeHost{
		devices: devices,
		opened:  make(map[string]*FakeDevice),
		notes:   make(chan output.Notification, 64),
	}
}

func (h *FakeHost) Devices() ([]output.DeviceInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	return slices.Clone(h.devices), nil
}

func (h *FakeHost) Default() (output.DeviceInfo, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, d := range h.devices {
		if d.IsDefault {
			return d, nil
		}
	}
	if len(h.devices) == 0 {
		return output.DeviceInfo{}, output.ErrNoDevice
	}
	return h.devices[0], nil
}

func (h *FakeHost) Open(uid string) (output.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	i := slices.IndexFunc(h.devices, func(d output.DeviceInfo) bool { return d.UID == uid })
	if i < 0 {
		return nil, &audio.DeviceUnavailableError{UID: uid}
	}

	info := h.devices[i]
	d := &FakeDevice{
		host:         h,
		info:         info,
		format:       info.FloatFormat(info.SampleRates[0]),
		bufferFrames: 512,
	}
	if info.Volume&output.VolumePhysical != 0 {
		d.volume = &FakeVolume{scalar: 1, curve: output.DefaultCurve}
	}

	if h.Configure != nil {
		h.Configure(d)
	}

	h.opened[uid] = d
	return d, nil
}

func (h *FakeHost) Notifications() <-chan output.Notification { return h.notes }

func (h *FakeHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.closed {
		h.closed = true
		close(h.notes)
	}
	return nil
}

// Post queues n as if the system had raised it.
func (h *FakeHost) Post(n output.Notification) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if !closed {
		h.notes <- n
	}
}

// Device returns the last device opened under uid.
func (h *FakeHost) Device(uid string) *FakeDevice {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.opened[uid]
}

// RemoveDevice unplugs uid.
func (h *FakeHost) RemoveDevice(uid string) {
	h.mu.Lock()
	h.devices = slices.DeleteFunc(h.devices, func(d output.DeviceInfo) bool { return d.UID == uid })
	h.mu.Unlock()

	h.Post(output.Notification{Kind: output.DeviceRemoved, UID: uid})
	h.Post(output.Notification{Kind: output.DeviceListChanged})
}

// AddDevice plugs in info.
func (h *FakeHost) AddDevice(info output.DeviceInfo) {
	h.mu.Lock()
	h.devices = append(h.devices, info)
	h.mu.Unlock()

	h.Post(output.Notification{Kind: output.DeviceListChanged})
}

// FakeDevice is the output.Device of a FakeHost. The knobs must be set
// before the engine uses the device.
type FakeDevice struct {
	// HogErr, FormatErr and StartErr make the matching request fail.
	HogErr    error
	FormatErr error
	StartErr  error
	// Silent swallows Hog and SetFormat completions so waits time out.
	Silent bool
	// RejectInteger makes SetFormat refuse integer formats.
	RejectInteger bool

	host *FakeHost
	info output.DeviceInfo

	mu           sync.Mutex
	format       audio.StreamFormat
	hogged       bool
	bufferFrames int
	render       output.RenderFunc
	running      bool
	calls        []string
	volume       *FakeVolume
}

func (d *FakeDevice) record(call string) {
	d.calls = append(d.calls, call)
}

// Calls lists the requests made so far, in order.
func (d *FakeDevice) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return slices.Clone(d.calls)
}

func (d *FakeDevice) Info() output.DeviceInfo { return d.info }

func (d *FakeDevice) Format() audio.StreamFormat {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.format
}

func (d *FakeDevice) Hog(context.Context) error {
	d.mu.Lock()
	d.record("hog")
	if d.Silent {
		d.mu.Unlock()
		return nil
	}

	n := output.Notification{Kind: output.HogChanged, UID: d.info.UID}
	if d.HogErr != nil {
		n.Err = d.HogErr
	} else {
		d.hogged = true
		n.Hogged = true
	}
	d.mu.Unlock()

	d.host.Post(n)
	return nil
}

func (d *FakeDevice) ReleaseHog() error {
	d.mu.Lock()
	d.record("release-hog")
	d.hogged = false
	d.mu.Unlock()
	return nil
}

func (d *FakeDevice) Hogged() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.hogged
}

func (d *FakeDevice) SetFormat(_ context.Context, f audio.StreamFormat) error {
	d.mu.Lock()
	d.record("format " + f.String())
	if d.Silent {
		d.mu.Unlock()
		return nil
	}

	n := output.Notification{Kind: output.FormatChanged, UID: d.info.UID, Format: f}
	switch {
	case d.FormatErr != nil:
		n.Err = d.FormatErr
		n.Format = d.format
	case d.RejectInteger && !f.Float:
		n.Err = &audio.FormatNegotiationError{Want: f}
		n.Format = d.format
	case !d.info.SupportsRate(f.SampleRate):
		n.Err = &audio.FormatNegotiationError{Want: f}
		n.Format = d.format
	default:
		d.format = f
	}
	d.mu.Unlock()

	d.host.Post(n)
	return nil
}

func (d *FakeDevice) SetBufferFrameSize(n int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.record("buffer")
	d.bufferFrames = d.info.ClampBufferFrames(n)
	return d.bufferFrames, nil
}

func (d *FakeDevice) BufferFrameSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.bufferFrames
}

func (d *FakeDevice) Start(render output.RenderFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.record("start")
	if d.StartErr != nil {
		return d.StartErr
	}
	d.render = render
	d.running = true
	return nil
}

func (d *FakeDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.record("stop")
	d.running = false
	return nil
}

// SetRejectInteger changes RejectInteger while the device is in use.
func (d *FakeDevice) SetRejectInteger(reject bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.RejectInteger = reject
}

// Running reports whether the device clock is pulling audio.
func (d *FakeDevice) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.running
}

func (d *FakeDevice) Volume() output.VolumeControl {
	if d.volume == nil {
		return nil
	}
	return d.volume
}

func (d *FakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.record("close")
	d.running = false
	return nil
}

// Pull runs one device period of frames and returns the rendered bytes. It
// returns nil while the device is stopped.
func (d *FakeDevice) Pull(frames int) []byte {
	d.mu.Lock()
	render, running, f := d.render, d.running, d.format
	d.mu.Unlock()

	if !running || render == nil {
		return nil
	}

	out := make([]byte, frames*f.BytesPerFrame())
	render(out, frames)
	return out
}

// RenderFunc is the callback the device was started with.
func (d *FakeDevice) RenderFunc() output.RenderFunc {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.render
}

// FakeVolume is a physical volume control that just remembers its value.
type FakeVolume struct {
	mu     sync.Mutex
	scalar float32
	curve  output.Curve
}

func (v *FakeVolume) Scalar() (float32, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.scalar, nil
}

func (v *FakeVolume) SetScalar(s float32) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.scalar = s
	return nil
}

func (v *FakeVolume) Curve() output.TransferCurve { return v.curve }
