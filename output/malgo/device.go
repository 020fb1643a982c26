// SPDX-License-Identifier: EPL-2.0

package malgo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/output"
)

// Device is a miniaudio playback device. miniaudio fixes the format and the
// share mode when a device is initialized, so a change on a running device
// reinitializes it.
type Device struct {
	host *Host
	id   malgo.DeviceID
	info output.DeviceInfo

	// render is read by the data callback.
	render   atomic.Pointer[output.RenderFunc]
	stopping atomic.Bool

	mu           sync.Mutex
	dev          *malgo.Device
	format       audio.StreamFormat
	hogged       bool
	bufferFrames int
	running      bool
	closed       bool
}

func (d *Device) Info() output.DeviceInfo { return d.info }

func (d *Device) Format() audio.StreamFormat {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.format
}

// Hog switches the device to exclusive mode. A stopped device is probed by
// opening it exclusively once.
func (d *Device) Hog(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ok := d.host.spawn(func() {
		d.mu.Lock()
		prev := d.hogged
		d.hogged = true
		err := d.apply()
		if err != nil {
			d.hogged = prev
		}
		d.mu.Unlock()

		n := output.Notification{Kind: output.HogChanged, UID: d.info.UID, Hogged: err == nil}
		if err != nil {
			n.Err = &audio.HoggingError{UID: d.info.UID, Err: err}
		}
		d.host.post(n)
	})
	if !ok {
		return output.ErrClosed
	}
	return nil
}

func (d *Device) ReleaseHog() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.hogged {
		return nil
	}
	d.hogged = false
	if d.running {
		return d.reinit()
	}
	return nil
}

func (d *Device) Hogged() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.hogged
}

// SetFormat changes the sample format and rate.
func (d *Device) SetFormat(ctx context.Context, f audio.StreamFormat) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ok := d.host.spawn(func() {
		d.mu.Lock()
		prev := d.format
		var err error
		if !d.info.SupportsRate(f.SampleRate) {
			err = fmt.Errorf("rate %d not supported", f.SampleRate)
		} else {
			d.format = f
			if err = d.apply(); err != nil {
				d.format = prev
			}
		}
		current := d.format
		d.mu.Unlock()

		n := output.Notification{Kind: output.FormatChanged, UID: d.info.UID, Format: current}
		if err != nil {
			n.Err = &audio.FormatNegotiationError{Want: f, Err: err}
		}
		d.host.post(n)
	})
	if !ok {
		return output.ErrClosed
	}
	return nil
}

func (d *Device) SetBufferFrameSize(n int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.bufferFrames = d.info.ClampBufferFrames(n)
	if d.running {
		if err := d.reinit(); err != nil {
			return d.bufferFrames, err
		}
	}

	d.host.spawn(func() {
		d.host.post(output.Notification{Kind: output.BufferSizeChanged, UID: d.info.UID, Frames: n})
	})
	return d.bufferFrames, nil
}

func (d *Device) BufferFrameSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.bufferFrames
}

// Start initializes the device if needed and starts pulling from render.
func (d *Device) Start(render output.RenderFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return output.ErrClosed
	}
	if d.running {
		return output.ErrAlreadyActive
	}

	d.render.Store(&render)
	if d.dev == nil {
		if err := d.init(); err != nil {
			return err
		}
	}
	if err := d.start(); err != nil {
		return err
	}
	d.running = true
	return nil
}

func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false
	return d.stop()
}

// Volume is nil: miniaudio offers no hardware volume, so the engine scales
// the samples itself.
func (d *Device) Volume() output.VolumeControl { return nil }

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var err error
	if d.running {
		d.running = false
		err = d.stop()
	}
	d.uninit()
	return err
}

// apply makes the hardware follow the current settings. A running device
// is reinitialized; a stopped one is only test opened.
func (d *Device) apply() error {
	if d.running {
		return d.reinit()
	}

	cfg, err := d.config()
	if err != nil {
		return err
	}
	probe, err := malgo.InitDevice(d.host.ctx.Context, cfg, malgo.DeviceCallbacks{})
	if err != nil {
		return err
	}
	probe.Uninit()

	// the next Start picks up the new settings
	d.uninit()
	return nil
}

func (d *Device) reinit() error {
	if err := d.stop(); err != nil {
		d.host.logger.Debug("stop before reinit", "device", d.info.Name, "err", err)
	}
	d.uninit()
	if err := d.init(); err != nil {
		d.running = false
		return err
	}
	if err := d.start(); err != nil {
		d.running = false
		return err
	}
	return nil
}

func (d *Device) config() (malgo.DeviceConfig, error) {
	format, err := toMalgo(d.format)
	if err != nil {
		return malgo.DeviceConfig{}, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = format
	cfg.Playback.Channels = uint32(d.format.Channels)
	cfg.Playback.DeviceID = d.id.Pointer()
	cfg.SampleRate = uint32(d.format.SampleRate)
	cfg.PeriodSizeInFrames = uint32(d.bufferFrames)
	cfg.Alsa.NoMMap = 1
	if d.hogged {
		cfg.Playback.ShareMode = malgo.Exclusive
	}
	return cfg, nil
}

func (d *Device) init() error {
	cfg, err := d.config()
	if err != nil {
		return err
	}

	dev, err := malgo.InitDevice(d.host.ctx.Context, cfg, malgo.DeviceCallbacks{
		Data: d.data,
		Stop: d.stopped,
	})
	if err != nil {
		return &audio.DeviceUnavailableError{UID: d.info.UID, Err: err}
	}

	if got := int(dev.SampleRate()); got != d.format.SampleRate {
		dev.Uninit()
		return &audio.FormatNegotiationError{
			Want: d.format,
			Err:  fmt.Errorf("device opened at %d Hz", got),
		}
	}

	d.dev = dev
	d.host.logger.Debug("device initialized",
		"device", d.info.Name,
		"format", d.format,
		"exclusive", d.hogged,
		"period", d.bufferFrames,
	)
	return nil
}

func (d *Device) start() error {
	d.stopping.Store(false)
	if err := d.dev.Start(); err != nil {
		return &audio.DeviceUnavailableError{UID: d.info.UID, Err: err}
	}
	return nil
}

func (d *Device) stop() error {
	if d.dev == nil {
		return nil
	}
	d.stopping.Store(true)
	return d.dev.Stop()
}

func (d *Device) uninit() {
	if d.dev != nil {
		d.dev.Uninit()
		d.dev = nil
	}
}

func (d *Device) data(out, _ []byte, frames uint32) {
	render := d.render.Load()
	if render == nil {
		clear(out)
		return
	}
	(*render)(out, int(frames))
}

// stopped runs when miniaudio stops the device, requested or not.
func (d *Device) stopped() {
	if d.stopping.Load() {
		return
	}
	d.host.spawn(func() {
		d.host.post(output.Notification{
			Kind: output.DeviceStopped,
			UID:  d.info.UID,
			Err:  &audio.DeviceUnavailableError{UID: d.info.UID, Err: errors.New("stopped by the system")},
		})
	})
}
