// SPDX-License-Identifier: EPL-2.0

// Package oto implements output.Host on ebitengine/oto.
//
// oto plays through the system mixer in float32 and allows a single context
// per process, so the host has one shared device whose rate is fixed by the
// first Start. It cannot be hogged.
package oto

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/internal/logging"
	"github.com/ik5/bitperfect/output"
)

// DeviceUID names the only device of the host.
const DeviceUID = "default"

var errShared = errors.New("oto plays through the shared system mixer")

// the process wide oto context
var shared struct {
	sync.Mutex
	ctx      *oto.Context
	rate     int
	channels int
}

func sharedContext(rate, channels int, bufferFrames int) (*oto.Context, error) {
	shared.Lock()
	defer shared.Unlock()

	if shared.ctx != nil {
		if shared.rate != rate || shared.channels != channels {
			return nil, fmt.Errorf("context already running at %d Hz, %d channels", shared.rate, shared.channels)
		}
		return shared.ctx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(bufferFrames) * time.Second / time.Duration(rate),
	})
	if err != nil {
		return nil, err
	}
	<-ready

	shared.ctx, shared.rate, shared.channels = ctx, rate, channels
	return ctx, nil
}

// Host exposes the default system output.
type Host struct {
	logger *log.Logger

	notes chan output.Notification

	mu     sync.Mutex
	closed bool
}

type Option func(*Host)

func WithLogger(l *log.Logger) Option {
	return func(h *Host) { h.logger = l }
}

func New(opts ...Option) *Host {
	h := &Host{
		logger: logging.Discard(),
		notes:  make(chan output.Notification, 16),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "oto")
	return h
}

// Info describes the shared device. Before the context exists any common
// rate can be chosen; afterwards only the running one.
func (h *Host) Info() output.DeviceInfo {
	rates := []int{44100, 48000, 88200, 96000, 176400, 192000}
	shared.Lock()
	if shared.ctx != nil {
		rates = []int{shared.rate}
	}
	shared.Unlock()

	return output.DeviceInfo{
		UID:             DeviceUID,
		Name:            "System default",
		IsDefault:       true,
		Channels:        2,
		SampleRates:     rates,
		VirtualFormats:  []audio.StreamFormat{audio.Float32Format(0, 2)},
		MinBufferFrames: 256,
		MaxBufferFrames: 16384,
		PreferredStereo: [2]int{0, 1},
		Volume:          output.VolumePhysical,
	}
}

func (h *Host) Devices() ([]output.DeviceInfo, error) {
	return []output.DeviceInfo{h.Info()}, nil
}

func (h *Host) Default() (output.DeviceInfo, error) { return h.Info(), nil }

func (h *Host) Open(uid string) (output.Device, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, output.ErrClosed
	}
	if uid != DeviceUID && uid != "" {
		return nil, &audio.DeviceUnavailableError{UID: uid, Err: output.ErrNoDevice}
	}

	info := h.Info()
	rate := 48000
	if !info.SupportsRate(rate) {
		rate = info.SampleRates[0]
	}
	return &Device{
		host:         h,
		info:         info,
		format:       info.FloatFormat(rate),
		bufferFrames: 2048,
		volume:       1,
	}, nil
}

func (h *Host) Notifications() <-chan output.Notification { return h.notes }

// post never blocks: a full queue drops n.
func (h *Host) post(n output.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	select {
	case h.notes <- n:
	default:
		h.logger.Warn("notification dropped", "kind", n.Kind)
	}
}

// Close closes the notification channel. oto contexts cannot be destroyed,
// so the shared context stays alive.
func (h *Host) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.closed {
		h.closed = true
		close(h.notes)
	}
	return nil
}

// Device is the shared oto output.
type Device struct {
	host *Host
	info output.DeviceInfo

	mu           sync.Mutex
	format       audio.StreamFormat
	bufferFrames int
	player       *oto.Player
	reader       *pull
	running      bool
	volume       float32
}

func (d *Device) Info() output.DeviceInfo { return d.info }

func (d *Device) Format() audio.StreamFormat {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.format
}

// Hog always fails: the mixer cannot be bypassed.
func (d *Device) Hog(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	d.host.post(output.Notification{
		Kind: output.HogChanged,
		UID:  DeviceUID,
		Err:  &audio.HoggingError{UID: DeviceUID, Err: errShared},
	})
	return nil
}

func (d *Device) ReleaseHog() error { return nil }
func (d *Device) Hogged() bool      { return false }

// SetFormat accepts float32 stereo or mono at any rate until the first
// Start, and only the running rate after it.
func (d *Device) SetFormat(ctx context.Context, f audio.StreamFormat) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	err := d.check(f)
	if err == nil {
		d.format = f
	}
	current := d.format
	d.mu.Unlock()

	n := output.Notification{Kind: output.FormatChanged, UID: DeviceUID, Format: current}
	if err != nil {
		n.Err = &audio.FormatNegotiationError{Want: f, Err: err}
	}
	d.host.post(n)
	return nil
}

func (d *Device) check(f audio.StreamFormat) error {
	if !f.Float || f.BytesPerSample != 4 {
		return errShared
	}
	if f.Channels < 1 || f.Channels > 2 {
		return fmt.Errorf("%d channels not supported", f.Channels)
	}

	shared.Lock()
	defer shared.Unlock()

	if shared.ctx != nil && (shared.rate != f.SampleRate || shared.channels != f.Channels) {
		return fmt.Errorf("context already running at %d Hz, %d channels", shared.rate, shared.channels)
	}
	return nil
}

func (d *Device) SetBufferFrameSize(n int) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.bufferFrames = d.info.ClampBufferFrames(n)
	if d.player != nil {
		d.player.SetBufferSize(d.bufferFrames * d.format.BytesPerFrame())
	}
	d.host.post(output.Notification{Kind: output.BufferSizeChanged, UID: DeviceUID, Frames: d.bufferFrames})
	return d.bufferFrames, nil
}

func (d *Device) BufferFrameSize() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.bufferFrames
}

func (d *Device) Start(render output.RenderFunc) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return output.ErrAlreadyActive
	}

	if d.player == nil {
		ctx, err := sharedContext(d.format.SampleRate, d.format.Channels, d.bufferFrames)
		if err != nil {
			return &audio.FormatNegotiationError{Want: d.format, Err: err}
		}
		d.reader = &pull{frameBytes: d.format.BytesPerFrame()}
		d.player = ctx.NewPlayer(d.reader)
		d.player.SetBufferSize(d.bufferFrames * d.format.BytesPerFrame())
		d.player.SetVolume(float64(d.volume))
	}

	d.reader.set(render)
	d.player.Play()
	d.running = true

	d.host.logger.Debug("playing", "format", d.format, "buffer", d.bufferFrames)
	return nil
}

func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return nil
	}
	d.running = false
	d.player.Pause()
	return d.player.Err()
}

func (d *Device) Volume() output.VolumeControl { return (*volume)(d) }

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.running = false
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	return err
}

// pull feeds the oto player from a RenderFunc.
type pull struct {
	frameBytes int

	mu     sync.Mutex
	render output.RenderFunc
}

func (p *pull) set(render output.RenderFunc) {
	p.mu.Lock()
	p.render = render
	p.mu.Unlock()
}

func (p *pull) Read(b []byte) (int, error) {
	p.mu.Lock()
	render := p.render
	p.mu.Unlock()

	n := len(b) / p.frameBytes * p.frameBytes
	if render == nil {
		clear(b[:n])
		return n, nil
	}
	render(b[:n], n/p.frameBytes)
	return n, nil
}

// volume is the player volume, a linear gain.
type volume Device

func (v *volume) Scalar() (float32, error) {
	d := (*Device)(v)
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.volume, nil
}

func (v *volume) SetScalar(s float32) error {
	d := (*Device)(v)
	d.mu.Lock()
	defer d.mu.Unlock()

	d.volume = min(max(s, 0), 1)
	if d.player != nil {
		d.player.SetVolume(float64(d.volume))
	}
	return nil
}

func (v *volume) Curve() output.TransferCurve { return output.DefaultCurve }
