// SPDX-License-Identifier: EPL-2.0

package malgo

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"
	"github.com/patrickmn/go-cache"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/internal/logging"
	"github.com/ik5/bitperfect/output"
)

const (
	defaultPollInterval = 2 * time.Second
	capabilityTTL       = 10 * time.Minute
)

// Host is an output.Host over miniaudio.
type Host struct {
	ctx    *malgo.AllocatedContext
	caps   *cache.Cache
	logger *log.Logger

	pollInterval time.Duration

	notes chan output.Notification
	done  chan struct{}
	wg    sync.WaitGroup

	mu     sync.Mutex
	known  []string
	closed bool
}

type Option func(*Host)

func WithLogger(l *log.Logger) Option {
	return func(h *Host) { h.logger = l }
}

// WithPollInterval sets how often the device list is checked for changes.
// Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(h *Host) { h.pollInterval = d }
}

// backendForPlatform picks the native backend of the running system.
func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	case "freebsd", "openbsd", "netbsd":
		return malgo.BackendOss, nil
	default:
		return malgo.BackendNull, fmt.Errorf("unsupported operating system %s", runtime.GOOS)
	}
}

// New initializes a miniaudio context on the native backend.
func New(opts ...Option) (*Host, error) {
	h := &Host{
		caps:         cache.New(capabilityTTL, 2*capabilityTTL),
		logger:       logging.Discard(),
		pollInterval: defaultPollInterval,
		notes:        make(chan output.Notification, 64),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("component", "malgo")

	backend, err := backendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	h.ctx = ctx

	infos, err := h.Devices()
	if err != nil {
		h.free()
		return nil, err
	}
	for _, info := range infos {
		h.known = append(h.known, info.UID)
	}

	if h.pollInterval > 0 {
		h.wg.Add(1)
		go h.poll()
	}

	h.logger.Debug("context ready", "backend", runtime.GOOS, "devices", len(h.known))
	return h, nil
}

// Devices lists the playback devices. Capabilities are probed once per
// device and cached until the list changes.
func (h *Host) Devices() ([]output.DeviceInfo, error) {
	raw, err := h.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("enumerate devices: %w", err)
	}

	devices := make([]output.DeviceInfo, 0, len(raw))
	for i := range raw {
		devices = append(devices, h.describe(&raw[i]))
	}
	return devices, nil
}

func (h *Host) describe(d *malgo.DeviceInfo) output.DeviceInfo {
	uid := uidOf(d.ID)
	if v, ok := h.caps.Get(uid); ok {
		return v.(output.DeviceInfo)
	}

	formats := d.Formats
	if full, err := h.ctx.DeviceInfo(malgo.Playback, d.ID, malgo.Exclusive); err == nil {
		formats = full.Formats
	} else {
		h.logger.Debug("no exclusive capabilities", "device", d.Name(), "err", err)
	}

	info := describe(uid, d.Name(), d.IsDefault == 1, formats)
	h.caps.Set(uid, info, cache.DefaultExpiration)
	return info
}

func (h *Host) Default() (output.DeviceInfo, error) {
	devices, err := h.Devices()
	if err != nil {
		return output.DeviceInfo{}, err
	}
	for _, d := range devices {
		if d.IsDefault {
			return d, nil
		}
	}
	if len(devices) == 0 {
		return output.DeviceInfo{}, output.ErrNoDevice
	}
	return devices[0], nil
}

// Open returns the device uid. Nothing is sent to the hardware before
// Start.
func (h *Host) Open(uid string) (output.Device, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, output.ErrClosed
	}

	raw, err := h.ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, &audio.DeviceUnavailableError{UID: uid, Err: err}
	}
	for i := range raw {
		if uidOf(raw[i].ID) != uid {
			continue
		}

		info := h.describe(&raw[i])
		rate := 48000
		if !info.SupportsRate(rate) && len(info.SampleRates) > 0 {
			rate = info.SampleRates[0]
		}
		return &Device{
			host:         h,
			id:           raw[i].ID,
			info:         info,
			format:       info.FloatFormat(rate),
			bufferFrames: info.ClampBufferFrames(1024),
		}, nil
	}
	return nil, &audio.DeviceUnavailableError{UID: uid, Err: output.ErrNoDevice}
}

func (h *Host) Notifications() <-chan output.Notification { return h.notes }

// post queues n unless the host is closing.
func (h *Host) post(n output.Notification) {
	select {
	case h.notes <- n:
	case <-h.done:
	}
}

// poll posts DeviceRemoved and DeviceListChanged when devices come and go.
func (h *Host) poll() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
		}

		raw, err := h.ctx.Devices(malgo.Playback)
		if err != nil {
			h.logger.Warn("device poll failed", "err", err)
			continue
		}
		current := make([]string, 0, len(raw))
		for i := range raw {
			current = append(current, uidOf(raw[i].ID))
		}

		h.mu.Lock()
		removed, changed := diff(h.known, current)
		h.known = current
		h.mu.Unlock()

		if !changed {
			continue
		}

		h.caps.Flush()
		for _, uid := range removed {
			h.logger.Info("device removed", "uid", uid)
			h.post(output.Notification{Kind: output.DeviceRemoved, UID: uid})
		}
		h.post(output.Notification{Kind: output.DeviceListChanged})
	}
}

// Close stops polling and releases the miniaudio context. Devices must be
// closed first.
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	close(h.done)
	h.wg.Wait()
	close(h.notes)

	return h.free()
}

func (h *Host) free() error {
	err := h.ctx.Uninit()
	h.ctx.Free()
	if err != nil {
		return fmt.Errorf("release audio context: %w", err)
	}
	return nil
}

// spawn runs fn on its own goroutine unless the host is closing.
func (h *Host) spawn(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		fn()
	}()
	return true
}
