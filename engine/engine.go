// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/buffer"
	"github.com/ik5/bitperfect/config"
	"github.com/ik5/bitperfect/decoder"
	"github.com/ik5/bitperfect/internal/logging"
	"github.com/ik5/bitperfect/internal/metrics"
	"github.com/ik5/bitperfect/loader"
	"github.com/ik5/bitperfect/output"
)

var (
	ErrClosed      = errors.New("engine closed")
	ErrNoBuffer    = errors.New("no loaded buffer")
	ErrBufferInUse = errors.New("buffer is playing")
	ErrNotPlaying  = errors.New("not playing")
	ErrBusy        = errors.New("playback is active")
)

const (
	DefaultNotifyTimeout = 5 * time.Second
	DefaultTick          = 50 * time.Millisecond
	// DefaultIOFrames is the device buffer size asked for unless the
	// preferences force the largest one.
	DefaultIOFrames = 1024
)

// Callbacks receives the events of an Engine. Calls come from background
// goroutines and must not block for long. LoadStatus and MetadataReady
// come from load tasks.
type Callbacks interface {
	MetadataReady(idx int, md audio.Metadata)
	LoadStatus(st buffer.LoadStatus)
	// BufferPlayed reports that playback moved past slot freed, which may
	// be loaded again.
	BufferPlayed(freed int)
	DeviceListChanged(devices []output.DeviceInfo)
	DeviceRemoved(uid string)
	ProcessorOverload(overloaded bool)
	VolumeChanged(scalar float32, kind output.VolumeCaps)
	DataSourceChanged(uid string)
	// PlaybackStopped reports that playback ended on its own. err is nil at
	// the end of the track.
	PlaybackStopped(err error)
}

// NopCallbacks ignores every event. Embed it to implement only some.
type NopCallbacks struct{}

func (NopCallbacks) MetadataReady(int, audio.Metadata)        {}
func (NopCallbacks) LoadStatus(buffer.LoadStatus)             {}
func (NopCallbacks) BufferPlayed(int)                         {}
func (NopCallbacks) DeviceListChanged([]output.DeviceInfo)    {}
func (NopCallbacks) DeviceRemoved(string)                     {}
func (NopCallbacks) ProcessorOverload(bool)                   {}
func (NopCallbacks) VolumeChanged(float32, output.VolumeCaps) {}
func (NopCallbacks) DataSourceChanged(string)                 {}
func (NopCallbacks) PlaybackStopped(error)                    {}

// Engine plays the slots of a double buffer on an output device.
//
// The exported methods may be called from any goroutine. Device
// notifications are handled on one goroutine, in order.
type Engine struct {
	host    output.Host
	arena   *buffer.Arena
	loader  *loader.Loader
	r       *renderer
	prefs   config.Preferences
	cb      Callbacks
	metrics *metrics.Metrics
	logger  *log.Logger

	autoChunk     bool
	notifyTimeout time.Duration
	tick          time.Duration
	startup       time.Duration

	mu          sync.Mutex
	phase       Phase
	uid         string
	device      output.Device
	origFormat  audio.StreamFormat
	targetRate  int
	integer     bool
	intFormat   audio.StreamFormat
	integerLost bool
	volume      float32
	closed      bool

	phaseVal atomic.Int32

	wmu     sync.Mutex
	waiters map[output.NotificationKind]chan output.Notification

	ctrl   chan output.Notification
	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

type Option func(*Engine)

func WithCallbacks(cb Callbacks) Option {
	return func(e *Engine) { e.cb = cb }
}

// WithPreferences sets the preferences read when playback is initiated.
func WithPreferences(p config.Preferences) Option {
	return func(e *Engine) { e.prefs = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(logger *log.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithAutoChunk controls whether the engine loads the next chunk of a track
// that does not fit in one slot on its own. It is on by default.
func WithAutoChunk(on bool) Option {
	return func(e *Engine) { e.autoChunk = on }
}

// WithNotifyTimeout bounds the wait for a device notification.
func WithNotifyTimeout(d time.Duration) Option {
	return func(e *Engine) { e.notifyTimeout = d }
}

// WithTick sets how often the engine looks at the render state.
func WithTick(d time.Duration) Option {
	return func(e *Engine) { e.tick = d }
}

// WithStartup sets how much audio a load waits for before it returns.
func WithStartup(d time.Duration) Option {
	return func(e *Engine) { e.startup = d }
}

// New returns an engine playing on host, with decoders from factory.
func New(host output.Host, factory *decoder.Factory, opts ...Option) *Engine {
	e := &Engine{
		host:          host,
		arena:         buffer.NewArena(),
		prefs:         config.Default(),
		cb:            NopCallbacks{},
		logger:        logging.Discard(),
		autoChunk:     true,
		notifyTimeout: DefaultNotifyTimeout,
		tick:          DefaultTick,
		startup:       loader.DefaultStartup,
		volume:        1,
		waiters:       make(map[output.NotificationKind]chan output.Notification),
		ctrl:          make(chan output.Notification, 64),
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.logger = e.logger.With("component", "engine")
	e.integer = e.prefs.Device.IntegerMode
	e.uid = e.prefs.Device.PreferredUID
	e.r = newRenderer(e.arena)
	e.r.setDither(e.prefs.Device.Dither)
	e.ctx, e.cancel = context.WithCancel(context.Background())

	e.loader = loader.New(e.arena, factory,
		loader.WithMaxBufferSize(int(e.prefs.MaxBufferBytes())),
		loader.WithStartup(e.startup),
		loader.WithReporter(e.cb),
		loader.WithDoneFunc(e.loadDone),
		loader.WithMetrics(e.metrics),
		loader.WithLogger(e.logger),
	)

	e.wg.Add(2)
	go e.route()
	go e.control()

	return e
}

// Phase is the current playback phase.
func (e *Engine) Phase() Phase { return Phase(e.phaseVal.Load()) }

// IsPaused reports whether any pause reason is held.
func (e *Engine) IsPaused() bool { return e.r.pause.Load() != 0 }

// PauseReasons is the pause bitmask.
func (e *Engine) PauseReasons() PauseReason { return PauseReason(e.r.pause.Load()) }

func (e *Engine) IsMuted() bool { return e.r.muted.Load() }

// Position is the playing time within the track.
func (e *Engine) Position() time.Duration { return e.arena.PlayingSlot().CurrentTime() }

// PlayingBuffer is the index of the slot being played.
func (e *Engine) PlayingBuffer() int { return e.arena.Playing() }

// Buffer gives read access to slot idx.
func (e *Engine) Buffer(idx int) *buffer.Slot { return e.arena.Slot(idx) }

// Underruns counts the periods that ran out of loaded audio.
func (e *Engine) Underruns() int64 { return e.r.underruns.Load() }

// BothBuffersFromSameFile reports whether both slots stream one track.
func (e *Engine) BothBuffersFromSameFile() bool {
	a, b := e.arena.Slot(0).Data(), e.arena.Slot(1).Data()
	return a != nil && b != nil && a.Decoder != nil && a.Decoder == b.Decoder
}

// BufferContainsWholeTrack reports whether slot idx holds a track from its
// first frame to its last.
func (e *Engine) BufferContainsWholeTrack(idx int) bool {
	if !buffer.Valid(idx) {
		return false
	}
	s := e.arena.Slot(idx)
	d := s.Data()
	return d != nil && d.FirstFrame == 0 && s.Completed() && s.EOF()
}

// Devices lists the output devices of the host.
func (e *Engine) Devices() ([]output.DeviceInfo, error) { return e.host.Devices() }

// SelectDevice makes uid the output for the next playback. The current
// device, if any, is released.
func (e *Engine) SelectDevice(uid string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	if e.phase != Idle && e.phase != Stopped {
		return ErrBusy
	}

	devices, err := e.host.Devices()
	if err != nil {
		return err
	}
	found := false
	for _, d := range devices {
		if d.UID == uid {
			found = true
			break
		}
	}
	if !found {
		return &audio.DeviceUnavailableError{UID: uid}
	}

	if e.device != nil && e.uid != uid {
		if err := e.releaseDevice(); err != nil {
			e.logger.Warn("releasing device", "uid", e.uid, "err", err)
		}
	}
	e.uid = uid
	e.integerLost = false
	e.logger.Info("device selected", "uid", uid)
	return nil
}

// SetPreferences replaces the preferences. They are used from the next
// playback and the next loaded file on, except the dither which applies at
// once.
func (e *Engine) SetPreferences(p config.Preferences) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.prefs = p
	e.integer = p.Device.IntegerMode
	e.r.setDither(p.Device.Dither)
}

// SetTargetSampleRate forces the rate of the next loaded file. Zero goes
// back to the rate policy.
func (e *Engine) SetTargetSampleRate(rate int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.targetRate = max(rate, 0)
}

// SetIntegerMode controls whether the next loaded file is decoded to
// integers. A zero format lets the device pick one that holds the file's
// bit depth.
func (e *Engine) SetIntegerMode(enabled bool, f audio.StreamFormat) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.integer = enabled
	e.intFormat = f
	if enabled {
		e.integerLost = false
	}
}

// Close stops playback, releases the device and the slots and stops the
// background goroutines. The host is left open.
func (e *Engine) Close() error {
	var err error
	e.once.Do(func() {
		close(e.done)
		e.cancel()

		e.mu.Lock()
		e.closed = true
		e.r.out.Store(nil)
		err = e.releaseDevice()
		if e.phase.Active() {
			_ = e.setPhase(Stopped)
		}
		e.mu.Unlock()

		err = errors.Join(err, e.loader.CloseAll())
		e.wg.Wait()
	})
	return err
}

// releaseDevice stops and closes the device. e.mu must be held.
func (e *Engine) releaseDevice() error {
	dev := e.device
	if dev == nil {
		return nil
	}
	e.device = nil

	var errs []error
	if e.phase.Active() {
		errs = append(errs, dev.Stop())
	}
	if dev.Hogged() {
		errs = append(errs, dev.ReleaseHog())
	}
	errs = append(errs, dev.Close())
	return errors.Join(errs...)
}

// setPhase moves the FSM. e.mu must be held.
func (e *Engine) setPhase(to Phase) error {
	from := e.phase
	if err := checkTransition(from, to); err != nil {
		e.logger.Error("refused phase change", "from", from, "to", to)
		return err
	}

	e.phase = to
	e.phaseVal.Store(int32(to))
	e.metrics.RecordPhase(from.String(), to.String(), int(to))
	e.logger.Debug("phase", "from", from, "to", to)
	return nil
}

func (e *Engine) loadDone(idx int, res decoder.Result, err error) {
	if err != nil && !errors.Is(err, decoder.ErrAborted) {
		e.logger.Warn("load failed", "buffer", idx, "frames", res.Frames, "err", err)
	}

	select {
	case e.wake <- struct{}{}:
	default:
	}
}
