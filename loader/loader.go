// SPDX-License-Identifier: EPL-2.0

package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/buffer"
	"github.com/ik5/bitperfect/decoder"
	"github.com/ik5/bitperfect/internal/logging"
	"github.com/ik5/bitperfect/internal/metrics"
)

var (
	ErrNoDecoder = errors.New("loader: no decoder to continue from")
	ErrClosed    = errors.New("loader: closed")
)

const (
	// DefaultStartup is how much audio LoadFile waits for before it returns.
	DefaultStartup = 2 * time.Second
	// DefaultMaxBufferSize is the default size of one slot in bytes.
	DefaultMaxBufferSize = 512 << 20

	reportInterval = 100 * time.Millisecond
)

// Reporter receives load progress. Calls come from the load tasks and must
// not block.
type Reporter interface {
	LoadStatus(st buffer.LoadStatus)
	MetadataReady(idx int, md audio.Metadata)
}

// Policy configures a freshly created decoder before its first load, e.g.
// its target rate and integer mode.
type Policy func(d *decoder.Decoder) error

// DoneFunc is called once a load task has stopped. err is nil when the
// buffer was filled or the track ended.
type DoneFunc func(idx int, res decoder.Result, err error)

// Loader fills the slots of an arena in the background.
type Loader struct {
	arena   *buffer.Arena
	factory *decoder.Factory

	maxBufferSize int
	startup       time.Duration
	policy        Policy
	reporter      Reporter
	onDone        DoneFunc
	metrics       *metrics.Metrics
	logger        *log.Logger

	mu     sync.Mutex
	tasks  [buffer.Slots]*task
	closed bool
}

type task struct {
	idx    int
	dec    *decoder.Decoder
	cancel context.CancelFunc
	done   chan struct{}
	ready  chan struct{}
	once   sync.Once
	res    decoder.Result
	err    error
}

func (t *task) markReady() { t.once.Do(func() { close(t.ready) }) }

type Option func(*Loader)

func WithMaxBufferSize(bytes int) Option {
	return func(l *Loader) { l.maxBufferSize = bytes }
}

// WithStartup sets how much audio LoadFile waits for.
func WithStartup(d time.Duration) Option {
	return func(l *Loader) { l.startup = d }
}

func WithPolicy(p Policy) Option {
	return func(l *Loader) { l.policy = p }
}

func WithReporter(r Reporter) Option {
	return func(l *Loader) { l.reporter = r }
}

func WithDoneFunc(f DoneFunc) Option {
	return func(l *Loader) { l.onDone = f }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Loader) { l.metrics = m }
}

func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New returns a loader writing into arena.
func New(arena *buffer.Arena, factory *decoder.Factory, opts ...Option) *Loader {
	l := &Loader{
		arena:         arena,
		factory:       factory,
		maxBufferSize: DefaultMaxBufferSize,
		startup:       DefaultStartup,
		reporter:      nopReporter{},
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "loader")
	return l
}

// SetPolicy replaces the decoder policy for the next LoadFile.
func (l *Loader) SetPolicy(p Policy) {
	l.mu.Lock()
	l.policy = p
	l.mu.Unlock()
}

// LoadFile opens path into slot idx and starts filling it from the first
// frame. It returns once the startup amount of audio is loaded, the load
// ended, or ctx is done; loading continues in the background.
func (l *Loader) LoadFile(ctx context.Context, path string, idx int) error {
	if !buffer.Valid(idx) {
		return fmt.Errorf("loader: invalid buffer index %d", idx)
	}
	if err := l.Close(idx); err != nil {
		l.logger.Warn("closing previous buffer", "buffer", idx, "err", err)
	}

	dec, err := l.open(path, nil)
	if err != nil {
		return err
	}

	l.reporter.MetadataReady(idx, dec.Metadata())

	t, err := l.start(ctx, idx, dec, 0, nil)
	if err != nil {
		_ = dec.Close()
		return err
	}
	return l.wait(ctx, t)
}

// LoadNextChunk continues the track of the other slot into slot idx, from
// where the other slot's load stopped. The decoder moves to idx.
func (l *Loader) LoadNextChunk(ctx context.Context, idx int) error {
	t, err := l.next(ctx, idx)
	if err != nil {
		return err
	}
	return l.wait(ctx, t)
}

// StartNextChunk is LoadNextChunk without waiting for the startup amount.
func (l *Loader) StartNextChunk(ctx context.Context, idx int) error {
	_, err := l.next(ctx, idx)
	return err
}

func (l *Loader) next(ctx context.Context, idx int) (*task, error) {
	if !buffer.Valid(idx) {
		return nil, fmt.Errorf("loader: invalid buffer index %d", idx)
	}

	other := l.arena.Slot(buffer.Other(idx))
	l.waitTask(other.Index())

	d := other.Data()
	if d == nil || d.Decoder == nil {
		return nil, ErrNoDecoder
	}
	if other.EOF() {
		return nil, fmt.Errorf("%w: track already ended in buffer %d", ErrNoDecoder, other.Index())
	}

	l.Abort(idx)
	old := l.arena.Slot(idx).Data()

	var reuse *decoder.Buffer
	if l.arena.Playing() != idx {
		reuse = reusable(old, d.Decoder)
	}
	l.release(idx, d.Decoder)

	return l.start(ctx, idx, d.Decoder, other.NextPosition(), reuse)
}

// LoadChunkAt reloads slot idx from position, which is a frame of the track
// at the playing rate. The slot keeps its decoder, or takes the other
// slot's one when it has none.
func (l *Loader) LoadChunkAt(ctx context.Context, idx int, position int64) error {
	if !buffer.Valid(idx) {
		return fmt.Errorf("loader: invalid buffer index %d", idx)
	}

	l.Abort(idx)

	slot := l.arena.Slot(idx)
	var dec *decoder.Decoder
	if d := slot.Data(); d != nil && d.Decoder != nil {
		dec = d.Decoder
	} else {
		other := l.arena.Slot(buffer.Other(idx))
		l.Abort(other.Index())
		if d := other.Data(); d != nil {
			dec = d.Decoder
		}
	}
	if dec == nil {
		return ErrNoDecoder
	}

	if total := dec.TotalFrames(); position < 0 || (total > 0 && position >= total) {
		return fmt.Errorf("%w: %d of %d", decoder.ErrInvalidPosition, position, total)
	}

	t, err := l.start(ctx, idx, dec, position, nil)
	if err != nil {
		return err
	}
	return l.wait(ctx, t)
}

// Reload reopens the file of slot idx with a fresh decoder configured by
// policy, or by the loader policy when it is nil, and fills the slot from
// position. position is a frame at the slot's current rate and is moved to
// the new decoder's rate.
func (l *Loader) Reload(ctx context.Context, idx int, position int64, policy Policy) error {
	if !buffer.Valid(idx) {
		return fmt.Errorf("loader: invalid buffer index %d", idx)
	}

	l.Abort(idx)
	d := l.arena.Slot(idx).Data()
	if d == nil || d.Decoder == nil {
		return ErrNoDecoder
	}
	path, rate := d.Decoder.Path(), d.SampleRate

	if err := l.Close(idx); err != nil {
		l.logger.Warn("closing previous buffer", "buffer", idx, "err", err)
	}

	dec, err := l.open(path, policy)
	if err != nil {
		return err
	}

	if rate > 0 && dec.TargetRate() != rate {
		position = position * int64(dec.TargetRate()) / int64(rate)
	}

	t, err := l.start(ctx, idx, dec, position, nil)
	if err != nil {
		_ = dec.Close()
		return err
	}
	return l.wait(ctx, t)
}

// open creates a decoder for path and configures it.
func (l *Loader) open(path string, policy Policy) (*decoder.Decoder, error) {
	dec, err := l.factory.Create(path)
	if err != nil {
		l.metrics.RecordLoad(metrics.LoadFailed, 0)
		return nil, err
	}

	l.mu.Lock()
	if policy == nil {
		policy = l.policy
	}
	closed := l.closed
	l.mu.Unlock()
	if closed {
		_ = dec.Close()
		return nil, ErrClosed
	}

	if policy != nil {
		if err := policy(dec); err != nil {
			_ = dec.Close()
			return nil, fmt.Errorf("configure %s: %w", path, err)
		}
	}
	return dec, nil
}

// reusable returns the buffer of old when a load of dec can write into it.
func reusable(old *buffer.Data, dec *decoder.Decoder) *decoder.Buffer {
	if old == nil || old.Buffer == nil || old.Buffer.Channels != dec.Channels() {
		return nil
	}
	if old.Integer() != dec.IntegerMode() {
		return nil
	}
	return old.Buffer
}

func (l *Loader) start(ctx context.Context, idx int, dec *decoder.Decoder, start int64, buf *decoder.Buffer) (*task, error) {
	frames := dec.ChunkFrames(start, l.maxBufferSize)
	if frames <= 0 {
		return nil, fmt.Errorf("%w: nothing to load at %d", decoder.ErrInvalidPosition, start)
	}
	if buf == nil || buf.Frames() < frames {
		buf = dec.NewBuffer(frames)
	}

	data := &buffer.Data{
		Buffer:     buf,
		Decoder:    dec,
		SampleRate: dec.TargetRate(),
		Channels:   dec.Channels(),
		FirstFrame: start,
	}
	if dec.IntegerMode() {
		data.Bits = dec.IntegerFormat().BitsPerChannel
	}

	slot := l.arena.Slot(idx)
	slot.Publish(data, frames)

	st := slot.LoadStatus()
	st.Reset = true
	l.reporter.LoadStatus(st)

	taskCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	t := &task{
		idx:    idx,
		dec:    dec,
		cancel: cancel,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		cancel()
		slot.Clear()
		return nil, ErrClosed
	}
	l.tasks[idx] = t
	l.mu.Unlock()

	threshold := int64(l.startup.Seconds() * float64(data.SampleRate))

	l.logger.Debug("load started",
		"buffer", idx,
		"file", dec.Path(),
		"from", start,
		"frames", frames,
	)

	go l.run(taskCtx, t, slot, data, frames, threshold)
	return t, nil
}

func (l *Loader) run(ctx context.Context, t *task, slot *buffer.Slot, data *buffer.Data, frames, threshold int64) {
	began := time.Now()
	lastReport := began

	buf := data.Buffer
	if buf.Frames() > frames {
		buf = truncated(buf, frames)
	}

	res, err := data.Decoder.Fill(ctx, buf, data.FirstFrame, func(n int64) {
		slot.SetLoaded(n)
		if n >= threshold {
			t.markReady()
		}
		if now := time.Now(); now.Sub(lastReport) >= reportInterval {
			lastReport = now
			l.reporter.LoadStatus(slot.LoadStatus())
		}
	})

	result := metrics.LoadPartial
	switch {
	case err == nil:
		slot.Finish(res)
		if res.Completed {
			result = metrics.LoadCompleted
		}
	case errors.Is(err, decoder.ErrAborted):
		slot.SetLoaded(res.Frames)
		slot.Stop(res.NextPosition)
		result = metrics.LoadAborted
	default:
		slot.SetLoaded(res.Frames)
		slot.Stop(res.NextPosition)
		result = metrics.LoadFailed
		l.logger.Error("load failed", "buffer", t.idx, "file", data.Decoder.Path(), "err", err)
	}

	l.metrics.RecordLoad(result, time.Since(began))
	l.metrics.AddFramesDecoded(res.Frames)
	l.reporter.LoadStatus(slot.LoadStatus())

	l.logger.Debug("load stopped",
		"buffer", t.idx,
		"result", result,
		"frames", res.Frames,
		"next", res.NextPosition,
		"took", time.Since(began),
	)

	l.mu.Lock()
	if l.tasks[t.idx] == t {
		l.tasks[t.idx] = nil
	}
	l.mu.Unlock()

	t.res, t.err = res, err
	t.markReady()
	close(t.done)

	if l.onDone != nil {
		l.onDone(t.idx, res, err)
	}
}

// truncated views the first frames of buf.
func truncated(buf *decoder.Buffer, frames int64) *decoder.Buffer {
	n := frames * int64(buf.Channels)
	b := &decoder.Buffer{Channels: buf.Channels}
	if buf.Int != nil {
		b.Int = buf.Int[:n]
	} else {
		b.Float = buf.Float[:n]
	}
	return b
}

// wait blocks until t is ready. Only a failure of the load itself is
// returned: an abort while waiting is not an error of the caller.
func (l *Loader) wait(ctx context.Context, t *task) error {
	select {
	case <-t.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-t.done:
		if t.err != nil && !errors.Is(t.err, decoder.ErrAborted) {
			return t.err
		}
	default:
	}
	return nil
}

// waitTask blocks until the load of slot idx, if any, has stopped.
func (l *Loader) waitTask(idx int) {
	l.mu.Lock()
	t := l.tasks[idx]
	l.mu.Unlock()

	if t != nil {
		<-t.done
	}
}

// Loading reports whether a task is filling slot idx.
func (l *Loader) Loading(idx int) bool {
	l.mu.Lock()
	t := l.tasks[idx]
	l.mu.Unlock()

	if t == nil {
		return false
	}
	select {
	case <-t.done:
		return false
	default:
		return true
	}
}

// Abort stops the load of slot idx and returns once nothing writes into the
// slot any more. What was loaded stays in the slot.
func (l *Loader) Abort(idx int) {
	if !buffer.Valid(idx) {
		return
	}

	l.mu.Lock()
	t := l.tasks[idx]
	l.tasks[idx] = nil
	l.mu.Unlock()

	if t == nil {
		return
	}
	t.cancel()
	<-t.done

	// The other slot may stream from the same decoder.
	if !l.streaming(t.dec) {
		t.dec.AbortLoading()
	}
}

func (l *Loader) streaming(dec *decoder.Decoder) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.tasks {
		if t != nil && t.dec == dec {
			return true
		}
	}
	return false
}

// AbortAll aborts the loads of both slots.
func (l *Loader) AbortAll() {
	var g errgroup.Group
	for i := range buffer.Slots {
		g.Go(func() error {
			l.Abort(i)
			return nil
		})
	}
	_ = g.Wait()
}

// Close aborts the load of slot idx, empties it and closes its decoder
// unless the other slot still streams from it.
func (l *Loader) Close(idx int) error {
	if !buffer.Valid(idx) {
		return fmt.Errorf("loader: invalid buffer index %d", idx)
	}

	l.Abort(idx)
	return l.release(idx, nil)
}

// release empties slot idx and closes its decoder unless keep is that
// decoder or the other slot uses it.
func (l *Loader) release(idx int, keep *decoder.Decoder) error {
	d := l.arena.Slot(idx).Clear()
	l.reporter.LoadStatus(buffer.LoadStatus{BufferIndex: idx, Reset: true})

	if d == nil || d.Decoder == nil || d.Decoder == keep {
		return nil
	}
	if o := l.arena.Slot(buffer.Other(idx)).Data(); o != nil && o.Decoder == d.Decoder {
		return nil
	}
	return d.Decoder.Close()
}

// CloseAll closes both slots and refuses further loads.
func (l *Loader) CloseAll() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()

	l.AbortAll()
	return errors.Join(l.release(0, nil), l.release(1, nil))
}

type nopReporter struct{}

func (nopReporter) LoadStatus(buffer.LoadStatus)      {}
func (nopReporter) MetadataReady(int, audio.Metadata) {}
