// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/buffer"
	"github.com/ik5/bitperfect/decoder"
	"github.com/ik5/bitperfect/output"
)

// InitiatePlayback opens the selected device, negotiates a format for the
// loaded slot and starts rendering. Any failure releases the device, empties
// the slots and returns the engine to Idle.
//
// A paused engine is resumed.
func (e *Engine) InitiatePlayback(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}
	switch e.phase {
	case Playing:
		return nil
	case Paused:
		e.releasePause(PauseExplicit)
		return nil
	}

	idx := e.arena.Playing()
	if e.arena.Slot(idx).Data() == nil {
		idx = buffer.Other(idx)
	}
	if e.arena.Slot(idx).Data() == nil {
		return ErrNoBuffer
	}

	if err := e.setPhase(InitiatingPlayback); err != nil {
		return err
	}

	if err := e.initiate(ctx, idx); err != nil {
		return e.unwind(err)
	}
	return nil
}

func (e *Engine) initiate(ctx context.Context, idx int) error {
	dev, err := e.openDevice()
	if err != nil {
		return err
	}
	info := dev.Info()
	d := e.arena.Slot(idx).Data()

	want := e.negotiate(info, d)
	logger := e.logger.With("uid", info.UID)

	if e.prefs.Device.HogMode && !dev.Hogged() {
		if err := e.setPhase(HoggingDevice); err != nil {
			return err
		}
		n, err := e.request(ctx, output.HogChanged, dev.Hog)
		if err == nil {
			err = n.Err
		}
		if err == nil && !n.Hogged {
			err = errors.New("device still shared")
		}
		if err != nil {
			return &audio.HoggingError{UID: info.UID, Err: err}
		}
		if err := e.setPhase(DeviceHogged); err != nil {
			return err
		}
		logger.Info("device hogged")
	}

	if dev.Format() != want {
		if err := e.setPhase(ChangingStreamFormat); err != nil {
			return err
		}
		if err := e.changeFormat(ctx, dev, want); err != nil {
			return err
		}
	}

	frames := DefaultIOFrames
	if e.prefs.Buffer.ForceMaxIOSize && info.MaxBufferFrames > 0 {
		frames = info.MaxBufferFrames
	}
	got, err := dev.SetBufferFrameSize(frames)
	if err != nil {
		return fmt.Errorf("setting I/O buffer of %s: %w", info.UID, err)
	}

	if err := e.setPhase(FinishingDeviceInitialization); err != nil {
		return err
	}

	e.arena.SetPlaying(idx)
	e.r.reset()
	e.r.pause.Store(0)
	e.install(dev)

	if err := dev.Start(e.r.render); err != nil {
		e.r.out.Store(nil)
		return &audio.DeviceUnavailableError{UID: info.UID, Err: err}
	}

	logger.Info("playback started",
		"format", dev.Format(),
		"io_frames", got,
		"buffer", idx,
	)
	return e.setPhase(Playing)
}

// openDevice opens the selected device, or the default one. e.mu must be
// held.
func (e *Engine) openDevice() (output.Device, error) {
	if e.device != nil {
		return e.device, nil
	}

	uid := e.uid
	if uid == "" {
		def, err := e.host.Default()
		if err != nil {
			return nil, &audio.DeviceUnavailableError{Err: err}
		}
		uid = def.UID
	}

	dev, err := e.host.Open(uid)
	if err != nil {
		var unavailable *audio.DeviceUnavailableError
		if errors.As(err, &unavailable) {
			return nil, err
		}
		return nil, &audio.DeviceUnavailableError{UID: uid, Err: err}
	}

	e.uid = uid
	e.device = dev
	e.origFormat = dev.Format()
	return dev, nil
}

// negotiate picks the device format for d: the integer format that holds
// its samples, or the float mix format.
func (e *Engine) negotiate(info output.DeviceInfo, d *buffer.Data) audio.StreamFormat {
	if d.Integer() {
		if f, ok := info.IntegerFormat(d.SampleRate, d.Bits); ok {
			return f
		}
	}
	return info.FloatFormat(d.SampleRate)
}

// changeFormat asks dev for f and waits for the outcome.
func (e *Engine) changeFormat(ctx context.Context, dev output.Device, f audio.StreamFormat) error {
	n, err := e.request(ctx, output.FormatChanged, func(ctx context.Context) error {
		return dev.SetFormat(ctx, f)
	})
	if err == nil {
		err = n.Err
	}
	if err == nil && n.Format != f {
		err = fmt.Errorf("device chose %s", n.Format)
	}
	if err != nil {
		var fe *audio.FormatNegotiationError
		if errors.As(err, &fe) {
			return err
		}
		return &audio.FormatNegotiationError{Want: f, Err: err}
	}

	e.logger.Info("stream format changed", "format", f)
	return nil
}

// install hands the device format to the render callback.
func (e *Engine) install(dev output.Device) {
	e.r.out.Store(newOutFormat(dev.Format(), dev.Info().PreferredStereo))
}

// request registers a waiter for kind, starts the change with fn and waits
// for its notification.
func (e *Engine) request(ctx context.Context, kind output.NotificationKind, fn func(context.Context) error) (output.Notification, error) {
	ch := make(chan output.Notification, 1)

	e.wmu.Lock()
	e.waiters[kind] = ch
	e.wmu.Unlock()

	defer func() {
		e.wmu.Lock()
		if e.waiters[kind] == ch {
			delete(e.waiters, kind)
		}
		e.wmu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, e.notifyTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		return output.Notification{}, err
	}

	select {
	case n := <-ch:
		return n, nil
	case <-ctx.Done():
		return output.Notification{}, fmt.Errorf("waiting for %s: %w", kind, ctx.Err())
	case <-e.done:
		return output.Notification{}, ErrClosed
	}
}

// unwind undoes a failed initiation and returns cause together with
// whatever went wrong on the way back. e.mu must be held.
func (e *Engine) unwind(cause error) error {
	e.logger.Error("playback initiation failed", "phase", e.phase, "err", cause)

	errs := []error{cause}
	e.r.out.Store(nil)

	if dev := e.device; dev != nil {
		if err := dev.Stop(); err != nil {
			errs = append(errs, err)
		}
		if dev.Hogged() {
			if err := dev.ReleaseHog(); err != nil {
				errs = append(errs, err)
			}
		}
		if orig := e.origFormat; orig.SampleRate > 0 && dev.Format() != orig {
			ctx, cancel := context.WithTimeout(context.Background(), e.notifyTimeout)
			if err := e.changeFormat(ctx, dev, orig); err != nil {
				errs = append(errs, err)
			}
			cancel()
		}
	}

	if err := e.closeBuffers(); err != nil {
		errs = append(errs, err)
	}
	e.r.pause.Store(0)

	if err := e.setPhase(Idle); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stop halts the device. The slots keep their content. Stopping is not
// reported through PlaybackStopped.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.phase.Active() {
		return nil
	}
	return e.halt()
}

// halt stops the device and moves to Stopped. e.mu must be held.
func (e *Engine) halt() error {
	var err error
	if e.device != nil {
		err = e.device.Stop()
	}
	e.r.out.Store(nil)
	e.r.pause.Store(0)

	e.logger.Info("playback stopped", "position", e.Position())
	return errors.Join(err, e.setPhase(Stopped))
}

// Pause holds output until Resume.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.phase.Active() {
		return ErrNotPlaying
	}
	e.holdPause(PauseExplicit)
	return nil
}

// Resume clears an explicit pause. Output restarts once no other reason is
// held.
func (e *Engine) Resume() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.phase.Active() {
		return ErrNotPlaying
	}
	e.releasePause(PauseExplicit)
	return nil
}

// holdPause adds reason to the pause mask. The first reason moves Playing to
// Paused. e.mu must be held.
func (e *Engine) holdPause(reason PauseReason) {
	old := PauseReason(e.r.pause.Load())
	e.r.pause.Store(uint32(old | reason))

	if old == 0 && e.phase == Playing {
		_ = e.setPhase(Paused)
	}
}

// releasePause clears reason. Clearing the last reason moves Paused to
// Playing. e.mu must be held.
func (e *Engine) releasePause(reason PauseReason) {
	old := PauseReason(e.r.pause.Load())
	next := old &^ reason
	e.r.pause.Store(uint32(next))

	if old != 0 && next == 0 && e.phase == Paused {
		_ = e.setPhase(Playing)
	}
}

// settle leaves a transitional phase for Playing or Paused, depending on
// the pause mask. e.mu must be held.
func (e *Engine) settle() error {
	if e.r.pause.Load() != 0 {
		return e.setPhase(Paused)
	}
	return e.setPhase(Playing)
}

// Seek moves playback to d within the track. A target inside the loaded
// part of the playing slot is reached by moving the cursor; anything else
// reloads the slot from the target.
func (e *Engine) Seek(ctx context.Context, d time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	idx := e.arena.Playing()
	slot := e.arena.Slot(idx)
	data := slot.Data()
	if data == nil || data.SampleRate <= 0 {
		return ErrNoBuffer
	}

	frame := int64(d) * int64(data.SampleRate) / int64(time.Second)
	if total := slot.TotalFrames(); frame < 0 || (total > 0 && frame >= total) {
		return fmt.Errorf("%w: %s", decoder.ErrInvalidPosition, d)
	}

	if rel := frame - data.FirstFrame; rel >= 0 && rel < slot.Loaded() {
		slot.RequestSeek(rel)
		e.logger.Debug("seek in buffer", "buffer", idx, "frame", frame)
		return nil
	}

	held := PauseReason(e.r.pause.Load())&PauseExplicit != 0
	if !held {
		e.holdPause(PauseExplicit)
		defer e.releasePause(PauseExplicit)
	}

	// A continuation of the same track is stale after the jump.
	other := buffer.Other(idx)
	if o := e.arena.Slot(other).Data(); o != nil && o.Decoder == data.Decoder {
		if err := e.loader.Close(other); err != nil {
			e.logger.Warn("closing stale chunk", "buffer", other, "err", err)
		}
		e.arena.SetNextChunk(-1)
	}

	e.logger.Debug("seek by reload", "buffer", idx, "frame", frame)
	return e.loader.LoadChunkAt(ctx, idx, frame)
}
