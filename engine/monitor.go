// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/buffer"
	"github.com/ik5/bitperfect/output"
)

// route reads the host notifications. Completions of Hog and SetFormat go to
// the request waiting for them, everything else to the control goroutine.
func (e *Engine) route() {
	defer e.wg.Done()

	notes := e.host.Notifications()
	for {
		select {
		case <-e.done:
			return
		case n, ok := <-notes:
			if !ok {
				return
			}

			e.wmu.Lock()
			ch, waiting := e.waiters[n.Kind]
			if waiting {
				delete(e.waiters, n.Kind)
			}
			e.wmu.Unlock()

			if waiting {
				ch <- n
				continue
			}

			select {
			case e.ctrl <- n:
			case <-e.done:
				return
			}
		}
	}
}

// monitor is the state the control goroutine compares against on each tick.
type monitor struct {
	swaps      uint64
	underruns  int64
	overloads  int64
	overloaded bool
}

// control handles notifications nobody waits for and watches the render
// state.
func (e *Engine) control() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.tick)
	defer ticker.Stop()

	var m monitor
	for {
		select {
		case <-e.done:
			return
		case n := <-e.ctrl:
			e.handle(n)
		case <-ticker.C:
			e.check(&m)
		case <-e.wake:
			e.check(&m)
		}
	}
}

func (e *Engine) handle(n output.Notification) {
	logger := e.logger.With("notification", n.Kind, "uid", n.UID)

	switch n.Kind {
	case output.DeviceListChanged:
		devices, err := e.host.Devices()
		if err != nil {
			logger.Warn("listing devices", "err", err)
			return
		}
		e.cb.DeviceListChanged(devices)

	case output.DeviceRemoved:
		e.deviceGone(n.UID, nil)
		e.cb.DeviceRemoved(n.UID)

	case output.DeviceStopped:
		e.mu.Lock()
		current := n.UID == e.uid && e.phase.Active()
		e.mu.Unlock()
		if current {
			logger.Warn("device stopped on its own", "err", n.Err)
			e.deviceGone(n.UID, n.Err)
		}

	case output.DataSourceChanged:
		e.cb.DataSourceChanged(n.UID)

	case output.FormatChanged:
		e.mu.Lock()
		if e.device != nil && n.UID == e.uid && n.Err == nil && e.phase.Active() {
			logger.Info("device format changed", "format", n.Format)
			e.install(e.device)
		}
		e.mu.Unlock()

	default:
		logger.Debug("ignored", "err", n.Err)
	}
}

// deviceGone drops the device uid when it is the selected one. Active
// playback stops with a DeviceUnavailableError.
func (e *Engine) deviceGone(uid string, cause error) {
	e.mu.Lock()
	if uid != e.uid {
		e.mu.Unlock()
		return
	}

	active := e.phase.Active()
	e.r.out.Store(nil)
	if err := e.releaseDevice(); err != nil {
		e.logger.Debug("releasing removed device", "uid", uid, "err", err)
	}
	if active {
		e.r.pause.Store(0)
		_ = e.setPhase(Stopped)
	}
	e.uid = ""
	e.mu.Unlock()

	e.logger.Warn("device gone", "uid", uid, "playing", active)
	if active {
		e.cb.PlaybackStopped(&audio.DeviceUnavailableError{UID: uid, Err: cause})
	}
}

// check turns render flags into events and keeps the slots fed.
func (e *Engine) check(m *monitor) {
	if n := e.r.underruns.Load(); n != m.underruns {
		e.metrics.AddUnderruns(int(n - m.underruns))
		m.underruns = n
	}
	if n := e.r.overloads.Load(); n != m.overloads {
		e.metrics.AddOverloads(int(n - m.overloads))
		m.overloads = n
	}
	if over := e.r.overloaded.Load(); over != m.overloaded {
		m.overloaded = over
		if over {
			e.logger.Warn("render callback overloaded")
		} else {
			e.logger.Info("render callback recovered")
		}
		e.cb.ProcessorOverload(over)
	}

	if n, freed := e.arena.Swaps(); n != m.swaps {
		m.swaps = n
		e.logger.Debug("buffer played", "freed", freed, "playing", e.arena.Playing())
		e.cb.BufferPlayed(freed)
	}

	if e.r.ended.Load() {
		e.finish()
		return
	}

	e.followRate()

	if e.autoChunk {
		e.maybeContinue()
	}
}

// finish stops playback at the end of the track.
func (e *Engine) finish() {
	e.mu.Lock()
	if !e.phase.Active() || !e.r.ended.Load() {
		e.mu.Unlock()
		return
	}
	err := e.halt()
	e.r.ended.Store(false)
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("stopping at end of track", "err", err)
	}
	e.cb.PlaybackStopped(nil)
}

// followRate changes the device format when the playing slot needs another
// one, e.g. after moving to a track at a different rate or bit depth.
func (e *Engine) followRate() {
	e.mu.Lock()
	if e.phase != Playing && e.phase != Paused {
		e.mu.Unlock()
		return
	}
	d := e.arena.PlayingSlot().Data()
	f := e.r.out.Load()
	if d == nil || f == nil || e.device == nil {
		e.mu.Unlock()
		return
	}
	want := e.negotiate(e.device.Info(), d)
	if want == f.format {
		e.mu.Unlock()
		return
	}

	err := e.switchFormat(d)
	if err != nil {
		e.logger.Error("format switch failed", "rate", d.SampleRate, "bits", d.Bits, "err", err)
		if herr := e.halt(); herr != nil {
			e.logger.Warn("stopping after failed switch", "err", herr)
		}
	}
	e.mu.Unlock()

	if err != nil {
		e.cb.PlaybackStopped(err)
	}
}

// switchFormat moves the device to the format of d while output is held.
// When the device cannot keep integer samples at the new rate, it falls
// back to float and reloads the slots in float. e.mu must be held.
func (e *Engine) switchFormat(d *buffer.Data) error {
	dev := e.device
	info := dev.Info()
	want := e.negotiate(info, d)

	e.holdPause(PauseSampleRateChanging)
	if err := e.setPhase(ChangingStreamFormat); err != nil {
		return err
	}
	e.logger.Info("switching stream format", "from", dev.Format(), "to", want)

	err := e.changeFormat(e.ctx, dev, want)
	if err != nil && !want.Float {
		e.logger.Warn("integer format refused", "format", want, "err", err)
		want = info.FloatFormat(d.SampleRate)
		if err = e.changeFormat(e.ctx, dev, want); err == nil {
			e.install(dev)
			if err := e.settle(); err != nil {
				return err
			}
			return e.toFloat(info)
		}
	}
	if err != nil {
		e.releasePause(PauseSampleRateChanging)
		return err
	}

	e.install(dev)
	e.wait(e.prefs.Device.SwitchLatency)

	e.r.pause.Store(e.r.pause.Load() &^ uint32(PauseSampleRateChanging))
	return e.settle()
}

// toFloat reloads the slots in float after integer output was lost. Output
// is held meanwhile. e.mu must be held and the phase is Playing or Paused.
func (e *Engine) toFloat(info output.DeviceInfo) error {
	if err := e.setPhase(SwitchingBackToFloatMode); err != nil {
		return err
	}
	e.r.pause.Store(e.r.pause.Load() | uint32(PauseBufferSizeChanging))
	e.integerLost = true

	idx := e.arena.Playing()
	other := buffer.Other(idx)
	pd := e.arena.Slot(idx).Data()
	od := e.arena.Slot(other).Data()
	position := e.arena.Slot(idx).CurrentFrame()
	policy := e.floatPolicy(info)

	var errs []error
	if od != nil && pd != nil && od.Decoder == pd.Decoder {
		errs = append(errs, e.loader.Close(other))
		e.arena.SetNextChunk(-1)
		od = nil
	}
	if pd != nil {
		errs = append(errs, e.loader.Reload(e.ctx, idx, position, policy))
	}
	if od != nil && od.Integer() {
		errs = append(errs, e.loader.Reload(e.ctx, other, od.FirstFrame, policy))
	}

	e.wait(e.prefs.Device.SwitchLatency)
	e.r.pause.Store(e.r.pause.Load() &^ uint32(PauseSampleRateChanging|PauseBufferSizeChanging))

	e.logger.Info("switched back to float", "position", position)
	return errors.Join(append(errs, e.settle())...)
}

// wait sleeps for d unless the engine closes.
func (e *Engine) wait(d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-e.done:
	}
}

// maybeContinue starts loading the next chunk of the playing track once the
// playing slot is fully loaded.
func (e *Engine) maybeContinue() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.phase.Active() {
		return
	}

	playing := e.arena.PlayingSlot()
	pd := playing.Data()
	if pd == nil || !playing.Completed() || playing.EOF() {
		return
	}

	other := buffer.Other(playing.Index())
	if e.arena.NextChunk() == other || e.loader.Loading(other) {
		return
	}
	if od := e.arena.Slot(other).Data(); od != nil && od.Decoder != pd.Decoder {
		return
	}

	if err := e.loader.StartNextChunk(e.ctx, other); err != nil {
		if !errors.Is(err, context.Canceled) {
			e.logger.Warn("loading next chunk", "buffer", other, "err", err)
		}
		return
	}
	e.arena.SetNextChunk(other)
	if !e.arena.ChangePending() {
		e.arena.RequestChange()
	}
	e.logger.Debug("next chunk loading", "buffer", other, "from", playing.NextPosition())
}
