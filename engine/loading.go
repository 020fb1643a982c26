// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ik5/bitperfect/buffer"
	"github.com/ik5/bitperfect/decoder"
	"github.com/ik5/bitperfect/loader"
	"github.com/ik5/bitperfect/output"
)

// LoadFile opens path into slot idx. While playing, the slot must not be
// the playing one and the engine moves to it once the playing slot is
// exhausted.
func (e *Engine) LoadFile(ctx context.Context, path string, idx int) error {
	if !buffer.Valid(idx) {
		return fmt.Errorf("invalid buffer index %d", idx)
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	active := e.phase.Active()
	if active && idx == e.arena.Playing() {
		e.mu.Unlock()
		return ErrBufferInUse
	}
	e.loader.SetPolicy(e.policy(e.deviceInfo(), e.integer && !e.integerLost))
	if e.arena.NextChunk() == idx {
		e.arena.SetNextChunk(-1)
	}
	e.mu.Unlock()

	if err := e.loader.LoadFile(ctx, path, idx); err != nil {
		return err
	}

	if active && !e.arena.ChangePending() {
		e.arena.RequestChange()
	}
	return nil
}

// LoadNextChunk continues the track of the other slot into slot idx.
func (e *Engine) LoadNextChunk(ctx context.Context, idx int) error {
	if !buffer.Valid(idx) {
		return fmt.Errorf("invalid buffer index %d", idx)
	}
	if e.Phase().Active() && idx == e.arena.Playing() {
		return ErrBufferInUse
	}

	if err := e.loader.LoadNextChunk(ctx, idx); err != nil {
		return err
	}
	e.arena.SetNextChunk(idx)

	if e.Phase().Active() && !e.arena.ChangePending() {
		e.arena.RequestChange()
	}
	return nil
}

// LoadChunkAt reloads slot idx from position, a frame of the track at its
// playing rate.
func (e *Engine) LoadChunkAt(ctx context.Context, idx int, position int64) error {
	return e.loader.LoadChunkAt(ctx, idx, position)
}

// AbortLoading stops the loads of both slots and returns once nothing
// writes into them.
func (e *Engine) AbortLoading() {
	e.loader.AbortAll()
}

// CloseBuffer empties slot idx. The playing slot cannot be closed while
// playing.
func (e *Engine) CloseBuffer(idx int) error {
	if !buffer.Valid(idx) {
		return fmt.Errorf("invalid buffer index %d", idx)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase.Active() && idx == e.arena.Playing() {
		return ErrBufferInUse
	}
	if e.arena.NextChunk() == idx {
		e.arena.SetNextChunk(-1)
	}
	return e.loader.Close(idx)
}

// CloseBuffers empties both slots. Playback must not be active.
func (e *Engine) CloseBuffers() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase.Active() {
		return ErrBusy
	}
	return e.closeBuffers()
}

// closeBuffers empties both slots. e.mu must be held.
func (e *Engine) closeBuffers() error {
	e.loader.AbortAll()
	e.arena.SetNextChunk(-1)
	return errors.Join(e.loader.Close(0), e.loader.Close(1))
}

// deviceInfo describes the device the next playback will use. e.mu must be
// held.
func (e *Engine) deviceInfo() output.DeviceInfo {
	if e.device != nil {
		return e.device.Info()
	}

	if e.uid != "" {
		if devices, err := e.host.Devices(); err == nil {
			for _, d := range devices {
				if d.UID == e.uid {
					return d
				}
			}
		}
	}

	if def, err := e.host.Default(); err == nil {
		return def
	}
	return output.DeviceInfo{}
}

// policy configures new decoders for info: the playing rate comes from the
// override or ChooseSampleRate, and integer mode is used when the device
// has a format that holds the file's samples. e.mu must be held.
func (e *Engine) policy(info output.DeviceInfo, integer bool) loader.Policy {
	override := e.targetRate
	prefs := e.prefs.Resample
	forced := e.intFormat
	logger := e.logger

	return func(d *decoder.Decoder) error {
		rate := override
		if rate <= 0 {
			rate = ChooseSampleRate(d.NativeRate(), info, prefs)
		}
		if err := d.SetTargetSampleRate(rate); err != nil {
			return err
		}

		if !integer || d.BitDepth() <= 0 {
			return nil
		}

		f := forced
		if f.BitsPerChannel == 0 {
			var ok bool
			if f, ok = info.IntegerFormat(rate, d.BitDepth()); !ok {
				logger.Debug("no integer format", "bits", d.BitDepth(), "uid", info.UID)
				return nil
			}
		}
		f.SampleRate = rate
		if f.Channels == 0 {
			f.Channels = d.Channels()
		}
		return d.SetIntegerMode(true, f)
	}
}

// floatPolicy is policy without integer mode.
func (e *Engine) floatPolicy(info output.DeviceInfo) loader.Policy {
	return e.policy(info, false)
}

// Callbacks receive load progress straight from the loader.
var _ loader.Reporter = Callbacks(nil)
