// SPDX-License-Identifier: EPL-2.0

package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/bitperfect/decoder"
)

func testData(frames int, first int64) *Data {
	return &Data{
		Buffer:     &decoder.Buffer{Float: make([]float32, frames*2), Channels: 2},
		SampleRate: 48000,
		Channels:   2,
		FirstFrame: first,
	}
}

func TestSlot_LoadLifecycle(t *testing.T) {
	t.Parallel()

	a := NewArena()
	s := a.Slot(1)
	require.Equal(t, 1, s.Index())
	assert.Nil(t, s.Data())

	d := testData(1000, 48000)
	s.Publish(d, 1000)

	assert.Same(t, d, s.Data())
	assert.True(t, s.Loading())
	assert.False(t, s.Completed())
	assert.Equal(t, int64(8000), d.Size())

	s.SetLoaded(400)
	st := s.LoadStatus()
	assert.Equal(t, LoadStatus{
		BufferIndex:      1,
		FirstLoadedFrame: 48000,
		LastLoadedFrame:  48400,
		LastFrameToLoad:  49000,
	}, st)

	// Loaded never exceeds the slot length.
	s.SetLoaded(5000)
	assert.Equal(t, int64(1000), s.Loaded())

	s.Finish(decoder.Result{Frames: 700, Completed: true, TotalFrames: 48700})
	assert.Equal(t, int64(700), s.Loaded())
	assert.Equal(t, int64(700), s.Length())
	assert.True(t, s.EOF())
	assert.False(t, s.Loading())
	assert.True(t, s.Completed())
	assert.Equal(t, int64(48700), s.TotalFrames())

	old := s.Clear()
	assert.Same(t, d, old)
	assert.Nil(t, s.Data())
	assert.Zero(t, s.Loaded())
	assert.Zero(t, s.Status())
}

func TestSlot_FinishChunk(t *testing.T) {
	t.Parallel()

	s := NewArena().Slot(0)
	s.Publish(testData(600, 0), 600)
	s.Finish(decoder.Result{Frames: 600, NextPosition: 600, TotalFrames: 1000})

	assert.True(t, s.Completed())
	assert.False(t, s.EOF())
	assert.Equal(t, int64(600), s.NextPosition())
	assert.Equal(t, int64(600), s.Length())
}

func TestSlot_StopKeepsLoadedFrames(t *testing.T) {
	t.Parallel()

	s := NewArena().Slot(0)
	s.Publish(testData(600, 0), 600)
	s.SetLoaded(250)
	s.Stop(250)

	assert.False(t, s.Loading())
	assert.False(t, s.Completed())
	assert.Equal(t, int64(250), s.Loaded())
	assert.Equal(t, int64(250), s.NextPosition())
}

func TestSlot_SeekMailbox(t *testing.T) {
	t.Parallel()

	s := NewArena().Slot(0)
	s.Publish(testData(100, 1000), 100)

	_, ok := s.TakeSeek()
	assert.False(t, ok)

	s.RequestSeek(10)
	s.RequestSeek(42)
	assert.True(t, s.SeekPending())

	target, ok := s.TakeSeek()
	require.True(t, ok)
	assert.Equal(t, int64(42), target, "latest request wins")
	assert.False(t, s.SeekPending())

	_, ok = s.TakeSeek()
	assert.False(t, ok)

	s.SetCursor(target)
	assert.Equal(t, int64(1042), s.CurrentFrame())
	assert.Equal(t, time.Duration(1042)*time.Second/48000, s.CurrentTime())
}

func TestArena_SwapOnlyWhenRequested(t *testing.T) {
	t.Parallel()

	a := NewArena()
	assert.Equal(t, -1, a.NextChunk())
	assert.Equal(t, 0, a.Playing())

	assert.False(t, a.Swap())
	assert.Equal(t, 0, a.Playing())

	a.Slot(1).SetCursor(77)
	a.RequestChange()
	require.True(t, a.ChangePending())
	assert.False(t, a.Swap(), "an empty slot is never entered")
	require.True(t, a.ChangePending())

	a.Slot(1).Publish(testData(100, 0), 100)
	require.True(t, a.Swap())

	assert.Equal(t, 1, a.Playing())
	assert.Zero(t, a.Slot(1).Cursor(), "new slot starts at its first frame")
	assert.False(t, a.ChangePending())

	n, freed := a.Swaps()
	assert.Equal(t, uint64(1), n)
	assert.Equal(t, 0, freed)

	a.Slot(0).Publish(testData(100, 0), 100)
	assert.False(t, a.Swap(), "one request is one hand-off")
	assert.Equal(t, 1, a.PlayingSlot().Index())
}

func TestOther(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 1, Other(0))
	assert.Equal(t, 0, Other(1))
	assert.True(t, Valid(1))
	assert.False(t, Valid(2))
	assert.False(t, Valid(-1))
}

func TestSlot_LoadedIsMonotoneForReaders(t *testing.T) {
	t.Parallel()

	const frames = 64 * 1500
	s := NewArena().Slot(0)
	d := testData(frames, 0)
	s.Publish(d, frames)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := int64(0); n <= frames; n += 64 {
			lo := n - 64
			for i := max(lo, 0) * 2; i < n*2; i++ {
				d.Buffer.Float[i] = 1
			}
			s.SetLoaded(n)
		}
		s.Finish(decoder.Result{Frames: frames, Completed: true, TotalFrames: frames})
	}()

	var last int64
	for !s.Completed() {
		n := s.Loaded()
		require.GreaterOrEqual(t, n, last)
		require.LessOrEqual(t, n, s.Length())
		if n > 0 {
			// Frames below Loaded are always written.
			require.Equal(t, float32(1), d.Buffer.Float[(n-1)*2])
		}
		last = n
	}
	wg.Wait()
}
