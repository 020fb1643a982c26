// SPDX-License-Identifier: EPL-2.0

package buffer

import "sync/atomic"

// Slots is the number of slots in an Arena.
const Slots = 2

// Arena is the double buffer: one slot plays while the other loads.
//
// The hand-off between slots is a request counter written by the controller
// and an acknowledgement counter written by the render callback. The
// playing index is written by the controller only while the render callback
// is stopped, and by the render callback otherwise.
type Arena struct {
	slots [Slots]Slot

	playing   atomic.Int32
	nextChunk atomic.Int32

	changeReq atomic.Uint64
	changeAck atomic.Uint64

	swaps atomic.Uint64
	freed atomic.Int32
}

func NewArena() *Arena {
	a := &Arena{}
	for i := range a.slots {
		a.slots[i].index = i
	}
	a.nextChunk.Store(-1)
	return a
}

// Slot returns slot i, which must be 0 or 1.
func (a *Arena) Slot(i int) *Slot { return &a.slots[i] }

// Other is the index of the slot that is not i.
func Other(i int) int { return 1 - i }

// Valid reports whether i names a slot.
func Valid(i int) bool { return i >= 0 && i < Slots }

func (a *Arena) Playing() int { return int(a.playing.Load()) }

// PlayingSlot is the slot the render callback reads.
func (a *Arena) PlayingSlot() *Slot { return a.Slot(a.Playing()) }

// SetPlaying selects the live slot. Only while rendering is stopped.
func (a *Arena) SetPlaying(i int) { a.playing.Store(int32(i)) }

// NextChunk is the slot a continuation chunk should be loaded into, or -1.
func (a *Arena) NextChunk() int { return int(a.nextChunk.Load()) }

func (a *Arena) SetNextChunk(i int) { a.nextChunk.Store(int32(i)) }

// RequestChange asks the render callback to move to the other slot once the
// playing one is exhausted. Controller side only.
func (a *Arena) RequestChange() { a.changeReq.Add(1) }

// ChangePending reports whether a hand-off was requested and not done yet.
func (a *Arena) ChangePending() bool { return a.changeReq.Load() != a.changeAck.Load() }

// Swap performs a requested hand-off. The new slot starts at its first
// frame. It returns false when no change was requested or the other slot is
// empty; the request then stays pending. Render side only.
func (a *Arena) Swap() bool {
	req := a.changeReq.Load()
	if req == a.changeAck.Load() {
		return false
	}

	old := a.playing.Load()
	next := int32(Other(int(old)))
	if a.slots[next].data.Load() == nil {
		return false
	}

	a.slots[next].cursor.Store(0)
	a.playing.Store(next)
	a.freed.Store(old)
	a.changeAck.Store(req)
	a.swaps.Add(1)
	return true
}

// Swaps counts the hand-offs so far and returns the slot freed by the last
// one.
func (a *Arena) Swaps() (n uint64, freed int) {
	return a.swaps.Load(), int(a.freed.Load())
}
