// SPDX-License-Identifier: EPL-2.0

package buffer

import (
	"sync/atomic"
	"time"

	"github.com/ik5/bitperfect/decoder"
)

// Status is the load state bitmask of a slot.
type Status uint32

const (
	// StatusEOF is set once the track ended inside the slot.
	StatusEOF Status = 1
	// StatusLoading is set while a load task writes into the slot.
	StatusLoading Status = 2
)

// Data is what a slot holds. It is immutable once published: a new load
// publishes a new Data.
type Data struct {
	Buffer     *decoder.Buffer
	Decoder    *decoder.Decoder
	SampleRate int
	Channels   int
	// Bits is the number of significant bits of integer samples, 0 for
	// float data.
	Bits int
	// FirstFrame is the track frame stored at index 0 of the buffer.
	FirstFrame int64
}

// Integer reports whether the samples are low aligned integers.
func (d *Data) Integer() bool { return d.Buffer != nil && d.Buffer.Int != nil }

func (d *Data) BytesPerFrame() int { return d.Channels * decoder.BytesPerSample }

// Capacity is the buffer size in frames.
func (d *Data) Capacity() int64 { return d.Buffer.Frames() }

// Size is the buffer size in bytes.
func (d *Data) Size() int64 { return d.Capacity() * int64(d.BytesPerFrame()) }

// Slot is one half of the double buffer.
//
// Every field has a single writer. The load fields are written by whoever
// owns the load: the controller between loads, the load task during one.
// The playing cursor and the seek acknowledgement are written by the render
// callback. The seek request is written by the controller.
type Slot struct {
	index int

	data atomic.Pointer[Data]

	// load
	length    atomic.Int64
	loaded    atomic.Int64
	next      atomic.Int64
	total     atomic.Int64
	status    atomic.Uint32
	completed atomic.Bool

	// render
	cursor  atomic.Int64
	seekAck atomic.Uint64

	// controller
	seekSeq    atomic.Uint64
	seekTarget atomic.Int64
}

func (s *Slot) Index() int { return s.index }

// Data returns the published content, or nil for an empty slot.
func (s *Slot) Data() *Data { return s.data.Load() }

// Publish installs d for a new load of length frames and clears the load
// state. The caller must own the load.
func (s *Slot) Publish(d *Data, length int64) {
	s.loaded.Store(0)
	s.length.Store(length)
	s.completed.Store(false)
	s.next.Store(0)
	s.status.Store(uint32(StatusLoading))
	if d != nil && d.Decoder != nil {
		s.total.Store(d.Decoder.TotalFrames())
	}
	s.data.Store(d)
}

// Clear empties the slot and returns what it held.
func (s *Slot) Clear() *Data {
	d := s.data.Swap(nil)
	s.loaded.Store(0)
	s.length.Store(0)
	s.completed.Store(false)
	s.status.Store(0)
	s.next.Store(0)
	s.total.Store(0)
	return d
}

// SetLoaded publishes the number of frames written so far. Frames below n
// must already be in the buffer.
func (s *Slot) SetLoaded(n int64) {
	s.loaded.Store(min(n, s.length.Load()))
}

// Finish records the end of a load. A track that ended early shrinks the
// slot to what was loaded.
func (s *Slot) Finish(res decoder.Result) {
	s.loaded.Store(res.Frames)
	if res.Completed {
		s.length.Store(res.Frames)
	}
	s.next.Store(res.NextPosition)
	s.total.Store(res.TotalFrames)

	st := Status(0)
	if res.Completed {
		st |= StatusEOF
	}
	s.status.Store(uint32(st))
	s.completed.Store(true)
}

// Stop marks a load that ended without finishing, after an abort or an
// error. What was loaded stays playable.
func (s *Slot) Stop(next int64) {
	s.next.Store(next)
	s.status.Store(s.status.Load() &^ uint32(StatusLoading))
}

func (s *Slot) Length() int64 { return s.length.Load() }
func (s *Slot) Loaded() int64 { return s.loaded.Load() }

// NextPosition is the track frame the next chunk starts at.
func (s *Slot) NextPosition() int64 { return s.next.Load() }

// TotalFrames is the length of the whole track.
func (s *Slot) TotalFrames() int64 { return s.total.Load() }

func (s *Slot) Status() Status { return Status(s.status.Load()) }

// Completed reports whether the load of this slot has finished.
func (s *Slot) Completed() bool { return s.completed.Load() }

// Loading reports whether a load task is writing into the slot.
func (s *Slot) Loading() bool { return s.Status()&StatusLoading != 0 }

// EOF reports whether the track ends in this slot.
func (s *Slot) EOF() bool { return s.Status()&StatusEOF != 0 }

// Cursor is the next buffer frame the render callback plays.
func (s *Slot) Cursor() int64 { return s.cursor.Load() }

// SetCursor moves the playing cursor. Render side only.
func (s *Slot) SetCursor(frame int64) { s.cursor.Store(frame) }

// RequestSeek asks the render callback to continue at buffer frame. The
// latest request wins. Controller side only.
func (s *Slot) RequestSeek(frame int64) {
	s.seekTarget.Store(frame)
	s.seekSeq.Add(1)
}

// TakeSeek returns a pending seek target and acknowledges it. Render side
// only.
func (s *Slot) TakeSeek() (int64, bool) {
	seq := s.seekSeq.Load()
	if seq == s.seekAck.Load() {
		return 0, false
	}
	target := s.seekTarget.Load()
	s.seekAck.Store(seq)
	return target, true
}

// SeekPending reports whether a seek has not been applied yet.
func (s *Slot) SeekPending() bool { return s.seekSeq.Load() != s.seekAck.Load() }

// CurrentFrame is the track frame being played.
func (s *Slot) CurrentFrame() int64 {
	d := s.Data()
	if d == nil {
		return 0
	}
	return d.FirstFrame + s.Cursor()
}

// CurrentTime is CurrentFrame as a duration.
func (s *Slot) CurrentTime() time.Duration {
	d := s.Data()
	if d == nil || d.SampleRate <= 0 {
		return 0
	}
	return time.Duration(d.FirstFrame+s.Cursor()) * time.Second / time.Duration(d.SampleRate)
}

// LoadStatus describes the load of one slot for the user interface.
type LoadStatus struct {
	BufferIndex      int
	FirstLoadedFrame int64
	LastLoadedFrame  int64
	LastFrameToLoad  int64
	TrackTotalFrames int64
	Completed        bool
	// Reset is set on the first report of a new load.
	Reset bool
}

// LoadStatus takes a snapshot of the slot's load.
func (s *Slot) LoadStatus() LoadStatus {
	st := LoadStatus{
		BufferIndex:      s.index,
		TrackTotalFrames: s.TotalFrames(),
		Completed:        s.Completed(),
	}
	if d := s.Data(); d != nil {
		st.FirstLoadedFrame = d.FirstFrame
		st.LastLoadedFrame = d.FirstFrame + s.Loaded()
		st.LastFrameToLoad = d.FirstFrame + s.Length()
	}
	return st
}
