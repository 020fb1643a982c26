// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"encoding/binary"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/buffer"
	"github.com/ik5/bitperfect/utils"
)

// maxChannels bounds the frame width the render path handles, so its
// scratch space is fixed.
const maxChannels = 32

// outFormat is what the render path needs to know about the device. It is
// replaced as a whole whenever the device format changes.
type outFormat struct {
	format audio.StreamFormat
	// maps is indexed by the channel count of the source.
	maps       [maxChannels + 1]*audio.ChannelMap
	frameBytes int
	// shift moves a sample of BitsPerChannel bits to its place in the
	// container.
	shift uint
}

func newOutFormat(f audio.StreamFormat, stereo [2]int) *outFormat {
	o := &outFormat{
		format:     f,
		frameBytes: f.BytesPerFrame(),
	}
	if !f.Float && f.AlignedHigh {
		o.shift = uint(f.BytesPerSample*8 - f.BitsPerChannel)
	}
	if f.Channels > 0 && f.Channels <= maxChannels {
		for src := 1; src <= maxChannels; src++ {
			o.maps[src] = audio.NewChannelMap(src, f.Channels, stereo)
		}
	}
	return o
}

// holds reports whether d can be played in f without losing bits. The
// controller switches the device format otherwise; until then the
// callback outputs silence.
func (f *outFormat) holds(d *buffer.Data) bool {
	if d.SampleRate != f.format.SampleRate {
		return false
	}
	if d.Integer() && !f.format.Float {
		return d.Bits <= f.format.BitsPerChannel
	}
	return true
}

// renderer is the state of the render callback. Fields marked RT are only
// touched by the callback; the rest are atomics shared with the controller.
type renderer struct {
	arena *buffer.Arena
	out   atomic.Pointer[outFormat]

	pause  atomic.Uint32
	gain   atomic.Uint32 // float32 bits
	muted  atomic.Bool
	dither atomic.Uint32 // ditherMode

	underruns  atomic.Int64
	overloads  atomic.Int64
	overloaded atomic.Bool
	ended      atomic.Bool

	// RT
	last [buffer.Slots]*buffer.Data
	srcF [maxChannels]float32
	dstF [maxChannels]float32
	dstI [maxChannels]int32
	// noise feeds the dither.
	noise rand.PCG
}

func newRenderer(arena *buffer.Arena) *renderer {
	r := &renderer{arena: arena}
	r.noise.Seed(0x62697470, 0x65726665)
	r.setGain(1)
	return r
}

func (r *renderer) setGain(g float32) { r.gain.Store(math.Float32bits(g)) }

func (r *renderer) effectiveGain() float32 {
	if r.muted.Load() {
		return 0
	}
	return math.Float32frombits(r.gain.Load())
}

// reset forgets what the callback played, so the next start begins at the
// first frame of the playing slot. Only while the device is stopped.
func (r *renderer) reset() {
	r.last = [buffer.Slots]*buffer.Data{}
	r.ended.Store(false)
	r.overloaded.Store(false)
}

// render is the output.RenderFunc of the engine. It never blocks and never
// allocates.
func (r *renderer) render(out []byte, frames int) {
	began := time.Now()

	f := r.out.Load()
	if f == nil || r.pause.Load() != 0 || frames <= 0 {
		clear(out)
		return
	}

	written := r.fill(out, frames, f)
	clear(out[written*f.frameBytes:])

	budget := time.Duration(frames) * time.Second / time.Duration(max(f.format.SampleRate, 1))
	if time.Since(began) > budget {
		r.overloads.Add(1)
		r.overloaded.Store(true)
	} else {
		r.overloaded.Store(false)
	}
}

// fill writes up to frames frames and returns how many it wrote.
func (r *renderer) fill(out []byte, frames int, f *outFormat) int {
	done := 0
	for done < frames {
		slot := r.arena.PlayingSlot()
		d := slot.Data()
		if d == nil || !f.holds(d) {
			return done
		}

		idx := slot.Index()
		if r.last[idx] != d {
			r.last[idx] = d
			slot.SetCursor(0)
		}
		if target, ok := slot.TakeSeek(); ok {
			slot.SetCursor(min(max(target, 0), slot.Length()))
		}

		cur := slot.Cursor()
		loaded := slot.Loaded()
		if slot.Data() != d {
			// Republished since d was read; loaded may belong to the new data.
			continue
		}
		avail := min(loaded, d.Capacity()) - cur
		if avail <= 0 {
			if slot.Completed() && cur >= slot.Length() {
				if r.arena.Swap() {
					continue
				}
				if slot.EOF() {
					r.ended.Store(true)
					return done
				}
			}
			r.underruns.Add(1)
			return done
		}

		n := int(min(avail, int64(frames-done)))
		if !r.pack(out[done*f.frameBytes:], d, int(cur), n, f) {
			return done
		}
		slot.SetCursor(cur + int64(n))
		done += n
	}
	return done
}

// pack converts n frames of d starting at buffer frame from into the device
// format.
func (r *renderer) pack(out []byte, d *buffer.Data, from, n int, f *outFormat) bool {
	if d.Channels <= 0 || d.Channels > maxChannels {
		return false
	}
	m := f.maps[d.Channels]
	if m == nil {
		return false
	}

	dch := f.format.Channels
	sch := d.Channels
	g := r.effectiveGain()
	mode := ditherMode(r.dither.Load())
	o := 0

	switch {
	case f.format.Float:
		for i := range n {
			base := (from + i) * sch
			src := r.srcF[:sch]
			if d.Integer() {
				for c, v := range d.Buffer.Int[base : base+sch] {
					src[c] = utils.FixedToFloat(v, d.Bits)
				}
			} else {
				src = d.Buffer.Float[base : base+sch]
			}
			dst := r.dstF[:dch]
			m.Float(dst, src)
			for _, v := range dst {
				binary.LittleEndian.PutUint32(out[o:], math.Float32bits(v*g))
				o += 4
			}
		}

	case d.Integer():
		bits := f.format.BitsPerChannel
		for i := range n {
			base := (from + i) * sch
			dst := r.dstI[:dch]
			m.Int(dst, d.Buffer.Int[base:base+sch])
			for _, v := range dst {
				v = realign(v, d.Bits, bits)
				if g != 1 {
					v = r.quantize(utils.FixedToFloat(v, bits)*g, bits, mode)
				}
				putSample(out[o:], v<<f.shift, f.format.BytesPerSample)
				o += f.format.BytesPerSample
			}
		}

	default:
		bits := f.format.BitsPerChannel
		for i := range n {
			base := (from + i) * sch
			dst := r.dstF[:dch]
			m.Float(dst, d.Buffer.Float[base:base+sch])
			for _, v := range dst {
				putSample(out[o:], r.quantize(v*g, bits, mode)<<f.shift, f.format.BytesPerSample)
				o += f.format.BytesPerSample
			}
		}
	}
	return true
}

// realign widens a low aligned sample of from bits to to bits. holds keeps
// from at most to.
func realign(v int32, from, to int) int32 {
	if from <= 0 || from >= to {
		return v
	}
	return v << uint(to-from)
}

// putSample writes the low size bytes of v, little endian.
func putSample(out []byte, v int32, size int) {
	u := uint32(v)
	switch size {
	case 1:
		out[0] = byte(u)
	case 2:
		binary.LittleEndian.PutUint16(out, uint16(u))
	case 3:
		out[0] = byte(u)
		out[1] = byte(u >> 8)
		out[2] = byte(u >> 16)
	default:
		binary.LittleEndian.PutUint32(out, u)
	}
}
