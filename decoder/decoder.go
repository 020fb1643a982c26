// SPDX-License-Identifier: EPL-2.0

package decoder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/resample"
	"github.com/ik5/bitperfect/utils"
)

var (
	ErrLoadStarted     = errors.New("decoder: loading already started")
	ErrClosed          = errors.New("decoder: closed")
	ErrAborted         = errors.New("decoder: loading aborted")
	ErrInvalidPosition = errors.New("decoder: start position out of range")
	ErrInvalidFormat   = errors.New("decoder: integer mode needs an integer format")
)

// BytesPerSample is the in-memory size of one decoded sample, float32 or a
// low aligned int32.
const BytesPerSample = 4

// blockFrames is how many frames are pulled from the source per read.
const blockFrames = 4096

// Buffer receives decoded frames. Exactly one of Float and Int is set,
// depending on the integer mode of the decoder that made it.
type Buffer struct {
	Float    []float32
	Int      []int32
	Channels int
}

// Frames is the capacity of the buffer in frames.
func (b *Buffer) Frames() int64 {
	if b == nil || b.Channels == 0 {
		return 0
	}
	if b.Int != nil {
		return int64(len(b.Int) / b.Channels)
	}
	return int64(len(b.Float) / b.Channels)
}

// Result describes one load.
type Result struct {
	// Frames is how many frames were written into the buffer.
	Frames int64
	// Completed is set when the track ended inside the buffer.
	Completed bool
	// NextPosition is where the next chunk starts when the buffer was too
	// small for the rest of the track.
	NextPosition int64
	// TotalFrames is the track length at the output rate. It is corrected
	// once the end of the track has been decoded.
	TotalFrames int64
}

// Decoder streams one file into buffers at a target rate, as float or as
// integers aligned to a device format. It is created by a Factory.
//
// Loads are serialized. AbortLoading may be called from any goroutine.
type Decoder struct {
	path   string
	format string
	dec    audio.Decoder
	file   *os.File
	src    audio.Source

	engine  resample.Engine
	quality resample.Quality
	logger  *log.Logger

	nativeRate int
	targetRate int
	channels   int
	bitDepth   int
	srcFrames  int64

	integer    bool
	intFormat  audio.StreamFormat
	started    atomic.Bool
	closed     atomic.Bool
	totalKnown atomic.Int64 // output frames, set at EOF

	mu      sync.Mutex // held for the whole of a load
	cmu     sync.Mutex
	cancel  context.CancelFunc
	conv    *resample.Converter
	nextPos int64 // next output frame
	srcEOF  bool

	carryF []float32
	carryI []int32
	carry  int // offset of the first undelivered sample
	fbuf   []float32
	ibuf   []int32
	conved []float32

	md audio.Metadata
}

func (d *Decoder) Path() string      { return d.path }
func (d *Decoder) Format() string    { return d.format }
func (d *Decoder) Channels() int     { return d.channels }
func (d *Decoder) BitDepth() int     { return d.bitDepth }
func (d *Decoder) NativeRate() int   { return d.nativeRate }
func (d *Decoder) TargetRate() int   { return d.targetRate }
func (d *Decoder) IntegerMode() bool { return d.integer }

// IntegerFormat is the layout given to SetIntegerMode.
func (d *Decoder) IntegerFormat() audio.StreamFormat { return d.intFormat }

// TotalFrames is the track length in frames at the target rate, or 0 when
// the container does not tell and the end was not reached yet.
func (d *Decoder) TotalFrames() int64 {
	if n := d.totalKnown.Load(); n > 0 {
		return n
	}
	return resample.OutputFrames(d.srcFrames, d.nativeRate, d.targetRate)
}

// SetTargetSampleRate makes the decoder convert to rate. It must be called
// before the first load.
func (d *Decoder) SetTargetSampleRate(rate int) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if d.started.Load() {
		return ErrLoadStarted
	}
	if rate <= 0 {
		return fmt.Errorf("invalid target sample rate %d", rate)
	}
	d.targetRate = rate
	return nil
}

// SetIntegerMode switches the output to integers with f.BitsPerChannel
// significant bits in the low end of each int32. It must be called before
// the first load.
func (d *Decoder) SetIntegerMode(enabled bool, f audio.StreamFormat) error {
	if d.closed.Load() {
		return ErrClosed
	}
	if d.started.Load() {
		return ErrLoadStarted
	}
	if enabled && (f.Float || f.BitsPerChannel <= 0 || f.BitsPerChannel > 32) {
		return fmt.Errorf("%w: %s", ErrInvalidFormat, f)
	}
	d.integer = enabled
	d.intFormat = f
	return nil
}

// Resampling reports whether output frames go through a converter.
func (d *Decoder) Resampling() bool { return d.targetRate != d.nativeRate }

// passthrough is set when integer samples can be copied without a float
// round trip.
func (d *Decoder) passthrough() bool {
	if !d.integer || d.Resampling() {
		return false
	}
	_, ok := d.src.(audio.IntSource)
	return ok
}

// FramesPerBuffer is how many frames fit in maxBufferSize bytes.
func (d *Decoder) FramesPerBuffer(maxBufferSize int) int64 {
	return int64(maxBufferSize / (d.channels * BytesPerSample))
}

// ChunkFrames is the size of a buffer for a load starting at start: the
// rest of the track, capped by maxBufferSize.
func (d *Decoder) ChunkFrames(start int64, maxBufferSize int) int64 {
	n := d.FramesPerBuffer(maxBufferSize)
	if total := d.TotalFrames(); total > 0 {
		n = min(n, max(total-start, 0))
	}
	return n
}

// NewBuffer allocates a buffer of frames frames in the output layout.
func (d *Decoder) NewBuffer(frames int64) *Buffer {
	b := &Buffer{Channels: d.channels}
	if d.integer {
		b.Int = make([]int32, frames*int64(d.channels))
	} else {
		b.Float = make([]float32, frames*int64(d.channels))
	}
	return b
}

// LoadInitialBuffer decodes the track from its first frame into a buffer of
// at most maxBufferSize bytes.
func (d *Decoder) LoadInitialBuffer(ctx context.Context, maxBufferSize int) (*Buffer, Result, error) {
	return d.LoadChunk(ctx, 0, maxBufferSize)
}

// LoadChunk decodes from start into a new buffer of at most maxBufferSize
// bytes. When start is where the previous load stopped, decoding simply goes
// on; otherwise the source is repositioned and the converter restarted.
func (d *Decoder) LoadChunk(ctx context.Context, start int64, maxBufferSize int) (*Buffer, Result, error) {
	if d.closed.Load() {
		return nil, Result{}, ErrClosed
	}
	if maxBufferSize < d.channels*BytesPerSample {
		return nil, Result{}, fmt.Errorf("buffer of %d bytes cannot hold a frame", maxBufferSize)
	}

	buf := d.NewBuffer(d.ChunkFrames(start, maxBufferSize))
	res, err := d.Fill(ctx, buf, start, nil)
	return buf, res, err
}

// Fill decodes frames starting at start into buf until it is full or the
// track ends. progress, when set, is called with the running frame count
// after each block; the frames it reports are already in buf.
func (d *Decoder) Fill(ctx context.Context, buf *Buffer, start int64, progress func(frames int64)) (Result, error) {
	if d.closed.Load() {
		return Result{}, ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cmu.Lock()
	d.cancel = cancel
	d.cmu.Unlock()
	defer cancel()

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return Result{}, ErrClosed
	}

	if !d.started.Swap(true) {
		if err := d.prepare(); err != nil {
			return Result{}, err
		}
	}

	if start != d.nextPos {
		if err := d.seek(start); err != nil {
			return Result{NextPosition: d.nextPos, TotalFrames: d.TotalFrames()}, err
		}
	}

	capacity := buf.Frames()
	var written int64

	for written < capacity {
		if err := ctx.Err(); err != nil {
			return d.result(written, false), fmt.Errorf("%w: %w", ErrAborted, err)
		}

		if d.carryLen() == 0 {
			if d.srcEOF {
				break
			}
			if err := d.pull(); err != nil {
				return d.result(written, false), err
			}
			continue
		}

		n := min(capacity-written, int64(d.carryLen()/d.channels))
		d.deliver(buf, written, n)
		written += n
		d.nextPos += n

		if progress != nil {
			progress(written)
		}
	}

	// A full buffer may end exactly where the track does. Look one block
	// ahead to tell.
	for d.carryLen() == 0 && !d.srcEOF {
		if err := ctx.Err(); err != nil {
			return d.result(written, false), fmt.Errorf("%w: %w", ErrAborted, err)
		}
		if err := d.pull(); err != nil {
			return d.result(written, false), err
		}
	}

	completed := d.carryLen() == 0 && d.srcEOF
	if completed && d.totalKnown.Load() != d.nextPos {
		if expected := d.TotalFrames(); expected != d.nextPos {
			d.logger.Debug("track length corrected", "expected", expected, "actual", d.nextPos)
		}
		d.totalKnown.Store(d.nextPos)
	}

	return d.result(written, completed), nil
}

func (d *Decoder) result(written int64, completed bool) Result {
	r := Result{
		Frames:      written,
		Completed:   completed,
		TotalFrames: d.TotalFrames(),
	}
	if !completed {
		r.NextPosition = d.nextPos
	}
	return r
}

// prepare builds the converter once the target rate is final.
func (d *Decoder) prepare() error {
	if !d.Resampling() {
		return nil
	}

	conv, err := resample.New(resample.Config{
		Engine:   d.engine,
		Quality:  d.quality,
		InRate:   d.nativeRate,
		OutRate:  d.targetRate,
		Channels: d.channels,
	})
	if err != nil {
		return err
	}
	d.conv = conv

	d.logger.Debug("converting",
		"from", d.nativeRate,
		"to", d.targetRate,
		"engine", d.engine,
		"quality", d.quality,
	)
	return nil
}

func (d *Decoder) carryLen() int {
	if d.integer {
		return len(d.carryI) - d.carry
	}
	return len(d.carryF) - d.carry
}

func (d *Decoder) deliver(buf *Buffer, at, frames int64) {
	ch := int64(d.channels)
	n := int(frames * ch)

	if d.integer {
		copy(buf.Int[at*ch:], d.carryI[d.carry:d.carry+n])
	} else {
		copy(buf.Float[at*ch:], d.carryF[d.carry:d.carry+n])
	}
	d.carry += n
}

// pull decodes one block from the source into the carry buffer. At the end
// of the source it drains the converter.
func (d *Decoder) pull() error {
	d.carry = 0
	d.carryF = d.carryF[:0]
	d.carryI = d.carryI[:0]

	want := blockFrames * d.channels

	if d.passthrough() {
		if cap(d.ibuf) < want {
			d.ibuf = make([]int32, want)
		}
		n, err := d.src.(audio.IntSource).ReadInt32(d.ibuf[:want])
		if err := d.readErr(err); err != nil {
			return err
		}

		block := d.ibuf[:n]
		utils.AlignHighToLow(block, d.intFormat.BitsPerChannel)
		d.carryI = block
		return nil
	}

	if cap(d.fbuf) < want {
		d.fbuf = make([]float32, want)
	}
	n, err := d.src.ReadSamples(d.fbuf[:want])
	if err := d.readErr(err); err != nil {
		return err
	}

	out := d.fbuf[:n]
	if d.conv != nil {
		converted, cerr := d.conv.Process(d.conved[:0], out)
		if cerr != nil {
			return cerr
		}
		if d.srcEOF {
			converted, cerr = d.conv.Flush(converted)
			if cerr != nil {
				return cerr
			}
		}
		d.conved = converted
		out = converted
	}

	if !d.integer {
		d.carryF = out
		return nil
	}

	if cap(d.ibuf) < len(out) {
		d.ibuf = make([]int32, len(out))
	}
	d.carryI = quantize(d.ibuf[:len(out)], out, d.intFormat.BitsPerChannel)
	return nil
}

// readErr records the end of the source and wraps real failures.
func (d *Decoder) readErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		d.srcEOF = true
		return nil
	default:
		return fmt.Errorf("decoding %s: %w", d.path, err)
	}
}

// quantize converts float samples to integers of bits significant bits. The
// values are built high aligned, as an integer source would deliver them,
// and then moved down.
func quantize(dst []int32, src []float32, bits int) []int32 {
	shift := uint(32 - bits)
	for i, x := range src {
		dst[i] = utils.FloatToFixed(x, bits) << shift
	}
	utils.AlignHighToLow(dst, bits)
	return dst
}

// seek repositions the source so the next delivered frame is start.
func (d *Decoder) seek(start int64) error {
	if start < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidPosition, start)
	}
	if total := d.TotalFrames(); total > 0 && start > total {
		return fmt.Errorf("%w: %d > %d", ErrInvalidPosition, start, total)
	}

	in := start
	if d.Resampling() {
		in = start * int64(d.nativeRate) / int64(d.targetRate)
	}

	began := time.Now()

	if s, ok := d.src.(audio.Seeker); ok {
		if err := s.SeekFrame(in); err != nil {
			return fmt.Errorf("seeking %s to frame %d: %w", d.path, in, err)
		}
	} else if err := d.reopen(in); err != nil {
		return err
	}

	if d.conv != nil {
		if err := d.conv.Reset(); err != nil {
			return err
		}
	}

	d.carry = 0
	d.carryF = d.carryF[:0]
	d.carryI = d.carryI[:0]
	d.srcEOF = false
	d.nextPos = start

	d.logger.Debug("repositioned", "frame", start, "source_frame", in, "took", time.Since(began))
	return nil
}

// reopen starts the source over and reads forward to frame in.
func (d *Decoder) reopen(in int64) error {
	_ = d.src.Close()
	_ = d.file.Close()

	file, src, err := open(d.path, d.dec)
	if err != nil {
		return &audio.DecodeOpenError{Path: d.path, Err: err}
	}
	d.file = file
	d.src = src

	skip := make([]float32, blockFrames*d.channels)
	for left := in; left > 0; {
		want := min(int64(len(skip)), left*int64(d.channels))
		n, err := src.ReadSamples(skip[:want])
		left -= int64(n / d.channels)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("skipping to frame %d of %s: %w", in, d.path, err)
		}
	}
	return nil
}

// AbortLoading stops the load in flight, if any, and returns once it has
// stopped writing. The decoder stays usable.
func (d *Decoder) AbortLoading() {
	d.cmu.Lock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cmu.Unlock()

	// The load holds mu until it returns.
	d.mu.Lock()
	d.mu.Unlock()
}

// Close aborts any load and releases the file. Later loads fail with
// ErrClosed.
func (d *Decoder) Close() error {
	if d.closed.Swap(true) {
		return nil
	}

	d.AbortLoading()

	d.mu.Lock()
	defer d.mu.Unlock()

	return errors.Join(d.src.Close(), d.file.Close())
}

// Metadata returns the tags of the file together with its stream
// properties.
func (d *Decoder) Metadata() audio.Metadata {
	md := d.md
	md.BitDepth = d.bitDepth
	md.FileSampleRate = d.nativeRate
	md.PlayingRate = d.targetRate
	md.IntegerMode = d.integer
	if total := d.TotalFrames(); total > 0 && d.targetRate > 0 {
		md.Duration = time.Duration(total) * time.Second / time.Duration(d.targetRate)
	}
	return md
}
