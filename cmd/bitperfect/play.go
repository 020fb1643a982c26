// SPDX-License-Identifier: EPL-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/buffer"
	"github.com/ik5/bitperfect/config"
	"github.com/ik5/bitperfect/decoder"
	"github.com/ik5/bitperfect/engine"
	"github.com/ik5/bitperfect/formats"
	"github.com/ik5/bitperfect/output"
)

const queueInterval = 250 * time.Millisecond

func (a *app) playCommand() *cobra.Command {
	var volume float32

	cmd := &cobra.Command{
		Use:   "play FILE...",
		Short: "Play files one after the other without gaps",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.play(ctx, args, volume)
		},
	}

	flags := cmd.Flags()
	flags.String("device", "", "UID of the output device, empty for the default one")
	flags.Bool("hog", false, "Take exclusive access to the device")
	flags.Bool("integer", true, "Send integer samples when the device takes them")
	flags.String("dither", "", "Dither for requantized samples: none, rectangular or triangular")
	flags.String("upsampling", "", "Forced upsampling: none, oversampling or max")
	flags.String("metrics", "", "Serve prometheus metrics on this address")
	flags.Float32Var(&volume, "volume", -1, "Master volume from 0 to 1, negative keeps the current one")

	return cmd
}

func (a *app) play(ctx context.Context, files []string, volume float32) error {
	host, err := a.openHost()
	if err != nil {
		return err
	}
	defer host.Close()

	m, shutdown, err := a.serveMetrics()
	if err != nil {
		return err
	}
	defer shutdown()

	factory := decoder.NewFactory(formats.Default(),
		decoder.WithConverter(a.prefs.Engine(), a.prefs.Quality()),
		decoder.WithLogger(a.logger.WithPrefix("decoder")),
	)

	p := newPlayer(a.logger)
	eng := engine.New(host, factory,
		engine.WithCallbacks(p),
		engine.WithPreferences(a.prefs),
		engine.WithMetrics(m),
		engine.WithLogger(a.logger.WithPrefix("engine")),
	)
	defer eng.Close()

	if uid := a.prefs.Device.PreferredUID; uid != "" {
		if err := eng.SelectDevice(uid); err != nil {
			return err
		}
	}

	if a.v.ConfigFileUsed() != "" {
		config.Watch(a.v, a.logger, eng.SetPreferences)
	}

	if err := eng.LoadFile(ctx, files[0], 0); err != nil {
		return fmt.Errorf("load %s: %w", files[0], err)
	}
	if err := eng.InitiatePlayback(ctx); err != nil {
		return err
	}
	if volume >= 0 {
		if err := eng.SetMasterVolume(volume, output.VolumePhysical); err != nil {
			a.logger.Warn("volume not set", "err", err)
		}
	}

	q := &queue{eng: eng, files: files, next: 1, logger: a.logger}

	tick := time.NewTicker(queueInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("stopping", "position", eng.Position().Round(time.Second))
			return eng.Stop()
		case err := <-p.stopped:
			return err
		case freed := <-p.played:
			a.logger.Debug("buffer played", "freed", freed, "position", eng.Position().Round(time.Second))
		case <-tick.C:
		}
		q.advance(ctx)
	}
}

// queue loads the next file into the free slot once the playing slot holds
// the end of the current track.
type queue struct {
	eng    *engine.Engine
	files  []string
	next   int
	logger *log.Logger

	// after is the slot content the next file was queued behind.
	after *buffer.Data
}

func (q *queue) advance(ctx context.Context) {
	if q.next >= len(q.files) {
		return
	}

	idx := q.eng.PlayingBuffer()
	s := q.eng.Buffer(idx)
	d := s.Data()
	if d == nil || d == q.after || !s.Completed() || !s.EOF() {
		return
	}
	other := buffer.Other(idx)
	if q.eng.Buffer(other).Loading() {
		return
	}

	path := q.files[q.next]
	q.next++
	q.after = d
	if err := q.eng.LoadFile(ctx, path, other); err != nil {
		q.logger.Error("skipping file", "file", path, "err", err)
		q.after = nil
	}
}

// player turns engine events into log lines and channel sends.
type player struct {
	engine.NopCallbacks

	logger  *log.Logger
	stopped chan error
	played  chan int
}

func newPlayer(logger *log.Logger) *player {
	return &player{
		logger:  logger,
		stopped: make(chan error, 1),
		played:  make(chan int, 1),
	}
}

func (p *player) MetadataReady(idx int, md audio.Metadata) {
	p.logger.Info("loaded",
		"slot", idx,
		"title", md.Title,
		"artist", md.Artist,
		"album", md.Album,
		"length", md.Duration.Round(time.Second),
		"file_rate", md.FileSampleRate,
		"rate", md.PlayingRate,
		"bits", md.BitDepth,
		"integer", md.IntegerMode,
	)
}

func (p *player) BufferPlayed(freed int) {
	select {
	case p.played <- freed:
	default:
	}
}

func (p *player) DeviceListChanged(devices []output.DeviceInfo) {
	p.logger.Debug("device list changed", "devices", len(devices))
}

func (p *player) DeviceRemoved(uid string) {
	p.logger.Warn("device removed", "uid", uid)
}

func (p *player) ProcessorOverload(overloaded bool) {
	if overloaded {
		p.logger.Warn("render callback is running late")
	}
}

func (p *player) VolumeChanged(scalar float32, kind output.VolumeCaps) {
	p.logger.Info("volume", "scalar", scalar, "control", volumeCaps(kind))
}

func (p *player) DataSourceChanged(uid string) {
	p.logger.Info("output changed", "uid", uid)
}

func (p *player) PlaybackStopped(err error) {
	if err != nil {
		p.logger.Error("playback stopped", "err", err)
	} else {
		p.logger.Info("end of playlist")
	}
	select {
	case p.stopped <- err:
	default:
	}
}
