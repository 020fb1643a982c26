// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/decoder"
	"github.com/ik5/bitperfect/engine"
	"github.com/ik5/bitperfect/formats"
	"github.com/ik5/bitperfect/output"
)

type probed struct {
	path   string
	format string
	md     audio.Metadata
	ch     int
	err    error
}

func (a *app) probeCommand() *cobra.Command {
	var (
		jobs      int
		againstHW bool
	)

	cmd := &cobra.Command{
		Use:   "probe FILE...",
		Short: "Show the stream properties and tags of audio files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var dev *output.DeviceInfo
			if againstHW {
				host, err := a.openHost()
				if err != nil {
					return err
				}
				info, err := host.Default()
				_ = host.Close()
				if err != nil {
					return err
				}
				dev = &info
			}

			factory := decoder.NewFactory(formats.Default(), decoder.WithLogger(a.logger))
			results := make([]probed, len(args))

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(max(jobs, 1))
			for i, path := range args {
				g.Go(func() error {
					if err := ctx.Err(); err != nil {
						return err
					}
					results[i] = probe(factory, path)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			headers := []string{"File", "Format", "Rate", "Bits", "Ch", "Length", "Title", "Artist", "Album"}
			if dev != nil {
				headers = append(headers, "Plays at")
			}
			t := newTable(headers...)

			failed := 0
			for _, r := range results {
				name := filepath.Base(r.path)
				if r.err != nil {
					failed++
					a.logger.Error("probe failed", "file", r.path, "err", r.err)
					continue
				}
				row := []string{
					name,
					r.format,
					strconv.Itoa(r.md.FileSampleRate),
					strconv.Itoa(r.md.BitDepth),
					strconv.Itoa(r.ch),
					r.md.Duration.Round(time.Millisecond).String(),
					r.md.Title,
					r.md.Artist,
					r.md.Album,
				}
				if dev != nil {
					row = append(row, strconv.Itoa(engine.ChooseSampleRate(r.md.FileSampleRate, *dev, a.prefs.Resample)))
				}
				t.Row(row...)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)

			if failed > 0 {
				return fmt.Errorf("%d of %d files could not be probed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "Files probed at once")
	cmd.Flags().BoolVar(&againstHW, "against-device", false, "Show the rate the default device would play each file at")

	return cmd
}

func probe(factory *decoder.Factory, path string) probed {
	d, err := factory.Create(path)
	if err != nil {
		return probed{path: path, err: err}
	}
	defer d.Close()

	return probed{
		path:   path,
		format: d.Format(),
		md:     d.Metadata(),
		ch:     d.Channels(),
	}
}
