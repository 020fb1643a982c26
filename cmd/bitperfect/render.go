// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/ik5/bitperfect"
	"github.com/ik5/bitperfect/formats/wav"
)

var renderBits = []int{16, 24, 32}

func (a *app) renderCommand() *cobra.Command {
	var (
		rate int
		bits int
	)

	cmd := &cobra.Command{
		Use:   "render INPUT OUTPUT.wav",
		Short: "Decode a file the way it would be played and write it as PCM WAV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(renderBits, bits) {
				return fmt.Errorf("unsupported bit depth %d, want one of %v", bits, renderBits)
			}

			r, err := bitperfect.RenderFile(cmd.Context(), args[0], bitperfect.Options{
				SampleRate: rate,
				Bits:       bits,
				Engine:     a.prefs.Engine(),
				Quality:    a.prefs.Quality(),
				Logger:     a.logger,
			})
			if err != nil {
				return err
			}

			f, err := os.Create(args[1])
			if err != nil {
				return err
			}
			if err := wav.WritePCM(f, r.Format.SampleRate, r.Format.Channels, bits, r.Int); err != nil {
				_ = f.Close()
				return fmt.Errorf("write %s: %w", args[1], err)
			}
			if err := f.Close(); err != nil {
				return err
			}

			a.logger.Info("rendered",
				"in", args[0],
				"out", args[1],
				"format", r.Format,
				"frames", r.Frames(),
			)
			return nil
		},
	}

	cmd.Flags().IntVarP(&rate, "rate", "r", 0, "Output sample rate, 0 keeps the rate of the file")
	cmd.Flags().IntVarP(&bits, "bits", "b", 24, "Output bit depth: 16, 24 or 32")
	cmd.Flags().String("engine", "", "Sample rate converter: native or soxr")
	cmd.Flags().Int("quality", 0, "Converter quality, 0 to 4")

	return cmd
}
