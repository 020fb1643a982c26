// SPDX-License-Identifier: EPL-2.0

package main

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/spf13/cobra"
)

func (a *app) devicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List output devices and what they can play",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			host, err := a.openHost()
			if err != nil {
				return err
			}
			defer host.Close()

			devices, err := host.Devices()
			if err != nil {
				return err
			}
			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no output devices")
				return nil
			}

			t := newTable("", "UID", "Name", "Ch", "Rates", "Formats", "Volume")
			for _, d := range devices {
				mark := ""
				if d.IsDefault {
					mark = "*"
				}
				t.Row(
					mark,
					d.UID,
					d.Name,
					strconv.Itoa(d.Channels),
					joinInts(d.SampleRates),
					joinFormats(slices.Concat(d.PhysicalFormats, d.VirtualFormats)),
					volumeCaps(d.Volume),
				)
			}
			fmt.Fprintln(cmd.OutOrStdout(), t)
			return nil
		},
	}
}
