// SPDX-License-Identifier: EPL-2.0

package main

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/output"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func joinInts(v []int) string {
	s := make([]string, len(v))
	for i, n := range v {
		s[i] = strconv.Itoa(n)
	}
	return strings.Join(s, " ")
}

func joinFormats(fs []audio.StreamFormat) string {
	s := make([]string, 0, len(fs))
	for _, f := range fs {
		if f.Float {
			s = append(s, "f"+strconv.Itoa(f.BitsPerChannel))
			continue
		}
		name := "s" + strconv.Itoa(f.BitsPerChannel)
		if f.BytesPerSample*8 != f.BitsPerChannel {
			name += "/" + strconv.Itoa(f.BytesPerSample*8)
		}
		s = append(s, name)
	}
	return strings.Join(s, " ")
}

func volumeCaps(c output.VolumeCaps) string {
	var s []string
	if c&output.VolumePhysical != 0 {
		s = append(s, "physical")
	}
	if c&output.VolumeVirtual != 0 {
		s = append(s, "virtual")
	}
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, "+")
}
