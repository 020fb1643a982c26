// SPDX-License-Identifier: EPL-2.0

package malgo

import (
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/gen2brain/malgo"

	"github.com/ik5/bitperfect/audio"
	"github.com/ik5/bitperfect/output"
)

// StandardRates are assumed when a device accepts any rate.
var StandardRates = []int{44100, 48000, 88200, 96000, 176400, 192000}

const (
	minBufferFrames = 64
	maxBufferFrames = 8192
)

// describe turns what miniaudio reports about a device into a DeviceInfo.
// A zero rate or channel count in a native format means "any".
func describe(uid, name string, isDefault bool, formats []malgo.DataFormat) output.DeviceInfo {
	info := output.DeviceInfo{
		UID:             uid,
		Name:            name,
		IsDefault:       isDefault,
		MinBufferFrames: minBufferFrames,
		MaxBufferFrames: maxBufferFrames,
		PreferredStereo: [2]int{0, 1},
		Volume:          output.VolumeVirtual,
	}

	anyRate := len(formats) == 0
	for _, df := range formats {
		ch := int(df.Channels)
		info.Channels = max(info.Channels, ch)

		if df.SampleRate == 0 {
			anyRate = true
		} else if !slices.Contains(info.SampleRates, int(df.SampleRate)) {
			info.SampleRates = append(info.SampleRates, int(df.SampleRate))
		}

		f, ok := fromMalgo(df.Format, ch)
		if !ok {
			continue
		}
		list := &info.PhysicalFormats
		if f.Float {
			list = &info.VirtualFormats
		}
		if !slices.ContainsFunc(*list, f.SameLayout) {
			*list = append(*list, f)
		}
	}

	if info.Channels == 0 {
		info.Channels = 2
	}
	if anyRate {
		for _, r := range StandardRates {
			if !slices.Contains(info.SampleRates, r) {
				info.SampleRates = append(info.SampleRates, r)
			}
		}
	}
	slices.Sort(info.SampleRates)

	// miniaudio converts to float in shared mode whatever the hardware takes
	if len(info.VirtualFormats) == 0 {
		info.VirtualFormats = []audio.StreamFormat{audio.Float32Format(0, 0)}
	}

	return info
}

func fromMalgo(f malgo.FormatType, channels int) (audio.StreamFormat, bool) {
	switch f {
	case malgo.FormatS16:
		return audio.IntFormat(0, channels, 16), true
	case malgo.FormatS24:
		return audio.IntFormat(0, channels, 24), true
	case malgo.FormatS32:
		return audio.IntFormat(0, channels, 32), true
	case malgo.FormatF32:
		return audio.Float32Format(0, channels), true
	default:
		return audio.StreamFormat{}, false
	}
}

// toMalgo maps a stream format to the miniaudio sample format that carries
// it without loss.
func toMalgo(f audio.StreamFormat) (malgo.FormatType, error) {
	switch {
	case f.Float && f.BytesPerSample == 4:
		return malgo.FormatF32, nil
	case f.Float:
	case f.BytesPerSample == 2 && f.BitsPerChannel <= 16:
		return malgo.FormatS16, nil
	case f.BytesPerSample == 3 && f.BitsPerChannel <= 24:
		return malgo.FormatS24, nil
	case f.BytesPerSample == 4 && f.BitsPerChannel <= 32:
		return malgo.FormatS32, nil
	}
	return malgo.FormatUnknown, fmt.Errorf("no miniaudio format for %s", f)
}

// uidOf decodes the hexadecimal device id, which is printable on most
// backends, e.g. "hw:1,0" on ALSA.
func uidOf(id malgo.DeviceID) string {
	s := id.String()
	b, err := hex.DecodeString(s)
	if err != nil || !printable(b) {
		return s
	}
	return string(b)
}

func printable(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}

// diff returns the uids of before that are missing from after, and
// whether the two lists differ at all.
func diff(before, after []string) (removed []string, changed bool) {
	for _, uid := range before {
		if !slices.Contains(after, uid) {
			removed = append(removed, uid)
		}
	}
	changed = len(removed) > 0 || len(before) != len(after)
	if !changed {
		for _, uid := range after {
			if !slices.Contains(before, uid) {
				changed = true
				break
			}
		}
	}
	return removed, changed
}
