// SPDX-License-Identifier: EPL-2.0

package engine

import (
	"slices"

	"github.com/ik5/bitperfect/config"
	"github.com/ik5/bitperfect/output"
)

// ChooseSampleRate picks the rate a file of fileRate is played at on dev.
//
// Rates above prefs.MaxSampleRate are never chosen, unless the device has
// no lower one. A device that lists no rates gets the file rate.
func ChooseSampleRate(fileRate int, dev output.DeviceInfo, prefs config.Resample) int {
	rates := usableRates(dev.SampleRates, prefs.MaxSampleRate)
	if len(rates) == 0 {
		return fileRate
	}
	highest := rates[len(rates)-1]
	if fileRate <= 0 {
		return highest
	}

	switch prefs.ForcedUpsampling {
	case config.UpsamplingMax:
		return highest

	case config.UpsamplingOversampling:
		for _, r := range slices.Backward(rates) {
			if r%fileRate == 0 {
				return r
			}
		}
		return highest

	default:
		if slices.Contains(rates, fileRate) {
			return fileRate
		}
		for _, r := range rates {
			if r > fileRate && r%fileRate == 0 {
				return r
			}
		}
		return highest
	}
}

// usableRates is the sorted device rates at or below limit. A limit that
// leaves nothing keeps the lowest rate.
func usableRates(rates []int, limit int) []int {
	sorted := slices.Sorted(slices.Values(rates))
	if limit <= 0 {
		return sorted
	}

	var out []int
	for _, r := range sorted {
		if r <= limit {
			out = append(out, r)
		}
	}
	if len(out) == 0 && len(sorted) > 0 {
		out = sorted[:1]
	}
	return out
}
