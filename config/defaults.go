// SPDX-License-Identifier: EPL-2.0

package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("device.preferred_uid", "")
	v.SetDefault("device.preferred_name", "")
	v.SetDefault("device.hog_mode", false)
	v.SetDefault("device.integer_mode", true)
	v.SetDefault("device.switch_latency", time.Second)
	v.SetDefault("device.dither", string(DitherNone))

	v.SetDefault("buffer.max_size_mb", 512)
	v.SetDefault("buffer.force_max_io_size", false)

	v.SetDefault("resample.model", "soxr")
	v.SetDefault("resample.quality", 3)
	v.SetDefault("resample.forced_upsampling", string(UpsamplingNone))
	v.SetDefault("resample.max_sample_rate", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.listen", "")
}
