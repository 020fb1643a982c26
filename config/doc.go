// SPDX-License-Identifier: EPL-2.0

// Package config loads the player preferences.
//
// Preferences come from a YAML file, defaults and BITPERFECT_ environment
// variables, in viper's order of precedence:
//
//	device:
//	  hog_mode: true
//	  integer_mode: true
//	  switch_latency: 1.5s
//	buffer:
//	  max_size_mb: 256
//	resample:
//	  model: soxr
//	  quality: 4
//	  forced_upsampling: oversampling
//	  max_sample_rate: 192000
package config
