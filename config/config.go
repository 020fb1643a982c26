// SPDX-License-Identifier: EPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ik5/bitperfect/resample"
)

// EnvPrefix prefixes environment overrides, e.g. BITPERFECT_DEVICE_HOG_MODE.
const EnvPrefix = "BITPERFECT"

// Upsampling is the forced upsampling policy.
type Upsampling string

const (
	// UpsamplingNone plays at the file rate when the device supports it.
	UpsamplingNone Upsampling = "none"
	// UpsamplingOversampling plays at the highest integer multiple of the file rate.
	UpsamplingOversampling Upsampling = "oversampling"
	// UpsamplingMax plays at the highest rate of the device.
	UpsamplingMax Upsampling = "max"
)

// Dither is the noise added to samples that are requantized for the
// device, i.e. scaled by a volume below unity or converted from float.
// Integer samples played at unity gain are never dithered.
type Dither string

const (
	DitherNone Dither = "none"
	// DitherRectangular adds noise of one LSB peak to peak.
	DitherRectangular Dither = "rectangular"
	// DitherTriangular adds noise of two LSB peak to peak with a triangular
	// distribution.
	DitherTriangular Dither = "triangular"
)

// MaxSampleRates are the accepted values of resample.max_sample_rate.
var MaxSampleRates = []int{0, 44100, 48000, 96000, 192000}

// SwitchLatencies are the accepted values of device.switch_latency.
var SwitchLatencies = []time.Duration{
	0,
	500 * time.Millisecond,
	time.Second,
	1500 * time.Millisecond,
	2 * time.Second,
	3 * time.Second,
	4 * time.Second,
	5 * time.Second,
}

var ErrInvalid = errors.New("invalid preferences")

// Preferences is read once when playback is initiated.
type Preferences struct {
	Device   Device   `mapstructure:"device"`
	Buffer   Buffer   `mapstructure:"buffer"`
	Resample Resample `mapstructure:"resample"`
	Log      Log      `mapstructure:"log"`
	Metrics  Metrics  `mapstructure:"metrics"`
}

type Device struct {
	PreferredUID  string `mapstructure:"preferred_uid"`
	PreferredName string `mapstructure:"preferred_name"`
	// HogMode requests exclusive access to the device.
	HogMode     bool `mapstructure:"hog_mode"`
	IntegerMode bool `mapstructure:"integer_mode"`
	// SwitchLatency is waited after a device rate change before output
	// resumes.
	SwitchLatency time.Duration `mapstructure:"switch_latency"`
	Dither        Dither        `mapstructure:"dither"`
}

type Buffer struct {
	MaxSizeMB      int  `mapstructure:"max_size_mb"`
	ForceMaxIOSize bool `mapstructure:"force_max_io_size"`
}

type Resample struct {
	Model            string     `mapstructure:"model"`
	Quality          int        `mapstructure:"quality"`
	ForcedUpsampling Upsampling `mapstructure:"forced_upsampling"`
	// MaxSampleRate caps the playing rate, 0 means no cap.
	MaxSampleRate int `mapstructure:"max_sample_rate"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type Metrics struct {
	// Listen is the address of the metrics endpoint, empty to disable it.
	Listen string `mapstructure:"listen"`
}

// Default returns the preferences used when nothing is configured.
func Default() Preferences {
	v := viper.New()
	setDefaults(v)

	var p Preferences
	_ = v.Unmarshal(&p)
	return p
}

// New returns a viper instance with the defaults and the environment
// overrides in place. path may be empty.
func New(path string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("bitperfect")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/bitperfect")
	}
	return v
}

// Load reads the configuration file, if any, and returns the validated
// preferences. A missing file is not an error when path is empty.
func Load(path string) (Preferences, error) {
	v := New(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Preferences{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the preferences held by v.
func FromViper(v *viper.Viper) (Preferences, error) {
	var p Preferences
	if err := v.Unmarshal(&p); err != nil {
		return Preferences{}, fmt.Errorf("decode config: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Preferences{}, err
	}
	return p, nil
}

// Validate checks the enumerated fields.
func (p Preferences) Validate() error {
	var errs []error

	if _, err := resample.ParseEngine(p.Resample.Model); err != nil {
		errs = append(errs, err)
	}
	if !resample.Quality(p.Resample.Quality).Valid() {
		errs = append(errs, fmt.Errorf("resample quality %d out of range 0..4", p.Resample.Quality))
	}
	switch p.Resample.ForcedUpsampling {
	case UpsamplingNone, UpsamplingOversampling, UpsamplingMax:
	default:
		errs = append(errs, fmt.Errorf("unknown forced upsampling %q", p.Resample.ForcedUpsampling))
	}
	switch p.Device.Dither {
	case DitherNone, DitherRectangular, DitherTriangular:
	default:
		errs = append(errs, fmt.Errorf("unknown dither %q", p.Device.Dither))
	}
	if !slices.Contains(MaxSampleRates, p.Resample.MaxSampleRate) {
		errs = append(errs, fmt.Errorf("unsupported max sample rate %d", p.Resample.MaxSampleRate))
	}
	if !slices.Contains(SwitchLatencies, p.Device.SwitchLatency) {
		errs = append(errs, fmt.Errorf("unsupported switch latency %s", p.Device.SwitchLatency))
	}
	if p.Buffer.MaxSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("buffer size %d MB must be positive", p.Buffer.MaxSizeMB))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Engine is the converter engine named by resample.model.
func (p Preferences) Engine() resample.Engine {
	e, _ := resample.ParseEngine(p.Resample.Model)
	return e
}

func (p Preferences) Quality() resample.Quality { return resample.Quality(p.Resample.Quality) }

// MaxBufferBytes is the size of one buffer slot in bytes.
func (p Preferences) MaxBufferBytes() int64 { return int64(p.Buffer.MaxSizeMB) << 20 }
