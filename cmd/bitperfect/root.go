// SPDX-License-Identifier: EPL-2.0

package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ik5/bitperfect/config"
	"github.com/ik5/bitperfect/internal/logging"
	"github.com/ik5/bitperfect/output"
	"github.com/ik5/bitperfect/output/malgo"
	"github.com/ik5/bitperfect/output/oto"
)

// app holds what every subcommand shares. It is filled in before a
// subcommand runs.
type app struct {
	configPath string
	hostName   string

	v      *viper.Viper
	prefs  config.Preferences
	logger *log.Logger
}

// flagKeys maps command line flags to configuration keys. A flag only
// overrides the file when it is given.
var flagKeys = map[string]string{
	"log-level":  "log.level",
	"log-format": "log.format",
	"device":     "device.preferred_uid",
	"hog":        "device.hog_mode",
	"integer":    "device.integer_mode",
	"dither":     "device.dither",
	"metrics":    "metrics.listen",
	"engine":     "resample.model",
	"quality":    "resample.quality",
	"upsampling": "resample.forced_upsampling",
}

func newRootCommand() *cobra.Command {
	return (&app{}).rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "bitperfect",
		Short:        "Bit-perfect audio player",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file (default ./bitperfect.yaml or ~/.config/bitperfect/bitperfect.yaml)")
	flags.StringVar(&a.hostName, "host", "malgo", "Output host: malgo or oto")
	flags.String("log-level", "", "Log level: debug, info, warn or error")
	flags.String("log-format", "", "Log format: text, json or logfmt")

	root.AddCommand(
		a.playCommand(),
		a.devicesCommand(),
		a.probeCommand(),
		a.renderCommand(),
	)

	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	a.v = config.New(a.configPath)
	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.configPath != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil {
			continue
		}
		if err := a.v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	prefs, err := config.FromViper(a.v)
	if err != nil {
		return err
	}
	a.prefs = prefs

	logger, err := logging.New(logging.Config{
		Level:  prefs.Log.Level,
		Format: prefs.Log.Format,
	})
	if err != nil {
		return err
	}
	a.logger = logger

	if used := a.v.ConfigFileUsed(); used != "" {
		a.logger.Debug("config loaded", "file", used)
	}
	return nil
}

func (a *app) openHost() (output.Host, error) {
	logger := a.logger.WithPrefix(a.hostName)

	switch a.hostName {
	case "malgo":
		h, err := malgo.New(malgo.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return h, nil
	case "oto":
		return oto.New(oto.WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("unknown host %q", a.hostName)
	}
}
