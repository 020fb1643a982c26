// SPDX-License-Identifier: EPL-2.0

package config

import (
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch calls onChange with the new preferences every time the file read
// by v is written. Invalid edits are logged and skipped.
func Watch(v *viper.Viper, logger *log.Logger, onChange func(Preferences)) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		p, err := FromViper(v)
		if err != nil {
			logger.Warn("ignoring config change", "file", e.Name, "err", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onChange(p)
	})
	v.WatchConfig()
}
