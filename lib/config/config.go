// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package config is an optional, caller-side YAML loader for
// engine.Options. Per §6.5 the engine facade itself only ever takes
// explicit parameters; this package exists purely so a caller that
// wants file-based configuration doesn't have to hand-roll it.
package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nshi/falcon/lib/ferr"
	"github.com/nshi/falcon/lib/persist"
)

// Options mirrors engine.Options in a YAML-friendly shape. Separator
// and Metrics aren't meaningful in a config file (the former is almost
// always "/", the latter is a live object) so they're left for the
// caller to set after Load returns.
type Options struct {
	CachePath   string `yaml:"cache_path"`
	CacheFormat string `yaml:"cache_format"`
	BatchSize   int    `yaml:"batch_size"`
	MaxWorkers  int    `yaml:"max_workers"`
	DirSlots    int    `yaml:"dir_slots"`
	// WatchDelay is unused by the engine today; it's kept here because
	// watcher debouncing is a common knob callers expect to find, and
	// reserving the field avoids a breaking config format change later.
	WatchDelay int `yaml:"watch_delay"`
}

// Format resolves the YAML cache_format string to a persist.Format,
// defaulting to persist.FormatText for an empty or unrecognised value.
func (o Options) Format() persist.Format {
	if o.CacheFormat == "sqlite" {
		return persist.FormatSQLite
	}
	return persist.FormatText
}

// Load reads and parses a YAML config file at path.
func Load(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, ferr.New(ferr.IO, "config.Load", err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return Options{}, ferr.New(ferr.Codec, "config.Load", err)
	}
	return o, nil
}
