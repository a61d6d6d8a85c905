// Package config loads a shakedb.toml host configuration file: where the
// database lives, how many workers to run, how verbose to trace, and
// which targets a bare "shakedb build" should build.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"shakedb/internal/buildtrace"
)

// Target names one buildable key and the keys it depends on, matching
// the shape internal/ruleengine expects for its demo Rules.
type Target struct {
	Name    string   `toml:"name"`
	Depends []string `toml:"depends"`
}

// Config is the decoded shape of shakedb.toml.
type Config struct {
	DatabasePath string   `toml:"database_path"`
	UserVersion  int      `toml:"user_version"`
	Jobs         int      `toml:"jobs"`
	TraceLevel   string   `toml:"trace_level"`
	Target       []Target `toml:"Target"`

	// Level is TraceLevel parsed by Load. It is what the rest of the
	// program actually reads; TraceLevel is kept around only because it's
	// the TOML-facing spelling.
	Level buildtrace.Level `toml:"-"`
}

// Default returns the configuration shakedb init writes out, and the base
// Load decodes a file over, so fields the file omits keep these values.
// A missing config file is still an error from Load.
func Default() Config {
	return Config{
		DatabasePath: "shakedb",
		UserVersion:  1,
		Jobs:         0,
		TraceLevel:   "off",
		Level:        buildtrace.LevelOff,
		Target: []Target{
			{Name: "app"},
		},
	}
}

// Load parses the TOML file at path. A malformed file, or one naming an
// invalid trace_level, is an error: config is a write-adjacent, explicit
// input, and a bad one is a caller bug rather than a condition to warn
// past and continue from.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.DatabasePath) == "" {
		return Config{}, fmt.Errorf("config: %s: database_path must not be empty", path)
	}
	level, err := buildtrace.ParseLevel(cfg.TraceLevel)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Level = level
	return cfg, nil
}

// Save writes cfg to path as TOML, overwriting whatever is there.
func Save(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: create %s: %w", path, err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("config: encode %s: %w", path, err)
	}
	return nil
}
