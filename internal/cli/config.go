package cli

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/landmetrics/eftrich/pkg/errors"
)

// runConfig mirrors the run command's flags in a TOML file, so recurring
// analyses can be checked into the project instead of retyped:
//
//	patterns = ["rasters/*.nc"]
//	radii = [300.0, 1000.0]
//	workspace = "richness_workspace"
//	workers = 8
//	force = false
//	cache = "file"
//	redis_addr = ""
//
// Flags given on the command line win over file values.
type runConfig struct {
	Patterns  []string  `toml:"patterns"`
	Radii     []float64 `toml:"radii"`
	Workspace string    `toml:"workspace"`
	Workers   int       `toml:"workers"`
	Force     bool      `toml:"force"`
	Cache     string    `toml:"cache"`
	RedisAddr string    `toml:"redis_addr"`
}

// loadRunConfig reads and decodes a TOML run file. Unknown keys are an
// error so typos don't silently fall back to defaults.
func loadRunConfig(path string) (*runConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "read config %s", path)
	}
	var cfg runConfig
	meta, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"unknown key %q in config %s", undecoded[0].String(), path)
	}
	return &cfg, nil
}
