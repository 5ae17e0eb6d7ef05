// Package config loads optional run defaults from a YAML file so flags
// do not have to be repeated on every invocation.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/bayue48/pia-scrap/model"
)

// Config holds defaults that CLI flags override.
type Config struct {
	Output    string  `yaml:"output"`
	Language  string  `yaml:"language"`
	Throttle  float64 `yaml:"throttle"`
	Proxy     string  `yaml:"proxy"`
	UserAgent string  `yaml:"user_agent"`
	Debug     bool    `yaml:"debug"`
}

// Default is the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Output:   "output",
		Language: "en",
		Throttle: 2.0,
	}
}

// Load reads the config file at path, filling unset fields with defaults.
// A missing file is not an error; a file that fails to parse is.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, &model.MalformedInputError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &model.MalformedInputError{Path: path, Err: fmt.Errorf("invalid yaml: %v", err)}
	}
	if cfg.Output == "" {
		cfg.Output = "output"
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.Throttle <= 0 {
		cfg.Throttle = 2.0
	}
	return cfg, nil
}
