// Package config loads the user-level settings that apply across every
// project: ~/.config/run/config.yaml. Flags and env vars take precedence
// over everything in here.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Global holds workstation-wide defaults.
type Global struct {
	Target       string `koanf:"target"`
	TemplatesURL string `koanf:"templates_url"`
	StateBucket  string `koanf:"state_bucket"`
	StatePrefix  string `koanf:"state_prefix"`
}

// Path returns the settings file location under the XDG config home.
func Path() string {
	return filepath.Join(xdg.ConfigHome, "run", "config.yaml")
}

// Load parses the settings file, returning zero values when it does not
// exist so callers don't need to check first.
func Load(path string) (*Global, error) {
	cfg := &Global{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}
