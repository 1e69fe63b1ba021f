package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// applyFile overlays values from a TOML config file onto c. Only keys
// present in the file are touched.
func applyFile(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}
