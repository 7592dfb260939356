package schedule

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadFile reads and validates a schedule from a YAML file.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read schedule file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML (or JSON, which is a YAML subset) schedule document.
func Parse(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse schedule: %w", err)
	}
	if cfg.BookingMode == "" {
		cfg.BookingMode = ModeScheduled
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
