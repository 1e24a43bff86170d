package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	cfg.applyEnv()
	return &cfg, nil
}

// LoadAndValidate loads config, applies env overrides and defaults, and
// validates the result.
func LoadAndValidate(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// applyEnv overrides the deploy-time knobs named in the environment.
func (c *Config) applyEnv() {
	if v := os.Getenv("SYNC_SYMBOLS"); v != "" {
		c.Sync.Symbols = splitCSV(v)
	}
	if v := os.Getenv("SYNC_PROVIDER"); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv("SYNC_CRON"); v != "" {
		c.Schedule.Cron = v
	}
	if v := os.Getenv("SYNC_TIMEZONE"); v != "" {
		c.Schedule.Timezone = v
	}
	if v := os.Getenv("SYNC_FLOOR_DATE"); v != "" {
		c.Sync.FloorDate = v
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
