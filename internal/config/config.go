// Package config loads and validates syncd configuration.
//
// Sources, in override order: YAML file with ${VAR} expansion, then
// individual environment variables for deploy-time knobs (SYNC_SYMBOLS,
// SYNC_PROVIDER, SYNC_CRON, SYNC_TIMEZONE, SYNC_FLOOR_DATE).
package config

import "time"

// Config is the root configuration for a syncd instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Provider ProviderConfig `yaml:"provider"`
	Database DatabaseConfig `yaml:"database"`
	Sync     SyncConfig     `yaml:"sync"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Server   ServerConfig   `yaml:"server"`
}

// InstanceConfig identifies this syncd.
type InstanceConfig struct {
	ID string `yaml:"id" validate:"required"`
}

// ProviderConfig selects and tunes the quote backend.
type ProviderConfig struct {
	Name       string        `yaml:"name" validate:"required"`
	Timeout    time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `yaml:"max_retries" validate:"gte=0"`
}

// DatabaseConfig selects the bar store.
type DatabaseConfig struct {
	Driver   string   `yaml:"driver" validate:"oneof=postgres memory"`
	Postgres DBConfig `yaml:"postgres"`
}

// DBConfig holds a single Postgres connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// SyncConfig holds the sync defaults the orchestrator runs with.
type SyncConfig struct {
	Symbols         []string `yaml:"symbols" validate:"min=1"`
	OverlapMonths   int      `yaml:"overlap_months" validate:"gte=0"`
	Interval        string   `yaml:"interval" validate:"oneof=1d 1mo"`
	FloorDate       string   `yaml:"floor_date" validate:"required"`
	DefaultTimezone string   `yaml:"default_timezone" validate:"required"`
}

// Floor parses the historical floor date.
func (s SyncConfig) Floor() (time.Time, error) {
	return time.Parse("2006-01-02", s.FloorDate)
}

// ScheduleConfig holds cron-driven sync settings.
type ScheduleConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Cron     string        `yaml:"cron"`
	Timezone string        `yaml:"timezone"`
	Grace    time.Duration `yaml:"grace" validate:"gte=0"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port int `yaml:"port" validate:"gte=1,lte=65535"`
}
