package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultProvider        = "yahoo"
	DefaultProviderTimeout = 30 * time.Second
	DefaultMaxRetries      = 3
	DefaultDBDriver        = "postgres"
	DefaultDBPort          = 5432
	DefaultDBSSLMode       = "prefer"
	DefaultMaxConns        = 10
	DefaultMinConns        = 2
	DefaultOverlapMonths   = 2
	DefaultInterval        = "1mo"
	DefaultFloorDate       = "1985-01-01"
	DefaultTimezone        = "America/New_York"
	DefaultCron            = "30 17 * * 1-5" // weekdays after US close
	DefaultGrace           = time.Hour
	DefaultServerPort      = 8080
)

func (c *Config) applyDefaults() {
	if c.Provider.Name == "" {
		c.Provider.Name = DefaultProvider
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = DefaultProviderTimeout
	}
	if c.Provider.MaxRetries == 0 {
		c.Provider.MaxRetries = DefaultMaxRetries
	}

	if c.Database.Driver == "" {
		c.Database.Driver = DefaultDBDriver
	}
	applyDBDefaults(&c.Database.Postgres)

	if c.Sync.OverlapMonths == 0 {
		c.Sync.OverlapMonths = DefaultOverlapMonths
	}
	if c.Sync.Interval == "" {
		c.Sync.Interval = DefaultInterval
	}
	if c.Sync.FloorDate == "" {
		c.Sync.FloorDate = DefaultFloorDate
	}
	if c.Sync.DefaultTimezone == "" {
		c.Sync.DefaultTimezone = DefaultTimezone
	}

	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCron
	}
	if c.Schedule.Timezone == "" {
		c.Schedule.Timezone = c.Sync.DefaultTimezone
	}
	if c.Schedule.Grace == 0 {
		c.Schedule.Grace = DefaultGrace
	}

	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
