package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/quantfeed/marketsync/internal/scheduler"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks structural constraints via struct tags, then the
// semantic ones tags cannot express: the cron expression, the floor date,
// the timezones, and the Postgres connection when that driver is selected.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if _, err := c.Sync.Floor(); err != nil {
		return fmt.Errorf("sync.floor_date %q: %w", c.Sync.FloorDate, err)
	}
	if _, err := time.LoadLocation(c.Sync.DefaultTimezone); err != nil {
		return fmt.Errorf("sync.default_timezone: %w", err)
	}

	if c.Schedule.Enabled {
		if _, err := scheduler.ParseExpression(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}

	if c.Database.Driver == "postgres" {
		if err := c.Database.Postgres.validate("database.postgres"); err != nil {
			return err
		}
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	return nil
}
