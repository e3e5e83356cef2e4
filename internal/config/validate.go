package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validate checks everything that can be checked without touching the network.
// It is used both at startup and as the hot-reload gate.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", c.Telegram.PollTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("storage.busy_timeout", c.Storage.BusyTimeout); err != nil {
		return err
	}
	if _, err := ParseDurationField("scheduler.poll_period", c.Scheduler.PollPeriod); err != nil {
		return err
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: unknown location %q: %w", tz, err)
		}
	}
	if c.Broadcast.PageSize < 0 {
		return errors.New("broadcast.page_size must be >= 0")
	}
	if c.Broadcast.Workers < 0 {
		return errors.New("broadcast.workers must be >= 0")
	}
	if c.Telegram.RatePerSec < 0 {
		return errors.New("telegram.rate_per_sec must be >= 0")
	}
	return nil
}
