package mysql

import "github.com/velmie/notifybox"

const defaultTable = "notification_outbox"

// Config defines MySQL store behavior.
type Config struct {
	Table string
	Clock notifybox.Clock
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.Clock == nil {
		c.Clock = notifybox.SystemClock{}
	}

	return c
}

// Option configures the MySQL store.
type Option func(*Config)

// WithTable sets the outbox table name.
func WithTable(name string) Option {
	return func(c *Config) {
		c.Table = name
	}
}

// WithClock sets the time source used by maintenance queries.
func WithClock(clock notifybox.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}
