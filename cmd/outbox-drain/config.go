package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	driverMySQL    = "mysql"
	driverPostgres = "postgres"
)

type config struct {
	StoreDriver string `env:"STORE_DRIVER" envDefault:"mysql"`
	DatabaseDSN string `env:"DATABASE_DSN,required"`
	Table       string `env:"OUTBOX_TABLE" envDefault:"notification_outbox"`
	Migrate     bool   `env:"OUTBOX_MIGRATE"`

	OrdersTable      string `env:"ORDERS_TABLE" envDefault:"orders"`
	OrdersIDColumn   string `env:"ORDERS_ID_COLUMN" envDefault:"id"`
	OrdersFlagColumn string `env:"ORDERS_FLAG_COLUMN" envDefault:"customer_notified"`

	AMQPURL           string `env:"AMQP_URL,required"`
	Exchange          string `env:"AMQP_EXCHANGE" envDefault:"notifications"`
	RoutingPrefix     string `env:"AMQP_ROUTING_PREFIX" envDefault:"notifybox"`
	PublisherConfirms bool   `env:"AMQP_PUBLISHER_CONFIRMS" envDefault:"true"`

	BatchSize     int           `env:"DRAIN_BATCH_SIZE" envDefault:"50"`
	Workers       int           `env:"DRAIN_WORKERS" envDefault:"1"`
	PollInterval  time.Duration `env:"DRAIN_POLL_INTERVAL" envDefault:"1s"`
	Lease         time.Duration `env:"DRAIN_LEASE" envDefault:"10m"`
	SendTimeout   time.Duration `env:"DRAIN_SEND_TIMEOUT" envDefault:"10s"`
	CountInterval time.Duration `env:"DRAIN_COUNT_INTERVAL" envDefault:"30s"`
	MaxAttempts   int           `env:"MAX_ATTEMPTS" envDefault:"8"`

	OTLPEndpoint    string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName     string        `env:"OTEL_SERVICE_NAME" envDefault:"outbox-drain"`
	MetricsInterval time.Duration `env:"METRICS_EXPORT_INTERVAL" envDefault:"30s"`

	SentryDSN   string `env:"SENTRY_DSN"`
	Environment string `env:"ENVIRONMENT" envDefault:"production"`
	Release     string `env:"RELEASE"`
	Debug       bool   `env:"DEBUG"`
}

func loadConfig(environ map[string]string) (config, error) {
	var cfg config
	opts := env.Options{}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return config{}, err
	}

	return cfg, nil
}

func (c config) validate() error {
	var errs []error
	switch c.StoreDriver {
	case driverMySQL, driverPostgres:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", driverMySQL, driverPostgres, c.StoreDriver))
	}
	if c.BatchSize < 1 {
		errs = append(errs, errors.New("DRAIN_BATCH_SIZE must be positive"))
	}
	if c.Workers < 1 {
		errs = append(errs, errors.New("DRAIN_WORKERS must be positive"))
	}
	if c.SendTimeout <= 0 {
		errs = append(errs, errors.New("DRAIN_SEND_TIMEOUT must be positive"))
	}
	// Every send in a batch may run to its timeout before the lease is checked again.
	if worst := time.Duration(c.BatchSize) * c.SendTimeout; c.Lease <= worst {
		errs = append(errs, fmt.Errorf("DRAIN_LEASE (%s) must exceed DRAIN_BATCH_SIZE x DRAIN_SEND_TIMEOUT (%s)", c.Lease, worst))
	}
	if c.OTLPEndpoint != "" && !strings.HasPrefix(c.OTLPEndpoint, "http://") && !strings.HasPrefix(c.OTLPEndpoint, "https://") {
		errs = append(errs, errors.New("OTEL_EXPORTER_OTLP_ENDPOINT must be an http:// or https:// URL"))
	}
	if c.MetricsInterval <= 0 {
		errs = append(errs, errors.New("METRICS_EXPORT_INTERVAL must be positive"))
	}
	if c.MaxAttempts < 1 {
		errs = append(errs, errors.New("MAX_ATTEMPTS must be positive"))
	}

	return errors.Join(errs...)
}
