// Command outbox-drain delivers pending notification outbox records to RabbitMQ.
//
// Configuration comes from the environment (optionally a .env file). By default
// the command runs the drain scheduler until SIGINT/SIGTERM; -once performs a
// single Drain call, which suits cron-style deployments.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	_ "github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/velmie/notifybox"
	"github.com/velmie/notifybox/amqpsender"
	"github.com/velmie/notifybox/gormstore"
	"github.com/velmie/notifybox/mysql"
	"github.com/velmie/notifybox/otelmetrics"
)

const (
	sentryFlushTimeout     = 2 * time.Second
	metricsShutdownTimeout = 5 * time.Second
)

type backend struct {
	store notifybox.Store
	hook  notifybox.OrderHook
	close func() error
}

func main() {
	var once bool
	flag.BoolVar(&once, "once", false, "Drain one batch and exit")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := loadConfig(nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	logger, err := newLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger, once); err != nil {
		logger.Error("outbox-drain failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}

	return zap.NewProduction()
}

func run(ctx context.Context, cfg config, zl *zap.Logger, once bool) error {
	logger := notifybox.NewZapLogger(zl)

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			AttachStacktrace: true,
			Release:          cfg.Release,
			Environment:      cfg.Environment,
			SampleRate:       1,
		})
		if err != nil {
			zl.Error("sentry init error", zap.Error(err))
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	be, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = be.close() }()

	conn, err := amqp.Dial(cfg.AMQPURL)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open amqp channel: %w", err)
	}
	defer ch.Close()

	if err := amqpsender.DeclareExchange(ch, cfg.Exchange); err != nil {
		return err
	}

	var pub amqpsender.Publisher = ch
	if cfg.PublisherConfirms {
		confirming, err := amqpsender.NewConfirmingPublisher(ch)
		if err != nil {
			return err
		}
		pub = confirming
	}

	shutdownMetrics, err := setupMeterProvider(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := shutdownMetrics(sctx); err != nil {
			zl.Warn("meter provider shutdown error", zap.Error(err))
		}
	}()

	metrics, err := otelmetrics.New(nil, attribute.String("outbox.table", cfg.Table))
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	dispatcher := notifybox.NewDispatcher(be.store,
		amqpsender.New(pub, cfg.Exchange, amqpsender.WithRoutingPrefix(cfg.RoutingPrefix)),
		notifybox.WithLogger(logger),
		notifybox.WithMetrics(metrics),
		notifybox.WithMaxAttempts(cfg.MaxAttempts),
		notifybox.WithMaxDrainLimit(cfg.BatchSize),
		notifybox.WithLease(cfg.Lease),
		notifybox.WithSendTimeout(cfg.SendTimeout),
		notifybox.WithOrderHook(be.hook),
		notifybox.WithDeadLetterHandler(reportDeadLetter(sentry.CurrentHub())),
	)

	if once {
		result, err := dispatcher.Drain(ctx, cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("drain: %w", err)
		}
		zl.Info("drain done",
			zap.Int("done", result.Done),
			zap.Int("sent", result.Sent),
			zap.Int("retried", result.Retried),
			zap.Int("dead", result.Dead),
			zap.Int("lost", result.Lost),
			zap.Int("store_errors", result.StoreErrors),
		)

		return nil
	}

	zl.Info("outbox-drain started",
		zap.String("driver", cfg.StoreDriver),
		zap.String("exchange", cfg.Exchange),
		zap.Int("workers", cfg.Workers),
	)
	scheduler := notifybox.NewScheduler(dispatcher,
		notifybox.WithBatchSize(cfg.BatchSize),
		notifybox.WithWorkers(cfg.Workers),
		notifybox.WithPollInterval(cfg.PollInterval),
		notifybox.WithCountInterval(cfg.CountInterval),
	)
	if err := scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run scheduler: %w", err)
	}
	zl.Info("outbox-drain stopped")

	return nil
}

func openBackend(ctx context.Context, cfg config) (backend, error) {
	switch cfg.StoreDriver {
	case driverPostgres:
		db, err := gormstore.OpenPostgres(cfg.DatabaseDSN)
		if err != nil {
			return backend{}, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return backend{}, fmt.Errorf("resolve sql db handle: %w", err)
		}
		store, err := gormstore.New(db, gormstore.WithTable(cfg.Table))
		if err != nil {
			_ = sqlDB.Close()

			return backend{}, err
		}
		if cfg.Migrate {
			if err := store.Migrate(ctx); err != nil {
				_ = sqlDB.Close()

				return backend{}, err
			}
		}
		hook := gormstore.NewOrderFlagger(db,
			gormstore.WithOrdersTable(cfg.OrdersTable, cfg.OrdersIDColumn, cfg.OrdersFlagColumn))

		return backend{store: store, hook: hook, close: sqlDB.Close}, nil
	default:
		db, err := sql.Open("mysql", cfg.DatabaseDSN)
		if err != nil {
			return backend{}, fmt.Errorf("open db: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()

			return backend{}, fmt.Errorf("ping db: %w", err)
		}
		store, err := mysql.NewStore(db, mysql.WithTable(cfg.Table))
		if err != nil {
			_ = db.Close()

			return backend{}, err
		}
		if cfg.Migrate {
			if err := createTable(ctx, db, cfg.Table); err != nil {
				_ = db.Close()

				return backend{}, err
			}
		}
		hook, err := mysql.NewOrderFlagger(db, mysql.OrderFlaggerConfig{
			Table:      cfg.OrdersTable,
			IDColumn:   cfg.OrdersIDColumn,
			FlagColumn: cfg.OrdersFlagColumn,
		})
		if err != nil {
			_ = db.Close()

			return backend{}, err
		}

		return backend{store: store, hook: hook, close: db.Close}, nil
	}
}

func createTable(ctx context.Context, db *sql.DB, table string) error {
	ddl, err := mysql.Schema(table)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create outbox table: %w", err)
	}

	return nil
}
