// Command outbox-cleanup removes delivered and dead notification records from a MySQL outbox table.
//
// It wraps mysql.CleanupMaintainer for cron jobs and sidecars when the
// application itself should not run DELETE statements.
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

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/velmie/notifybox"
	"github.com/velmie/notifybox/mysql"
)

const exitUsage = 2

type options struct {
	dsn         string
	table       string
	retention   time.Duration
	checkEvery  time.Duration
	limit       int
	lockName    string
	includeDead bool
	once        bool
	verbose     bool
}

func parseFlags(fs *flag.FlagSet, args []string) (options, error) {
	var opts options
	fs.StringVar(&opts.dsn, "dsn", os.Getenv("DATABASE_DSN"), "MySQL DSN, e.g. user:pass@tcp(host:3306)/db?parseTime=true")
	fs.StringVar(&opts.table, "table", "notification_outbox", "Outbox table name")
	fs.DurationVar(&opts.retention, "retention", 7*24*time.Hour, "Delete rows older than this duration")
	fs.DurationVar(&opts.checkEvery, "check-every", time.Hour, "How often to run cleanup")
	fs.IntVar(&opts.limit, "limit", 0, "Max rows deleted per status and run (0 uses default)")
	fs.StringVar(&opts.lockName, "lock-name", "", "Advisory lock name (optional)")
	fs.BoolVar(&opts.includeDead, "include-dead", false, "Delete dead rows as well")
	fs.BoolVar(&opts.once, "once", false, "Run once and exit")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}

	if opts.dsn == "" {
		return options{}, errors.New("dsn is required")
	}
	if opts.retention <= 0 {
		return options{}, errors.New("retention must be positive")
	}

	return opts, nil
}

func main() {
	opts, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(exitUsage)
	}

	logger, err := newLogger(opts.verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("outbox-cleanup failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	return cfg.Build()
}

func run(ctx context.Context, opts options, zl *zap.Logger) error {
	db, err := sql.Open("mysql", opts.dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	maintainer, err := mysql.NewCleanupMaintainer(db, mysql.CleanupMaintainerConfig{
		Table:       opts.table,
		Retention:   opts.retention,
		CheckEvery:  opts.checkEvery,
		Limit:       opts.limit,
		IncludeDead: opts.includeDead,
		LockName:    opts.lockName,
		Clock:       notifybox.SystemClock{},
		Logger:      notifybox.NewZapLogger(zl),
	})
	if err != nil {
		return fmt.Errorf("init maintainer: %w", err)
	}

	if opts.once {
		result, err := maintainer.Ensure(ctx)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		zl.Info("cleanup done", zap.Int64("sent", result.Sent), zap.Int64("dead", result.Dead))

		return nil
	}

	if err := maintainer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run maintainer: %w", err)
	}

	return nil
}
