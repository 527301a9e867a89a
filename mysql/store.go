package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/velmie/notifybox"
)

// Executor runs statements on a *sql.DB, *sql.Tx or *sql.Conn.
type Executor interface {
	// ExecContext executes a statement with the provided context.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store implements a MySQL-backed notifybox.Store using leases + SKIP LOCKED.
type Store struct {
	db      *sql.DB
	cfg     Config
	queries queries
	table   string
}

var (
	_ notifybox.Store   = (*Store)(nil)
	_ notifybox.Counter = (*Store)(nil)
)

// NewStore constructs a MySQL store with validated configuration.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	table, err := sanitizeTableName(cfg.Table)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:      db,
		cfg:     cfg,
		queries: newQueries(table),
		table:   table,
	}, nil
}

// MustNewStore constructs a MySQL store or panics on error.
func MustNewStore(db *sql.DB, opts ...Option) *Store {
	store, err := NewStore(db, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Insert implements notifybox.Inserter outside of any caller transaction.
func (s *Store) Insert(ctx context.Context, record notifybox.Record) (bool, error) {
	return s.insert(ctx, s.db, record)
}

// Tx returns an inserter bound to the caller's transaction, so records commit
// or roll back together with the business change.
func (s *Store) Tx(exec Executor) notifybox.Inserter {
	return txInserter{store: s, exec: exec}
}

type txInserter struct {
	store *Store
	exec  Executor
}

func (t txInserter) Insert(ctx context.Context, record notifybox.Record) (bool, error) {
	return t.store.insert(ctx, t.exec, record)
}

func (s *Store) insert(ctx context.Context, exec Executor, record notifybox.Record) (bool, error) {
	if exec == nil {
		return false, ErrExecutorRequired
	}

	res, err := exec.ExecContext(
		ctx,
		s.queries.insert,
		record.ID,
		record.OrganizationID,
		nullString(record.OrderID),
		string(record.Type),
		record.Trigger,
		string(record.Channel),
		[]byte(record.Payload),
		record.DedupeKey,
		record.Status,
		record.Attempts,
		record.MaxAttempts,
		record.NextAttemptAt.UTC(),
		record.CreatedAt.UTC(),
		record.UpdatedAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("notifybox mysql: insert failed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("notifybox mysql: insert rows failed: %w", err)
	}

	return affected > 0, nil
}

// MarkSent implements notifybox.Store.
func (s *Store) MarkSent(ctx context.Context, lease notifybox.Lease, at time.Time) error {
	at = at.UTC()
	res, err := s.db.ExecContext(
		ctx,
		s.queries.markSent,
		notifybox.StatusSent,
		at,
		at,
		lease.ID,
		lease.Token,
		notifybox.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("notifybox mysql: mark sent failed: %w", err)
	}

	return requireAffected(res)
}

// MarkFailed implements notifybox.Store.
func (s *Store) MarkFailed(ctx context.Context, lease notifybox.Lease, update notifybox.FailureUpdate) error {
	res, err := s.db.ExecContext(
		ctx,
		s.queries.markFailed,
		update.Status,
		update.Attempts,
		update.NextAttemptAt.UTC(),
		nullString(update.LastError),
		update.At.UTC(),
		lease.ID,
		lease.Token,
		notifybox.StatusPending,
	)
	if err != nil {
		return fmt.Errorf("notifybox mysql: mark failed failed: %w", err)
	}

	return requireAffected(res)
}

// Counts implements notifybox.Counter.
func (s *Store) Counts(ctx context.Context) (notifybox.Counts, error) {
	rows, err := s.db.QueryContext(ctx, s.queries.counts, notifybox.StatusPending, notifybox.StatusDead)
	if err != nil {
		return notifybox.Counts{}, fmt.Errorf("notifybox mysql: count failed: %w", err)
	}
	defer rows.Close()

	var counts notifybox.Counts
	for rows.Next() {
		var (
			status notifybox.Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return notifybox.Counts{}, fmt.Errorf("notifybox mysql: count scan failed: %w", err)
		}
		switch status {
		case notifybox.StatusPending:
			counts.Pending = count
		case notifybox.StatusDead:
			counts.Dead = count
		}
	}
	if err := rows.Err(); err != nil {
		return notifybox.Counts{}, fmt.Errorf("notifybox mysql: count rows failed: %w", err)
	}

	return counts, nil
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("notifybox mysql: rows affected failed: %w", err)
	}
	if affected == 0 {
		return notifybox.ErrClaimLost
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		return errors.Join(err, rbErr)
	}

	return err
}
