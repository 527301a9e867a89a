package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/velmie/notifybox"
)

// ErrDBRequired is returned when a nil *gorm.DB is provided.
var ErrDBRequired = errors.New("notifybox gormstore: db is required")

// Option configures the store.
type Option func(*Store)

// WithTable sets the outbox table name.
func WithTable(name string) Option {
	return func(s *Store) {
		s.table = name
	}
}

// Store implements notifybox.Store with gorm.
type Store struct {
	db      *gorm.DB
	table   string
	locking bool
}

var (
	_ notifybox.Store   = (*Store)(nil)
	_ notifybox.Counter = (*Store)(nil)
)

// New constructs a store. Row locking is enabled for every dialect except SQLite.
func New(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	s := &Store{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	s.locking = db.Dialector.Name() != "sqlite"

	return s, nil
}

// Migrate creates or updates the outbox table and its indexes.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&Model{}); err != nil {
		return fmt.Errorf("notifybox gormstore: migrate failed: %w", err)
	}

	return nil
}

// Insert implements notifybox.Inserter.
func (s *Store) Insert(ctx context.Context, record notifybox.Record) (bool, error) {
	return s.insert(s.db.WithContext(ctx), record)
}

// WithTx returns an inserter bound to the caller's gorm transaction.
func (s *Store) WithTx(tx *gorm.DB) notifybox.Inserter {
	return txInserter{store: s, tx: tx}
}

type txInserter struct {
	store *Store
	tx    *gorm.DB
}

func (t txInserter) Insert(ctx context.Context, record notifybox.Record) (bool, error) {
	return t.store.insert(t.tx.WithContext(ctx), record)
}

func (s *Store) insert(db *gorm.DB, record notifybox.Record) (bool, error) {
	row := toModel(record)
	create := db.Table(s.table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dedupe_key"}},
		DoNothing: true,
	}).Create(&row)
	if create.Error != nil {
		return false, fmt.Errorf("notifybox gormstore: insert failed: %w", create.Error)
	}

	return create.RowsAffected > 0, nil
}

// Claim implements notifybox.Store.
func (s *Store) Claim(ctx context.Context, opts notifybox.ClaimOptions) ([]notifybox.Record, error) {
	if opts.Limit <= 0 {
		return nil, nil
	}

	now := opts.Now.UTC()
	leaseUntil := opts.LeaseUntil.UTC()
	var records []notifybox.Record

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Table(s.table).
			Where("status = ? AND next_attempt_at <= ?", int16(notifybox.StatusPending), now).
			Where("(lease_until IS NULL OR lease_until <= ?)", now).
			Order("next_attempt_at ASC, id ASC").
			Limit(opts.Limit)
		if s.locking {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var rows []Model
		if err := query.Find(&rows).Error; err != nil {
			return fmt.Errorf("notifybox gormstore: select failed: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}

		ids := make([]string, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		if err := tx.Table(s.table).Where("id IN ?", ids).Updates(map[string]any{
			"claim_token": opts.Token,
			"lease_until": leaseUntil,
		}).Error; err != nil {
			return fmt.Errorf("notifybox gormstore: claim update failed: %w", err)
		}

		records = make([]notifybox.Record, 0, len(rows))
		for _, row := range rows {
			record, err := row.record()
			if err != nil {
				return fmt.Errorf("notifybox gormstore: decode row %s: %w", row.ID, err)
			}
			record.ClaimToken = opts.Token
			record.LeaseUntil = leaseUntil
			records = append(records, record)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

// MarkSent implements notifybox.Store.
func (s *Store) MarkSent(ctx context.Context, lease notifybox.Lease, at time.Time) error {
	at = at.UTC()

	return s.updateHeld(ctx, lease, "mark sent", map[string]any{
		"status":      int16(notifybox.StatusSent),
		"sent_at":     at,
		"updated_at":  at,
		"last_error":  nil,
		"claim_token": nil,
		"lease_until": nil,
	})
}

// MarkFailed implements notifybox.Store.
func (s *Store) MarkFailed(ctx context.Context, lease notifybox.Lease, update notifybox.FailureUpdate) error {
	return s.updateHeld(ctx, lease, "mark failed", map[string]any{
		"status":          int16(update.Status),
		"attempts":        update.Attempts,
		"next_attempt_at": update.NextAttemptAt.UTC(),
		"last_error":      optionalString(update.LastError),
		"updated_at":      update.At.UTC(),
		"claim_token":     nil,
		"lease_until":     nil,
	})
}

func (s *Store) updateHeld(ctx context.Context, lease notifybox.Lease, op string, values map[string]any) error {
	res := s.db.WithContext(ctx).Table(s.table).
		Where("id = ? AND claim_token = ? AND status = ?", lease.ID.String(), lease.Token, int16(notifybox.StatusPending)).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("notifybox gormstore: %s failed: %w", op, res.Error)
	}
	if res.RowsAffected == 0 {
		return notifybox.ErrClaimLost
	}

	return nil
}

// Counts implements notifybox.Counter.
func (s *Store) Counts(ctx context.Context) (notifybox.Counts, error) {
	var rows []struct {
		Status int16
		Total  int
	}
	if err := s.db.WithContext(ctx).Table(s.table).
		Select("status, COUNT(*) AS total").
		Where("status IN ?", []int16{int16(notifybox.StatusPending), int16(notifybox.StatusDead)}).
		Group("status").
		Scan(&rows).Error; err != nil {
		return notifybox.Counts{}, fmt.Errorf("notifybox gormstore: count failed: %w", err)
	}

	var counts notifybox.Counts
	for _, row := range rows {
		switch notifybox.Status(row.Status) {
		case notifybox.StatusPending:
			counts.Pending = row.Total
		case notifybox.StatusDead:
			counts.Dead = row.Total
		}
	}

	return counts, nil
}

// Get loads a record by ID.
func (s *Store) Get(ctx context.Context, id notifybox.ID) (notifybox.Record, error) {
	var row Model
	if err := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id.String()).Take(&row).Error; err != nil {
		return notifybox.Record{}, fmt.Errorf("notifybox gormstore: get failed: %w", err)
	}

	return row.record()
}
