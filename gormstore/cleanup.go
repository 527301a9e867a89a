package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/velmie/notifybox"
)

const defaultCleanupLimit = 10000

// ErrCleanupBeforeRequired is returned when the cleanup cutoff is missing.
var ErrCleanupBeforeRequired = errors.New("notifybox gormstore: cleanup before time is required")

// CleanupOptions defines which terminal records to delete.
type CleanupOptions struct {
	// Before removes rows finalized before this timestamp (required).
	Before time.Time
	// Limit caps the number of rows deleted per status (0 uses the default).
	Limit int
	// IncludeDead removes dead rows too, using updated_at for the cutoff.
	IncludeDead bool
}

// CleanupResult reports how many rows were removed.
type CleanupResult struct {
	Sent int64
	Dead int64
}

// Cleanup removes sent rows (and optionally dead rows) finalized before opts.Before.
func (s *Store) Cleanup(ctx context.Context, opts CleanupOptions) (CleanupResult, error) {
	if opts.Before.IsZero() {
		return CleanupResult{}, ErrCleanupBeforeRequired
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultCleanupLimit
	}

	var (
		result CleanupResult
		err    error
	)
	result.Sent, err = s.deleteBefore(ctx, notifybox.StatusSent, "sent_at", opts.Before, limit)
	if err != nil {
		return CleanupResult{}, err
	}
	if opts.IncludeDead {
		result.Dead, err = s.deleteBefore(ctx, notifybox.StatusDead, "updated_at", opts.Before, limit)
		if err != nil {
			return CleanupResult{}, err
		}
	}

	return result, nil
}

func (s *Store) deleteBefore(ctx context.Context, status notifybox.Status, column string, before time.Time, limit int) (int64, error) {
	db := s.db.WithContext(ctx)
	ids := db.Table(s.table).
		Select("id").
		Where("status = ?", int16(status)).
		Where(column+" IS NOT NULL AND "+column+" <= ?", before.UTC()).
		Order(column).
		Limit(limit)

	res := db.Table(s.table).Where("id IN (?)", ids).Delete(&Model{})
	if res.Error != nil {
		return 0, fmt.Errorf("notifybox gormstore: cleanup delete failed: %w", res.Error)
	}

	return res.RowsAffected, nil
}
