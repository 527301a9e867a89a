// Package memstore provides an in-memory notifybox.Store for tests and local runs.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/velmie/notifybox"
)

// Store keeps records in memory with the same claim semantics as the SQL stores.
type Store struct {
	mu      sync.Mutex
	records map[notifybox.ID]*notifybox.Record
	byKey   map[string]notifybox.ID
}

var (
	_ notifybox.Store   = (*Store)(nil)
	_ notifybox.Counter = (*Store)(nil)
)

// New returns an empty store.
func New() *Store {
	return &Store{
		records: make(map[notifybox.ID]*notifybox.Record),
		byKey:   make(map[string]notifybox.ID),
	}
}

// Insert implements notifybox.Inserter.
func (s *Store) Insert(_ context.Context, record notifybox.Record) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byKey[record.DedupeKey]; ok {
		return false, nil
	}
	record.Payload = bytes.Clone(record.Payload)
	s.records[record.ID] = &record
	s.byKey[record.DedupeKey] = record.ID

	return true, nil
}

// Claim implements notifybox.Store.
func (s *Store) Claim(_ context.Context, opts notifybox.ClaimOptions) ([]notifybox.Record, error) {
	if opts.Limit <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	due := make([]*notifybox.Record, 0)
	for _, record := range s.records {
		if record.Status != notifybox.StatusPending || record.NextAttemptAt.After(opts.Now) {
			continue
		}
		if !record.LeaseUntil.IsZero() && record.LeaseUntil.After(opts.Now) {
			continue
		}
		due = append(due, record)
	}
	sort.Slice(due, func(i, j int) bool {
		if !due[i].NextAttemptAt.Equal(due[j].NextAttemptAt) {
			return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
		}

		return due[i].ID.String() < due[j].ID.String()
	})
	if len(due) > opts.Limit {
		due = due[:opts.Limit]
	}

	claimed := make([]notifybox.Record, 0, len(due))
	for _, record := range due {
		record.ClaimToken = opts.Token
		record.LeaseUntil = opts.LeaseUntil
		claimed = append(claimed, *record)
	}

	return claimed, nil
}

// MarkSent implements notifybox.Store.
func (s *Store) MarkSent(_ context.Context, lease notifybox.Lease, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.held(lease)
	if err != nil {
		return err
	}
	record.Status = notifybox.StatusSent
	record.LastError = ""
	record.SentAt = at
	record.UpdatedAt = at
	record.ClaimToken = ""
	record.LeaseUntil = time.Time{}

	return nil
}

// MarkFailed implements notifybox.Store.
func (s *Store) MarkFailed(_ context.Context, lease notifybox.Lease, update notifybox.FailureUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.held(lease)
	if err != nil {
		return err
	}
	record.Status = update.Status
	record.Attempts = update.Attempts
	record.NextAttemptAt = update.NextAttemptAt
	record.LastError = update.LastError
	record.UpdatedAt = update.At
	record.ClaimToken = ""
	record.LeaseUntil = time.Time{}

	return nil
}

// Counts implements notifybox.Counter.
func (s *Store) Counts(_ context.Context) (notifybox.Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var counts notifybox.Counts
	for _, record := range s.records {
		switch record.Status {
		case notifybox.StatusPending:
			counts.Pending++
		case notifybox.StatusDead:
			counts.Dead++
		}
	}

	return counts, nil
}

// Get returns a copy of the record with the given ID.
func (s *Store) Get(id notifybox.ID) (notifybox.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[id]
	if !ok {
		return notifybox.Record{}, false
	}

	return *record, true
}

// All returns copies of every record ordered by creation time and ID.
func (s *Store) All() []notifybox.Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]notifybox.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, *record)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}

		return out[i].ID.String() < out[j].ID.String()
	})

	return out
}

func (s *Store) held(lease notifybox.Lease) (*notifybox.Record, error) {
	record, ok := s.records[lease.ID]
	if !ok || record.Status != notifybox.StatusPending || record.ClaimToken == "" || record.ClaimToken != lease.Token {
		return nil, notifybox.ErrClaimLost
	}

	return record, nil
}
