package notifybox

import (
	"context"
	"time"
)

// Inserter writes new records.
type Inserter interface {
	// Insert writes the record unless one with the same dedupe key exists.
	// It reports whether a new row was written; a conflict is not an error.
	Insert(ctx context.Context, record Record) (bool, error)
}

// ClaimOptions controls which records a drain claims.
type ClaimOptions struct {
	Limit int
	// Now selects records with NextAttemptAt <= Now whose lease is absent or expired.
	Now        time.Time
	LeaseUntil time.Time
	Token      string
}

// Store is the durable outbox used by the Dispatcher.
type Store interface {
	Inserter
	// Claim atomically selects up to opts.Limit due pending records, oldest due first,
	// and stamps them with opts.Token until opts.LeaseUntil.
	Claim(ctx context.Context, opts ClaimOptions) ([]Record, error)
	// MarkSent finalizes a claimed record as sent. It returns ErrClaimLost when the
	// record is no longer pending under the lease token.
	MarkSent(ctx context.Context, lease Lease, at time.Time) error
	// MarkFailed writes retry state for a claimed record. It returns ErrClaimLost when the
	// record is no longer pending under the lease token.
	MarkFailed(ctx context.Context, lease Lease, update FailureUpdate) error
}

// Counts reports the number of pending and dead records.
type Counts struct {
	Pending int
	Dead    int
}

// Counter provides record totals for monitoring.
type Counter interface {
	Counts(ctx context.Context) (Counts, error)
}
