package notifybox

import (
	"encoding/json"
	"time"
)

// DefaultMaxAttempts is the retry budget assigned to new records.
const DefaultMaxAttempts = 8

// Record is one stored delivery of a logical notification to a single channel.
type Record struct {
	ID             ID
	OrganizationID string
	// OrderID is empty for notifications not tied to an order.
	OrderID string
	Type    Type
	// Trigger routes the audience (for example "admin_only"); it does not affect delivery.
	Trigger       string
	Channel       Channel
	Payload       json.RawMessage
	DedupeKey     string
	Attempts      int
	MaxAttempts   int
	NextAttemptAt time.Time
	LastError     string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SentAt        time.Time
	// ClaimToken and LeaseUntil are set while a drain holds the record.
	ClaimToken string
	LeaseUntil time.Time
}

// Lease identifies a record held by a drain claim.
type Lease struct {
	ID    ID
	Token string
}

// Lease returns the claim reference used to update the record.
func (r Record) Lease() Lease {
	return Lease{ID: r.ID, Token: r.ClaimToken}
}

// FailureUpdate is the retry state written after a failed delivery attempt.
type FailureUpdate struct {
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	// Status is StatusPending to re-arm the record or StatusDead to dead-letter it.
	Status Status
	At     time.Time
}
