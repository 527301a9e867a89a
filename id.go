package notifybox

import "github.com/google/uuid"

// ID is a UUID v7 record identifier.
type ID = uuid.UUID

// IDGenerator creates new identifiers.
type IDGenerator interface {
	// New returns a new identifier.
	New() (ID, error)
}

// UUIDv7Generator produces time-ordered UUID v7 identifiers.
type UUIDv7Generator struct{}

// New creates a new UUID v7 identifier.
func (UUIDv7Generator) New() (ID, error) {
	return uuid.NewV7()
}

// ParseID parses a canonical UUID string.
func ParseID(value string) (ID, error) {
	return uuid.Parse(value)
}
