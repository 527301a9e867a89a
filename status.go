package notifybox

// Status represents the lifecycle state of an outbox record.
type Status int16

const (
	// StatusPending indicates the record is waiting for delivery.
	StatusPending Status = 0
	// StatusSent indicates the record was delivered successfully.
	StatusSent Status = 1
	// StatusDead indicates the record exhausted its retry budget or failed permanently.
	StatusDead Status = -1
)

// Terminal reports whether no further transition can leave the status.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusDead
}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSent:
		return "sent"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}
