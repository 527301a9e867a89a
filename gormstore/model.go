package gormstore

import (
	"encoding/json"
	"time"

	"github.com/velmie/notifybox"
)

// DefaultTable is the table used when no name is configured.
const DefaultTable = "notification_outbox"

// Model is the gorm mapping of a notifybox.Record.
type Model struct {
	ID             string     `gorm:"column:id;type:char(36);primaryKey"`
	OrganizationID string     `gorm:"column:organization_id;size:64;not null"`
	OrderID        *string    `gorm:"column:order_id;size:64;index"`
	Type           string     `gorm:"column:type;size:64;not null"`
	Trigger        string     `gorm:"column:trigger_name;size:64;not null;default:''"`
	Channel        string     `gorm:"column:channel;size:32;not null"`
	Payload        string     `gorm:"column:payload;type:jsonb;not null"`
	DedupeKey      string     `gorm:"column:dedupe_key;size:64;not null;uniqueIndex:uq_dedupe_key"`
	Status         int16      `gorm:"column:status;not null;default:0;index:idx_status_next_attempt,priority:1;index:idx_status_sent_at,priority:1;index:idx_status_updated_at,priority:1"`
	Attempts       int        `gorm:"column:attempts;not null;default:0"`
	MaxAttempts    int        `gorm:"column:max_attempts;not null;default:8"`
	NextAttemptAt  time.Time  `gorm:"column:next_attempt_at;not null;index:idx_status_next_attempt,priority:2"`
	LastError      *string    `gorm:"column:last_error;size:1024"`
	ClaimToken     *string    `gorm:"column:claim_token;size:36"`
	LeaseUntil     *time.Time `gorm:"column:lease_until"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time  `gorm:"column:updated_at;not null;index:idx_status_updated_at,priority:2"`
	SentAt         *time.Time `gorm:"column:sent_at;index:idx_status_sent_at,priority:2"`
}

// TableName implements gorm's tabler for the default table.
func (Model) TableName() string {
	return DefaultTable
}

func toModel(record notifybox.Record) Model {
	return Model{
		ID:             record.ID.String(),
		OrganizationID: record.OrganizationID,
		OrderID:        optionalString(record.OrderID),
		Type:           string(record.Type),
		Trigger:        record.Trigger,
		Channel:        string(record.Channel),
		Payload:        string(record.Payload),
		DedupeKey:      record.DedupeKey,
		Status:         int16(record.Status),
		Attempts:       record.Attempts,
		MaxAttempts:    record.MaxAttempts,
		NextAttemptAt:  record.NextAttemptAt.UTC(),
		LastError:      optionalString(record.LastError),
		CreatedAt:      record.CreatedAt.UTC(),
		UpdatedAt:      record.UpdatedAt.UTC(),
	}
}

func (m Model) record() (notifybox.Record, error) {
	id, err := notifybox.ParseID(m.ID)
	if err != nil {
		return notifybox.Record{}, err
	}

	record := notifybox.Record{
		ID:             id,
		OrganizationID: m.OrganizationID,
		OrderID:        deref(m.OrderID),
		Type:           notifybox.Type(m.Type),
		Trigger:        m.Trigger,
		Channel:        notifybox.Channel(m.Channel),
		Payload:        json.RawMessage(m.Payload),
		DedupeKey:      m.DedupeKey,
		Attempts:       m.Attempts,
		MaxAttempts:    m.MaxAttempts,
		NextAttemptAt:  m.NextAttemptAt.UTC(),
		LastError:      deref(m.LastError),
		Status:         notifybox.Status(m.Status),
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
		ClaimToken:     deref(m.ClaimToken),
	}
	if m.LeaseUntil != nil {
		record.LeaseUntil = m.LeaseUntil.UTC()
	}
	if m.SentAt != nil {
		record.SentAt = m.SentAt.UTC()
	}

	return record, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}

	return *s
}
