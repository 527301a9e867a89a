package mysql

import (
	"strings"
	"testing"
)

func TestSchema(t *testing.T) {
	schema, err := Schema("notification_outbox")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS notification_outbox",
		"UNIQUE KEY uq_dedupe_key (dedupe_key)",
		"INDEX idx_status_next_attempt (status, next_attempt_at)",
		"INDEX idx_status_sent_at (status, sent_at)",
		"INDEX idx_status_updated_at (status, updated_at)",
		"payload JSON NOT NULL",
		"claim_token CHAR(36) NULL",
	} {
		if !strings.Contains(schema, want) {
			t.Fatalf("expected schema to contain %q", want)
		}
	}
}

func TestSchemaRejectsInvalidName(t *testing.T) {
	if _, err := Schema("outbox; DROP TABLE users"); err == nil {
		t.Fatalf("expected invalid table name error")
	}
}
