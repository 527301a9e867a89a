package mysql

import "fmt"

const schemaTemplate = `CREATE TABLE IF NOT EXISTS %s (
	id CHAR(36) NOT NULL,
	organization_id VARCHAR(64) NOT NULL,
	order_id VARCHAR(64) NULL,
	type VARCHAR(64) NOT NULL,
	trigger_name VARCHAR(64) NOT NULL DEFAULT '',
	channel VARCHAR(32) NOT NULL,
	payload JSON NOT NULL,
	dedupe_key CHAR(64) NOT NULL,
	status SMALLINT NOT NULL DEFAULT 0,
	attempts INT NOT NULL DEFAULT 0,
	max_attempts INT NOT NULL DEFAULT 8,
	next_attempt_at DATETIME(6) NOT NULL,
	last_error VARCHAR(1024) NULL,
	claim_token CHAR(36) NULL,
	lease_until DATETIME(6) NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	sent_at DATETIME(6) NULL,
	PRIMARY KEY (id),
	UNIQUE KEY uq_dedupe_key (dedupe_key),
	INDEX idx_status_next_attempt (status, next_attempt_at),
	INDEX idx_status_sent_at (status, sent_at),
	INDEX idx_status_updated_at (status, updated_at),
	INDEX idx_order_id (order_id)
);`

// Schema returns the CREATE TABLE statement for an outbox table.
func Schema(table string) (string, error) {
	name, err := sanitizeTableName(table)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(schemaTemplate, name), nil
}
