package mysql

import "fmt"

const recordColumns = "id, organization_id, order_id, type, trigger_name, channel, payload, dedupe_key, " +
	"status, attempts, max_attempts, next_attempt_at, last_error, claim_token, lease_until, " +
	"created_at, updated_at, sent_at"

type queries struct {
	insert     string
	selectDue  string
	markSent   string
	markFailed string
	counts     string
}

func newQueries(table string) queries {
	return queries{
		insert: fmt.Sprintf(
			"INSERT INTO %s (id, organization_id, order_id, type, trigger_name, channel, payload, dedupe_key, "+
				"status, attempts, max_attempts, next_attempt_at, created_at, updated_at) "+
				"VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) "+
				"ON DUPLICATE KEY UPDATE id = id",
			table,
		),
		selectDue: fmt.Sprintf(
			"SELECT %s FROM %s "+
				"WHERE status = ? AND next_attempt_at <= ? AND (lease_until IS NULL OR lease_until <= ?) "+
				"ORDER BY next_attempt_at ASC, id ASC LIMIT ? FOR UPDATE SKIP LOCKED",
			recordColumns,
			table,
		),
		markSent: fmt.Sprintf(
			"UPDATE %s SET status = ?, sent_at = ?, updated_at = ?, last_error = NULL, "+
				"claim_token = NULL, lease_until = NULL "+
				"WHERE id = ? AND claim_token = ? AND status = ?",
			table,
		),
		markFailed: fmt.Sprintf(
			"UPDATE %s SET status = ?, attempts = ?, next_attempt_at = ?, last_error = ?, updated_at = ?, "+
				"claim_token = NULL, lease_until = NULL "+
				"WHERE id = ? AND claim_token = ? AND status = ?",
			table,
		),
		counts: fmt.Sprintf("SELECT status, COUNT(*) FROM %s WHERE status IN (?, ?) GROUP BY status", table),
	}
}

func buildClaimQuery(table string, count int) string {
	return fmt.Sprintf("UPDATE %s SET claim_token = ?, lease_until = ? WHERE id IN (%s)", table, makePlaceholders(count))
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}

	buf := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '?')
	}

	return string(buf)
}
