package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/velmie/notifybox"
)

// Claim implements notifybox.Store.
//
// Due rows are locked with SKIP LOCKED so concurrent drains select disjoint sets,
// then stamped with the claim token and lease before the transaction commits.
func (s *Store) Claim(ctx context.Context, opts notifybox.ClaimOptions) ([]notifybox.Record, error) {
	if opts.Limit <= 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("notifybox mysql: begin tx failed: %w", err)
	}

	records, err := s.selectDue(ctx, tx, opts)
	if err != nil {
		return nil, rollback(tx, err)
	}
	if len(records) == 0 {
		return nil, rollback(tx, nil)
	}

	args := make([]any, 0, len(records)+2)
	args = append(args, opts.Token, opts.LeaseUntil.UTC())
	for i := range records {
		args = append(args, records[i].ID)
		records[i].ClaimToken = opts.Token
		records[i].LeaseUntil = opts.LeaseUntil
	}
	if _, err := tx.ExecContext(ctx, buildClaimQuery(s.table, len(records)), args...); err != nil {
		return nil, rollback(tx, fmt.Errorf("notifybox mysql: claim update failed: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("notifybox mysql: claim commit failed: %w", err)
	}

	return records, nil
}

func (s *Store) selectDue(ctx context.Context, tx *sql.Tx, opts notifybox.ClaimOptions) ([]notifybox.Record, error) {
	now := opts.Now.UTC()
	rows, err := tx.QueryContext(ctx, s.queries.selectDue, notifybox.StatusPending, now, now, opts.Limit)
	if err != nil {
		return nil, fmt.Errorf("notifybox mysql: select failed: %w", err)
	}
	defer rows.Close()

	records := make([]notifybox.Record, 0, opts.Limit)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notifybox mysql: rows failed: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (notifybox.Record, error) {
	var (
		record     notifybox.Record
		orderID    sql.NullString
		typ        string
		channel    string
		payload    []byte
		lastError  sql.NullString
		claimToken sql.NullString
		leaseUntil sql.NullTime
		sentAt     sql.NullTime
	)

	if err := row.Scan(
		&record.ID,
		&record.OrganizationID,
		&orderID,
		&typ,
		&record.Trigger,
		&channel,
		&payload,
		&record.DedupeKey,
		&record.Status,
		&record.Attempts,
		&record.MaxAttempts,
		&record.NextAttemptAt,
		&lastError,
		&claimToken,
		&leaseUntil,
		&record.CreatedAt,
		&record.UpdatedAt,
		&sentAt,
	); err != nil {
		return notifybox.Record{}, fmt.Errorf("notifybox mysql: scan failed: %w", err)
	}

	record.OrderID = orderID.String
	record.Type = notifybox.Type(typ)
	record.Channel = notifybox.Channel(channel)
	record.Payload = payload
	record.LastError = lastError.String
	record.ClaimToken = claimToken.String
	record.LeaseUntil = leaseUntil.Time
	record.SentAt = sentAt.Time

	return record, nil
}
