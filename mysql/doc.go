// Package mysql provides a MySQL 8.0+ notifybox.Store.
//
// Claims use:
//   - READ COMMITTED isolation (to avoid gap locks)
//   - SELECT ... FOR UPDATE SKIP LOCKED over (status, next_attempt_at)
//   - a claim token and lease written before the transaction commits
//
// Deliveries happen outside the claim transaction; results are written back with
// updates conditioned on the claim token. See Schema for the table layout,
// OrderFlagger for the order hook and CleanupMaintainer for periodic row cleanup.
//
// Open the database with parseTime=true. Insert relies on MySQL reporting zero
// affected rows for a no-op ON DUPLICATE KEY UPDATE, so do not set clientFoundRows.
package mysql
