// Package gormstore provides a notifybox.Store on top of gorm.
//
// It targets PostgreSQL in production, where claims use FOR UPDATE SKIP LOCKED,
// and SQLite for tests and single-process deployments, where the database
// serializes writers and row locking is skipped.
package gormstore
