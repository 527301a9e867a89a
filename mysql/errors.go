package mysql

import "errors"

var (
	// ErrDBRequired is returned when a nil *sql.DB is provided.
	ErrDBRequired = errors.New("notifybox mysql: db is required")
	// ErrExecutorRequired is returned when inserting through a nil executor.
	ErrExecutorRequired = errors.New("notifybox mysql: executor is required")
	// ErrTableNameRequired is returned when the table name is empty.
	ErrTableNameRequired = errors.New("notifybox mysql: table name is required")
	// ErrInvalidTableName is returned when a table or column name has disallowed characters.
	ErrInvalidTableName = errors.New("notifybox mysql: invalid table name")
	// ErrCleanupBeforeRequired is returned when cleanup cutoff is missing.
	ErrCleanupBeforeRequired = errors.New("notifybox mysql: cleanup before time is required")
	// ErrCleanupLimitInvalid is returned when cleanup limit is negative.
	ErrCleanupLimitInvalid = errors.New("notifybox mysql: cleanup limit must be non-negative")
	// ErrCleanupRetentionInvalid is returned when cleanup retention is not positive.
	ErrCleanupRetentionInvalid = errors.New("notifybox mysql: cleanup retention must be positive")
)
