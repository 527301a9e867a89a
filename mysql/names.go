package mysql

import (
	"fmt"
	"strings"
)

// sanitizeTableName accepts table or schema.table made of [A-Za-z0-9_].
func sanitizeTableName(name string) (string, error) {
	if name == "" {
		return "", ErrTableNameRequired
	}
	for _, part := range strings.Split(name, ".") {
		if !isIdentifier(part) {
			return "", fmt.Errorf("%w: %s", ErrInvalidTableName, name)
		}
	}

	return name, nil
}

func sanitizeColumnName(name string) (string, error) {
	if !isIdentifier(name) {
		return "", fmt.Errorf("%w: column %q", ErrInvalidTableName, name)
	}

	return name, nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r == '_' || (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			continue
		}

		return false
	}

	return true
}
