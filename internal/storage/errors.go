package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a requested event does not exist.
	ErrNotFound = errors.New("storage: not found")

	// ErrInvalidTimezone is returned for an unknown IANA zone name.
	ErrInvalidTimezone = errors.New("storage: invalid timezone")

	// ErrMissingTable is returned when the events table (or its prune log)
	// does not exist, usually because migrations were not run.
	ErrMissingTable = errors.New("storage: table does not exist (run migrations)")
)

// isUndefinedTable reports whether err is the backend's "no such table" error.
func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01" // undefined_table
	}
	// modernc reports SQLITE_ERROR with the message only.
	return err != nil && strings.Contains(err.Error(), "no such table")
}

// classify wraps backend errors that have a sentinel. Other errors are
// returned unchanged; store errors are never retried.
func classify(err error) error {
	if isUndefinedTable(err) {
		return fmt.Errorf("%w: %w", ErrMissingTable, err)
	}
	return err
}
