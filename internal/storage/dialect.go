package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Driver names accepted by Open.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Dialect isolates the SQL that differs between backends: placeholders,
// identifier quoting, timestamp encoding and JSON path predicates.
// Queries are written with '?' placeholders and rebound per dialect.
type Dialect interface {
	Name() string
	Rebind(query string) string
	QuoteIdent(name string) string
	TimeArg(t time.Time) any
	DataArg(raw json.RawMessage) any
	// DataPlaceholder is the bind expression for a payload written by DataArg.
	DataPlaceholder() string
	// DataEquals compares the whole payload with a serialized scalar.
	DataEquals(column string, raw json.RawMessage) (string, []any)
	// PathEquals compares one leaf of the payload.
	PathEquals(column string, leaf Leaf) (string, []any, error)
}

// DialectFor returns the dialect for a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverPostgres:
		return postgresDialect{}, nil
	case DriverSQLite:
		return sqliteDialect{}, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", driver)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// leafJSON encodes a flattened leaf value for JSON comparisons.
func leafJSON(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "null", nil
	case json.Number:
		return x.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("storage: encode data predicate: %w", err)
	}
	return string(b), nil
}
