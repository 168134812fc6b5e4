package storage

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// postgresDialect targets PostgreSQL with a jsonb data column and a
// timestamptz created_at.
type postgresDialect struct{}

func (postgresDialect) Name() string { return DriverPostgres }

func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 16)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func (postgresDialect) QuoteIdent(name string) string { return quoteIdent(name) }

func (postgresDialect) TimeArg(t time.Time) any { return t.UTC() }

func (postgresDialect) DataArg(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

// jsonbParam binds JSON text as text first so the driver never re-encodes it.
const jsonbParam = "CAST(CAST(? AS text) AS jsonb)"

func (postgresDialect) DataPlaceholder() string { return jsonbParam }

func (postgresDialect) DataEquals(column string, raw json.RawMessage) (string, []any) {
	return column + " = " + jsonbParam, []any{string(raw)}
}

// PathEquals renders jsonb_extract_path(col, 'a', 'b') = '<json>'::jsonb.
// Array positions are passed as their decimal text, which jsonb accepts.
func (postgresDialect) PathEquals(column string, leaf Leaf) (string, []any, error) {
	value, err := leafJSON(leaf.Value)
	if err != nil {
		return "", nil, err
	}
	args := make([]any, 0, len(leaf.Path)+1)
	marks := make([]string, 0, len(leaf.Path))
	for _, p := range leaf.Path {
		args = append(args, p.String())
		marks = append(marks, "CAST(? AS text)")
	}
	args = append(args, value)
	return "jsonb_extract_path(" + column + ", " + strings.Join(marks, ", ") + ") = " + jsonbParam, args, nil
}
