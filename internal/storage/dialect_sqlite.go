package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// sqliteTimeLayout is fixed-width so stored timestamps sort lexically.
const sqliteTimeLayout = "2006-01-02 15:04:05.000000000"

// sqliteDialect targets SQLite with JSON stored as TEXT and timestamps as
// fixed-width UTC text.
type sqliteDialect struct{}

func (sqliteDialect) Name() string { return DriverSQLite }

func (sqliteDialect) Rebind(query string) string { return query }

func (sqliteDialect) QuoteIdent(name string) string { return quoteIdent(name) }

func (sqliteDialect) TimeArg(t time.Time) any { return t.UTC().Format(sqliteTimeLayout) }

func (sqliteDialect) DataArg(raw json.RawMessage) any {
	if raw == nil {
		return nil
	}
	return string(raw)
}

func (sqliteDialect) DataPlaceholder() string { return "?" }

func (sqliteDialect) DataEquals(column string, raw json.RawMessage) (string, []any) {
	return "json(" + column + ") = json(?)", []any{string(raw)}
}

// PathEquals compares one leaf through json_type/json_extract. json_extract
// alone maps true to 1 and null to a missing key, so the JSON type is checked
// as well.
func (sqliteDialect) PathEquals(column string, leaf Leaf) (string, []any, error) {
	path := sqlitePath(leaf.Path)
	typeExpr := "json_type(" + column + ", ?)"
	valueExpr := "json_extract(" + column + ", ?)"

	switch v := leaf.Value.(type) {
	case nil:
		return typeExpr + " = 'null'", []any{path}, nil
	case bool:
		return typeExpr + " = ?", []any{path, strconv.FormatBool(v)}, nil
	case string:
		return "(" + typeExpr + " = 'text' AND " + valueExpr + " = ?)", []any{path, path, v}, nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return "(" + typeExpr + " IN ('integer', 'real') AND " + valueExpr + " = ?)", []any{path, path, i}, nil
		}
		f, err := v.Float64()
		if err != nil {
			return "", nil, fmt.Errorf("storage: data predicate number %q: %w", v, err)
		}
		return "(" + typeExpr + " IN ('integer', 'real') AND " + valueExpr + " = ?)", []any{path, path, f}, nil
	case map[string]any, []any:
		encoded, err := leafJSON(v)
		if err != nil {
			return "", nil, err
		}
		return valueExpr + " = json(?)", []any{path, encoded}, nil
	default:
		return "", nil, fmt.Errorf("storage: unsupported data predicate value %T", leaf.Value)
	}
}

// labelEscaper escapes a key for use inside a double-quoted path label.
var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// sqlitePath renders $."a"."b"[0]; quoted labels allow dots and spaces in keys.
func sqlitePath(path []PathElem) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, p := range path {
		if p.IsIndex {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(p.Index))
			b.WriteByte(']')
			continue
		}
		b.WriteString(`."`)
		b.WriteString(labelEscaper.Replace(p.Key))
		b.WriteByte('"')
	}
	return b.String()
}
