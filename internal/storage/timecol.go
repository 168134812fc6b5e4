package storage

import (
	"fmt"
	"time"
)

// sqlTime scans created_at/updated_at from either backend: pgx yields
// time.Time, SQLite yields the fixed-width text written by TimeArg (or
// time.Time when the driver parses DATETIME columns itself).
type sqlTime struct {
	t *time.Time
}

var timeLayouts = []string{
	sqliteTimeLayout,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
}

func (s sqlTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.t = v.UTC()
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case nil:
		*s.t = time.Time{}
		return nil
	default:
		return fmt.Errorf("storage: cannot scan %T into time", src)
	}
}

func (s sqlTime) parse(v string) error {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			*s.t = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("storage: unrecognized timestamp %q", v)
}
