package storage

import (
	"fmt"
	"time"

	"github.com/aarondfrancis/eventable/internal/model"
)

// HappenedAfter matches rows created strictly after t. The instant is
// normalized to UTC so equal instants in different zones match identically.
func (q *Query) HappenedAfter(t time.Time) *Query {
	return q.where(q.col("created_at")+" > ?", q.timeArg(t))
}

// HappenedBefore matches rows created strictly before t.
func (q *Query) HappenedBefore(t time.Time) *Query {
	return q.where(q.col("created_at")+" < ?", q.timeArg(t))
}

// HappenedBetween matches rows strictly between start and end.
func (q *Query) HappenedBetween(start, end time.Time) *Query {
	return q.HappenedAfter(start).HappenedBefore(end)
}

// HappenedToday matches the whole local day in tz, or in the store's
// default zone when tz is empty.
func (q *Query) HappenedToday(tz string) *Query {
	loc, err := q.zone(tz)
	if err != nil {
		return q.fail(err)
	}
	start := StartOfDay(q.db.Now().In(loc))
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return q.where(q.col("created_at")+" >= ? AND "+q.col("created_at")+" <= ?", q.timeArg(start), q.timeArg(end))
}

// HappenedThisWeek matches rows from Monday 00:00 local time in tz up to now.
func (q *Query) HappenedThisWeek(tz string) *Query {
	loc, err := q.zone(tz)
	if err != nil {
		return q.fail(err)
	}
	now := q.db.Now().In(loc)
	return q.sinceUntilNow(StartOfWeek(now), now)
}

// HappenedThisMonth matches rows from the first of the month in tz up to now.
func (q *Query) HappenedThisMonth(tz string) *Query {
	loc, err := q.zone(tz)
	if err != nil {
		return q.fail(err)
	}
	now := q.db.Now().In(loc)
	return q.sinceUntilNow(StartOfMonth(now), now)
}

func (q *Query) sinceUntilNow(start, now time.Time) *Query {
	return q.where(q.col("created_at")+" >= ? AND "+q.col("created_at")+" <= ?", q.timeArg(start), q.timeArg(now))
}

// HappenedInTheLast matches rows at or after now minus n units.
func (q *Query) HappenedInTheLast(n int, unit model.Unit) *Query {
	cutoff, err := unit.Sub(q.db.Now(), n)
	if err != nil {
		return q.fail(err)
	}
	return q.where(q.col("created_at")+" >= ?", q.timeArg(cutoff))
}

// HasntHappenedInTheLast matches rows strictly before now minus n units.
func (q *Query) HasntHappenedInTheLast(n int, unit model.Unit) *Query {
	cutoff, err := unit.Sub(q.db.Now(), n)
	if err != nil {
		return q.fail(err)
	}
	return q.where(q.col("created_at")+" < ?", q.timeArg(cutoff))
}

func (q *Query) zone(tz string) (*time.Location, error) {
	if tz == "" {
		return q.db.Location(), nil
	}
	return LoadZone(tz)
}

// LoadZone resolves an IANA zone name.
func LoadZone(name string) (*time.Location, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, name)
	}
	return loc, nil
}

// StartOfDay returns local midnight of t's day in t's zone.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfWeek returns Monday 00:00 of t's week in t's zone.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return StartOfDay(t).AddDate(0, 0, -offset)
}

// StartOfMonth returns 00:00 on the first of t's month in t's zone.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}
