package model

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intEvent int

const (
	intCreated intEvent = 1
	intViewed  intEvent = 4
)

func (e intEvent) String() string {
	switch e {
	case intCreated:
		return "Created"
	case intViewed:
		return "Viewed"
	}
	return "Unknown"
}

type strEvent string

const userCreated strEvent = "user.created"

func (e strEvent) String() string { return "UserCreated" }

type customValue int

func (customValue) String() string      { return "Custom" }
func (customValue) EventValue() string { return "custom-1" }

type floatEvent float64

func (floatEvent) String() string { return "Float" }

func TestCaseValue(t *testing.T) {
	v, err := CaseValue(intViewed)
	require.NoError(t, err)
	assert.Equal(t, "4", v)

	v, err = CaseValue(userCreated)
	require.NoError(t, err)
	assert.Equal(t, "user.created", v)

	v, err = CaseValue(customValue(1))
	require.NoError(t, err)
	assert.Equal(t, "custom-1", v)

	_, err = CaseValue(floatEvent(1.5))
	assert.True(t, errors.Is(err, ErrUnsupportedCase))

	_, err = CaseValue(nil)
	assert.True(t, errors.Is(err, ErrUnsupportedCase))
}

func TestTypeIDOf(t *testing.T) {
	id := TypeIDOf(intCreated)
	assert.Equal(t, TypeID("github.com/aarondfrancis/eventable/internal/model.intEvent"), id)
	assert.Equal(t, id, TypeOf(intCreated, intViewed).ID)
	assert.NotEqual(t, id, TypeIDOf(userCreated))
}

func TestTypeOfEnumeratesCases(t *testing.T) {
	typ := TypeOf(intCreated, intViewed)
	assert.True(t, typ.Enumerable())

	cases, err := typ.Cases()
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "Created", cases[0].String())
}

func TestTypeFuncLoaderError(t *testing.T) {
	typ := TypeFunc(func() ([]strEvent, error) {
		return nil, errors.New("catalog offline")
	})
	assert.Equal(t, TypeIDOf(userCreated), typ.ID)

	_, err := typ.Cases()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog offline")
}

func TestZeroTypeIsNotEnumerable(t *testing.T) {
	typ := Type{ID: "x.Y"}
	assert.False(t, typ.Enumerable())
	cases, err := typ.Cases()
	require.NoError(t, err)
	assert.Empty(t, cases)
}

func TestPruneConfigDefaults(t *testing.T) {
	c := NewPruneConfig()
	_, ok := c.Before()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Keep())
	assert.True(t, c.VaryOnData())
}

func TestPruneConfigOptions(t *testing.T) {
	cutoff := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c := NewPruneConfig(OlderThan(cutoff), KeepLast(5), VaryOnData(false))

	before, ok := c.Before()
	assert.True(t, ok)
	assert.Equal(t, cutoff, before)
	assert.Equal(t, 5, c.Keep())
	assert.False(t, c.VaryOnData())

	assert.Equal(t, 0, NewPruneConfig(KeepLast(-3)).Keep())
}

func TestParseUnit(t *testing.T) {
	for in, want := range map[string]Unit{
		"days": Day, "d": Day, "Week": Week, "months": Month, "hour": Hour, "y": Year, "seconds": Second, "min": Minute,
	} {
		got, err := ParseUnit(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseUnit("fortnight")
	assert.True(t, errors.Is(err, ErrInvalidUnit))
}

func TestUnitSub(t *testing.T) {
	base := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

	got, err := Day.Sub(base, 2)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 29, 12, 0, 0, 0, time.UTC), got)

	got, err = Week.Sub(base, 1)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 24, 12, 0, 0, 0, time.UTC), got)

	got, err = Hour.Sub(base, 3)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 31, 9, 0, 0, 0, time.UTC), got)

	_, err = Unit("eon").Sub(base, 1)
	assert.Error(t, err)
}

func TestEncodeData(t *testing.T) {
	raw, err := EncodeData(nil)
	require.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = EncodeData(map[string]any{"b": 1, "a": "x"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x","b":1}`, string(raw))

	a, err := EncodeData(json.RawMessage(`{"b": 2, "a": {"y": 1.50, "x": null}}`))
	require.NoError(t, err)
	b, err := EncodeData(map[string]any{"a": map[string]any{"x": nil, "y": json.Number("1.50")}, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"x":null,"y":1.50},"b":2}`, string(a))
	assert.Equal(t, string(a), string(b), "equal payloads encode to equal text")

	_, err = EncodeData(json.RawMessage(`{"a":`))
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = EncodeData(make(chan int))
	assert.True(t, errors.Is(err, ErrInvalidData))

	e := Event{ID: 7, Data: raw}
	m, err := e.DataMap()
	require.NoError(t, err)
	assert.Equal(t, "x", m["a"])
	assert.Equal(t, int64(7), e.EventOwnerID())
}
