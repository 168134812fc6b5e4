package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidData is returned when an event payload cannot be serialized.
var ErrInvalidData = errors.New("model: invalid event data")

// Event is one persisted row of the events table.
// Rows are append-only: never updated, deleted only by pruning.
type Event struct {
	ID        int64           `json:"id"`
	TypeAlias string          `json:"type_alias"`
	TypeValue string          `json:"type_value"`
	Data      json.RawMessage `json:"data,omitempty"` // nil when the column is NULL
	OwnerID   int64           `json:"owner_id"`
	OwnerType string          `json:"owner_type"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Owner returns the polymorphic reference this event belongs to.
func (e Event) Owner() OwnerRef {
	return OwnerRef{ID: e.OwnerID, Type: e.OwnerType}
}

// EventOwnerID lets events themselves own events.
func (e Event) EventOwnerID() int64 {
	return e.ID
}

// HasData reports whether the payload column is non-NULL.
func (e Event) HasData() bool {
	return e.Data != nil
}

// Decode unmarshals the payload into v. A NULL payload leaves v untouched.
func (e Event) Decode(v any) error {
	if e.Data == nil {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("model: decode event %d data: %w", e.ID, err)
	}
	return nil
}

// DataMap decodes an object payload. It returns nil for a NULL payload.
func (e Event) DataMap() (map[string]any, error) {
	if e.Data == nil {
		return nil, nil
	}
	var m map[string]any
	dec := json.NewDecoder(bytes.NewReader(e.Data))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("model: decode event %d data: %w", e.ID, err)
	}
	return m, nil
}

// EncodeData serializes an event payload in canonical form: object keys
// sorted and insignificant whitespace removed, so equal payloads store equal
// text. nil encodes to SQL NULL; anything json.Marshal rejects (channels,
// funcs) fails with ErrInvalidData.
func EncodeData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	var b []byte
	if raw, ok := data.(json.RawMessage); ok {
		if raw == nil {
			return nil, nil
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: raw message is not valid JSON", ErrInvalidData)
		}
		b = raw
	} else {
		var err error
		if b, err = json.Marshal(data); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	}
	return canonical(b)
}

// canonical re-encodes b through a generic tree. Numbers keep their literal
// text.
func canonical(b []byte) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	out, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	return out, nil
}
