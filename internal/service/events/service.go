// Package events gives owning records their event capability: appending
// events, inspecting their own history, and filtering sets of owners by
// what has happened to them.
//
// Every operation resolves the case's alias through the registry first, so
// an unregistered event type fails at the call site instead of writing a
// mis-tagged row.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/morph"
	"github.com/aarondfrancis/eventable/internal/registry"
	"github.com/aarondfrancis/eventable/internal/storage"
	"github.com/aarondfrancis/eventable/internal/telemetry"
)

// Service encapsulates the attach capability over one event store.
type Service struct {
	db       *storage.DB
	registry *registry.Registry
	morphs   *morph.Map
	logger   *slog.Logger

	added metric.Int64Counter
}

// New creates a Service. A nil morph map reports owners by Go type name.
func New(db *storage.DB, reg *registry.Registry, morphs *morph.Map, logger *slog.Logger) *Service {
	if morphs == nil {
		morphs = morph.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	added, _ := telemetry.Meter("eventable/events").Int64Counter("eventable.events.added",
		metric.WithDescription("Events appended through the attach capability"),
	)
	return &Service{db: db, registry: reg, morphs: morphs, logger: logger, added: added}
}

// Key resolves c to the (alias, value) pair stored on its rows.
func (s *Service) Key(c model.Case) (model.EventKey, error) {
	alias, err := s.registry.ResolveAlias(c)
	if err != nil {
		return model.EventKey{}, err
	}
	value, err := model.CaseValue(c)
	if err != nil {
		return model.EventKey{}, err
	}
	return model.EventKey{Alias: alias, Value: value}, nil
}

// Ref resolves the owner reference of o through the morph map.
func (s *Service) Ref(o model.Owner) (model.OwnerRef, error) {
	return s.morphs.Ref(o)
}

// AddEvent appends one event for owner. Duplicates are allowed.
func (s *Service) AddEvent(ctx context.Context, owner model.Owner, c model.Case, data any) (model.Event, error) {
	key, err := s.Key(c)
	if err != nil {
		return model.Event{}, fmt.Errorf("events: add %s: %w", c, err)
	}
	ref, err := s.Ref(owner)
	if err != nil {
		return model.Event{}, fmt.Errorf("events: add %s: %w", c, err)
	}
	raw, err := model.EncodeData(data)
	if err != nil {
		return model.Event{}, fmt.Errorf("events: add %s: %w", c, err)
	}

	e, err := s.db.InsertEvent(ctx, storage.NewEvent{Key: key, Owner: ref, Data: raw})
	if err != nil {
		return model.Event{}, err
	}
	s.added.Add(ctx, 1, metric.WithAttributes(attribute.String("eventable.type_alias", key.Alias)))
	s.logger.Debug("events: added", "owner", ref.String(), "alias", key.Alias, "case", c.String(), "id", e.ID)
	return e, nil
}

// Events returns a query over owner's events for further scoping.
func (s *Service) Events(owner model.Owner) (*storage.Query, error) {
	ref, err := s.Ref(owner)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return s.db.Events().ForOwner(ref), nil
}

// OfCase returns a query over every owner's events of case c.
func (s *Service) OfCase(c model.Case) (*storage.Query, error) {
	key, err := s.Key(c)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return s.db.Events().OfKey(key), nil
}

// scoped returns owner's events, narrowed to c unless c is nil.
func (s *Service) scoped(owner model.Owner, c model.Case) (*storage.Query, error) {
	q, err := s.Events(owner)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return q, nil
	}
	key, err := s.Key(c)
	if err != nil {
		return nil, fmt.Errorf("events: %w", err)
	}
	return q.OfKey(key), nil
}

// HasEvent reports whether owner has an event of case c whose payload
// contains data. Empty data matches any payload.
func (s *Service) HasEvent(ctx context.Context, owner model.Owner, c model.Case, data any) (bool, error) {
	if c == nil {
		return false, fmt.Errorf("events: has event: %w: nil event case", registry.ErrNotRegistered)
	}
	q, err := s.scoped(owner, c)
	if err != nil {
		return false, err
	}
	return q.WhereData(data).Exists(ctx)
}

// EventCount counts owner's events, or only those of case c when c is non-nil.
func (s *Service) EventCount(ctx context.Context, owner model.Owner, c model.Case) (int64, error) {
	q, err := s.scoped(owner, c)
	if err != nil {
		return 0, err
	}
	return q.Count(ctx)
}

// LatestEvent returns owner's most recent event (of case c when non-nil).
// Equal timestamps are ordered by id. ok is false when there is none.
func (s *Service) LatestEvent(ctx context.Context, owner model.Owner, c model.Case) (e model.Event, ok bool, err error) {
	q, err := s.scoped(owner, c)
	if err != nil {
		return model.Event{}, false, err
	}
	return first(ctx, q.Latest())
}

// FirstEvent returns owner's earliest event (of case c when non-nil).
func (s *Service) FirstEvent(ctx context.Context, owner model.Owner, c model.Case) (e model.Event, ok bool, err error) {
	q, err := s.scoped(owner, c)
	if err != nil {
		return model.Event{}, false, err
	}
	return first(ctx, q.Oldest())
}

func first(ctx context.Context, q *storage.Query) (model.Event, bool, error) {
	e, err := q.First(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Event{}, false, nil
	}
	if err != nil {
		return model.Event{}, false, err
	}
	return e, true, nil
}
