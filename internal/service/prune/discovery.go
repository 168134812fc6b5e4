// Package prune discovers event types that declare retention policies and
// applies those policies to the event store.
package prune

import (
	"log/slog"

	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/registry"
)

// Target is one registered event type family eligible for pruning.
type Target struct {
	Alias string
	Type  model.Type
}

// Skip records a catalog entry that could not be pruned and why.
type Skip struct {
	Alias  string
	TypeID model.TypeID
	Reason string
}

// Discovery filters the registry down to families whose cases can declare a
// retention policy.
type Discovery struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// NewDiscovery creates a Discovery over reg.
func NewDiscovery(reg *registry.Registry, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{registry: reg, logger: logger}
}

// Discover returns the pruneable families in alias order, never nil.
// Catalog entries naming a type that was never declared to the registry are
// returned as skips with a warning; families that are not enumerable or whose
// cases do not implement model.Pruneable are ignored silently.
func (d *Discovery) Discover() ([]Target, []Skip) {
	targets := []Target{}
	var skipped []Skip

	all := d.registry.All()
	for _, alias := range d.registry.Aliases() {
		id := all[alias]
		t, ok := d.registry.Lookup(id)
		if !ok {
			d.logger.Warn("prune: event type not declared, skipping", "alias", alias, "type", string(id))
			skipped = append(skipped, Skip{Alias: alias, TypeID: id, Reason: "does not exist"})
			continue
		}
		if !t.Enumerable() || !t.Pruneable() {
			continue
		}
		targets = append(targets, Target{Alias: alias, Type: t})
	}
	return targets, skipped
}
