package registry

import "github.com/aarondfrancis/eventable/internal/model"

var defaultRegistry = New(nil)

// Default returns the process-wide registry used when none is injected.
func Default() *Registry {
	return defaultRegistry
}

// Register adds a runtime registration to the default registry.
func Register(alias string, t model.Type) {
	defaultRegistry.Register(alias, t)
}

// Clear resets the default registry's runtime registrations.
func Clear() {
	defaultRegistry.Clear()
}
