package eventable

import (
	"log/slog"
	"time"

	"github.com/aarondfrancis/eventable/internal/config"
	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/morph"
	"github.com/aarondfrancis/eventable/internal/registry"
)

// Option configures an App.
type Option func(*resolvedOptions)

type registration struct {
	alias string
	typ   model.Type
}

type morphEntry struct {
	kind   string
	sample any
}

// resolvedOptions holds every override after applying defaults.
// Unexported; callers use the With* functions.
type resolvedOptions struct {
	logger        *slog.Logger
	version       string
	databaseURL   string
	driver        string
	table         string
	timezone      string
	morphAlias    string
	autoMigrate   *bool
	registerMorph *bool
	skipDotenv    bool
	clock         func() time.Time
	registry      *registry.Registry
	morphs        *morph.Map
	declared      []model.Type
	registrations []registration
	morphEntries  []morphEntry
}

func (o resolvedOptions) apply(cfg *config.Config) {
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.driver != "" {
		cfg.Driver = o.driver
	}
	if o.table != "" {
		cfg.Table = o.table
	}
	if o.timezone != "" {
		cfg.Timezone = o.timezone
	}
	if o.morphAlias != "" {
		cfg.MorphAlias = o.morphAlias
	}
	if o.autoMigrate != nil {
		cfg.AutoMigrate = *o.autoMigrate
	}
	if o.registerMorph != nil {
		cfg.RegisterMorphMap = *o.registerMorph
	}
}

// WithLogger sets the structured logger for the App.
// If not set, the default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs and telemetry.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithDatabaseURL overrides DATABASE_URL.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithDriver overrides EVENTABLE_DRIVER ("postgres" or "sqlite").
func WithDriver(driver string) Option {
	return func(o *resolvedOptions) { o.driver = driver }
}

// WithTable overrides the events table name (EVENTABLE_TABLE).
func WithTable(table string) Option {
	return func(o *resolvedOptions) { o.table = table }
}

// WithTimezone overrides the default zone of the today/week/month scopes.
func WithTimezone(name string) Option {
	return func(o *resolvedOptions) { o.timezone = name }
}

// WithMorphAlias overrides the discriminator recorded for event rows that own
// other events.
func WithMorphAlias(alias string) Option {
	return func(o *resolvedOptions) { o.morphAlias = alias }
}

// WithRegisterMorphMap toggles registering the event row discriminator.
func WithRegisterMorphMap(on bool) Option {
	return func(o *resolvedOptions) { o.registerMorph = &on }
}

// WithAutoMigrate toggles running the embedded migrations in New.
func WithAutoMigrate(on bool) Option {
	return func(o *resolvedOptions) { o.autoMigrate = &on }
}

// WithoutDotenv stops New from reading a .env file.
func WithoutDotenv() Option {
	return func(o *resolvedOptions) { o.skipDotenv = true }
}

// WithClock replaces time.Now for created_at stamps and relative scopes.
func WithClock(now func() time.Time) Option {
	return func(o *resolvedOptions) { o.clock = now }
}

// WithRegistry uses reg instead of the process-wide default registry.
func WithRegistry(reg *Registry) Option {
	return func(o *resolvedOptions) { o.registry = reg }
}

// WithMorphMap uses m as the owner kind table.
func WithMorphMap(m *MorphMap) Option {
	return func(o *resolvedOptions) { o.morphs = m }
}

// WithType registers t under alias at runtime.
// Multiple types may be registered; the last registration of an alias wins.
func WithType(alias string, t Type) Option {
	return func(o *resolvedOptions) {
		o.registrations = append(o.registrations, registration{alias: alias, typ: t})
	}
}

// WithTypes declares event types named by the catalog (EVENTABLE_CATALOG or
// EVENTABLE_EVENT_TYPES) so their cases can be enumerated for pruning.
func WithTypes(types ...Type) Option {
	return func(o *resolvedOptions) { o.declared = append(o.declared, types...) }
}

// WithOwnerKind maps the Go type of sample to kind in the owner_type column.
func WithOwnerKind(kind string, sample any) Option {
	return func(o *resolvedOptions) {
		o.morphEntries = append(o.morphEntries, morphEntry{kind: kind, sample: sample})
	}
}
