package eventable

import (
	"time"

	"github.com/aarondfrancis/eventable/internal/model"
	"github.com/aarondfrancis/eventable/internal/morph"
	"github.com/aarondfrancis/eventable/internal/registry"
	"github.com/aarondfrancis/eventable/internal/service/events"
	"github.com/aarondfrancis/eventable/internal/service/prune"
	"github.com/aarondfrancis/eventable/internal/storage"
)

// Event cases and families.
type (
	// Case is one value of an enumerated event type: a named integer or
	// string type whose String method reports the case name.
	Case = model.Case
	// Pruneable cases declare a retention policy.
	Pruneable = model.Pruneable
	// Valuer lets a case choose its own stored type_value.
	Valuer = model.Valuer
	// TypeID is "<package path>.<type name>" of a case type.
	TypeID = model.TypeID
	// Type describes a registered family and how to enumerate its cases.
	Type = model.Type
)

// Rows and owners.
type (
	Event       = model.Event
	EventKey    = model.EventKey
	Owner       = model.Owner
	KindedOwner = model.KindedOwner
	OwnerRef    = model.OwnerRef
	Unit        = model.Unit
)

// Retention.
type (
	PruneConfig = model.PruneConfig
	PruneOption = model.PruneOption
	PruneReport = prune.Report
	PruneResult = prune.CaseResult
	PruneRun    = storage.PruneRun
)

// Infrastructure.
type (
	Registry   = registry.Registry
	MorphMap   = morph.Map
	Store      = storage.DB
	Query      = storage.Query
	OwnerQuery = events.OwnerQuery
)

const (
	Second = model.Second
	Minute = model.Minute
	Hour   = model.Hour
	Day    = model.Day
	Week   = model.Week
	Month  = model.Month
	Year   = model.Year
)

var (
	ErrNotRegistered    = registry.ErrNotRegistered
	ErrConflict         = registry.ErrConflict
	ErrUnsupportedCase  = model.ErrUnsupportedCase
	ErrInvalidData      = model.ErrInvalidData
	ErrInvalidUnit      = model.ErrInvalidUnit
	ErrNotFound         = storage.ErrNotFound
	ErrInvalidTimezone  = storage.ErrInvalidTimezone
	ErrMissingTable     = storage.ErrMissingTable
	ErrNoPruneableTypes = prune.ErrNoPruneableTypes
)

// TypeOf describes the family of C with a fixed set of cases.
func TypeOf[C Case](cases ...C) Type { return model.TypeOf(cases...) }

// TypeFunc describes the family of C whose cases are loaded at run time.
func TypeFunc[C Case](loader func() ([]C, error)) Type { return model.TypeFunc(loader) }

// NewPruneConfig builds a retention policy. Without options every row of the
// case is deletable; VaryOnData defaults to true.
func NewPruneConfig(opts ...PruneOption) *PruneConfig { return model.NewPruneConfig(opts...) }

// KeepLast retains the n most recent rows per owner (and payload, when
// varying on data).
func KeepLast(n int) PruneOption { return model.KeepLast(n) }

// VaryOnData controls whether each payload variant keeps its own rows.
func VaryOnData(vary bool) PruneOption { return model.VaryOnData(vary) }

// OlderThan limits pruning to rows created before t.
func OlderThan(t time.Time) PruneOption { return model.OlderThan(t) }

// ParseUnit accepts singular, plural and short unit names.
func ParseUnit(s string) (Unit, error) { return model.ParseUnit(s) }

// NewRegistry creates an isolated registry seeded with a static catalog.
func NewRegistry(static map[string]TypeID) *Registry { return registry.New(static) }

// DefaultRegistry returns the process-wide registry used when WithRegistry
// is not given.
func DefaultRegistry() *Registry { return registry.Default() }

// NewMorphMap creates an empty owner kind table.
func NewMorphMap() *MorphMap { return morph.New() }
