package model

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
)

// ErrUnsupportedCase is returned when a case is not backed by an integer or string.
var ErrUnsupportedCase = errors.New("model: unsupported event case")

// TypeID identifies an event type family by package path and type name,
// e.g. "github.com/acme/shop/orders.OrderEvent".
type TypeID string

// Case is one value of an enumerated event type. Cases are named integer or
// string types; String reports the case name ("Viewed").
type Case interface {
	fmt.Stringer
}

// Valuer lets a case choose its own persisted type_value.
type Valuer interface {
	EventValue() string
}

// Pruneable cases declare a retention policy. A nil config means the case is
// never pruned.
type Pruneable interface {
	Case
	Prune() *PruneConfig
}

// TypeIDOf returns the identifier of the family c belongs to.
func TypeIDOf(c Case) TypeID {
	if c == nil {
		return ""
	}
	return typeIDFor(reflect.TypeOf(c))
}

func typeIDFor(t reflect.Type) TypeID {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return TypeID(t.String())
	}
	return TypeID(t.PkgPath() + "." + t.Name())
}

// CaseValue returns the scalar stored in type_value for c.
func CaseValue(c Case) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: nil case", ErrUnsupportedCase)
	}
	if v, ok := c.(Valuer); ok {
		return v.EventValue(), nil
	}
	rv := reflect.ValueOf(c)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return "", fmt.Errorf("%w: nil %s", ErrUnsupportedCase, rv.Type())
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.String:
		return rv.String(), nil
	default:
		return "", fmt.Errorf("%w: %s is backed by %s", ErrUnsupportedCase, rv.Type(), rv.Kind())
	}
}

// Type describes a registered event type family and how to enumerate its cases.
type Type struct {
	ID        TypeID
	load      func() ([]Case, error)
	pruneable bool
}

// TypeOf describes the family of C with a fixed set of cases.
func TypeOf[C Case](cases ...C) Type {
	all := make([]Case, len(cases))
	for i, c := range cases {
		all[i] = c
	}
	return Type{
		ID:        typeIDFor(reflect.TypeFor[C]()),
		load:      func() ([]Case, error) { return all, nil },
		pruneable: implementsPruneable[C](),
	}
}

// TypeFunc describes the family of C whose cases are produced by loader.
// Loader errors surface when the cases are enumerated.
func TypeFunc[C Case](loader func() ([]C, error)) Type {
	return Type{
		ID:        typeIDFor(reflect.TypeFor[C]()),
		pruneable: implementsPruneable[C](),
		load: func() ([]Case, error) {
			cases, err := loader()
			if err != nil {
				return nil, err
			}
			all := make([]Case, len(cases))
			for i, c := range cases {
				all[i] = c
			}
			return all, nil
		},
	}
}

// Cases enumerates the family's cases. A type without a loader has none.
func (t Type) Cases() ([]Case, error) {
	if t.load == nil {
		return nil, nil
	}
	cases, err := t.load()
	if err != nil {
		return nil, fmt.Errorf("model: load cases of %s: %w", t.ID, err)
	}
	return cases, nil
}

// Pruneable reports whether the family's cases implement Pruneable.
func (t Type) Pruneable() bool {
	return t.pruneable
}

func implementsPruneable[C Case]() bool {
	return reflect.TypeFor[C]().Implements(reflect.TypeFor[Pruneable]())
}

// Enumerable reports whether the family exposes a case loader.
func (t Type) Enumerable() bool {
	return t.load != nil
}
