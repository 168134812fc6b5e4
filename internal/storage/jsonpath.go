package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/aarondfrancis/eventable/internal/model"
)

// PathElem is one step of a JSON path: an object key or an array position.
type PathElem struct {
	Key     string
	Index   int
	IsIndex bool
}

func (p PathElem) String() string {
	if p.IsIndex {
		return strconv.Itoa(p.Index)
	}
	return p.Key
}

// Leaf is one flattened (path, value) pair. Value is nil, bool, string,
// json.Number, or an empty map/slice.
type Leaf struct {
	Path  []PathElem
	Value any
}

// DotPath renders the path as "a.b.0" for logs and errors.
func (l Leaf) DotPath() string {
	var b bytes.Buffer
	for i, p := range l.Path {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(p.String())
	}
	return b.String()
}

// Reference is a normalized payload filter.
type Reference struct {
	// Empty filters match every row.
	Empty bool
	// Scalar is set for non-structured references and compared against the
	// whole payload.
	Scalar json.RawMessage
	// Leaves holds the flattened structure, sorted by path.
	Leaves []Leaf
}

// NormalizeReference turns an arbitrary Go value into a payload filter.
// nil, empty objects and empty arrays are empty; scalars compare the whole
// payload; structures flatten to one leaf per scalar.
func NormalizeReference(data any) (Reference, error) {
	if data == nil {
		return Reference{Empty: true}, nil
	}
	raw, err := model.EncodeData(data)
	if err != nil {
		return Reference{}, err
	}
	if raw == nil {
		return Reference{Empty: true}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return Reference{}, fmt.Errorf("storage: decode data reference: %w", err)
	}

	switch node := tree.(type) {
	case nil:
		return Reference{Empty: true}, nil
	case map[string]any:
		if len(node) == 0 {
			return Reference{Empty: true}, nil
		}
	case []any:
		if len(node) == 0 {
			return Reference{Empty: true}, nil
		}
	default:
		return Reference{Scalar: raw}, nil
	}
	return Reference{Leaves: Flatten(tree)}, nil
}

// Flatten walks a decoded JSON tree and returns its leaves in path order.
// {"a":{"b":1}} becomes a.b = 1; empty nested objects and arrays are leaves.
func Flatten(tree any) []Leaf {
	var out []Leaf
	flatten(nil, tree, &out)
	return out
}

func flatten(prefix []PathElem, node any, out *[]Leaf) {
	switch n := node.(type) {
	case map[string]any:
		if len(n) == 0 && len(prefix) > 0 {
			*out = append(*out, Leaf{Path: prefix, Value: n})
			return
		}
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			flatten(extend(prefix, PathElem{Key: k}), n[k], out)
		}
	case []any:
		if len(n) == 0 && len(prefix) > 0 {
			*out = append(*out, Leaf{Path: prefix, Value: n})
			return
		}
		for i, v := range n {
			flatten(extend(prefix, PathElem{Index: i, IsIndex: true}), v, out)
		}
	default:
		*out = append(*out, Leaf{Path: prefix, Value: n})
	}
}

func extend(prefix []PathElem, elem PathElem) []PathElem {
	next := make([]PathElem, len(prefix)+1)
	copy(next, prefix)
	next[len(prefix)] = elem
	return next
}
