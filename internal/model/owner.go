package model

import "fmt"

// Owner is any record events can be attached to.
type Owner interface {
	EventOwnerID() int64
}

// KindedOwner reports its own discriminator instead of relying on the morph map.
type KindedOwner interface {
	Owner
	EventOwnerType() string
}

// OwnerRef is the (id, kind) pair that identifies an owning record. Two kinds
// may share an id, so the pair is the key.
type OwnerRef struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// EventOwnerID implements Owner.
func (r OwnerRef) EventOwnerID() int64 { return r.ID }

// EventOwnerType implements KindedOwner.
func (r OwnerRef) EventOwnerType() string { return r.Type }

func (r OwnerRef) String() string {
	return fmt.Sprintf("%s#%d", r.Type, r.ID)
}

// EventKey selects one case of one registered type in the events table.
type EventKey struct {
	Alias string
	Value string
}

func (k EventKey) String() string {
	return k.Alias + ":" + k.Value
}
