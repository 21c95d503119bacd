package ir

import (
	"fmt"
	"sort"
)

// Provider is the capability handed to the generators by the front-end. It
// answers every query the core needs: reachable items, identity lookup,
// layout, attributes, special members, public paths and documentation.
//
// Providers are request-scoped and must answer deterministically for the
// duration of one run.
type Provider interface {
	// Root returns the identity of the root namespace/module of the crate
	// being bound.
	Root() DefID

	// Items returns every item reachable from the root, in source order.
	Items() []Item

	// Item resolves a definition by identity.
	Item(DefID) (Item, bool)

	// Children returns the visible children of a namespace, module or
	// record, in source order.
	Children(DefID) []DefID
}

// Snapshot is the standard in-memory Provider: a flat item table plus the
// root identity. Front-ends construct one per run (typically by decoding the
// serialized IR) and hand it to the pipeline.
type Snapshot struct {
	RootID   DefID
	ItemList []Item

	byID map[DefID]Item
}

// NewSnapshot builds a Snapshot and indexes it. Duplicate identities are a
// provider-contract violation and panic: the IR is assumed well-formed.
func NewSnapshot(root DefID, items []Item) *Snapshot {
	s := &Snapshot{RootID: root, ItemList: items, byID: make(map[DefID]Item, len(items))}
	for _, it := range items {
		if _, dup := s.byID[it.ID()]; dup {
			panic(fmt.Sprintf("ir: duplicate definition identity %d", it.ID()))
		}
		s.byID[it.ID()] = it
	}
	return s
}

func (s *Snapshot) Root() DefID { return s.RootID }

func (s *Snapshot) Items() []Item { return s.ItemList }

func (s *Snapshot) Item(id DefID) (Item, bool) {
	it, ok := s.byID[id]
	return it, ok
}

// Children returns the visible children of a namespace or record.
func (s *Snapshot) Children(id DefID) []DefID {
	it, ok := s.byID[id]
	if !ok {
		return nil
	}
	switch it := it.(type) {
	case *Namespace:
		return it.Children
	case *Record:
		return it.Children
	}
	return nil
}

// RecordOf resolves a record type (possibly through aliases) to its
// definition.
func RecordOf(p Provider, t Type) (*Record, bool) {
	rt, ok := Unalias(t).(*RecordType)
	if !ok {
		return nil, false
	}
	it, ok := p.Item(rt.Def)
	if !ok {
		return nil, false
	}
	rec, ok := it.(*Record)
	return rec, ok
}

// EnumOf resolves an enum type to its definition.
func EnumOf(p Provider, t Type) (*Enum, bool) {
	et, ok := Unalias(t).(*EnumType)
	if !ok {
		return nil, false
	}
	it, ok := p.Item(et.Def)
	if !ok {
		return nil, false
	}
	en, ok := it.(*Enum)
	return en, ok
}

// MethodsOf returns the Func children of a record, in source order.
func MethodsOf(p Provider, rec *Record) []*Func {
	var out []*Func
	for _, id := range rec.Children {
		if it, ok := p.Item(id); ok {
			if f, ok := it.(*Func); ok {
				out = append(out, f)
			}
		}
	}
	return out
}

// SortedIDs returns the identities of items in a deterministic order: source
// span first, then identity. Used wherever iteration order would otherwise
// come from a map.
func SortedIDs(items []Item) []DefID {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Pos(), sorted[j].Pos()
		if a.File != b.File {
			return a.File < b.File
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return sorted[i].ID() < sorted[j].ID()
	})
	ids := make([]DefID, len(sorted))
	for i, it := range sorted {
		ids[i] = it.ID()
	}
	return ids
}
