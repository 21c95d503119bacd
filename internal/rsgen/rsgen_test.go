package rsgen

import (
	"testing"

	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
)

// testEnv builds a snapshot whose root namespace (id 1) contains the given
// items, plus a generator and database over it. Thunk name mangling is
// disabled for stable names, matching the production test configuration.
func testEnv(t *testing.T, items ...ir.Item) (*Generator, *db.DB) {
	t.Helper()
	var children []ir.DefID
	for _, item := range items {
		if item.ParentID() == 1 {
			children = append(children, item.ID())
		}
	}
	root := &ir.Namespace{
		ItemNode: ir.ItemNode{Def: 1, Visible: true, Loc: ir.Span{File: "lib.h", Line: 1}},
		Children: children,
	}
	snapshot := ir.NewSnapshot(1, append([]ir.Item{root}, items...))
	cfg := config.Default("//widgets:widget_lib")
	cfg.NoThunkNameMangling = true
	gen := NewGenerator(snapshot, cfg)
	reporter := errors.NewReporter(func(*errors.Report) {})
	return gen, db.New(snapshot, cfg, reporter, gen.Generate)
}

func itemNode(id ir.DefID, name string, parent ir.DefID, line int) ir.ItemNode {
	return ir.ItemNode{
		Def:         id,
		Name:        name,
		Parent:      parent,
		OwningCrate: "//widgets:widget_lib",
		Loc:         ir.Span{File: "widgets.h", Line: line},
		Visible:     true,
	}
}

func i32() ir.Type { return &ir.Primitive{Kind: ir.I32} }

// trivialRecord is a Copy-like record: every special member trivial and the
// image relocatable.
func trivialRecord(id ir.DefID, name string, line int) *ir.Record {
	return &ir.Record{
		ItemNode:    itemNode(id, name, 1, line),
		MangledName: name,
		Shape: &ir.RecordShape{
			Size: 4, Align: 4,
			Fields:               []ir.Field{{Name: "value", Type: i32(), Offset: 0, Access: ir.Public}},
			TrivialForCalls:      true,
			TriviallyRelocatable: true,
		},
		Members: ir.SpecialMembers{
			DefaultConstructor: ir.TrivialMember,
			CopyConstructor:    ir.TrivialMember,
			MoveConstructor:    ir.TrivialMember,
			Destructor:         ir.TrivialMember,
		},
	}
}

// nontrivialRecord carries a user-defined destructor and is not trivially
// relocatable, which makes it a pinned wrapper.
func nontrivialRecord(id ir.DefID, name string, line int) *ir.Record {
	return &ir.Record{
		ItemNode:    itemNode(id, name, 1, line),
		MangledName: name,
		Shape: &ir.RecordShape{
			Size: 4, Align: 4,
			Fields: []ir.Field{{Name: "value", Type: i32(), Offset: 0, Access: ir.Public}},
		},
		Members: ir.SpecialMembers{
			DefaultConstructor: ir.NontrivialUserDefined,
			CopyConstructor:    ir.NontrivialUserDefined,
			MoveConstructor:    ir.NontrivialUserDefined,
			Destructor:         ir.NontrivialUserDefined,
		},
	}
}
