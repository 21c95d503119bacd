package ir

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, typ Type) Type {
	t.Helper()
	data, err := json.Marshal(TypeBox{typ})
	require.NoError(t, err)
	var box TypeBox
	require.NoError(t, json.Unmarshal(data, &box))
	return box.Type
}

func TestTypeBoxRoundTrip(t *testing.T) {
	types := []Type{
		&Primitive{Kind: I32},
		&Primitive{Kind: Unit},
		&Pointer{Mut: true, Pointee: &Primitive{Kind: U8}},
		&Reference{Mut: false, Lifetime: Lifetime{Name: "a"}, Referent: &Primitive{Kind: F64}},
		&RvalueReference{Mut: true, Lifetime: Lifetime{Name: "b"}, Referent: &RecordType{Def: 7, Name: "S"}},
		&FuncPtr{ABI: "C", NonNull: true, Params: []Type{&Primitive{Kind: Bool}}, Return: &Primitive{Kind: Unit}},
		&RecordType{Def: 3, Name: "Rec"},
		&EnumType{Def: 4, Name: "Color"},
		&AliasType{Def: 5, Name: "Alias", Underlying: &Primitive{Kind: I64}},
		&IncompleteType{Def: 6, Name: "Fwd"},
		&OtherType{Name: "MyTemplate", Args: []Type{&Primitive{Kind: I32}}, SameABI: true},
	}
	for _, typ := range types {
		got := roundTrip(t, typ)
		if !typ.Equal(got) {
			t.Errorf("round trip mismatch: %s vs %s", typ, got)
		}
	}
}

func TestDecodeSnapshotRejectsWrongSchema(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"schema": "other/v9", "root": 1, "items": []}`))
	require.Error(t, err)
}

func TestDecodeSnapshot(t *testing.T) {
	doc := `{
	  "schema": "crubit.ir/v1",
	  "root": 1,
	  "items": [
	    {"kind": "namespace", "body": {"id": 1, "visible": true, "children": [2, 3]}},
	    {"kind": "func", "body": {
	      "id": 2, "name": "Add", "parent": 1, "visible": true,
	      "mangled_name": "_Z3Addii", "extern_c": true, "unmangled": true,
	      "params": [
	        {"name": "a", "type": {"kind": "primitive", "body": {"prim": "i32"}}},
	        {"name": "b", "type": {"kind": "primitive", "body": {"prim": "i32"}}}
	      ],
	      "return": {"kind": "primitive", "body": {"prim": "i32"}}
	    }},
	    {"kind": "record", "body": {
	      "id": 3, "name": "S", "parent": 1, "visible": true,
	      "mangled_name": "1S",
	      "shape": {"size": 4, "align": 4, "trivial_for_calls": true,
	        "trivially_relocatable": true,
	        "fields": [{"name": "x", "offset": 0, "access": 0,
	          "type": {"kind": "primitive", "body": {"prim": "i32"}}}]}
	    }}
	  ]
	}`
	snap, err := DecodeSnapshot([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, DefID(1), snap.Root())
	require.Len(t, snap.Items(), 3)

	item, ok := snap.Item(2)
	require.True(t, ok)
	f, ok := item.(*Func)
	require.True(t, ok)
	assert.True(t, f.ExternC)
	require.Len(t, f.Params, 2)
	assert.True(t, f.Params[0].Type.Equal(&Primitive{Kind: I32}))

	item, ok = snap.Item(3)
	require.True(t, ok)
	rec, ok := item.(*Record)
	require.True(t, ok)
	require.NotNil(t, rec.Shape)
	if diff := cmp.Diff(4, rec.Shape.Size); diff != "" {
		t.Errorf("size mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "x", rec.Shape.Fields[0].Name)
}

func TestLifetimesCollectsInOrder(t *testing.T) {
	typ := &FuncPtr{
		ABI: "C",
		Params: []Type{
			&Reference{Lifetime: Lifetime{Name: "b"}, Referent: &Primitive{Kind: I32}},
			&Reference{Lifetime: Lifetime{Name: "a"}, Referent: &Primitive{Kind: I32}},
			&Reference{Lifetime: Lifetime{Name: "b"}, Referent: &Primitive{Kind: I8}},
		},
		Return: &Primitive{Kind: Unit},
	}
	lts := Lifetimes(typ)
	require.Len(t, lts, 2)
	assert.Equal(t, "b", lts[0].Name)
	assert.Equal(t, "a", lts[1].Name)
}

func TestUnalias(t *testing.T) {
	inner := &RecordType{Def: 1, Name: "S"}
	alias := &AliasType{Def: 2, Name: "A", Underlying: &AliasType{Def: 3, Name: "B", Underlying: inner}}
	assert.Same(t, Type(inner), Unalias(alias))
}

func TestApparentFieldSize(t *testing.T) {
	rec := &Record{
		Shape: &RecordShape{
			Size: 12,
			Fields: []Field{
				{Name: "a", Offset: 0},
				{Name: "empty", Offset: 4, NoUniqueAddress: true},
				{Name: "b", Offset: 4},
			},
		},
	}
	assert.Equal(t, 4, rec.ApparentFieldSize(0))
	assert.Equal(t, 0, rec.ApparentFieldSize(1), "empty no_unique_address field has zero apparent size")
	assert.Equal(t, 8, rec.ApparentFieldSize(2))
}
