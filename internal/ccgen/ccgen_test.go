package ccgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
)

func testEnv(t *testing.T, items ...ir.Item) (*Generator, *db.DB) {
	t.Helper()
	var children []ir.DefID
	for _, item := range items {
		if item.ParentID() == 1 {
			children = append(children, item.ID())
		}
	}
	root := &ir.Namespace{
		ItemNode: ir.ItemNode{Def: 1, Visible: true, Loc: ir.Span{File: "lib.rs", Line: 1}},
		Children: children,
	}
	snapshot := ir.NewSnapshot(1, append([]ir.Item{root}, items...))
	cfg := config.Default("widget_lib")
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
		OwningCrate: "widget_lib",
		Loc:         ir.Span{File: "lib.rs", Line: line},
		Visible:     true,
	}
}

func i32() ir.Type { return &ir.Primitive{Kind: ir.I32} }

func TestFunctionWrapper(t *testing.T) {
	add := &ir.Func{
		ItemNode:    itemNode(2, "add", 1, 10),
		MangledName: "_RNvCs_add",
		Params:      []ir.Param{{Name: "a", Type: i32()}, {Name: "b", Type: i32()}},
		Return:      i32(),
	}
	_, d := testEnv(t, add)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "inline std::int32_t add(std::int32_t a, std::int32_t b) {")
	assert.Contains(t, api, "return __crubit_internal::__crubit_thunk_add(a, b);")
	assert.Contains(t, api, "extern \"C\" std::int32_t __crubit_thunk_add(std::int32_t, std::int32_t);")

	thunks := s.Thunks.String()
	assert.Contains(t, thunks, "#[unsafe(no_mangle)]")
	assert.Contains(t, thunks, "pub unsafe extern \"C\" fn __crubit_thunk_add(a: i32, b: i32) -> i32 {")
	assert.Contains(t, thunks, "crate::add(a, b)")
}

func nontrivialStruct(id ir.DefID, name string, line int) *ir.Record {
	return &ir.Record{
		ItemNode:    itemNode(id, name, 1, line),
		MangledName: name,
		Shape:       &ir.RecordShape{Size: 8, Align: 8, TriviallyRelocatable: true},
		Members: ir.SpecialMembers{
			DefaultConstructor: ir.NontrivialUserDefined,
			CopyConstructor:    ir.Unavailable,
			MoveConstructor:    ir.NontrivialUserDefined,
			Destructor:         ir.NontrivialUserDefined,
		},
	}
}

func TestNontrivialReturnUsesSlot(t *testing.T) {
	rec := nontrivialStruct(3, "Handle", 5)
	f := &ir.Func{
		ItemNode:    itemNode(2, "make_handle", 1, 10),
		MangledName: "_RNv_make_handle",
		Return:      &ir.RecordType{Def: 3, Name: "Handle"},
	}
	_, d := testEnv(t, f, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "inline ::Handle make_handle() {")
	assert.Contains(t, api, "crubit::Slot<::Handle> __ret;")
	assert.Contains(t, api, "return std::move(__ret).AssumeInitAndTakeValue();")

	thunks := s.Thunks.String()
	assert.Contains(t, thunks, "__ret: *mut crate::Handle")
	assert.Contains(t, thunks, "unsafe { __ret.write(crate::make_handle()) }")
}

func TestOpaqueClassForDropType(t *testing.T) {
	rec := nontrivialStruct(2, "Handle", 5)
	_, d := testEnv(t, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "class Handle final {")
	assert.Contains(t, api, "Handle(const Handle&) = delete;")
	assert.Contains(t, api, "Handle(Handle&&) = delete;")
	assert.Contains(t, api, "~Handle();")
	assert.Contains(t, api, "alignas(8) unsigned char __opaque[8];")

	det := s.Details.String()
	assert.Contains(t, det, "static_assert(sizeof(::Handle) == 8);")
	assert.Contains(t, det, "inline ::Handle::~Handle() {")
	assert.Contains(t, det, "__crubit_internal::__crubit_thunk_drop_Handle(this);")

	thunks := s.Thunks.String()
	assert.Contains(t, thunks, "pub unsafe extern \"C\" fn __crubit_thunk_drop_Handle(__self: *mut crate::Handle) {")
	assert.Contains(t, thunks, "::core::ptr::drop_in_place(__self)")
	assert.Contains(t, thunks, "assert!(::core::mem::size_of::<crate::Handle>() == 8);")
}

func TestCopyStructHasPublicFields(t *testing.T) {
	rec := &ir.Record{
		ItemNode:    itemNode(2, "Point", 1, 5),
		MangledName: "Point",
		Shape: &ir.RecordShape{
			Size: 8, Align: 4,
			Fields: []ir.Field{
				{Name: "x", Type: i32(), Offset: 0, Access: ir.Public},
				{Name: "y", Type: i32(), Offset: 4, Access: ir.Public},
			},
			TrivialForCalls:      true,
			TriviallyRelocatable: true,
		},
		Members: ir.SpecialMembers{},
	}
	_, d := testEnv(t, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "struct alignas(4) Point final {")
	assert.Contains(t, api, "std::int32_t x;")
	assert.Contains(t, api, "std::int32_t y;")

	det := s.Details.String()
	assert.Contains(t, det, "static_assert(offsetof(::Point, x) == 0);")
	assert.Contains(t, det, "static_assert(offsetof(::Point, y) == 4);")
}

func TestFieldlessEnumBecomesEnumClass(t *testing.T) {
	en := &ir.Enum{
		ItemNode:   itemNode(2, "Color", 1, 10),
		Underlying: i32(),
		Scoped:     true,
		Enumerators: []ir.Enumerator{
			{Name: "Red", Value: "0"},
			{Name: "Blue", Value: "2"},
		},
	}
	_, d := testEnv(t, en)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	api := s.MainAPI.String()
	assert.Contains(t, api, "enum class Color : std::int32_t {")
	assert.Contains(t, api, "Red = 0,")
	assert.Contains(t, api, "Blue = 2,")
}

func TestKeywordNameEscaped(t *testing.T) {
	f := &ir.Func{
		ItemNode:    itemNode(2, "new", 1, 10),
		MangledName: "_RNv_new",
		Return:      i32(),
	}
	gen, d := testEnv(t, f)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Contains(t, s.MainAPI.String(), "inline std::int32_t new_() {")
	name, err := gen.Resolver.Canonical(2)
	require.NoError(t, err)
	assert.Equal(t, "new_", name.Local)
}

func TestStubFormat(t *testing.T) {
	f := &ir.Func{
		ItemNode:    itemNode(2, "bad", 1, 33),
		MangledName: "_RNv_bad",
		Variadic:    true,
		Return:      i32(),
	}
	cfg := config.Default("widget_lib")
	err := errors.Newf(errors.FN002, nil, "variadic functions are not supported: 'bad'")
	s := Stub(f, "bad", cfg, err)
	assert.Contains(t, s.MainAPI.String(),
		"// Error generating bindings for bad defined at lib.rs;l=33: variadic functions are not supported: 'bad'")
}
