package rsgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crubit/bindgen/internal/ir"
)

// Mixed-access fields: one public typed field, two private byte blobs at the
// right offsets, a drop hook, and size/align/offset assertions.
func TestRecordWithMixedAccessFields(t *testing.T) {
	rec := &ir.Record{
		ItemNode:    itemNode(2, "SomeStruct", 1, 10),
		MangledName: "10SomeStruct",
		Shape: &ir.RecordShape{
			Size: 12, Align: 4,
			Fields: []ir.Field{
				{Name: "public_int", Type: i32(), Offset: 0, Access: ir.Public},
				{Name: "protected_int", Type: i32(), Offset: 4, Access: ir.Protected},
				{Name: "private_int", Type: i32(), Offset: 8, Access: ir.Private},
			},
		},
		Members: ir.SpecialMembers{
			DefaultConstructor: ir.NontrivialUserDefined,
			CopyConstructor:    ir.NontrivialUserDefined,
			MoveConstructor:    ir.NontrivialUserDefined,
			Destructor:         ir.NontrivialUserDefined,
		},
	}
	_, d := testEnv(t, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "#[repr(C, align(4))]")
	assert.Contains(t, api, "pub struct SomeStruct {")
	assert.Contains(t, api, "__phantom_pin: ::core::marker::PhantomPinned,")
	assert.Contains(t, api, "pub public_int: i32,")
	assert.Contains(t, api, "__blob_protected_int: [::core::mem::MaybeUninit<u8>; 4],")
	assert.Contains(t, api, "__blob_private_int: [::core::mem::MaybeUninit<u8>; 4],")
	assert.NotContains(t, api, "derive(Clone, Copy)")

	det := s.Details.String()
	assert.Contains(t, det, "impl Drop for crate::SomeStruct {")
	assert.Contains(t, det, "crate::detail::__crubit_thunk_dtor_SomeStruct(self)")
	assert.Contains(t, det, "assert!(::core::mem::size_of::<crate::SomeStruct>() == 12);")
	assert.Contains(t, det, "assert!(::core::mem::align_of::<crate::SomeStruct>() == 4);")
	assert.Contains(t, det, "assert!(::core::mem::offset_of!(crate::SomeStruct, public_int) == 0);")
	assert.NotContains(t, det, "offset_of!(crate::SomeStruct, protected_int)")

	thunks := s.Thunks.String()
	assert.Contains(t, thunks, "static_assert(sizeof(::SomeStruct) == 12);")
	assert.Contains(t, thunks, "static_assert(alignof(::SomeStruct) == 4);")
	assert.Contains(t, thunks, "static_assert(offsetof(::SomeStruct, public_int) == 0);")
	assert.Contains(t, thunks, "std::destroy_at(__this);")
}

func TestTrivialRecordDerivesCopy(t *testing.T) {
	rec := trivialRecord(2, "Point", 10)
	_, d := testEnv(t, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	api := s.MainAPI.String()
	assert.Contains(t, api, "#[derive(Clone, Copy)]")
	assert.NotContains(t, api, "__phantom_pin")
	assert.Contains(t, api, "/// CRUBIT_ANNOTATE: cpp_type=::Point")
}

func TestEmptyClassHasSizeOne(t *testing.T) {
	rec := trivialRecord(2, "Empty", 10)
	rec.Shape = &ir.RecordShape{Size: 1, Align: 1, TrivialForCalls: true, TriviallyRelocatable: true}
	_, d := testEnv(t, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Contains(t, s.Details.String(), "assert!(::core::mem::size_of::<crate::Empty>() == 1);")
	assert.Contains(t, s.Thunks.String(), "static_assert(sizeof(::Empty) == 1);")
}

// A no_unique_address empty field produces no field, only a typed accessor
// reading through the enclosing object.
func TestNoUniqueAddressEmptyField(t *testing.T) {
	empty := trivialRecord(3, "Empty", 5)
	empty.Shape = &ir.RecordShape{Size: 1, Align: 1, TrivialForCalls: true, TriviallyRelocatable: true}
	rec := trivialRecord(2, "Holder", 10)
	rec.Shape = &ir.RecordShape{
		Size: 4, Align: 4,
		TrivialForCalls:      true,
		TriviallyRelocatable: true,
		Fields: []ir.Field{
			{Name: "field", Type: &ir.RecordType{Def: 3, Name: "Empty"}, Offset: 0, Access: ir.Public, NoUniqueAddress: true},
			{Name: "value", Type: i32(), Offset: 0, Access: ir.Public},
		},
	}
	_, d := testEnv(t, rec, empty)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.NotContains(t, api, "pub field:")
	assert.NotContains(t, api, "__blob_field")

	det := s.Details.String()
	assert.Contains(t, det, "pub fn field(&self) -> &crate::Empty {")
}

// Bases: a blob covers the base subobjects; public unambiguous bases become
// upcast relations, private bases do not.
func TestInheritanceUpcasts(t *testing.T) {
	base1 := trivialRecord(3, "Base1", 1)
	base2 := trivialRecord(4, "Base2", 2)
	priv := trivialRecord(5, "PrivBase", 3)
	derived := &ir.Record{
		ItemNode:    itemNode(2, "Derived", 1, 10),
		MangledName: "7Derived",
		Shape: &ir.RecordShape{
			Size: 16, Align: 4,
			Fields:               []ir.Field{{Name: "own", Type: i32(), Offset: 12, Access: ir.Public}},
			TrivialForCalls:      true,
			TriviallyRelocatable: true,
		},
		Members: ir.SpecialMembers{},
		Bases: []ir.BaseClass{
			{Def: 3, Name: "Base1", Access: ir.Public, Offset: 0},
			{Def: 4, Name: "Base2", Access: ir.Public, Offset: 4},
			{Def: 5, Name: "PrivBase", Access: ir.Private, Offset: 8},
		},
	}
	_, d := testEnv(t, derived, base1, base2, priv)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "__base_class_subobjects: [::core::mem::MaybeUninit<u8>; 12],")

	det := s.Details.String()
	assert.Contains(t, det, "unsafe impl oops::Inherits<crate::Base1> for crate::Derived {")
	assert.Contains(t, det, "unsafe impl oops::Inherits<crate::Base2> for crate::Derived {")
	assert.Contains(t, det, "(derived as *const u8).offset(4) as *const crate::Base2")
	assert.NotContains(t, det, "PrivBase")
}

// Ambiguous bases are not exposed; virtual bases go through a runtime
// upcast thunk.
func TestVirtualAndAmbiguousBases(t *testing.T) {
	vbase := trivialRecord(3, "VBase", 1)
	amb := trivialRecord(4, "Shared", 2)
	derived := &ir.Record{
		ItemNode:    itemNode(2, "Derived", 1, 10),
		MangledName: "7Derived",
		Shape:       &ir.RecordShape{Size: 16, Align: 8},
		Members:     ir.SpecialMembers{Destructor: ir.TrivialMember},
		Bases: []ir.BaseClass{
			{Def: 3, Name: "VBase", Access: ir.Public, Offset: -1, Virtual: true},
			{Def: 4, Name: "Shared", Access: ir.Public, Offset: 0, Ambiguous: true},
		},
	}
	_, d := testEnv(t, derived, vbase, amb)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	det := s.Details.String()
	assert.Contains(t, det, "crate::detail::__crubit_dynamic_upcast__Derived__to__VBase(derived)")
	assert.NotContains(t, det, "Inherits<crate::Shared>")
	assert.Contains(t, s.Thunks.String(), "extern \"C\" const ::VBase* __crubit_dynamic_upcast__Derived__to__VBase(const ::Derived* __from) {")
}

// Layout-impossible records degrade to a forward declaration; by-value uses
// fail elsewhere.
func TestLayoutImpossibleIsForwardDeclOnly(t *testing.T) {
	rec := &ir.Record{
		ItemNode:    itemNode(2, "Mystery", 1, 10),
		MangledName: "7Mystery",
	}
	_, d := testEnv(t, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.True(t, s.FwdDeclOnly)
	assert.Contains(t, s.MainAPI.String(),
		`forward_declare::forward_declare!(pub Mystery = forward_declare::symbol!("Mystery"));`)
}

func TestBridgeRecordIsErased(t *testing.T) {
	rec := trivialRecord(2, "StatusPayload", 10)
	rec.Attr.Bridge = "absl::Status"
	_, d := testEnv(t, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestUnionWithNontrivialMember(t *testing.T) {
	inner := nontrivialRecord(3, "Expensive", 5)
	union := &ir.Record{
		ItemNode:    itemNode(2, "Packet", 1, 10),
		MangledName: "6Packet",
		Union:       true,
		Shape: &ir.RecordShape{
			Size: 4, Align: 4,
			Fields: []ir.Field{
				{Name: "raw", Type: i32(), Offset: 0, Access: ir.Public},
			},
		},
		// Nontrivial members make the union's destructor nontrivial without
		// the union declaring one; no drop hook is emitted.
		Members: ir.SpecialMembers{Destructor: ir.NontrivialMembers},
	}
	_, d := testEnv(t, union, inner)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	api := s.MainAPI.String()
	assert.Contains(t, api, "pub union Packet {")
	assert.NotContains(t, s.Details.String(), "impl Drop")
}

func TestEnumBecomesNewtype(t *testing.T) {
	en := &ir.Enum{
		ItemNode:   itemNode(2, "Color", 1, 10),
		Underlying: i32(),
		Enumerators: []ir.Enumerator{
			{Name: "kRed", Value: "0"},
			{Name: "kBlue", Value: "2"},
		},
	}
	_, d := testEnv(t, en)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "#[repr(transparent)]")
	assert.Contains(t, api, "pub struct Color(i32);")

	det := s.Details.String()
	assert.Contains(t, det, "pub const kRed: Color = Color(0);")
	assert.Contains(t, det, "pub const kBlue: Color = Color(2);")
	assert.Contains(t, det, "impl From<i32> for crate::Color {")
	assert.Contains(t, det, "impl From<crate::Color> for i32 {")
}

func TestOpaqueEnumEmitsNothing(t *testing.T) {
	en := &ir.Enum{ItemNode: itemNode(2, "Hidden", 1, 10), Underlying: i32(), Opaque: true}
	_, d := testEnv(t, en)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Nil(t, s)
}

// A template instantiation used through an alias: the struct gets the
// mangled-derived name, the alias resolves to it, assertions follow the
// instantiated layout.
func TestTemplateInstantiationViaAlias(t *testing.T) {
	inst := trivialRecord(3, "__CcTemplateInst10MyTemplateIiE", 5)
	inst.TemplateInstantiation = true
	alias := &ir.TypeAlias{
		ItemNode:   itemNode(2, "MyTypeAlias", 1, 10),
		Underlying: &ir.RecordType{Def: 3, Name: "__CcTemplateInst10MyTemplateIiE"},
	}
	_, d := testEnv(t, alias, inst)

	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Contains(t, s.MainAPI.String(),
		"pub type MyTypeAlias = crate::__CcTemplateInst10MyTemplateIiE;")

	rs, err := d.Snippet(3)
	require.NoError(t, err)
	assert.Contains(t, rs.Details.String(),
		"assert!(::core::mem::size_of::<crate::__CcTemplateInst10MyTemplateIiE>() == 4);")
}
