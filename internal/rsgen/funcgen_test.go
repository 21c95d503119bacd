package rsgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
)

// A trivial extern "C" free function links directly: no thunk, no static
// assertion, the wrapper calls the foreign symbol by its unmangled name.
func TestExternCFunctionLinksDirectly(t *testing.T) {
	add := &ir.Func{
		ItemNode:    itemNode(2, "Add", 1, 10),
		MangledName: "Add",
		Params:      []ir.Param{{Name: "a", Type: i32()}, {Name: "b", Type: i32()}},
		Return:      i32(),
		ExternC:     true,
		Unmangled:   true,
	}
	_, d := testEnv(t, add)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "pub fn Add(a: i32, b: i32) -> i32 {")
	assert.Contains(t, api, "crate::detail::Add(a, b)")
	assert.Contains(t, s.ExternDecls.String(), "pub(crate) fn Add(a: i32, b: i32) -> i32;")
	assert.True(t, s.Thunks.IsEmpty(), "no thunk for an unmangled extern C function")
}

// A function returning a non-trivial record by value routes through the
// hidden out-pointer protocol: uninitialized storage, thunk call, assume
// init.
func TestReturnByValueNontrivial(t *testing.T) {
	rec := nontrivialRecord(3, "S", 20)
	create := &ir.Func{
		ItemNode:    itemNode(2, "Create", 1, 30),
		MangledName: "_Z6Createi",
		Params:      []ir.Param{{Name: "i", Type: i32()}},
		Return:      &ir.RecordType{Def: 3, Name: "S"},
	}
	_, d := testEnv(t, create, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "pub fn Create(i: i32) -> crate::S {")
	assert.Contains(t, api, "::core::mem::MaybeUninit::<crate::S>::uninit()")
	assert.Contains(t, api, "crate::detail::__crubit_thunk_Create(i, __return.as_mut_ptr())")
	assert.Contains(t, api, "__return.assume_init()")

	decls := s.ExternDecls.String()
	assert.Contains(t, decls, "pub(crate) fn __crubit_thunk_Create(i: i32, __return: *mut crate::S);")

	thunks := s.Thunks.String()
	assert.Contains(t, thunks, "extern \"C\" void __crubit_thunk_Create(std::int32_t i, ::S* __return) {")
	assert.Contains(t, thunks, "crubit::construct_at(__return, ::Create(i));")
}

// A non-trivial by-value parameter travels through a hidden in-pointer with
// a destructive move on the callee side.
func TestParamByValueNontrivial(t *testing.T) {
	rec := nontrivialRecord(3, "S", 20)
	consume := &ir.Func{
		ItemNode:    itemNode(2, "Consume", 1, 30),
		MangledName: "_Z7Consume1S",
		Params:      []ir.Param{{Name: "s", Type: &ir.RecordType{Def: 3, Name: "S"}}},
		Return:      &ir.Primitive{Kind: ir.Unit},
	}
	_, d := testEnv(t, consume, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)

	api := s.MainAPI.String()
	assert.Contains(t, api, "let mut s = ::core::mem::ManuallyDrop::new(s);")
	assert.Contains(t, api, "::core::ptr::addr_of_mut!(*s)")
	assert.Contains(t, s.Thunks.String(), "std::move(*s)")
}

func TestMutableReferenceGetsNoAliasCheck(t *testing.T) {
	poke := &ir.Func{
		ItemNode:    itemNode(2, "Poke", 1, 11),
		MangledName: "_Z4PokeRiRKi",
		Params: []ir.Param{
			{Name: "out", Type: &ir.Reference{Mut: true, Lifetime: ir.Lifetime{Name: "a"}, Referent: i32()}},
			{Name: "in", Type: &ir.Reference{Mut: false, Lifetime: ir.Lifetime{Name: "b"}, Referent: i32()}},
		},
		Return: &ir.Primitive{Kind: ir.Unit},
	}
	_, d := testEnv(t, poke)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Contains(t, s.Thunks.String(), "CRUBIT_CHECK_NO_ALIAS(&out, &in);")
}

// Every distinct lifetime becomes a generic parameter exactly once.
func TestLifetimesDeclaredOnce(t *testing.T) {
	f := &ir.Func{
		ItemNode:    itemNode(2, "Pick", 1, 12),
		MangledName: "_Z4Pick",
		Params: []ir.Param{
			{Name: "x", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "a"}, Referent: i32()}},
			{Name: "y", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "a"}, Referent: i32()}},
		},
		Return: &ir.Reference{Lifetime: ir.Lifetime{Name: "a"}, Referent: i32()},
	}
	_, d := testEnv(t, f)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Contains(t, s.MainAPI.String(), "pub fn Pick<'a>(x: &'a i32, y: &'a i32) -> &'a i32 {")
}

// A reference parameter without a lifetime degrades to a raw pointer and
// makes the binding unsafe.
func TestElidedLifetimeMakesUnsafePointer(t *testing.T) {
	f := &ir.Func{
		ItemNode:    itemNode(2, "Read", 1, 13),
		MangledName: "_Z4Read",
		Params:      []ir.Param{{Name: "p", Type: &ir.Reference{Referent: i32()}}},
		Return:      i32(),
	}
	_, d := testEnv(t, f)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Contains(t, s.MainAPI.String(), "pub unsafe fn Read(p: *const i32) -> i32 {")
}

func TestRejections(t *testing.T) {
	cases := []struct {
		name string
		mut  func(*ir.Func)
		code string
	}{
		{"generic", func(f *ir.Func) { f.Generic = true }, errors.FN001},
		{"variadic", func(f *ir.Func) { f.Variadic = true }, errors.FN002},
		{"async", func(f *ir.Func) { f.Async = true }, errors.FN003},
		{"coroutine", func(f *ir.Func) { f.Coroutine = true }, errors.FN004},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &ir.Func{
				ItemNode:    itemNode(2, "F", 1, 14),
				MangledName: "_Z1Fv",
				Return:      &ir.Primitive{Kind: ir.Unit},
			}
			tc.mut(f)
			_, d := testEnv(t, f)
			_, err := d.Snippet(2)
			require.Error(t, err)
			rep, ok := errors.AsReport(err)
			require.True(t, ok)
			assert.Equal(t, tc.code, rep.Code)
		})
	}
}

// Two functions sharing a canonical target name collide; both become errors.
func TestOverloadCollision(t *testing.T) {
	a := &ir.Func{ItemNode: itemNode(2, "Over", 1, 15), MangledName: "_Z4Overi",
		Params: []ir.Param{{Name: "x", Type: i32()}}, Return: &ir.Primitive{Kind: ir.Unit}}
	b := &ir.Func{ItemNode: itemNode(3, "Over", 1, 16), MangledName: "_Z4Overd",
		Params: []ir.Param{{Name: "x", Type: &ir.Primitive{Kind: ir.F64}}}, Return: &ir.Primitive{Kind: ir.Unit}}
	_, d := testEnv(t, a, b)
	_, errA := d.Snippet(2)
	_, errB := d.Snippet(3)
	for _, err := range []error{errA, errB} {
		require.Error(t, err)
		rep, ok := errors.AsReport(err)
		require.True(t, ok)
		assert.Equal(t, errors.FN005, rep.Code)
	}
}

func TestNoReturnAttribute(t *testing.T) {
	f := &ir.Func{
		ItemNode:    itemNode(2, "Abort", 1, 17),
		MangledName: "_Z5Abortv",
		Return:      &ir.Primitive{Kind: ir.Unit},
		NoReturn:    true,
	}
	_, d := testEnv(t, f)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Contains(t, s.MainAPI.String(), "pub fn Abort() -> ! {")
}

func TestMustUseAndDeprecated(t *testing.T) {
	f := &ir.Func{
		ItemNode:    itemNode(2, "Compute", 1, 18),
		MangledName: "_Z7Computev",
		Return:      i32(),
	}
	f.Attr.MustUseSet = true
	f.Attr.MustUse = "check the result"
	f.Attr.DeprecatedSet = true
	_, d := testEnv(t, f)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	api := s.MainAPI.String()
	assert.Contains(t, api, `#[must_use = "check the result"]`)
	assert.Contains(t, api, "#[deprecated]")
}

func TestDocCommentTrailer(t *testing.T) {
	f := &ir.Func{
		ItemNode:    itemNode(2, "Frob", 1, 42),
		MangledName: "_Z4Frobv",
		Return:      &ir.Primitive{Kind: ir.Unit},
	}
	f.Doc = []string{"Frobs the widget."}
	_, d := testEnv(t, f)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	api := s.MainAPI.String()
	assert.Contains(t, api, "/// Frobs the widget.")
	assert.Contains(t, api, "/// Generated from: widgets.h;l=42")
}

// A method on a pinned record takes a Pin-wrapped receiver.
func TestPinnedReceiver(t *testing.T) {
	rec := nontrivialRecord(3, "S", 20)
	rec.Children = []ir.DefID{2}
	m := &ir.Func{
		ItemNode:        itemNode(2, "Bump", 3, 21),
		MangledName:     "_ZN1S4BumpEv",
		Kind:            ir.Method,
		Self:            ir.SelfMutRef,
		EnclosingRecord: 3,
		Return:          &ir.Primitive{Kind: ir.Unit},
	}
	_, d := testEnv(t, m, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	api := s.MainAPI.String()
	assert.Contains(t, api, "impl crate::S {")
	assert.Contains(t, api, "self: ::core::pin::Pin<&mut Self>")
}

// A single-parameter constructor becomes a From impl.
func TestSingleParamConstructorBecomesFrom(t *testing.T) {
	rec := trivialRecord(3, "Wrapper", 20)
	rec.Children = []ir.DefID{2}
	ctor := &ir.Func{
		ItemNode:        itemNode(2, "Wrapper", 3, 22),
		MangledName:     "_ZN7WrapperC1Ei",
		Kind:            ir.Constructor,
		EnclosingRecord: 3,
		Params:          []ir.Param{{Name: "value", Type: i32()}},
		Return:          &ir.Primitive{Kind: ir.Unit},
	}
	_, d := testEnv(t, ctor, rec)
	s, err := d.Snippet(2)
	require.NoError(t, err)
	det := s.Details.String()
	assert.Contains(t, det, "impl From<i32> for crate::Wrapper {")
	assert.Contains(t, det, "fn from(value: i32) -> Self {")
}
