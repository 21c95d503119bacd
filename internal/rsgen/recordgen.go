package rsgen

import (
	"fmt"

	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// GenRecord emits the Rust definition of a record and its supporting items:
// layout assertions, drop/clone hooks, upcast relations and the C++ side of
// every synthesized special-member thunk.
func (g *Generator) GenRecord(d *db.DB, rec *ir.Record) (*tokens.ApiSnippet, error) {
	if rec.IsBridge() {
		// Bridge types are erased from the module; uses refer to the bridge
		// target type.
		return nil, nil
	}
	name, err := g.Resolver.Canonical(rec.ID())
	if err != nil {
		return nil, err
	}
	if err := g.gate(rec, g.recordFeatures(rec), name.Qualified("::"), "record binding"); err != nil {
		return nil, err
	}

	s := g.newSnippet(rec)
	if rec.Shape == nil {
		// Layout impossible: forward-declaration only. By-value uses fail at
		// the type mapper; pointer and reference uses succeed.
		g.emitForwardDecl(s.MainAPI, rec, name.Local)
		s.FwdDeclOnly = true
		return s, nil
	}

	recName := "crate::" + name.Qualified("::")
	g.emitRecordDef(d, s, rec, name.Local, recName)
	g.emitLayoutAsserts(s, rec, recName)
	g.emitSpecialMembers(d, s, rec, recName)
	g.emitUpcasts(s, rec, recName)
	for _, inc := range g.cfg.IncludesFor(rec.Crate()) {
		s.Prereqs.RequireInclude(inc)
	}
	return s, nil
}

// recordFeatures derives the features the record itself needs, independent
// of its field types: unsupported fields become opaque blobs, so only the
// abstract properties of the record matter. Template instantiations always
// need the experimental feature.
func (g *Generator) recordFeatures(rec *ir.Record) feature.Set {
	if rec.TemplateInstantiation {
		return feature.Of(feature.Experimental)
	}
	if rec.Unpin() {
		return feature.Of(feature.ExternC)
	}
	return feature.Of(feature.Experimental)
}

// emitRecordDef writes the struct/union definition with its representation
// decisions.
func (g *Generator) emitRecordDef(d *db.DB, s *tokens.ApiSnippet, rec *ir.Record, local, recName string) {
	out := s.MainAPI
	g.emitDoc(out, rec)
	out.Linef("/// CRUBIT_ANNOTATE: cpp_type=%s", g.ccQualified(rec))
	out.Linef("#[repr(C, align(%d))]", rec.Shape.Align)
	if rec.TrivialCopy() && rec.Unpin() {
		out.Line("#[derive(Clone, Copy)]")
	}
	kw := "struct"
	if rec.Union {
		kw = "union"
	}
	out.Linef("pub %s %s {", kw, local)
	out.Push()

	if len(rec.Bases) > 0 {
		// One blob covers every base subobject; derived fields may start
		// inside the nominal size of a base (tail-padding reuse), so the
		// blob is bounded by the first derived field, not by base sizes.
		out.Linef("__base_class_subobjects: [::core::mem::MaybeUninit<u8>; %d],", rec.FirstFieldOffset())
	}
	if !rec.Unpin() {
		out.Line("__phantom_pin: ::core::marker::PhantomPinned,")
	}
	for i, f := range rec.Shape.Fields {
		g.emitField(d, s, rec, i, f, out)
	}
	out.Pop()
	out.Line("}")
}

// emitField writes one field, replacing unsupported, non-public and
// no_unique_address fields with byte blobs of the apparent size at the
// correct offset.
func (g *Generator) emitField(d *db.DB, s *tokens.ApiSnippet, rec *ir.Record, i int, f ir.Field, out *tokens.Stream) {
	blob := func(reason string) {
		size := rec.ApparentFieldSize(i)
		if reason != "" {
			out.Comment("//", fmt.Sprintf("%s: %s", f.Name, reason))
		}
		out.Linef("__blob_%s: [::core::mem::MaybeUninit<u8>; %d],", f.Name, size)
	}
	if f.BrokenReason != "" || f.Type == nil {
		blob(orUnknown(f.BrokenReason))
		return
	}
	if f.Access != ir.Public {
		blob("")
		return
	}
	if f.NoUniqueAddress {
		// The field's apparent size is the gap to the next field; an empty
		// class contributes no field at all, only the typed accessor.
		size := rec.ApparentFieldSize(i)
		if size > 0 {
			out.Linef("__blob_%s: [::core::mem::MaybeUninit<u8>; %d],", f.Name, size)
		}
		g.emitNoUniqueAddressAccessor(d, s, rec, f)
		return
	}
	m, err := g.MapType(d, f.Type, FieldLoc)
	if err != nil {
		blob(reportMessage(err))
		return
	}
	g.requireFieldPrereqs(s.Prereqs, f.Type)
	spelling := m.Spelling
	if rec.Union && g.fieldNeedsManualDrop(f.Type) {
		// Union members with nontrivial destructors are wrapped so the
		// union itself stays droppable; callers destroy the active member.
		spelling = fmt.Sprintf("::core::mem::ManuallyDrop<%s>", spelling)
	}
	out.Linef("pub %s: %s,", EscapeLocal(f.Name), spelling)
}

// fieldNeedsManualDrop reports whether a union member's type runs code on
// destruction.
func (g *Generator) fieldNeedsManualDrop(t ir.Type) bool {
	rec, ok := ir.RecordOf(g.provider(), t)
	return ok && rec.Members.Destructor.Nontrivial()
}

// emitNoUniqueAddressAccessor exposes a typed accessor reading through the
// blob of a no_unique_address field.
func (g *Generator) emitNoUniqueAddressAccessor(d *db.DB, s *tokens.ApiSnippet, rec *ir.Record, f ir.Field) {
	m, err := g.MapType(d, f.Type, FieldLoc)
	if err != nil {
		s.Details.Linef("// no accessor for '%s': %s", f.Name, reportMessage(err))
		return
	}
	name := mustCanonical(g, rec.ID())
	out := s.Details
	out.Linef("impl crate::%s {", name.Qualified("::"))
	out.Push()
	out.Linef("pub fn %s(&self) -> &%s {", EscapeLocal(f.Name), m.Spelling)
	out.Push()
	out.Line("unsafe {")
	out.Push()
	out.Linef("let ptr = (self as *const Self as *const u8).offset(%d);", f.Offset)
	out.Linef("&*(ptr as *const %s)", m.Spelling)
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
}

func (g *Generator) requireFieldPrereqs(pre *tokens.Prereqs, t ir.Type) {
	switch t := ir.Unalias(t).(type) {
	case *ir.RecordType:
		pre.RequireDef(t.Def)
	case *ir.EnumType:
		pre.RequireDef(t.Def)
	case *ir.Pointer:
		if rt, ok := ir.Unalias(t.Pointee).(*ir.RecordType); ok {
			pre.RequireFwd(rt.Def)
		}
		if rt, ok := ir.Unalias(t.Pointee).(*ir.IncompleteType); ok {
			pre.RequireFwd(rt.Def)
		}
	}
}

// emitLayoutAsserts writes size/alignment/offset assertions on both sides of
// the boundary.
func (g *Generator) emitLayoutAsserts(s *tokens.ApiSnippet, rec *ir.Record, recName string) {
	out := s.Details
	out.Line("const _: () = {")
	out.Push()
	out.Linef("assert!(::core::mem::size_of::<%s>() == %d);", recName, rec.Shape.Size)
	out.Linef("assert!(::core::mem::align_of::<%s>() == %d);", recName, rec.Shape.Align)
	for _, f := range rec.Shape.Fields {
		if !g.fieldIsTyped(rec, f) {
			continue
		}
		out.Linef("assert!(::core::mem::offset_of!(%s, %s) == %d);", recName, EscapeLocal(f.Name), f.Offset)
	}
	out.Pop()
	out.Line("};")

	cc := s.Thunks
	qual := g.ccQualified(rec)
	cc.Linef("static_assert(sizeof(%s) == %d);", qual, rec.Shape.Size)
	cc.Linef("static_assert(alignof(%s) == %d);", qual, rec.Shape.Align)
	for _, f := range rec.Shape.Fields {
		if !g.fieldIsTyped(rec, f) {
			continue
		}
		cc.Linef("static_assert(offsetof(%s, %s) == %d);", qual, f.Name, f.Offset)
	}
}

// fieldIsTyped reports whether a field surfaced as a typed public field (as
// opposed to a blob).
func (g *Generator) fieldIsTyped(rec *ir.Record, f ir.Field) bool {
	return f.Access == ir.Public && f.Type != nil && f.BrokenReason == "" && !f.NoUniqueAddress
}

// emitSpecialMembers synthesizes the drop hook, the clone protocol, and the
// default construction surface the record's special members call for.
func (g *Generator) emitSpecialMembers(d *db.DB, s *tokens.ApiSnippet, rec *ir.Record, recName string) {
	g.emitDropHook(s, rec, recName)
	g.emitCloneHook(s, rec, recName)
	g.emitSyntheticDefault(d, s, rec, recName)
	g.emitSwapMove(s, rec, recName)
}

// emitDropHook maps a nontrivial destructor to a Drop impl invoking the
// destructor thunk. Unions get a drop hook only when the source declares a
// destructor; callers of a union with nontrivial members are otherwise
// responsible for destroying the active member.
func (g *Generator) emitDropHook(s *tokens.ApiSnippet, rec *ir.Record, recName string) {
	if !rec.Members.Destructor.Nontrivial() {
		return
	}
	if rec.Union && rec.Members.Destructor != ir.NontrivialUserDefined {
		return
	}
	thunk := g.specialThunkName(rec, "dtor")
	out := s.Details
	out.Linef("impl Drop for %s {", recName)
	out.Push()
	out.Line("#[inline(always)]")
	out.Line("fn drop(&mut self) {")
	out.Push()
	out.Linef("unsafe { crate::detail::%s(self) }", thunk)
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")

	s.ExternDecls.Linef("pub(crate) fn %s<'a>(__this: &'a mut %s);", thunk, recName)

	qual := g.ccQualified(rec)
	cc := s.Thunks
	cc.Linef("extern \"C\" void %s(%s* __this) {", thunk, qual)
	cc.Push()
	cc.Line("std::destroy_at(__this);")
	cc.Pop()
	cc.Line("}")
}

// emitCloneHook maps a user-defined copy constructor to Clone via a thunk.
// The trivial path derives Copy/Clone instead; deleted copy constructors
// leave a comment.
func (g *Generator) emitCloneHook(s *tokens.ApiSnippet, rec *ir.Record, recName string) {
	if rec.TrivialCopy() && rec.Unpin() {
		return // derived Clone, Copy
	}
	if rec.Members.CopyConstructor == ir.Unavailable {
		s.Details.Linef("// Clone is unavailable: the copy constructor of '%s' is deleted or inaccessible.", rec.LocalName())
		return
	}
	if !rec.Unpin() {
		// Address-stable wrappers cannot return Self by value; cloning goes
		// through the emplacement factories.
		g.emitCloneInto(s, rec, recName)
		return
	}
	thunk := g.specialThunkName(rec, "copy")
	out := s.Details
	out.Linef("impl Clone for %s {", recName)
	out.Push()
	out.Line("#[inline(always)]")
	out.Line("fn clone(&self) -> Self {")
	out.Push()
	out.Line("let mut __this = ::core::mem::MaybeUninit::<Self>::uninit();")
	out.Line("unsafe {")
	out.Push()
	out.Linef("crate::detail::%s(__this.as_mut_ptr(), self);", thunk)
	out.Line("__this.assume_init()")
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	g.emitCopyThunk(s, rec, thunk, recName)
}

// emitCloneInto is the pinned-record clone surface: construct a copy into
// caller-provided pinned storage.
func (g *Generator) emitCloneInto(s *tokens.ApiSnippet, rec *ir.Record, recName string) {
	thunk := g.specialThunkName(rec, "copy")
	out := s.Details
	out.Linef("impl %s {", recName)
	out.Push()
	out.Line("pub fn clone_into(&self, dest: ::core::pin::Pin<&mut ::core::mem::MaybeUninit<Self>>) {")
	out.Push()
	out.Linef("unsafe { crate::detail::%s(dest.get_unchecked_mut().as_mut_ptr(), self) }", thunk)
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	g.emitCopyThunk(s, rec, thunk, recName)
}

func (g *Generator) emitCopyThunk(s *tokens.ApiSnippet, rec *ir.Record, thunk, recName string) {
	s.ExternDecls.Linef("pub(crate) fn %s<'a>(__this: *mut %s, __from: &'a %s);", thunk, recName, recName)
	qual := g.ccQualified(rec)
	cc := s.Thunks
	cc.Linef("extern \"C\" void %s(%s* __this, const %s& __from) {", thunk, qual, qual)
	cc.Push()
	cc.Line("crubit::construct_at(__this, __from);")
	cc.Pop()
	cc.Line("}")
	s.Prereqs.RequireInclude(g.cfg.SupportHeader("construct_at.h"))
}

// emitSyntheticDefault covers records whose default constructor exists only
// in the special-member table (no constructor item in the IR). Records with
// an explicit constructor item get their Default impl from the constructor
// path instead.
func (g *Generator) emitSyntheticDefault(d *db.DB, s *tokens.ApiSnippet, rec *ir.Record, recName string) {
	if g.hasCtorItem(d, rec, 0) {
		return
	}
	switch rec.Members.DefaultConstructor {
	case ir.Unavailable:
		s.Details.Linef("// Default is unavailable: the default constructor of '%s' is deleted or inaccessible.", rec.LocalName())
		return
	case ir.TrivialMember:
		if !rec.Unpin() {
			return
		}
		out := s.Details
		out.Linef("impl Default for %s {", recName)
		out.Push()
		out.Line("#[inline(always)]")
		out.Line("fn default() -> Self {")
		out.Push()
		out.Line("unsafe { ::core::mem::zeroed() }")
		out.Pop()
		out.Line("}")
		out.Pop()
		out.Line("}")
		return
	}
	// Nontrivial default construction without a constructor item: route
	// through a synthesized thunk.
	thunk := g.specialThunkName(rec, "default")
	qual := g.ccQualified(rec)
	s.ExternDecls.Linef("pub(crate) fn %s(__this: *mut %s);", thunk, recName)
	cc := s.Thunks
	cc.Linef("extern \"C\" void %s(%s* __this) {", thunk, qual)
	cc.Push()
	cc.Line("crubit::construct_at(__this);")
	cc.Pop()
	cc.Line("}")
	s.Prereqs.RequireInclude(g.cfg.SupportHeader("construct_at.h"))

	out := s.Details
	if rec.Unpin() {
		out.Linef("impl Default for %s {", recName)
		out.Push()
		out.Line("#[inline(always)]")
		out.Line("fn default() -> Self {")
		out.Push()
		out.Line("let mut __this = ::core::mem::MaybeUninit::<Self>::uninit();")
		out.Line("unsafe {")
		out.Push()
		out.Linef("crate::detail::%s(__this.as_mut_ptr());", thunk)
		out.Line("__this.assume_init()")
		out.Pop()
		out.Line("}")
		out.Pop()
		out.Line("}")
		out.Pop()
		out.Line("}")
		return
	}
	out.Linef("impl %s {", recName)
	out.Push()
	out.Line("pub fn ctor_default(dest: ::core::pin::Pin<&mut ::core::mem::MaybeUninit<Self>>) {")
	out.Push()
	out.Linef("unsafe { crate::detail::%s(dest.get_unchecked_mut().as_mut_ptr()) }", thunk)
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
}

// emitSwapMove provides the swap-move fallback for records that are not
// trivially relocatable but have default construction and copy available.
// The default constructor is assumed cheap; an expensive one makes this a
// hidden cost the consumer pays.
func (g *Generator) emitSwapMove(s *tokens.ApiSnippet, rec *ir.Record, recName string) {
	if rec.Unpin() || rec.Shape == nil {
		return
	}
	if rec.Members.DefaultConstructor == ir.Unavailable || rec.Members.CopyConstructor == ir.Unavailable {
		return
	}
	thunk := g.specialThunkName(rec, "swap")
	out := s.Details
	out.Linef("impl %s {", recName)
	out.Push()
	out.Line("pub fn swap(self: ::core::pin::Pin<&mut Self>, other: ::core::pin::Pin<&mut Self>) {")
	out.Push()
	out.Line("unsafe {")
	out.Push()
	out.Linef("crate::detail::%s(self.get_unchecked_mut(), other.get_unchecked_mut());", thunk)
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")

	s.ExternDecls.Linef("pub(crate) fn %s<'a, 'b>(__a: &'a mut %s, __b: &'b mut %s);", thunk, recName, recName)
	qual := g.ccQualified(rec)
	cc := s.Thunks
	cc.Linef("extern \"C\" void %s(%s* __a, %s* __b) {", thunk, qual, qual)
	cc.Push()
	cc.Line("crubit::MemSwap(*__a, *__b);")
	cc.Pop()
	cc.Line("}")
	s.Prereqs.RequireInclude(g.cfg.SupportHeader("memswap.h"))
}

// emitUpcasts declares the inherits relation for public, unambiguous,
// non-virtual bases, and routes virtual bases through a dynamic upcast thunk
// because their offsets are not statically known.
func (g *Generator) emitUpcasts(s *tokens.ApiSnippet, rec *ir.Record, recName string) {
	for _, base := range rec.Bases {
		if base.Access != ir.Public || base.Ambiguous {
			continue
		}
		baseItem, ok := g.provider().Item(base.Def)
		if !ok {
			continue
		}
		baseName, err := g.Resolver.Canonical(base.Def)
		if err != nil {
			continue
		}
		baseSpelling := "crate::" + baseName.Qualified("::")
		s.Prereqs.RequireFwd(base.Def)
		out := s.Details
		out.Linef("unsafe impl oops::Inherits<%s> for %s {", baseSpelling, recName)
		out.Push()
		out.Linef("unsafe fn upcast_ptr(derived: *const Self) -> *const %s {", baseSpelling)
		out.Push()
		if base.Virtual || base.Offset < 0 {
			thunk := g.dynamicUpcastName(rec, baseItem.LocalName())
			out.Linef("crate::detail::%s(derived)", thunk)
			g.emitDynamicUpcastThunk(s, rec, baseItem, thunk, baseSpelling)
		} else {
			out.Linef("(derived as *const u8).offset(%d) as *const %s", base.Offset, baseSpelling)
		}
		out.Pop()
		out.Line("}")
		out.Pop()
		out.Line("}")
	}
}

func (g *Generator) dynamicUpcastName(rec *ir.Record, baseName string) string {
	if g.cfg.NoThunkNameMangling {
		return fmt.Sprintf("__crubit_dynamic_upcast__%s__to__%s", rec.LocalName(), baseName)
	}
	return fmt.Sprintf("__crubit_dynamic_upcast__%s__to__%s", rec.MangledName, baseName)
}

func (g *Generator) emitDynamicUpcastThunk(s *tokens.ApiSnippet, rec *ir.Record, base ir.Item, thunk, baseSpelling string) {
	s.ExternDecls.Linef("pub(crate) fn %s(__from: *const %s) -> *const %s;",
		thunk, "crate::"+mustCanonical(g, rec.ID()).Qualified("::"), baseSpelling)
	qual := g.ccQualified(rec)
	baseQual := g.ccQualifiedItem(base)
	cc := s.Thunks
	cc.Linef("extern \"C\" const %s* %s(const %s* __from) {", baseQual, thunk, qual)
	cc.Push()
	cc.Line("return __from;")
	cc.Pop()
	cc.Line("}")
}

// emitForwardDecl emits the handle-only form of a record.
func (g *Generator) emitForwardDecl(out *tokens.Stream, rec *ir.Record, local string) {
	g.emitDoc(out, rec)
	out.Linef("forward_declare::forward_declare!(pub %s = forward_declare::symbol!(%q));", local, rec.LocalName())
}

// GenForwardDecl handles explicit forward-declaration items. When the full
// definition is also in the snapshot the declaration is subsumed by it.
func (g *Generator) GenForwardDecl(d *db.DB, fd *ir.ForwardDecl) (*tokens.ApiSnippet, error) {
	if fd.Record != 0 {
		if _, ok := d.Provider.Item(fd.Record); ok {
			return nil, nil
		}
	}
	s := g.newSnippet(fd)
	s.FwdDeclOnly = true
	s.MainAPI.Linef("forward_declare::forward_declare!(pub %s = forward_declare::symbol!(%q));",
		EscapeLocal(fd.LocalName()), fd.LocalName())
	return s, nil
}

// hasCtorItem reports whether the record's children include a constructor
// with the given arity.
func (g *Generator) hasCtorItem(d *db.DB, rec *ir.Record, arity int) bool {
	for _, m := range ir.MethodsOf(d.Provider, rec) {
		if m.Kind == ir.Constructor && len(m.Params) == arity {
			return true
		}
	}
	return false
}

func orUnknown(reason string) string {
	if reason == "" {
		return "unsupported field type"
	}
	return reason
}

func reportMessage(err error) string {
	if rep, ok := errors.AsReport(err); ok {
		return rep.Message
	}
	return err.Error()
}
