package ccgen

import (
	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// GenRecord emits the C++ definition of a Rust struct. Copy types surface as
// naked structs with public fields; types with a drop hook become
// address-opaque classes whose destructor calls the drop thunk and whose
// copy and move are deleted (non-movable-by-value wrapper).
func (g *Generator) GenRecord(d *db.DB, rec *ir.Record) (*tokens.ApiSnippet, error) {
	if rec.IsBridge() {
		return nil, nil
	}
	name, err := g.Resolver.Canonical(rec.ID())
	if err != nil {
		return nil, err
	}
	need := feature.Of(feature.Supported)
	if !rec.Unpin() {
		need = feature.Of(feature.Experimental)
	}
	if err := g.gate(rec, need, name.Qualified("::"), "record binding"); err != nil {
		return nil, err
	}

	s := g.newSnippet(rec)
	s.Prereqs.Features = need
	if rec.Shape == nil {
		s.MainAPI.Linef("struct %s;", name.Local)
		s.FwdDeclOnly = true
		return s, nil
	}

	qual := "::" + name.Qualified("::")
	rs := g.rustQualified(rec)

	if rec.TrivialCopy() && rec.Unpin() {
		g.emitPlainStruct(d, s, rec, name.Local)
	} else {
		g.emitOpaqueClass(d, s, rec, name.Local, qual, rs)
	}

	// Layout assertions on both sides of the boundary.
	det := s.Details
	det.Linef("static_assert(sizeof(%s) == %d);", qual, rec.Shape.Size)
	det.Linef("static_assert(alignof(%s) == %d);", qual, rec.Shape.Align)
	th := s.Thunks
	th.Line("const _: () = {")
	th.Push()
	th.Linef("assert!(::core::mem::size_of::<%s>() == %d);", rs, rec.Shape.Size)
	th.Linef("assert!(::core::mem::align_of::<%s>() == %d);", rs, rec.Shape.Align)
	th.Pop()
	th.Line("};")
	return s, nil
}

// emitPlainStruct writes a field-for-field struct for a Copy type.
func (g *Generator) emitPlainStruct(d *db.DB, s *tokens.ApiSnippet, rec *ir.Record, local string) {
	out := s.MainAPI
	g.emitDoc(out, rec)
	out.Linef("// CRUBIT_ANNOTATE: rust_type=%s", g.rustQualified(rec))
	kw := "struct"
	if rec.Union {
		kw = "union"
	}
	out.Linef("%s alignas(%d) %s final {", kw, rec.Shape.Align, local)
	out.Push()
	for i, f := range rec.Shape.Fields {
		if f.Access != ir.Public || f.Type == nil || f.BrokenReason != "" {
			out.Linef("unsigned char __blob_%s[%d];", f.Name, rec.ApparentFieldSize(i))
			continue
		}
		m, err := g.MapType(d, f.Type, FieldLoc)
		if err != nil {
			out.Linef("unsigned char __blob_%s[%d];", f.Name, rec.ApparentFieldSize(i))
			continue
		}
		g.requireFieldPrereqs(s.Prereqs, f.Type)
		out.Linef("%s %s;", m.Spelling, f.Name)
	}
	out.Pop()
	out.Line("};")

	qual := "::" + mustQualified(g, rec)
	det := s.Details
	for _, f := range rec.Shape.Fields {
		if f.Access == ir.Public && f.Type != nil && f.BrokenReason == "" {
			det.Linef("static_assert(offsetof(%s, %s) == %d);", qual, f.Name, f.Offset)
		}
	}
}

// emitOpaqueClass writes the pinned wrapper: opaque storage, drop-thunk
// destructor, deleted copy and move.
func (g *Generator) emitOpaqueClass(d *db.DB, s *tokens.ApiSnippet, rec *ir.Record, local, qual, rs string) {
	out := s.MainAPI
	g.emitDoc(out, rec)
	out.Linef("// CRUBIT_ANNOTATE: rust_type=%s", rs)
	out.Linef("class %s final {", local)
	out.Line(" public:")
	out.Push()
	if rec.Members.DefaultConstructor != ir.Unavailable {
		out.Linef("%s();", local)
	} else {
		out.Linef("%s() = delete;", local)
	}
	out.Linef("%s(const %s&) = delete;", local, local)
	out.Linef("%s(%s&&) = delete;", local, local)
	if rec.Members.Destructor.Nontrivial() {
		out.Linef("~%s();", local)
	}
	out.Pop()
	out.Line(" private:")
	out.Push()
	out.Linef("alignas(%d) unsigned char __opaque[%d];", rec.Shape.Align, rec.Shape.Size)
	out.Pop()
	out.Line("};")

	det := s.Details
	if rec.Members.DefaultConstructor != ir.Unavailable {
		thunk := g.specialThunkName(rec, "default")
		det.Line("namespace __crubit_internal {")
		det.Linef("extern \"C\" void %s(%s*);", thunk, qual)
		det.Line("}  // namespace __crubit_internal")
		det.Linef("inline %s::%s() {", qual, local)
		det.Push()
		det.Linef("__crubit_internal::%s(this);", thunk)
		det.Pop()
		det.Line("}")
		g.emitDefaultThunk(s, rec, thunk, rs)
	}
	if rec.Members.Destructor.Nontrivial() {
		thunk := g.specialThunkName(rec, "drop")
		det.Line("namespace __crubit_internal {")
		det.Linef("extern \"C\" void %s(%s*);", thunk, qual)
		det.Line("}  // namespace __crubit_internal")
		det.Linef("inline %s::~%s() {", qual, local)
		det.Push()
		det.Linef("__crubit_internal::%s(this);", thunk)
		det.Pop()
		det.Line("}")
		th := s.Thunks
		th.Line("#[unsafe(no_mangle)]")
		th.Linef("pub unsafe extern \"C\" fn %s(__self: *mut %s) {", thunk, rs)
		th.Push()
		th.Line("unsafe { ::core::ptr::drop_in_place(__self) }")
		th.Pop()
		th.Line("}")
	}
}

func (g *Generator) emitDefaultThunk(s *tokens.ApiSnippet, rec *ir.Record, thunk, rs string) {
	th := s.Thunks
	th.Line("#[unsafe(no_mangle)]")
	th.Linef("pub unsafe extern \"C\" fn %s(__self: *mut %s) {", thunk, rs)
	th.Push()
	th.Linef("unsafe { __self.write(<%s as Default>::default()) }", rs)
	th.Pop()
	th.Line("}")
}

func mustQualified(g *Generator, rec *ir.Record) string {
	name, err := g.Resolver.Canonical(rec.ID())
	if err != nil {
		panic(err)
	}
	return name.Qualified("::")
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
	}
}

// GenEnum emits a fieldless Rust enum as a scoped C++ enumeration over the
// underlying type. Enums with payloads have no C++ equivalent and are
// rejected upstream by the front-end.
func (g *Generator) GenEnum(d *db.DB, en *ir.Enum) (*tokens.ApiSnippet, error) {
	if en.Opaque {
		return nil, nil
	}
	name, err := g.Resolver.Canonical(en.ID())
	if err != nil {
		return nil, err
	}
	under, err := g.MapType(d, en.Underlying, OtherLoc)
	if err != nil {
		return nil, err
	}
	need := feature.Of(feature.Supported).Union(under.Features)
	if err := g.gate(en, need, name.Qualified("::"), "enum binding"); err != nil {
		return nil, err
	}
	s := g.newSnippet(en)
	s.Prereqs.Features = need
	out := s.MainAPI
	g.emitDoc(out, en)
	out.Linef("enum class %s : %s {", name.Local, under.Spelling)
	out.Push()
	for _, e := range en.Enumerators {
		out.Linef("%s = %s,", e.Name, e.Value)
	}
	out.Pop()
	out.Line("};")
	return s, nil
}

// GenAlias emits a using-declaration for a type alias.
func (g *Generator) GenAlias(d *db.DB, alias *ir.TypeAlias) (*tokens.ApiSnippet, error) {
	name, err := g.Resolver.Canonical(alias.ID())
	if err != nil {
		return nil, err
	}
	under, err := g.MapType(d, alias.Underlying, OtherLoc)
	if err != nil {
		return nil, err
	}
	if err := g.gate(alias, under.Features, name.Qualified("::"), "type alias binding"); err != nil {
		return nil, err
	}
	s := g.newSnippet(alias)
	s.Prereqs.Features = under.Features
	switch t := ir.Unalias(alias.Underlying).(type) {
	case *ir.RecordType:
		s.Prereqs.RequireDef(t.Def)
	case *ir.EnumType:
		s.Prereqs.RequireDef(t.Def)
	}
	g.emitDoc(s.MainAPI, alias)
	s.MainAPI.Linef("using %s = %s;", name.Local, under.Spelling)
	return s, nil
}

// GenConst emits an exported constant.
func (g *Generator) GenConst(d *db.DB, c *ir.Const) (*tokens.ApiSnippet, error) {
	name, err := g.Resolver.Canonical(c.ID())
	if err != nil {
		return nil, err
	}
	m, err := g.MapType(d, c.Type, ConstLoc)
	if err != nil {
		return nil, err
	}
	if err := g.gate(c, m.Features, name.Qualified("::"), "constant binding"); err != nil {
		return nil, err
	}
	s := g.newSnippet(c)
	s.Prereqs.Features = m.Features
	g.emitDoc(s.MainAPI, c)
	s.MainAPI.Linef("inline constexpr %s %s = %s;", m.Spelling, name.Local, c.Value)
	return s, nil
}

// GenUse re-exports the canonical binding under the alias path.
func (g *Generator) GenUse(d *db.DB, use *ir.UseDecl) (*tokens.ApiSnippet, error) {
	target, err := g.Resolver.Canonical(use.Target)
	if err != nil {
		return nil, err
	}
	item, ok := d.Provider.Item(use.Target)
	if !ok {
		span := use.Pos()
		return nil, errors.Newf(errors.IR001, &span, "re-export target of '%s' is not in the snapshot", use.LocalName())
	}
	s := g.newSnippet(use)
	s.Prereqs.RequireDef(use.Target)
	if _, isFunc := item.(*ir.Func); isFunc {
		s.MainAPI.Linef("using ::%s;", target.Qualified("::"))
		return s, nil
	}
	local := use.LocalName()
	if use.Attr.CppName != "" {
		local = use.Attr.CppName
	}
	s.MainAPI.Linef("using %s = ::%s;", local, target.Qualified("::"))
	return s, nil
}
