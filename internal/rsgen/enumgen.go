package rsgen

import (
	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// GenEnum emits an enum as a newtype over its underlying integer type with
// associated constants for the enumerators and From conversions in both
// directions. C++ enums are not closed sets, so a Rust enum would be
// unsound; the newtype admits every underlying value.
func (g *Generator) GenEnum(d *db.DB, en *ir.Enum) (*tokens.ApiSnippet, error) {
	if en.Opaque {
		// Opaque enums are declared but never defined; nothing to emit.
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
	recName := "crate::" + name.Qualified("::")

	out := s.MainAPI
	g.emitDoc(out, en)
	out.Linef("/// CRUBIT_ANNOTATE: cpp_type=%s", g.ccQualifiedItem(en))
	out.Line("#[repr(transparent)]")
	out.Line("#[derive(Clone, Copy, PartialEq, Eq, Hash)]")
	out.Linef("pub struct %s(%s);", name.Local, under.Spelling)

	det := s.Details
	if len(en.Enumerators) > 0 {
		det.Linef("impl %s {", recName)
		det.Push()
		for _, e := range en.Enumerators {
			det.Linef("pub const %s: %s = %s(%s);", EscapeLocal(e.Name), name.Local, name.Local, e.Value)
		}
		det.Pop()
		det.Line("}")
	}
	det.Linef("impl From<%s> for %s {", under.Spelling, recName)
	det.Push()
	det.Line("#[inline(always)]")
	det.Linef("fn from(value: %s) -> %s {", under.Spelling, name.Local)
	det.Push()
	det.Linef("%s(value)", name.Local)
	det.Pop()
	det.Line("}")
	det.Pop()
	det.Line("}")
	det.Linef("impl From<%s> for %s {", recName, under.Spelling)
	det.Push()
	det.Line("#[inline(always)]")
	det.Linef("fn from(value: %s) -> %s {", name.Local, under.Spelling)
	det.Push()
	det.Line("value.0")
	det.Pop()
	det.Line("}")
	det.Pop()
	det.Line("}")

	s.Thunks.Linef("static_assert(sizeof(%s) == sizeof(%s));", g.ccQualifiedItem(en), under.CcSpelling)
	return s, nil
}

// GenAlias emits a type alias pointing at the canonical underlying type.
// The alias spelling is preserved for consumers; layout decisions elsewhere
// consult the underlying type.
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
	s.MainAPI.Linef("pub type %s = %s;", name.Local, under.Spelling)
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
	s.MainAPI.Linef("pub const %s: %s = %s;", name.Local, m.Spelling, c.Value)
	return s, nil
}

// GenUse re-exports the canonical binding under the alias path.
func (g *Generator) GenUse(d *db.DB, use *ir.UseDecl) (*tokens.ApiSnippet, error) {
	target, err := g.Resolver.Canonical(use.Target)
	if err != nil {
		return nil, err
	}
	s := g.newSnippet(use)
	s.Prereqs.RequireDef(use.Target)
	local := EscapeLocal(use.LocalName())
	if use.Attr.RustName != "" {
		local = use.Attr.RustName
	}
	if local == target.Local && len(s.Namespace) == len(target.Path) {
		// The canonical path itself; nothing to re-export.
		return nil, nil
	}
	s.MainAPI.Linef("pub use crate::%s as %s;", target.Qualified("::"), local)
	return s, nil
}
