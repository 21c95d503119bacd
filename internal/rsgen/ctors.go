package rsgen

import (
	"fmt"
	"strings"

	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// genConstructor maps a constructor to its Rust surface:
//   - zero parameters: a Default impl (zero-initialized when the operation
//     is trivial, a thunk call otherwise),
//   - one parameter: a From impl,
//   - more parameters: an inherent `new` factory.
//
// Records that are not trivially relocatable get emplacement factories
// constructing into caller-provided pinned storage instead.
func (g *Generator) genConstructor(d *db.DB, f *ir.Func) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	parts, err := g.translateSignature(d, f)
	if err != nil {
		return nil, err
	}
	rec := parts.rec
	if rec == nil {
		return nil, errors.Newf(errors.IR001, &span, "constructor '%s' has no enclosing record", f.DebugName())
	}
	if rec.Abstract {
		return nil, errors.Newf(errors.RG003, &span,
			"abstract record '%s' is not constructible through the bindings", rec.LocalName())
	}
	recName := "crate::" + mustCanonical(g, rec.ID()).Qualified("::")
	if err := g.gate(f, parts.features, recName, "constructor binding"); err != nil {
		return nil, err
	}

	s := g.newSnippet(f)
	s.Prereqs.Features = parts.features
	g.requireSignaturePrereqs(s.Prereqs, f, parts)
	s.Prereqs.RequireDef(rec.ID())

	if len(f.Params) == 0 && rec.Members.DefaultConstructor == ir.TrivialMember && rec.Unpin() {
		// Trivial default construction is zero-initialization; no thunk.
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
		return s, nil
	}

	thunk := g.constructorThunk(f, parts, recName)
	g.emitRustDecl(s.ExternDecls, thunk)
	g.emitCcThunk(s.Thunks, thunk, s.Prereqs)

	if !rec.Unpin() {
		return g.emplaceFactory(s, f, parts, rec, recName, thunk)
	}

	out := s.Details
	switch len(f.Params) {
	case 0:
		out.Linef("impl Default for %s {", recName)
		out.Push()
		out.Line("#[inline(always)]")
		out.Line("fn default() -> Self {")
		out.Push()
		g.emitEmplaceReturn(out, thunk, nil)
		out.Pop()
		out.Line("}")
		out.Pop()
		out.Line("}")
	case 1:
		p := parts.params[0]
		out.Linef("impl%s From<%s> for %s {", lifetimeGenerics(parts.lifetimes), p.M.Spelling, recName)
		out.Push()
		out.Line("#[inline(always)]")
		out.Linef("fn from(%s: %s) -> Self {", p.Name, p.M.Spelling)
		out.Push()
		g.emitEmplaceReturn(out, thunk, parts.params)
		out.Pop()
		out.Line("}")
		out.Pop()
		out.Line("}")
	default:
		var sig []string
		for _, p := range parts.params {
			sig = append(sig, fmt.Sprintf("%s: %s", p.Name, p.M.Spelling))
		}
		out.Linef("impl %s {", recName)
		out.Push()
		g.emitDoc(out, f)
		out.Line("#[inline(always)]")
		out.Linef("pub fn new%s(%s) -> Self {", lifetimeGenerics(parts.lifetimes), strings.Join(sig, ", "))
		out.Push()
		g.emitEmplaceReturn(out, thunk, parts.params)
		out.Pop()
		out.Line("}")
		out.Pop()
		out.Line("}")
	}
	return s, nil
}

// emplaceFactory emits the pinned-record constructor surface: a static
// factory constructing into caller-provided uninitialized pinned storage.
func (g *Generator) emplaceFactory(s *tokens.ApiSnippet, f *ir.Func, parts *sigParts, rec *ir.Record, recName string, thunk *Thunk) (*tokens.ApiSnippet, error) {
	factory := "ctor_new"
	if len(f.Params) == 0 {
		factory = "ctor_default"
	}
	var sig []string
	for _, p := range parts.params {
		sig = append(sig, fmt.Sprintf("%s: %s", p.Name, p.M.Spelling))
	}
	sig = append(sig, "dest: ::core::pin::Pin<&mut ::core::mem::MaybeUninit<Self>>")

	out := s.Details
	out.Linef("impl %s {", recName)
	out.Push()
	g.emitDoc(out, f)
	out.Line("#[inline(always)]")
	out.Linef("pub fn %s%s(%s) {", factory, lifetimeGenerics(parts.lifetimes), strings.Join(sig, ", "))
	out.Push()
	var args []string
	args = append(args, "unsafe { dest.get_unchecked_mut().as_mut_ptr() }")
	for _, p := range parts.params {
		args = append(args, g.prepOperand(out, p, p.Name))
	}
	out.Linef("unsafe { crate::detail::%s(%s); }", thunk.linkName(), strings.Join(args, ", "))
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	return s, nil
}

// emitEmplaceReturn allocates uninitialized storage, constructs into it
// through the thunk, and assumes init.
func (g *Generator) emitEmplaceReturn(out *tokens.Stream, thunk *Thunk, params []ThunkParam) {
	out.Line("let mut __this = ::core::mem::MaybeUninit::<Self>::uninit();")
	args := []string{"__this.as_mut_ptr()"}
	for _, p := range params {
		args = append(args, g.prepOperand(out, p, p.Name))
	}
	out.Line("unsafe {")
	out.Push()
	out.Linef("crate::detail::%s(%s);", thunk.linkName(), strings.Join(args, ", "))
	out.Line("__this.assume_init()")
	out.Pop()
	out.Line("}")
}

// constructorThunk describes the constructor shim: the hidden destination
// pointer travels first, mirroring the receiver slot.
func (g *Generator) constructorThunk(f *ir.Func, parts *sigParts, recName string) *Thunk {
	cc := g.ccQualified(parts.rec)
	this := &Mapped{
		ThunkSpelling:   "*mut " + recName,
		CcThunkSpelling: cc + "*",
		CcSpelling:      cc,
		ABICompatible:   true,
	}
	return &Thunk{
		Name:      g.thunkName(f),
		Func:      f,
		This:      this,
		Params:    parts.params,
		Ret:       nil,
		Lifetimes: parts.lifetimes,
	}
}
