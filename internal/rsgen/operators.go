package rsgen

import (
	"fmt"
	"strings"

	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// genOperator maps a source operator to the Rust operator-trait vocabulary.
// The operand shape must match: the LHS is the defining record (or a
// reference to it); anything else was rewritten by the front-end into a free
// function and does not reach this path.
func (g *Generator) genOperator(d *db.DB, f *ir.Func) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	parts, err := g.translateSignature(d, f)
	if err != nil {
		return nil, err
	}
	if parts.rec == nil {
		return nil, errors.Newf(errors.FN006, &span,
			"operator%s is not attached to a record", f.OperatorName)
	}
	recName := "crate::" + mustCanonical(g, parts.rec.ID()).Qualified("::")
	op := f.OperatorName

	name, err := g.Resolver.Canonical(parts.rec.ID())
	if err != nil {
		return nil, err
	}
	if err := g.gate(f, parts.features, name.Qualified("::")+"::operator"+op, "operator binding"); err != nil {
		return nil, err
	}

	switch {
	case assignOps[op] != [2]string{}:
		return g.genAssignOperator(f, parts, recName)
	case op == "==":
		return g.genEqOperator(f, parts, recName)
	case op == "<":
		return g.genOrdOperator(d, f, parts, recName)
	case len(f.Params) == 0 && unaryOps[op] != [2]string{}:
		return g.genUnaryOperator(f, parts, recName)
	case len(f.Params) == 1 && binOps[op] != [2]string{}:
		return g.genBinOperator(f, parts, recName)
	}
	return nil, errors.Newf(errors.FN006, &span,
		"operator%s has no Rust operator-trait equivalent", op)
}

func (g *Generator) genBinOperator(f *ir.Func, parts *sigParts, recName string) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	if !f.ConstMember {
		return nil, errors.Newf(errors.FN006, &span,
			"operator%s is not const: operator traits take their operands by shared reference", f.OperatorName)
	}
	trait, method := binOps[f.OperatorName][0], binOps[f.OperatorName][1]
	rhs := parts.params[0]

	s := g.newSnippet(f)
	s.Prereqs.Features = parts.features
	g.requireSignaturePrereqs(s.Prereqs, f, parts)

	thunk := g.operatorThunk(f, parts, recName, false)
	g.emitRustDecl(s.ExternDecls, thunk)
	g.emitCcThunk(s.Thunks, thunk, s.Prereqs)

	lhsLt := ir.Lifetime{Name: "__lhs", Synthesized: true}
	lifetimes := appendLifetimes([]ir.Lifetime{lhsLt}, parts.lifetimes)

	out := s.Details
	out.Linef("impl%s %s<%s> for &%s %s {", lifetimeGenerics(lifetimes), trait, rhs.M.Spelling, lhsLt, recName)
	out.Push()
	retSpelling := parts.ret.Spelling
	out.Linef("type Output = %s;", retSpelling)
	out.Line("#[inline(always)]")
	out.Linef("fn %s(self, rhs: %s) -> Self::Output {", method, rhs.M.Spelling)
	out.Push()
	arg := g.prepOperand(out, rhs, "rhs")
	g.emitOperatorBody(out, thunk, []string{"self as *const _ as *const _", arg})
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	return s, nil
}

func (g *Generator) genAssignOperator(f *ir.Func, parts *sigParts, recName string) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	if f.ConstMember {
		return nil, errors.Newf(errors.FN006, &span,
			"compound assignment operator%s with const-qualified left-hand side cannot mutate its operand", f.OperatorName)
	}
	if !parts.rec.Unpin() {
		return nil, errors.Newf(errors.FN006, &span,
			"compound assignment operator%s requires a trivially relocatable record", f.OperatorName)
	}
	trait, method := assignOps[f.OperatorName][0], assignOps[f.OperatorName][1]
	rhs := parts.params[0]

	s := g.newSnippet(f)
	s.Prereqs.Features = parts.features
	g.requireSignaturePrereqs(s.Prereqs, f, parts)

	thunk := g.operatorThunk(f, parts, recName, true)
	g.emitRustDecl(s.ExternDecls, thunk)
	g.emitCcThunk(s.Thunks, thunk, s.Prereqs)

	out := s.Details
	out.Linef("impl%s %s<%s> for %s {", lifetimeGenerics(parts.lifetimes), trait, rhs.M.Spelling, recName)
	out.Push()
	out.Line("#[inline(always)]")
	out.Linef("fn %s(&mut self, rhs: %s) {", method, rhs.M.Spelling)
	out.Push()
	arg := g.prepOperand(out, rhs, "rhs")
	out.Linef("unsafe { crate::detail::%s(self as *mut _ as *mut _, %s); }", thunk.linkName(), arg)
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	return s, nil
}

func (g *Generator) genUnaryOperator(f *ir.Func, parts *sigParts, recName string) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	if !f.ConstMember {
		return nil, errors.Newf(errors.FN006, &span,
			"operator%s is not const: operator traits take their operands by shared reference", f.OperatorName)
	}
	trait, method := unaryOps[f.OperatorName][0], unaryOps[f.OperatorName][1]

	s := g.newSnippet(f)
	s.Prereqs.Features = parts.features
	g.requireSignaturePrereqs(s.Prereqs, f, parts)

	thunk := g.operatorThunk(f, parts, recName, false)
	g.emitRustDecl(s.ExternDecls, thunk)
	g.emitCcThunk(s.Thunks, thunk, s.Prereqs)

	lhsLt := ir.Lifetime{Name: "__lhs", Synthesized: true}
	lifetimes := appendLifetimes([]ir.Lifetime{lhsLt}, parts.lifetimes)

	out := s.Details
	out.Linef("impl%s %s for &%s %s {", lifetimeGenerics(lifetimes), trait, lhsLt, recName)
	out.Push()
	out.Linef("type Output = %s;", parts.ret.Spelling)
	out.Line("#[inline(always)]")
	out.Linef("fn %s(self) -> Self::Output {", method)
	out.Push()
	g.emitOperatorBody(out, thunk, []string{"self as *const _ as *const _"})
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	return s, nil
}

// genEqOperator implements PartialEq from operator==.
func (g *Generator) genEqOperator(f *ir.Func, parts *sigParts, recName string) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	if !f.ConstMember {
		return nil, errors.Newf(errors.FN006, &span,
			"operator== is not const: PartialEq compares through shared references")
	}
	rhs := parts.params[0]
	rhsInner := operandInner(rhs.M.Spelling)

	s := g.newSnippet(f)
	s.Prereqs.Features = parts.features
	g.requireSignaturePrereqs(s.Prereqs, f, parts)

	thunk := g.operatorThunk(f, parts, recName, false)
	g.emitRustDecl(s.ExternDecls, thunk)
	g.emitCcThunk(s.Thunks, thunk, s.Prereqs)

	out := s.Details
	out.Linef("impl ::core::cmp::PartialEq<%s> for %s {", rhsInner, recName)
	out.Push()
	out.Line("#[inline(always)]")
	out.Linef("fn eq(&self, other: &%s) -> bool {", rhsInner)
	out.Push()
	out.Linef("unsafe { crate::detail::%s(self as *const _ as *const _, other) }", thunk.linkName())
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	return s, nil
}

// genOrdOperator implements PartialOrd from operator<. Ordering requires
// equality to also be present on the record.
func (g *Generator) genOrdOperator(d *db.DB, f *ir.Func, parts *sigParts, recName string) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	if !f.ConstMember {
		return nil, errors.Newf(errors.FN006, &span,
			"operator< is not const: PartialOrd compares through shared references")
	}
	if !g.recordHasOperator(d, parts.rec, "==") {
		return nil, errors.Newf(errors.FN006, &span,
			"operator< requires operator== on the same record: PartialOrd is a subtrait of PartialEq")
	}
	rhs := parts.params[0]
	rhsInner := operandInner(rhs.M.Spelling)

	s := g.newSnippet(f)
	s.Prereqs.Features = parts.features
	g.requireSignaturePrereqs(s.Prereqs, f, parts)

	thunk := g.operatorThunk(f, parts, recName, false)
	g.emitRustDecl(s.ExternDecls, thunk)
	g.emitCcThunk(s.Thunks, thunk, s.Prereqs)

	out := s.Details
	out.Linef("impl ::core::cmp::PartialOrd<%s> for %s {", rhsInner, recName)
	out.Push()
	out.Line("#[inline(always)]")
	out.Linef("fn partial_cmp(&self, other: &%s) -> Option<::core::cmp::Ordering> {", rhsInner)
	out.Push()
	out.Line("if self.lt(other) {")
	out.Push()
	out.Line("return Some(::core::cmp::Ordering::Less);")
	out.Pop()
	out.Line("}")
	out.Line("if self == other {")
	out.Push()
	out.Line("return Some(::core::cmp::Ordering::Equal);")
	out.Pop()
	out.Line("}")
	out.Line("Some(::core::cmp::Ordering::Greater)")
	out.Pop()
	out.Line("}")
	out.Line("#[inline(always)]")
	out.Linef("fn lt(&self, other: &%s) -> bool {", rhsInner)
	out.Push()
	out.Linef("unsafe { crate::detail::%s(self as *const _ as *const _, other) }", thunk.linkName())
	out.Pop()
	out.Line("}")
	out.Pop()
	out.Line("}")
	return s, nil
}

// recordHasOperator scans the record's members for a given operator token.
func (g *Generator) recordHasOperator(d *db.DB, rec *ir.Record, op string) bool {
	for _, m := range ir.MethodsOf(d.Provider, rec) {
		if m.Kind == ir.Operator && m.OperatorName == op {
			return true
		}
	}
	return false
}

// operatorThunk builds the shim description for a member operator; the
// receiver travels as a pointer with the member's const-ness.
func (g *Generator) operatorThunk(f *ir.Func, parts *sigParts, recName string, mutable bool) *Thunk {
	cc := g.ccQualified(mustRecord(g, f.EnclosingRecord))
	this := &Mapped{
		ThunkSpelling:   "*const " + recName,
		CcThunkSpelling: "const " + cc + "*",
		CcSpelling:      cc,
		ABICompatible:   true,
	}
	if mutable {
		this.ThunkSpelling = "*mut " + recName
		this.CcThunkSpelling = cc + "*"
	}
	t := &Thunk{
		Name:      g.thunkName(f),
		Func:      f,
		This:      this,
		Params:    parts.params,
		Ret:       parts.ret,
		Lifetimes: parts.lifetimes,
	}
	t.RetIndirect = parts.ret != nil && parts.ret.NeedsIndirection
	return t
}

func mustRecord(g *Generator, id ir.DefID) *ir.Record {
	item, ok := g.provider().Item(id)
	if !ok {
		panic(fmt.Sprintf("rsgen: dangling record id %d", id))
	}
	rec, ok := item.(*ir.Record)
	if !ok {
		panic(fmt.Sprintf("rsgen: item %d is not a record", id))
	}
	return rec
}

// emitOperatorBody emits the thunk call, routing non-trivial returns through
// emplace semantics.
func (g *Generator) emitOperatorBody(out *tokens.Stream, thunk *Thunk, args []string) {
	if thunk.RetIndirect {
		out.Linef("let mut __return = ::core::mem::MaybeUninit::<%s>::uninit();", thunk.Ret.ThunkBase())
		out.Line("unsafe {")
		out.Push()
		out.Linef("crate::detail::%s(%s);", thunk.linkName(),
			strings.Join(append(args, "__return.as_mut_ptr()"), ", "))
		out.Line("__return.assume_init()")
		out.Pop()
		out.Line("}")
		return
	}
	out.Linef("unsafe { crate::detail::%s(%s) }", thunk.linkName(), strings.Join(args, ", "))
}

// prepOperand adapts a wrapper operand to its thunk spelling, emitting the
// destructive-move preparation for by-value non-trivial operands.
func (g *Generator) prepOperand(out *tokens.Stream, p ThunkParam, name string) string {
	if p.M.NeedsIndirection {
		out.Linef("let mut %s = ::core::mem::ManuallyDrop::new(%s);", name, name)
		return fmt.Sprintf("::core::ptr::addr_of_mut!(*%s)", name)
	}
	return name
}

// operandInner strips the reference layer off an operand spelling, leaving
// the referent type for PartialEq/PartialOrd generics.
func operandInner(spelling string) string {
	s := spelling
	if strings.HasPrefix(s, "&") {
		s = strings.TrimPrefix(s, "&")
		if i := strings.Index(s, " "); i >= 0 && strings.HasPrefix(s, "'") {
			s = s[i+1:]
		}
		s = strings.TrimPrefix(s, "mut ")
	}
	return strings.TrimSpace(s)
}
