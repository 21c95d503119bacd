package rsgen

import (
	"fmt"
	"strings"

	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// thunkPrefix starts every synthesized shim symbol.
const thunkPrefix = "__crubit_thunk_"

// Thunk describes one extern "C" shim: its name, its parameters in thunk
// form, and the protocol decisions (hidden out-pointer, destructive-move
// in-pointers, no-alias checks).
type Thunk struct {
	Name string
	Func *ir.Func

	// This is the receiver type of member operations, nil for free
	// functions.
	This   *Mapped
	Params []ThunkParam
	Ret    *Mapped
	// Lifetimes are the generic lifetime parameters the declaration needs;
	// extern blocks accept lifetime generics on foreign functions.
	Lifetimes []ir.Lifetime

	// RetIndirect means the return value is written through a hidden
	// `__return` out-pointer as the last thunk argument.
	RetIndirect bool
}

// ThunkParam pairs a parameter name with its mapped type.
type ThunkParam struct {
	Name string
	M    *Mapped
}

// ccName strips the Rust raw-identifier escape off a parameter name for use
// in the C++ thunk, where the original spelling is legal.
func ccName(name string) string {
	return strings.TrimPrefix(name, "r#")
}

// thunkName derives the deterministic shim name from the source symbol's
// mangled name. Mangled names are unique per translation unit, so the shim
// names are too. The no_thunk_name_mangling configuration substitutes the
// plain source name for test stability.
func (g *Generator) thunkName(f *ir.Func) string {
	if g.cfg.NoThunkNameMangling {
		return thunkPrefix + f.Name
	}
	return thunkPrefix + f.MangledName
}

// specialThunkName names the shims synthesized for special member
// operations that have no Func item of their own.
func (g *Generator) specialThunkName(rec *ir.Record, op string) string {
	if g.cfg.NoThunkNameMangling {
		return fmt.Sprintf("%s%s_%s", thunkPrefix, op, rec.LocalName())
	}
	return fmt.Sprintf("%s%s_%s", thunkPrefix, op, rec.MangledName)
}

// needsThunk decides whether the call can link against the source symbol
// directly. An extern "C" function with an unmangled name whose signature is
// directly ABI-compatible needs no shim; everything else does.
func (g *Generator) needsThunk(f *ir.Func, params []ThunkParam, ret *Mapped) bool {
	if f.Kind != ir.FreeFunc {
		return true
	}
	if !f.ExternC || !f.Unmangled {
		return true
	}
	if f.CallingConv != "" && f.CallingConv != "C" {
		return true
	}
	if ret.NeedsIndirection {
		return true
	}
	for _, p := range params {
		if p.M.NeedsIndirection || p.M.NeedsNoAlias {
			return true
		}
		// References are passed to shims as pointers and re-materialized in
		// the wrapper; an unshimmed call cannot do that.
		if strings.HasPrefix(p.M.Spelling, "&") || strings.HasPrefix(p.M.Spelling, "::ctor::") {
			return true
		}
	}
	return false
}

// linkName is the symbol the Rust side declares: the thunk name when a shim
// exists, the source symbol otherwise.
func (t *Thunk) linkName() string {
	return t.Name
}

// emitRustDecl writes the extern "C" declaration of the shim (or of the
// directly linked source symbol) into the detail stream.
func (g *Generator) emitRustDecl(s *tokens.Stream, t *Thunk) {
	var params []string
	if t.This != nil {
		params = append(params, "__this: "+t.This.ThunkSpelling)
	}
	for _, p := range t.Params {
		params = append(params, fmt.Sprintf("%s: %s", p.Name, p.M.ThunkSpelling))
	}
	if t.RetIndirect {
		params = append(params, "__return: *mut "+t.Ret.ThunkBase())
	}
	sig := fmt.Sprintf("pub(crate) fn %s%s(%s)", t.linkName(),
		lifetimeGenerics(t.Lifetimes), strings.Join(params, ", "))
	if t.Func != nil && t.Func.NoReturn {
		sig += " -> !"
	} else if !t.RetIndirect && t.Ret != nil && t.Ret.Spelling != "()" {
		sig += " -> " + t.Ret.ThunkSpelling
	}
	s.Line(sig + ";")
}

// emitCcThunk writes the C++ definition of the shim into the api_impl
// stream. The shim translates parameters (destructive moves out of hidden
// in-pointers), forwards the call, and constructs the result into the hidden
// out-pointer when the return is non-trivial.
func (g *Generator) emitCcThunk(s *tokens.Stream, t *Thunk, pre *tokens.Prereqs) {
	var params []string
	if t.This != nil {
		params = append(params, t.This.CcThunkSpelling+" __this")
	}
	for _, p := range t.Params {
		params = append(params, fmt.Sprintf("%s %s", p.M.CcThunkSpelling, ccName(p.Name)))
	}
	retSpelling := "void"
	if !t.RetIndirect && t.Ret != nil && t.Ret.CcSpelling != "void" {
		retSpelling = t.Ret.CcSpelling
	}
	if t.RetIndirect {
		params = append(params, t.Ret.CcSpelling+"* __return")
	}
	s.Linef("extern \"C\" %s %s(%s) {", retSpelling, t.Name, strings.Join(params, ", "))
	s.Push()

	// No-alias checks: every mutable reference must be disjoint from every
	// other reference parameter.
	g.emitNoAliasChecks(s, t, pre)

	call := g.ccCallExpr(t, pre)
	switch {
	case t.RetIndirect:
		pre.RequireInclude(g.cfg.SupportHeader("construct_at.h"))
		s.Linef("crubit::construct_at(__return, %s);", call)
	case retSpelling == "void":
		s.Linef("%s;", call)
	default:
		s.Linef("return %s;", call)
	}
	s.Pop()
	s.Line("}")
}

func (g *Generator) emitNoAliasChecks(s *tokens.Stream, t *Thunk, pre *tokens.Prereqs) {
	refArg := func(p ThunkParam) (string, bool) {
		cc := p.M.CcThunkSpelling
		if strings.HasSuffix(cc, "&") || strings.HasSuffix(cc, "&&") {
			return "&" + ccName(p.Name), true
		}
		return "", false
	}
	emitted := false
	for i, p := range t.Params {
		if !p.M.NeedsNoAlias {
			continue
		}
		self, ok := refArg(p)
		if !ok {
			continue
		}
		var others []string
		if t.This != nil {
			others = append(others, "__this")
		}
		for j, q := range t.Params {
			if i == j {
				continue
			}
			if other, ok := refArg(q); ok {
				others = append(others, other)
			}
		}
		for _, other := range others {
			s.Linef("CRUBIT_CHECK_NO_ALIAS(%s, %s);", self, other)
			emitted = true
		}
	}
	if emitted {
		pre.RequireInclude(g.cfg.SupportHeader("check_no_alias.h"))
	}
}

// ccCallExpr builds the forwarded C++ call. By-value non-trivial parameters
// arrive through hidden in-pointers and are destructively moved out.
func (g *Generator) ccCallExpr(t *Thunk, pre *tokens.Prereqs) string {
	f := t.Func
	args := make([]string, 0, len(t.Params))
	for _, p := range t.Params {
		name := ccName(p.Name)
		if p.M.NeedsIndirection {
			args = append(args, fmt.Sprintf("std::move(*%s)", name))
			continue
		}
		cc := p.M.CcThunkSpelling
		if strings.HasSuffix(cc, "*") && strings.HasSuffix(p.M.CcSpelling, "&&") {
			// Rvalue references travel as pointers; restore the value
			// category at the call site.
			args = append(args, fmt.Sprintf("std::move(*%s)", name))
			continue
		}
		args = append(args, name)
	}
	argList := strings.Join(args, ", ")

	switch f.Kind {
	case ir.Method:
		return fmt.Sprintf("__this->%s(%s)", f.Name, argList)
	case ir.Operator:
		if len(args) == 1 {
			return fmt.Sprintf("(*__this %s %s)", f.OperatorName, args[0])
		}
		return fmt.Sprintf("%s(*__this)", f.OperatorName)
	case ir.Constructor:
		pre.RequireInclude(g.cfg.SupportHeader("construct_at.h"))
		return fmt.Sprintf("crubit::construct_at(__this%s)", prefixComma(argList))
	case ir.Destructor:
		return "std::destroy_at(__this)"
	default:
		return fmt.Sprintf("%s(%s)", g.ccFuncName(f), argList)
	}
}

func prefixComma(args string) string {
	if args == "" {
		return ""
	}
	return ", " + args
}

// ccFuncName spells the qualified C++ name of a free function.
func (g *Generator) ccFuncName(f *ir.Func) string {
	return strings.Join(g.ccPath(f), "::")
}
