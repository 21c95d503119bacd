package rsgen

import (
	"fmt"
	"strings"

	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/names"
	"github.com/crubit/bindgen/internal/tokens"
)

// binOps maps source binary operators to the Rust operator-trait vocabulary.
var binOps = map[string][2]string{
	"+":  {"::core::ops::Add", "add"},
	"-":  {"::core::ops::Sub", "sub"},
	"*":  {"::core::ops::Mul", "mul"},
	"/":  {"::core::ops::Div", "div"},
	"%":  {"::core::ops::Rem", "rem"},
	"&":  {"::core::ops::BitAnd", "bitand"},
	"|":  {"::core::ops::BitOr", "bitor"},
	"^":  {"::core::ops::BitXor", "bitxor"},
	"<<": {"::core::ops::Shl", "shl"},
	">>": {"::core::ops::Shr", "shr"},
}

// assignOps maps compound-assignment operators to their trait.
var assignOps = map[string][2]string{
	"+=":  {"::core::ops::AddAssign", "add_assign"},
	"-=":  {"::core::ops::SubAssign", "sub_assign"},
	"*=":  {"::core::ops::MulAssign", "mul_assign"},
	"/=":  {"::core::ops::DivAssign", "div_assign"},
	"%=":  {"::core::ops::RemAssign", "rem_assign"},
	"&=":  {"::core::ops::BitAndAssign", "bitand_assign"},
	"|=":  {"::core::ops::BitOrAssign", "bitor_assign"},
	"^=":  {"::core::ops::BitXorAssign", "bitxor_assign"},
	"<<=": {"::core::ops::ShlAssign", "shl_assign"},
	">>=": {"::core::ops::ShrAssign", "shr_assign"},
}

// unaryOps maps unary operators (member operators with no parameters).
var unaryOps = map[string][2]string{
	"-": {"::core::ops::Neg", "neg"},
	"!": {"::core::ops::Not", "not"},
}

// GenFunc generates the binding for one function-like item.
func (g *Generator) GenFunc(d *db.DB, f *ir.Func) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	switch {
	case f.Generic:
		return nil, errors.Newf(errors.FN001, &span,
			"uninstantiated templates and generic functions are not supported: '%s'", f.DebugName())
	case f.Variadic:
		return nil, errors.Newf(errors.FN002, &span,
			"variadic functions are not supported: '%s'", f.DebugName())
	case f.Async:
		return nil, errors.Newf(errors.FN003, &span,
			"async functions are not supported: '%s'", f.DebugName())
	case f.Coroutine:
		return nil, errors.Newf(errors.FN004, &span,
			"coroutine-returning functions are not supported: '%s'", f.DebugName())
	}
	if reason, collides := g.collisions[f.ID()]; collides {
		return nil, errors.Newf(errors.FN005, &span, "%s", reason)
	}
	switch f.Kind {
	case ir.Destructor:
		// Destructors surface as the record's drop hook, not as callables.
		return nil, nil
	case ir.Constructor:
		return g.genConstructor(d, f)
	case ir.Operator:
		return g.genOperator(d, f)
	}
	return g.genCallable(d, f)
}

// sigParts is the translated signature shared by the plain-function and
// method paths.
type sigParts struct {
	params    []ThunkParam
	ret       *Mapped
	this      *Mapped
	rec       *ir.Record // enclosing record, nil for free functions
	lifetimes []ir.Lifetime
	features  feature.Set
	unsafe_   bool
}

func (g *Generator) translateSignature(d *db.DB, f *ir.Func) (*sigParts, error) {
	parts := &sigParts{}
	if f.EnclosingRecord != 0 {
		item, ok := d.Provider.Item(f.EnclosingRecord)
		if !ok {
			span := f.Pos()
			return nil, errors.Newf(errors.IR001, &span, "enclosing record of '%s' is not in the snapshot", f.DebugName())
		}
		parts.rec, _ = item.(*ir.Record)
	}
	for i, p := range f.Params {
		m, err := g.MapType(d, p.Type, Parameter)
		if err != nil {
			return nil, err
		}
		name := EscapeLocal(p.Name)
		if name == "" {
			name = fmt.Sprintf("__param_%d", i)
		}
		parts.params = append(parts.params, ThunkParam{Name: name, M: m})
		parts.features = parts.features.Union(m.Features)
		parts.lifetimes = appendLifetimes(parts.lifetimes, m.Lifetimes)
		if m.NoLifetime {
			parts.unsafe_ = true
		}
		if _, isPtr := ir.Unalias(p.Type).(*ir.Pointer); isPtr {
			// Raw pointers carry no lifetime the borrow checker can see.
			parts.unsafe_ = true
		}
	}
	ret, err := g.MapType(d, f.Return, Return)
	if err != nil {
		return nil, err
	}
	parts.ret = ret
	parts.features = parts.features.Union(ret.Features)
	parts.lifetimes = appendLifetimes(parts.lifetimes, ret.Lifetimes)
	parts.unsafe_ = parts.unsafe_ || f.Unsafe

	if f.Self != ir.NoSelf && parts.rec != nil {
		this, err := g.selfType(d, f, parts.rec)
		if err != nil {
			return nil, err
		}
		parts.this = this
		parts.lifetimes = appendLifetimes(parts.lifetimes, this.Lifetimes)
	}
	return parts, nil
}

// selfType maps the receiver to its thunk spelling.
func (g *Generator) selfType(d *db.DB, f *ir.Func, rec *ir.Record) (*Mapped, error) {
	name, err := g.Resolver.Canonical(rec.ID())
	if err != nil {
		return nil, err
	}
	spelling := "crate::" + name.Qualified("::")
	cc := g.ccQualified(rec)
	m := &Mapped{CcSpelling: cc, ABICompatible: true}
	switch f.Self {
	case ir.SelfRef:
		m.Spelling = "&self"
		m.ThunkSpelling = "*const " + spelling
		m.CcThunkSpelling = "const " + cc + "*"
	case ir.SelfMutRef:
		m.Spelling = "&mut self"
		m.ThunkSpelling = "*mut " + spelling
		m.CcThunkSpelling = cc + "*"
	case ir.SelfRvalueRef, ir.SelfConstRvalueRef:
		lt := ir.Lifetime{Name: "__self", Synthesized: true}
		kind := "RvalueReference"
		if f.Self == ir.SelfConstRvalueRef {
			kind = "ConstRvalueReference"
		}
		// The reference wrapper is repr(transparent) over the pointer, so it
		// travels through the thunk unchanged.
		m.Spelling = fmt.Sprintf("self: ::ctor::%s<%s, Self>", kind, lt)
		m.ThunkSpelling = fmt.Sprintf("::ctor::%s<%s, %s>", kind, lt, spelling)
		m.CcThunkSpelling = cc + "*"
		m.Lifetimes = []ir.Lifetime{lt}
		m.Features = feature.Of(feature.Experimental)
	case ir.SelfByValue:
		span := f.Pos()
		if !rec.Unpin() {
			return nil, errors.Newf(errors.TM006, &span,
				"by-value receiver of '%s' requires a trivially relocatable record", f.DebugName())
		}
		m.Spelling = "self"
		m.ThunkSpelling = "*mut " + spelling
		m.CcThunkSpelling = cc + "*"
		m.NeedsIndirection = true
	}
	if !rec.Unpin() && f.Self == ir.SelfMutRef {
		m.Spelling = "self: ::core::pin::Pin<&mut Self>"
	}
	return m, nil
}

// appendLifetimes dedupes by name while preserving first-appearance order.
// A synthesized lifetime arriving after a user lifetime of the same name gets
// a disambiguating suffix; user names are preserved.
func appendLifetimes(acc []ir.Lifetime, more []ir.Lifetime) []ir.Lifetime {
	for _, lt := range more {
		if lt.Elided() {
			continue
		}
		collided := false
		present := false
		for _, have := range acc {
			if have.Name == lt.Name {
				if have.Synthesized == lt.Synthesized {
					present = true
				} else if lt.Synthesized {
					collided = true
				} else {
					// A synthesized entry of this name is already in acc;
					// the user lifetime shares that declaration.
					present = true
				}
				break
			}
		}
		if present {
			continue
		}
		if collided {
			lt.Name = lt.Name + "_1"
		}
		acc = append(acc, lt)
	}
	return acc
}

func lifetimeGenerics(lifetimes []ir.Lifetime) string {
	if len(lifetimes) == 0 {
		return ""
	}
	parts := make([]string, len(lifetimes))
	for i, lt := range lifetimes {
		parts[i] = lt.String()
	}
	return "<" + strings.Join(parts, ", ") + ">"
}

// genCallable emits a free function or method binding.
func (g *Generator) genCallable(d *db.DB, f *ir.Func) (*tokens.ApiSnippet, error) {
	parts, err := g.translateSignature(d, f)
	if err != nil {
		return nil, err
	}
	name, err := g.Resolver.Canonical(f.ID())
	if err != nil {
		return nil, err
	}
	if err := g.gate(f, parts.features, name.Qualified("::"), f.Kind.String()+" binding"); err != nil {
		return nil, err
	}

	s := g.newSnippet(f)
	s.Prereqs.Features = parts.features
	g.requireSignaturePrereqs(s.Prereqs, f, parts)

	thunk := g.buildThunk(f, parts)
	g.emitRustDecl(s.ExternDecls, thunk)
	if g.needsThunk(f, parts.params, parts.ret) {
		g.emitCcThunk(s.Thunks, thunk, s.Prereqs)
	}

	target := s.MainAPI
	closeImpl := false
	if parts.rec != nil && parts.this != nil {
		target.Linef("impl %s {", "crate::"+mustCanonical(g, parts.rec.ID()).Qualified("::"))
		target.Push()
		closeImpl = true
	}
	g.emitDoc(target, f)
	g.emitAttrs(target, f)
	g.emitWrapper(target, f, name.Local, parts, thunk)
	if closeImpl {
		target.Pop()
		target.Line("}")
	}
	return s, nil
}

func mustCanonical(g *Generator, id ir.DefID) names.CanonicalName {
	name, err := g.Resolver.Canonical(id)
	if err != nil {
		// The enclosing record resolved earlier in the same query; failure
		// here is a broken invariant.
		panic(err)
	}
	return name
}

// emitAttrs writes must_use/deprecated carriage.
func (g *Generator) emitAttrs(s *tokens.Stream, f *ir.Func) {
	if f.Attr.MustUseSet {
		if f.Attr.MustUse != "" {
			s.Linef("#[must_use = %q]", f.Attr.MustUse)
		} else {
			s.Line("#[must_use]")
		}
	}
	if f.Attr.DeprecatedSet {
		if f.Attr.Deprecated != "" {
			s.Linef("#[deprecated = %q]", f.Attr.Deprecated)
		} else {
			s.Line("#[deprecated]")
		}
	}
}

// emitWrapper writes the inline wrapper that calls the thunk.
func (g *Generator) emitWrapper(s *tokens.Stream, f *ir.Func, localName string, parts *sigParts, thunk *Thunk) {
	var sigParams []string
	if parts.this != nil {
		sigParams = append(sigParams, parts.this.Spelling)
	}
	for _, p := range parts.params {
		sigParams = append(sigParams, fmt.Sprintf("%s: %s", p.Name, p.M.Spelling))
	}
	unsafeKw := ""
	if parts.unsafe_ {
		unsafeKw = "unsafe "
	}
	sig := fmt.Sprintf("pub %sfn %s%s(%s)",
		unsafeKw, localName, lifetimeGenerics(parts.lifetimes), strings.Join(sigParams, ", "))
	switch {
	case f.NoReturn:
		sig += " -> !"
	case !ir.IsUnit(f.Return):
		sig += " -> " + parts.ret.Spelling
	}
	s.Line("#[inline(always)]")
	s.Line(sig + " {")
	s.Push()
	g.emitWrapperBody(s, parts, thunk)
	s.Pop()
	s.Line("}")
}

// emitWrapperBody performs the parameter translations and the call. A
// non-trivial return allocates uninitialized storage, passes its address as
// the hidden last argument, and assumes init after the call.
func (g *Generator) emitWrapperBody(s *tokens.Stream, parts *sigParts, thunk *Thunk) {
	var args []string
	if parts.this != nil {
		switch parts.this.Spelling {
		case "&self":
			args = append(args, "self as *const Self as *const _")
		case "&mut self":
			args = append(args, "self as *mut Self as *mut _")
		case "self: ::core::pin::Pin<&mut Self>":
			args = append(args, "unsafe { self.get_unchecked_mut() as *mut Self as *mut _ }")
		case "self":
			s.Line("let mut __self = ::core::mem::ManuallyDrop::new(self);")
			args = append(args, "::core::ptr::addr_of_mut!(*__self) as *mut _")
		default:
			// Rvalue-reference receivers pass through unchanged.
			args = append(args, "self")
		}
	}
	for _, p := range parts.params {
		if p.M.NeedsIndirection {
			s.Linef("let mut %s = ::core::mem::ManuallyDrop::new(%s);", p.Name, p.Name)
			args = append(args, fmt.Sprintf("::core::ptr::addr_of_mut!(*%s)", p.Name))
			continue
		}
		args = append(args, p.Name)
	}
	call := fmt.Sprintf("crate::detail::%s(%s)", thunk.linkName(), strings.Join(args, ", "))
	if thunk.RetIndirect {
		s.Linef("let mut __return = ::core::mem::MaybeUninit::<%s>::uninit();", thunk.Ret.ThunkBase())
		s.Line("unsafe {")
		s.Push()
		retCall := fmt.Sprintf("crate::detail::%s(%s)", thunk.linkName(),
			strings.Join(append(args, "__return.as_mut_ptr()"), ", "))
		s.Linef("%s;", retCall)
		s.Line("__return.assume_init()")
		s.Pop()
		s.Line("}")
		return
	}
	s.Linef("unsafe { %s }", call)
}

// buildThunk assembles the thunk description for a translated signature.
func (g *Generator) buildThunk(f *ir.Func, parts *sigParts) *Thunk {
	t := &Thunk{
		Func:      f,
		This:      parts.this,
		Params:    parts.params,
		Ret:       parts.ret,
		Lifetimes: parts.lifetimes,
	}
	t.RetIndirect = parts.ret != nil && parts.ret.NeedsIndirection
	if g.needsThunk(f, parts.params, parts.ret) {
		t.Name = g.thunkName(f)
	} else {
		// Direct linkage: the target calls the foreign symbol by its
		// unmangled name, no shim emitted.
		t.Name = f.Name
	}
	return t
}

// requireSignaturePrereqs records definition/forward-declaration prereqs for
// every user type a signature mentions. By-value uses need the definition;
// uses behind a pointer are satisfied by a forward declaration.
func (g *Generator) requireSignaturePrereqs(pre *tokens.Prereqs, f *ir.Func, parts *sigParts) {
	var require func(t ir.Type, byValue bool)
	require = func(t ir.Type, byValue bool) {
		switch t := ir.Unalias(t).(type) {
		case *ir.RecordType:
			if byValue {
				pre.RequireDef(t.Def)
			} else {
				pre.RequireFwd(t.Def)
			}
		case *ir.EnumType:
			pre.RequireDef(t.Def)
		case *ir.Pointer:
			require(t.Pointee, false)
		case *ir.Reference:
			require(t.Referent, false)
		case *ir.RvalueReference:
			require(t.Referent, false)
		case *ir.FuncPtr:
			for _, p := range t.Params {
				require(p, true)
			}
			require(t.Return, true)
		}
	}
	for _, p := range f.Params {
		require(p.Type, true)
	}
	require(f.Return, true)
	if parts.rec != nil {
		pre.RequireDef(parts.rec.ID())
	}
}
