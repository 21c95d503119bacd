package ccgen

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

// GenFunc emits the C++ binding of one Rust function: the inline wrapper in
// the header, the extern "C" declaration, and the Rust-side thunk.
func (g *Generator) GenFunc(d *db.DB, f *ir.Func) (*tokens.ApiSnippet, error) {
	span := f.Pos()
	switch {
	case f.Generic:
		return nil, errors.Newf(errors.FN001, &span,
			"generic functions are not supported: '%s'", f.DebugName())
	case f.Variadic:
		return nil, errors.Newf(errors.FN002, &span,
			"variadic functions are not supported: '%s'", f.DebugName())
	case f.Async:
		return nil, errors.Newf(errors.FN003, &span,
			"async functions are not supported: '%s'", f.DebugName())
	case f.Coroutine:
		return nil, errors.Newf(errors.FN004, &span,
			"coroutine-returning functions are not supported: '%s'", f.DebugName())
	case f.Kind == ir.Destructor:
		return nil, nil
	}

	var params []ThunkParam
	var features feature.Set
	if f.Self != ir.NoSelf && f.EnclosingRecord != 0 {
		// Methods surface as free functions taking the receiver first; the
		// C++ caller passes the object by reference.
		recv, err := g.receiverParam(d, f)
		if err != nil {
			return nil, err
		}
		params = append(params, *recv)
		features = features.Union(recv.M.Features)
	}
	for i, p := range f.Params {
		m, err := g.MapType(d, p.Type, Parameter)
		if err != nil {
			return nil, err
		}
		name := names.EscapeCpp(p.Name)
		if name == "" {
			name = fmt.Sprintf("__param_%d", i)
		}
		params = append(params, ThunkParam{Name: name, M: m})
		features = features.Union(m.Features)
	}
	ret, err := g.MapType(d, f.Return, Return)
	if err != nil {
		return nil, err
	}
	features = features.Union(ret.Features)

	name, err := g.Resolver.Canonical(f.ID())
	if err != nil {
		return nil, err
	}
	if err := g.gate(f, features, name.Qualified("::"), "function binding"); err != nil {
		return nil, err
	}

	s := g.newSnippet(f)
	s.Prereqs.Features = features
	g.requirePrereqs(s.Prereqs, f)

	thunk := g.thunkName(f)
	direct := f.ExternC && f.Unmangled && !ret.NeedsIndirection && !anyIndirect(params)
	if direct {
		thunk = f.Name
	}

	// The declaration sits directly above the wrapper so every type it
	// mentions is already ordered by the wrapper's own prereqs.
	s.MainAPI.Line("namespace __crubit_internal {")
	g.emitExternDecl(s.MainAPI, thunk, params, ret, f)
	s.MainAPI.Line("}  // namespace __crubit_internal")
	if !direct {
		g.emitRustThunk(s.Thunks, thunk, params, ret, f)
	}
	g.emitWrapper(s, f, name.Local, thunk, params, ret)
	return s, nil
}

// ThunkParam pairs a parameter name with its mapped type.
type ThunkParam struct {
	Name string
	M    *Mapped
}

// receiverParam maps a method receiver to an explicit first parameter.
func (g *Generator) receiverParam(d *db.DB, f *ir.Func) (*ThunkParam, error) {
	item, ok := d.Provider.Item(f.EnclosingRecord)
	if !ok {
		span := f.Pos()
		return nil, errors.Newf(errors.IR001, &span, "enclosing record of '%s' is not in the snapshot", f.DebugName())
	}
	rec, ok := item.(*ir.Record)
	if !ok {
		span := f.Pos()
		return nil, errors.Newf(errors.IR001, &span, "enclosing item of '%s' is not a record", f.DebugName())
	}
	recType := &ir.RecordType{Def: rec.ID(), Name: rec.LocalName()}
	var recv ir.Type = recType
	if f.Self != ir.SelfByValue {
		recv = &ir.Reference{
			Mut:      f.Self == ir.SelfMutRef,
			Lifetime: ir.Lifetime{Name: "__self", Synthesized: true},
			Referent: recType,
		}
	}
	m, err := g.MapType(d, recv, Parameter)
	if err != nil {
		return nil, err
	}
	return &ThunkParam{Name: "__self", M: m}, nil
}

func anyIndirect(params []ThunkParam) bool {
	for _, p := range params {
		if p.M.NeedsIndirection {
			return true
		}
	}
	return false
}

// emitExternDecl writes the C-linkage declaration into the given stream.
func (g *Generator) emitExternDecl(out *tokens.Stream, thunk string, params []ThunkParam, ret *Mapped, f *ir.Func) {
	var decl []string
	for _, p := range params {
		decl = append(decl, p.M.ThunkSpelling)
	}
	retSpelling := "void"
	if !ret.NeedsIndirection && ret.Spelling != "void" {
		retSpelling = ret.Spelling
	}
	if ret.NeedsIndirection {
		decl = append(decl, ret.ThunkSpelling)
	}
	attrs := ""
	if f.NoReturn {
		attrs = "[[noreturn]] "
	}
	out.Linef("extern \"C\" %s%s %s(%s);", attrs, retSpelling, thunk, strings.Join(decl, ", "))
}

// emitRustThunk writes the Rust shim that exposes the crate function with C
// linkage. The shim performs destructive reads of hidden in-pointers and
// writes non-trivial results through the hidden out-pointer.
func (g *Generator) emitRustThunk(out *tokens.Stream, thunk string, params []ThunkParam, ret *Mapped, f *ir.Func) {
	var decl []string
	var args []string
	for _, p := range params {
		decl = append(decl, fmt.Sprintf("%s: %s", p.Name, p.M.RsThunkSpelling))
		if p.M.NeedsIndirection {
			args = append(args, fmt.Sprintf("unsafe { %s.read() }", p.Name))
		} else {
			args = append(args, p.Name)
		}
	}
	retPart := ""
	if ret.NeedsIndirection {
		decl = append(decl, "__ret: "+ret.RsThunkSpelling)
	} else if f.NoReturn {
		retPart = " -> !"
	} else if ret.RsSpelling != "()" {
		retPart = " -> " + ret.RsThunkSpelling
	}
	call := fmt.Sprintf("%s(%s)", g.rustQualified(f), strings.Join(args, ", "))
	out.Line("#[unsafe(no_mangle)]")
	out.Linef("pub unsafe extern \"C\" fn %s(%s)%s {", thunk, strings.Join(decl, ", "), retPart)
	out.Push()
	if ret.NeedsIndirection {
		out.Linef("unsafe { __ret.write(%s) }", call)
	} else {
		out.Line(call)
	}
	out.Pop()
	out.Line("}")
}

// emitWrapper writes the inline header wrapper calling the thunk.
func (g *Generator) emitWrapper(s *tokens.ApiSnippet, f *ir.Func, local, thunk string, params []ThunkParam, ret *Mapped) {
	out := s.MainAPI
	g.emitDoc(out, f)
	var attrs []string
	if f.NoReturn {
		attrs = append(attrs, "[[noreturn]]")
	}
	if f.Attr.MustUseSet {
		if f.Attr.MustUse != "" {
			attrs = append(attrs, fmt.Sprintf("[[nodiscard(%q)]]", f.Attr.MustUse))
		} else {
			attrs = append(attrs, "[[nodiscard]]")
		}
	}
	if f.Attr.DeprecatedSet {
		if f.Attr.Deprecated != "" {
			attrs = append(attrs, fmt.Sprintf("[[deprecated(%q)]]", f.Attr.Deprecated))
		} else {
			attrs = append(attrs, "[[deprecated]]")
		}
	}
	for _, a := range attrs {
		out.Line(a)
	}
	var sig []string
	for _, p := range params {
		sig = append(sig, fmt.Sprintf("%s %s", p.M.Spelling, p.Name))
	}
	retSpelling := ret.Spelling
	if f.NoReturn {
		retSpelling = "void"
	}
	out.Linef("inline %s %s(%s) {", retSpelling, local, strings.Join(sig, ", "))
	out.Push()

	var args []string
	for _, p := range params {
		if p.M.NeedsIndirection {
			s.Prereqs.RequireInclude(g.cfg.SupportHeader("slot.h"))
			out.Linef("crubit::Slot<%s> __param_%s(std::move(%s));", p.M.Spelling, p.Name, p.Name)
			args = append(args, fmt.Sprintf("__param_%s.Get()", p.Name))
		} else {
			args = append(args, p.Name)
		}
	}
	call := fmt.Sprintf("__crubit_internal::%s(%s)", thunk, strings.Join(args, ", "))
	switch {
	case ret.NeedsIndirection:
		s.Prereqs.RequireInclude(g.cfg.SupportHeader("slot.h"))
		out.Linef("crubit::Slot<%s> __ret;", ret.Spelling)
		out.Linef("__crubit_internal::%s(%s);", thunk, strings.Join(append(args, "__ret.Get()"), ", "))
		out.Line("return std::move(__ret).AssumeInitAndTakeValue();")
	case ret.Spelling == "void" || f.NoReturn:
		out.Linef("%s;", call)
	default:
		out.Linef("return %s;", call)
	}
	out.Pop()
	out.Line("}")
}

// requirePrereqs records the definition/forward-declaration prereqs of a
// signature.
func (g *Generator) requirePrereqs(pre *tokens.Prereqs, f *ir.Func) {
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
		}
	}
	for _, p := range f.Params {
		require(p.Type, true)
	}
	require(f.Return, true)
}
