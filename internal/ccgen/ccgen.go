// Package ccgen generates C++ bindings for a Rust crate: the C++ header that
// exposes the crate's API plus the Rust thunk file that supplies the
// extern "C" glue.
package ccgen

import (
	"fmt"
	"strings"

	"github.com/crubit/bindgen/internal/assemble"
	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/names"
	"github.com/crubit/bindgen/internal/tokens"
)

// thunkPrefix starts every synthesized shim symbol.
const thunkPrefix = "__crubit_thunk_"

// Generator holds the per-run state of the C++-from-Rust direction.
type Generator struct {
	Resolver *names.Resolver
	cfg      *config.Config
	prov     ir.Provider

	orders map[ir.DefID]int
}

// NewGenerator indexes the snapshot for this direction.
func NewGenerator(provider ir.Provider, cfg *config.Config) *Generator {
	g := &Generator{
		Resolver: names.NewResolver(provider, names.CppTarget, cfg.SourceCrate, cfg.CrateRenames),
		cfg:      cfg,
		prov:     provider,
		orders:   map[ir.DefID]int{},
	}
	for i, id := range ir.SortedIDs(provider.Items()) {
		g.orders[id] = i
	}
	return g
}

// Order returns the source order index used as the topological tiebreak.
func (g *Generator) Order(id ir.DefID) int { return g.orders[id] }

// Generate is the db.GenerateFunc of this direction.
func (g *Generator) Generate(d *db.DB, item ir.Item) (*tokens.ApiSnippet, error) {
	switch item := item.(type) {
	case *ir.Func:
		return g.GenFunc(d, item)
	case *ir.Record:
		return g.GenRecord(d, item)
	case *ir.Enum:
		return g.GenEnum(d, item)
	case *ir.TypeAlias:
		return g.GenAlias(d, item)
	case *ir.Const:
		return g.GenConst(d, item)
	case *ir.UseDecl:
		return g.GenUse(d, item)
	case *ir.Namespace:
		return nil, nil
	default:
		span := item.Pos()
		return nil, errors.Newf(errors.TM001, &span, "item '%s' has no C++ binding", item.LocalName())
	}
}

func (g *Generator) gate(item ir.Item, need feature.Set, symbol, reason string) error {
	if need.IsEmpty() {
		return nil
	}
	for _, label := range []string{item.Crate(), g.cfg.SourceCrate} {
		if label == "" {
			continue
		}
		if err := feature.Check(label, g.cfg.FeaturesFor(label), need, symbol, reason); err != nil {
			span := item.Pos()
			return errors.Newf(errors.FG001, &span, "%s", err.Error())
		}
	}
	return nil
}

func (g *Generator) namespacePath(id ir.DefID) []string {
	name, err := g.Resolver.Canonical(id)
	if err != nil {
		return nil
	}
	return name.Path
}

func (g *Generator) newSnippet(item ir.Item) *tokens.ApiSnippet {
	return tokens.NewSnippet(item.ID(), g.namespacePath(item.ID()), g.Order(item.ID()))
}

// rustQualified spells the fully qualified Rust path of an item for use in
// the thunk file, which is compiled as part of the bound crate.
func (g *Generator) rustQualified(item ir.Item) string {
	var parts []string
	cur := item
	for {
		if cur.LocalName() != "" {
			parts = append([]string{cur.LocalName()}, parts...)
		}
		parentID := cur.ParentID()
		if parentID == 0 {
			break
		}
		parent, ok := g.prov.Item(parentID)
		if !ok {
			break
		}
		cur = parent
	}
	return "crate::" + strings.Join(parts, "::")
}

func (g *Generator) thunkName(f *ir.Func) string {
	if g.cfg.NoThunkNameMangling {
		return thunkPrefix + f.Name
	}
	return thunkPrefix + f.MangledName
}

func (g *Generator) specialThunkName(rec *ir.Record, op string) string {
	if g.cfg.NoThunkNameMangling {
		return fmt.Sprintf("%s%s_%s", thunkPrefix, op, rec.LocalName())
	}
	return fmt.Sprintf("%s%s_%s", thunkPrefix, op, rec.MangledName)
}

// Stub renders the commented stub an item degrades to when generation fails.
func Stub(item ir.Item, path string, cfg *config.Config, reason error) *tokens.ApiSnippet {
	s := tokens.NewSnippet(item.ID(), nil, int(item.ID()))
	msg := reason.Error()
	if rep, ok := errors.AsReport(reason); ok {
		msg = rep.Message
	}
	s.MainAPI.Linef("// Error generating bindings for %s defined at %s: %s",
		path, cfg.DebugPath(item.Pos()), msg)
	return s
}

// emitDoc writes the documentation comment plus the source trailer.
func (g *Generator) emitDoc(s *tokens.Stream, item ir.Item) {
	for _, line := range item.DocLines() {
		s.Linef("// %s", line)
	}
	s.Linef("// Generated from: %s", g.cfg.DebugPath(item.Pos()))
}

// frame implements the C++-side framing: namespaces, an extern "C" detail
// block, the include guard and the Rust preamble of the thunk file.
type frame struct {
	g *Generator
}

// Frame returns the assembler framing for this direction.
func (g *Generator) Frame() assemble.Frame {
	return &frame{g: g}
}

func (f *frame) APIPreamble(out *tokens.Stream, includes []string) {
	out.Line("// Automatically @generated C++ bindings for the following Rust crate:")
	out.Linef("// %s", f.g.cfg.SourceCrate)
	out.Linef("// Features: %s", f.g.cfg.FeaturesFor(f.g.cfg.SourceCrate))
	out.Blank()
	if f.g.cfg.IncludeGuard == config.IncludeGuardPragmaOnce {
		out.Line("#pragma once")
	} else {
		out.Linef("#ifndef %s", f.g.cfg.IncludeGuard)
		out.Linef("#define %s", f.g.cfg.IncludeGuard)
	}
	out.Blank()
	out.Line("#include <cstdint>")
	out.Line("#include <cstddef>")
	out.Line("#include <utility>")
	for _, inc := range includes {
		out.Linef("#include %q", inc)
	}
	out.Blank()
}

func (f *frame) APIPostamble(out *tokens.Stream) {
	if f.g.cfg.IncludeGuard != config.IncludeGuardPragmaOnce {
		out.Blank()
		out.Linef("#endif  // %s", f.g.cfg.IncludeGuard)
	}
}

func (f *frame) ImplPreamble(out *tokens.Stream, includes []string) {
	out.Line("// Automatically @generated Rust thunks for the following Rust crate:")
	out.Linef("// %s", f.g.cfg.SourceCrate)
	out.Blank()
	out.Line("#![allow(nonstandard_style, unused_unsafe)]")
	out.Blank()
}

func (f *frame) OpenScope(out *tokens.Stream, name string) {
	out.Linef("namespace %s {", name)
}

func (f *frame) CloseScope(out *tokens.Stream, name string) {
	out.Linef("}  // namespace %s", name)
}

func (f *frame) OpenDetail(out *tokens.Stream) {
	out.Line("namespace __crubit_internal {")
	out.Push()
	out.Line("extern \"C\" {")
	out.Pop()
}

func (f *frame) CloseDetail(out *tokens.Stream) {
	out.Push()
	out.Line("}  // extern \"C\"")
	out.Pop()
	out.Line("}  // namespace __crubit_internal")
}

// DetailFirst: C++ requires the extern "C" declarations before the inline
// wrappers that call them.
func (f *frame) DetailFirst() bool { return true }

func (f *frame) ForwardDeclare(out *tokens.Stream, id ir.DefID) {
	item, ok := f.g.prov.Item(id)
	if !ok {
		return
	}
	rec, isRec := item.(*ir.Record)
	if !isRec {
		// Enums and aliases cannot be forward-declared without their
		// underlying type; their definitions are ordered instead.
		return
	}
	name, err := f.g.Resolver.Canonical(id)
	if err != nil {
		return
	}
	kw := "struct"
	if rec.Union {
		kw = "union"
	}
	if len(name.Path) == 0 {
		out.Linef("%s %s;", kw, name.Local)
		return
	}
	out.Linef("namespace %s { %s %s; }", strings.Join(name.Path, "::"), kw, name.Local)
}

// KeepForwardDecl: C++ requires a declaration before every use, so forward
// declarations stay even when the definition appears later in the header.
func (f *frame) KeepForwardDecl(defined bool) bool {
	return true
}
