package rsgen

import (
	"github.com/crubit/bindgen/internal/assemble"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// frame implements the Rust-side framing: module scopes, one `mod detail`
// for the extern "C" declarations, and the C++ preamble of the thunk file.
type frame struct {
	g *Generator
}

// Frame returns the assembler framing for this direction.
func (g *Generator) Frame() assemble.Frame {
	return &frame{g: g}
}

func (f *frame) APIPreamble(out *tokens.Stream, includes []string) {
	out.Line("// Automatically @generated Rust bindings for the following C++ target:")
	out.Linef("// %s", f.g.cfg.SourceCrate)
	out.Linef("// Features: %s", f.g.cfg.FeaturesFor(f.g.cfg.SourceCrate))
	out.Blank()
	out.Line("#![rustfmt::skip]")
	out.Line("#![allow(nonstandard_style)]")
	out.Line("#![allow(dead_code, unused_mut)]")
	out.Blank()
}

func (f *frame) APIPostamble(out *tokens.Stream) {}

func (f *frame) ImplPreamble(out *tokens.Stream, includes []string) {
	out.Line("// Automatically @generated C++ thunks for the following C++ target:")
	out.Linef("// %s", f.g.cfg.SourceCrate)
	out.Blank()
	out.Line("#include <cstddef>")
	out.Line("#include <memory>")
	out.Line("#include <utility>")
	for _, inc := range includes {
		out.Linef("#include %q", inc)
	}
	out.Blank()
}

func (f *frame) OpenScope(out *tokens.Stream, name string) {
	out.Linef("pub mod %s {", name)
}

func (f *frame) CloseScope(out *tokens.Stream, name string) {
	out.Line("}")
}

func (f *frame) OpenDetail(out *tokens.Stream) {
	out.Line("mod detail {")
	out.Push()
	out.Line("#[allow(unused_imports)]")
	out.Line("use super::*;")
	out.Line("unsafe extern \"C\" {")
	out.Pop()
}

func (f *frame) CloseDetail(out *tokens.Stream) {
	out.Push()
	out.Line("}")
	out.Pop()
	out.Line("}")
}

// DetailFirst: Rust items may reference the detail module regardless of
// order, so the extern declarations trail the API.
func (f *frame) DetailFirst() bool { return false }

func (f *frame) ForwardDeclare(out *tokens.Stream, id ir.DefID) {
	item, ok := f.g.provider().Item(id)
	if !ok {
		return
	}
	local := EscapeLocal(item.LocalName())
	out.Linef("forward_declare::forward_declare!(pub %s = forward_declare::symbol!(%q));", local, item.LocalName())
}

// KeepForwardDecl: Rust items may reference later items freely, so forward
// declarations matter only for records that never get a definition.
func (f *frame) KeepForwardDecl(defined bool) bool {
	return !defined
}
