package names

import (
	"sort"
	"strings"

	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
)

// Target selects the language whose reserved words apply.
type Target int

const (
	RustTarget Target = iota
	CppTarget
)

// CanonicalName is the fully resolved target name of a definition.
type CanonicalName struct {
	// Crate is the top-level module the definition belongs to, after
	// crate_renames.
	Crate string
	// Path holds the namespace components, already escaped.
	Path []string
	// Local is the escaped local identifier.
	Local string
}

// Qualified renders the namespace path and local name, relative to the crate
// root, with the given separator. Crate is not part of the rendering.
func (c CanonicalName) Qualified(sep string) string {
	parts := make([]string, 0, len(c.Path)+1)
	parts = append(parts, c.Path...)
	parts = append(parts, c.Local)
	return strings.Join(parts, sep)
}

// path is one discovered route to a definition during the BFS.
type path struct {
	components []string
	docHidden  bool
}

// Resolver computes canonical names and alias paths for every definition
// reachable from the crate root. Resolution is deterministic: when multiple
// public paths reach the same definition, the canonical one is selected by a
// stable sort (not doc-hidden first, then shortest, then lexicographic).
type Resolver struct {
	provider ir.Provider
	target   Target
	crate    string
	renames  map[string]string

	paths     map[ir.DefID][]path
	canonical map[ir.DefID]CanonicalName
	aliases   map[ir.DefID][][]string
}

// NewResolver walks the provider once and indexes every public path.
func NewResolver(p ir.Provider, target Target, sourceCrate string, renames map[string]string) *Resolver {
	r := &Resolver{
		provider:  p,
		target:    target,
		crate:     sourceCrate,
		renames:   renames,
		paths:     map[ir.DefID][]path{},
		canonical: map[ir.DefID]CanonicalName{},
		aliases:   map[ir.DefID][][]string{},
	}
	r.walk()
	r.pick()
	return r
}

// walk performs a BFS from the crate root over visible children, collecting
// every public path and whether any ancestor on it is doc-hidden.
func (r *Resolver) walk() {
	type frame struct {
		id        ir.DefID
		prefix    []string
		docHidden bool
	}
	queue := []frame{{id: r.provider.Root()}}
	// Bounded by paths, not by visited nodes: the same definition may be
	// reachable through several re-export routes and all of them count as
	// aliases. Namespace recursion is bounded because namespace nesting is a
	// tree in the IR.
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		for _, childID := range r.provider.Children(f.id) {
			child, ok := r.provider.Item(childID)
			if !ok || !child.IsVisible() {
				continue
			}
			hidden := f.docHidden || child.Attrs().DocHidden
			target := childID
			if use, isUse := child.(*ir.UseDecl); isUse {
				target = use.Target
			}
			name := r.localName(child)
			full := append(append([]string{}, f.prefix...), name)
			r.paths[target] = append(r.paths[target], path{components: full, docHidden: hidden})
			switch child.(type) {
			case *ir.Namespace:
				queue = append(queue, frame{id: childID, prefix: full, docHidden: hidden})
			case *ir.Record:
				// Members of a record live in the record's enclosing scope:
				// methods surface through impl blocks (or member functions)
				// emitted at namespace level under their own local name.
				queue = append(queue, frame{id: childID, prefix: f.prefix, docHidden: hidden})
			}
		}
	}
}

// localName applies the rename attribute or mechanical escaping.
func (r *Resolver) localName(item ir.Item) string {
	if override := r.override(item); override != "" {
		return override
	}
	return r.escape(item.LocalName())
}

func (r *Resolver) override(item ir.Item) string {
	switch r.target {
	case RustTarget:
		return item.Attrs().RustName
	default:
		return item.Attrs().CppName
	}
}

func (r *Resolver) escape(ident string) string {
	if r.target == RustTarget {
		return EscapeRust(ident)
	}
	return EscapeCpp(ident)
}

func (r *Resolver) keyword(ident string) bool {
	if r.target == RustTarget {
		return IsRustKeyword(ident)
	}
	return IsCppKeyword(ident)
}

// pick selects the canonical path per definition and demotes the rest to
// aliases.
func (r *Resolver) pick() {
	crate := r.crate
	if renamed, ok := r.renames[crate]; ok {
		crate = renamed
	}
	for id, paths := range r.paths {
		sorted := make([]path, len(paths))
		copy(sorted, paths)
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if a.docHidden != b.docHidden {
				return !a.docHidden
			}
			if len(a.components) != len(b.components) {
				return len(a.components) < len(b.components)
			}
			return strings.Join(a.components, "\x00") < strings.Join(b.components, "\x00")
		})
		best := sorted[0].components
		r.canonical[id] = CanonicalName{
			Crate: crate,
			Path:  best[:len(best)-1],
			Local: best[len(best)-1],
		}
		for _, p := range sorted[1:] {
			if !equalPath(p.components, best) {
				r.aliases[id] = append(r.aliases[id], p.components)
			}
		}
	}
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Canonical returns the canonical name of id. An error means the definition
// has no public path, or its explicit rename collides with a reserved word.
func (r *Resolver) Canonical(id ir.DefID) (CanonicalName, error) {
	item, ok := r.provider.Item(id)
	if ok {
		if override := r.override(item); override != "" && r.keyword(override) {
			span := item.Pos()
			return CanonicalName{}, errors.Newf(errors.NR002, &span,
				"explicit rename %q of '%s' is a reserved word", override, item.LocalName())
		}
	}
	name, found := r.canonical[id]
	if !found {
		var span *ir.Span
		local := "<unknown>"
		if ok {
			s := item.Pos()
			span = &s
			local = item.LocalName()
		}
		return CanonicalName{}, errors.Newf(errors.NR001, span,
			"no public path from the crate root reaches '%s'", local)
	}
	return name, nil
}

// Aliases returns the non-canonical public paths of id, each fully escaped,
// sorted for deterministic emission.
func (r *Resolver) Aliases(id ir.DefID) [][]string {
	out := make([][]string, len(r.aliases[id]))
	copy(out, r.aliases[id])
	sort.Slice(out, func(i, j int) bool {
		return strings.Join(out[i], "\x00") < strings.Join(out[j], "\x00")
	})
	return out
}

// AliasAttrsTarget implements the alias traversal rule: when a type alias is
// the canonical spelling of its underlying type, the alias's rename
// attributes apply to the underlying definition.
func AliasAttrsTarget(p ir.Provider, alias *ir.TypeAlias) ir.DefID {
	switch u := ir.Unalias(alias.Underlying).(type) {
	case *ir.RecordType:
		return u.Def
	case *ir.EnumType:
		return u.Def
	}
	return alias.ID()
}
