package tokens

import (
	"sort"

	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
)

// Prereqs records what must be in scope before a snippet's main API can be
// emitted: full definitions, forward declarations that suffice, header
// includes, and the features the snippet requires.
type Prereqs struct {
	Defs     map[ir.DefID]bool
	FwdDecls map[ir.DefID]bool
	Includes map[string]bool
	Features feature.Set
}

// NewPrereqs returns an empty prereq set.
func NewPrereqs() *Prereqs {
	return &Prereqs{
		Defs:     map[ir.DefID]bool{},
		FwdDecls: map[ir.DefID]bool{},
		Includes: map[string]bool{},
	}
}

// RequireDef records that the full definition of id must precede.
func (p *Prereqs) RequireDef(id ir.DefID) { p.Defs[id] = true }

// RequireFwd records that a forward declaration of id suffices.
func (p *Prereqs) RequireFwd(id ir.DefID) {
	if !p.Defs[id] {
		p.FwdDecls[id] = true
	}
}

// RequireInclude records a header include.
func (p *Prereqs) RequireInclude(path string) {
	if path != "" {
		p.Includes[path] = true
	}
}

// Merge folds other into p. Definition requirements absorb weaker
// forward-declaration requirements for the same id.
func (p *Prereqs) Merge(other *Prereqs) {
	if other == nil {
		return
	}
	for id := range other.Defs {
		p.Defs[id] = true
		delete(p.FwdDecls, id)
	}
	for id := range other.FwdDecls {
		if !p.Defs[id] {
			p.FwdDecls[id] = true
		}
	}
	for inc := range other.Includes {
		p.Includes[inc] = true
	}
	p.Features = p.Features.Union(other.Features)
}

// SortedDefs returns the definition prereqs in a stable order.
func (p *Prereqs) SortedDefs() []ir.DefID {
	return sortedIDs(p.Defs)
}

// SortedFwdDecls returns the forward-declaration prereqs in a stable order.
func (p *Prereqs) SortedFwdDecls() []ir.DefID {
	return sortedIDs(p.FwdDecls)
}

// SortedIncludes returns includes sorted lexicographically.
func (p *Prereqs) SortedIncludes() []string {
	out := make([]string, 0, len(p.Includes))
	for inc := range p.Includes {
		out = append(out, inc)
	}
	sort.Strings(out)
	return out
}

func sortedIDs(m map[ir.DefID]bool) []ir.DefID {
	out := make([]ir.DefID, 0, len(m))
	for id := range m {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ApiSnippet is the generated output for one item: the target-language main
// API, target-side details (thunk declarations, layout assertions, trait
// impls) and the source-language thunk definitions.
type ApiSnippet struct {
	Item ir.DefID
	// Namespace is the target scope path the main API lives under.
	Namespace []string
	// Order is the item's source order, used as the topological tiebreak.
	Order int

	MainAPI *Stream
	// Details holds target-side items without ordering constraints.
	Details *Stream
	// ExternDecls holds the extern "C" declarations the assembler coalesces
	// into a single detail scope.
	ExternDecls *Stream
	// Thunks holds the source-language thunk definitions (api_impl stream).
	Thunks *Stream

	Prereqs *Prereqs

	// FwdDeclOnly marks snippets that only forward-declare their item;
	// other items may depend on them without forcing the full definition.
	FwdDeclOnly bool
}

// NewSnippet returns a snippet with empty streams for the given item.
func NewSnippet(id ir.DefID, namespace []string, order int) *ApiSnippet {
	return &ApiSnippet{
		Item:        id,
		Namespace:   namespace,
		Order:       order,
		MainAPI:     NewStream(),
		Details:     NewStream(),
		ExternDecls: NewStream(),
		Thunks:      NewStream(),
		Prereqs:     NewPrereqs(),
	}
}

// IsEmpty reports whether the snippet carries no output at all.
func (s *ApiSnippet) IsEmpty() bool {
	return s == nil || (s.MainAPI.IsEmpty() && s.Details.IsEmpty() &&
		s.ExternDecls.IsEmpty() && s.Thunks.IsEmpty())
}
