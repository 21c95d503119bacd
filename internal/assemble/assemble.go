// Package assemble orders generated snippets so every prerequisite precedes
// its dependents, materializes forward declarations, coalesces namespace
// scopes and stitches the file preambles.
package assemble

import (
	"fmt"
	"sort"
	"strings"

	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// Frame abstracts the target-language framing: scope syntax, forward
// declarations, detail scopes and file preambles. Each direction implements
// its own frame.
type Frame interface {
	// APIPreamble opens the target-language header/module.
	APIPreamble(out *tokens.Stream, includes []string)
	// APIPostamble closes it (explicit include guards need an endif).
	APIPostamble(out *tokens.Stream)
	// ImplPreamble opens the source-language thunk file.
	ImplPreamble(out *tokens.Stream, includes []string)

	OpenScope(out *tokens.Stream, name string)
	CloseScope(out *tokens.Stream, name string)

	// OpenDetail and CloseDetail bracket the coalesced extern "C"
	// declarations. DetailFirst places the block before the main API, which
	// declaration-before-use targets need.
	OpenDetail(out *tokens.Stream)
	CloseDetail(out *tokens.Stream)
	DetailFirst() bool

	// ForwardDeclare emits a forward declaration for the definition.
	ForwardDeclare(out *tokens.Stream, id ir.DefID)
	// KeepForwardDecl decides whether a forward declaration is still needed
	// given whether the full definition appears in the output.
	KeepForwardDecl(defined bool) bool
}

// Result carries the two assembled token streams.
type Result struct {
	API     *tokens.Stream
	APIImpl *tokens.Stream
}

// Assemble builds the final output. Ordering is deterministic: topological
// on definition prereqs, ties broken by source order.
func Assemble(frame Frame, snippets []*tokens.ApiSnippet) (*Result, error) {
	ordered, err := topoSort(snippets)
	if err != nil {
		return nil, err
	}

	defined := map[ir.DefID]bool{}
	for _, s := range ordered {
		if !s.FwdDeclOnly && !s.MainAPI.IsEmpty() {
			defined[s.Item] = true
		}
	}

	includes := map[string]bool{}
	for _, s := range ordered {
		for _, inc := range s.Prereqs.SortedIncludes() {
			includes[inc] = true
		}
	}
	sortedIncludes := make([]string, 0, len(includes))
	for inc := range includes {
		sortedIncludes = append(sortedIncludes, inc)
	}
	sort.Strings(sortedIncludes)

	api := tokens.NewStream()
	frame.APIPreamble(api, sortedIncludes)

	// Forward declarations that are not satisfied by an emitted definition
	// (or that the target language needs regardless) come first.
	fwdIDs := map[ir.DefID]bool{}
	for _, s := range ordered {
		ids := s.Prereqs.SortedFwdDecls()
		if frame.DetailFirst() {
			// Detail-first targets see the extern declarations before any
			// definition, so every referenced definition needs a preceding
			// declaration too.
			ids = append(ids, s.Prereqs.SortedDefs()...)
		}
		for _, id := range ids {
			if frame.KeepForwardDecl(defined[id]) {
				fwdIDs[id] = true
			}
		}
	}
	sortedFwd := make([]ir.DefID, 0, len(fwdIDs))
	for id := range fwdIDs {
		sortedFwd = append(sortedFwd, id)
	}
	sort.Slice(sortedFwd, func(i, j int) bool { return sortedFwd[i] < sortedFwd[j] })
	for _, id := range sortedFwd {
		frame.ForwardDeclare(api, id)
	}
	if len(sortedFwd) > 0 {
		api.Blank()
	}

	// Extern "C" declarations coalesce into one detail scope, placed before
	// or after the main API as the target language requires.
	detail := tokens.NewStream()
	hasDecls := false
	for _, s := range ordered {
		if !s.ExternDecls.IsEmpty() {
			hasDecls = true
			break
		}
	}
	if hasDecls {
		detail.Blank()
		frame.OpenDetail(detail)
		detail.Push()
		detail.Push()
		for _, s := range ordered {
			detail.Append(s.ExternDecls)
		}
		detail.Pop()
		detail.Pop()
		frame.CloseDetail(detail)
	}

	if frame.DetailFirst() {
		api.Append(detail)
	}
	emitScoped(frame, api, ordered, func(s *tokens.ApiSnippet) *tokens.Stream { return s.MainAPI })
	emitScoped(frame, api, ordered, func(s *tokens.ApiSnippet) *tokens.Stream { return s.Details })
	if !frame.DetailFirst() {
		api.Append(detail)
	}
	frame.APIPostamble(api)

	impl := tokens.NewStream()
	frame.ImplPreamble(impl, sortedIncludes)
	for _, s := range ordered {
		if !s.Thunks.IsEmpty() {
			impl.Blank()
			impl.Append(s.Thunks)
		}
	}

	return &Result{API: api, APIImpl: impl}, nil
}

// emitScoped writes one stream per snippet, coalescing consecutive snippets
// that share a parent namespace to minimize open/close overhead.
func emitScoped(frame Frame, out *tokens.Stream, ordered []*tokens.ApiSnippet, pick func(*tokens.ApiSnippet) *tokens.Stream) {
	var open []string
	for _, s := range ordered {
		stream := pick(s)
		if stream.IsEmpty() {
			continue
		}
		target := s.Namespace
		common := 0
		for common < len(open) && common < len(target) && open[common] == target[common] {
			common++
		}
		for i := len(open) - 1; i >= common; i-- {
			out.Pop()
			frame.CloseScope(out, open[i])
		}
		for i := common; i < len(target); i++ {
			frame.OpenScope(out, target[i])
			out.Push()
		}
		open = target
		out.Blank()
		out.Append(stream)
	}
	for i := len(open) - 1; i >= 0; i-- {
		out.Pop()
		frame.CloseScope(out, open[i])
	}
}

// topoSort orders snippets so every definition prerequisite precedes its
// dependents. DFS post-order gives dependency order directly; a cycle that
// was not broken through a forward declaration is an assembly error.
func topoSort(snippets []*tokens.ApiSnippet) ([]*tokens.ApiSnippet, error) {
	byItem := map[ir.DefID]*tokens.ApiSnippet{}
	for _, s := range snippets {
		byItem[s.Item] = s
	}
	roots := make([]*tokens.ApiSnippet, len(snippets))
	copy(roots, snippets)
	sort.SliceStable(roots, func(i, j int) bool {
		if roots[i].Order != roots[j].Order {
			return roots[i].Order < roots[j].Order
		}
		return roots[i].Item < roots[j].Item
	})

	visited := map[ir.DefID]bool{}
	inPath := map[ir.DefID]bool{}
	var sorted []*tokens.ApiSnippet
	var cyclePath []ir.DefID

	var dfs func(s *tokens.ApiSnippet) error
	dfs = func(s *tokens.ApiSnippet) error {
		if visited[s.Item] {
			return nil
		}
		if inPath[s.Item] {
			var parts []string
			for _, id := range cyclePath {
				parts = append(parts, fmt.Sprintf("%d", id))
			}
			parts = append(parts, fmt.Sprintf("%d", s.Item))
			return errors.Newf(errors.ASM001, nil,
				"definition cycle not broken by forward declarations: %s", strings.Join(parts, " -> "))
		}
		inPath[s.Item] = true
		cyclePath = append(cyclePath, s.Item)
		for _, dep := range s.Prereqs.SortedDefs() {
			if dep == s.Item {
				continue
			}
			if depSnippet, ok := byItem[dep]; ok {
				if err := dfs(depSnippet); err != nil {
					return err
				}
			}
		}
		visited[s.Item] = true
		inPath[s.Item] = false
		cyclePath = cyclePath[:len(cyclePath)-1]
		sorted = append(sorted, s)
		return nil
	}

	for _, s := range roots {
		if err := dfs(s); err != nil {
			return nil, err
		}
	}
	return sorted, nil
}
