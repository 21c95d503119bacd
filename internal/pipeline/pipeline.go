// Package pipeline provides the unified binding-generation pipeline: it
// walks the IR snapshot, builds one ApiSnippet per exported item through the
// memoizing database, degrades failures to commented stubs, and assembles
// the two output streams.
package pipeline

import (
	"time"

	"github.com/crubit/bindgen/internal/assemble"
	"github.com/crubit/bindgen/internal/ccgen"
	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/rsgen"
	"github.com/crubit/bindgen/internal/tokens"
)

// Direction selects which realization of the generator runs.
type Direction int

const (
	// RustFromCc emits a Rust API module plus C++ thunks.
	RustFromCc Direction = iota
	// CcFromRust emits a C++ header plus Rust thunks.
	CcFromRust
)

// Result contains the pipeline output: the two token streams serialized to
// text, the diagnostics, and per-phase timings.
type Result struct {
	API     string
	APIImpl string

	Reports      []*errors.Report
	PhaseTimings map[string]int64 // milliseconds
}

// direction adapts the two generator realizations to one pipeline.
type direction interface {
	Generate(d *db.DB, item ir.Item) (*tokens.ApiSnippet, error)
	Frame() assemble.Frame
	Path(id ir.DefID) string
	Order(id ir.DefID) int
}

type rsDirection struct{ *rsgen.Generator }

func (r rsDirection) Path(id ir.DefID) string {
	name, err := r.Resolver.Canonical(id)
	if err != nil {
		return "<unknown>"
	}
	return name.Qualified("::")
}

type ccDirection struct{ *ccgen.Generator }

func (c ccDirection) Path(id ir.DefID) string {
	name, err := c.Resolver.Canonical(id)
	if err != nil {
		return "<unknown>"
	}
	return name.Qualified("::")
}

// Run executes the pipeline over one snapshot.
func Run(dir Direction, cfg *config.Config, provider ir.Provider, reporter *errors.Reporter) (Result, error) {
	result := Result{PhaseTimings: map[string]int64{}}

	start := time.Now()
	var gen direction
	switch dir {
	case RustFromCc:
		gen = rsDirection{rsgen.NewGenerator(provider, cfg)}
	default:
		gen = ccDirection{ccgen.NewGenerator(provider, cfg)}
	}
	database := db.New(provider, cfg, reporter, gen.Generate)
	result.PhaseTimings["index"] = time.Since(start).Milliseconds()

	// Phase: generate. Errors do not propagate up the item tree; each item
	// is independently bindable or not.
	start = time.Now()
	var snippets []*tokens.ApiSnippet
	for _, id := range ir.SortedIDs(provider.Items()) {
		item, ok := provider.Item(id)
		if !ok || !item.IsVisible() {
			continue
		}
		snippet, err := database.Snippet(id)
		if err != nil {
			if item.Attrs().MustBind {
				span := item.Pos()
				rep := errors.New(errors.FG001, &span,
					"must-bind item '%s' failed to bind: %s", gen.Path(id), reportText(err))
				if inner, ok := errors.AsReport(err); ok {
					rep.Code = inner.Code
					rep.Phase = inner.Phase
				}
				reporter.Fatal(rep)
				result.Reports = reporter.All()
				return result, errors.WrapReport(rep)
			}
			reporter.ReportErr("pipeline", err)
			snippets = append(snippets, stubFor(dir, item, gen.Path(id), cfg, err))
			continue
		}
		if snippet != nil && !snippet.IsEmpty() {
			snippets = append(snippets, snippet)
		}
	}
	result.PhaseTimings["generate"] = time.Since(start).Milliseconds()

	// Phase: assemble.
	start = time.Now()
	assembled, err := assemble.Assemble(gen.Frame(), snippets)
	if err != nil {
		reporter.ReportErr("assemble", err)
		result.Reports = reporter.All()
		return result, err
	}
	result.PhaseTimings["assemble"] = time.Since(start).Milliseconds()

	result.API = assembled.API.String()
	result.APIImpl = assembled.APIImpl.String()
	result.Reports = reporter.All()
	return result, nil
}

func stubFor(dir Direction, item ir.Item, path string, cfg *config.Config, err error) *tokens.ApiSnippet {
	if dir == RustFromCc {
		return rsgen.Stub(item, path, cfg, err)
	}
	return ccgen.Stub(item, path, cfg, err)
}

func reportText(err error) string {
	if rep, ok := errors.AsReport(err); ok {
		return rep.Message
	}
	return err.Error()
}
