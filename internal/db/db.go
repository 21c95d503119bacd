// Package db implements the request-scoped query database. Every generator
// query is memoized here: building the same item twice is a cache hit, and
// type-level failures are cached per type so they are re-reported at most
// once.
//
// The database is single-threaded by design; one compilation run constructs
// one database and no suspension points exist inside it.
package db

import (
	"fmt"

	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

// GenerateFunc produces the snippet for one item. Direction-specific
// generators register themselves through it.
type GenerateFunc func(*DB, ir.Item) (*tokens.ApiSnippet, error)

type snippetResult struct {
	snippet *tokens.ApiSnippet
	err     error
}

// DB is the per-run query database.
type DB struct {
	Provider ir.Provider
	Cfg      *config.Config
	Reporter *errors.Reporter

	generate GenerateFunc

	snippets map[ir.DefID]*snippetResult
	fwds     map[ir.DefID]*snippetResult
	typeErrs map[string]error
	typeSeen map[string]bool
	inFlight map[ir.DefID]bool
}

// New constructs a database around a provider, a configuration block and a
// reporter capability.
func New(provider ir.Provider, cfg *config.Config, reporter *errors.Reporter, gen GenerateFunc) *DB {
	return &DB{
		Provider: provider,
		Cfg:      cfg,
		Reporter: reporter,
		generate: gen,
		snippets: map[ir.DefID]*snippetResult{},
		fwds:     map[ir.DefID]*snippetResult{},
		typeErrs: map[string]error{},
		typeSeen: map[string]bool{},
		inFlight: map[ir.DefID]bool{},
	}
}

// Snippet returns the (memoized) generated snippet for the item with the
// given identity. Generation of X may recursively request generation of a
// dependency Y; that is a direct synchronous call through this method.
//
// A cycle through definition queries is an internal invariant violation:
// record cycles must be broken through the distinct forward-declaration
// query, so reaching an in-flight definition again aborts the run.
func (d *DB) Snippet(id ir.DefID) (*tokens.ApiSnippet, error) {
	if res, ok := d.snippets[id]; ok {
		return res.snippet, res.err
	}
	item, ok := d.Provider.Item(id)
	if !ok {
		err := errors.Newf(errors.IR001, nil, "definition %d is not in the snapshot", id)
		d.snippets[id] = &snippetResult{err: err}
		return nil, err
	}
	if d.inFlight[id] {
		rep := errors.New(errors.ASM001, nil,
			"definition cycle through '%s' not broken by a forward declaration", item.LocalName())
		d.Reporter.Fatal(rep)
		return nil, errors.WrapReport(rep)
	}
	d.inFlight[id] = true
	snippet, err := d.generate(d, item)
	delete(d.inFlight, id)
	d.snippets[id] = &snippetResult{snippet: snippet, err: err}
	return snippet, err
}

// ForwardDecl returns the (memoized) forward-declaration snippet for a
// record. The query is distinct from Snippet and acyclic with it: a handle
// query never depends on the definition query of the same record.
func (d *DB) ForwardDecl(id ir.DefID, build func(*ir.Record) *tokens.ApiSnippet) (*tokens.ApiSnippet, error) {
	if res, ok := d.fwds[id]; ok {
		return res.snippet, res.err
	}
	item, ok := d.Provider.Item(id)
	if !ok {
		err := errors.Newf(errors.IR001, nil, "definition %d is not in the snapshot", id)
		d.fwds[id] = &snippetResult{err: err}
		return nil, err
	}
	rec, ok := item.(*ir.Record)
	if !ok {
		err := errors.Newf(errors.IR001, nil, "definition %d is not a record", id)
		d.fwds[id] = &snippetResult{err: err}
		return nil, err
	}
	snippet := build(rec)
	d.fwds[id] = &snippetResult{snippet: snippet}
	return snippet, nil
}

// TypeKey builds the memo key for a type-level query.
func TypeKey(t ir.Type, location string) string {
	return fmt.Sprintf("%s@%s", t, location)
}

// CachedTypeError returns the cached failure for a type query, if any. The
// second result reports whether a failure is cached; the third reports
// whether the failure was already surfaced to the reporter, so callers can
// avoid duplicate reports.
func (d *DB) CachedTypeError(key string) (error, bool, bool) {
	err, ok := d.typeErrs[key]
	return err, ok, d.typeSeen[key]
}

// CacheTypeError records a type-level failure so later queries re-use it
// without re-deriving or re-reporting.
func (d *DB) CacheTypeError(key string, err error) {
	d.typeErrs[key] = err
	d.typeSeen[key] = true
}
