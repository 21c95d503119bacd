package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/tokens"
)

func snapshot() *ir.Snapshot {
	root := &ir.Namespace{ItemNode: ir.ItemNode{Def: 1, Visible: true}, Children: []ir.DefID{2}}
	rec := &ir.Record{ItemNode: ir.ItemNode{Def: 2, Name: "S", Parent: 1, Visible: true}}
	return ir.NewSnapshot(1, []ir.Item{root, rec})
}

func TestSnippetIsMemoized(t *testing.T) {
	calls := 0
	gen := func(d *DB, item ir.Item) (*tokens.ApiSnippet, error) {
		calls++
		return tokens.NewSnippet(item.ID(), nil, 0), nil
	}
	d := New(snapshot(), config.Default("x"), errors.NewReporter(func(*errors.Report) {}), gen)

	first, err := d.Snippet(2)
	require.NoError(t, err)
	second, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, calls, "emitting the same item twice is a cache hit")
}

func TestErrorsAreMemoizedToo(t *testing.T) {
	calls := 0
	gen := func(d *DB, item ir.Item) (*tokens.ApiSnippet, error) {
		calls++
		return nil, errors.Newf(errors.TM001, nil, "nope")
	}
	d := New(snapshot(), config.Default("x"), errors.NewReporter(func(*errors.Report) {}), gen)

	_, err1 := d.Snippet(2)
	_, err2 := d.Snippet(2)
	require.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.Equal(t, 1, calls)
}

func TestDanglingIdentity(t *testing.T) {
	gen := func(d *DB, item ir.Item) (*tokens.ApiSnippet, error) { return nil, nil }
	d := New(snapshot(), config.Default("x"), errors.NewReporter(func(*errors.Report) {}), gen)
	_, err := d.Snippet(42)
	require.Error(t, err)
	rep, ok := errors.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, errors.IR001, rep.Code)
}

func TestDefinitionCycleIsFatal(t *testing.T) {
	var fatal *errors.Report
	reporter := errors.NewReporter(func(rep *errors.Report) { fatal = rep })
	var d *DB
	gen := func(inner *DB, item ir.Item) (*tokens.ApiSnippet, error) {
		// A definition query that re-enters itself models a record cycle not
		// broken through the forward-declaration pathway.
		return inner.Snippet(item.ID())
	}
	d = New(snapshot(), config.Default("x"), reporter, gen)
	_, err := d.Snippet(2)
	require.Error(t, err)
	require.NotNil(t, fatal)
	assert.Equal(t, errors.ASM001, fatal.Code)
}

func TestTypeErrorCache(t *testing.T) {
	gen := func(d *DB, item ir.Item) (*tokens.ApiSnippet, error) { return nil, nil }
	d := New(snapshot(), config.Default("x"), errors.NewReporter(func(*errors.Report) {}), gen)

	key := TypeKey(&ir.Primitive{Kind: ir.Bool}, "field")
	_, ok, _ := d.CachedTypeError(key)
	assert.False(t, ok)

	cached := errors.Newf(errors.TM003, nil, "reference in field")
	d.CacheTypeError(key, cached)
	err, ok, seen := d.CachedTypeError(key)
	assert.True(t, ok)
	assert.True(t, seen)
	assert.Equal(t, cached, err)
}

func TestForwardDeclQueryIsDistinct(t *testing.T) {
	gen := func(d *DB, item ir.Item) (*tokens.ApiSnippet, error) {
		return tokens.NewSnippet(item.ID(), nil, 0), nil
	}
	d := New(snapshot(), config.Default("x"), errors.NewReporter(func(*errors.Report) {}), gen)
	builds := 0
	build := func(rec *ir.Record) *tokens.ApiSnippet {
		builds++
		s := tokens.NewSnippet(rec.ID(), nil, 0)
		s.FwdDeclOnly = true
		return s
	}
	first, err := d.ForwardDecl(2, build)
	require.NoError(t, err)
	second, err := d.ForwardDecl(2, build)
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, builds)

	// The definition query is untouched by the handle query.
	def, err := d.Snippet(2)
	require.NoError(t, err)
	assert.NotSame(t, first, def)
}
