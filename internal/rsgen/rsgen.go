package rsgen

import (
	"fmt"
	"strings"

	"github.com/crubit/bindgen/internal/config"
	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
	"github.com/crubit/bindgen/internal/names"
	"github.com/crubit/bindgen/internal/tokens"
)

// Generator holds the per-run state of the Rust-from-C++ direction: the name
// resolver, the precomputed source order and the overload collision table.
type Generator struct {
	Resolver *names.Resolver
	cfg      *config.Config
	prov     ir.Provider

	orders     map[ir.DefID]int
	collisions map[ir.DefID]string
}

// NewGenerator indexes the snapshot: canonical names, source order, and
// overload collisions on canonical target names.
func NewGenerator(provider ir.Provider, cfg *config.Config) *Generator {
	g := &Generator{
		Resolver:   names.NewResolver(provider, names.RustTarget, cfg.SourceCrate, cfg.CrateRenames),
		cfg:        cfg,
		prov:       provider,
		orders:     map[ir.DefID]int{},
		collisions: map[ir.DefID]string{},
	}
	for i, id := range ir.SortedIDs(provider.Items()) {
		g.orders[id] = i
	}
	g.findCollisions(provider)
	return g
}

// findCollisions groups visible functions by enclosing scope and canonical
// local name. Two functions sharing a canonical target name collide and both
// become commented stubs. Single-parameter constructors are exempt: they
// become From impls and do not collide. Collisions never cross scopes.
func (g *Generator) findCollisions(provider ir.Provider) {
	type key struct {
		scope ir.DefID
		name  string
	}
	groups := map[key][]*ir.Func{}
	for _, item := range provider.Items() {
		f, ok := item.(*ir.Func)
		if !ok || !f.IsVisible() {
			continue
		}
		if f.Kind == ir.Constructor && len(f.Params) == 1 {
			continue
		}
		local := f.LocalName()
		if f.Attr.RustName != "" {
			local = f.Attr.RustName
		} else {
			local = names.EscapeRust(local)
		}
		k := key{scope: f.ParentID(), name: local}
		groups[k] = append(groups[k], f)
	}
	for k, funcs := range groups {
		if len(funcs) < 2 {
			continue
		}
		for _, f := range funcs {
			g.collisions[f.ID()] = fmt.Sprintf(
				"%d overloads share the target name '%s'; overloaded functions are not supported", len(funcs), k.name)
		}
	}
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
	case *ir.ForwardDecl:
		return g.GenForwardDecl(d, item)
	case *ir.Namespace:
		// Namespaces materialize through the scope paths of their children.
		return nil, nil
	default:
		return nil, errors.Newf(errors.TM001, nil, "item '%s' has no Rust binding", item.LocalName())
	}
}

// gate verifies that the features required by a snippet are enabled for both
// the defining and the consuming crate.
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
			return errors.WrapReport(errors.New(errors.FG001, &span, "%s", err.Error()).
				WithData("missing", g.cfg.FeaturesFor(label).Missing(need).Names()))
		}
	}
	return nil
}

// namespacePath returns the scope the item's main API lives under.
func (g *Generator) namespacePath(id ir.DefID) []string {
	name, err := g.Resolver.Canonical(id)
	if err != nil {
		return nil
	}
	return name.Path
}

// newSnippet builds an empty snippet in the item's namespace.
func (g *Generator) newSnippet(item ir.Item) *tokens.ApiSnippet {
	return tokens.NewSnippet(item.ID(), g.namespacePath(item.ID()), g.Order(item.ID()))
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

// emitDoc writes the item's documentation plus the synthesized source
// trailer.
func (g *Generator) emitDoc(s *tokens.Stream, item ir.Item) {
	for _, line := range item.DocLines() {
		s.Linef("/// %s", line)
	}
	if len(item.DocLines()) > 0 {
		s.Line("///")
	}
	s.Linef("/// Generated from: %s", g.cfg.DebugPath(item.Pos()))
}

// ccQualified spells the fully qualified C++ name of a record, walking the
// enclosing namespaces with their original names.
func (g *Generator) ccQualified(rec *ir.Record) string {
	return g.ccQualifiedItem(rec)
}

func (g *Generator) ccQualifiedItem(item ir.Item) string {
	return strings.Join(g.ccPath(item), "::")
}

func (g *Generator) ccPath(item ir.Item) []string {
	var parts []string
	cur := item
	for {
		parts = append([]string{cur.LocalName()}, parts...)
		parentID := cur.ParentID()
		if parentID == 0 {
			break
		}
		parent, ok := g.provider().Item(parentID)
		if !ok {
			break
		}
		if _, isNS := parent.(*ir.Namespace); !isNS {
			if _, isRec := parent.(*ir.Record); !isRec {
				break
			}
		}
		cur = parent
	}
	return parts
}

func (g *Generator) provider() ir.Provider { return g.prov }

// EscapeLocal escapes a bare identifier for the Rust target.
func EscapeLocal(ident string) string { return names.EscapeRust(ident) }
