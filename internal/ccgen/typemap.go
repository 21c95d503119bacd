package ccgen

import (
	"fmt"
	"strings"

	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
)

// Location mirrors the positions a type may appear in.
type Location int

const (
	Parameter Location = iota
	Return
	ConstLoc
	FieldLoc
	OtherLoc
)

func (l Location) String() string {
	switch l {
	case Parameter:
		return "parameter"
	case Return:
		return "return"
	case ConstLoc:
		return "const"
	case FieldLoc:
		return "field"
	default:
		return "other"
	}
}

// Mapped is the translation of one Rust type into its C++ spelling.
type Mapped struct {
	// Spelling is the C++ spelling used in the public header.
	Spelling string
	// ThunkSpelling is the C++ spelling in the extern "C" declaration.
	ThunkSpelling string
	// RsSpelling is the Rust spelling used in the thunk definitions.
	RsSpelling string
	// RsThunkSpelling is the Rust spelling of the thunk-side parameter.
	RsThunkSpelling string

	ABICompatible    bool
	NeedsIndirection bool

	Features feature.Set
}

var primSpellings = map[ir.PrimKind][2]string{
	ir.Unit:  {"void", "()"},
	ir.Bool:  {"bool", "bool"},
	ir.Char:  {"char", "::core::ffi::c_char"},
	ir.I8:    {"std::int8_t", "i8"},
	ir.U8:    {"std::uint8_t", "u8"},
	ir.I16:   {"std::int16_t", "i16"},
	ir.U16:   {"std::uint16_t", "u16"},
	ir.I32:   {"std::int32_t", "i32"},
	ir.U32:   {"std::uint32_t", "u32"},
	ir.I64:   {"std::int64_t", "i64"},
	ir.U64:   {"std::uint64_t", "u64"},
	ir.Isize: {"std::intptr_t", "isize"},
	ir.Usize: {"std::uintptr_t", "usize"},
	ir.F32:   {"float", "f32"},
	ir.F64:   {"double", "f64"},
}

// MapType translates a Rust type at the given location, caching failures
// per (type, location).
func (g *Generator) MapType(d *db.DB, t ir.Type, loc Location) (*Mapped, error) {
	key := db.TypeKey(t, "cc:"+loc.String())
	if err, ok, _ := d.CachedTypeError(key); ok {
		return nil, err
	}
	m, err := g.mapType(d, t, loc)
	if err != nil {
		d.CacheTypeError(key, err)
		return nil, err
	}
	return m, nil
}

func (g *Generator) mapType(d *db.DB, t ir.Type, loc Location) (*Mapped, error) {
	switch t := t.(type) {
	case *ir.Primitive:
		sp, ok := primSpellings[t.Kind]
		if !ok {
			return nil, errors.Newf(errors.TM001, nil, "unknown primitive type '%s'", t)
		}
		features := feature.Of(feature.ExternC)
		if t.Kind == ir.Char {
			features = features.With(feature.Supported)
		}
		return &Mapped{
			Spelling:        sp[0],
			ThunkSpelling:   sp[0],
			RsSpelling:      sp[1],
			RsThunkSpelling: sp[1],
			ABICompatible:   true,
			Features:        features,
		}, nil
	case *ir.Pointer:
		inner, err := g.MapType(d, t.Pointee, OtherLoc)
		if err != nil {
			return nil, err
		}
		cc, rs := "const %s*", "*const "
		if t.Mut {
			cc, rs = "%s*", "*mut "
		}
		return &Mapped{
			Spelling:        fmt.Sprintf(cc, inner.Spelling),
			ThunkSpelling:   fmt.Sprintf(cc, inner.Spelling),
			RsSpelling:      rs + inner.rsBase(),
			RsThunkSpelling: rs + inner.rsBase(),
			ABICompatible:   true,
			Features:        feature.Of(feature.ExternC).Union(inner.Features),
		}, nil
	case *ir.Reference:
		if loc == FieldLoc || loc == OtherLoc {
			return nil, errors.Newf(errors.TM003, nil,
				"can't format reference type '%s': references are only supported in parameter, return and const positions", t)
		}
		inner, err := g.MapType(d, t.Referent, OtherLoc)
		if err != nil {
			return nil, err
		}
		if t.Lifetime.Elided() && loc != ConstLoc {
			return nil, errors.Newf(errors.TM004, nil,
				"reference to '%s' crosses the boundary without a lifetime", t.Referent)
		}
		cc := "const %s&"
		rs := "&"
		if t.Mut {
			cc = "%s&"
			rs = "&mut "
		}
		return &Mapped{
			Spelling:        fmt.Sprintf(cc, inner.Spelling),
			ThunkSpelling:   fmt.Sprintf(cc, inner.Spelling),
			RsSpelling:      rs + inner.RsSpelling,
			RsThunkSpelling: rs + inner.RsSpelling,
			ABICompatible:   true,
			Features:        feature.Of(feature.Supported).Union(inner.Features),
		}, nil
	case *ir.FuncPtr:
		var ccParams []string
		features := feature.Of(feature.Experimental)
		for _, p := range t.Params {
			inner, err := g.MapType(d, p, OtherLoc)
			if err != nil {
				return nil, err
			}
			if !inner.ABICompatible {
				return nil, errors.Newf(errors.TM005, nil,
					"function pointers cannot carry thunks, but parameter type '%s' requires one", p)
			}
			ccParams = append(ccParams, inner.Spelling)
			features = features.Union(inner.Features)
		}
		ret, err := g.MapType(d, t.Return, OtherLoc)
		if err != nil {
			return nil, err
		}
		if !ret.ABICompatible {
			return nil, errors.Newf(errors.TM005, nil,
				"function pointers cannot carry thunks, but return type '%s' requires one", t.Return)
		}
		spelling := fmt.Sprintf("%s (*)(%s)", ret.Spelling, strings.Join(ccParams, ", "))
		return &Mapped{
			Spelling:        spelling,
			ThunkSpelling:   spelling,
			RsSpelling:      t.String(),
			RsThunkSpelling: t.String(),
			ABICompatible:   true,
			Features:        features.Union(ret.Features),
		}, nil
	case *ir.RecordType:
		return g.mapRecord(d, t, loc)
	case *ir.EnumType:
		en, ok := ir.EnumOf(d.Provider, t)
		if !ok {
			return nil, errors.Newf(errors.IR001, nil, "enum '%s' is not in the snapshot", t.Name)
		}
		name, err := g.Resolver.Canonical(en.ID())
		if err != nil {
			return nil, err
		}
		spelling := "::" + name.Qualified("::")
		return &Mapped{
			Spelling:        spelling,
			ThunkSpelling:   spelling,
			RsSpelling:      g.rustQualified(en),
			RsThunkSpelling: g.rustQualified(en),
			ABICompatible:   true,
			Features:        feature.Of(feature.Supported),
		}, nil
	case *ir.AliasType:
		under, err := g.MapType(d, t.Underlying, loc)
		if err != nil {
			return nil, err
		}
		name, err := g.Resolver.Canonical(t.Def)
		if err != nil {
			return nil, err
		}
		m := *under
		m.Spelling = "::" + name.Qualified("::")
		m.Features = m.Features.With(feature.Experimental)
		return &m, nil
	case *ir.IncompleteType:
		if loc == Parameter || loc == Return || loc == FieldLoc {
			return nil, errors.Newf(errors.TM002, nil,
				"incomplete record '%s' cannot be used by value; only pointers and references to it are supported", t.Name)
		}
		return &Mapped{
			Spelling:        t.Name,
			ThunkSpelling:   t.Name,
			RsSpelling:      t.Name,
			RsThunkSpelling: t.Name,
			ABICompatible:   false,
			Features:        feature.Of(feature.Wrapper),
		}, nil
	case *ir.OtherType:
		return &Mapped{
			Spelling:        t.Name,
			ThunkSpelling:   t.Name,
			RsSpelling:      t.String(),
			RsThunkSpelling: t.String(),
			ABICompatible:   t.SameABI,
			Features:        feature.Of(feature.Experimental),
		}, nil
	default:
		return nil, errors.Newf(errors.TM001, nil, "type '%s' has no C++ representation", t)
	}
}

func (g *Generator) mapRecord(d *db.DB, t *ir.RecordType, loc Location) (*Mapped, error) {
	rec, ok := ir.RecordOf(d.Provider, t)
	if !ok {
		return nil, errors.Newf(errors.IR001, nil, "record '%s' is not in the snapshot", t.Name)
	}
	if rec.IsBridge() {
		return &Mapped{
			Spelling:        rec.Attr.Bridge,
			ThunkSpelling:   rec.Attr.Bridge,
			RsSpelling:      g.rustQualified(rec),
			RsThunkSpelling: g.rustQualified(rec),
			ABICompatible:   rec.SameABI,
			Features:        feature.Of(feature.Supported),
		}, nil
	}
	if rec.Shape == nil && (loc == Parameter || loc == Return || loc == FieldLoc) {
		span := rec.Pos()
		return nil, errors.Newf(errors.RG001, &span,
			"record '%s' has no computable layout and cannot be used by value", rec.LocalName())
	}
	name, err := g.Resolver.Canonical(rec.ID())
	if err != nil {
		return nil, err
	}
	spelling := "::" + name.Qualified("::")
	rs := g.rustQualified(rec)
	features := feature.Of(feature.Supported)
	if !rec.Unpin() {
		features = feature.Of(feature.Experimental)
	}
	m := &Mapped{
		Spelling:        spelling,
		ThunkSpelling:   spelling,
		RsSpelling:      rs,
		RsThunkSpelling: rs,
		ABICompatible:   rec.SameABI,
		Features:        features,
	}
	if (loc == Parameter || loc == Return) && !m.ABICompatible {
		m.NeedsIndirection = true
		m.ThunkSpelling = spelling + "*"
		m.RsThunkSpelling = "*mut " + rs
	}
	return m, nil
}

// rsBase returns a Rust spelling usable as a pointee.
func (m *Mapped) rsBase() string {
	if m.RsSpelling == "()" {
		return "::core::ffi::c_void"
	}
	return m.RsSpelling
}
