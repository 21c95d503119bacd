// Package rsgen generates Rust bindings for a C++ translation unit: the
// Rust-side API module plus the C++ thunk file that supplies the glue
// callable across the ABI boundary.
package rsgen

import (
	"fmt"
	"strings"

	"github.com/crubit/bindgen/internal/db"
	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/feature"
	"github.com/crubit/bindgen/internal/ir"
)

// Location is the position a type appears in. Position influences mapping:
// references are permitted in parameter, return and const positions only.
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

// Mapped is the translation of one source type at one location.
type Mapped struct {
	// Spelling is the idiomatic Rust spelling of the type.
	Spelling string
	// ThunkSpelling is the spelling used in the Rust extern "C" thunk
	// declaration. It differs from Spelling when the value is passed through
	// a hidden pointer.
	ThunkSpelling string
	// CcSpelling is the C++ spelling used in the thunk definition.
	CcSpelling string
	// CcThunkSpelling is the C++ spelling of the thunk-side parameter.
	CcThunkSpelling string

	// ABICompatible means the value may cross the extern "C" boundary by
	// value without indirection.
	ABICompatible bool
	// NeedsIndirection means this by-value position must pass through a
	// hidden pointer (non-trivial-for-calls record).
	NeedsIndirection bool
	// NeedsNoAlias marks mutable references whose thunk must carry a
	// runtime no-aliasing check.
	NeedsNoAlias bool
	// NoLifetime marks a reference degraded to a raw pointer because its
	// lifetime was elided.
	NoLifetime bool

	Lifetimes []ir.Lifetime
	Features  feature.Set
}

var primSpellings = map[ir.PrimKind][2]string{
	ir.Unit:  {"()", "void"},
	ir.Bool:  {"bool", "bool"},
	ir.Char:  {"::core::ffi::c_char", "char"},
	ir.I8:    {"i8", "std::int8_t"},
	ir.U8:    {"u8", "std::uint8_t"},
	ir.I16:   {"i16", "std::int16_t"},
	ir.U16:   {"u16", "std::uint16_t"},
	ir.I32:   {"i32", "std::int32_t"},
	ir.U32:   {"u32", "std::uint32_t"},
	ir.I64:   {"i64", "std::int64_t"},
	ir.U64:   {"u64", "std::uint64_t"},
	ir.Isize: {"isize", "std::intptr_t"},
	ir.Usize: {"usize", "std::uintptr_t"},
	ir.F32:   {"f32", "float"},
	ir.F64:   {"f64", "double"},
}

// MapType translates a source type at the given location. Results and
// failures are cached in the database per (type, location); a cached failure
// is returned without being re-derived.
func (g *Generator) MapType(d *db.DB, t ir.Type, loc Location) (*Mapped, error) {
	key := db.TypeKey(t, loc.String())
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
		return g.mapPrimitive(t)
	case *ir.Pointer:
		return g.mapPointer(d, t)
	case *ir.Reference:
		return g.mapReference(d, t, loc)
	case *ir.RvalueReference:
		return g.mapRvalueReference(d, t, loc)
	case *ir.FuncPtr:
		return g.mapFuncPtr(d, t)
	case *ir.RecordType:
		return g.mapRecord(d, t, loc)
	case *ir.EnumType:
		return g.mapEnum(d, t)
	case *ir.AliasType:
		return g.mapAlias(d, t, loc)
	case *ir.IncompleteType:
		return g.mapIncomplete(t, loc)
	case *ir.OtherType:
		return g.mapOther(d, t)
	default:
		return nil, errors.Newf(errors.TM001, nil, "type '%s' has no Rust representation", t)
	}
}

func (g *Generator) mapPrimitive(t *ir.Primitive) (*Mapped, error) {
	sp, ok := primSpellings[t.Kind]
	if !ok {
		return nil, errors.Newf(errors.TM001, nil, "unknown primitive type '%s'", t)
	}
	features := feature.Of(feature.ExternC)
	if t.Kind == ir.Char {
		// Plain `char` has platform-dependent signedness; its c_char mapping
		// is gated separately from the width-exact integer types.
		features = features.With(feature.Supported)
	}
	return &Mapped{
		Spelling:        sp[0],
		ThunkSpelling:   sp[0],
		CcSpelling:      sp[1],
		CcThunkSpelling: sp[1],
		ABICompatible:   true,
		Features:        features,
	}, nil
}

func (g *Generator) mapPointer(d *db.DB, t *ir.Pointer) (*Mapped, error) {
	inner, err := g.MapType(d, t.Pointee, OtherLoc)
	if err != nil {
		return nil, err
	}
	qual, ccQual := "*const ", "const %s*"
	if t.Mut {
		qual, ccQual = "*mut ", "%s*"
	}
	return &Mapped{
		Spelling:        qual + inner.Spelling,
		ThunkSpelling:   qual + inner.ThunkBase(),
		CcSpelling:      fmt.Sprintf(ccQual, inner.CcSpelling),
		CcThunkSpelling: fmt.Sprintf(ccQual, inner.CcSpelling),
		ABICompatible:   true,
		Lifetimes:       inner.Lifetimes,
		Features:        feature.Of(feature.ExternC).Union(inner.Features),
	}, nil
}

// ThunkBase returns the spelling usable as a pointee in thunk signatures;
// unit becomes c_void because `*const ()` is not a useful C pointee.
func (m *Mapped) ThunkBase() string {
	if m.Spelling == "()" {
		return "::core::ffi::c_void"
	}
	return m.Spelling
}

func (g *Generator) mapReference(d *db.DB, t *ir.Reference, loc Location) (*Mapped, error) {
	if loc == FieldLoc || loc == OtherLoc {
		return nil, errors.Newf(errors.TM003, nil,
			"can't format reference type '%s': references are only supported in parameter, return and const positions", t)
	}
	inner, err := g.MapType(d, t.Referent, OtherLoc)
	if err != nil {
		return nil, err
	}
	if t.Lifetime.Elided() {
		// No lifetime to carry: degrade to a raw pointer, const-ness
		// preserved. The function generator marks the binding unsafe.
		qual, ccQual := "*const ", "const %s*"
		if t.Mut {
			qual, ccQual = "*mut ", "%s*"
		}
		return &Mapped{
			Spelling:        qual + inner.ThunkBase(),
			ThunkSpelling:   qual + inner.ThunkBase(),
			CcSpelling:      fmt.Sprintf(ccQual, inner.CcSpelling),
			CcThunkSpelling: fmt.Sprintf(ccQual, inner.CcSpelling),
			ABICompatible:   true,
			NoLifetime:      true,
			Lifetimes:       inner.Lifetimes,
			Features:        feature.Of(feature.ExternC).Union(inner.Features),
		}, nil
	}
	mut, ccRef := "", "const %s&"
	if t.Mut {
		mut, ccRef = "mut ", "%s&"
	}
	spelling := fmt.Sprintf("&%s %s%s", t.Lifetime, mut, inner.Spelling)
	return &Mapped{
		Spelling:        spelling,
		ThunkSpelling:   spelling,
		CcSpelling:      fmt.Sprintf(ccRef, inner.CcSpelling),
		CcThunkSpelling: fmt.Sprintf(ccRef, inner.CcSpelling),
		ABICompatible:   true,
		NeedsNoAlias:    t.Mut,
		Lifetimes:       append([]ir.Lifetime{t.Lifetime}, inner.Lifetimes...),
		Features:        feature.Of(feature.Experimental).Union(inner.Features),
	}, nil
}

func (g *Generator) mapRvalueReference(d *db.DB, t *ir.RvalueReference, loc Location) (*Mapped, error) {
	if loc == FieldLoc || loc == OtherLoc {
		return nil, errors.Newf(errors.TM003, nil,
			"can't format reference type '%s': references are only supported in parameter, return and const positions", t)
	}
	inner, err := g.MapType(d, t.Referent, OtherLoc)
	if err != nil {
		return nil, err
	}
	lifetime := t.Lifetime
	if lifetime.Elided() {
		return nil, errors.Newf(errors.TM004, nil,
			"rvalue reference to '%s' crosses the boundary without a lifetime", t.Referent)
	}
	kind := "RvalueReference"
	ccRef := "%s&&"
	if !t.Mut {
		kind = "ConstRvalueReference"
		ccRef = "const %s&&"
	}
	return &Mapped{
		Spelling:        fmt.Sprintf("::ctor::%s<%s, %s>", kind, lifetime, inner.Spelling),
		ThunkSpelling:   fmt.Sprintf("*mut %s", inner.ThunkBase()),
		CcSpelling:      fmt.Sprintf(ccRef, inner.CcSpelling),
		CcThunkSpelling: inner.CcSpelling + "*",
		ABICompatible:   true,
		Lifetimes:       append([]ir.Lifetime{lifetime}, inner.Lifetimes...),
		Features:        feature.Of(feature.Experimental).Union(inner.Features),
	}, nil
}

func (g *Generator) mapFuncPtr(d *db.DB, t *ir.FuncPtr) (*Mapped, error) {
	var params, ccParams []string
	var lifetimes []ir.Lifetime
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
		params = append(params, inner.Spelling)
		ccParams = append(ccParams, inner.CcSpelling)
		lifetimes = append(lifetimes, inner.Lifetimes...)
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
	features = features.Union(ret.Features)

	abi := t.ABI
	if abi == "" {
		abi = "C"
	}
	sig := fmt.Sprintf("extern %q fn(%s)", abi, strings.Join(params, ", "))
	if !ir.IsUnit(t.Return) {
		sig += " -> " + ret.Spelling
	}
	spelling := sig
	if !t.NonNull {
		spelling = fmt.Sprintf("Option<%s>", sig)
	}
	ccSpelling := fmt.Sprintf("%s (*)(%s)", ret.CcSpelling, strings.Join(ccParams, ", "))
	return &Mapped{
		Spelling:        spelling,
		ThunkSpelling:   spelling,
		CcSpelling:      ccSpelling,
		CcThunkSpelling: ccSpelling,
		ABICompatible:   true,
		Lifetimes:       lifetimes,
		Features:        features,
	}, nil
}

func (g *Generator) mapRecord(d *db.DB, t *ir.RecordType, loc Location) (*Mapped, error) {
	item, ok := d.Provider.Item(t.Def)
	if !ok {
		return nil, errors.Newf(errors.IR001, nil, "record '%s' is not in the snapshot", t.Name)
	}
	rec, ok := item.(*ir.Record)
	if !ok {
		return nil, errors.Newf(errors.IR001, nil, "'%s' is not a record", t.Name)
	}
	if rec.IsBridge() {
		// Bridge records are erased; uses refer to the bridge target type.
		return &Mapped{
			Spelling:        rec.Attr.Bridge,
			ThunkSpelling:   rec.Attr.Bridge,
			CcSpelling:      g.ccQualified(rec),
			CcThunkSpelling: g.ccQualified(rec),
			ABICompatible:   rec.SameABI,
			Features:        feature.Of(feature.Supported),
		}, nil
	}
	if rec.Shape == nil && (loc == Parameter || loc == Return || loc == FieldLoc) {
		span := rec.Pos()
		return nil, errors.Newf(errors.RG001, &span,
			"record '%s' has no computable layout and cannot be used by value", rec.LocalName())
	}
	if rec.Abstract && (loc == Parameter || loc == Return) {
		span := rec.Pos()
		return nil, errors.Newf(errors.RG003, &span,
			"abstract record '%s' cannot be passed by value", rec.LocalName())
	}
	if (loc == Parameter || loc == Return) && rec.Members.Destructor == ir.Unavailable {
		span := rec.Pos()
		return nil, errors.Newf(errors.TM006, &span,
			"record '%s' cannot be passed by value: its destructor is unavailable", rec.LocalName())
	}
	name, err := g.Resolver.Canonical(t.Def)
	if err != nil {
		return nil, err
	}
	spelling := "crate::" + name.Qualified("::")
	features := feature.Of(feature.Experimental)
	if rec.Unpin() {
		features = feature.Of(feature.ExternC)
	}
	m := &Mapped{
		Spelling:        spelling,
		ThunkSpelling:   spelling,
		CcSpelling:      g.ccQualified(rec),
		CcThunkSpelling: g.ccQualified(rec),
		// Record types are never directly compatible by value unless
		// explicitly proven: the bindings may have replaced field types, so
		// the conservative classification preserves soundness.
		ABICompatible: rec.SameABI,
		Features:      features,
	}
	if (loc == Parameter || loc == Return) && !m.ABICompatible {
		m.NeedsIndirection = true
		m.ThunkSpelling = "*mut " + spelling
		m.CcThunkSpelling = g.ccQualified(rec) + "*"
	}
	return m, nil
}

func (g *Generator) mapEnum(d *db.DB, t *ir.EnumType) (*Mapped, error) {
	en, ok := ir.EnumOf(d.Provider, t)
	if !ok {
		return nil, errors.Newf(errors.IR001, nil, "enum '%s' is not in the snapshot", t.Name)
	}
	if en.Opaque {
		return nil, errors.Newf(errors.TM001, nil, "opaque enum '%s' has no Rust representation", t.Name)
	}
	name, err := g.Resolver.Canonical(en.ID())
	if err != nil {
		return nil, err
	}
	spelling := "crate::" + name.Qualified("::")
	return &Mapped{
		Spelling:        spelling,
		ThunkSpelling:   spelling,
		CcSpelling:      g.ccQualifiedItem(en),
		CcThunkSpelling: g.ccQualifiedItem(en),
		ABICompatible:   true,
		Features:        feature.Of(feature.Supported),
	}, nil
}

func (g *Generator) mapAlias(d *db.DB, t *ir.AliasType, loc Location) (*Mapped, error) {
	// The alias name is preserved in the emitted spelling; ABI and layout
	// decisions use the underlying type.
	under, err := g.MapType(d, t.Underlying, loc)
	if err != nil {
		return nil, err
	}
	name, err := g.Resolver.Canonical(t.Def)
	if err != nil {
		return nil, err
	}
	m := *under
	m.Spelling = "crate::" + name.Qualified("::")
	if !m.NeedsIndirection {
		m.ThunkSpelling = m.Spelling
	}
	m.Features = m.Features.With(feature.Experimental)
	return &m, nil
}

func (g *Generator) mapIncomplete(t *ir.IncompleteType, loc Location) (*Mapped, error) {
	if loc == Parameter || loc == Return || loc == FieldLoc {
		return nil, errors.Newf(errors.TM002, nil,
			"incomplete record '%s' cannot be used by value; only pointers and references to it are supported", t.Name)
	}
	spelling := fmt.Sprintf("crate::%s", EscapeLocal(t.Name))
	return &Mapped{
		Spelling:        spelling,
		ThunkSpelling:   spelling,
		CcSpelling:      t.Name,
		CcThunkSpelling: t.Name,
		ABICompatible:   false,
		Features:        feature.Of(feature.Wrapper),
	}, nil
}

func (g *Generator) mapOther(d *db.DB, t *ir.OtherType) (*Mapped, error) {
	features := feature.Of(feature.Experimental)
	var args []string
	for _, a := range t.Args {
		inner, err := g.MapType(d, a, OtherLoc)
		if err != nil {
			return nil, err
		}
		args = append(args, inner.Spelling)
		features = features.Union(inner.Features)
	}
	spelling := t.Name
	if len(args) > 0 {
		spelling = fmt.Sprintf("%s<%s>", t.Name, strings.Join(args, ", "))
	}
	return &Mapped{
		Spelling:        spelling,
		ThunkSpelling:   spelling,
		CcSpelling:      t.String(),
		CcThunkSpelling: t.String(),
		ABICompatible:   t.SameABI,
		Features:        features,
	}, nil
}
