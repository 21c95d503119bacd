package ir

import (
	"fmt"
	"strings"
)

// Type is the typed form of anything appearing in a signature or field.
// Types are ephemeral values built on demand during signature translation;
// only records, enums and aliases refer back to the item table.
type Type interface {
	String() string
	Equal(Type) bool
	typeNode()
}

// PrimKind enumerates the primitive types with their exact width and
// signedness. Platform-dependent source integers are resolved to their
// width-correct kind by the IR provider.
type PrimKind int

const (
	Unit PrimKind = iota // C++ void / Rust ()
	Bool
	Char // C/C++ char; maps to c_char, gated behind Supported
	I8
	U8
	I16
	U16
	I32
	U32
	I64
	U64
	Isize
	Usize
	F32
	F64
)

var primNames = map[PrimKind]string{
	Unit: "void", Bool: "bool", Char: "char",
	I8: "i8", U8: "u8", I16: "i16", U16: "u16",
	I32: "i32", U32: "u32", I64: "i64", U64: "u64",
	Isize: "isize", Usize: "usize", F32: "f32", F64: "f64",
}

// Primitive is a built-in scalar type or the unit/void type.
type Primitive struct {
	Kind PrimKind
}

func (p *Primitive) typeNode() {}
func (p *Primitive) String() string {
	return primNames[p.Kind]
}
func (p *Primitive) Equal(other Type) bool {
	o, ok := other.(*Primitive)
	return ok && p.Kind == o.Kind
}

// Lifetime is a named or elided scope identifier. The zero value is the
// elided lifetime.
type Lifetime struct {
	Name        string `json:"name"`
	Synthesized bool   `json:"synthesized,omitempty"`
}

// Elided reports whether the lifetime was never named.
func (l Lifetime) Elided() bool { return l.Name == "" }

func (l Lifetime) String() string {
	if l.Elided() {
		return "'_"
	}
	return "'" + l.Name
}

// Pointer is a raw pointer with const-ness.
type Pointer struct {
	Mut     bool
	Pointee Type
}

func (p *Pointer) typeNode() {}
func (p *Pointer) String() string {
	if p.Mut {
		return "*mut " + p.Pointee.String()
	}
	return "*const " + p.Pointee.String()
}
func (p *Pointer) Equal(other Type) bool {
	o, ok := other.(*Pointer)
	return ok && p.Mut == o.Mut && p.Pointee.Equal(o.Pointee)
}

// Reference is an lvalue reference carrying a lifetime. A reference whose
// lifetime is elided degrades to a raw pointer in parameter and return
// positions and is an error elsewhere.
type Reference struct {
	Mut      bool
	Lifetime Lifetime
	Referent Type
}

func (r *Reference) typeNode() {}
func (r *Reference) String() string {
	m := ""
	if r.Mut {
		m = "mut "
	}
	return fmt.Sprintf("&%s %s%s", r.Lifetime, m, r.Referent)
}
func (r *Reference) Equal(other Type) bool {
	o, ok := other.(*Reference)
	return ok && r.Mut == o.Mut && r.Lifetime == o.Lifetime && r.Referent.Equal(o.Referent)
}

// RvalueReference is a C++ T&& / const T&&.
type RvalueReference struct {
	Mut      bool
	Lifetime Lifetime
	Referent Type
}

func (r *RvalueReference) typeNode() {}
func (r *RvalueReference) String() string {
	return r.Referent.String() + "&&"
}
func (r *RvalueReference) Equal(other Type) bool {
	o, ok := other.(*RvalueReference)
	return ok && r.Mut == o.Mut && r.Lifetime == o.Lifetime && r.Referent.Equal(o.Referent)
}

// FuncPtr is a function pointer. Function pointers cannot carry thunks, so
// every parameter and return type must be directly ABI-compatible.
type FuncPtr struct {
	ABI     string // calling convention, "C" when unspecified
	Params  []Type
	Return  Type
	NonNull bool
}

func (f *FuncPtr) typeNode() {}
func (f *FuncPtr) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("extern %q fn(%s) -> %s", f.ABI, strings.Join(params, ", "), f.Return)
}
func (f *FuncPtr) Equal(other Type) bool {
	o, ok := other.(*FuncPtr)
	if !ok || f.ABI != o.ABI || f.NonNull != o.NonNull || len(f.Params) != len(o.Params) {
		return false
	}
	for i := range f.Params {
		if !f.Params[i].Equal(o.Params[i]) {
			return false
		}
	}
	return f.Return.Equal(o.Return)
}

// RecordType refers to a complete record definition by identity.
type RecordType struct {
	Def  DefID
	Name string // local name, for display only
}

func (r *RecordType) typeNode() {}
func (r *RecordType) String() string { return r.Name }
func (r *RecordType) Equal(other Type) bool {
	o, ok := other.(*RecordType)
	return ok && r.Def == o.Def
}

// EnumType refers to an enum definition by identity.
type EnumType struct {
	Def  DefID
	Name string
}

func (e *EnumType) typeNode() {}
func (e *EnumType) String() string { return e.Name }
func (e *EnumType) Equal(other Type) bool {
	o, ok := other.(*EnumType)
	return ok && e.Def == o.Def
}

// AliasType is a use of a type alias. The alias name is preserved in emitted
// spellings; ABI and layout decisions consult Underlying.
type AliasType struct {
	Def        DefID
	Name       string
	Underlying Type
}

func (a *AliasType) typeNode() {}
func (a *AliasType) String() string { return a.Name }
func (a *AliasType) Equal(other Type) bool {
	o, ok := other.(*AliasType)
	return ok && a.Def == o.Def
}

// IncompleteType refers to a forward-declared record. Permitted only behind
// a pointer or reference.
type IncompleteType struct {
	Def  DefID
	Name string
}

func (i *IncompleteType) typeNode() {}
func (i *IncompleteType) String() string { return i.Name }
func (i *IncompleteType) Equal(other Type) bool {
	o, ok := other.(*IncompleteType)
	return ok && i.Def == o.Def
}

// OtherType is an opaque type the front-end mapped by name (type map
// overrides, unredescribable template instantiations).
type OtherType struct {
	Name    string
	Args    []Type
	SameABI bool
}

func (o *OtherType) typeNode() {}
func (o *OtherType) String() string {
	if len(o.Args) == 0 {
		return o.Name
	}
	args := make([]string, len(o.Args))
	for i, a := range o.Args {
		args[i] = a.String()
	}
	return fmt.Sprintf("%s<%s>", o.Name, strings.Join(args, ", "))
}
func (o *OtherType) Equal(other Type) bool {
	t, ok := other.(*OtherType)
	if !ok || o.Name != t.Name || o.SameABI != t.SameABI || len(o.Args) != len(t.Args) {
		return false
	}
	for i := range o.Args {
		if !o.Args[i].Equal(t.Args[i]) {
			return false
		}
	}
	return true
}

// Unalias strips alias layers for semantic decisions. The spelling of the
// alias itself is preserved by callers that care.
func Unalias(t Type) Type {
	for {
		a, ok := t.(*AliasType)
		if !ok {
			return t
		}
		t = a.Underlying
	}
}

// Lifetimes walks t depth-first and collects every lifetime in order of
// first appearance.
func Lifetimes(t Type) []Lifetime {
	var out []Lifetime
	seen := map[Lifetime]bool{}
	var walk func(Type)
	walk = func(t Type) {
		switch t := t.(type) {
		case *Reference:
			if !seen[t.Lifetime] {
				seen[t.Lifetime] = true
				out = append(out, t.Lifetime)
			}
			walk(t.Referent)
		case *RvalueReference:
			if !seen[t.Lifetime] {
				seen[t.Lifetime] = true
				out = append(out, t.Lifetime)
			}
			walk(t.Referent)
		case *Pointer:
			walk(t.Pointee)
		case *FuncPtr:
			for _, p := range t.Params {
				walk(p)
			}
			walk(t.Return)
		case *AliasType:
			walk(t.Underlying)
		case *OtherType:
			for _, a := range t.Args {
				walk(a)
			}
		}
	}
	walk(t)
	return out
}

// IsUnit reports whether t is the unit/void type after unaliasing.
func IsUnit(t Type) bool {
	p, ok := Unalias(t).(*Primitive)
	return ok && p.Kind == Unit
}
