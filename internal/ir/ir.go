// Package ir defines the typed intermediate representation consumed by the
// binding generators. The IR is produced by a front-end (a clang tool for C++,
// a rustc plugin for Rust) and is assumed to be fully type-checked; nothing in
// this package validates source-language semantics.
package ir

import (
	"fmt"
	"strings"
)

// DefID is the stable identity of a definition within one compilation run.
// Identity is assigned by the IR provider and never reused.
type DefID uint64

// Span is a source location used in diagnostics and generated comments.
type Span struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (s Span) String() string {
	return fmt.Sprintf("%s:%d:%d", s.File, s.Line, s.Column)
}

// Access is a C++ access specifier. Rust items are either Public or Private.
type Access int

const (
	Public Access = iota
	Protected
	Private
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Protected:
		return "protected"
	default:
		return "private"
	}
}

// Attrs carries the user-facing annotations recognized on source items.
type Attrs struct {
	// RustName and CppName are explicit rename overrides. They are used
	// verbatim, without keyword escaping.
	RustName string `json:"rust_name,omitempty"`
	CppName  string `json:"cpp_name,omitempty"`

	// Bridge names the target type a bridge record converts to. A record
	// carrying a bridge annotation is erased from the generated module.
	Bridge string `json:"bridge,omitempty"`

	// MustBind promotes any generation error on this item to a hard failure.
	MustBind bool `json:"must_bind,omitempty"`

	// DocHidden marks the item (and paths through it) as hidden from the
	// canonical-name search, mirroring doc(hidden).
	DocHidden bool `json:"doc_hidden,omitempty"`

	// MustUse carries a [[nodiscard]]/#[must_use] message. The empty string
	// with MustUseSet true means the attribute is present without a message.
	MustUse    string `json:"must_use,omitempty"`
	MustUseSet bool   `json:"must_use_set,omitempty"`

	// Deprecated carries a deprecation message, empty if none was given.
	Deprecated    string `json:"deprecated,omitempty"`
	DeprecatedSet bool   `json:"deprecated_set,omitempty"`
}

// ItemNode is the base embedded by every Item variant. It carries the
// identity, location and annotation data shared by all items.
type ItemNode struct {
	Def         DefID    `json:"id"`
	Loc         Span     `json:"loc"`
	Name        string   `json:"name"`
	OwningCrate string   `json:"owning_crate"`
	Parent      DefID    `json:"parent"` // enclosing namespace/module/record; 0 only for the root
	Doc         []string `json:"doc,omitempty"`
	Attr        Attrs    `json:"attrs,omitempty"`
	Visible     bool     `json:"visible"`
}

func (n ItemNode) ID() DefID        { return n.Def }
func (n ItemNode) Pos() Span        { return n.Loc }
func (n ItemNode) LocalName() string { return n.Name }
func (n ItemNode) Crate() string    { return n.OwningCrate }
func (n ItemNode) ParentID() DefID  { return n.Parent }
func (n ItemNode) Attrs() Attrs     { return n.Attr }
func (n ItemNode) DocLines() []string { return n.Doc }
func (n ItemNode) IsVisible() bool  { return n.Visible }

// Item is a top-level exportable declaration.
type Item interface {
	ID() DefID
	Pos() Span
	LocalName() string
	Crate() string
	ParentID() DefID
	Attrs() Attrs
	DocLines() []string
	IsVisible() bool
	item()
}

// FuncKind distinguishes the call shapes a Func can take.
type FuncKind int

const (
	FreeFunc FuncKind = iota
	Method
	Constructor
	Destructor
	Operator
)

func (k FuncKind) String() string {
	switch k {
	case FreeFunc:
		return "function"
	case Method:
		return "method"
	case Constructor:
		return "constructor"
	case Destructor:
		return "destructor"
	default:
		return "operator"
	}
}

// SelfKind classifies the receiver of a method.
type SelfKind int

const (
	NoSelf SelfKind = iota
	SelfByValue
	SelfRef
	SelfMutRef
	SelfRvalueRef
	SelfConstRvalueRef
)

// Param is a formal parameter of a Func.
type Param struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
}

// Func is a free function, method, constructor, destructor or operator.
type Func struct {
	ItemNode
	MangledName string  `json:"mangled_name"`
	Kind        FuncKind `json:"kind"`
	Params      []Param `json:"params"`
	Return      Type    `json:"return"`
	Self        SelfKind `json:"self"`
	// EnclosingRecord is the defining record for methods, constructors,
	// destructors and member operators; 0 for free functions.
	EnclosingRecord DefID `json:"enclosing_record,omitempty"`
	// OperatorName is the source operator token ("+", "==", "+=", ...) when
	// Kind is Operator.
	OperatorName string `json:"operator_name,omitempty"`

	ExternC     bool   `json:"extern_c"`
	Unmangled   bool   `json:"unmangled"` // extern "C" with an unmangled or author-specified link name
	CallingConv string `json:"calling_conv,omitempty"`
	Unsafe      bool   `json:"unsafe"`
	NoReturn    bool   `json:"no_return"`
	ConstMember bool   `json:"const_member"` // const-qualified member function

	Variadic  bool `json:"variadic"`
	Generic   bool `json:"generic"` // unmonomorphized template/generic
	Async     bool `json:"async"`
	Coroutine bool `json:"coroutine"`
}

func (*Func) item() {}

// DebugName returns the name used in diagnostics, qualified by the enclosing
// record for members.
func (f *Func) DebugName() string {
	switch f.Kind {
	case Operator:
		return "operator" + f.OperatorName
	case Destructor:
		return "~" + f.Name
	default:
		return f.Name
	}
}

// Enumerator is a single enum constant.
type Enumerator struct {
	Name  string `json:"name"`
	Value string `json:"value"` // spelled in the underlying type's literal syntax
}

// Enum is a source enumeration. Opaque enums are declared but not defined and
// produce no binding.
type Enum struct {
	ItemNode
	Underlying  Type         `json:"underlying"`
	Enumerators []Enumerator `json:"enumerators"`
	Scoped      bool         `json:"scoped"`
	Opaque      bool         `json:"opaque"`
}

func (*Enum) item() {}

// TypeAlias is a `using`/`type` alias. Attribute overrides on a canonical
// alias apply to the underlying type.
type TypeAlias struct {
	ItemNode
	Underlying Type `json:"underlying"`
}

func (*TypeAlias) item() {}

// Const is an exported constant.
type Const struct {
	ItemNode
	Type  Type   `json:"type"`
	Value string `json:"value"`
}

func (*Const) item() {}

// Namespace is a C++ namespace or Rust module scope.
type Namespace struct {
	ItemNode
	Children []DefID `json:"children"`
}

func (*Namespace) item() {}

// UseDecl re-exports a definition under another path.
type UseDecl struct {
	ItemNode
	Target DefID `json:"target"`
}

func (*UseDecl) item() {}

// ForwardDecl declares a record without defining it.
type ForwardDecl struct {
	ItemNode
	Record DefID `json:"record"` // 0 when the definition never appears
}

func (*ForwardDecl) item() {}

// QualName joins path components into the display form used in diagnostics.
func QualName(components []string) string {
	return strings.Join(components, "::")
}
