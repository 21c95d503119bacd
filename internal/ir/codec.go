package ir

import (
	"encoding/json"
	"fmt"
)

// The wire form of the IR is a tagged-union JSON document produced by the
// front-ends. Decoding reconstructs the Item and Type interfaces; encoding
// exists for tests and for the inspect tooling.

// SchemaVersion identifies the IR wire format.
const SchemaVersion = "crubit.ir/v1"

type wireSnapshot struct {
	Schema string     `json:"schema"`
	Root   DefID      `json:"root"`
	Items  []wireItem `json:"items"`
}

type wireItem struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

type wireType struct {
	Kind string          `json:"kind"`
	Body json.RawMessage `json:"body"`
}

// typeJSON mirrors every Type variant with wire-friendly fields.
type typeJSON struct {
	Prim     string     `json:"prim,omitempty"`
	Mut      bool       `json:"mut,omitempty"`
	Lifetime Lifetime   `json:"lifetime,omitempty"`
	Inner    *TypeBox   `json:"inner,omitempty"`
	ABI      string     `json:"abi,omitempty"`
	Params   []TypeBox  `json:"params,omitempty"`
	Return   *TypeBox   `json:"return,omitempty"`
	NonNull  bool       `json:"non_null,omitempty"`
	Def      DefID      `json:"def,omitempty"`
	Name     string     `json:"name,omitempty"`
	Args     []TypeBox  `json:"args,omitempty"`
	SameABI  bool       `json:"same_abi,omitempty"`
}

// TypeBox wraps a Type for JSON round-tripping inside item bodies.
type TypeBox struct {
	Type Type
}

var primByName = func() map[string]PrimKind {
	m := make(map[string]PrimKind, len(primNames))
	for k, v := range primNames {
		m[v] = k
	}
	return m
}()

func (b TypeBox) MarshalJSON() ([]byte, error) {
	if b.Type == nil {
		return []byte("null"), nil
	}
	var w wireType
	var body typeJSON
	switch t := b.Type.(type) {
	case *Primitive:
		w.Kind = "primitive"
		body.Prim = primNames[t.Kind]
	case *Pointer:
		w.Kind = "pointer"
		body.Mut = t.Mut
		body.Inner = &TypeBox{t.Pointee}
	case *Reference:
		w.Kind = "reference"
		body.Mut = t.Mut
		body.Lifetime = t.Lifetime
		body.Inner = &TypeBox{t.Referent}
	case *RvalueReference:
		w.Kind = "rvalue_reference"
		body.Mut = t.Mut
		body.Lifetime = t.Lifetime
		body.Inner = &TypeBox{t.Referent}
	case *FuncPtr:
		w.Kind = "func_ptr"
		body.ABI = t.ABI
		body.NonNull = t.NonNull
		for _, p := range t.Params {
			body.Params = append(body.Params, TypeBox{p})
		}
		body.Return = &TypeBox{t.Return}
	case *RecordType:
		w.Kind = "record"
		body.Def = t.Def
		body.Name = t.Name
	case *EnumType:
		w.Kind = "enum"
		body.Def = t.Def
		body.Name = t.Name
	case *AliasType:
		w.Kind = "alias"
		body.Def = t.Def
		body.Name = t.Name
		body.Inner = &TypeBox{t.Underlying}
	case *IncompleteType:
		w.Kind = "incomplete"
		body.Def = t.Def
		body.Name = t.Name
	case *OtherType:
		w.Kind = "other"
		body.Name = t.Name
		body.SameABI = t.SameABI
		for _, a := range t.Args {
			body.Args = append(body.Args, TypeBox{a})
		}
	default:
		return nil, fmt.Errorf("ir: cannot encode type %T", t)
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	w.Body = raw
	return json.Marshal(w)
}

func (b *TypeBox) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		b.Type = nil
		return nil
	}
	var w wireType
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	var body typeJSON
	if err := json.Unmarshal(w.Body, &body); err != nil {
		return err
	}
	inner := func() Type {
		if body.Inner == nil {
			return nil
		}
		return body.Inner.Type
	}
	switch w.Kind {
	case "primitive":
		kind, ok := primByName[body.Prim]
		if !ok {
			return fmt.Errorf("ir: unknown primitive %q", body.Prim)
		}
		b.Type = &Primitive{Kind: kind}
	case "pointer":
		b.Type = &Pointer{Mut: body.Mut, Pointee: inner()}
	case "reference":
		b.Type = &Reference{Mut: body.Mut, Lifetime: body.Lifetime, Referent: inner()}
	case "rvalue_reference":
		b.Type = &RvalueReference{Mut: body.Mut, Lifetime: body.Lifetime, Referent: inner()}
	case "func_ptr":
		fp := &FuncPtr{ABI: body.ABI, NonNull: body.NonNull}
		for _, p := range body.Params {
			fp.Params = append(fp.Params, p.Type)
		}
		if body.Return != nil {
			fp.Return = body.Return.Type
		}
		b.Type = fp
	case "record":
		b.Type = &RecordType{Def: body.Def, Name: body.Name}
	case "enum":
		b.Type = &EnumType{Def: body.Def, Name: body.Name}
	case "alias":
		b.Type = &AliasType{Def: body.Def, Name: body.Name, Underlying: inner()}
	case "incomplete":
		b.Type = &IncompleteType{Def: body.Def, Name: body.Name}
	case "other":
		ot := &OtherType{Name: body.Name, SameABI: body.SameABI}
		for _, a := range body.Args {
			ot.Args = append(ot.Args, a.Type)
		}
		b.Type = ot
	default:
		return fmt.Errorf("ir: unknown type kind %q", w.Kind)
	}
	return nil
}

// Wire forms of the item variants. Each embeds the exported struct with Type
// fields swapped for TypeBox.

type wireParam struct {
	Name string  `json:"name"`
	Type TypeBox `json:"type"`
}

type wireFunc struct {
	ItemNode
	MangledName     string      `json:"mangled_name"`
	Kind            FuncKind    `json:"kind"`
	Params          []wireParam `json:"params"`
	Return          TypeBox     `json:"return"`
	Self            SelfKind    `json:"self"`
	EnclosingRecord DefID       `json:"enclosing_record,omitempty"`
	OperatorName    string      `json:"operator_name,omitempty"`
	ExternC         bool        `json:"extern_c"`
	Unmangled       bool        `json:"unmangled"`
	CallingConv     string      `json:"calling_conv,omitempty"`
	Unsafe          bool        `json:"unsafe"`
	NoReturn        bool        `json:"no_return"`
	ConstMember     bool        `json:"const_member"`
	Variadic        bool        `json:"variadic"`
	Generic         bool        `json:"generic"`
	Async           bool        `json:"async"`
	Coroutine       bool        `json:"coroutine"`
}

type wireField struct {
	Name            string  `json:"name"`
	Type            TypeBox `json:"type"`
	Offset          int     `json:"offset"`
	Access          Access  `json:"access"`
	NoUniqueAddress bool    `json:"no_unique_address,omitempty"`
	BrokenReason    string  `json:"broken_reason,omitempty"`
}

type wireShape struct {
	Size                 int         `json:"size"`
	Align                int         `json:"align"`
	Fields               []wireField `json:"fields"`
	TrivialForCalls      bool        `json:"trivial_for_calls"`
	TriviallyRelocatable bool        `json:"trivially_relocatable"`
}

type wireRecord struct {
	ItemNode
	MangledName           string         `json:"mangled_name"`
	Shape                 *wireShape     `json:"shape"`
	Union                 bool           `json:"union"`
	Bases                 []BaseClass    `json:"bases,omitempty"`
	Members               SpecialMembers `json:"members"`
	Abstract              bool           `json:"abstract"`
	Final                 bool           `json:"final"`
	SameABI               bool           `json:"same_abi"`
	TemplateInstantiation bool           `json:"template_instantiation,omitempty"`
	Children              []DefID        `json:"children,omitempty"`
}

type wireEnum struct {
	ItemNode
	Underlying  TypeBox      `json:"underlying"`
	Enumerators []Enumerator `json:"enumerators"`
	Scoped      bool         `json:"scoped"`
	Opaque      bool         `json:"opaque"`
}

type wireAlias struct {
	ItemNode
	Underlying TypeBox `json:"underlying"`
}

type wireConst struct {
	ItemNode
	Type  TypeBox `json:"type"`
	Value string  `json:"value"`
}

// DecodeSnapshot parses the serialized IR into a Snapshot.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var w wireSnapshot
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("ir: decoding snapshot: %w", err)
	}
	if w.Schema != SchemaVersion {
		return nil, fmt.Errorf("ir: unsupported schema %q (want %q)", w.Schema, SchemaVersion)
	}
	items := make([]Item, 0, len(w.Items))
	for i, wi := range w.Items {
		it, err := decodeItem(wi)
		if err != nil {
			return nil, fmt.Errorf("ir: item %d: %w", i, err)
		}
		items = append(items, it)
	}
	return NewSnapshot(w.Root, items), nil
}

func decodeItem(w wireItem) (Item, error) {
	switch w.Kind {
	case "func":
		var wf wireFunc
		if err := json.Unmarshal(w.Body, &wf); err != nil {
			return nil, err
		}
		f := &Func{
			ItemNode:        wf.ItemNode,
			MangledName:     wf.MangledName,
			Kind:            wf.Kind,
			Return:          wf.Return.Type,
			Self:            wf.Self,
			EnclosingRecord: wf.EnclosingRecord,
			OperatorName:    wf.OperatorName,
			ExternC:         wf.ExternC,
			Unmangled:       wf.Unmangled,
			CallingConv:     wf.CallingConv,
			Unsafe:          wf.Unsafe,
			NoReturn:        wf.NoReturn,
			ConstMember:     wf.ConstMember,
			Variadic:        wf.Variadic,
			Generic:         wf.Generic,
			Async:           wf.Async,
			Coroutine:       wf.Coroutine,
		}
		for _, p := range wf.Params {
			f.Params = append(f.Params, Param{Name: p.Name, Type: p.Type.Type})
		}
		return f, nil
	case "record":
		var wr wireRecord
		if err := json.Unmarshal(w.Body, &wr); err != nil {
			return nil, err
		}
		r := &Record{
			ItemNode:              wr.ItemNode,
			MangledName:           wr.MangledName,
			Union:                 wr.Union,
			Bases:                 wr.Bases,
			Members:               wr.Members,
			Abstract:              wr.Abstract,
			Final:                 wr.Final,
			SameABI:               wr.SameABI,
			TemplateInstantiation: wr.TemplateInstantiation,
			Children:              wr.Children,
		}
		if wr.Shape != nil {
			shape := &RecordShape{
				Size:                 wr.Shape.Size,
				Align:                wr.Shape.Align,
				TrivialForCalls:      wr.Shape.TrivialForCalls,
				TriviallyRelocatable: wr.Shape.TriviallyRelocatable,
			}
			for _, f := range wr.Shape.Fields {
				shape.Fields = append(shape.Fields, Field{
					Name:            f.Name,
					Type:            f.Type.Type,
					Offset:          f.Offset,
					Access:          f.Access,
					NoUniqueAddress: f.NoUniqueAddress,
					BrokenReason:    f.BrokenReason,
				})
			}
			r.Shape = shape
		}
		return r, nil
	case "enum":
		var we wireEnum
		if err := json.Unmarshal(w.Body, &we); err != nil {
			return nil, err
		}
		return &Enum{
			ItemNode:    we.ItemNode,
			Underlying:  we.Underlying.Type,
			Enumerators: we.Enumerators,
			Scoped:      we.Scoped,
			Opaque:      we.Opaque,
		}, nil
	case "alias":
		var wa wireAlias
		if err := json.Unmarshal(w.Body, &wa); err != nil {
			return nil, err
		}
		return &TypeAlias{ItemNode: wa.ItemNode, Underlying: wa.Underlying.Type}, nil
	case "const":
		var wc wireConst
		if err := json.Unmarshal(w.Body, &wc); err != nil {
			return nil, err
		}
		return &Const{ItemNode: wc.ItemNode, Type: wc.Type.Type, Value: wc.Value}, nil
	case "namespace":
		var wn Namespace
		if err := json.Unmarshal(w.Body, &wn); err != nil {
			return nil, err
		}
		return &wn, nil
	case "use":
		var wu UseDecl
		if err := json.Unmarshal(w.Body, &wu); err != nil {
			return nil, err
		}
		return &wu, nil
	case "forward_decl":
		var wf ForwardDecl
		if err := json.Unmarshal(w.Body, &wf); err != nil {
			return nil, err
		}
		return &wf, nil
	default:
		return nil, fmt.Errorf("unknown item kind %q", w.Kind)
	}
}
