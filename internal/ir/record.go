package ir

// MemberStatus classifies a special member function the way the front-end
// reports it after overload resolution.
type MemberStatus int

const (
	// TrivialMember means the operation is trivial: a byte copy, a no-op
	// destructor, or zero-initialization.
	TrivialMember MemberStatus = iota
	// NontrivialMembers means the operation is non-trivial only because of
	// member or base subobjects; the record itself declares nothing.
	NontrivialMembers
	// NontrivialUserDefined means the record itself declares the operation.
	NontrivialUserDefined
	// Unavailable means deleted, private, or not declared at all.
	Unavailable
)

func (m MemberStatus) String() string {
	switch m {
	case TrivialMember:
		return "trivial"
	case NontrivialMembers:
		return "nontrivial(members)"
	case NontrivialUserDefined:
		return "nontrivial(user-defined)"
	default:
		return "unavailable"
	}
}

// Nontrivial reports whether the operation requires running source code.
func (m MemberStatus) Nontrivial() bool {
	return m == NontrivialMembers || m == NontrivialUserDefined
}

// SpecialMembers captures the disposition of each special member operation.
type SpecialMembers struct {
	DefaultConstructor MemberStatus `json:"default_constructor"`
	CopyConstructor    MemberStatus `json:"copy_constructor"`
	MoveConstructor    MemberStatus `json:"move_constructor"`
	Destructor         MemberStatus `json:"destructor"`
}

// Field is one data member of a record.
type Field struct {
	Name            string `json:"name"`
	Type            Type   `json:"type"` // nil when the front-end could not represent the type
	Offset          int    `json:"offset"` // bytes from the start of the record
	Access          Access `json:"access"`
	NoUniqueAddress bool   `json:"no_unique_address,omitempty"`
	// BrokenReason explains why Type is nil or unusable; such fields become
	// opaque blobs.
	BrokenReason string `json:"broken_reason,omitempty"`
}

// BaseClass is one direct base of a record.
type BaseClass struct {
	Def    DefID  `json:"def"`
	Name   string `json:"name"`
	Access Access `json:"access"`
	// Offset is the byte offset of the base subobject, or -1 when it is not
	// statically known (virtual inheritance).
	Offset  int  `json:"offset"`
	Virtual bool `json:"virtual"`
	// Ambiguous marks bases reachable through more than one public path;
	// ambiguous bases are not exposed as upcast targets.
	Ambiguous bool `json:"ambiguous,omitempty"`
}

// RecordShape is the layout the source compiler computed for a record. A nil
// shape means the layout could not be computed and the record must stay
// forward-declared.
type RecordShape struct {
	Size  int `json:"size"`
	Align int `json:"align"`

	Fields []Field `json:"fields"`

	TrivialForCalls     bool `json:"trivial_for_calls"`
	TriviallyRelocatable bool `json:"trivially_relocatable"`
}

// Record is a struct, class or union definition.
type Record struct {
	ItemNode
	MangledName string       `json:"mangled_name"`
	Shape       *RecordShape `json:"shape"` // nil: layout impossible
	Union       bool         `json:"union"`
	Bases       []BaseClass  `json:"bases,omitempty"`
	Members     SpecialMembers `json:"members"`

	Abstract bool `json:"abstract"`
	Final    bool `json:"final"`
	// SameABI is the author's explicit promise that the target layout matches
	// field for field, enabling direct by-value passage.
	SameABI bool `json:"same_abi"`
	// TemplateInstantiation marks records minted from a template; their name
	// is derived from the mangled instantiation symbol.
	TemplateInstantiation bool `json:"template_instantiation,omitempty"`
	// Children holds nested items (member functions, nested types).
	Children []DefID `json:"children,omitempty"`
}

func (*Record) item() {}

// IsBridge reports whether the record is erased in favor of an authored
// conversion target.
func (r *Record) IsBridge() bool { return r.Attr.Bridge != "" }

// Unpin reports whether the target representation may move the record freely
// by value. Following the conservative rule, only trivially relocatable
// records with a trivial or absent destructor qualify.
func (r *Record) Unpin() bool {
	if r.Shape == nil {
		return false
	}
	return r.Shape.TriviallyRelocatable && !r.Members.Destructor.Nontrivial()
}

// TrivialCopy reports whether the record can derive a byte-wise copy.
func (r *Record) TrivialCopy() bool {
	return r.Members.CopyConstructor == TrivialMember && r.Members.Destructor == TrivialMember
}

// CloneViaThunk reports whether a user-defined copy constructor should back
// the target-side clone operation.
func (r *Record) CloneViaThunk() bool {
	return !r.TrivialCopy() &&
		(r.Members.CopyConstructor == NontrivialUserDefined || r.Members.CopyConstructor == NontrivialMembers)
}

// FirstFieldOffset returns the offset of the first own (non-base) field, or
// the record size when the record declares no fields. This bounds the blob
// that covers base subobjects.
func (r *Record) FirstFieldOffset() int {
	if r.Shape == nil {
		return 0
	}
	if len(r.Shape.Fields) == 0 {
		return r.Shape.Size
	}
	return r.Shape.Fields[0].Offset
}

// ApparentFieldSize computes the usable size of field i. For ordinary fields
// this is the distance to the next field offset, or to the record size for
// the last field; the field type's own size is not consulted. For
// no_unique_address fields this distance may be zero for empty classes.
func (r *Record) ApparentFieldSize(i int) int {
	f := r.Shape.Fields[i]
	next := r.Shape.Size
	if i+1 < len(r.Shape.Fields) {
		next = r.Shape.Fields[i+1].Offset
	}
	if next < f.Offset {
		return 0
	}
	return next - f.Offset
}
