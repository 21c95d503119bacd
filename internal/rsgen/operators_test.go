package rsgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crubit/bindgen/internal/errors"
	"github.com/crubit/bindgen/internal/ir"
)

// operatorFunc builds a member operator on record 3.
func operatorFunc(id ir.DefID, op string, constMember bool, params []ir.Param, ret ir.Type, line int) *ir.Func {
	f := &ir.Func{
		ItemNode:        itemNode(id, "operator"+op, 3, line),
		MangledName:     "op" + op,
		Kind:            ir.Operator,
		OperatorName:    op,
		Self:            ir.SelfRef,
		EnclosingRecord: 3,
		ConstMember:     constMember,
		Params:          params,
		Return:          ret,
	}
	return f
}

func addableRecord(children ...ir.DefID) *ir.Record {
	rec := trivialRecord(3, "Addable", 1)
	rec.Children = children
	return rec
}

// operator+ on a const member maps to the Add trait over references and
// routes the non-trivial return through emplace semantics.
func TestBinaryOperatorPlus(t *testing.T) {
	op := operatorFunc(2, "+", true,
		[]ir.Param{{Name: "rhs", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "b"}, Referent: &ir.RecordType{Def: 3, Name: "Addable"}}}},
		&ir.RecordType{Def: 3, Name: "Addable"}, 10)
	rec := addableRecord(2)
	_, d := testEnv(t, op, rec)

	s, err := d.Snippet(2)
	require.NoError(t, err)
	det := s.Details.String()
	assert.Contains(t, det, "::core::ops::Add<&'b crate::Addable> for &'__lhs crate::Addable {")
	assert.Contains(t, det, "type Output = crate::Addable;")
	assert.Contains(t, det, "fn add(self, rhs: &'b crate::Addable) -> Self::Output {")
	assert.Contains(t, det, "__return.assume_init()")
	assert.Contains(t, s.Thunks.String(), "crubit::construct_at(__return, (*__this + rhs));")
}

// Compound assignment on a const LHS is rejected with an explanation.
func TestCompoundAssignConstLHS(t *testing.T) {
	op := operatorFunc(2, "+=", true,
		[]ir.Param{{Name: "rhs", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "b"}, Referent: &ir.RecordType{Def: 3, Name: "Addable"}}}},
		&ir.Primitive{Kind: ir.Unit}, 10)
	rec := addableRecord(2)
	_, d := testEnv(t, op, rec)

	_, err := d.Snippet(2)
	require.Error(t, err)
	rep, ok := errors.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, errors.FN006, rep.Code)
	assert.Contains(t, rep.Message, "const")
}

func TestCompoundAssignMutableLHS(t *testing.T) {
	op := operatorFunc(2, "+=", false,
		[]ir.Param{{Name: "rhs", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "b"}, Referent: &ir.RecordType{Def: 3, Name: "Addable"}}}},
		&ir.Primitive{Kind: ir.Unit}, 10)
	rec := addableRecord(2)
	_, d := testEnv(t, op, rec)

	s, err := d.Snippet(2)
	require.NoError(t, err)
	det := s.Details.String()
	assert.Contains(t, det, "::core::ops::AddAssign<&'b crate::Addable> for crate::Addable {")
	assert.Contains(t, det, "fn add_assign(&mut self, rhs: &'b crate::Addable) {")
}

// Equality maps to PartialEq; ordering requires equality to be present.
func TestComparisonOperators(t *testing.T) {
	eq := operatorFunc(2, "==", true,
		[]ir.Param{{Name: "other", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "b"}, Referent: &ir.RecordType{Def: 3, Name: "Addable"}}}},
		&ir.Primitive{Kind: ir.Bool}, 10)
	lt := operatorFunc(4, "<", true,
		[]ir.Param{{Name: "other", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "b"}, Referent: &ir.RecordType{Def: 3, Name: "Addable"}}}},
		&ir.Primitive{Kind: ir.Bool}, 11)
	rec := addableRecord(2, 4)
	_, d := testEnv(t, eq, lt, rec)

	s, err := d.Snippet(2)
	require.NoError(t, err)
	assert.Contains(t, s.Details.String(), "impl ::core::cmp::PartialEq<crate::Addable> for crate::Addable {")

	s, err = d.Snippet(4)
	require.NoError(t, err)
	det := s.Details.String()
	assert.Contains(t, det, "impl ::core::cmp::PartialOrd<crate::Addable> for crate::Addable {")
	assert.Contains(t, det, "fn partial_cmp(&self, other: &crate::Addable) -> Option<::core::cmp::Ordering> {")
}

// Ordering without equality is rejected.
func TestOrderingRequiresEquality(t *testing.T) {
	lt := operatorFunc(2, "<", true,
		[]ir.Param{{Name: "other", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "b"}, Referent: &ir.RecordType{Def: 3, Name: "Addable"}}}},
		&ir.Primitive{Kind: ir.Bool}, 10)
	rec := addableRecord(2)
	_, d := testEnv(t, lt, rec)

	_, err := d.Snippet(2)
	require.Error(t, err)
	rep, ok := errors.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, errors.FN006, rep.Code)
}

// Non-const binary operators cannot implement shared-reference traits.
func TestNonConstBinaryOperatorRejected(t *testing.T) {
	op := operatorFunc(2, "+", false,
		[]ir.Param{{Name: "rhs", Type: &ir.Reference{Lifetime: ir.Lifetime{Name: "b"}, Referent: &ir.RecordType{Def: 3, Name: "Addable"}}}},
		&ir.RecordType{Def: 3, Name: "Addable"}, 10)
	rec := addableRecord(2)
	_, d := testEnv(t, op, rec)

	_, err := d.Snippet(2)
	require.Error(t, err)
	rep, ok := errors.AsReport(err)
	require.True(t, ok)
	assert.Equal(t, errors.FN006, rep.Code)
}
