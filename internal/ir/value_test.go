package ir

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func voteType() *RecordType {
	return &RecordType{
		Name:   "Vote",
		Handle: true,
		Fields: []Field{
			{Name: "id", Type: IntType()},
			{Name: "user", Type: StringType()},
		},
	}
}

func pointType() *RecordType {
	return &RecordType{
		Name: "Point",
		Fields: []Field{
			{Name: "x", Type: IntType()},
			{Name: "y", Type: IntType()},
		},
	}
}

func TestValueSealed(t *testing.T) {
	var _ Value = NewInt(42)
	var _ Value = Bool(true)
	var _ Value = String("s")
	var _ Value = &Rec{}
	var _ Value = &Bag{}
}

func TestIntArbitraryRange(t *testing.T) {
	huge, err := ParseInt("123456789012345678901234567890")
	require.NoError(t, err)

	sum := new(big.Int).Add(huge.Big(), big.NewInt(1))
	next := NewBigInt(sum)

	assert.Equal(t, 1, next.Cmp(huge))
	assert.Equal(t, "123456789012345678901234567891", next.String())
	assert.True(t, Equal(huge, NewBigInt(huge.Big())))
}

func TestPlainRecordStructuralEquality(t *testing.T) {
	pt := pointType()
	a, err := NewRec(pt, map[string]Value{"x": NewInt(1), "y": NewInt(2)})
	require.NoError(t, err)
	b, err := NewRec(pt, map[string]Value{"x": NewInt(1), "y": NewInt(2)})
	require.NoError(t, err)
	c, err := NewRec(pt, map[string]Value{"x": NewInt(1), "y": NewInt(3)})
	require.NoError(t, err)

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestHandleEqualityByIdentity(t *testing.T) {
	vt := voteType()
	a, err := NewHandle(vt, "h-1", map[string]Value{"id": NewInt(1), "user": String("alice")})
	require.NoError(t, err)
	sameIdent, err := NewHandle(vt, "h-1", map[string]Value{"id": NewInt(99), "user": String("bob")})
	require.NoError(t, err)
	otherIdent, err := NewHandle(vt, "h-2", map[string]Value{"id": NewInt(1), "user": String("alice")})
	require.NoError(t, err)

	// Identity wins over structural content, both directions.
	assert.True(t, Equal(a, sameIdent))
	assert.False(t, Equal(a, otherIdent))
}

func TestHandleConstructionErrors(t *testing.T) {
	vt := voteType()

	_, err := NewHandle(vt, "", map[string]Value{"id": NewInt(1), "user": String("a")})
	assert.True(t, IsTypeMismatch(err))

	_, err = NewHandle(pointType(), "h-1", map[string]Value{"x": NewInt(1), "y": NewInt(2)})
	assert.True(t, IsTypeMismatch(err))

	_, err = NewHandle(vt, "h-1", map[string]Value{"id": NewInt(1)})
	assert.True(t, IsTypeMismatch(err))
}

func TestRecFieldAccess(t *testing.T) {
	pt := pointType()
	r, err := NewRec(pt, map[string]Value{"x": NewInt(7), "y": NewInt(8)})
	require.NoError(t, err)

	x, ok := r.Field("x")
	require.True(t, ok)
	assert.True(t, Equal(NewInt(7), x))

	_, ok = r.Field("z")
	assert.False(t, ok)

	assert.Equal(t, []string{"x", "y"}, r.FieldNames())
}

func TestBagMultisetSemantics(t *testing.T) {
	b := NewBag(NewInt(1), NewInt(2), NewInt(1))

	assert.Equal(t, 3, b.Len())
	assert.True(t, b.Contains(NewInt(1)))

	// Remove takes exactly one occurrence.
	assert.True(t, b.Remove(NewInt(1)))
	assert.Equal(t, 2, b.Len())
	assert.True(t, b.Contains(NewInt(1)))

	assert.False(t, b.Remove(NewInt(9)))
	assert.Equal(t, 2, b.Len())
}

func TestBagEqualityIgnoresOrder(t *testing.T) {
	a := NewBag(NewInt(1), NewInt(2), NewInt(2))
	b := NewBag(NewInt(2), NewInt(1), NewInt(2))
	c := NewBag(NewInt(1), NewInt(2))

	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
}

func TestBagIterationInsertionOrder(t *testing.T) {
	b := NewBag(NewInt(3), NewInt(1), NewInt(2))

	var got []string
	for v := range b.Values() {
		got = append(got, v.(Int).String())
	}
	assert.Equal(t, []string{"3", "1", "2"}, got)
}

func TestBagValuesRestartable(t *testing.T) {
	b := NewBag(NewInt(1), NewInt(2))
	seq := b.Values()

	count := 0
	for range seq {
		count++
		break // early exit must not exhaust the sequence
	}
	for range seq {
		count++
	}
	assert.Equal(t, 3, count)
}

func TestBagCloneIsolation(t *testing.T) {
	b := NewBag(NewInt(1))
	c := b.Clone()
	c.Insert(NewInt(2))

	assert.Equal(t, 1, b.Len())
	assert.Equal(t, 2, c.Len())
}

func TestCheckValue(t *testing.T) {
	s := &Schema{Types: []RecordType{*voteType(), *pointType()}}

	vote, err := NewHandle(voteType(), "h-1", map[string]Value{"id": NewInt(1), "user": String("a")})
	require.NoError(t, err)

	assert.NoError(t, CheckValue(s, vote, RecordOf("Vote")))
	assert.Error(t, CheckValue(s, vote, RecordOf("Point")))
	assert.Error(t, CheckValue(s, NewInt(1), BoolType()))
	assert.NoError(t, CheckValue(s, NewBag(vote), BagOf(RecordOf("Vote"))))
	assert.Error(t, CheckValue(s, NewBag(NewInt(1)), BagOf(RecordOf("Vote"))))
}

func TestZeroValue(t *testing.T) {
	s := &Schema{Types: []RecordType{*voteType(), *pointType()}}

	z, err := ZeroValue(s, BagOf(IntType()))
	require.NoError(t, err)
	assert.Equal(t, 0, z.(*Bag).Len())

	pt, err := ZeroValue(s, RecordOf("Point"))
	require.NoError(t, err)
	x, _ := pt.(*Rec).Field("x")
	assert.True(t, Equal(NewInt(0), x))

	// Handle types have no zero value: identities must be minted.
	_, err = ZeroValue(s, RecordOf("Vote"))
	assert.Error(t, err)
}
