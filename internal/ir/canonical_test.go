package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonicalScalars(t *testing.T) {
	got, err := MarshalCanonical(NewInt(42))
	require.NoError(t, err)
	assert.Equal(t, "42", string(got))

	huge, err := ParseInt("-9999999999999999999999")
	require.NoError(t, err)
	got, err = MarshalCanonical(huge)
	require.NoError(t, err)
	assert.Equal(t, "-9999999999999999999999", string(got))

	got, err = MarshalCanonical(Bool(true))
	require.NoError(t, err)
	assert.Equal(t, "true", string(got))

	// No HTML escaping per RFC 8785.
	got, err = MarshalCanonical(String("a<b&c>d"))
	require.NoError(t, err)
	assert.Equal(t, `"a<b&c>d"`, string(got))
}

func TestMarshalCanonicalRecordKeyOrder(t *testing.T) {
	rt := &RecordType{Name: "T", Fields: []Field{
		{Name: "zebra", Type: IntType()},
		{Name: "apple", Type: IntType()},
	}}
	r, err := NewRec(rt, map[string]Value{"zebra": NewInt(1), "apple": NewInt(2)})
	require.NoError(t, err)

	got, err := MarshalCanonical(r)
	require.NoError(t, err)
	assert.Equal(t, `{"$type":"T","apple":2,"zebra":1}`, string(got))
}

func TestMarshalCanonicalDeterministic(t *testing.T) {
	vt := voteType()
	v, err := NewHandle(vt, "h-1", map[string]Value{"id": NewInt(1), "user": String("alice")})
	require.NoError(t, err)
	bag := NewBag(v, NewInt(3))

	a, err := MarshalCanonical(bag)
	require.NoError(t, err)
	b, err := MarshalCanonical(bag)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFingerprintHandleIdentityOnly(t *testing.T) {
	vt := voteType()
	a, err := NewHandle(vt, "h-1", map[string]Value{"id": NewInt(1), "user": String("alice")})
	require.NoError(t, err)
	b, err := NewHandle(vt, "h-1", map[string]Value{"id": NewInt(2), "user": String("bob")})
	require.NoError(t, err)

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	assert.Equal(t, fa, fb, "same identity must fingerprint identically")

	// Full canonical form keeps the field content.
	ca, err := MarshalCanonical(a)
	require.NoError(t, err)
	cb, err := MarshalCanonical(b)
	require.NoError(t, err)
	assert.NotEqual(t, ca, cb)
}

func TestFingerprintBagOrderInsensitive(t *testing.T) {
	a := NewBag(NewInt(1), NewInt(2), NewInt(2))
	b := NewBag(NewInt(2), NewInt(2), NewInt(1))
	c := NewBag(NewInt(2), NewInt(1))

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)
	fc, err := Fingerprint(c)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}

func TestUnmarshalValueRoundTrip(t *testing.T) {
	s := &Schema{Types: []RecordType{*voteType()}}
	vt := voteType()
	v, err := NewHandle(vt, "h-9", map[string]Value{"id": NewInt(7), "user": String("carol")})
	require.NoError(t, err)
	bag := NewBag(v)

	enc, err := MarshalCanonical(bag)
	require.NoError(t, err)

	back, err := UnmarshalValue(s, enc, BagOf(RecordOf("Vote")))
	require.NoError(t, err)
	assert.True(t, Equal(bag, back))

	// Field content survives, not just identity.
	var got *Rec
	for e := range back.(*Bag).Values() {
		got = e.(*Rec)
	}
	user, _ := got.Field("user")
	assert.True(t, Equal(String("carol"), user))
	assert.Equal(t, "h-9", got.Ident)
}

func TestValueHashStable(t *testing.T) {
	a, err := ValueHash(NewInt(5))
	require.NoError(t, err)
	b, err := ValueHash(NewInt(5))
	require.NoError(t, err)
	c, err := ValueHash(NewInt(6))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestAppliedIDStable(t *testing.T) {
	a, err := AppliedID("insertVote", []Value{NewInt(1)}, 3)
	require.NoError(t, err)
	b, err := AppliedID("insertVote", []Value{NewInt(1)}, 3)
	require.NoError(t, err)
	c, err := AppliedID("insertVote", []Value{NewInt(1)}, 4)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
