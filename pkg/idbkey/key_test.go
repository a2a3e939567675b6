package idbkey_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/idbstore/pkg/idbkey"
)

func mustKey(t *testing.T, v any) idbkey.Key {
	t.Helper()
	k, err := idbkey.ValueOf(v)
	require.NoError(t, err)
	return k
}

func TestValueOfRejectsInvalidValues(t *testing.T) {
	cases := []any{
		math.NaN(),
		math.Inf(1),
		math.Inf(-1),
		nil,
		struct{ X int }{X: 1},
		[]any{1, math.NaN()},
	}
	for _, c := range cases {
		_, err := idbkey.ValueOf(c)
		assert.Error(t, err, "%#v should be rejected", c)
	}
}

func TestValueOfRejectsRecursiveArray(t *testing.T) {
	a := []any{1}
	a[0] = a
	_, err := idbkey.ValueOf(a)
	assert.Error(t, err)
}

func TestRoundTrip(t *testing.T) {
	now := time.Unix(1234567, 890000000)
	cases := []any{
		0.0,
		-0.0,
		1.5,
		-1.5,
		float64(1) / 3,
		now,
		"",
		"hello",
		"with\x00nul",
		[]byte{},
		[]byte{0x00, 0x01, 0xff},
		[]any{1.0, "a", []byte{1, 2}},
		[]any{},
		[]any{[]any{1.0, 2.0}, "x"},
	}
	for _, c := range cases {
		k := mustKey(t, c)
		enc := idbkey.Encode(k)
		dec, err := idbkey.Decode(enc)
		require.NoError(t, err)
		assert.Equal(t, 0, idbkey.Compare(k, dec), "round trip mismatch for %#v", c)
	}
}

func TestZeroSignsCompareEqual(t *testing.T) {
	pos := mustKey(t, 0.0)
	neg := mustKey(t, math.Copysign(0, -1))
	assert.Equal(t, 0, idbkey.Compare(pos, neg))
}

func TestCrossTypeOrdering(t *testing.T) {
	num := mustKey(t, 1.0)
	date := mustKey(t, time.Unix(0, 0))
	str := mustKey(t, "a")
	bin := mustKey(t, []byte{0})
	arr := mustKey(t, []any{})

	ordered := []idbkey.Key{num, date, str, bin, arr}
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			assert.Equal(t, -1, idbkey.Compare(ordered[i], ordered[j]),
				"expected kind %v < kind %v", ordered[i].Kind(), ordered[j].Kind())
		}
	}
}

func TestNumberOrdering(t *testing.T) {
	assert.Equal(t, -1, idbkey.Compare(mustKey(t, 1.0), mustKey(t, 2.0)))
	assert.Equal(t, 1, idbkey.Compare(mustKey(t, 2.0), mustKey(t, 1.0)))
	assert.Equal(t, -1, idbkey.Compare(mustKey(t, -5.0), mustKey(t, 5.0)))
}

func TestStringOrderingByUTF16CodeUnit(t *testing.T) {
	assert.Equal(t, -1, idbkey.Compare(mustKey(t, "a"), mustKey(t, "b")))
	assert.Equal(t, -1, idbkey.Compare(mustKey(t, "a"), mustKey(t, "aa")))
	assert.Equal(t, 0, idbkey.Compare(mustKey(t, "same"), mustKey(t, "same")))
}

func TestBinaryOrderingShorterPrefixLess(t *testing.T) {
	assert.Equal(t, -1, idbkey.Compare(mustKey(t, []byte{1}), mustKey(t, []byte{1, 0})))
	assert.Equal(t, -1, idbkey.Compare(mustKey(t, []byte{1, 2}), mustKey(t, []byte{1, 3})))
}

func TestArrayOrderingElementwise(t *testing.T) {
	a := mustKey(t, []any{1.0, 2.0})
	b := mustKey(t, []any{1.0, 3.0})
	c := mustKey(t, []any{1.0})
	assert.Equal(t, -1, idbkey.Compare(a, b))
	assert.Equal(t, 1, idbkey.Compare(a, c))
}

func TestEncodeMonotonicityLaw(t *testing.T) {
	// sign(compare(a,b)) == sign(memcmp(encode(a),encode(b)))
	values := []any{
		-100.0, -1.0, 0.0, 1.0, 100.0,
		time.Unix(0, 0), time.Unix(1000, 0),
		"", "a", "ab", "b",
		[]byte{}, []byte{0}, []byte{1},
		[]any{}, []any{1.0}, []any{1.0, 2.0},
	}
	keys := make([]idbkey.Key, len(values))
	for i, v := range values {
		keys[i] = mustKey(t, v)
	}
	for i := range keys {
		for j := range keys {
			want := idbkey.Compare(keys[i], keys[j])
			gotBytes := memcmpSign(idbkey.Encode(keys[i]), idbkey.Encode(keys[j]))
			assert.Equal(t, sign(want), sign(gotBytes), "mismatch comparing %#v and %#v", values[i], values[j])
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func memcmpSign(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return int(a[i]) - int(b[i])
		}
	}
	return len(a) - len(b)
}

func TestDecodeLegacyUnterminatedTrailingString(t *testing.T) {
	k := mustKey(t, "ab")
	enc := idbkey.Encode(k)
	// strip the trailing 00 00 terminator to simulate the legacy form.
	legacy := enc[:len(enc)-2]
	dec, err := idbkey.Decode(legacy)
	require.NoError(t, err)
	assert.Equal(t, 0, idbkey.Compare(k, dec))
}
