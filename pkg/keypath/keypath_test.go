package keypath_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/idbstore/pkg/idbkey"
	"github.com/cuemby/idbstore/pkg/keypath"
)

func TestParseRejectsInvalidSyntax(t *testing.T) {
	_, err := keypath.Parse("1bad")
	assert.Error(t, err)
	_, err = keypath.Parse("a..b")
	assert.Error(t, err)
}

func TestParseIdentity(t *testing.T) {
	p, err := keypath.Parse("")
	require.NoError(t, err)
	assert.False(t, p.Sequence())
	assert.Empty(t, p.Chains()[0])
}

func TestEvaluateResolved(t *testing.T) {
	p, err := keypath.Parse("id")
	require.NoError(t, err)
	r := keypath.Evaluate(p, map[string]any{"id": 42.0})
	require.Equal(t, keypath.Resolved, r.Outcome)
	assert.Equal(t, 0, idbkey.Compare(r.Key, mustNum(t, 42.0)))
}

func TestEvaluateNestedDotted(t *testing.T) {
	p, err := keypath.Parse("a.b.c")
	require.NoError(t, err)
	value := map[string]any{"a": map[string]any{"b": map[string]any{"c": "deep"}}}
	r := keypath.Evaluate(p, value)
	require.Equal(t, keypath.Resolved, r.Outcome)
	assert.Equal(t, "deep", r.Key.StringValue())
}

func TestEvaluateUnresolvedMissingIntermediate(t *testing.T) {
	p, err := keypath.Parse("a.b")
	require.NoError(t, err)
	r := keypath.Evaluate(p, map[string]any{"a": 5.0})
	assert.Equal(t, keypath.Unresolved, r.Outcome)
}

func TestEvaluateUnresolvedUndefinedTerminal(t *testing.T) {
	p, err := keypath.Parse("missing")
	require.NoError(t, err)
	r := keypath.Evaluate(p, map[string]any{})
	assert.Equal(t, keypath.Unresolved, r.Outcome)
}

func TestEvaluateInvalidTerminal(t *testing.T) {
	p, err := keypath.Parse("bad")
	require.NoError(t, err)
	r := keypath.Evaluate(p, map[string]any{"bad": struct{}{}})
	assert.Equal(t, keypath.Invalid, r.Outcome)
}

func TestEvaluateStringLength(t *testing.T) {
	p, err := keypath.Parse("name.length")
	require.NoError(t, err)
	r := keypath.Evaluate(p, map[string]any{"name": "hello"})
	require.Equal(t, keypath.Resolved, r.Outcome)
	assert.Equal(t, float64(5), r.Key.NumberValue())
}

func TestEvaluateSequence(t *testing.T) {
	p, err := keypath.ParseSequence([]string{"a", "b"})
	require.NoError(t, err)
	r := keypath.Evaluate(p, map[string]any{"a": 1.0, "b": 2.0})
	require.Equal(t, keypath.Resolved, r.Outcome)
	require.Equal(t, idbkey.KindArray, r.Key.Kind())
	assert.Len(t, r.Key.ArrayValue(), 2)
}

func TestEvaluateSequenceFailsIfAnyComponentFails(t *testing.T) {
	p, err := keypath.ParseSequence([]string{"a", "missing"})
	require.NoError(t, err)
	r := keypath.Evaluate(p, map[string]any{"a": 1.0})
	assert.Equal(t, keypath.Unresolved, r.Outcome)
}

func TestInjectCreatesIntermediates(t *testing.T) {
	p, err := keypath.Parse("meta.id")
	require.NoError(t, err)
	k, err := idbkey.Number(7)
	require.NoError(t, err)
	out, err := keypath.Inject(map[string]any{}, p, k)
	require.NoError(t, err)
	m := out.(map[string]any)
	inner := m["meta"].(map[string]any)
	assert.Equal(t, 7.0, inner["id"])
}

func TestInjectFailsOnPrimitiveIntermediate(t *testing.T) {
	p, err := keypath.Parse("a.b")
	require.NoError(t, err)
	k, err := idbkey.Number(1)
	require.NoError(t, err)
	_, err = keypath.Inject(map[string]any{"a": "not an object"}, p, k)
	assert.Error(t, err)
}

func TestEvaluateRawMultiEntry(t *testing.T) {
	p, err := keypath.Parse("tags")
	require.NoError(t, err)
	raw, ok := keypath.EvaluateRaw(p, map[string]any{"tags": []any{"a", "b"}})
	require.True(t, ok)
	assert.Equal(t, []any{"a", "b"}, raw)
}

func mustNum(t *testing.T, v float64) idbkey.Key {
	t.Helper()
	k, err := idbkey.Number(v)
	require.NoError(t, err)
	return k
}
