package canon_test

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/canon"
)

func decodeNumbers(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestHashDeterministicWithKeyOrder(t *testing.T) {
	a := map[string]any{"b": 1, "a": 2}
	b := map[string]any{"a": 2, "b": 1}
	ha, err := canon.Hash(a)
	require.NoError(t, err)
	hb, err := canon.Hash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashDiffersForDifferentContent(t *testing.T) {
	ha, err := canon.Hash(map[string]any{"a": 1})
	require.NoError(t, err)
	hb, err := canon.Hash(map[string]any{"a": 2})
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestHashFormat(t *testing.T) {
	h, err := canon.Hash(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Len(t, h, len("sha256:")+64)
	assert.Equal(t, "sha256:", h[:7])
}

func TestHashRejectsNonFinite(t *testing.T) {
	_, err := canon.Hash(map[string]any{"bad": math.NaN()})
	require.Error(t, err)

	_, err = canon.Hash(map[string]any{"bad": math.Inf(1)})
	require.Error(t, err)

	_, err = canon.Hash(map[string]any{"bad": math.Inf(-1)})
	require.Error(t, err)
}

func TestHashNumericDistinction(t *testing.T) {
	a := decodeNumbers(t, `{"n":1}`)
	b := decodeNumbers(t, `{"n":1.0}`)
	ha, err := canon.Hash(a)
	require.NoError(t, err)
	hb, err := canon.Hash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestCanonicalizeSortsKeys(t *testing.T) {
	b, err := canon.Canonicalize(map[string]any{"z": 1, "a": 2})
	require.NoError(t, err)
	assert.Equal(t, `{"a":2,"z":1}`, string(b))
}
