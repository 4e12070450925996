package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/condition"
)

func lit(v any) map[string]any { return map[string]any{"literal": v} }
func varNode(name string) map[string]any { return map[string]any{"var": name} }

func TestEmptyAndOr(t *testing.T) {
	ok, err := condition.Eval(map[string]any{"op": "and", "children": []any{}}, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = condition.Eval(map[string]any{"op": "or", "children": []any{}}, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEqNumericCrossType(t *testing.T) {
	cond := map[string]any{"op": "eq", "left": lit(1), "right": lit(1.0)}
	ok, err := condition.Eval(cond, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExistsDoesNotRaiseOnUnresolved(t *testing.T) {
	cond := map[string]any{"op": "exists", "left": varNode("missing.path")}
	ok, err := condition.Eval(cond, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVarUnresolvedOutsideExistsRaises(t *testing.T) {
	cond := map[string]any{"op": "eq", "left": varNode("missing"), "right": lit(1)}
	_, err := condition.Eval(cond, condition.Ctx{}, 0)
	require.Error(t, err)
	condErr, ok := err.(*condition.Error)
	require.True(t, ok)
	assert.Equal(t, condition.CodeVarUnresolved, condErr.Code)
}

func TestAllAnyEmptyList(t *testing.T) {
	anyCond := map[string]any{
		"op":    "any",
		"over":  map[string]any{"literal": []any{}},
		"where": map[string]any{"op": "eq", "left": lit(1), "right": lit(1)},
	}
	ok, err := condition.Eval(anyCond, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	allCond := map[string]any{
		"op":    "all",
		"over":  map[string]any{"literal": []any{}},
		"where": map[string]any{"op": "eq", "left": lit(1), "right": lit(2)},
	}
	ok, err = condition.Eval(allCond, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDepthExceeded(t *testing.T) {
	cond := map[string]any{"op": "not", "children": []any{
		map[string]any{"op": "not", "children": []any{
			map[string]any{"op": "eq", "left": lit(1), "right": lit(1)},
		}},
	}}
	_, err := condition.Eval(cond, condition.Ctx{}, 2)
	require.Error(t, err)
	condErr, ok := err.(*condition.Error)
	require.True(t, ok)
	assert.Equal(t, condition.CodeDepthExceeded, condErr.Code)
}

func TestUnknownOp(t *testing.T) {
	_, err := condition.Eval(map[string]any{"op": "bogus"}, condition.Ctx{}, 0)
	require.Error(t, err)
	condErr, ok := err.(*condition.Error)
	require.True(t, ok)
	assert.Equal(t, condition.CodeUnknownOp, condErr.Code)
}

func TestContainsStringAndList(t *testing.T) {
	ok, err := condition.Eval(map[string]any{
		"op": "contains", "left": lit("hello world"), "right": lit("world"),
	}, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = condition.Eval(map[string]any{
		"op":    "contains",
		"left":  map[string]any{"array": []any{lit("a"), lit("b")}},
		"right": lit("b"),
	}, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestInNotIn(t *testing.T) {
	ok, err := condition.Eval(map[string]any{
		"op":   "in",
		"left": lit("b"),
		"right": map[string]any{"array": []any{lit("a"), lit("b"), lit("c")}},
	}, condition.Ctx{}, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVarResolvesThroughCtx(t *testing.T) {
	ctx := condition.Ctx{"record": map[string]any{"status": "open"}}
	ok, err := condition.Eval(map[string]any{
		"op": "eq", "left": varNode("record.status"), "right": lit("open"),
	}, ctx, 0)
	require.NoError(t, err)
	assert.True(t, ok)
}
