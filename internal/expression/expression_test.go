package expression_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/expression"
)

func lit(v any) map[string]any { return map[string]any{"literal": v} }

func TestLiteralAndVar(t *testing.T) {
	v, err := expression.Eval(lit("x"), expression.Ctx{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = expression.Eval(map[string]any{"var": "a.b"}, expression.Ctx{"a": map[string]any{"b": 42}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCoalesceReturnsFirstNonNull(t *testing.T) {
	expr := map[string]any{
		"expr": "coalesce",
		"args": []any{lit(nil), lit(nil), lit("found")},
	}
	v, err := expression.Eval(expr, expression.Ctx{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "found", v)
}

func TestCoalesceAllNullReturnsNull(t *testing.T) {
	expr := map[string]any{"expr": "coalesce", "args": []any{lit(nil)}}
	v, err := expression.Eval(expr, expression.Ctx{}, 0)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestCaseFirstMatchWins(t *testing.T) {
	expr := map[string]any{
		"expr": "case",
		"cases": []any{
			map[string]any{
				"when": map[string]any{"op": "eq", "left": lit(1), "right": lit(2)},
				"then": lit("no"),
			},
			map[string]any{
				"when": map[string]any{"op": "eq", "left": lit(1), "right": lit(1)},
				"then": lit("yes"),
			},
		},
		"else": lit("fallback"),
	}
	v, err := expression.Eval(expr, expression.Ctx{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "yes", v)
}

func TestCaseFallsThroughToElse(t *testing.T) {
	expr := map[string]any{
		"expr": "case",
		"cases": []any{
			map[string]any{
				"when": map[string]any{"op": "eq", "left": lit(1), "right": lit(2)},
				"then": lit("no"),
			},
		},
		"else": lit("fallback"),
	}
	v, err := expression.Eval(expr, expression.Ctx{}, 0)
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)
}

func TestCaseNoElseReturnsNil(t *testing.T) {
	expr := map[string]any{
		"expr": "case",
		"cases": []any{
			map[string]any{
				"when": map[string]any{"op": "eq", "left": lit(1), "right": lit(2)},
				"then": lit("no"),
			},
		},
	}
	v, err := expression.Eval(expr, expression.Ctx{}, 0)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestConditionErrorWrapped(t *testing.T) {
	expr := map[string]any{
		"expr": "case",
		"cases": []any{
			map[string]any{
				"when": map[string]any{"op": "bogus"},
				"then": lit("no"),
			},
		},
	}
	_, err := expression.Eval(expr, expression.Ctx{}, 0)
	require.Error(t, err)
	exprErr, ok := err.(*expression.Error)
	require.True(t, ok)
	assert.Equal(t, expression.CodeConditionError, exprErr.Code)
}

func TestUnknownExpr(t *testing.T) {
	_, err := expression.Eval(map[string]any{"expr": "bogus"}, expression.Ctx{}, 0)
	require.Error(t, err)
	exprErr, ok := err.(*expression.Error)
	require.True(t, ok)
	assert.Equal(t, expression.CodeUnknown, exprErr.Code)
}
