package workflow_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/workflow"
)

func sampleWorkflow() map[string]any {
	return map[string]any{
		"id":            "workflow.job",
		"initial_state": "new",
		"states": []any{
			map[string]any{"id": "new"},
			map[string]any{"id": "done"},
		},
		"transitions": []any{
			map[string]any{
				"id":    "t1",
				"from":  "new",
				"to":    "done",
				"guard":   map[string]any{"op": "eq", "left": map[string]any{"var": "job.status"}, "right": map[string]any{"literal": "ok"}},
				"actions": []any{"action.close"},
				"emits":   []any{map[string]any{"name": "job.closed", "payload": map[string]any{"ok": true}}},
			},
		},
	}
}

func sampleCtx(status string) map[string]any {
	return map[string]any{
		"vars": map[string]any{
			"job": map[string]any{"status": status},
		},
	}
}

func TestInvalidWorkflowStructure(t *testing.T) {
	bad := map[string]any{
		"id": "w", "initial_state": "x",
		"states":      []any{},
		"transitions": []any{map[string]any{"id": "t", "from": "x", "to": "y"}},
	}
	result := workflow.PlanStep(bad, "x", sampleCtx("ok"), 0)
	assert.False(t, result.OK)
}

func TestGuardTrueSelectsTransition(t *testing.T) {
	result := workflow.PlanStep(sampleWorkflow(), "new", sampleCtx("ok"), 0)
	require.True(t, result.OK)
	require.NotNil(t, result.Plan.ChosenTransitionID)
	assert.Equal(t, "t1", *result.Plan.ChosenTransitionID)
}

func TestGuardFalseNoTransition(t *testing.T) {
	result := workflow.PlanStep(sampleWorkflow(), "new", sampleCtx("no"), 0)
	require.True(t, result.OK)
	assert.Nil(t, result.Plan.ChosenTransitionID)
}

func TestMultipleTransitionsWarning(t *testing.T) {
	wf := map[string]any{
		"id": "w", "initial_state": "s",
		"states": []any{map[string]any{"id": "s"}, map[string]any{"id": "t"}},
		"transitions": []any{
			map[string]any{"id": "b", "from": "s", "to": "t", "actions": []any{}},
			map[string]any{"id": "a", "from": "s", "to": "t", "actions": []any{}},
		},
	}
	result := workflow.PlanStep(wf, "s", sampleCtx("ok"), 0)
	require.True(t, result.OK)
	require.NotNil(t, result.Plan.ChosenTransitionID)
	assert.Equal(t, "a", *result.Plan.ChosenTransitionID)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, workflow.CodeMultipleTransitions, result.Warnings[0].Code)
}

func TestGuardError(t *testing.T) {
	wf := map[string]any{
		"id": "w", "initial_state": "s",
		"states": []any{map[string]any{"id": "s"}, map[string]any{"id": "t"}},
		"transitions": []any{
			map[string]any{
				"id": "t1", "from": "s", "to": "t",
				"guard": map[string]any{"op": "eq", "left": map[string]any{"var": "missing"}, "right": map[string]any{"literal": 1}},
			},
		},
	}
	result := workflow.PlanStep(wf, "s", sampleCtx("ok"), 0)
	assert.False(t, result.OK)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, workflow.CodeGuardError, result.Errors[0].Code)
}

func TestDeterministicOutput(t *testing.T) {
	wf := sampleWorkflow()
	ctx := sampleCtx("ok")
	result1 := workflow.PlanStep(wf, "new", ctx, 0)
	result2 := workflow.PlanStep(wf, "new", ctx, 0)
	assert.Equal(t, result1.Plan, result2.Plan)
}
