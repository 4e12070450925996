// Package rules adapts internal/condition, internal/expression,
// internal/workflow, internal/validate, and internal/normalize as MCP tools —
// the manifest-authoring-time checks a client runs before proposing a patch.
package rules

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/manifold-platform/manifoldmcp/internal/condition"
	"github.com/manifold-platform/manifoldmcp/internal/expression"
	"github.com/manifold-platform/manifoldmcp/internal/mcp"
	"github.com/manifold-platform/manifoldmcp/internal/normalize"
	"github.com/manifold-platform/manifoldmcp/internal/validate"
	"github.com/manifold-platform/manifoldmcp/internal/workflow"
)

// EvalCondition evaluates a manifest condition node against a supplied
// variable context.
type EvalCondition struct{}

func NewEvalCondition() *EvalCondition { return &EvalCondition{} }

func (t *EvalCondition) Name() string { return "condition_eval" }

func (t *EvalCondition) Description() string {
	return "Evaluate a manifest condition (visible_when/enabled_when/required_when/disabled_when dialect) against a variable context. Returns the boolean result or a typed condition error."
}

func (t *EvalCondition) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "condition": {"type": "object"},
    "context": {"type": "object"},
    "depth_limit": {"type": "integer"}
  },
  "required": ["condition", "context"]
}`)
}

func (t *EvalCondition) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Condition  map[string]any `json:"condition"`
		Context    map[string]any `json:"context"`
		DepthLimit int            `json:"depth_limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	depthLimit := p.DepthLimit
	if depthLimit <= 0 {
		depthLimit = condition.DefaultDepthLimit
	}
	result, err := condition.Eval(p.Condition, p.Context, depthLimit)
	if err != nil {
		if condErr, ok := err.(*condition.Error); ok {
			return mcp.JSONResult(map[string]any{
				"ok": false, "error": map[string]any{"code": condErr.Code, "message": condErr.Message, "path": condErr.Path},
			})
		}
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"ok": true, "result": result})
}

// EvalExpression evaluates a manifest value expression (literal/var/
// coalesce/case) against a supplied variable context.
type EvalExpression struct{}

func NewEvalExpression() *EvalExpression { return &EvalExpression{} }

func (t *EvalExpression) Name() string { return "expression_eval" }

func (t *EvalExpression) Description() string {
	return "Evaluate a manifest value expression (literal/var/coalesce/case) against a variable context. Returns the resolved value or a typed expression error."
}

func (t *EvalExpression) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "expression": {"type": "object"},
    "context": {"type": "object"},
    "depth_limit": {"type": "integer"}
  },
  "required": ["expression", "context"]
}`)
}

func (t *EvalExpression) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Expression map[string]any `json:"expression"`
		Context    map[string]any `json:"context"`
		DepthLimit int            `json:"depth_limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	depthLimit := p.DepthLimit
	if depthLimit <= 0 {
		depthLimit = expression.DefaultDepthLimit
	}
	result, err := expression.Eval(p.Expression, p.Context, depthLimit)
	if err != nil {
		if exprErr, ok := err.(*expression.Error); ok {
			return mcp.JSONResult(map[string]any{
				"ok": false, "error": map[string]any{"code": exprErr.Code, "message": exprErr.Message, "path": exprErr.Path},
			})
		}
		return mcp.ErrorResult(err.Error()), nil
	}
	return mcp.JSONResult(map[string]any{"ok": true, "result": result})
}

// PlanWorkflowStep wraps internal/workflow.PlanStep: choose zero or one
// transition leaving the current state without executing any side effect.
type PlanWorkflowStep struct{}

func NewPlanWorkflowStep() *PlanWorkflowStep { return &PlanWorkflowStep{} }

func (t *PlanWorkflowStep) Name() string { return "workflow_plan_step" }

func (t *PlanWorkflowStep) Description() string {
	return "Given a workflow definition, the current state, and a variable context, choose the transition (if any) whose guard passes. Does not execute actions or events — planning only."
}

func (t *PlanWorkflowStep) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "workflow": {"type": "object"},
    "current_state": {"type": "string"},
    "context": {"type": "object"},
    "depth_limit": {"type": "integer"}
  },
  "required": ["workflow", "current_state", "context"]
}`)
}

func (t *PlanWorkflowStep) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Workflow     map[string]any `json:"workflow"`
		CurrentState string         `json:"current_state"`
		Context      map[string]any `json:"context"`
		DepthLimit   int            `json:"depth_limit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	depthLimit := p.DepthLimit
	if depthLimit <= 0 {
		depthLimit = workflow.DefaultDepthLimit
	}
	result := workflow.PlanStep(p.Workflow, p.CurrentState, p.Context, depthLimit)
	return mcp.JSONResult(result)
}

// ValidateManifest runs internal/validate.Manifest's structural and
// cross-reference checks, version-gated by the manifest's declared
// manifest_version.
type ValidateManifest struct{}

func NewValidateManifest() *ValidateManifest { return &ValidateManifest{} }

func (t *ValidateManifest) Name() string { return "manifest_validate" }

func (t *ValidateManifest) Description() string {
	return "Structurally validate a manifest: required fields, cross-references between entities/views/blocks/actions, enum shape, and version-gated feature checks."
}

func (t *ValidateManifest) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "manifest": {"type": "object"},
    "expected_module_id": {"type": "string"}
  },
  "required": ["manifest"]
}`)
}

func (t *ValidateManifest) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Manifest         map[string]any `json:"manifest"`
		ExpectedModuleID string         `json:"expected_module_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	errs, warnings := validate.Manifest(p.Manifest, p.ExpectedModuleID)
	return mcp.JSONResult(map[string]any{"ok": len(errs) == 0, "errors": errs, "warnings": warnings})
}

// NormalizeManifest rewrites a legacy/v0 manifest shape into the canonical
// v1.3 layout without validating it.
type NormalizeManifest struct{}

func NewNormalizeManifest() *NormalizeManifest { return &NormalizeManifest{} }

func (t *NormalizeManifest) Name() string { return "manifest_normalize" }

func (t *NormalizeManifest) Description() string {
	return "Rewrite a legacy or shorthand manifest (dict-shaped entities, top-level module fields, unqualified view targets) into the canonical manifest shape."
}

func (t *NormalizeManifest) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"manifest": {"type": "object"}},
  "required": ["manifest"]
}`)
}

func (t *NormalizeManifest) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Manifest map[string]any `json:"manifest"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"manifest": normalize.Manifest(p.Manifest)})
}
