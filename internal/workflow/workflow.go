// Package workflow implements the deterministic workflow step planner:
// filter transitions leaving the current state, evaluate optional guards,
// and choose zero or one transition without executing any side effect.
package workflow

import (
	"fmt"
	"sort"

	"github.com/manifold-platform/manifoldmcp/internal/condition"
	"github.com/manifold-platform/manifoldmcp/internal/issue"
)

const (
	CodeInvalid             = "WORKFLOW_INVALID"
	CodeGuardError          = "WORKFLOW_GUARD_ERROR"
	CodeMultipleTransitions = "WORKFLOW_MULTIPLE_TRANSITIONS"
)

// DefaultDepthLimit is the guard-condition depth budget used when callers
// don't specify one.
const DefaultDepthLimit = 10

// Plan is the outcome of a single workflow step: the chosen transition (if
// any) together with the actions and events it carries.
type Plan struct {
	WorkflowID         string   `json:"workflow_id"`
	CurrentState       string   `json:"current_state"`
	ChosenTransitionID *string  `json:"chosen_transition_id"`
	NextState          *string  `json:"next_state"`
	Actions            []string `json:"actions"`
	Events             []any    `json:"events"`
}

// StepResult is the envelope PlanStep (and the workflow_plan_step tool) returns.
type StepResult struct {
	issue.Result
	Plan *Plan `json:"plan"`
}

func fail(errs issue.List) StepResult {
	return StepResult{Result: issue.NewResult(errs, nil), Plan: nil}
}

// validateWorkflow checks workflow shape, appending to errs, including that
// every transition's from/to names a declared state. It returns nothing; the
// caller inspects errs.
func validateWorkflow(workflow map[string]any, errs *issue.List) {
	id, _ := workflow["id"].(string)
	if id == "" {
		*errs = append(*errs, issue.At(CodeInvalid, "workflow.id must be non-empty string", "$.id"))
	}
	initial, _ := workflow["initial_state"].(string)
	if initial == "" {
		*errs = append(*errs, issue.At(CodeInvalid, "initial_state must be non-empty string", "$.initial_state"))
	}

	statesRaw, ok := workflow["states"].([]any)
	if !ok {
		*errs = append(*errs, issue.At(CodeInvalid, "states must be list", "$.states"))
		return
	}

	stateIDs := make([]string, 0, len(statesRaw))
	seenState := map[string]bool{}
	dupState := false
	for idx, raw := range statesRaw {
		sm, ok := raw.(map[string]any)
		sid, _ := sm["id"].(string)
		if !ok || sid == "" {
			*errs = append(*errs, issue.At(CodeInvalid, "state.id must be non-empty string", fmt.Sprintf("$.states[%d].id", idx)))
			continue
		}
		stateIDs = append(stateIDs, sid)
		if seenState[sid] {
			dupState = true
		}
		seenState[sid] = true
	}
	if dupState {
		*errs = append(*errs, issue.At(CodeInvalid, "state ids must be unique", "$.states"))
	}

	transitionsRaw, ok := workflow["transitions"].([]any)
	if !ok {
		*errs = append(*errs, issue.At(CodeInvalid, "transitions must be list", "$.transitions"))
		return
	}

	stateSet := map[string]bool{}
	for _, s := range stateIDs {
		stateSet[s] = true
	}

	seenTr := map[string]bool{}
	dupTr := false
	for idx, raw := range transitionsRaw {
		tr, ok := raw.(map[string]any)
		if !ok {
			*errs = append(*errs, issue.At(CodeInvalid, "transition.id must be non-empty string", fmt.Sprintf("$.transitions[%d].id", idx)))
			continue
		}
		trID, _ := tr["id"].(string)
		if trID == "" {
			*errs = append(*errs, issue.At(CodeInvalid, "transition.id must be non-empty string", fmt.Sprintf("$.transitions[%d].id", idx)))
		} else {
			if seenTr[trID] {
				dupTr = true
			}
			seenTr[trID] = true
		}

		from, fromOK := tr["from"].(string)
		to, toOK := tr["to"].(string)
		if !fromOK || !toOK {
			*errs = append(*errs, issue.At(CodeInvalid, "transition.from/to must be strings", fmt.Sprintf("$.transitions[%d]", idx)))
		} else {
			if !stateSet[from] {
				*errs = append(*errs, issue.At(CodeInvalid, "transition.from unknown state", fmt.Sprintf("$.transitions[%d].from", idx)))
			}
			if !stateSet[to] {
				*errs = append(*errs, issue.At(CodeInvalid, "transition.to unknown state", fmt.Sprintf("$.transitions[%d].to", idx)))
			}
		}

		if actionsRaw, present := tr["actions"]; present && actionsRaw != nil {
			actions, ok := actionsRaw.([]any)
			valid := ok
			if ok {
				for _, a := range actions {
					s, ok := a.(string)
					if !ok || s == "" {
						valid = false
						break
					}
				}
			}
			if !valid {
				*errs = append(*errs, issue.At(CodeInvalid, "actions must be list of non-empty strings", fmt.Sprintf("$.transitions[%d].actions", idx)))
			}
		}

		if emitsRaw, present := tr["emits"]; present && emitsRaw != nil {
			emits, ok := emitsRaw.([]any)
			if !ok {
				*errs = append(*errs, issue.At(CodeInvalid, "emits must be list", fmt.Sprintf("$.transitions[%d].emits", idx)))
			} else {
				for eidx, evtRaw := range emits {
					evt, ok := evtRaw.(map[string]any)
					name, _ := evt["name"].(string)
					if !ok || name == "" {
						*errs = append(*errs, issue.At(CodeInvalid, "event.name must be non-empty string", fmt.Sprintf("$.transitions[%d].emits[%d].name", idx, eidx)))
					}
					if payload, present := evt["payload"]; present && payload != nil {
						if _, ok := payload.(map[string]any); !ok {
							*errs = append(*errs, issue.At(CodeInvalid, "event.payload must be object", fmt.Sprintf("$.transitions[%d].emits[%d].payload", idx, eidx)))
						}
					}
				}
			}
		}
	}
	if dupTr {
		*errs = append(*errs, issue.At(CodeInvalid, "transition ids must be unique", "$.transitions"))
	}
}

// PlanStep evaluates a single step of workflow from currentState given ctx
// (must carry a "vars" object) and returns the chosen transition, if any.
func PlanStep(workflow map[string]any, currentState string, ctx map[string]any, depthLimit int) StepResult {
	if depthLimit <= 0 {
		depthLimit = DefaultDepthLimit
	}
	if workflow == nil {
		return fail(issue.List{issue.At(CodeInvalid, "workflow must be object", "$")})
	}

	var errs issue.List
	validateWorkflow(workflow, &errs)
	if len(errs) > 0 {
		return fail(errs)
	}

	if currentState == "" {
		return fail(issue.List{issue.At(CodeInvalid, "current_state must be non-empty string", "$.current_state")})
	}

	varsCtx, ok := ctx["vars"].(map[string]any)
	if !ok {
		return fail(issue.List{issue.At(CodeInvalid, "ctx.vars must be object", "$.ctx.vars")})
	}

	transitionsRaw, _ := workflow["transitions"].([]any)

	var candidates []map[string]any
	for _, raw := range transitionsRaw {
		tr, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if from, _ := tr["from"].(string); from == currentState {
			candidates = append(candidates, tr)
		}
	}

	var allowed []map[string]any
	for _, tr := range candidates {
		if tr["guard"] == nil {
			allowed = append(allowed, tr)
			continue
		}
		guard, ok := tr["guard"].(map[string]any)
		if !ok {
			return fail(issue.List{issue.At(CodeInvalid, "transition.guard must be condition object", "$.transitions.guard")})
		}
		matched, err := condition.Eval(guard, varsCtx, depthLimit)
		if err != nil {
			condErr, _ := err.(*condition.Error)
			code := ""
			msg := err.Error()
			if condErr != nil {
				code = condErr.Code
				msg = condErr.Message
			}
			return fail(issue.List{issue.WithDetail(
				CodeGuardError, msg, "$.transitions.guard",
				map[string]any{"transition_id": tr["id"], "error_code": code},
			)})
		}
		if matched {
			allowed = append(allowed, tr)
		}
	}

	id, _ := workflow["id"].(string)
	var warnings issue.List

	if len(allowed) == 0 {
		plan := &Plan{
			WorkflowID:   id,
			CurrentState: currentState,
			Actions:      []string{},
			Events:       []any{},
		}
		return StepResult{Result: issue.NewResult(nil, nil), Plan: plan}
	}

	chosen := allowed[0]
	if len(allowed) > 1 {
		ids := make([]string, 0, len(allowed))
		for _, tr := range allowed {
			if s, ok := tr["id"].(string); ok {
				ids = append(ids, s)
			}
		}
		sort.Strings(ids)
		warnings = append(warnings, issue.WithDetail(
			CodeMultipleTransitions,
			"Multiple transitions allowed; choosing lexicographically smallest id",
			"$.transitions",
			map[string]any{"allowed": ids},
		))
		sort.Slice(allowed, func(i, j int) bool {
			si, _ := allowed[i]["id"].(string)
			sj, _ := allowed[j]["id"].(string)
			return si < sj
		})
		chosen = allowed[0]
	}

	chosenID, _ := chosen["id"].(string)
	nextState, _ := chosen["to"].(string)

	var actions []string
	if rawActions, ok := chosen["actions"].([]any); ok {
		for _, a := range rawActions {
			if s, ok := a.(string); ok {
				actions = append(actions, s)
			}
		}
	}
	if actions == nil {
		actions = []string{}
	}

	events := []any{}
	if rawEvents, ok := chosen["emits"].([]any); ok {
		events = rawEvents
	}

	plan := &Plan{
		WorkflowID:         id,
		CurrentState:       currentState,
		ChosenTransitionID: &chosenID,
		NextState:          &nextState,
		Actions:            actions,
		Events:             events,
	}

	return StepResult{Result: issue.NewResult(nil, warnings), Plan: plan}
}
