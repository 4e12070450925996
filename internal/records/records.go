// Package records validates record payloads against an entity's field
// declarations and, when supplied, a workflow's status field — the piece
// of generic record CRUD the workflow planner and manifest validator both
// need underneath them.
package records

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/manifold-platform/manifoldmcp/internal/issue"
)

// EntityLookup is the collaborator records needs to resolve a lookup
// field's target entity across every enabled module in the calling
// tenant — a thin view over internal/registry.List + internal/store.GetSnapshot
// so this package never imports either directly.
type EntityLookup interface {
	// EnabledModules returns (module_id, current_hash) for every enabled,
	// non-archived module.
	EnabledModules() [][2]string
	// Snapshot returns the manifest stored at moduleID/hash.
	Snapshot(moduleID, hash string) (map[string]any, error)
}

// NormalizeEntityID strips surrounding slashes/whitespace, mirroring the
// reference implementation's defensive trim before comparison.
func NormalizeEntityID(entityID string) string {
	return strings.TrimSpace(strings.Trim(entityID, "/"))
}

// MatchEntityID reports whether requested and declared refer to the same
// entity, tolerating the presence/absence of the "entity." prefix on either
// side.
func MatchEntityID(requested, declared string) bool {
	if requested == declared {
		return true
	}
	if strings.HasPrefix(declared, "entity.") && requested == declared[len("entity."):] {
		return true
	}
	if strings.HasPrefix(requested, "entity.") && requested[len("entity."):] == declared {
		return true
	}
	return false
}

func entitiesFromManifest(manifest map[string]any) []map[string]any {
	raw, ok := manifest["entities"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		out := make([]map[string]any, 0, len(v))
		for id, item := range v {
			m, _ := item.(map[string]any)
			merged := map[string]any{"id": id}
			for k, val := range m {
				merged[k] = val
			}
			out = append(out, merged)
		}
		return out
	}
	return nil
}

func fieldsOf(entity map[string]any) []map[string]any {
	raw, ok := entity["fields"]
	if !ok {
		return nil
	}
	switch v := raw.(type) {
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		out := make([]map[string]any, 0, len(v))
		for id, item := range v {
			m, _ := item.(map[string]any)
			merged := map[string]any{"id": id}
			for k, val := range m {
				merged[k] = val
			}
			out = append(out, merged)
		}
		return out
	}
	return nil
}

func fieldByID(fields []map[string]any) map[string]map[string]any {
	out := map[string]map[string]any{}
	for _, f := range fields {
		if id, ok := f["id"].(string); ok && id != "" {
			out[id] = f
		}
	}
	return out
}

// FoundEntity is the result of resolving a (possibly cross-module) entity
// reference through the registry.
type FoundEntity struct {
	ModuleID string
	Entity   map[string]any
	Manifest map[string]any
}

// FindEntityDef walks every enabled module's current snapshot looking for an
// entity matching entityID, the way a lookup field's target is resolved
// across module boundaries.
func FindEntityDef(lookup EntityLookup, entityID string) (*FoundEntity, bool) {
	entityID = NormalizeEntityID(entityID)
	for _, mod := range lookup.EnabledModules() {
		moduleID, hash := mod[0], mod[1]
		if moduleID == "" || hash == "" {
			continue
		}
		manifest, err := lookup.Snapshot(moduleID, hash)
		if err != nil {
			continue
		}
		for _, ent := range entitiesFromManifest(manifest) {
			id, _ := ent["id"].(string)
			if id != "" && MatchEntityID(entityID, id) {
				return &FoundEntity{ModuleID: moduleID, Entity: ent, Manifest: manifest}, true
			}
		}
	}
	return nil, false
}

func enumValues(field map[string]any) []any {
	raw, ok := field["options"]
	if !ok {
		raw = field["values"]
	}
	list, _ := raw.([]any)
	out := make([]any, 0, len(list))
	for _, opt := range list {
		if m, ok := opt.(map[string]any); ok {
			if v, ok := m["value"]; ok {
				out = append(out, v)
				continue
			}
		}
		out = append(out, opt)
	}
	return out
}

// IsUUID reports whether value parses as a UUID (any version/variant).
func IsUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

func applyDefaults(fields map[string]map[string]any, data map[string]any) map[string]any {
	updated := make(map[string]any, len(data))
	for k, v := range data {
		updated[k] = v
	}
	for fieldID, field := range fields {
		def, hasDefault := field["default"]
		if !hasDefault {
			continue
		}
		if existing, present := updated[fieldID]; present && !isEmpty(existing) {
			continue
		}
		updated[fieldID] = def
	}
	return updated
}

// FindEntityWorkflow returns the first workflow in manifest whose entity
// matches entityID.
func FindEntityWorkflow(manifest map[string]any, entityID string) map[string]any {
	raw, ok := manifest["workflows"].([]any)
	if !ok {
		return nil
	}
	for _, item := range raw {
		wf, ok := item.(map[string]any)
		if !ok {
			continue
		}
		wfEntity, _ := wf["entity"].(string)
		if wfEntity != "" && MatchEntityID(entityID, wfEntity) {
			return wf
		}
	}
	return nil
}

func workflowRequiredFields(workflow map[string]any, statusValue string) []string {
	if workflow == nil || statusValue == "" {
		return nil
	}
	seen := map[string]bool{}
	var required []string
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			required = append(required, id)
		}
	}
	if states, ok := workflow["states"].([]any); ok {
		for _, s := range states {
			state, ok := s.(map[string]any)
			if !ok {
				continue
			}
			if id, _ := state["id"].(string); id == statusValue {
				if list, ok := state["required_fields"].([]any); ok {
					for _, f := range list {
						if s, ok := f.(string); ok {
							add(s)
						}
					}
				}
			}
		}
	}
	if byState, ok := workflow["required_fields_by_state"].(map[string]any); ok {
		if list, ok := byState[statusValue].([]any); ok {
			for _, f := range list {
				if s, ok := f.(string); ok {
					add(s)
				}
			}
		}
	}
	return required
}

// SimpleConditionCtx is the minimal evaluation context the required_when
// dialect resolves $record./$candidate. references and bare field names
// against.
type SimpleConditionCtx struct {
	Record    map[string]any
	Candidate map[string]any
}

func simpleGetByPath(data map[string]any, path string) (any, bool) {
	if data == nil {
		return nil, false
	}
	if v, ok := data[path]; ok {
		return v, true
	}
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func simpleResolveRef(ref string, ctx SimpleConditionCtx) any {
	switch {
	case strings.HasPrefix(ref, "$record."):
		v, _ := simpleGetByPath(ctx.Record, ref[len("$record."):])
		return v
	case strings.HasPrefix(ref, "$candidate."):
		v, _ := simpleGetByPath(ctx.Candidate, ref[len("$candidate."):])
		return v
	}
	if v, ok := simpleGetByPath(ctx.Candidate, ref); ok && v != nil {
		return v
	}
	v, _ := simpleGetByPath(ctx.Record, ref)
	return v
}

func simpleResolveOperand(operand any, ctx SimpleConditionCtx) any {
	if m, ok := operand.(map[string]any); ok {
		if ref, ok := m["ref"].(string); ok {
			return simpleResolveRef(ref, ctx)
		}
	}
	return operand
}

var simpleAllowedOps = map[string]bool{
	"eq": true, "neq": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"in": true, "contains": true, "exists": true, "and": true, "or": true, "not": true,
}

// EvalSimpleCondition evaluates the lightweight required_when dialect
// (op/left/right or op/field/value, plus and/or/not combinators) used by
// record field declarations — distinct from internal/condition's richer
// manifest DSL. A malformed condition, an unknown operator, or an operand
// type the operator can't compare (e.g. gt/gte/lt/lte on a non-numeric
// value) is reported as an error rather than silently evaluating to false,
// mirroring the reference implementation's conditions.py, which raises
// TypeError in exactly these cases; evalRequiredWhen relies on that error
// to fail closed.
func EvalSimpleCondition(cond map[string]any, ctx SimpleConditionCtx) (bool, error) {
	if cond == nil {
		return false, fmt.Errorf("condition must be an object")
	}
	op, _ := cond["op"].(string)
	if !simpleAllowedOps[op] {
		return false, fmt.Errorf("unsupported condition op: %q", op)
	}

	switch op {
	case "and":
		items, ok := cond["conditions"].([]any)
		if !ok {
			return false, fmt.Errorf("and.conditions must be a list")
		}
		for _, c := range items {
			sub, ok := c.(map[string]any)
			if !ok {
				return false, fmt.Errorf("and.conditions entries must be objects")
			}
			matched, err := EvalSimpleCondition(sub, ctx)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil
	case "or":
		items, ok := cond["conditions"].([]any)
		if !ok {
			return false, fmt.Errorf("or.conditions must be a list")
		}
		for _, c := range items {
			sub, ok := c.(map[string]any)
			if !ok {
				return false, fmt.Errorf("or.conditions entries must be objects")
			}
			matched, err := EvalSimpleCondition(sub, ctx)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil
	case "not":
		sub, ok := cond["condition"].(map[string]any)
		if !ok {
			return false, fmt.Errorf("not.condition must be an object")
		}
		matched, err := EvalSimpleCondition(sub, ctx)
		if err != nil {
			return false, err
		}
		return !matched, nil
	}

	var left, right any
	if _, hasLeft := cond["left"]; hasLeft {
		left = simpleResolveOperand(cond["left"], ctx)
		right = simpleResolveOperand(cond["right"], ctx)
	} else if field, ok := cond["field"].(string); ok {
		left = simpleResolveRef(field, ctx)
		right = cond["value"]
	} else {
		return false, fmt.Errorf("condition must set left/right or field/value")
	}

	switch op {
	case "exists":
		return left != nil && left != "", nil
	case "eq":
		return simpleEqual(left, right), nil
	case "neq":
		return !simpleEqual(left, right), nil
	case "gt", "gte", "lt", "lte":
		lf, lok := toFloat(left)
		rf, rok := toFloat(right)
		if !lok || !rok {
			return false, fmt.Errorf("%s requires numeric operands, got %T and %T", op, left, right)
		}
		switch op {
		case "gt":
			return lf > rf, nil
		case "gte":
			return lf >= rf, nil
		case "lt":
			return lf < rf, nil
		default:
			return lf <= rf, nil
		}
	case "in":
		list, ok := right.([]any)
		if !ok {
			return false, fmt.Errorf("in requires a list operand, got %T", right)
		}
		for _, v := range list {
			if simpleEqual(v, left) {
				return true, nil
			}
		}
		return false, nil
	case "contains":
		if list, ok := left.([]any); ok {
			for _, v := range list {
				if simpleEqual(v, right) {
					return true, nil
				}
			}
			return false, nil
		}
		if s, ok := left.(string); ok {
			r, ok := right.(string)
			if !ok {
				return false, fmt.Errorf("contains requires a string right operand when left is a string, got %T", right)
			}
			return strings.Contains(s, r), nil
		}
		return false, fmt.Errorf("contains requires a list or string left operand, got %T", left)
	}
	return false, fmt.Errorf("unsupported condition op: %q", op)
}

func simpleEqual(a, b any) bool {
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// ValidateRecordPayload enforces field presence/type/enum/status rules
// against entity's declared fields, applying defaults on create. It returns
// the accumulated issue list (never short-circuiting) and the
// (possibly-defaulted) record data.
func ValidateRecordPayload(entity map[string]any, data map[string]any, forCreate bool, workflow map[string]any) (issue.List, map[string]any) {
	if data == nil {
		return issue.List{issue.New("INVALID_PAYLOAD", "record data must be an object")}, map[string]any{}
	}

	fields := fieldByID(fieldsOf(entity))

	var errs issue.List
	addErr := func(code, message, path string) {
		errs = append(errs, issue.At(code, message, path))
	}

	for key := range data {
		if key == "id" {
			continue
		}
		if _, ok := fields[key]; !ok {
			addErr("UNKNOWN_FIELD", "unknown field: "+key, key)
		}
	}

	out := data
	if forCreate {
		out = applyDefaults(fields, data)
		for fieldID, field := range fields {
			if required, _ := field["required"].(bool); required {
				if isEmpty(out[fieldID]) {
					addErr("REQUIRED_FIELD", "missing required field: "+fieldID, fieldID)
				}
			}
			if requiredWhen, ok := field["required_when"].(map[string]any); ok {
				if evalRequiredWhen(requiredWhen, out) {
					if isEmpty(out[fieldID]) {
						addErr("REQUIRED_FIELD", "missing required field: "+fieldID, fieldID)
					}
				}
			}
		}
	}

	if workflow != nil {
		statusField, _ := workflow["status_field"].(string)
		var statusValue string
		var hasStatus bool
		if statusField != "" {
			if v, ok := out[statusField]; ok && v != nil {
				statusValue, hasStatus = v.(string), true
			}
		}
		var states []string
		if list, ok := workflow["states"].([]any); ok {
			for _, s := range list {
				if st, ok := s.(map[string]any); ok {
					if id, _ := st["id"].(string); id != "" {
						states = append(states, id)
					}
				}
			}
		}
		if statusField != "" && hasStatus && !containsStr(states, statusValue) {
			addErr("INVALID_STATUS", statusField+" must be one of declared states", statusField)
		}
		for _, fieldID := range workflowRequiredFields(workflow, statusValue) {
			if isEmpty(out[fieldID]) {
				addErr("REQUIRED_FIELD", "missing required field for status "+statusValue+": "+fieldID, fieldID)
			}
		}
	}

	if !forCreate {
		for fieldID, field := range fields {
			if requiredWhen, ok := field["required_when"].(map[string]any); ok {
				if evalRequiredWhen(requiredWhen, out) {
					if isEmpty(out[fieldID]) {
						addErr("REQUIRED_FIELD", "missing required field: "+fieldID, fieldID)
					}
				}
			}
		}
	}

	for fieldID, val := range out {
		if fieldID == "id" || val == nil {
			continue
		}
		field, ok := fields[fieldID]
		if !ok {
			continue
		}
		validateFieldType(field, fieldID, val, addErr)
	}

	return errs, out
}

// evalRequiredWhen evaluates the required_when simple-condition dialect
// against {"record": data}, treating any evaluation failure — a malformed
// condition, an unknown operator, a type mismatch — as "still required"
// rather than silently passing, mirroring the reference implementation's
// bare except-and-flag-required behavior.
func evalRequiredWhen(cond map[string]any, data map[string]any) bool {
	matched, err := EvalSimpleCondition(cond, SimpleConditionCtx{Record: data})
	if err != nil {
		return true
	}
	return matched
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func validateFieldType(field map[string]any, fieldID string, val any, addErr func(code, message, path string)) {
	ftype, _ := field["type"].(string)
	switch ftype {
	case "string", "text":
		if _, ok := val.(string); !ok {
			addErr("TYPE_MISMATCH", fieldID+" must be a string", fieldID)
		}
	case "number":
		switch val.(type) {
		case float64, float32, int, int64, json.Number:
		default:
			addErr("TYPE_MISMATCH", fieldID+" must be a number", fieldID)
		}
	case "bool", "boolean":
		if _, ok := val.(bool); !ok {
			addErr("TYPE_MISMATCH", fieldID+" must be a boolean", fieldID)
		}
	case "enum":
		allowed := enumValues(field)
		found := false
		for _, a := range allowed {
			if simpleEqual(a, val) {
				found = true
				break
			}
		}
		if !found {
			addErr("INVALID_ENUM", fieldID+" must be one of the declared options", fieldID)
		}
	case "date":
		s, ok := val.(string)
		if !ok {
			addErr("TYPE_MISMATCH", fieldID+" must be a date string", fieldID)
		} else if _, err := time.Parse("2006-01-02", s); err != nil {
			addErr("INVALID_DATE", fieldID+" must be YYYY-MM-DD", fieldID)
		}
	case "datetime":
		s, ok := val.(string)
		if !ok {
			addErr("TYPE_MISMATCH", fieldID+" must be a datetime string", fieldID)
		} else if _, err := time.Parse(time.RFC3339, s); err != nil {
			addErr("INVALID_DATETIME", fieldID+" must be ISO-8601", fieldID)
		}
	case "uuid":
		s, ok := val.(string)
		if !ok || !IsUUID(s) {
			addErr("TYPE_MISMATCH", fieldID+" must be a UUID", fieldID)
		}
	case "lookup":
		if _, ok := val.(string); !ok {
			addErr("TYPE_MISMATCH", fieldID+" must be a string", fieldID)
		}
	case "tags", "attachments":
		if _, ok := val.([]any); !ok {
			addErr("TYPE_MISMATCH", fieldID+" must be a list", fieldID)
		}
	}
}

// ValidateLookupFields cross-checks every lookup field on entity against the
// registry: the target entity must exist (in an enabled module) and must
// declare the requested display_field.
func ValidateLookupFields(entity map[string]any, lookup EntityLookup) issue.List {
	var errs issue.List
	for _, field := range fieldsOf(entity) {
		if ftype, _ := field["type"].(string); ftype != "lookup" {
			continue
		}
		fieldID, _ := field["id"].(string)
		target, _ := field["entity"].(string)
		display, _ := field["display_field"].(string)
		if target == "" {
			errs = append(errs, issue.At("LOOKUP_TARGET_MISSING", "lookup target entity is required", fieldID))
			continue
		}
		if display == "" {
			errs = append(errs, issue.At("LOOKUP_DISPLAY_MISSING", "lookup display_field is required", fieldID))
			continue
		}
		found, ok := FindEntityDef(lookup, target)
		if !ok {
			errs = append(errs, issue.At("LOOKUP_TARGET_UNKNOWN", "lookup target entity not found or disabled", fieldID))
			continue
		}
		targetFields := fieldByID(fieldsOf(found.Entity))
		if _, ok := targetFields[display]; !ok {
			errs = append(errs, issue.At("LOOKUP_DISPLAY_UNKNOWN", "lookup display_field not found on target entity", fieldID))
		}
	}
	return errs
}
