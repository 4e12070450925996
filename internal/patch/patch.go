// Package patch implements preview-mode RFC-6902 patch validation and
// dry-run simulation: selector resolution, the add_field macro, the
// protected-path guard, and impact classification. It never mutates the
// caller's manifest; Preview always simulates on a deep copy.
package patch

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/manifold-platform/manifoldmcp/internal/canon"
	"github.com/manifold-platform/manifoldmcp/internal/issue"
	"github.com/manifold-platform/manifoldmcp/internal/selector"
)

var allowedOps = map[string]bool{
	"add": true, "remove": true, "replace": true, "move": true, "copy": true,
	"test": true, "add_field": true,
}

// Op is a resolved RFC-6902 operation: every path has been selector-resolved
// to a fully numeric pointer.
type Op struct {
	Op    string `json:"op"`
	Path  string `json:"path,omitempty"`
	From  string `json:"from,omitempty"`
	Value any    `json:"value,omitempty"`
}

// DiffSummary reports which pointers a previewed patch touches and how many
// operations of each kind it contains.
type DiffSummary struct {
	Touched []string       `json:"touched"`
	Counts  map[string]int `json:"counts"`
}

// Result is the envelope preview_patch-equivalent calls return.
type Result struct {
	issue.Result
	Impact      *string     `json:"impact"`
	ResolvedOps []Op        `json:"resolved_ops"`
	DiffSummary DiffSummary `json:"diff_summary"`
}

func emptyDiffSummary() DiffSummary {
	return DiffSummary{
		Touched: []string{},
		Counts:  map[string]int{"add": 0, "remove": 0, "replace": 0, "move": 0, "copy": 0, "test": 0},
	}
}

func diffSummary(ops []Op) DiffSummary {
	counts := map[string]int{"add": 0, "remove": 0, "replace": 0, "move": 0, "copy": 0, "test": 0}
	touchedSet := map[string]bool{}
	for _, op := range ops {
		if _, ok := counts[op.Op]; ok {
			counts[op.Op]++
		}
		if op.Path != "" {
			touchedSet[op.Path] = true
		}
		if (op.Op == "move" || op.Op == "copy") && op.From != "" {
			touchedSet[op.From] = true
		}
	}
	touched := make([]string, 0, len(touchedSet))
	for p := range touchedSet {
		touched = append(touched, p)
	}
	sort.Strings(touched)
	return DiffSummary{Touched: touched, Counts: counts}
}

func classifyImpact(ops []Op) *string {
	high := "high"
	medium := "medium"
	low := "low"
	for _, op := range ops {
		if op.Op == "remove" || op.Op == "replace" {
			return &high
		}
	}
	for _, op := range ops {
		if op.Op == "add" || op.Op == "move" {
			return &medium
		}
	}
	if len(ops) > 0 {
		return &low
	}
	return nil
}

func isProtectedPath(pointer string) bool {
	return strings.HasPrefix(pointer, "/module/id") || strings.HasPrefix(pointer, "/module/requires")
}

func fail(errs issue.List) Result {
	return Result{
		Result:      issue.NewResult(errs, nil),
		Impact:      nil,
		ResolvedOps: []Op{},
		DiffSummary: emptyDiffSummary(),
	}
}

func resolvePath(manifest any, opIndex int, rawPath string, errs *issue.List) (string, bool) {
	if !strings.Contains(rawPath, "@[id=") {
		return rawPath, true
	}
	resolved, err := selector.Resolve(manifest, rawPath)
	if err == nil {
		return resolved, true
	}
	selErr, ok := err.(*selector.Error)
	if !ok {
		*errs = append(*errs, issue.WithDetail("SELECTOR_PATH_ERROR", err.Error(), rawPath,
			map[string]any{"op_index": opIndex}))
		return "", false
	}
	*errs = append(*errs, issue.WithDetail(selErr.Code, selErr.Message, rawPath,
		map[string]any{"op_index": opIndex, "resolved_path": selErr.PointerSoFar}))
	return "", false
}

// Manifest is a decoded manifest document (object-tree shaped, as produced
// by json.Decoder with UseNumber so canon.Hash sees the same values the
// caller's patch.target_manifest_hash was computed against).
type Manifest = map[string]any

// expandAddField expands an add_field macro op into the single "add"
// RFC-6902 operation it denotes, resolving both the fields-list selector and
// the after-field selector against manifest.
func expandAddField(manifest Manifest, op map[string]any, opIndex int, errs *issue.List) []Op {
	entityID, okEntity := op["entity_id"].(string)
	afterFieldID, okAfter := op["after_field_id"].(string)
	field, hasField := op["field"]

	if !okEntity || !okAfter || !hasField {
		*errs = append(*errs, issue.WithDetail("ADD_FIELD_INVALID",
			"add_field requires entity_id (str), after_field_id (str), and field", "",
			map[string]any{"op_index": opIndex}))
		return nil
	}

	fieldsSelector := fmt.Sprintf("/entities/@[id=%s]/fields", entityID)
	resolvedFieldsPath, ok := resolvePath(manifest, opIndex, fieldsSelector, errs)
	if !ok {
		return nil
	}

	afterSelector := fmt.Sprintf("/entities/@[id=%s]/fields/@[id=%s]", entityID, afterFieldID)
	resolvedAfterPath, ok := resolvePath(manifest, opIndex, afterSelector, errs)
	if !ok {
		return nil
	}

	fieldsList, err := selector.Get(manifest, resolvedFieldsPath)
	if err != nil {
		*errs = append(*errs, issue.WithDetail("ADD_FIELD_INVALID", "Cannot access fields list: "+err.Error(), fieldsSelector,
			map[string]any{"op_index": opIndex, "resolved_path": resolvedFieldsPath}))
		return nil
	}
	if _, ok := fieldsList.([]any); !ok {
		*errs = append(*errs, issue.WithDetail("ADD_FIELD_INVALID", "Fields target is not a list", fieldsSelector,
			map[string]any{"op_index": opIndex, "resolved_path": resolvedFieldsPath}))
		return nil
	}

	tokens := selector.ParsePointer(resolvedAfterPath)
	if len(tokens) == 0 || !isDigits(tokens[len(tokens)-1]) {
		*errs = append(*errs, issue.WithDetail("ADD_FIELD_INVALID", "after_field_id did not resolve to an index", afterSelector,
			map[string]any{"op_index": opIndex, "resolved_path": resolvedAfterPath}))
		return nil
	}

	insertIndex, _ := strconv.Atoi(tokens[len(tokens)-1])
	insertIndex++
	resolvedInsertPath := fmt.Sprintf("%s/%d", resolvedFieldsPath, insertIndex)

	return []Op{{Op: "add", Path: resolvedInsertPath, Value: field}}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DecodeOps converts a generic JSON-decoded operations list (as found in
// preview.resolved_ops on the wire) back into typed Op values, rejecting any
// operation that still carries an unresolved "@[id=" selector segment.
func DecodeOps(raw []any) ([]Op, error) {
	out := make([]Op, 0, len(raw))
	for i, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("resolved_ops[%d]: not an object", i)
		}
		opName, _ := m["op"].(string)
		if !allowedOps[opName] || opName == "add_field" {
			return nil, fmt.Errorf("resolved_ops[%d]: unsupported op %q", i, opName)
		}
		op := Op{Op: opName}
		if p, ok := m["path"].(string); ok {
			if strings.Contains(p, "@[id=") {
				return nil, fmt.Errorf("resolved_ops[%d].path: unresolved selector segment", i)
			}
			op.Path = p
		}
		if f, ok := m["from"].(string); ok {
			if strings.Contains(f, "@[id=") {
				return nil, fmt.Errorf("resolved_ops[%d].from: unresolved selector segment", i)
			}
			op.From = f
		}
		op.Value = m["value"]
		out = append(out, op)
	}
	return out, nil
}

// ApplyResolvedOps applies already-resolved (fully numeric path) operations
// to manifest in place, in order, stopping at the first failure. Callers
// durably committing an approved preview (internal/store) use this instead
// of re-deriving apply logic, so the preview's dry run and the real commit
// share one implementation.
func ApplyResolvedOps(manifest Manifest, ops []Op) error {
	for _, op := range ops {
		var err error
		switch op.Op {
		case "add":
			err = applyAdd(manifest, op.Path, op.Value)
		case "remove":
			err = applyRemove(manifest, op.Path)
		case "replace":
			err = applyReplace(manifest, op.Path, op.Value)
		case "test":
			err = applyTest(manifest, op.Path, op.Value)
		case "move":
			err = applyMove(manifest, op.From, op.Path)
		case "copy":
			err = applyCopy(manifest, op.From, op.Path)
		default:
			err = fmt.Errorf("unsupported op: %s", op.Op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Preview validates patch against manifest and, if valid, dry-run simulates
// it on a deep copy, returning the resolved operations, an impact
// classification, and a diff summary. It never mutates manifest.
func Preview(manifest Manifest, patch map[string]any) Result {
	if patch == nil {
		return fail(issue.List{issue.New("PATCH_NOT_OBJECT", "Patch must be a JSON object")})
	}

	var errs issue.List
	requiredFields := []string{"patch_id", "target_module_id", "target_manifest_hash", "mode", "reason", "operations"}
	for _, f := range requiredFields {
		if _, ok := patch[f]; !ok {
			errs = append(errs, issue.New("PATCH_MISSING_FIELD", "Missing required field: "+f))
		}
	}
	if len(errs) > 0 {
		return fail(errs)
	}

	if mode, _ := patch["mode"].(string); mode != "preview" {
		return fail(issue.List{issue.New("PATCH_MODE_NOT_PREVIEW", "mode must be 'preview'")})
	}

	operations, ok := patch["operations"].([]any)
	if !ok {
		return fail(issue.List{issue.New("PATCH_OPS_NOT_LIST", "operations must be a list")})
	}

	currentHash, hashErr := canon.Hash(manifest)
	if hashErr != nil {
		return fail(issue.List{issue.New("PATCH_HASH_MISMATCH", "target_manifest_hash does not match current manifest")})
	}
	if targetHash, _ := patch["target_manifest_hash"].(string); targetHash != currentHash {
		return fail(issue.List{issue.New("PATCH_HASH_MISMATCH", "target_manifest_hash does not match current manifest")})
	}

	var resolvedOps []Op

	for idx, raw := range operations {
		op, ok := raw.(map[string]any)
		if !ok {
			errs = append(errs, issue.WithDetail("OP_NOT_OBJECT", "Operation must be an object", "", map[string]any{"op_index": idx}))
			continue
		}

		opName, _ := op["op"].(string)
		if !allowedOps[opName] {
			errs = append(errs, issue.WithDetail("OP_UNSUPPORTED", fmt.Sprintf("Unsupported op: %v", op["op"]), "", map[string]any{"op_index": idx}))
			continue
		}

		if opName == "add_field" {
			expanded := expandAddField(manifest, op, idx, &errs)
			resolvedOps = append(resolvedOps, expanded...)
			continue
		}

		path, _ := op["path"].(string)
		_, hasPath := op["path"]
		fromPath, _ := op["from"].(string)
		_, hasFrom := op["from"]
		_, hasValue := op["value"]

		switch opName {
		case "add", "replace", "test":
			if !hasPath || !hasValue {
				errs = append(errs, issue.WithDetail("OP_MISSING_FIELD", "op requires path and value", "", map[string]any{"op_index": idx}))
				continue
			}
		case "remove":
			if !hasPath {
				errs = append(errs, issue.WithDetail("OP_MISSING_FIELD", "op requires path", "", map[string]any{"op_index": idx}))
				continue
			}
		case "move", "copy":
			if !hasPath || !hasFrom {
				errs = append(errs, issue.WithDetail("OP_MISSING_FIELD", "op requires path and from", "", map[string]any{"op_index": idx}))
				continue
			}
		}

		if hasPath && selector.ContainsNumericSegment(path) {
			errs = append(errs, issue.WithDetail("OP_NUMERIC_INDEX_PATH", "Numeric index segments are not allowed in incoming paths", path, map[string]any{"op_index": idx}))
			continue
		}
		if hasFrom && selector.ContainsNumericSegment(fromPath) {
			errs = append(errs, issue.WithDetail("OP_NUMERIC_INDEX_PATH", "Numeric index segments are not allowed in incoming from paths", fromPath, map[string]any{"op_index": idx}))
			continue
		}

		var resolvedPath, resolvedFrom string
		pathOK, fromOK := true, true
		if hasPath {
			resolvedPath, pathOK = resolvePath(manifest, idx, path, &errs)
		}
		if (opName == "move" || opName == "copy") && hasFrom {
			resolvedFrom, fromOK = resolvePath(manifest, idx, fromPath, &errs)
		}
		if (hasPath && !pathOK) || ((opName == "move" || opName == "copy") && hasFrom && !fromOK) {
			continue
		}

		if resolvedPath != "" && isProtectedPath(resolvedPath) {
			errs = append(errs, issue.WithDetail("PROTECTED_PATH", "Operation targets protected path", path, map[string]any{"op_index": idx, "resolved_path": resolvedPath}))
			continue
		}
		if resolvedFrom != "" && isProtectedPath(resolvedFrom) {
			errs = append(errs, issue.WithDetail("PROTECTED_PATH", "Operation sources protected path", fromPath, map[string]any{"op_index": idx, "resolved_path": resolvedFrom}))
			continue
		}

		normalized := Op{Op: opName}
		switch opName {
		case "add", "replace", "test":
			normalized.Path = resolvedPath
			normalized.Value = op["value"]
		case "remove":
			normalized.Path = resolvedPath
		case "move", "copy":
			normalized.From = resolvedFrom
			normalized.Path = resolvedPath
		}
		resolvedOps = append(resolvedOps, normalized)
	}

	if len(errs) > 0 {
		return Result{
			Result:      issue.NewResult(errs, nil),
			Impact:      nil,
			ResolvedOps: orEmpty(resolvedOps),
			DiffSummary: diffSummary(resolvedOps),
		}
	}

	simulated, err := deepCopy(manifest)
	if err != nil {
		errs = append(errs, issue.New("SIMULATION_ERROR", "Simulation failed: "+err.Error()))
		return Result{
			Result:      issue.NewResult(errs, nil),
			Impact:      nil,
			ResolvedOps: orEmpty(resolvedOps),
			DiffSummary: diffSummary(resolvedOps),
		}
	}

	for idx, op := range resolvedOps {
		var simErr error
		switch op.Op {
		case "add":
			simErr = applyAdd(simulated, op.Path, op.Value)
		case "remove":
			simErr = applyRemove(simulated, op.Path)
		case "replace":
			simErr = applyReplace(simulated, op.Path, op.Value)
		case "test":
			simErr = applyTest(simulated, op.Path, op.Value)
		case "move":
			simErr = applyMove(simulated, op.From, op.Path)
		case "copy":
			simErr = applyCopy(simulated, op.From, op.Path)
		}
		if simErr != nil {
			errs = append(errs, issue.WithDetail("SIMULATION_ERROR", "Simulation failed: "+simErr.Error(), op.Path, map[string]any{"op_index": idx}))
		}
	}

	ok2 := len(errs) == 0
	var impact *string
	if ok2 {
		impact = classifyImpact(resolvedOps)
	}

	return Result{
		Result:      issue.NewResult(errs, nil),
		Impact:      impact,
		ResolvedOps: orEmpty(resolvedOps),
		DiffSummary: diffSummary(resolvedOps),
	}
}

// ResolvedOpsRFC6902 re-encodes the already selector-resolved operations as a
// standard jsonpatch.Patch, for callers that want a plain RFC-6902 document
// (numeric pointers, no @[id=X] steps) rather than the internal Op shape.
func (r Result) ResolvedOpsRFC6902() jsonpatch.Patch {
	out := make(jsonpatch.Patch, 0, len(r.ResolvedOps))
	for _, op := range r.ResolvedOps {
		entry := jsonpatch.Operation{"op": encodeRaw(op.Op)}
		if op.Path != "" {
			entry["path"] = encodeRaw(op.Path)
		}
		if op.From != "" {
			entry["from"] = encodeRaw(op.From)
		}
		if op.Value != nil {
			entry["value"] = encodeRaw(op.Value)
		}
		out = append(out, entry)
	}
	return out
}

func encodeRaw(v any) *json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	raw := json.RawMessage(b)
	return &raw
}

func orEmpty(ops []Op) []Op {
	if ops == nil {
		return []Op{}
	}
	return ops
}

// deepCopy round-trips through JSON to get an independent mutable copy, the
// simplest faithful way to deep-copy an arbitrary decoded-JSON tree in Go.
func deepCopy(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// mutateAt recursively walks container by tokens, applying leaf to the final
// container/token pair, and rewrites every ancestor map/list entry along the
// way so that array insertions and removals (which change a slice's header,
// not just its contents) are visible to the root document.
func mutateAt(container any, tokens []string, leaf func(c any, token string) (any, error)) (any, error) {
	if len(tokens) == 1 {
		return leaf(container, tokens[0])
	}
	head, rest := tokens[0], tokens[1:]
	switch c := container.(type) {
	case map[string]any:
		child, ok := c[head]
		if !ok {
			return nil, fmt.Errorf("missing object key")
		}
		newChild, err := mutateAt(child, rest, leaf)
		if err != nil {
			return nil, err
		}
		c[head] = newChild
		return c, nil
	case []any:
		if !isDigits(head) {
			return nil, fmt.Errorf("invalid list index")
		}
		idx, _ := strconv.Atoi(head)
		if idx < 0 || idx >= len(c) {
			return nil, fmt.Errorf("list index out of range")
		}
		newChild, err := mutateAt(c[idx], rest, leaf)
		if err != nil {
			return nil, err
		}
		c[idx] = newChild
		return c, nil
	default:
		return nil, fmt.Errorf("cannot traverse into non-container")
	}
}

func getValue(doc any, pointer string) (any, error) {
	tokens := selector.ParsePointer(pointer)
	current := doc
	for _, token := range tokens {
		switch v := current.(type) {
		case map[string]any:
			val, ok := v[token]
			if !ok {
				return nil, fmt.Errorf("missing object key")
			}
			current = val
		case []any:
			if !isDigits(token) {
				return nil, fmt.Errorf("invalid list index")
			}
			idx, _ := strconv.Atoi(token)
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("list index out of range")
			}
			current = v[idx]
		default:
			return nil, fmt.Errorf("cannot traverse into non-container")
		}
	}
	return current, nil
}

func addLeaf(value any) func(c any, token string) (any, error) {
	return func(c any, token string) (any, error) {
		switch v := c.(type) {
		case map[string]any:
			v[token] = value
			return v, nil
		case []any:
			idx := len(v)
			if token != "-" {
				if !isDigits(token) {
					return nil, fmt.Errorf("invalid list index")
				}
				idx, _ = strconv.Atoi(token)
				if idx < 0 || idx > len(v) {
					return nil, fmt.Errorf("list index out of range")
				}
			}
			out := make([]any, 0, len(v)+1)
			out = append(out, v[:idx]...)
			out = append(out, value)
			out = append(out, v[idx:]...)
			return out, nil
		default:
			return nil, fmt.Errorf("cannot add into non-container")
		}
	}
}

func removeLeaf(c any, token string) (any, error) {
	switch v := c.(type) {
	case map[string]any:
		if _, ok := v[token]; !ok {
			return nil, fmt.Errorf("missing object key")
		}
		delete(v, token)
		return v, nil
	case []any:
		if !isDigits(token) {
			return nil, fmt.Errorf("invalid list index")
		}
		idx, _ := strconv.Atoi(token)
		if idx < 0 || idx >= len(v) {
			return nil, fmt.Errorf("list index out of range")
		}
		out := make([]any, 0, len(v)-1)
		out = append(out, v[:idx]...)
		out = append(out, v[idx+1:]...)
		return out, nil
	default:
		return nil, fmt.Errorf("cannot remove from non-container")
	}
}

func replaceLeaf(value any) func(c any, token string) (any, error) {
	return func(c any, token string) (any, error) {
		switch v := c.(type) {
		case map[string]any:
			if _, ok := v[token]; !ok {
				return nil, fmt.Errorf("missing object key")
			}
			v[token] = value
			return v, nil
		case []any:
			if !isDigits(token) {
				return nil, fmt.Errorf("invalid list index")
			}
			idx, _ := strconv.Atoi(token)
			if idx < 0 || idx >= len(v) {
				return nil, fmt.Errorf("list index out of range")
			}
			v[idx] = value
			return v, nil
		default:
			return nil, fmt.Errorf("cannot replace in non-container")
		}
	}
}

func applyAdd(doc any, path string, value any) error {
	if path == "" {
		return fmt.Errorf("cannot add at document root")
	}
	_, err := mutateAt(doc, selector.ParsePointer(path), addLeaf(value))
	return err
}

func applyRemove(doc any, path string) error {
	if path == "" {
		return fmt.Errorf("cannot remove document root")
	}
	_, err := mutateAt(doc, selector.ParsePointer(path), removeLeaf)
	return err
}

func applyReplace(doc any, path string, value any) error {
	if path == "" {
		return fmt.Errorf("cannot replace document root")
	}
	_, err := mutateAt(doc, selector.ParsePointer(path), replaceLeaf(value))
	return err
}

func applyTest(doc any, path string, value any) error {
	existing, err := getValue(doc, path)
	if err != nil {
		return err
	}
	existingJSON, _ := json.Marshal(existing)
	valueJSON, _ := json.Marshal(value)
	if string(existingJSON) != string(valueJSON) {
		return fmt.Errorf("test operation failed")
	}
	return nil
}

func applyMove(doc any, fromPath, path string) error {
	value, err := getValue(doc, fromPath)
	if err != nil {
		return err
	}
	if err := applyRemove(doc, fromPath); err != nil {
		return err
	}
	return applyAdd(doc, path, value)
}

func applyCopy(doc any, fromPath, path string) error {
	value, err := getValue(doc, fromPath)
	if err != nil {
		return err
	}
	copied, err := deepCopy(value)
	if err != nil {
		return err
	}
	return applyAdd(doc, path, copied)
}
