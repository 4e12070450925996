// Package expression implements the value DSL used by manifest defaults and
// computed fields: {literal}/{var}/{expr:"coalesce"}/{expr:"case"}. The
// "case" form's "when" clauses are evaluated by the condition evaluator,
// sharing a single depth budget across both DSLs.
package expression

import (
	"fmt"
	"math"

	"github.com/manifold-platform/manifoldmcp/internal/condition"
)

// Error codes, matching the wire taxonomy.
const (
	CodeSchemaError    = "EXPR_SCHEMA_ERROR"
	CodeDepthExceeded  = "EXPR_DEPTH_EXCEEDED"
	CodeVarUnresolved  = "EXPR_VAR_UNRESOLVED"
	CodeUnknown        = "EXPR_UNKNOWN"
	CodeTypeError      = "EXPR_TYPE_ERROR"
	CodeConditionError = "EXPR_CONDITION_ERROR"
)

// DefaultDepthLimit is the depth budget used when callers don't specify one.
const DefaultDepthLimit = 10

// Error is raised for any expression evaluation failure.
type Error struct {
	Code    string
	Message string
	Path    string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (path=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func schemaErr(msg, path string) *Error { return &Error{Code: CodeSchemaError, Message: msg, Path: path} }
func depthErr(path string) *Error {
	return &Error{Code: CodeDepthExceeded, Message: "Depth limit exceeded", Path: path}
}
func varErr(msg, path string) *Error     { return &Error{Code: CodeVarUnresolved, Message: msg, Path: path} }
func unknownErr(msg, path string) *Error { return &Error{Code: CodeUnknown, Message: msg, Path: path} }
func typeErr(msg, path string) *Error    { return &Error{Code: CodeTypeError, Message: msg, Path: path} }

// Ctx is the variable context an expression is evaluated against.
type Ctx = map[string]any

// Eval evaluates expr against ctx with the given depth limit (0 uses
// DefaultDepthLimit).
func Eval(expr map[string]any, ctx Ctx, depthLimit int) (any, error) {
	if depthLimit <= 0 {
		depthLimit = DefaultDepthLimit
	}
	if ctx == nil {
		return nil, schemaErr("ctx must be object", "$")
	}
	return evalExpression(expr, ctx, "$", 1, depthLimit)
}

func depthCheck(depth, limit int, path string) error {
	if depth > limit {
		return depthErr(path)
	}
	return nil
}

func resolveVar(ctx Ctx, name, path string) (any, error) {
	var current any = ctx
	start := 0
	for i := 0; i <= len(name); i++ {
		if i == len(name) || name[i] == '.' {
			part := name[start:i]
			m, ok := current.(map[string]any)
			if !ok {
				return nil, varErr(fmt.Sprintf("Unresolved var: %s", name), path)
			}
			v, ok := m[part]
			if !ok {
				return nil, varErr(fmt.Sprintf("Unresolved var: %s", name), path)
			}
			current = v
			start = i + 1
		}
	}
	return current, nil
}

// ensureNoNonFinite walks value rejecting NaN/±Infinity anywhere inside it,
// including nested arrays/objects (a literal may embed a whole subtree).
func ensureNoNonFinite(value any, path string) error {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return typeErr("Non-finite number", path)
		}
	case []any:
		for i, item := range v {
			if err := ensureNoNonFinite(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	case map[string]any:
		for k, item := range v {
			if err := ensureNoNonFinite(item, path+"."+k); err != nil {
				return err
			}
		}
	}
	return nil
}

func keySet(m map[string]any, keys ...string) bool {
	if len(m) != len(keys) {
		return false
	}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func subsetOf(m map[string]any, allowed map[string]bool) bool {
	for k := range m {
		if !allowed[k] {
			return false
		}
	}
	return true
}

func evalExpression(expr any, ctx Ctx, path string, depth, limit int) (any, error) {
	if err := depthCheck(depth, limit, path); err != nil {
		return nil, err
	}
	m, ok := expr.(map[string]any)
	if !ok {
		return nil, schemaErr("Expression must be object", path)
	}

	if keySet(m, "literal") {
		v := m["literal"]
		if err := ensureNoNonFinite(v, path); err != nil {
			return nil, err
		}
		return v, nil
	}

	if keySet(m, "var") {
		name, ok := m["var"].(string)
		if !ok {
			return nil, schemaErr("var must be string", path)
		}
		v, err := resolveVar(ctx, name, path)
		if err != nil {
			return nil, err
		}
		if err := ensureNoNonFinite(v, path); err != nil {
			return nil, err
		}
		return v, nil
	}

	if exprType, ok := m["expr"]; ok {
		typeName, _ := exprType.(string)
		switch typeName {
		case "coalesce":
			if !keySet(m, "expr", "args") {
				return nil, schemaErr("coalesce has invalid keys", path)
			}
			args, ok := m["args"].([]any)
			if !ok || len(args) == 0 {
				return nil, schemaErr("args must be non-empty list", path+".args")
			}
			for i, arg := range args {
				argPath := fmt.Sprintf("%s.args[%d]", path, i)
				v, err := evalExpression(arg, ctx, argPath, depth+1, limit)
				if err != nil {
					return nil, err
				}
				if err := ensureNoNonFinite(v, argPath); err != nil {
					return nil, err
				}
				if v != nil {
					return v, nil
				}
			}
			return nil, nil

		case "case":
			allowed := map[string]bool{"expr": true, "cases": true, "else": true}
			if !subsetOf(m, allowed) {
				return nil, schemaErr("case has invalid keys", path)
			}
			cases, ok := m["cases"].([]any)
			if !ok || len(cases) == 0 {
				return nil, schemaErr("cases must be non-empty list", path+".cases")
			}
			for i, c := range cases {
				casePath := fmt.Sprintf("%s.cases[%d]", path, i)
				cm, ok := c.(map[string]any)
				if !ok || !keySet(cm, "when", "then") {
					return nil, schemaErr("case items require when and then", casePath)
				}
				remaining := limit - depth + 1
				if remaining < 1 {
					return nil, depthErr(casePath + ".when")
				}
				when, ok := cm["when"].(map[string]any)
				if !ok {
					return nil, schemaErr("when must be condition", casePath+".when")
				}
				matched, err := condition.Eval(when, ctx, remaining)
				if err != nil {
					if condErr, ok := err.(*condition.Error); ok {
						return nil, &Error{
							Code:    CodeConditionError,
							Message: fmt.Sprintf("Condition error: %s", condErr.Code),
							Path:    casePath + ".when",
						}
					}
					return nil, err
				}
				if matched {
					thenPath := casePath + ".then"
					v, err := evalExpression(cm["then"], ctx, thenPath, depth+1, limit)
					if err != nil {
						return nil, err
					}
					if err := ensureNoNonFinite(v, thenPath); err != nil {
						return nil, err
					}
					return v, nil
				}
			}
			if elseExpr, ok := m["else"]; ok {
				elsePath := path + ".else"
				v, err := evalExpression(elseExpr, ctx, elsePath, depth+1, limit)
				if err != nil {
					return nil, err
				}
				if err := ensureNoNonFinite(v, elsePath); err != nil {
					return nil, err
				}
				return v, nil
			}
			return nil, nil

		default:
			return nil, unknownErr(fmt.Sprintf("Unknown expr: %v", exprType), path)
		}
	}

	return nil, schemaErr("Invalid expression shape", path)
}
