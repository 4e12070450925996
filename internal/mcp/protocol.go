// Package mcp implements the JSON-RPC 2.0 transport manifoldmcp speaks to
// its clients (the MCP protocol): request/response envelopes, the tool,
// prompt, and resource wire shapes those clients use to discover and invoke
// this server's manifest-lifecycle and rule-evaluation tools, and the stdio
// server loop that dispatches between them.
package mcp

import (
	"encoding/json"
	"fmt"
)

// Request is a single JSON-RPC 2.0 call, e.g. a tools/call invoking
// manifest_preview_patch or module_install.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"` // string, number, or null
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is the JSON-RPC 2.0 reply to a Request.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError is the JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 error codes.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
)

// JSONResult marshals v (typically one of this project's §7 result
// envelopes — store.Result, registry.Result, patch.Result, and so on,
// each carrying its own ok/errors/warnings fields) as indented JSON and
// wraps it in a ToolsCallResult.
func JSONResult(v any) (*ToolsCallResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return &ToolsCallResult{
		Content: []ContentBlock{TextContent(string(b))},
	}, nil
}

// ErrorResult creates an error tool result for a tool call that failed
// outside of its own result envelope (bad params, a panic recovered by the
// caller) rather than one that returned ok=false with structured issues.
func ErrorResult(msg string) *ToolsCallResult {
	return &ToolsCallResult{
		Content: []ContentBlock{TextContent(msg)},
		IsError: true,
	}
}
