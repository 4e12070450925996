// Package manifest adapts internal/store and internal/patch as MCP tools:
// preview a patch against a module's current head, apply an approved
// preview, inspect snapshot/history state, and roll back to a prior hash.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"

	"github.com/manifold-platform/manifoldmcp/internal/mcp"
	"github.com/manifold-platform/manifoldmcp/internal/patch"
	"github.com/manifold-platform/manifoldmcp/internal/store"
)

// PreviewPatch wraps internal/patch.Preview, resolving target_manifest_hash
// against the module's durable head before validating the patch.
type PreviewPatch struct {
	store *store.Store
}

func NewPreviewPatch(s *store.Store) *PreviewPatch { return &PreviewPatch{store: s} }

func (t *PreviewPatch) Name() string { return "manifest_preview_patch" }

func (t *PreviewPatch) Description() string {
	return "Validate a patch against a module's current manifest without applying it. Returns resolved operations, impact classification, and a diff summary, or the errors that block the patch."
}

func (t *PreviewPatch) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "patch_id": {"type": "string"},
    "target_module_id": {"type": "string"},
    "target_manifest_hash": {"type": "string"},
    "reason": {"type": "string"},
    "operations": {"type": "array"}
  },
  "required": ["patch_id", "target_module_id", "target_manifest_hash", "reason", "operations"]
}`)
}

func (t *PreviewPatch) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var body map[string]any
	if err := json.Unmarshal(params, &body); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	moduleID, _ := body["target_module_id"].(string)
	if moduleID == "" {
		return mcp.ErrorResult("target_module_id is required"), nil
	}
	head, err := t.store.GetHead(ctx, moduleID)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("resolving head: %v", err)), nil
	}
	if head == "" {
		return mcp.ErrorResult("module has no manifest head"), nil
	}
	manifest, err := t.store.GetSnapshot(ctx, moduleID, head)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("snapshot not found: %v", err)), nil
	}

	body["mode"] = "preview"
	result := patch.Preview(manifest, body)

	response := previewResponse{Result: result}
	if result.OK {
		response.RFC6902Patch = result.ResolvedOpsRFC6902()
	}
	return mcp.JSONResult(response)
}

// previewResponse adds an RFC-6902 encoding of the resolved operations
// alongside the internal Result envelope, for callers (e.g. a standard
// json-patch library on the client side) that want a plain numeric-pointer
// patch document rather than this project's @[id=X]-resolved Op shape.
type previewResponse struct {
	patch.Result
	RFC6902Patch jsonpatch.Patch `json:"rfc6902_patch,omitempty"`
}

// ApplyPatch wraps internal/store.ApplyApprovedPreview.
type ApplyPatch struct {
	store *store.Store
}

func NewApplyPatch(s *store.Store) *ApplyPatch { return &ApplyPatch{store: s} }

func (t *ApplyPatch) Name() string { return "manifest_apply_patch" }

func (t *ApplyPatch) Description() string {
	return "Apply a previously previewed and approved patch to a module, compare-and-swapping the head and recording an audit entry."
}

func (t *ApplyPatch) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "patch": {"type": "object"},
    "preview": {"type": "object"},
    "approved_by": {},
    "approved_at": {"type": "string"}
  },
  "required": ["patch", "preview"]
}`)
}

func (t *ApplyPatch) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var approved map[string]any
	if err := json.Unmarshal(params, &approved); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	result := t.store.ApplyApprovedPreview(ctx, approved)
	return mcp.JSONResult(result)
}

// GetSnapshot returns the manifest stored under a given hash.
type GetSnapshot struct {
	store *store.Store
}

func NewGetSnapshot(s *store.Store) *GetSnapshot { return &GetSnapshot{store: s} }

func (t *GetSnapshot) Name() string { return "manifest_get_snapshot" }

func (t *GetSnapshot) Description() string {
	return "Fetch the manifest stored under a module's current head, or a specific manifest_hash if provided."
}

func (t *GetSnapshot) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "module_id": {"type": "string"},
    "manifest_hash": {"type": "string", "description": "Defaults to the module's current head."}
  },
  "required": ["module_id"]
}`)
}

func (t *GetSnapshot) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID     string `json:"module_id"`
		ManifestHash string `json:"manifest_hash"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ModuleID == "" {
		return mcp.ErrorResult("module_id is required"), nil
	}

	hash := p.ManifestHash
	if hash == "" {
		head, err := t.store.GetHead(ctx, p.ModuleID)
		if err != nil {
			return mcp.ErrorResult(fmt.Sprintf("resolving head: %v", err)), nil
		}
		hash = head
	}
	if hash == "" {
		return mcp.ErrorResult("module has no manifest head"), nil
	}

	snap, err := t.store.GetSnapshot(ctx, p.ModuleID, hash)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("snapshot not found: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"manifest_hash": hash, "manifest": snap})
}

// ListHistory returns the append-only audit trail for a module.
type ListHistory struct {
	store *store.Store
}

func NewListHistory(s *store.Store) *ListHistory { return &ListHistory{store: s} }

func (t *ListHistory) Name() string { return "manifest_list_history" }

func (t *ListHistory) Description() string {
	return "List the audit trail (init/apply/rollback and register/install/upgrade/enable/disable entries) for a module, newest first."
}

func (t *ListHistory) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"module_id": {"type": "string"}},
  "required": ["module_id"]
}`)
}

func (t *ListHistory) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ModuleID == "" {
		return mcp.ErrorResult("module_id is required"), nil
	}
	history, err := t.store.ListHistory(ctx, p.ModuleID)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("listing history: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"history": history})
}

// ListSnapshots lists every retained manifest snapshot for a module.
type ListSnapshots struct {
	store *store.Store
}

func NewListSnapshots(s *store.Store) *ListSnapshots { return &ListSnapshots{store: s} }

func (t *ListSnapshots) Name() string { return "manifest_list_snapshots" }

func (t *ListSnapshots) Description() string {
	return "List every retained manifest snapshot for a module, newest first."
}

func (t *ListSnapshots) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"module_id": {"type": "string"}},
  "required": ["module_id"]
}`)
}

func (t *ListSnapshots) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ModuleID == "" {
		return mcp.ErrorResult("module_id is required"), nil
	}
	snapshots, err := t.store.ListSnapshots(ctx, p.ModuleID)
	if err != nil {
		return mcp.ErrorResult(fmt.Sprintf("listing snapshots: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"snapshots": snapshots})
}

// Rollback wraps internal/store.Rollback directly (distinct from
// module.Rollback, which additionally updates registry version lineage).
type Rollback struct {
	store *store.Store
}

func NewRollback(s *store.Store) *Rollback { return &Rollback{store: s} }

func (t *Rollback) Name() string { return "manifest_rollback" }

func (t *Rollback) Description() string {
	return "Roll a module's manifest head back to a previously stored snapshot hash, recording an audit entry."
}

func (t *Rollback) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "module_id": {"type": "string"},
    "to_hash": {"type": "string"},
    "actor": {},
    "reason": {"type": "string"}
  },
  "required": ["module_id", "to_hash", "reason"]
}`)
}

func (t *Rollback) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
		ToHash   string `json:"to_hash"`
		Actor    any    `json:"actor"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ModuleID == "" || p.ToHash == "" {
		return mcp.ErrorResult("module_id and to_hash are required"), nil
	}
	result := t.store.Rollback(ctx, p.ModuleID, p.ToHash, p.Actor, p.Reason)
	return mcp.JSONResult(result)
}
