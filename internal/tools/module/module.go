// Package module adapts internal/registry as MCP tools: register, install,
// upgrade, enable/disable, reorder, and roll back modules.
package module

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/manifold-platform/manifoldmcp/internal/mcp"
	"github.com/manifold-platform/manifoldmcp/internal/registry"
)

// Register creates a registry entry for a module that already has a
// manifest head in the store, disabled by default.
type Register struct {
	registry *registry.Registry
}

func NewRegister(r *registry.Registry) *Register { return &Register{registry: r} }

func (t *Register) Name() string { return "module_register" }

func (t *Register) Description() string {
	return "Register a module that already has an initialized manifest head. The module starts disabled with no active version."
}

func (t *Register) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "module_id": {"type": "string"},
    "name": {"type": "string"},
    "actor": {},
    "reason": {"type": "string"}
  },
  "required": ["module_id", "name"]
}`)
}

func (t *Register) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
		Name     string `json:"name"`
		Actor    any    `json:"actor"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ModuleID == "" || p.Name == "" {
		return mcp.ErrorResult("module_id and name are required"), nil
	}
	result := t.registry.Register(ctx, p.ModuleID, p.Name, p.Actor, p.Reason)
	return mcp.JSONResult(result)
}

// Install applies an approved preview to a module's manifest, auto-registering
// and enabling the module if this is its first version.
type Install struct {
	registry *registry.Registry
}

func NewInstall(r *registry.Registry) *Install { return &Install{registry: r} }

func (t *Install) Name() string { return "module_install" }

func (t *Install) Description() string {
	return "Install (or re-install) a module from an approved patch preview, auto-registering it and creating version 1 if it has none."
}

func (t *Install) InputSchema() json.RawMessage {
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

func (t *Install) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var approved map[string]any
	if err := json.Unmarshal(params, &approved); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	result := t.registry.Install(ctx, approved)
	return mcp.JSONResult(result)
}

// Upgrade applies an approved preview to an already-installed module,
// transitioning it through status="upgrading" and creating a new version.
type Upgrade struct {
	registry *registry.Registry
}

func NewUpgrade(r *registry.Registry) *Upgrade { return &Upgrade{registry: r} }

func (t *Upgrade) Name() string { return "module_upgrade" }

func (t *Upgrade) Description() string {
	return "Upgrade an already-installed module from an approved patch preview, recording a new version in its lineage."
}

func (t *Upgrade) InputSchema() json.RawMessage {
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

func (t *Upgrade) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var approved map[string]any
	if err := json.Unmarshal(params, &approved); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	result := t.registry.Upgrade(ctx, approved)
	return mcp.JSONResult(result)
}

// Rollback reverts a module to a prior version or manifest hash.
type Rollback struct {
	registry *registry.Registry
}

func NewRollback(r *registry.Registry) *Rollback { return &Rollback{registry: r} }

func (t *Rollback) Name() string { return "module_rollback" }

func (t *Rollback) Description() string {
	return "Roll a module back to a prior manifest hash or version, updating its active version and version lineage."
}

func (t *Rollback) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "module_id": {"type": "string"},
    "to_hash": {"type": "string"},
    "to_version_id": {"type": "string"},
    "to_version_num": {"type": "integer"},
    "actor": {},
    "reason": {"type": "string"}
  },
  "required": ["module_id", "reason"]
}`)
}

func (t *Rollback) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID     string `json:"module_id"`
		ToHash       string `json:"to_hash"`
		ToVersionID  string `json:"to_version_id"`
		ToVersionNum int    `json:"to_version_num"`
		Actor        any    `json:"actor"`
		Reason       string `json:"reason"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ModuleID == "" {
		return mcp.ErrorResult("module_id is required"), nil
	}
	result := t.registry.Rollback(ctx, p.ModuleID, p.ToHash, p.Actor, p.Reason, p.ToVersionID, p.ToVersionNum)
	return mcp.JSONResult(result)
}

// SetEnabled toggles whether a module participates in request handling.
type SetEnabled struct {
	registry *registry.Registry
}

func NewSetEnabled(r *registry.Registry) *SetEnabled { return &SetEnabled{registry: r} }

func (t *SetEnabled) Name() string { return "module_set_enabled" }

func (t *SetEnabled) Description() string {
	return "Enable or disable a registered module. A no-op toggle succeeds with a MODULE_ENABLED_NOOP warning."
}

func (t *SetEnabled) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "module_id": {"type": "string"},
    "enabled": {"type": "boolean"},
    "actor": {},
    "reason": {"type": "string"}
  },
  "required": ["module_id", "enabled"]
}`)
}

func (t *SetEnabled) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
		Enabled  bool   `json:"enabled"`
		Actor    any    `json:"actor"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	if p.ModuleID == "" {
		return mcp.ErrorResult("module_id is required"), nil
	}
	result := t.registry.SetEnabled(ctx, p.ModuleID, p.Enabled, p.Actor, p.Reason)
	return mcp.JSONResult(result)
}

// List returns every registered module, ordered by display_order then id.
type List struct {
	registry *registry.Registry
}

func NewList(r *registry.Registry) *List { return &List{registry: r} }

func (t *List) Name() string { return "module_list" }

func (t *List) Description() string {
	return "List every registered module in this tenant, ordered by display_order then module_id."
}

func (t *List) InputSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *List) Execute(ctx context.Context, _ json.RawMessage) (*mcp.ToolsCallResult, error) {
	return mcp.JSONResult(map[string]any{"modules": t.registry.List(ctx)})
}

// Get returns a single module's registry entry.
type Get struct {
	registry *registry.Registry
}

func NewGet(r *registry.Registry) *Get { return &Get{registry: r} }

func (t *Get) Name() string { return "module_get" }

func (t *Get) Description() string { return "Fetch a single module's registry entry." }

func (t *Get) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"module_id": {"type": "string"}},
  "required": ["module_id"]
}`)
}

func (t *Get) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	mod := t.registry.Get(ctx, p.ModuleID)
	if mod == nil {
		return mcp.ErrorResult("module not found: " + p.ModuleID), nil
	}
	return mcp.JSONResult(mod)
}

// ListVersions returns the version lineage for a module.
type ListVersions struct {
	registry *registry.Registry
}

func NewListVersions(r *registry.Registry) *ListVersions { return &ListVersions{registry: r} }

func (t *ListVersions) Name() string { return "module_list_versions" }

func (t *ListVersions) Description() string {
	return "List the recorded version lineage for a module, oldest first."
}

func (t *ListVersions) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"module_id": {"type": "string"}},
  "required": ["module_id"]
}`)
}

func (t *ListVersions) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	return mcp.JSONResult(map[string]any{"versions": t.registry.ListVersions(ctx, p.ModuleID)})
}

// SetIcon and ClearIcon adjust a module's display icon; SetDisplayOrder
// adjusts its listing position. These are thin enough to share one file.

type SetIcon struct {
	registry *registry.Registry
}

func NewSetIcon(r *registry.Registry) *SetIcon { return &SetIcon{registry: r} }

func (t *SetIcon) Name() string { return "module_set_icon" }

func (t *SetIcon) Description() string { return "Set a module's display icon key." }

func (t *SetIcon) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "module_id": {"type": "string"},
    "icon_key": {"type": "string"}
  },
  "required": ["module_id", "icon_key"]
}`)
}

func (t *SetIcon) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
		IconKey  string `json:"icon_key"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	t.registry.SetIcon(ctx, p.ModuleID, p.IconKey)
	return mcp.JSONResult(map[string]any{"ok": true})
}

type ClearIcon struct {
	registry *registry.Registry
}

func NewClearIcon(r *registry.Registry) *ClearIcon { return &ClearIcon{registry: r} }

func (t *ClearIcon) Name() string { return "module_clear_icon" }

func (t *ClearIcon) Description() string { return "Clear a module's display icon key." }

func (t *ClearIcon) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"module_id": {"type": "string"}},
  "required": ["module_id"]
}`)
}

func (t *ClearIcon) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	t.registry.ClearIcon(ctx, p.ModuleID)
	return mcp.JSONResult(map[string]any{"ok": true})
}

type SetDisplayOrder struct {
	registry *registry.Registry
}

func NewSetDisplayOrder(r *registry.Registry) *SetDisplayOrder { return &SetDisplayOrder{registry: r} }

func (t *SetDisplayOrder) Name() string { return "module_set_display_order" }

func (t *SetDisplayOrder) Description() string {
	return "Set a module's position in module_list's ordering."
}

func (t *SetDisplayOrder) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "module_id": {"type": "string"},
    "order": {"type": "integer"}
  },
  "required": ["module_id", "order"]
}`)
}

func (t *SetDisplayOrder) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		ModuleID string `json:"module_id"`
		Order    int    `json:"order"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	t.registry.SetDisplayOrder(ctx, p.ModuleID, p.Order)
	return mcp.JSONResult(map[string]any{"ok": true})
}
