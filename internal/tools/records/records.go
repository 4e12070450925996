// Package records adapts internal/records as MCP tools: validate a record
// payload against an entity's field declarations (and a workflow's status
// field, when applicable), and cross-check lookup fields against the
// registry of enabled modules.
package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/manifold-platform/manifoldmcp/internal/mcp"
	"github.com/manifold-platform/manifoldmcp/internal/records"
	"github.com/manifold-platform/manifoldmcp/internal/registry"
	"github.com/manifold-platform/manifoldmcp/internal/store"
)

// registryLookup implements records.EntityLookup over a request-scoped
// context, a registry, and the durable store it reads snapshots from.
type registryLookup struct {
	ctx      context.Context
	registry *registry.Registry
	store    *store.Store
}

func (l registryLookup) EnabledModules() [][2]string {
	var out [][2]string
	for _, mod := range l.registry.List(l.ctx) {
		if mod.Enabled && !mod.Archived && mod.CurrentHash != "" {
			out = append(out, [2]string{mod.ModuleID, mod.CurrentHash})
		}
	}
	return out
}

func (l registryLookup) Snapshot(moduleID, hash string) (map[string]any, error) {
	return l.store.GetSnapshot(l.ctx, moduleID, hash)
}

// ValidatePayload runs internal/records.ValidateRecordPayload against a
// supplied entity declaration (and, optionally, the workflow gating its
// status field), applying defaults on create.
type ValidatePayload struct{}

func NewValidatePayload() *ValidatePayload { return &ValidatePayload{} }

func (t *ValidatePayload) Name() string { return "record_validate_payload" }

func (t *ValidatePayload) Description() string {
	return "Validate a record payload against an entity's declared fields: unknown fields, required/required_when, type checks, enum membership, and (if a workflow is supplied) status cross-check. Applies field defaults on create."
}

func (t *ValidatePayload) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {
    "entity": {"type": "object"},
    "data": {"type": "object"},
    "for_create": {"type": "boolean"},
    "workflow": {"type": "object"}
  },
  "required": ["entity", "data"]
}`)
}

func (t *ValidatePayload) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Entity    map[string]any `json:"entity"`
		Data      map[string]any `json:"data"`
		ForCreate bool           `json:"for_create"`
		Workflow  map[string]any `json:"workflow"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	errs, data := records.ValidateRecordPayload(p.Entity, p.Data, p.ForCreate, p.Workflow)
	return mcp.JSONResult(map[string]any{"ok": len(errs) == 0, "errors": errs, "data": data})
}

// ValidateLookups cross-checks every lookup field on a supplied entity
// against every enabled module's current manifest.
type ValidateLookups struct {
	registry *registry.Registry
	store    *store.Store
}

func NewValidateLookups(r *registry.Registry, s *store.Store) *ValidateLookups {
	return &ValidateLookups{registry: r, store: s}
}

func (t *ValidateLookups) Name() string { return "record_validate_lookups" }

func (t *ValidateLookups) Description() string {
	return "Cross-check every lookup field on an entity against the registry of enabled modules: the target entity must exist and must declare the requested display_field."
}

func (t *ValidateLookups) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"entity": {"type": "object"}},
  "required": ["entity"]
}`)
}

func (t *ValidateLookups) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		Entity map[string]any `json:"entity"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	lookup := registryLookup{ctx: ctx, registry: t.registry, store: t.store}
	errs := records.ValidateLookupFields(p.Entity, lookup)
	return mcp.JSONResult(map[string]any{"ok": len(errs) == 0, "errors": errs})
}

// FindEntity resolves an entity reference across every enabled module's
// current manifest, the same resolution a lookup field's target uses.
type FindEntity struct {
	registry *registry.Registry
	store    *store.Store
}

func NewFindEntity(r *registry.Registry, s *store.Store) *FindEntity {
	return &FindEntity{registry: r, store: s}
}

func (t *FindEntity) Name() string { return "record_find_entity" }

func (t *FindEntity) Description() string {
	return "Resolve an entity id across every enabled module's current manifest, tolerating the presence/absence of the entity. prefix."
}

func (t *FindEntity) InputSchema() json.RawMessage {
	return json.RawMessage(`{
  "type": "object",
  "properties": {"entity_id": {"type": "string"}},
  "required": ["entity_id"]
}`)
}

func (t *FindEntity) Execute(ctx context.Context, params json.RawMessage) (*mcp.ToolsCallResult, error) {
	var p struct {
		EntityID string `json:"entity_id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		return mcp.ErrorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	lookup := registryLookup{ctx: ctx, registry: t.registry, store: t.store}
	found, ok := records.FindEntityDef(lookup, p.EntityID)
	if !ok {
		return mcp.JSONResult(map[string]any{"found": false})
	}
	return mcp.JSONResult(map[string]any{
		"found": true, "module_id": found.ModuleID, "entity": found.Entity,
	})
}
