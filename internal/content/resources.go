// Package content provides MCP prompts and resources describing the
// manifest platform's data model, error taxonomy, and tool surface.
package content

import "github.com/manifold-platform/manifoldmcp/internal/mcp"

// --- manifold://manifest-model resource ---

// ManifestModelResource exposes the manifest shape reference. LLMs can read
// this to understand entities, fields, views, workflows, and blocks.
type ManifestModelResource struct{}

func (r *ManifestModelResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "manifold://manifest-model",
		Name:        "Manifest Model",
		Description: "Reference of the canonical manifest shape: module metadata, entities, fields, views, workflows, and block types.",
		MimeType:    "text/markdown",
	}
}

func (r *ManifestModelResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{URI: "manifold://manifest-model", MimeType: "text/markdown", Text: manifestModelContent},
		},
	}, nil
}

// --- manifold://error-taxonomy resource ---

// ErrorTaxonomyResource exposes the wire error code families as a reference
// resource.
type ErrorTaxonomyResource struct{}

func (r *ErrorTaxonomyResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "manifold://error-taxonomy",
		Name:        "Error Taxonomy",
		Description: "Reference of every {ok,errors,warnings} issue code family this server returns and when each fires.",
		MimeType:    "text/markdown",
	}
}

func (r *ErrorTaxonomyResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{URI: "manifold://error-taxonomy", MimeType: "text/markdown", Text: errorTaxonomyContent},
		},
	}, nil
}

// --- manifold://tool-reference resource ---

// ToolReferenceResource exposes a quick-reference card for the server's tools.
type ToolReferenceResource struct{}

func (r *ToolReferenceResource) Definition() mcp.ResourceDefinition {
	return mcp.ResourceDefinition{
		URI:         "manifold://tool-reference",
		Name:        "Tool Reference",
		Description: "Quick-reference card for every manifest, module, rule, and record tool this server exposes.",
		MimeType:    "text/markdown",
	}
}

func (r *ToolReferenceResource) Read() (*mcp.ResourcesReadResult, error) {
	return &mcp.ResourcesReadResult{
		Contents: []mcp.ResourceContent{
			{URI: "manifold://tool-reference", MimeType: "text/markdown", Text: toolReferenceContent},
		},
	}, nil
}

// --- Static content ---

const manifestModelContent = `# Manifest Model

## Module

Every manifest declares a module block:
- **id** (string, required) — stable module identifier, used as the registry and store key

Next to the module block, the top-level **manifest_version** (string) gates
which features below are accepted (1.0, 1.1, 1.2, 1.3).

## Entities

A list (or, in legacy shorthand, a dict keyed by entity id) of:
- **id** (string, required)
- **fields** — list (or dict) of field declarations:
  - **id** (string, required)
  - **type**: string, text, number, bool, enum, date, datetime, uuid, lookup, tags, attachments
  - **required** (bool)
  - **required_when** (condition) — 1.2+
  - **default** (value or expression)
  - **options** (enum fields) — list of {value, label}
  - **entity** / **display_field** (lookup fields) — target entity id and the field shown in pickers

## Views

List-view and detail-view declarations, each qualified with an **entity** target
and a **columns**/**sections** layout built from field references.

## Workflows

- **entity** — the entity this workflow gates
- **status_field** — the field holding the current state
- **states** — list of {id, required_fields}
- **required_fields_by_state** — alternate map-keyed shorthand for the same
- **transitions** — list of {id, from, to, guard, actions, emits} — see
  workflow_plan_step for evaluation semantics

## Pages and Blocks

Each entry of the top-level **pages** list has an **id** and a **content**
list of blocks. A view block is accepted at any version; stack, grid, tabs
and text blocks need 1.1+, chatter 1.2+, and container, toolbar, statusbar,
record, view_modes and related_list 1.3+. Blocks carry no
visible_when/enabled_when condition of their own.

## Conditions and Expressions

visible_when/enabled_when/required_when/disabled_when and default/computed
field values use two small DSLs — condition_eval and expression_eval expose
them directly for manifest-authoring-time testing.
`

const errorTaxonomyContent = `# Error Taxonomy Reference

## Envelope

Every mutating tool returns {ok, errors, warnings} (plus tool-specific
fields). ok is true only when errors is empty; warnings never flip ok.

## Code families

| Prefix | Source | Meaning |
|--------|--------|---------|
| MANIFEST_* | manifest_validate | structural/cross-reference problems in a manifest |
| MANIFEST_VERSION_* | manifest_validate | manifest_version is not a string, or is missing while app/pages are used |
| PATCH_* | manifest_preview_patch | malformed patch envelope (missing field, wrong mode, hash mismatch) |
| OP_* | manifest_preview_patch | a single resolved operation is invalid (bad op kind, missing path) |
| SELECTOR_* / POINTER_* | manifest_preview_patch | a path or @[id=X] selector failed to resolve |
| PROTECTED_* | manifest_preview_patch | an operation targets a protected path (/module/id, /module/requires) |
| APPLY_HASH_MISMATCH | manifest_apply_patch | the module's head moved since the patch was previewed |
| ROLLBACK_* | manifest_rollback, module_rollback | unknown hash/version/module, or the rollback failed |
| STORE_NO_TENANT / REGISTRY_NO_TENANT | any store/registry tool | the request context carries no org_id |
| MODULE_* | module_register/install/upgrade/rollback/set_enabled, manifest_rollback | registry lifecycle problems (already registered, not found, no-op toggle), or (as a warning) rollback to the snapshot that is already the head |
| CONDITION_* | condition_eval, workflow_plan_step | condition DSL schema/type/depth/unresolved-var errors (workflow_plan_step reports them as the error_code detail of WORKFLOW_GUARD_ERROR) |
| EXPR_* | expression_eval | expression DSL schema/type/depth/unresolved-var errors |
| WORKFLOW_* | workflow_plan_step | invalid workflow structure, guard evaluation error, ambiguous transition |
| UNKNOWN_FIELD / REQUIRED_FIELD / TYPE_MISMATCH / INVALID_ENUM / INVALID_DATE / INVALID_DATETIME / INVALID_STATUS | record_validate_payload | record payload does not match its entity's field declarations |
| LOOKUP_* | record_validate_lookups | a lookup field's target entity or display_field could not be resolved |
`

const toolReferenceContent = `# Tool Quick Reference

## Manifest Tools

- **manifest_preview_patch** — validate a patch against a module's current head without applying it
- **manifest_apply_patch** — apply an approved preview, CAS-advancing the head
- **manifest_get_snapshot** — fetch a module's manifest at its head or a given hash
- **manifest_list_snapshots** — list every retained snapshot for a module
- **manifest_list_history** — list the audit trail for a module
- **manifest_rollback** — revert a module's head to a prior hash (store-level only)
- **manifest_validate** — structural/cross-reference validation, version-gated
- **manifest_normalize** — rewrite a legacy manifest shape into the canonical one

## Module Tools

- **module_register** — register a module that already has a manifest head
- **module_install** — install from an approved preview, auto-registering on first install
- **module_upgrade** — upgrade an already-installed module from an approved preview
- **module_rollback** — revert a module's active version and head together
- **module_set_enabled** — toggle whether a module is enabled
- **module_list** / **module_get** — list or fetch registry entries
- **module_list_versions** — list a module's version lineage
- **module_set_icon** / **module_clear_icon** / **module_set_display_order** — display metadata

## Rule Tools

- **condition_eval** — evaluate a condition node against a variable context
- **expression_eval** — evaluate a value expression against a variable context
- **workflow_plan_step** — choose the transition (if any) whose guard passes from the current state

## Record Tools

- **record_validate_payload** — validate a record against its entity's field declarations
- **record_validate_lookups** — cross-check an entity's lookup fields against enabled modules
- **record_find_entity** — resolve an entity id across every enabled module
`
