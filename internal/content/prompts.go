package content

import "github.com/manifold-platform/manifoldmcp/internal/mcp"

// --- author-module prompt ---

// AuthorModulePrompt is an actionable prompt that walks an LLM through
// drafting a new module manifest end to end.
type AuthorModulePrompt struct{}

func (p *AuthorModulePrompt) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "author-module",
		Description: "Interactive guide for drafting a new module manifest: entities, fields, views, and workflow, then installing it.",
		Arguments:   []mcp.PromptArgument{},
	}
}

func (p *AuthorModulePrompt) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	return &mcp.PromptsGetResult{
		Description: "Guide for authoring a new module",
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.TextContent(authorModuleGuide)},
		},
	}, nil
}

const authorModuleGuide = `# Author a New Module

You are helping a user draft a new module manifest for installation.

## Your Role

1. Ask clarifying questions about the data the module should manage
2. Draft entities and fields
3. Draft a workflow if the data has a lifecycle
4. Validate and install the manifest

## Step 1: Gather Context

Ask:
- What is this module for, in one sentence?
- What are the core records it manages? (these become entities)
- For each record, what fields does it need, and which are required?
- Does any record have a lifecycle (draft → review → done, open → closed)?
- Does any field reference a record in another module? (these become lookup fields)

## Step 2: Draft Entities

For each entity, list its fields with a type from:
string, text, number, bool, enum, date, datetime, uuid, lookup, tags, attachments

Mark required fields explicitly. For conditionally-required fields, describe
the condition in plain language — it will become a required_when clause.

## Step 3: Draft a Workflow (if applicable)

If a record has a lifecycle:
- Name the status field (usually "status")
- List the states
- List the fields required in each state (e.g. "closed" requires close_reason)
- List the transitions between states and any guard conditions

## Step 4: Validate

Call manifest_validate with the draft manifest. Fix any reported errors
before proceeding — cross-references (view targets, lookup targets, enum
shape) are checked here.

## Step 5: Install

The module needs an existing manifest head to patch against. Build a patch
whose operations fill in that manifest (add operations on top-level keys such
as /entities, or add_field operations); an add at the document root itself
is rejected. Call manifest_preview_patch, then module_install with the
approved preview.

## Start Now!

Ask: "What records should this module manage, and does anything it manages
go through stages?"
`

// --- propose-patch prompt ---

// ProposePatchPrompt guides an LLM through proposing a safe patch to an
// existing module.
type ProposePatchPrompt struct{}

func (p *ProposePatchPrompt) Definition() mcp.PromptDefinition {
	return mcp.PromptDefinition{
		Name:        "propose-patch",
		Description: "Interactive guide for proposing a patch to an existing module's manifest: preview, review impact, get approval, apply.",
		Arguments:   []mcp.PromptArgument{},
	}
}

func (p *ProposePatchPrompt) Get(arguments map[string]string) (*mcp.PromptsGetResult, error) {
	return &mcp.PromptsGetResult{
		Description: "Guide for proposing a patch",
		Messages: []mcp.PromptMessage{
			{Role: "user", Content: mcp.TextContent(proposePatchGuide)},
		},
	}, nil
}

const proposePatchGuide = `# Propose a Patch to a Module

You are helping a user change an existing module's manifest safely.

## Workflow

1. Fetch the module's current manifest with manifest_get_snapshot
2. Build the minimal set of RFC-6902-style operations (add/remove/replace/
   move/copy/test), or use the add_field macro for new entity fields
3. Call manifest_preview_patch with target_manifest_hash set to the hash
   returned in step 1
4. Review the impact classification and diff summary in the response
5. If impact is high, confirm the change with the user before proceeding
6. Have the change approved (approved_by, approved_at)
7. Call manifest_apply_patch with the patch and its preview

## Notes

- Paths may use @[id=X] selectors instead of numeric array indices, e.g.
  /entities/@[id=entity.job]/fields/@[id=title]/type
- A small set of paths (/module/id and anything under /module/requires) are
  protected and rejected outright
- If target_manifest_hash no longer matches the module's head when you
  apply, you'll get APPLY_HASH_MISMATCH — re-fetch and re-preview
`
