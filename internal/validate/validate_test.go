package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/validate"
)

func validManifest() map[string]any {
	return map[string]any{
		"manifest_version": "1.0",
		"module":           map[string]any{"id": "job_management", "name": "Job Management"},
		"entities": []any{
			map[string]any{
				"id": "entity.job",
				"fields": []any{
					map[string]any{
						"id": "status", "type": "enum",
						"options": []any{
							map[string]any{"value": "open", "label": "Open"},
							map[string]any{"value": "closed", "label": "Closed"},
						},
					},
					map[string]any{"id": "title", "type": "string"},
				},
			},
		},
		"views": []any{
			map[string]any{"id": "view.job_list", "entity": "job", "type": "list"},
		},
	}
}

func TestValidManifestHasNoErrors(t *testing.T) {
	errs, _ := validate.Manifest(validManifest(), "")
	assert.Empty(t, errs)
}

func TestMissingModuleID(t *testing.T) {
	m := validManifest()
	m["module"] = map[string]any{}
	errs, _ := validate.Manifest(m, "")
	require.NotEmpty(t, errs)
	found := false
	for _, e := range errs {
		if e.Code == "MANIFEST_MODULE_ID_INVALID" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestModuleIDMismatch(t *testing.T) {
	errs, _ := validate.Manifest(validManifest(), "other_module")
	found := false
	for _, e := range errs {
		if e.Code == "MANIFEST_MODULE_ID_MISMATCH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUnknownFieldTypeRejected(t *testing.T) {
	m := validManifest()
	entities := m["entities"].([]any)
	entity := entities[0].(map[string]any)
	fields := entity["fields"].([]any)
	fields = append(fields, map[string]any{"id": "weird", "type": "bogus"})
	entity["fields"] = fields
	errs, _ := validate.Manifest(m, "")
	found := false
	for _, e := range errs {
		if e.Code == "MANIFEST_FIELD_TYPE_INVALID" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestEnumOptionsMustBeObjectShape(t *testing.T) {
	m := validManifest()
	entities := m["entities"].([]any)
	entity := entities[0].(map[string]any)
	fields := entity["fields"].([]any)
	fields[0].(map[string]any)["options"] = []any{"open", "closed"}
	entity["fields"] = fields
	errs, _ := validate.Manifest(m, "")
	found := false
	for _, e := range errs {
		if e.Code == "MANIFEST_ENUM_OPTIONS_SHAPE_INVALID" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestUnknownTopLevelKeyRejectedForV1(t *testing.T) {
	m := validManifest()
	m["bogus_key"] = "x"
	errs, _ := validate.Manifest(m, "")
	found := false
	for _, e := range errs {
		if e.Code == "MANIFEST_UNKNOWN_KEY" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestViewEntityUnknown(t *testing.T) {
	m := validManifest()
	views := m["views"].([]any)
	views[0].(map[string]any)["entity"] = "nonexistent"
	errs, _ := validate.Manifest(m, "")
	found := false
	for _, e := range errs {
		if e.Code == "MANIFEST_VIEW_ENTITY_UNKNOWN" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStackBlockRequiresV11(t *testing.T) {
	m := validManifest()
	m["manifest_version"] = "1.0"
	m["pages"] = []any{
		map[string]any{
			"id": "page.main",
			"content": []any{
				map[string]any{"kind": "stack", "content": []any{}},
			},
		},
	}
	errs, _ := validate.Manifest(m, "")
	found := false
	for _, e := range errs {
		if e.Code == "MANIFEST_BLOCK_KIND_INVALID" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestStackBlockAllowedAtV11(t *testing.T) {
	m := validManifest()
	m["manifest_version"] = "1.1"
	m["pages"] = []any{
		map[string]any{
			"id": "page.main",
			"content": []any{
				map[string]any{"kind": "stack", "content": []any{}},
			},
		},
	}
	errs, _ := validate.Manifest(m, "")
	for _, e := range errs {
		assert.NotEqual(t, "MANIFEST_BLOCK_KIND_INVALID", e.Code)
	}
}

func TestFieldConditionRequiresV12(t *testing.T) {
	m := validManifest()
	m["manifest_version"] = "1.0"
	entities := m["entities"].([]any)
	entity := entities[0].(map[string]any)
	fields := entity["fields"].([]any)
	fields[1].(map[string]any)["visible_when"] = map[string]any{"op": "eq", "field": "status", "value": "open"}
	entity["fields"] = fields
	errs, _ := validate.Manifest(m, "")
	found := false
	for _, e := range errs {
		if e.Code == "MANIFEST_FIELD_CONDITION_INVALID" {
			found = true
		}
	}
	assert.True(t, found)
}
