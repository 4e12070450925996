package normalize_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/normalize"
)

func TestNormalizeModuleFromTopLevelKeys(t *testing.T) {
	raw := map[string]any{
		"module_id": "job_management",
	}
	out := normalize.Manifest(raw)
	module, ok := out["module"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "job_management", module["id"])
	assert.Equal(t, "Job Management", module["name"])
}

func TestNormalizeModulePreservesExplicitModule(t *testing.T) {
	raw := map[string]any{
		"module": map[string]any{"id": "x", "name": "Custom"},
	}
	out := normalize.Manifest(raw)
	module, ok := out["module"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Custom", module["name"])
}

func TestNormalizeEntitiesFromDictShape(t *testing.T) {
	raw := map[string]any{
		"entities": map[string]any{
			"job": map[string]any{
				"fields": []any{
					map[string]any{"id": "status", "type": "enum", "options": []any{"open", "closed"}},
				},
			},
		},
	}
	out := normalize.Manifest(raw)
	entities, ok := out["entities"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, entities, 1)
	assert.Equal(t, "job", entities[0]["id"])

	fields := entities[0]["fields"].([]map[string]any)
	require.Len(t, fields, 1)
	options := fields[0]["options"].([]any)
	require.Len(t, options, 2)
	first := options[0].(map[string]any)
	assert.Equal(t, "open", first["value"])
	assert.Equal(t, "Open", first["label"])
}

func TestNormalizeViewListColumnsFromFields(t *testing.T) {
	raw := map[string]any{
		"entities": []any{map[string]any{"id": "entity.job", "fields": []any{}}},
		"views": []any{
			map[string]any{"kind": "list", "entity": "job", "fields": []any{"title", "status"}},
		},
	}
	out := normalize.Manifest(raw)
	views := out["views"].([]map[string]any)
	require.Len(t, views, 1)
	assert.Equal(t, "entity.job", views[0]["entity"])
	columns := views[0]["columns"].([]any)
	require.Len(t, columns, 2)
	assert.Equal(t, map[string]any{"field_id": "title"}, columns[0])
}

func TestNormalizeBlocksQualifiesViewTarget(t *testing.T) {
	raw := map[string]any{
		"pages": []any{
			map[string]any{
				"content": []any{
					map[string]any{"kind": "view", "target": "job.list"},
				},
			},
		},
	}
	out := normalize.Manifest(raw)
	pages := out["pages"].([]map[string]any)
	require.Len(t, pages, 1)
	content := pages[0]["content"].([]map[string]any)
	require.Len(t, content, 1)
	assert.Equal(t, "view:job.list", content[0]["target"])
}

func TestNormalizeWorkflowsFromDict(t *testing.T) {
	raw := map[string]any{
		"workflows": map[string]any{
			"w1": map[string]any{"id": "w1"},
		},
	}
	out := normalize.Manifest(raw)
	workflows := out["workflows"].([]any)
	require.Len(t, workflows, 1)
}

func TestNormalizePreservesExtraKeys(t *testing.T) {
	raw := map[string]any{"custom_extension": map[string]any{"foo": "bar"}}
	out := normalize.Manifest(raw)
	assert.Equal(t, map[string]any{"foo": "bar"}, out["custom_extension"])
}
