package patch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/canon"
	"github.com/manifold-platform/manifoldmcp/internal/patch"
)

func sampleManifest() map[string]any {
	return map[string]any{
		"module": map[string]any{"id": "job_management", "requires": []any{}},
		"entities": []any{
			map[string]any{
				"id": "entity.job",
				"fields": []any{
					map[string]any{"id": "title", "type": "string"},
					map[string]any{"id": "status", "type": "string"},
				},
			},
		},
	}
}

func samplePatch(t *testing.T, manifest map[string]any, operations []any) map[string]any {
	t.Helper()
	hash, err := canon.Hash(manifest)
	require.NoError(t, err)
	return map[string]any{
		"patch_id":             "p1",
		"target_module_id":     "job_management",
		"target_manifest_hash": hash,
		"mode":                 "preview",
		"reason":               "test",
		"operations":           operations,
	}
}

func TestPreviewMissingFields(t *testing.T) {
	result := patch.Preview(sampleManifest(), map[string]any{})
	assert.False(t, result.OK)
	require.NotEmpty(t, result.Errors)
}

func TestPreviewHashMismatch(t *testing.T) {
	p := map[string]any{
		"patch_id": "p1", "target_module_id": "job_management",
		"target_manifest_hash": "sha256:deadbeef", "mode": "preview",
		"reason": "test", "operations": []any{},
	}
	result := patch.Preview(sampleManifest(), p)
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "PATCH_HASH_MISMATCH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPreviewReplaceSucceeds(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/@[id=title]/type", "value": "text"},
	}
	p := samplePatch(t, manifest, ops)
	result := patch.Preview(manifest, p)
	require.True(t, result.OK)
	require.Len(t, result.ResolvedOps, 1)
	assert.Equal(t, "replace", result.ResolvedOps[0].Op)
	require.NotNil(t, result.Impact)
	assert.Equal(t, "high", *result.Impact)
}

func TestPreviewDoesNotMutateOriginal(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/@[id=title]/type", "value": "text"},
	}
	p := samplePatch(t, manifest, ops)
	patch.Preview(manifest, p)
	entities := manifest["entities"].([]any)
	entity := entities[0].(map[string]any)
	fields := entity["fields"].([]any)
	field := fields[0].(map[string]any)
	assert.Equal(t, "string", field["type"])
}

func TestPreviewProtectedPathRejected(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{"op": "replace", "path": "/module/id", "value": "other"},
	}
	p := samplePatch(t, manifest, ops)
	result := patch.Preview(manifest, p)
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "PROTECTED_PATH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPreviewAddFieldMacroExpands(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{
			"op": "add_field", "entity_id": "entity.job", "after_field_id": "title",
			"field": map[string]any{"id": "priority", "type": "string"},
		},
	}
	p := samplePatch(t, manifest, ops)
	result := patch.Preview(manifest, p)
	require.True(t, result.OK)
	require.Len(t, result.ResolvedOps, 1)
	assert.Equal(t, "add", result.ResolvedOps[0].Op)
	assert.Equal(t, "/entities/0/fields/1", result.ResolvedOps[0].Path)
}

func TestPreviewUnsupportedOpRejected(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{"op": "bogus", "path": "/entities/0"},
	}
	p := samplePatch(t, manifest, ops)
	result := patch.Preview(manifest, p)
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "OP_UNSUPPORTED" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPreviewNumericIndexPathRejected(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{"op": "replace", "path": "/entities/0/fields/0/type", "value": "text"},
	}
	p := samplePatch(t, manifest, ops)
	result := patch.Preview(manifest, p)
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "OP_NUMERIC_INDEX_PATH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestPreviewRemoveClassifiedHighImpact(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{"op": "remove", "path": "/entities/@[id=entity.job]/fields/@[id=status]"},
	}
	p := samplePatch(t, manifest, ops)
	result := patch.Preview(manifest, p)
	require.True(t, result.OK)
	require.NotNil(t, result.Impact)
	assert.Equal(t, "high", *result.Impact)
}

func TestApplyResolvedOpsMutatesInPlace(t *testing.T) {
	manifest := sampleManifest()
	ops := []patch.Op{
		{Op: "replace", Path: "/entities/0/fields/0/type", Value: "text"},
	}
	err := patch.ApplyResolvedOps(manifest, ops)
	require.NoError(t, err)
	entities := manifest["entities"].([]any)
	entity := entities[0].(map[string]any)
	fields := entity["fields"].([]any)
	field := fields[0].(map[string]any)
	assert.Equal(t, "text", field["type"])
}

func TestApplyResolvedOpsAppendsAtDashIndex(t *testing.T) {
	manifest := sampleManifest()
	ops := []patch.Op{
		{Op: "add", Path: "/entities/0/fields/-", Value: map[string]any{"id": "priority", "type": "string"}},
	}
	err := patch.ApplyResolvedOps(manifest, ops)
	require.NoError(t, err)
	entities := manifest["entities"].([]any)
	entity := entities[0].(map[string]any)
	fields := entity["fields"].([]any)
	require.Len(t, fields, 3)
	last := fields[2].(map[string]any)
	assert.Equal(t, "priority", last["id"])
}

func TestDecodeOpsRejectsUnresolvedSelector(t *testing.T) {
	_, err := patch.DecodeOps([]any{
		map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/0/type", "value": "text"},
	})
	assert.Error(t, err)
}

func TestDecodeOpsRoundTrip(t *testing.T) {
	ops, err := patch.DecodeOps([]any{
		map[string]any{"op": "replace", "path": "/entities/0/fields/0/type", "value": "text"},
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "replace", ops[0].Op)
	assert.Equal(t, "/entities/0/fields/0/type", ops[0].Path)
}

func TestResolvedOpsRFC6902EncodesOperations(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/@[id=title]/type", "value": "text"},
	}
	p := samplePatch(t, manifest, ops)
	result := patch.Preview(manifest, p)
	require.True(t, result.OK)
	rfc := result.ResolvedOpsRFC6902()
	require.Len(t, rfc, 1)
	kind, err := rfc[0].Kind()
	require.NoError(t, err)
	assert.Equal(t, "replace", kind)
}

func TestPreviewDiffSummaryTracksTouchedPaths(t *testing.T) {
	manifest := sampleManifest()
	ops := []any{
		map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/@[id=title]/type", "value": "text"},
	}
	p := samplePatch(t, manifest, ops)
	result := patch.Preview(manifest, p)
	require.True(t, result.OK)
	assert.Equal(t, 1, result.DiffSummary.Counts["replace"])
	require.Len(t, result.DiffSummary.Touched, 1)
}
