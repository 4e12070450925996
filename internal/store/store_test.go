package store_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/canon"
	"github.com/manifold-platform/manifoldmcp/internal/patch"
	"github.com/manifold-platform/manifoldmcp/internal/store"
	"github.com/manifold-platform/manifoldmcp/internal/tenant"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifold.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testCtx(orgID string) context.Context {
	return tenant.WithOrgID(context.Background(), orgID)
}

func sampleManifest() map[string]any {
	return map[string]any{
		"module": map[string]any{"id": "job_management"},
		"entities": []any{
			map[string]any{
				"id": "entity.job",
				"fields": []any{
					map[string]any{"id": "title", "type": "string"},
				},
			},
		},
	}
}

func TestInitModuleSetsHead(t *testing.T) {
	s := openTestStore(t)
	ctx := testCtx("org1")

	hash, err := s.InitModule(ctx, "job_management", sampleManifest(), map[string]any{"user": "alice"}, "init")
	require.NoError(t, err)
	assert.NotEmpty(t, hash)

	head, err := s.GetHead(ctx, "job_management")
	require.NoError(t, err)
	assert.Equal(t, hash, head)

	snap, err := s.GetSnapshot(ctx, "job_management", hash)
	require.NoError(t, err)
	assert.Equal(t, "job_management", snap["module"].(map[string]any)["id"])

	history, err := s.ListHistory(ctx, "job_management")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "init", history[0].Action)
}

func TestGetHeadUnknownModuleReturnsEmpty(t *testing.T) {
	s := openTestStore(t)
	head, err := s.GetHead(testCtx("org1"), "nonexistent")
	require.NoError(t, err)
	assert.Empty(t, head)
}

func TestGetHeadRequiresTenant(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetHead(context.Background(), "job_management")
	assert.Error(t, err)
}

func TestTenantsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	manifest := sampleManifest()

	hashOrg1, err := s.InitModule(testCtx("org1"), "job_management", manifest, nil, "init")
	require.NoError(t, err)

	headOrg2, err := s.GetHead(testCtx("org2"), "job_management")
	require.NoError(t, err)
	assert.Empty(t, headOrg2, "org2 must not see org1's module head")

	headOrg1, err := s.GetHead(testCtx("org1"), "job_management")
	require.NoError(t, err)
	assert.Equal(t, hashOrg1, headOrg1)
}

func TestApplyApprovedPreviewCommitsAndAdvancesHead(t *testing.T) {
	s := openTestStore(t)
	ctx := testCtx("org1")
	manifest := sampleManifest()

	fromHash, err := s.InitModule(ctx, "job_management", manifest, nil, "init")
	require.NoError(t, err)

	previewResult := patch.Preview(manifest, map[string]any{
		"patch_id": "p1", "target_module_id": "job_management",
		"target_manifest_hash": fromHash, "mode": "preview", "reason": "rename field",
		"operations": []any{
			map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/@[id=title]/type", "value": "text"},
		},
	})
	require.True(t, previewResult.OK)

	resolvedOps := make([]any, 0, len(previewResult.ResolvedOps))
	for _, op := range previewResult.ResolvedOps {
		entry := map[string]any{"op": op.Op}
		if op.Path != "" {
			entry["path"] = op.Path
		}
		if op.From != "" {
			entry["from"] = op.From
		}
		if op.Value != nil {
			entry["value"] = op.Value
		}
		resolvedOps = append(resolvedOps, entry)
	}

	approved := map[string]any{
		"patch": map[string]any{
			"patch_id": "p1", "target_module_id": "job_management",
			"target_manifest_hash": fromHash, "mode": "preview", "reason": "rename field",
		},
		"preview":     map[string]any{"ok": true, "resolved_ops": resolvedOps},
		"approved_by": map[string]any{"user": "bob"},
		"approved_at": "2026-01-01T00:00:00Z",
	}

	result := s.ApplyApprovedPreview(ctx, approved)
	require.True(t, result.OK)
	require.NotNil(t, result.ToHash)
	assert.NotEqual(t, fromHash, *result.ToHash)

	head, err := s.GetHead(ctx, "job_management")
	require.NoError(t, err)
	assert.Equal(t, *result.ToHash, head)

	updated, err := s.GetSnapshot(ctx, "job_management", *result.ToHash)
	require.NoError(t, err)
	entities := updated["entities"].([]any)
	field := entities[0].(map[string]any)["fields"].([]any)[0].(map[string]any)
	assert.Equal(t, "text", field["type"])
}

func TestApplyApprovedPreviewHashMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := testCtx("org1")
	manifest := sampleManifest()
	_, err := s.InitModule(ctx, "job_management", manifest, nil, "init")
	require.NoError(t, err)

	approved := map[string]any{
		"patch": map[string]any{
			"patch_id": "p1", "target_module_id": "job_management",
			"target_manifest_hash": "sha256:stale", "mode": "preview", "reason": "x",
		},
		"preview": map[string]any{"ok": true, "resolved_ops": []any{}},
	}
	result := s.ApplyApprovedPreview(ctx, approved)
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "APPLY_HASH_MISMATCH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRollbackToCurrentHeadWarns(t *testing.T) {
	s := openTestStore(t)
	ctx := testCtx("org1")
	manifest := sampleManifest()
	hash, err := s.InitModule(ctx, "job_management", manifest, nil, "init")
	require.NoError(t, err)

	result := s.Rollback(ctx, "job_management", hash, nil, "noop rollback")
	require.True(t, result.OK)
	found := false
	for _, w := range result.Warnings {
		if w.Code == "MODULE_ALREADY_AT_SNAPSHOT" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRollbackUnknownHash(t *testing.T) {
	s := openTestStore(t)
	ctx := testCtx("org1")
	_, err := s.InitModule(ctx, "job_management", sampleManifest(), nil, "init")
	require.NoError(t, err)

	result := s.Rollback(ctx, "job_management", "sha256:doesnotexist", nil, "x")
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "ROLLBACK_UNKNOWN_HASH" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestListSnapshotsOrderedNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := testCtx("org1")
	manifest := sampleManifest()
	_, err := s.InitModule(ctx, "job_management", manifest, nil, "init")
	require.NoError(t, err)

	snapshots, err := s.ListSnapshots(ctx, "job_management")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	hash, hashErr := canon.Hash(manifest)
	require.NoError(t, hashErr)
	assert.Equal(t, hash, snapshots[0].ManifestHash)
}
