package registry_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manifold-platform/manifoldmcp/internal/patch"
	"github.com/manifold-platform/manifoldmcp/internal/registry"
	"github.com/manifold-platform/manifoldmcp/internal/store"
	"github.com/manifold-platform/manifoldmcp/internal/tenant"
)

func newTestSetup(t *testing.T) (*store.Store, *registry.Registry) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "manifold.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, registry.New(s)
}

func testCtx() context.Context {
	return tenant.WithOrgID(context.Background(), "org1")
}

func sampleManifest() map[string]any {
	return map[string]any{
		"module": map[string]any{"id": "job_management"},
		"entities": []any{
			map[string]any{
				"id":     "entity.job",
				"fields": []any{map[string]any{"id": "title", "type": "string"}},
			},
		},
	}
}

func TestRegisterRequiresManifestHead(t *testing.T) {
	_, reg := newTestSetup(t)
	result := reg.Register(testCtx(), "job_management", "Job Management", nil, "register")
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "MODULE_NO_MANIFEST_HEAD" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRegisterSucceedsAfterInit(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	_, err := s.InitModule(ctx, "job_management", sampleManifest(), nil, "init")
	require.NoError(t, err)

	result := reg.Register(ctx, "job_management", "Job Management", nil, "register")
	require.True(t, result.OK)
	require.NotNil(t, result.Module)
	assert.Equal(t, "job_management", result.Module.ModuleID)
	assert.False(t, result.Module.Enabled)
}

func TestRegisterTwiceFails(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	_, err := s.InitModule(ctx, "job_management", sampleManifest(), nil, "init")
	require.NoError(t, err)
	reg.Register(ctx, "job_management", "Job Management", nil, "register")

	result := reg.Register(ctx, "job_management", "Job Management", nil, "register")
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "MODULE_ALREADY_REGISTERED" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestSetEnabledNoopWarns(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	_, err := s.InitModule(ctx, "job_management", sampleManifest(), nil, "init")
	require.NoError(t, err)
	reg.Register(ctx, "job_management", "Job Management", nil, "register")

	result := reg.SetEnabled(ctx, "job_management", false, nil, "noop")
	require.True(t, result.OK)
	found := false
	for _, w := range result.Warnings {
		if w.Code == "MODULE_ENABLED_NOOP" {
			found = true
		}
	}
	assert.True(t, found)
}

func approvedPreviewFor(t *testing.T, manifest map[string]any, fromHash string, ops []any, reason string) map[string]any {
	t.Helper()
	previewResult := patch.Preview(manifest, map[string]any{
		"patch_id": "p1", "target_module_id": "job_management",
		"target_manifest_hash": fromHash, "mode": "preview", "reason": reason,
		"operations": ops,
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

	return map[string]any{
		"patch": map[string]any{
			"patch_id": "p1", "target_module_id": "job_management",
			"target_manifest_hash": fromHash, "mode": "preview", "reason": reason,
		},
		"preview":     map[string]any{"ok": true, "resolved_ops": resolvedOps},
		"approved_by": map[string]any{"user": "bob"},
	}
}

func TestInstallAutoRegistersAndCreatesVersion(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	manifest := sampleManifest()
	fromHash, err := s.InitModule(ctx, "job_management", manifest, nil, "init")
	require.NoError(t, err)

	approved := approvedPreviewFor(t, manifest, fromHash, []any{
		map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/@[id=title]/type", "value": "text"},
	}, "initial install")

	result := reg.Install(ctx, approved)
	require.True(t, result.OK)
	require.NotNil(t, result.Module)
	assert.True(t, result.Module.Enabled)
	assert.NotEmpty(t, result.Module.ActiveVersion)

	versions := reg.ListVersions(ctx, "job_management")
	require.Len(t, versions, 1)
	assert.Equal(t, 1, versions[0].VersionNum)
}

func TestUpgradeRequiresExistingModule(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	manifest := sampleManifest()
	fromHash, err := s.InitModule(ctx, "job_management", manifest, nil, "init")
	require.NoError(t, err)

	approved := approvedPreviewFor(t, manifest, fromHash, []any{
		map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/@[id=title]/type", "value": "text"},
	}, "upgrade before install")

	result := reg.Upgrade(ctx, approved)
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "MODULE_NOT_FOUND" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRollbackByHashUpdatesActiveVersion(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	manifest := sampleManifest()
	v1Hash, err := s.InitModule(ctx, "job_management", manifest, nil, "init")
	require.NoError(t, err)

	installApproved := approvedPreviewFor(t, manifest, v1Hash, []any{
		map[string]any{"op": "replace", "path": "/entities/@[id=entity.job]/fields/@[id=title]/type", "value": "text"},
	}, "install")
	installResult := reg.Install(ctx, installApproved)
	require.True(t, installResult.OK)

	updatedManifest, err := s.GetSnapshot(ctx, "job_management", installResult.Module.CurrentHash)
	require.NoError(t, err)
	v2Hash := installResult.Module.CurrentHash

	upgradeApproved := approvedPreviewFor(t, updatedManifest, v2Hash, []any{
		map[string]any{"op": "add_field", "entity_id": "entity.job", "after_field_id": "title",
			"field": map[string]any{"id": "priority", "type": "string"}},
	}, "upgrade")
	upgradeResult := reg.Upgrade(ctx, upgradeApproved)
	require.True(t, upgradeResult.OK)

	rollbackResult := reg.Rollback(ctx, "job_management", v2Hash, nil, "revert bad upgrade", "", 0)
	require.True(t, rollbackResult.OK)
	assert.Equal(t, v2Hash, rollbackResult.Module.CurrentHash)
	versions := reg.ListVersions(ctx, "job_management")
	require.Len(t, versions, 2)
	assert.Equal(t, versions[0].VersionID, rollbackResult.Module.ActiveVersion)
}

func TestListOrdersByDisplayOrderThenModuleID(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	_, err := s.InitModule(ctx, "job_management", sampleManifest(), nil, "init")
	require.NoError(t, err)
	billingManifest := map[string]any{"module": map[string]any{"id": "billing"}}
	_, err = s.InitModule(ctx, "billing", billingManifest, nil, "init")
	require.NoError(t, err)

	reg.Register(ctx, "job_management", "Job Management", nil, "register")
	reg.Register(ctx, "billing", "Billing", nil, "register")
	reg.SetDisplayOrder(ctx, "billing", 0)
	reg.SetDisplayOrder(ctx, "job_management", 1)

	modules := reg.List(ctx)
	require.Len(t, modules, 2)
	assert.Equal(t, "billing", modules[0].ModuleID)
	assert.Equal(t, "job_management", modules[1].ModuleID)
}

func TestSetIconRoundTrips(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	_, err := s.InitModule(ctx, "job_management", sampleManifest(), nil, "init")
	require.NoError(t, err)
	reg.Register(ctx, "job_management", "Job Management", nil, "register")

	reg.SetIcon(ctx, "job_management", "briefcase")
	assert.Equal(t, "briefcase", reg.Get(ctx, "job_management").IconKey)

	reg.ClearIcon(ctx, "job_management")
	assert.Empty(t, reg.Get(ctx, "job_management").IconKey)
}

func TestRollbackUnknownModule(t *testing.T) {
	_, reg := newTestSetup(t)
	result := reg.Rollback(testCtx(), "nonexistent", "sha256:x", nil, "x", "", 0)
	assert.False(t, result.OK)
	found := false
	for _, e := range result.Errors {
		if e.Code == "MODULE_NOT_FOUND" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestLifecycleActionsAppendDurableAudit(t *testing.T) {
	s, reg := newTestSetup(t)
	ctx := testCtx()
	_, err := s.InitModule(ctx, "job_management", sampleManifest(), nil, "init")
	require.NoError(t, err)

	registerResult := reg.Register(ctx, "job_management", "Job Management", nil, "register")
	require.True(t, registerResult.OK)

	enableResult := reg.SetEnabled(ctx, "job_management", true, nil, "turn on")
	require.True(t, enableResult.OK)

	history, err := s.ListHistory(ctx, "job_management")
	require.NoError(t, err)

	actions := make([]string, 0, len(history))
	for _, e := range history {
		actions = append(actions, e.Action)
	}
	assert.Contains(t, actions, "register")
	assert.Contains(t, actions, "enable")
	// newest first
	assert.Equal(t, "enable", history[0].Action)
}

func TestModulesIsolatedByTenant(t *testing.T) {
	s, reg := newTestSetup(t)
	org1 := tenant.WithOrgID(context.Background(), "org1")
	org2 := tenant.WithOrgID(context.Background(), "org2")
	_, err := s.InitModule(org1, "job_management", sampleManifest(), nil, "init")
	require.NoError(t, err)

	reg.Register(org1, "job_management", "Job Management", nil, "register")

	assert.NotNil(t, reg.Get(org1, "job_management"))
	assert.Nil(t, reg.Get(org2, "job_management"))
	assert.Empty(t, reg.List(org2))
}
