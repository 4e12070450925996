// Package registry tracks module lifecycle state — registration, install,
// upgrade, enable/disable, rollback, and version lineage — layered on top of
// internal/store's durable manifest ledger. Registry state itself (the
// module row, version list, icon map) is in-memory and guarded by a mutex,
// keyed per (org_id, module_id) via internal/tenant; only the manifest
// snapshots/head/audit trail are durable.
package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/manifold-platform/manifoldmcp/internal/issue"
	"github.com/manifold-platform/manifoldmcp/internal/store"
	"github.com/manifold-platform/manifoldmcp/internal/tenant"
)

// Module is a registry entry for one installed module.
type Module struct {
	ModuleID      string `json:"module_id"`
	Name          string `json:"name,omitempty"`
	Enabled       bool   `json:"enabled"`
	CurrentHash   string `json:"current_hash"`
	InstalledAt   string `json:"installed_at"`
	UpdatedAt     string `json:"updated_at"`
	Status        string `json:"status"`
	ActiveVersion string `json:"active_version,omitempty"`
	LastError     string `json:"last_error,omitempty"`
	Archived      bool   `json:"archived"`
	IconKey       string `json:"icon_key,omitempty"`
	DisplayOrder  int    `json:"display_order,omitempty"`
}

// Version is one recorded manifest revision installed under a module.
type Version struct {
	VersionID    string         `json:"version_id"`
	VersionNum   int            `json:"version_num"`
	ManifestHash string         `json:"manifest_hash"`
	Manifest     map[string]any `json:"manifest"`
	CreatedAt    string         `json:"created_at"`
	CreatedBy    any            `json:"created_by,omitempty"`
	Notes        string         `json:"notes,omitempty"`
}

// Result is the envelope every mutating Registry method returns.
type Result struct {
	issue.Result
	Module  *Module `json:"module"`
	AuditID *string `json:"audit_id"`
}

func fail(errs issue.List) Result {
	return Result{Result: issue.NewResult(errs, nil)}
}

func tenantFail(err error) Result {
	return fail(issue.List{issue.At("REGISTRY_NO_TENANT", err.Error(), "org_id")})
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

func isHash(v string) bool {
	return len(v) > len("sha256:") && v[:len("sha256:")] == "sha256:"
}

func cloneModule(m *Module) *Module {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// key scopes every in-memory registry entry to its tenant; module ids are
// only unique within an org.
type key struct {
	orgID    string
	moduleID string
}

// Registry is the in-memory module lifecycle tracker.
type Registry struct {
	store *store.Store

	mu       sync.RWMutex
	modules  map[key]*Module
	versions map[key][]*Version
}

// New wraps manifestStore in a fresh, empty Registry.
func New(manifestStore *store.Store) *Registry {
	return &Registry{
		store:    manifestStore,
		modules:  map[key]*Module{},
		versions: map[key][]*Version{},
	}
}

// Get returns the registered module record for the calling tenant, or nil if
// unregistered.
func (r *Registry) Get(ctx context.Context, moduleID string) *Module {
	orgID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return cloneModule(r.modules[key{orgID, moduleID}])
}

// List returns all non-archived modules registered under the calling
// tenant, ordered by display_order then module_id.
func (r *Registry) List(ctx context.Context) []Module {
	orgID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.modules))
	for k := range r.modules {
		if k.orgID == orgID {
			ids = append(ids, k.moduleID)
		}
	}
	sort.Strings(ids)
	out := []Module{}
	for _, id := range ids {
		m := r.modules[key{orgID, id}]
		if m.Archived {
			continue
		}
		out = append(out, *cloneModule(m))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out
}

// ListVersions returns the recorded version lineage for moduleID under the
// calling tenant.
func (r *Registry) ListVersions(ctx context.Context, moduleID string) []Version {
	orgID, ok := tenant.FromContext(ctx)
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.versions[key{orgID, moduleID}]
	out := make([]Version, len(versions))
	for i, v := range versions {
		out[i] = *v
	}
	return out
}

func (r *Registry) nextVersionNum(k key) int {
	highest := 0
	for _, v := range r.versions[k] {
		if v.VersionNum > highest {
			highest = v.VersionNum
		}
	}
	return highest + 1
}

func (r *Registry) createVersion(k key, manifestHash string, manifest map[string]any, createdBy any, notes string) *Version {
	v := &Version{
		VersionID:    uuid.NewString(),
		VersionNum:   r.nextVersionNum(k),
		ManifestHash: manifestHash,
		Manifest:     manifest,
		CreatedAt:    now(),
		CreatedBy:    createdBy,
		Notes:        notes,
	}
	r.versions[k] = append(r.versions[k], v)
	return v
}

type versionLookup struct {
	versionID    string
	versionNum   int
	manifestHash string
}

func (r *Registry) findVersion(k key, lookup versionLookup) *Version {
	for _, v := range r.versions[k] {
		if lookup.versionID != "" && v.VersionID == lookup.versionID {
			return v
		}
		if lookup.versionNum != 0 && v.VersionNum == lookup.versionNum {
			return v
		}
		if lookup.manifestHash != "" && v.ManifestHash == lookup.manifestHash {
			return v
		}
	}
	return nil
}

// Register adds module_id to the registry at its current manifest head,
// scoped to the calling tenant. The module must already have a manifest head
// in the store (created via store.InitModule) before it can be registered.
func (r *Registry) Register(ctx context.Context, moduleID, name string, actor any, reason string) Result {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return tenantFail(err)
	}
	k := key{orgID, moduleID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[k]; exists {
		return fail(issue.List{issue.At("MODULE_ALREADY_REGISTERED", "module already registered", "module_id")})
	}

	head, err := r.store.GetHead(ctx, moduleID)
	if err != nil {
		return fail(issue.List{issue.New("MODULE_INVALID", err.Error())})
	}
	if head == "" {
		return fail(issue.List{issue.At("MODULE_NO_MANIFEST_HEAD", "module has no manifest head", "module_id")})
	}

	ts := now()
	record := &Module{
		ModuleID:    moduleID,
		Name:        name,
		Enabled:     false,
		CurrentHash: head,
		InstalledAt: ts,
		UpdatedAt:   ts,
		Status:      "installed",
	}
	r.modules[k] = record

	auditID, err := r.store.AppendAudit(ctx, moduleID, "register", nil, &head, "", actor, reason)
	if err != nil {
		auditID = uuid.NewString()
	}
	return Result{
		Result:  issue.NewResult(nil, nil),
		Module:  cloneModule(record),
		AuditID: &auditID,
	}
}

// SetEnabled flips module_id's enabled flag for the calling tenant, warning
// (not erroring) when the requested state is already in effect.
func (r *Registry) SetEnabled(ctx context.Context, moduleID string, enabled bool, actor any, reason string) Result {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return tenantFail(err)
	}
	k := key{orgID, moduleID}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.modules[k]
	if !ok {
		return fail(issue.List{issue.At("MODULE_NOT_FOUND", "module not found", "module_id")})
	}

	var warnings issue.List
	if record.Enabled == enabled {
		warnings = append(warnings, issue.At("MODULE_ENABLED_NOOP", "no change", "enabled"))
	}

	record.Enabled = enabled
	record.UpdatedAt = now()

	action := "disable"
	if enabled {
		action = "enable"
	}
	auditID, err := r.store.AppendAudit(ctx, moduleID, action, nil, &record.CurrentHash, "", actor, reason)
	if err != nil {
		auditID = uuid.NewString()
	}
	return Result{
		Result:  issue.NewResult(nil, warnings),
		Module:  cloneModule(record),
		AuditID: &auditID,
	}
}

// SetIcon/ClearIcon attach or remove a cosmetic icon key, analogous to the
// registry's original icon overlay map.
func (r *Registry) SetIcon(ctx context.Context, moduleID, iconKey string) {
	orgID, ok := tenant.FromContext(ctx)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[key{orgID, moduleID}]; ok {
		m.IconKey = iconKey
	}
}

func (r *Registry) ClearIcon(ctx context.Context, moduleID string) {
	orgID, ok := tenant.FromContext(ctx)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[key{orgID, moduleID}]; ok {
		m.IconKey = ""
	}
}

// SetDisplayOrder sets the sort position module_id appears at in List's
// output alongside other installed modules of the calling tenant.
func (r *Registry) SetDisplayOrder(ctx context.Context, moduleID string, order int) {
	orgID, ok := tenant.FromContext(ctx)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.modules[key{orgID, moduleID}]; ok {
		m.DisplayOrder = order
	}
}

// Install registers (if needed) and applies an approved preview as the
// module's first or newest version.
func (r *Registry) Install(ctx context.Context, approved map[string]any) Result {
	return r.apply(ctx, approved, "install", true)
}

// Upgrade applies an approved preview to an already-registered module.
func (r *Registry) Upgrade(ctx context.Context, approved map[string]any) Result {
	return r.apply(ctx, approved, "upgrade", false)
}

func (r *Registry) apply(ctx context.Context, approved map[string]any, action string, autoRegister bool) Result {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return tenantFail(err)
	}

	patchDoc, _ := approved["patch"].(map[string]any)
	if patchDoc == nil {
		return fail(issue.List{issue.At("MODULE_INVALID", "approved preview invalid", "approved")})
	}
	moduleID, ok := patchDoc["target_module_id"].(string)
	if !ok {
		return fail(issue.List{issue.At("MODULE_INVALID", "target_module_id required", "patch.target_module_id")})
	}
	if mode, _ := patchDoc["mode"].(string); mode != "preview" {
		return fail(issue.List{issue.At("MODULE_INVALID", "patch.mode must be preview", "patch.mode")})
	}
	k := key{orgID, moduleID}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.modules[k]
	if !exists && !autoRegister {
		return fail(issue.List{issue.At("MODULE_NOT_FOUND", "module not found", "module_id")})
	}

	if exists && action == "upgrade" {
		record.Status = "upgrading"
	}

	storeResult := r.store.ApplyApprovedPreview(ctx, approved)
	if !storeResult.OK {
		if exists {
			record.Status = "failed"
			if len(storeResult.Errors) > 0 {
				record.LastError = storeResult.Errors[0].Message
			}
			record.UpdatedAt = now()
		}
		return Result{Result: issue.NewResult(storeResult.Errors, nil)}
	}

	toHash := ""
	if storeResult.ToHash != nil {
		toHash = *storeResult.ToHash
	}
	if !isHash(toHash) {
		return fail(issue.List{issue.At("MODULE_INVALID", "invalid to_hash", "to_hash")})
	}

	manifest, err := r.store.GetSnapshot(ctx, moduleID, toHash)
	if err != nil {
		return fail(issue.List{issue.New("MODULE_INVALID", err.Error())})
	}

	ts := now()
	if !exists {
		record = &Module{
			ModuleID:    moduleID,
			Enabled:     true,
			CurrentHash: toHash,
			InstalledAt: ts,
			UpdatedAt:   ts,
			Status:      "installed",
		}
	} else {
		record.CurrentHash = toHash
		record.UpdatedAt = ts
		if action == "install" {
			record.Enabled = true
		}
		record.Status = "installed"
		record.LastError = ""
	}

	reason, _ := patchDoc["reason"].(string)
	version := r.createVersion(k, toHash, manifest, approved["approved_by"], reason)
	record.ActiveVersion = version.VersionID
	r.modules[k] = record

	patchID, _ := patchDoc["patch_id"].(string)
	auditID, err := r.store.AppendAudit(ctx, moduleID, action, storeResult.FromHash, &toHash, patchID, approved["approved_by"], reason)
	if err != nil {
		auditID = uuid.NewString()
	}
	return Result{
		Result:  issue.NewResult(nil, nil),
		Module:  cloneModule(record),
		AuditID: &auditID,
	}
}

// Rollback moves module_id's head (durably, via the store) and its active
// version pointer back to an earlier snapshot, identified by hash, version
// ID, or version number, within the calling tenant.
func (r *Registry) Rollback(ctx context.Context, moduleID, toHash string, actor any, reason string, toVersionID string, toVersionNum int) Result {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return tenantFail(err)
	}
	k := key{orgID, moduleID}

	r.mu.Lock()
	defer r.mu.Unlock()

	record, ok := r.modules[k]
	if !ok {
		return fail(issue.List{issue.At("MODULE_NOT_FOUND", "module not found", "module_id")})
	}

	var targetVersion *Version
	if toVersionID != "" || toVersionNum != 0 {
		targetVersion = r.findVersion(k, versionLookup{versionID: toVersionID, versionNum: toVersionNum})
		if targetVersion == nil {
			return fail(issue.List{issue.At("ROLLBACK_UNKNOWN_VERSION", "version not found", "to_version_id")})
		}
		toHash = targetVersion.ManifestHash
	}
	if !isHash(toHash) {
		return fail(issue.List{issue.At("ROLLBACK_INVALID_HASH", "to_hash must be a manifest hash", "to_hash")})
	}

	storeResult := r.store.Rollback(ctx, moduleID, toHash, actor, reason)
	if !storeResult.OK {
		return Result{Result: issue.NewResult(storeResult.Errors, nil)}
	}

	fromHash := record.CurrentHash
	var warnings issue.List
	if fromHash == toHash {
		warnings = append(warnings, issue.At("MODULE_ALREADY_AT_SNAPSHOT", "module already at requested snapshot", "to_hash"))
	}

	record.CurrentHash = toHash
	record.UpdatedAt = now()
	record.Status = "installed"
	record.LastError = ""
	if targetVersion == nil {
		targetVersion = r.findVersion(k, versionLookup{manifestHash: toHash})
	}
	if targetVersion == nil {
		manifest, err := r.store.GetSnapshot(ctx, moduleID, toHash)
		if err == nil {
			targetVersion = r.createVersion(k, toHash, manifest, actor, reason)
			warnings = append(warnings, issue.At("MODULE_VERSION_CREATED", "created version row for previously unversioned snapshot", "to_hash"))
		}
	}
	if targetVersion != nil {
		record.ActiveVersion = targetVersion.VersionID
	}

	auditID := ""
	if storeResult.AuditID != nil {
		auditID = *storeResult.AuditID
	} else {
		auditID = uuid.NewString()
	}

	return Result{
		Result:  issue.NewResult(nil, warnings),
		Module:  cloneModule(record),
		AuditID: &auditID,
	}
}
