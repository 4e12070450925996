// Package store persists manifest snapshots, per-(tenant, module) heads,
// and the audit trail in a sqlite database. The module_versions table is
// created by the migration but nothing writes to it; version lineage lives
// in internal/registry's in-memory state. Every mutation
// returns an issue.Result instead of raising; only programmer errors (bad
// SQL, a closed handle) surface as plain Go errors. Every method derives its
// tenant scope from ctx via internal/tenant rather than a global.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/manifold-platform/manifoldmcp/internal/canon"
	"github.com/manifold-platform/manifoldmcp/internal/issue"
	"github.com/manifold-platform/manifoldmcp/internal/patch"
	"github.com/manifold-platform/manifoldmcp/internal/tenant"
)

// SnapshotMeta is the lightweight listing shape returned by ListSnapshots.
type SnapshotMeta struct {
	ManifestHash string `json:"manifest_hash"`
	CreatedAt    string `json:"created_at"`
	CreatedBy    any    `json:"created_by"`
	Reason       string `json:"reason"`
}

// AuditEntry is a single append-only history row.
type AuditEntry struct {
	AuditID  string  `json:"audit_id"`
	ModuleID string  `json:"module_id"`
	Action   string  `json:"action"`
	PatchID  *string `json:"patch_id"`
	FromHash *string `json:"from_hash"`
	ToHash   *string `json:"to_hash"`
	Actor    any     `json:"actor"`
	Reason   string  `json:"reason"`
	At       string  `json:"at"`
}

// Result is the envelope every mutating Store method returns.
type Result struct {
	issue.Result
	FromHash *string `json:"from_hash"`
	ToHash   *string `json:"to_hash"`
	AuditID  *string `json:"audit_id"`
}

func fail(errs issue.List) Result {
	return Result{Result: issue.NewResult(errs, nil)}
}

func tenantFail(err error) Result {
	return fail(issue.List{issue.At("STORE_NO_TENANT", err.Error(), "org_id")})
}

// Store wraps a sqlite-backed manifest ledger.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and migrates the sqlite database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("db path required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`CREATE TABLE IF NOT EXISTS manifest_snapshots (
			org_id TEXT NOT NULL,
			module_id TEXT NOT NULL,
			manifest_hash TEXT NOT NULL,
			manifest TEXT NOT NULL,
			created_at TEXT NOT NULL,
			created_by TEXT,
			reason TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (org_id, module_id, manifest_hash)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_module_created
			ON manifest_snapshots(org_id, module_id, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS module_head (
			org_id TEXT NOT NULL,
			module_id TEXT NOT NULL,
			manifest_hash TEXT NOT NULL,
			PRIMARY KEY (org_id, module_id)
		);`,
		`CREATE TABLE IF NOT EXISTS module_versions (
			version_id TEXT PRIMARY KEY,
			org_id TEXT NOT NULL,
			module_id TEXT NOT NULL,
			version_num INTEGER NOT NULL CHECK (version_num > 0),
			manifest_hash TEXT NOT NULL,
			created_at TEXT NOT NULL,
			created_by TEXT,
			notes TEXT,
			UNIQUE (org_id, module_id, version_num)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_versions_module ON module_versions(org_id, module_id, version_num DESC);`,
		`CREATE TABLE IF NOT EXISTS module_audit (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			audit_id TEXT NOT NULL UNIQUE,
			org_id TEXT NOT NULL,
			module_id TEXT NOT NULL,
			action TEXT NOT NULL CHECK (action IN (
				'init','apply','rollback','register','install','upgrade','enable','disable'
			)),
			patch_id TEXT,
			from_hash TEXT,
			to_hash TEXT,
			actor TEXT,
			reason TEXT NOT NULL DEFAULT '',
			at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audit_module_seq ON module_audit(org_id, module_id, seq DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func now() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

func marshalNullable(v any) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func unmarshalNullable(ns sql.NullString) (any, error) {
	if !ns.Valid {
		return nil, nil
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(ns.String))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeManifest(raw string) (map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v map[string]any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetHead returns the current manifest hash for module, or "" if the module
// has no recorded head under the calling tenant.
func (s *Store) GetHead(ctx context.Context, moduleID string) (string, error) {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return "", err
	}
	var hash string
	err = s.db.QueryRowContext(ctx,
		`SELECT manifest_hash FROM module_head WHERE org_id = ? AND module_id = ?`,
		orgID, moduleID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return hash, nil
}

// GetSnapshot returns the manifest stored under moduleID/manifestHash for the
// calling tenant.
func (s *Store) GetSnapshot(ctx context.Context, moduleID, manifestHash string) (map[string]any, error) {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}
	var raw string
	err = s.db.QueryRowContext(ctx,
		`SELECT manifest FROM manifest_snapshots WHERE org_id = ? AND module_id = ? AND manifest_hash = ?`,
		orgID, moduleID, manifestHash).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("snapshot not found")
	}
	if err != nil {
		return nil, err
	}
	return decodeManifest(raw)
}

// ListSnapshots returns snapshot metadata for module, newest first.
func (s *Store) ListSnapshots(ctx context.Context, moduleID string) ([]SnapshotMeta, error) {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT manifest_hash, created_at, created_by, reason FROM manifest_snapshots
		 WHERE org_id = ? AND module_id = ? ORDER BY created_at DESC`, orgID, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []SnapshotMeta{}
	for rows.Next() {
		var m SnapshotMeta
		var createdBy sql.NullString
		if err := rows.Scan(&m.ManifestHash, &m.CreatedAt, &createdBy, &m.Reason); err != nil {
			return nil, err
		}
		createdByVal, err := unmarshalNullable(createdBy)
		if err != nil {
			return nil, err
		}
		m.CreatedBy = createdByVal
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListHistory returns the module's audit trail, newest first.
func (s *Store) ListHistory(ctx context.Context, moduleID string) ([]AuditEntry, error) {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT audit_id, module_id, action, patch_id, from_hash, to_hash, actor, reason, at
		 FROM module_audit WHERE org_id = ? AND module_id = ? ORDER BY seq DESC`, orgID, moduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var patchID, fromHash, toHash sql.NullString
		var actor sql.NullString
		if err := rows.Scan(&e.AuditID, &e.ModuleID, &e.Action, &patchID, &fromHash, &toHash, &actor, &e.Reason, &e.At); err != nil {
			return nil, err
		}
		if patchID.Valid {
			e.PatchID = &patchID.String
		}
		if fromHash.Valid {
			e.FromHash = &fromHash.String
		}
		if toHash.Valid {
			e.ToHash = &toHash.String
		}
		actorVal, err := unmarshalNullable(actor)
		if err != nil {
			return nil, err
		}
		e.Actor = actorVal
		out = append(out, e)
	}
	return out, rows.Err()
}

// InitModule stores manifest as the first snapshot of moduleID under the
// calling tenant, returning its content hash.
func (s *Store) InitModule(ctx context.Context, moduleID string, manifest map[string]any, actor any, reason string) (string, error) {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return "", err
	}
	newHash, err := canon.Hash(manifest)
	if err != nil {
		return "", err
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return "", err
	}
	actorJSON, err := marshalNullable(actor)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	createdAt := now()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO manifest_snapshots (org_id, module_id, manifest_hash, manifest, created_at, created_by, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		orgID, moduleID, newHash, string(manifestJSON), createdAt, actorJSON, reason); err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO module_head (org_id, module_id, manifest_hash) VALUES (?, ?, ?)
		 ON CONFLICT(org_id, module_id) DO UPDATE SET manifest_hash = excluded.manifest_hash`,
		orgID, moduleID, newHash); err != nil {
		return "", err
	}

	auditID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO module_audit (audit_id, org_id, module_id, action, patch_id, from_hash, to_hash, actor, reason, at)
		 VALUES (?, ?, ?, 'init', NULL, NULL, ?, ?, ?, ?)`,
		auditID, orgID, moduleID, newHash, actorJSON, reason, createdAt); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return newHash, nil
}

// ApplyApprovedPreview durably commits an approved patch preview within the
// calling tenant: it re-validates the preview/patch envelope, CAS-checks the
// head against patch.target_manifest_hash, applies preview.resolved_ops to a
// copy of the current snapshot, and records the new snapshot/head/audit row
// in one transaction.
func (s *Store) ApplyApprovedPreview(ctx context.Context, approved map[string]any) Result {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return tenantFail(err)
	}
	if approved == nil {
		return fail(issue.List{issue.At("APPLY_INVALID", "approved must be object", "$")})
	}

	patchDoc, _ := approved["patch"].(map[string]any)
	preview, _ := approved["preview"].(map[string]any)
	if patchDoc == nil || preview == nil {
		return fail(issue.List{issue.At("APPLY_INVALID", "patch and preview required", "$")})
	}
	if ok, _ := preview["ok"].(bool); !ok {
		return fail(issue.List{issue.At("APPLY_PREVIEW_NOT_OK", "preview.ok must be true", "preview.ok")})
	}
	if mode, _ := patchDoc["mode"].(string); mode != "preview" {
		return fail(issue.List{issue.At("APPLY_INVALID", "patch.mode must be preview", "patch.mode")})
	}

	moduleID, okModule := patchDoc["target_module_id"].(string)
	fromHash, okFrom := patchDoc["target_manifest_hash"].(string)
	if !okModule || !okFrom {
		return fail(issue.List{issue.At("APPLY_INVALID", "module_id and from_hash required", "patch")})
	}

	head, err := s.GetHead(ctx, moduleID)
	if err != nil {
		return fail(issue.List{issue.New("APPLY_FAILED", err.Error())})
	}
	if head != fromHash {
		return fail(issue.List{issue.At("APPLY_HASH_MISMATCH", "from_hash does not match head", "patch.target_manifest_hash")})
	}

	currentManifest, err := s.GetSnapshot(ctx, moduleID, fromHash)
	if err != nil {
		return fail(issue.List{issue.At("APPLY_UNKNOWN_HASH", "from_hash not found", "patch.target_manifest_hash")})
	}

	rawOps, ok := preview["resolved_ops"].([]any)
	if !ok {
		return fail(issue.List{issue.At("APPLY_INVALID", "resolved_ops must be list", "preview.resolved_ops")})
	}
	ops, err := patch.DecodeOps(rawOps)
	if err != nil {
		return fail(issue.List{issue.At("APPLY_UNRESOLVED_SELECTOR", err.Error(), "preview.resolved_ops")})
	}

	if err := patch.ApplyResolvedOps(currentManifest, ops); err != nil {
		return fail(issue.List{issue.At("APPLY_FAILED", err.Error(), "preview.resolved_ops")})
	}

	toHash, err := canon.Hash(currentManifest)
	if err != nil {
		return fail(issue.List{issue.At("APPLY_MANIFEST_INVALID", err.Error(), "manifest")})
	}

	manifestJSON, err := json.Marshal(currentManifest)
	if err != nil {
		return fail(issue.List{issue.New("APPLY_MANIFEST_INVALID", err.Error())})
	}
	approvedBy := approved["approved_by"]
	actorJSON, err := marshalNullable(approvedBy)
	if err != nil {
		return fail(issue.List{issue.New("APPLY_FAILED", err.Error())})
	}
	reason, _ := patchDoc["reason"].(string)
	patchID, _ := patchDoc["patch_id"].(string)
	approvedAt, _ := approved["approved_at"].(string)
	if approvedAt == "" {
		approvedAt = now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(issue.List{issue.New("APPLY_FAILED", err.Error())})
	}
	defer tx.Rollback()

	createdAt := now()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO manifest_snapshots (org_id, module_id, manifest_hash, manifest, created_at, created_by, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		orgID, moduleID, toHash, string(manifestJSON), createdAt, actorJSON, reason); err != nil {
		return fail(issue.List{issue.New("APPLY_FAILED", err.Error())})
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE module_head SET manifest_hash = ? WHERE org_id = ? AND module_id = ? AND manifest_hash = ?`,
		toHash, orgID, moduleID, fromHash)
	if err != nil {
		return fail(issue.List{issue.New("APPLY_FAILED", err.Error())})
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return fail(issue.List{issue.At("APPLY_HASH_MISMATCH", "head changed concurrently", "patch.target_manifest_hash")})
	}

	auditID := uuid.NewString()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO module_audit (audit_id, org_id, module_id, action, patch_id, from_hash, to_hash, actor, reason, at)
		 VALUES (?, ?, ?, 'apply', ?, ?, ?, ?, ?, ?)`,
		auditID, orgID, moduleID, nullIfEmpty(patchID), fromHash, toHash, actorJSON, reason, approvedAt); err != nil {
		return fail(issue.List{issue.New("APPLY_FAILED", err.Error())})
	}

	if err := tx.Commit(); err != nil {
		return fail(issue.List{issue.New("APPLY_FAILED", err.Error())})
	}

	return Result{
		Result:   issue.NewResult(nil, nil),
		FromHash: &fromHash,
		ToHash:   &toHash,
		AuditID:  &auditID,
	}
}

// Rollback moves module's head back to an existing snapshot hash within the
// calling tenant, recording an audit row. It warns (rather than errors) when
// the module is already at the requested snapshot.
func (s *Store) Rollback(ctx context.Context, moduleID, toHash string, actor any, reason string) Result {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return tenantFail(err)
	}

	var exists int
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM manifest_snapshots WHERE org_id = ? AND module_id = ? AND manifest_hash = ?`,
		orgID, moduleID, toHash).Scan(&exists)
	if err == sql.ErrNoRows {
		return fail(issue.List{issue.At("ROLLBACK_UNKNOWN_HASH", "hash not found", "to_hash")})
	}
	if err != nil {
		return fail(issue.List{issue.New("ROLLBACK_FAILED", err.Error())})
	}

	head, err := s.GetHead(ctx, moduleID)
	if err != nil {
		return fail(issue.List{issue.New("ROLLBACK_FAILED", err.Error())})
	}
	if head == "" {
		return fail(issue.List{issue.At("ROLLBACK_UNKNOWN_MODULE", "module not found", "module_id")})
	}

	var warnings issue.List
	if head == toHash {
		warnings = append(warnings, issue.At("MODULE_ALREADY_AT_SNAPSHOT", "module already at requested snapshot", "to_hash"))
	}

	actorJSON, err := marshalNullable(actor)
	if err != nil {
		return fail(issue.List{issue.New("ROLLBACK_FAILED", err.Error())})
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(issue.List{issue.New("ROLLBACK_FAILED", err.Error())})
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO module_head (org_id, module_id, manifest_hash) VALUES (?, ?, ?)
		 ON CONFLICT(org_id, module_id) DO UPDATE SET manifest_hash = excluded.manifest_hash`,
		orgID, moduleID, toHash); err != nil {
		return fail(issue.List{issue.New("ROLLBACK_FAILED", err.Error())})
	}

	auditID := uuid.NewString()
	at := now()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO module_audit (audit_id, org_id, module_id, action, patch_id, from_hash, to_hash, actor, reason, at)
		 VALUES (?, ?, ?, 'rollback', NULL, ?, ?, ?, ?, ?)`,
		auditID, orgID, moduleID, head, toHash, actorJSON, reason, at); err != nil {
		return fail(issue.List{issue.New("ROLLBACK_FAILED", err.Error())})
	}

	if err := tx.Commit(); err != nil {
		return fail(issue.List{issue.New("ROLLBACK_FAILED", err.Error())})
	}

	return Result{
		Result:   issue.NewResult(nil, warnings),
		FromHash: &head,
		ToHash:   &toHash,
		AuditID:  &auditID,
	}
}

// AppendAudit records a standalone audit row for a lifecycle action that has
// no snapshot/head mutation of its own (register, install, upgrade, enable,
// disable) — the module registry calls this once its own in-memory state
// change (or the underlying ApplyApprovedPreview/Rollback call) has
// succeeded, so every action in the §3 audit-entry enum ends up in the same
// append-only, newest-first trail that ListHistory reads.
func (s *Store) AppendAudit(ctx context.Context, moduleID, action string, fromHash, toHash *string, patchID string, actor any, reason string) (string, error) {
	orgID, err := tenant.MustFromContext(ctx)
	if err != nil {
		return "", err
	}
	actorJSON, err := marshalNullable(actor)
	if err != nil {
		return "", err
	}
	auditID := uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO module_audit (audit_id, org_id, module_id, action, patch_id, from_hash, to_hash, actor, reason, at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		auditID, orgID, moduleID, action, nullIfEmpty(patchID), nullableHashPtr(fromHash), nullableHashPtr(toHash), actorJSON, reason, now())
	if err != nil {
		return "", err
	}
	return auditID, nil
}

func nullableHashPtr(h *string) any {
	if h == nil {
		return nil
	}
	return *h
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
