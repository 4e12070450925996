// Package tenant carries the ambient org_id isolation boundary through a
// request-scoped context.Context: every store/registry call is scoped to a
// tenant, and the caller establishes that scope before the call (HTTP
// middleware, a CLI flag, a task-local value) rather than the core reaching
// for a global.
package tenant

import "context"

type ctxKey struct{}

// ErrNoOrg is returned by MustFromContext when no org_id was attached.
type ErrNoOrg struct{}

func (ErrNoOrg) Error() string { return "tenant: no org_id in context" }

// WithOrgID returns a child context scoped to orgID.
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, ctxKey{}, orgID)
}

// FromContext returns the org_id attached to ctx, if any.
func FromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// MustFromContext returns the org_id attached to ctx, or ErrNoOrg if absent.
// Store and registry operations call this at their entry point so a missing
// tenant scope surfaces as a typed error instead of silently operating
// cross-tenant.
func MustFromContext(ctx context.Context) (string, error) {
	orgID, ok := FromContext(ctx)
	if !ok {
		return "", ErrNoOrg{}
	}
	return orgID, nil
}

// Default is a conventional org_id for single-tenant use. Nothing applies it
// automatically: a context carries an org only after WithOrgID attaches one.
const Default = "default"
