package privacy

import (
	"context"
	"slices"
)

// Viewer is the authenticated caller of an operation.
type Viewer interface {
	GetID() string
	GetRoles() []string
	// GetTenantID returns the tenant of the viewer, or "" without
	// multi-tenancy.
	GetTenantID() string
}

type viewerCtxKey struct{}

// WithViewer returns a context carrying viewer.
func WithViewer(ctx context.Context, viewer Viewer) context.Context {
	return context.WithValue(ctx, viewerCtxKey{}, viewer)
}

// ViewerFromContext returns the viewer of ctx, or nil.
func ViewerFromContext(ctx context.Context) Viewer {
	v, _ := ctx.Value(viewerCtxKey{}).(Viewer)
	return v
}

// SimpleViewer is a plain Viewer.
type SimpleViewer struct {
	UserID   string
	Roles    []string
	TenantID string
}

func (v *SimpleViewer) GetID() string       { return v.UserID }
func (v *SimpleViewer) GetRoles() []string  { return v.Roles }
func (v *SimpleViewer) GetTenantID() string { return v.TenantID }

// DenyIfNoViewer denies operations whose context carries no viewer.
func DenyIfNoViewer() Rule {
	return ContextRule(func(ctx context.Context) error {
		if ViewerFromContext(ctx) == nil {
			return Denyf("privacy: viewer required")
		}
		return Skip
	})
}

// HasRole allows operations of viewers holding role.
func HasRole(role string) Rule {
	return HasAnyRole(role)
}

// HasAnyRole allows operations of viewers holding one of roles.
//
//	privacy.Policy{
//		privacy.DenyIfNoViewer(),
//		privacy.HasAnyRole("admin", "loader"),
//		privacy.AlwaysDenyRule(),
//	}
func HasAnyRole(roles ...string) Rule {
	return ContextRule(func(ctx context.Context) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil {
			return Skip
		}
		for _, role := range roles {
			if slices.Contains(viewer.GetRoles(), role) {
				return Allow
			}
		}
		return Skip
	})
}

// TenantRule isolates tenants by database: a viewer with a tenant may only
// reach the database named after it. Viewers without a tenant are skipped.
func TenantRule() Rule {
	return RuleFunc(func(ctx context.Context, op Operation) error {
		viewer := ViewerFromContext(ctx)
		if viewer == nil || viewer.GetTenantID() == "" {
			return Skip
		}
		if viewer.GetTenantID() != op.Database {
			return Denyf("privacy: tenant %q cannot access database %q", viewer.GetTenantID(), op.Database)
		}
		return Skip
	})
}
