package tenant

import (
	"context"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/tenantguard/internal/models"
)

type contextKey string

const principalKey contextKey = "principal"

// Principal is the authenticated caller: a user and the tenant it belongs to,
// both loaded at authentication time.
type Principal struct {
	Tenant *models.Tenant
	User   *models.User
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}

func IDFromContext(ctx context.Context) uuid.UUID {
	if p := PrincipalFromContext(ctx); p != nil && p.Tenant != nil {
		return p.Tenant.ID
	}
	return uuid.Nil
}
