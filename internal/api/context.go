package api

import (
	"context"

	"github.com/homzhub/ticket-engine/internal/models"
)

type contextKey string

const principalContextKey contextKey = "principal"

// Principal is the authenticated caller: either a service-to-service API
// client or a portal user identified by a JWT
type Principal struct {
	Kind        string // "api_client" or "user"
	Subject     string // client name or user id
	UserID      string
	Permissions []string
}

// HasPermission checks the principal's granted permissions, honoring
// wildcards
func (p *Principal) HasPermission(required string) bool {
	if p == nil {
		return false
	}
	return models.PermissionMatch(p.Permissions, required)
}

// PrincipalFromContext extracts the authenticated principal from context
func PrincipalFromContext(ctx context.Context) *Principal {
	p, ok := ctx.Value(principalContextKey).(*Principal)
	if !ok {
		return nil
	}
	return p
}

// ContextWithPrincipal adds the authenticated principal to context
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey, p)
}
