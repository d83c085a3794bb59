package httputil

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/timottowitz/obelisk-backend/pkg/errors"
	"github.com/timottowitz/obelisk-backend/pkg/tenant"
)

// SessionClaims are the claims the identity provider puts in a session
// token. The org ID is what connects a request to a tenant schema.
type SessionClaims struct {
	OrgID   string `json:"org_id"`
	OrgSlug string `json:"org_slug"`
	OrgRole string `json:"org_role"`
	jwt.RegisteredClaims
}

// TenantInfo is what a TenantResolver returns for an organization ID.
type TenantInfo struct {
	ID         string
	OrgID      string
	Slug       string
	SchemaName string
}

// TenantResolver resolves an identity-provider organization ID to a tenant
// registry row. Implemented by the provisioning tenant repository.
type TenantResolver interface {
	ResolveByOrgID(ctx context.Context, orgID string) (*TenantInfo, error)
}

// SessionAuth verifies the bearer session token, resolves the tenant for
// the token's organization, and installs both on the request context.
// Requests without a valid token or a provisioned tenant never reach the
// wrapped handler.
func SessionAuth(secret string, resolver TenantResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				Error(w, errors.Unauthorized("missing bearer token"))
				return
			}

			claims := &SessionClaims{}
			_, err := jwt.ParseWithClaims(strings.TrimPrefix(auth, "Bearer "), claims,
				func(t *jwt.Token) (interface{}, error) {
					if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
						return nil, errors.Unauthorized("unexpected signing method")
					}
					return []byte(secret), nil
				})
			if err != nil {
				Error(w, errors.Unauthorized("invalid session token"))
				return
			}

			if claims.OrgID == "" {
				Error(w, errors.Unauthorized("session token has no organization"))
				return
			}

			info, err := resolver.ResolveByOrgID(r.Context(), claims.OrgID)
			if err != nil {
				Error(w, errors.Unauthorized("organization is not provisioned"))
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.Subject)
			ctx = tenant.WithTenantContext(ctx, info.ID, info.OrgID, info.Slug, info.SchemaName)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
