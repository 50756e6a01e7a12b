// pkg/middleware/identity.go
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tenantgate/pkg/config"
	"tenantgate/pkg/identity"
	"tenantgate/pkg/introspect"
)

type ctxPrincipalKey struct{}

// Identity is the request-path core: bearer token in, identity header out.
// Validate -> Extract -> BuildHeader, synchronously, with no suspension
// points beyond the introspection call. Every failure rejects the request
// with a generic body; group names, prefixes and attribute names never
// appear in responses.
func Identity(cfg config.Config, v introspect.Validator, log *zap.SugaredLogger) func(http.Handler) http.Handler {
	pol := identity.BypassPolicy{
		AdminGroup:         cfg.AdminGroup,
		Capability:         cfg.Capability,
		DuplicateRootOrgID: cfg.DuplicateRootOrgID,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Bypass auth for health and metrics endpoints
			if r.URL.Path == "/healthz" || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}

			authz := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])

			ctx, cancel := context.WithTimeout(r.Context(), cfg.IntrospectionTimeout)
			defer cancel()
			p, err := v.Validate(ctx, raw)
			if err != nil {
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			tid := identity.Extract(p.Groups, cfg.Mapping)
			hdr, err := identity.BuildHeader(p, tid, pol)
			if err != nil {
				if errors.Is(err, identity.ErrMissingTenantAttribute) {
					// Username, not token, for operator diagnosis.
					log.Warnw("tenant attribute missing", "username", p.Username)
				}
				http.Error(w, "authentication failed", http.StatusUnauthorized)
				return
			}

			// Drop any inbound copy of the identity header before setting our
			// own; a client-supplied value must never reach the backend.
			r.Header.Del(cfg.IdentityHeader)
			r.Header.Set(cfg.IdentityHeader, hdr)
			if cfg.StripAuthorization {
				r.Header.Del("Authorization")
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// WithPrincipal stores the validated principal in context.
func WithPrincipal(ctx context.Context, p identity.Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey{}, p)
}

// PrincipalFrom extracts the validated principal, if any.
func PrincipalFrom(ctx context.Context) (identity.Principal, bool) {
	if v := ctx.Value(ctxPrincipalKey{}); v != nil {
		if p, ok := v.(identity.Principal); ok {
			return p, true
		}
	}
	return identity.Principal{}, false
}
