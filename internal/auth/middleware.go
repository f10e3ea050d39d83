package auth

import (
	"context"
	"net/http"
)

type principalKey struct{}

// RequireUser guards signed-in-only routes. A session that cannot be
// loaded yet gets a neutral 503 with no navigation; a missing principal is
// sent back to the landing page and nothing is rendered; otherwise the
// principal rides along in the request context. Evaluated on every request,
// so a sign-out takes effect on the next hit to a protected route.
func (g *Gateway) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := g.store.Get(r, sessionName)
		if err != nil {
			http.Error(w, "Session unavailable", http.StatusServiceUnavailable)
			return
		}

		principal, ok := principalFromSession(session)
		if !ok {
			http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// WithPrincipal returns a context carrying p, the way RequireUser does.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal RequireUser stored, if any.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok
}
