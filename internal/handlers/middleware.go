package handlers

import (
	"context"
	"net/http"

	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/types"
)

// Resolver turns a bearer token into the account it belongs to.
type Resolver interface {
	Resolve(ctx context.Context, token string) (types.User, error)
}

// Authenticator holds the bearer-token middlewares.
type Authenticator struct {
	resolver Resolver
	log      logging.Logger
}

func NewAuthenticator(resolver Resolver, log logging.Logger) *Authenticator {
	return &Authenticator{resolver: resolver, log: log}
}

// Require rejects requests without a valid bearer token and stores the
// caller in the request context.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			renderError(w, r, a.log, err)
			return
		}
		user, err := a.resolver.Resolve(r.Context(), token)
		if err != nil {
			renderError(w, r, a.log, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// Optional lets requests without an Authorization header through
// anonymously. A header that is present must still be valid.
func (a *Authenticator) Optional(next http.Handler) http.Handler {
	required := a.Require(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		required.ServeHTTP(w, r)
	})
}
