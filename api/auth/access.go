// Package auth guards the dashboard API with Cloudflare Access and an
// optional static bearer token for the CLI.
package auth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

const AccessHeader = "Cf-Access-Jwt-Assertion"

type ctxKey struct{}

// Identity is who a request was authenticated as.
type Identity struct {
	Email  string
	Method string // "access" or "token"
}

// FromContext returns the identity set by the middlewares, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func withIdentity(r *http.Request, id Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKey{}, id))
}

type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AccessValidator checks Cloudflare Access JWTs for one application.
type AccessValidator struct {
	issuer   string
	audience string
	keys     *keySet
}

func NewAccessValidator(teamDomain, audience string) *AccessValidator {
	issuer := "https://" + teamDomain
	return &AccessValidator{
		issuer:   issuer,
		audience: audience,
		keys:     newKeySet(issuer + "/cdn-cgi/access/certs"),
	}
}

func (v *AccessValidator) Validate(ctx context.Context, token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		kid, ok := t.Header["kid"].(string)
		if !ok {
			return nil, fmt.Errorf("token has no kid")
		}
		return v.keys.key(ctx, kid)
	},
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware validates the Access header when present. Requests without it
// fall through to the bearer check.
func (v *AccessValidator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get(AccessHeader)
		if token == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := v.Validate(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusForbidden, "invalid access token")
			return
		}
		next.ServeHTTP(w, withIdentity(r, Identity{Email: claims.Email, Method: "access"}))
	})
}
