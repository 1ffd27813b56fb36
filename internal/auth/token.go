// Package auth decides whether an upload request may proceed.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"waveconv/entity"
)

// Authorizer -.
type Authorizer interface {
	Authorize(r *http.Request) entity.AuthorizationDecision
}

// TokenAuthorizer accepts requests bearing a static token. With an empty
// token every request is allowed.
type TokenAuthorizer struct {
	token []byte
}

var _ Authorizer = (*TokenAuthorizer)(nil)

func NewTokenAuthorizer(token string) *TokenAuthorizer {
	return &TokenAuthorizer{token: []byte(token)}
}

func (a *TokenAuthorizer) Authorize(r *http.Request) entity.AuthorizationDecision {
	if len(a.token) == 0 {
		return entity.Allowed
	}

	h := r.Header.Get("Authorization")
	if h == "" {
		return entity.Unauthenticated
	}
	scheme, got, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return entity.Unauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(got)), a.token) != 1 {
		return entity.Forbidden
	}
	return entity.Allowed
}
