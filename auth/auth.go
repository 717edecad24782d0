// Package auth verifies caller credentials and turns them into a
// [contextx.Actor]. Creators present an HS256 JWT; operators present the
// static admin token. Both arrive as a bearer token.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/Keksclan/linkSquirrel/contextx"
	"google.golang.org/grpc/metadata"
)

var (
	ErrMissingToken = errors.New("missing authentication token")
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// AuthFunc authenticates a gRPC request. It receives the request context,
// the full method name, and the incoming metadata. On success it returns a
// context carrying the caller's Actor.
type AuthFunc func(ctx context.Context, fullMethod string, md metadata.MD) (context.Context, error)

// Authenticator checks bearer tokens against the admin token and the JWT
// verifier. Either may be absent.
type Authenticator struct {
	jwt        *JWT
	adminToken []byte
}

// New returns an Authenticator. An empty secret disables creator tokens and
// an empty adminToken disables admin access.
func New(secret, issuer, adminToken string) *Authenticator {
	a := &Authenticator{}
	if secret != "" {
		a.jwt = NewJWT(secret, issuer)
	}
	if adminToken != "" {
		a.adminToken = []byte(adminToken)
	}
	return a
}

// Authenticate resolves a raw bearer token to an Actor.
func (a *Authenticator) Authenticate(token string) (contextx.Actor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return contextx.Actor{}, ErrMissingToken
	}
	if len(a.adminToken) > 0 && subtle.ConstantTimeCompare([]byte(token), a.adminToken) == 1 {
		return contextx.Actor{Subject: "admin", Admin: true}, nil
	}
	if a.jwt == nil {
		return contextx.Actor{}, ErrInvalidToken
	}
	claims, err := a.jwt.Verify(token)
	if err != nil {
		return contextx.Actor{}, err
	}
	return claims.Actor(), nil
}

// GRPC adapts the Authenticator to an AuthFunc reading the "authorization"
// metadata key.
func (a *Authenticator) GRPC() AuthFunc {
	return func(ctx context.Context, _ string, md metadata.MD) (context.Context, error) {
		var raw string
		if vals := md.Get("authorization"); len(vals) > 0 {
			raw = vals[0]
		}
		actor, err := a.Authenticate(bearer(raw))
		if err != nil {
			return ctx, err
		}
		return contextx.WithActor(ctx, actor), nil
	}
}

// FromRequest authenticates an HTTP request. The "token" cookie wins over
// the Authorization header.
func (a *Authenticator) FromRequest(r *http.Request) (contextx.Actor, error) {
	return a.Authenticate(TokenFromRequest(r))
}

// TokenFromRequest extracts the raw token from r, or "" when none is sent.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("token"); err == nil && c.Value != "" {
		return c.Value
	}
	return bearer(r.Header.Get("Authorization"))
}

func bearer(h string) string {
	const prefix = "bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
