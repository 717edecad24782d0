package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/Keksclan/linkSquirrel/contextx"
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims issued to creators.
type Claims struct {
	Username string   `json:"username"`
	Roles    []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Actor converts the claims to the request actor.
func (c *Claims) Actor() contextx.Actor {
	return contextx.Actor{
		Subject:  c.Subject,
		Username: c.Username,
		Admin:    slices.Contains(c.Roles, "admin"),
	}
}

// JWT signs and verifies HS256 creator tokens.
type JWT struct {
	secret []byte
	issuer string
}

// NewJWT returns a JWT bound to secret. A non-empty issuer is written on
// Sign and required on Verify.
func NewJWT(secret, issuer string) *JWT {
	return &JWT{secret: []byte(secret), issuer: issuer}
}

// Sign issues a token for username valid for ttl.
func (j *JWT) Sign(subject, username string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Username: username,
		Roles:    roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

// Verify parses and validates token.
func (j *JWT) Verify(token string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.Username == "" {
		return nil, fmt.Errorf("%w: missing subject or username", ErrInvalidToken)
	}
	return claims, nil
}
