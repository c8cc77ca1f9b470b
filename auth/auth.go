package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

// PrincipalKey is the request-local key the auth middleware stores the
// resolved principal under.
const PrincipalKey = "principal"

// Principal is the authenticated caller identity.
type Principal struct {
	Subject string
	Role    string
}

// Authenticator resolves a bearer credential to a principal. Token issuing
// lives outside this service; only validation happens here.
type Authenticator interface {
	CurrentUser(credential string) (Principal, error)
}

type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

func (a *JWTAuthenticator) CurrentUser(credential string) (Principal, error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, ErrUnauthorized
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, ErrUnauthorized
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return Principal{}, ErrUnauthorized
	}
	role, _ := claims["role"].(string)
	return Principal{Subject: sub, Role: role}, nil
}

// StaticAuthenticator maps fixed credentials to principals; used in tests.
type StaticAuthenticator map[string]Principal

func (s StaticAuthenticator) CurrentUser(credential string) (Principal, error) {
	p, ok := s[credential]
	if !ok {
		return Principal{}, ErrUnauthorized
	}
	return p, nil
}
