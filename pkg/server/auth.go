package server

import (
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgrijalva/jwt-go"
	pz "github.com/weberc2/httpeasy"
)

// Authenticator checks `Authorization: Bearer` access tokens against an
// ES512 public key.
type Authenticator struct {
	Key *ecdsa.PublicKey
}

// AuthZ rejects requests without a valid token. The token's subject is
// passed to `h` in the `User` header.
func (a *Authenticator) AuthZ(h pz.Handler) pz.Handler {
	return func(r pz.Request) pz.Response {
		result := a.validate(r)
		if result.Subject == "" {
			return pz.Unauthorized(nil, result)
		}
		if r.Headers == nil {
			r.Headers = http.Header{}
		}
		r.Headers.Set("User", result.Subject)
		return h(r).WithLogging(result)
	}
}

func (a *Authenticator) validate(r pz.Request) *result {
	authorization := r.Headers.Get("Authorization")
	if !strings.HasPrefix(authorization, "Bearer ") {
		return resultErr(
			"invalid access token",
			fmt.Errorf("missing `Bearer` prefix"),
		)
	}

	subject, err := validateAccessToken(authorization[len("Bearer "):], a.Key)
	if err != nil {
		return resultErr("invalid access token", err)
	}

	return resultOK("successfully validated access token", subject)
}

type result struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
	Subject string `json:"subject,omitempty"`
}

func resultErr(message string, err error) *result {
	return &result{Message: message, Error: err.Error()}
}

func resultOK(message string, subject string) *result {
	return &result{Message: message, Subject: subject}
}

func validateAccessToken(token string, key *ecdsa.PublicKey) (string, error) {
	var claims jwt.StandardClaims
	if _, err := jwt.ParseWithClaims(
		token,
		&claims,
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodECDSA); !ok {
				return nil, fmt.Errorf(
					"unexpected signing method `%s`",
					t.Header["alg"],
				)
			}
			return key, nil
		},
	); err != nil {
		return "", err
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("missing `sub` (subject) claim")
	}
	return claims.Subject, nil
}
