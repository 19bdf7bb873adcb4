package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"time"

	"github.com/dgrijalva/jwt-go"
)

// GenerateKeyPair writes a new P-521 private key followed by its public key
// to `w`, both PEM-encoded. The private key signs tokens with `NewToken`;
// the public key goes into the server's configuration.
func GenerateKeyPair(w io.Writer) error {
	key, err := ecdsa.GenerateKey(elliptic.P521(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generating ecdsa key: %w", err)
	}

	data, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("x509 marshaling ecdsa private key: %w", err)
	}

	if err := pem.Encode(
		w,
		&pem.Block{Type: "PRIVATE KEY", Bytes: data},
	); err != nil {
		return fmt.Errorf("encoding private key as pem: %w", err)
	}

	data, err = x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return fmt.Errorf("x509 marshaling ecdsa public key: %w", err)
	}

	if err := pem.Encode(
		w,
		&pem.Block{Type: "PUBLIC KEY", Bytes: data},
	); err != nil {
		return fmt.Errorf("encoding public key as pem: %w", err)
	}
	return nil
}

func ParsePrivateKey(data []byte) (*ecdsa.PrivateKey, error) {
	key, err := jwt.ParseECPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing ecdsa private key: %w", err)
	}
	return key, nil
}

func ParsePublicKey(data []byte) (*ecdsa.PublicKey, error) {
	key, err := jwt.ParseECPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing ecdsa public key: %w", err)
	}
	return key, nil
}

// NewToken signs an ES512 access token for `subject` that expires `ttl`
// after `now`.
func NewToken(
	key *ecdsa.PrivateKey,
	subject string,
	now time.Time,
	ttl time.Duration,
) (string, error) {
	token, err := jwt.NewWithClaims(
		jwt.SigningMethodES512,
		jwt.StandardClaims{
			Subject:   subject,
			IssuedAt:  now.Unix(),
			NotBefore: now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing access token: %w", err)
	}
	return token, nil
}
