package intertoken

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates internal tokens on the receiving side of a call.
// It is the other half of the Issuer contract: every trusted service holds
// the shared public key and can check any token minted in the mesh.
type Verifier struct {
	pub    *rsa.PublicKey
	leeway time.Duration
}

// NewVerifier loads the RSA public key from PEM bytes.
func NewVerifier(pemPub []byte) (*Verifier, error) {
	pub, err := parsePublicKey(pemPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSigningKey, err)
	}
	return &Verifier{pub: pub, leeway: 10 * time.Second}, nil
}

// Verify checks the signature and expiry of a token and returns its claims.
// Failures map onto the package sentinels so callers can branch on cause:
// ErrExpired, ErrInvalidSignature, or ErrMalformed.
func (v *Verifier) Verify(tokenStr string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(v.leeway),
	)

	claims := &Claims{}
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.pub, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Claims{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Claims{}, ErrInvalidSignature
		default:
			return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
	}

	if !token.Valid {
		return Claims{}, ErrInvalidSignature
	}
	return *claims, nil
}

func parsePublicKey(pemPub []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(pemPub)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM for RSA public key")
	}

	switch block.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(block.Bytes)
	case "PUBLIC KEY":
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKIX: %w", err)
		}
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA public key")
		}
		return rsaPub, nil
	default:
		return nil, fmt.Errorf("unsupported PEM type %q", block.Type)
	}
}
