package intertoken

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ducgiangtran/switchboard/pkg/idx"
)

// Issuer mints short-lived RS256-signed internal tokens that prove a call
// originates from a trusted service inside the mesh. Tokens are minted
// fresh per outbound call and never persisted.
type Issuer struct {
	key *rsa.PrivateKey
	ttl time.Duration

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewIssuer loads the RSA private key from PEM bytes and validates the
// configured TTL. Both failures are configuration errors and should abort
// service startup.
func NewIssuer(pemKey []byte, ttl time.Duration) (*Issuer, error) {
	if ttl <= 0 {
		return nil, ErrNoTTL
	}

	key, err := parsePrivateKey(pemKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSigningKey, err)
	}

	return &Issuer{key: key, ttl: ttl, now: time.Now}, nil
}

// TTL reports the configured token lifetime.
func (i *Issuer) TTL() time.Duration { return i.ttl }

// Mint signs a token for one outbound call. callerIdentity names the
// calling service ("gateway", "userd", ...) and callCtx is the optional
// flat context forwarded to the receiving side. The claims always satisfy
// exp = iat + TTL.
func (i *Issuer) Mint(callerIdentity string, callCtx map[string]string) (string, error) {
	if callerIdentity == "" {
		return "", ErrEmptyCaller
	}

	now := i.now().UTC()
	claims := Claims{
		RequestFrom: callerIdentity,
		Context:     callCtx,
		IssuedAt:    now,
		ExpiresAt:   now.Add(i.ttl),
		ID:          idx.NewAt(now).String(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSigning, err)
	}
	return signed, nil
}

// parsePrivateKey handles both PKCS1 and PKCS8 because otherwise we will
// be chasing a key-format bug for longer than we would be willing to admit.
func parsePrivateKey(pemKey []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(pemKey)
	if block == nil {
		return nil, fmt.Errorf("invalid PEM for RSA key")
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		return x509.ParsePKCS1PrivateKey(block.Bytes)
	case "PRIVATE KEY":
		priv, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("parse PKCS8: %w", err)
		}
		rk, ok := priv.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("not an RSA private key")
		}
		return rk, nil
	default:
		return nil, fmt.Errorf("unsupported PEM type %q", block.Type)
	}
}
