package intertoken

import "errors"

// Configuration errors. These are fatal at service startup.
var (
	ErrNoSigningKey = errors.New("intertoken: signing key missing or invalid")
	ErrNoTTL        = errors.New("intertoken: token ttl not configured")
)

// Mint-time errors. These fail the in-flight call, never the process.
var (
	ErrEmptyCaller = errors.New("intertoken: caller identity is empty")
	ErrSigning     = errors.New("intertoken: signing failed")
)

// Verification errors. Each is distinct so receiving services can branch
// on cause instead of collapsing everything into a generic 401.
var (
	ErrMalformed        = errors.New("intertoken: malformed token")
	ErrInvalidSignature = errors.New("intertoken: invalid signature")
	ErrExpired          = errors.New("intertoken: token expired")
)
