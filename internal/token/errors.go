package token

import "errors"

var (
	// ErrTokenExpired covers tokens whose signature is fine but whose
	// expiry instant has passed. A token checked exactly at its expiry
	// instant is already expired.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid collapses bad signature, malformed input, and
	// issuer/audience mismatch into one externally visible kind.
	ErrTokenInvalid = errors.New("token invalid")
)
