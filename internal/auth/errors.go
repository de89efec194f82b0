package auth

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password too short")
	// ErrInvalidRefreshToken deliberately covers hash mismatch, cleared
	// session, missing record, and lost rotation races alike; callers
	// must not be able to tell which one happened.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)
