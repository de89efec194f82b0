package session

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("session not found")

// Record is the single durable row per account. RefreshHash is the bcrypt
// hash of the one refresh token currently honored for the account; anything
// else presented is rejected regardless of signature validity.
type Record struct {
	UserID      int64     `json:"-" db:"user_id"`
	RefreshHash string    `json:"-" db:"refresh_hash"`
	RotatedAt   time.Time `json:"rotated_at" db:"rotated_at"`
}

// Store keys records by the account's numeric ID. Reads and writes for a
// single account must be linearizable; unrelated accounts never contend.
type Store interface {
	// Upsert installs hash as the account's current refresh hash,
	// creating the record if needed. Used on login and registration.
	Upsert(ctx context.Context, userID int64, hash string) error
	// Get returns the current refresh hash, or ErrNotFound when the
	// record is absent or was cleared by logout.
	Get(ctx context.Context, userID int64) (string, error)
	// Replace swaps oldHash for newHash only if oldHash is still the
	// stored value. The compare-and-swap is what makes two racing
	// refresh requests resolve to a single winner. Returns false when
	// the stored value moved (or was cleared) since it was read.
	Replace(ctx context.Context, userID int64, oldHash, newHash string) (bool, error)
	// Clear unsets the refresh hash, durably ending the session.
	Clear(ctx context.Context, userID int64) error
}
