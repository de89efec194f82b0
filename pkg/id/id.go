package id

import "github.com/google/uuid"

// PublicID is the externally visible identifier of a user. The numeric
// primary key never leaves the database layer.
type PublicID string

func NewPublicID() PublicID {
	return PublicID(uuid.NewString())
}

func (p PublicID) String() string {
	return string(p)
}
