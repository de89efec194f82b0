package user

import (
	"time"

	"github.com/iamdebrajghosh/task-manager/pkg/id"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID        int64       `json:"-" db:"id"`
	PublicID  id.PublicID `json:"id" db:"public_id"`
	Name      string      `json:"name" db:"name"`
	Email     string      `json:"email" db:"email"`
	Password  string      `json:"-" db:"password"`
	Role      Role        `json:"role" db:"role"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Identity is the snapshot of a user embedded in token claims and auth
// responses. Role is frozen at issuance time; a role change only becomes
// visible after re-authentication or the next refresh.
type Identity struct {
	ID    id.PublicID `json:"id"`
	Name  string      `json:"name,omitempty"`
	Email string      `json:"email"`
	Role  Role        `json:"role"`
}

func (u *User) Identity() Identity {
	return Identity{
		ID:    u.PublicID,
		Name:  u.Name,
		Email: u.Email,
		Role:  u.Role,
	}
}
