package token

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/iamdebrajghosh/task-manager/internal/user"
	"github.com/iamdebrajghosh/task-manager/pkg/id"
)

// Claims is the payload of both access and refresh tokens. Refresh tokens
// additionally carry a per-issuance nonce in RegisteredClaims.ID, which is
// what makes each rotated token distinct from its predecessor.
type Claims struct {
	Sub   id.PublicID `json:"sub"`
	Email string      `json:"email"`
	Role  user.Role   `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() user.Identity {
	return user.Identity{
		ID:    c.Sub,
		Email: c.Email,
		Role:  c.Role,
	}
}
