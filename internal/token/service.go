package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/iamdebrajghosh/task-manager/internal/config"
	"github.com/iamdebrajghosh/task-manager/internal/user"
	"go.uber.org/zap"
)

// Codec mints and verifies signed tokens. It is stateless: validity of an
// access token is fully determined by its signature and expiry. Access and
// refresh tokens are signed with separate secrets so that one leaked key
// cannot forge the other kind (unless the config fell back to a shared key).
type Codec interface {
	IssueAccess(identity user.Identity) (string, time.Time, error)
	IssueRefresh(identity user.Identity) (string, time.Time, error)
	VerifyAccess(tokenString string) (*Claims, error)
	VerifyRefresh(tokenString string) (*Claims, error)
}

type codec struct {
	logger     *zap.Logger
	cfg        *config.JWTConfig
	signingAlg jwt.SigningMethod
}

func NewCodec(logger *zap.Logger, cfg *config.JWTConfig) Codec {
	return &codec{
		logger:     logger,
		cfg:        cfg,
		signingAlg: jwt.SigningMethodHS256,
	}
}

func (c *codec) IssueAccess(identity user.Identity) (string, time.Time, error) {
	return c.issue(identity, c.cfg.AccessSecret, c.cfg.AccessTTL)
}

// IssueRefresh generates a fresh nonce on every call, so two refresh tokens
// for the same identity never hash alike.
func (c *codec) IssueRefresh(identity user.Identity) (string, time.Time, error) {
	return c.issue(identity, c.cfg.RefreshSecret, c.cfg.RefreshTTL)
}

func (c *codec) issue(identity user.Identity, secret string, ttl time.Duration) (string, time.Time, error) {
	issuedAt := time.Now().UTC()
	expiresAt := issuedAt.Add(ttl)
	claims := &Claims{
		Sub:   identity.ID,
		Email: identity.Email,
		Role:  identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.cfg.Issuer,
			Audience:  jwt.ClaimStrings{c.cfg.Audience},
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(c.signingAlg, claims).SignedString([]byte(secret))
	if err != nil {
		c.logger.Error("failed to sign token", zap.Error(err))
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (c *codec) VerifyAccess(tokenString string) (*Claims, error) {
	return c.verify(tokenString, c.cfg.AccessSecret)
}

func (c *codec) VerifyRefresh(tokenString string) (*Claims, error) {
	return c.verify(tokenString, c.cfg.RefreshSecret)
}

func (c *codec) verify(tokenString, secret string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.signingAlg.Alg()}),
	)

	var claims Claims
	tkn, err := parser.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !tkn.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Issuer != c.cfg.Issuer {
		return nil, ErrTokenInvalid
	}

	{
		ok := false
		for _, aud := range claims.Audience {
			if aud == c.cfg.Audience {
				ok = true
				break
			}
		}
		if !ok {
			return nil, ErrTokenInvalid
		}
	}
	return &claims, nil
}
