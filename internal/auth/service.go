package auth

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/iamdebrajghosh/task-manager/internal/session"
	"github.com/iamdebrajghosh/task-manager/internal/token"
	"github.com/iamdebrajghosh/task-manager/internal/user"
	"github.com/iamdebrajghosh/task-manager/pkg/id"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// Service owns the session lifecycle: it mints access/refresh pairs and
// keeps the per-account session record in step with the one refresh token
// currently honored.
type Service interface {
	Register(ctx context.Context, name, email, password string) (*TokenPair, *user.Identity, error)
	Login(ctx context.Context, email, password string) (*TokenPair, *user.Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, publicID id.PublicID) error
}

type service struct {
	users    user.Repository
	sessions session.Store
	codec    token.Codec
	logger   *zap.Logger
}

func NewService(users user.Repository, sessions session.Store, codec token.Codec, logger *zap.Logger) Service {
	return &service{
		users:    users,
		sessions: sessions,
		codec:    codec,
		logger:   logger,
	}
}

func (s *service) Register(ctx context.Context, name, email, password string) (*TokenPair, *user.Identity, error) {
	if len(password) < minPasswordLength {
		return nil, nil, ErrWeakPassword
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, nil, err
	}

	u := &user.User{
		Name:     name,
		Email:    email,
		Password: string(hashed),
		Role:     user.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, nil, err
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		// a user row without a working session is unusable; roll it back
		// rather than leaving an orphaned account behind
		if delErr := s.users.Delete(ctx, u.ID); delErr != nil {
			s.logger.Error("failed to roll back user after issuance failure",
				zap.Int64("id", u.ID), zap.Error(delErr))
		}
		return nil, nil, err
	}

	identity := u.Identity()
	return pair, &identity, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*TokenPair, *user.Identity, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			// same failure as a wrong password, so callers cannot probe
			// which emails are registered
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(ctx, u)
	if err != nil {
		return nil, nil, err
	}

	identity := u.Identity()
	return pair, &identity, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrTokenExpired) {
			return nil, token.ErrTokenExpired
		}
		return nil, ErrInvalidRefreshToken
	}

	u, err := s.users.GetByPublicID(ctx, claims.Sub)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	storedHash, err := s.sessions.Get(ctx, u.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, err
	}

	if err := compareRefreshToken(storedHash, refreshToken); err != nil {
		s.logger.Warn("refresh token hash mismatch, possible reuse after rotation",
			zap.String("public_id", u.PublicID.String()))
		return nil, ErrInvalidRefreshToken
	}

	pair, newHash, err := s.mintPair(u)
	if err != nil {
		return nil, err
	}

	ok, err := s.sessions.Replace(ctx, u.ID, storedHash, newHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		// a concurrent refresh won the rotation between our read and
		// write; this request loses rather than leaving two live pairs
		return nil, ErrInvalidRefreshToken
	}

	return pair, nil
}

// Logout durably ends the session by clearing the stored hash. Dropping the
// tokens client-side alone would leave the refresh token exchangeable until
// its expiry.
func (s *service) Logout(ctx context.Context, publicID id.PublicID) error {
	u, err := s.users.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.sessions.Clear(ctx, u.ID)
}

func (s *service) issuePair(ctx context.Context, u *user.User) (*TokenPair, error) {
	pair, hash, err := s.mintPair(u)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.Upsert(ctx, u.ID, hash); err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *service) mintPair(u *user.User) (*TokenPair, string, error) {
	identity := u.Identity()

	access, accessExp, err := s.codec.IssueAccess(identity)
	if err != nil {
		return nil, "", err
	}
	refresh, refreshExp, err := s.codec.IssueRefresh(identity)
	if err != nil {
		return nil, "", err
	}

	hash, err := hashRefreshToken(refresh)
	if err != nil {
		s.logger.Error("failed to hash refresh token", zap.Error(err))
		return nil, "", err
	}

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, hash, nil
}

// Refresh tokens are persisted only as bcrypt hashes, the same one-way
// capability used for passwords. bcrypt ignores input past 72 bytes and a
// JWT's distinguishing signature lives at the end, so the token is reduced
// to a sha256 digest first.
func hashRefreshToken(tokenString string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword(refreshDigest(tokenString), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func compareRefreshToken(storedHash, tokenString string) error {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), refreshDigest(tokenString))
}

func refreshDigest(tokenString string) []byte {
	digest := sha256.Sum256([]byte(tokenString))
	return []byte(base64.RawURLEncoding.EncodeToString(digest[:]))
}
