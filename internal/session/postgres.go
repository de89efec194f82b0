package session

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"
)

const (
	upsertSessionQuery = `
						INSERT INTO sessions (user_id, refresh_hash, rotated_at)
						VALUES ($1, $2, now())
						ON CONFLICT (user_id)
						DO UPDATE SET refresh_hash = EXCLUDED.refresh_hash, rotated_at = now()
						`
	selectSessionQuery = `
						SELECT refresh_hash FROM sessions
						WHERE user_id = $1 AND refresh_hash IS NOT NULL
						`
	replaceSessionQuery = `
						UPDATE sessions
						SET refresh_hash = $3, rotated_at = now()
						WHERE user_id = $1 AND refresh_hash = $2
						`
	clearSessionQuery = `
						UPDATE sessions
						SET refresh_hash = NULL, rotated_at = now()
						WHERE user_id = $1
						`
)

type postgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewPostgresStore(db *sql.DB, logger *zap.Logger) Store {
	return &postgresStore{db: db, logger: logger}
}

func (s *postgresStore) Upsert(ctx context.Context, userID int64, hash string) error {
	_, err := s.db.ExecContext(ctx, upsertSessionQuery, userID, hash)
	if err != nil {
		s.logger.Error("failed to upsert session", zap.Int64("user_id", userID), zap.Error(err))
	}
	return err
}

func (s *postgresStore) Get(ctx context.Context, userID int64) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, selectSessionQuery, userID).Scan(&hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		s.logger.Error("failed to load session", zap.Int64("user_id", userID), zap.Error(err))
		return "", err
	}
	return hash, nil
}

// Replace relies on the WHERE predicate matching the previously read hash:
// of two concurrent rotations only one UPDATE touches the row.
func (s *postgresStore) Replace(ctx context.Context, userID int64, oldHash, newHash string) (bool, error) {
	res, err := s.db.ExecContext(ctx, replaceSessionQuery, userID, oldHash, newHash)
	if err != nil {
		s.logger.Error("failed to rotate session", zap.Int64("user_id", userID), zap.Error(err))
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *postgresStore) Clear(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, clearSessionQuery, userID)
	if err != nil {
		s.logger.Error("failed to clear session", zap.Int64("user_id", userID), zap.Error(err))
	}
	return err
}
