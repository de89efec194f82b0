package user

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iamdebrajghosh/task-manager/pkg/id"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByPublicID(ctx context.Context, publicID id.PublicID) (*User, error)
	Delete(ctx context.Context, userID int64) error
}

const (
	insertUserQuery = `
						INSERT INTO users (name, email, password, role)
						VALUES ($1, $2, $3, $4)
						RETURNING id, public_id, created_at, updated_at
						`
	selectUserByEmailQuery = `
						SELECT id, public_id, name, email, password, role, created_at, updated_at
						FROM users
						WHERE lower(email) = lower($1)
						`
	selectUserByPublicIDQuery = `
						SELECT id, public_id, name, email, password, role, created_at, updated_at
						FROM users
						WHERE public_id = $1
						`
	deleteUserQuery = `
						DELETE FROM users WHERE id = $1
						`
)

type userRepo struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRepository(db *sql.DB, logger *zap.Logger) Repository {
	return &userRepo{db: db, logger: logger}
}

func (r *userRepo) Create(ctx context.Context, u *User) error {
	row := r.db.QueryRowContext(ctx, insertUserQuery,
		strings.TrimSpace(u.Name),
		strings.ToLower(strings.TrimSpace(u.Email)),
		u.Password,
		u.Role,
	)

	if err := row.Scan(&u.ID, &u.PublicID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			r.logger.Warn("create user canceled/timed out", zap.Error(err))
			return err
		}

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.UniqueViolation {
				r.logger.Debug("duplicate email", zap.String("email", u.Email))
				return ErrDuplicateEmail
			}
			r.logger.Error("postgres error",
				zap.String("code", pgErr.Code),
				zap.String("msg", pgErr.Message),
				zap.String("detail", pgErr.Detail),
			)
			return err
		}

		// Fallback: match by message text if the driver wrapped the error
		if strings.Contains(strings.ToLower(err.Error()), "users_email_key") {
			r.logger.Debug("duplicate email (fallback)", zap.String("email", u.Email))
			return ErrDuplicateEmail
		}

		r.logger.Error("driver/scan error", zap.Error(err))
		return err
	}

	r.logger.Debug("user created",
		zap.Int64("id", u.ID),
		zap.String("public_id", u.PublicID.String()),
	)

	return nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUserByEmailQuery, strings.TrimSpace(email)))
}

func (r *userRepo) GetByPublicID(ctx context.Context, publicID id.PublicID) (*User, error) {
	return r.scanOne(r.db.QueryRowContext(ctx, selectUserByPublicIDQuery, string(publicID)))
}

func (r *userRepo) scanOne(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.PublicID, &u.Name, &u.Email, &u.Password, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		r.logger.Error("failed to load user", zap.Error(err))
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) Delete(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, deleteUserQuery, userID)
	if err != nil {
		r.logger.Error("failed to delete user", zap.Int64("id", userID), zap.Error(err))
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		r.logger.Debug("no user deleted (not found)", zap.Int64("id", userID))
	}
	return nil
}
