package database

import (
	"database/sql"
	"fmt"

	"github.com/iamdebrajghosh/task-manager/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func Init(cfg *config.DbConfig) (*sql.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is not set")
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)

	return db, nil
}
