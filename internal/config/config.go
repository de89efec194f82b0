package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
)

var ErrMissingAccessSecret = errors.New("JWT_SECRET is not set")

type AppConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DbConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
	Audience      string
}

type Config struct {
	AppConfig *AppConfig
	DbConfig  *DbConfig
	JWTConfig *JWTConfig
}

func LoadConfig(logger *zap.Logger) (*Config, error) {
	/** db config */
	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return nil, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	maxConnLifetime, err := envDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	if err != nil {
		return nil, err
	}

	dbConfig := &DbConfig{
		DSN:             os.Getenv("POSTGRES_DSN"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		MaxConnLifetime: maxConnLifetime,
	}

	/** app config */
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "5000"
	}
	readTimeout, err := envDuration("APP_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	writeTimeout, err := envDuration("APP_WRITE_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	idleTimeout, err := envDuration("APP_IDLE_TIMEOUT", time.Minute)
	if err != nil {
		return nil, err
	}

	appConfig := &AppConfig{
		Port:         port,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	/** jwt config */
	accessSecret := os.Getenv("JWT_SECRET")
	if accessSecret == "" {
		// refusing to start beats signing tokens with an empty key
		return nil, ErrMissingAccessSecret
	}
	refreshSecret := os.Getenv("JWT_REFRESH_SECRET")
	if refreshSecret == "" {
		logger.Warn("JWT_REFRESH_SECRET is not set, falling back to JWT_SECRET; access and refresh tokens will share a signing key")
		refreshSecret = accessSecret
	}

	accessTTL, err := envDuration("ACCESS_TTL", 15*time.Minute)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := envDuration("REFRESH_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, err
	}

	jwtConfig := &JWTConfig{
		AccessSecret:  accessSecret,
		RefreshSecret: refreshSecret,
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		Issuer:        os.Getenv("JWT_ISSUER"),
		Audience:      os.Getenv("JWT_AUDIENCE"),
	}

	return &Config{
		DbConfig:  dbConfig,
		AppConfig: appConfig,
		JWTConfig: jwtConfig,
	}, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	return time.ParseDuration(raw)
}

func envInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
