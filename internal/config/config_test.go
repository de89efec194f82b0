package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadConfigFailsWithoutAccessSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := LoadConfig(zap.NewNop())
	require.ErrorIs(t, err, ErrMissingAccessSecret)
}

func TestLoadConfigRefreshSecretFallback(t *testing.T) {
	t.Setenv("JWT_SECRET", "the-access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "")

	cfg, err := LoadConfig(zap.NewNop())
	require.NoError(t, err)
	// degraded mode: one signing key for both token kinds
	require.Equal(t, "the-access-secret", cfg.JWTConfig.RefreshSecret)
}

func TestLoadConfigDistinctSecretsAndTTLDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "the-access-secret")
	t.Setenv("JWT_REFRESH_SECRET", "the-refresh-secret")
	t.Setenv("ACCESS_TTL", "")
	t.Setenv("REFRESH_TTL", "")

	cfg, err := LoadConfig(zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, "the-refresh-secret", cfg.JWTConfig.RefreshSecret)
	require.Equal(t, 15*time.Minute, cfg.JWTConfig.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.JWTConfig.RefreshTTL)
}

func TestLoadConfigRejectsMalformedDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", "the-access-secret")
	t.Setenv("ACCESS_TTL", "fifteen minutes")

	_, err := LoadConfig(zap.NewNop())
	require.Error(t, err)
}
