package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "storelink-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "+66", cfg.Matching.DefaultRegion)
	assert.Equal(t, 200, cfg.Matching.BatchSize)
	assert.Equal(t, 10*time.Minute, cfg.Matching.RunLockTTL)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("STORELINK_APP_PORT", "9090")
	t.Setenv("STORELINK_MATCHING_DEFAULT_REGION", "+81")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.App.Port)
	assert.Equal(t, "+81", cfg.Matching.DefaultRegion)
}

func TestLoadRejectsBadRegion(t *testing.T) {
	t.Setenv("STORELINK_MATCHING_DEFAULT_REGION", "66")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadProductionRequiresSecrets(t *testing.T) {
	t.Setenv("STORELINK_APP_ENV", "production")

	_, err := Load()
	assert.Error(t, err, "production without a JWT secret must be rejected")
}

func TestDatabaseDSN(t *testing.T) {
	d := DatabaseConfig{
		Host:     "db.internal",
		Port:     5432,
		User:     "storelink",
		Password: "p@ss word",
		DBName:   "storelink",
		SSLMode:  "require",
	}
	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	assert.NotContains(t, dsn, "p@ss word", "password must be escaped")
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache.internal", Port: 6380}
	assert.Equal(t, "cache.internal:6380", r.Addr())
}
