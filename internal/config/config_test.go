package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv(KeyMongoURI, "mongodb://localhost:27017")
	t.Setenv(KeyJWTSecret, "s3cret")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, "finance_db", cfg.MongoDatabase)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "50051", cfg.HealthPort)
	assert.Equal(t, 10, cfg.RateLimitRPM)
	assert.Equal(t, "llama3-8b-8192", cfg.GroqModel)
	assert.Equal(t, 30*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 200, cfg.SnapshotMaxTransactions)
	assert.Empty(t, cfg.JWTKeys)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv(KeyMongoURI, "mongodb://db:27017")
	t.Setenv(KeyJWTKeys, "k1:one, k2:two")
	t.Setenv(KeyJWTActiveKid, "k2")
	t.Setenv(KeyRateLimitRPM, "42")
	t.Setenv(KeyGatewayTimeout, "5s")
	t.Setenv(KeyLogDevelopment, "true")

	cfg, err := Load(New())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"k1": "one", "k2": "two"}, cfg.JWTKeys)
	assert.Equal(t, "k2", cfg.JWTActiveKid)
	assert.Equal(t, 42, cfg.RateLimitRPM)
	assert.Equal(t, 5*time.Second, cfg.GatewayTimeout)
	assert.True(t, cfg.LogDevelopment)
}

func TestLoadValidation(t *testing.T) {
	t.Run("missing mongo uri", func(t *testing.T) {
		t.Setenv(KeyMongoURI, "")
		t.Setenv(KeyJWTSecret, "x")
		_, err := Load(New())
		require.Error(t, err)
	})

	t.Run("missing jwt secret", func(t *testing.T) {
		t.Setenv(KeyMongoURI, "mongodb://localhost")
		t.Setenv(KeyJWTSecret, "")
		t.Setenv(KeyJWTKeys, "")
		_, err := Load(New())
		require.Error(t, err)
	})

	t.Run("unknown active kid", func(t *testing.T) {
		t.Setenv(KeyMongoURI, "mongodb://localhost")
		t.Setenv(KeyJWTKeys, "k1:one")
		t.Setenv(KeyJWTActiveKid, "k9")
		_, err := Load(New())
		require.Error(t, err)
	})
}

func TestParseJWTKeys(t *testing.T) {
	keys, err := ParseJWTKeys("a:1,,b:2")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	_, err = ParseJWTKeys("broken")
	assert.Error(t, err)
}
