package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, key string) {
	t.Helper()
	if value, ok := os.LookupEnv(key); ok {
		require.NoError(t, os.Unsetenv(key))
		t.Cleanup(func() { _ = os.Setenv(key, value) })
	}
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"DATABASE_PATH", "REDEMPTION_CODE_TTL", "REDEMPTION_CODE_LENGTH", "SWEEP_INTERVAL",
		"AUDIT_BUCKET_SIZE", "AUDIT_RETRY_ATTEMPTS", "AUDIT_RETRY_BACKOFF", "METRICS_ADDR",
		"TRANCHES_FILE", "CREATE_DUMMY_HOUSEHOLDS", "DB_MAX_OPEN_CONNS",
	} {
		unsetEnv(t, key)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vouchers.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Database.CreateDummyHouseholds)
	assert.Equal(t, 15*time.Minute, cfg.Redemption.CodeTTL)
	assert.Equal(t, 8, cfg.Redemption.CodeLength)
	assert.Equal(t, time.Minute, cfg.Redemption.SweepInterval)
	assert.Equal(t, "tranches.yaml", cfg.Redemption.TranchesFile)
	assert.Equal(t, time.Hour, cfg.Audit.BucketSize)
	assert.Equal(t, 3, cfg.Audit.RetryAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Audit.RetryBackoff)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/var/lib/vouchers/state.db")
	t.Setenv("REDEMPTION_CODE_TTL", "5m")
	t.Setenv("REDEMPTION_CODE_LENGTH", "10")
	t.Setenv("AUDIT_BUCKET_SIZE", "15m")
	t.Setenv("CREATE_DUMMY_HOUSEHOLDS", "true")
	t.Setenv("METRICS_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/vouchers/state.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Redemption.CodeTTL)
	assert.Equal(t, 10, cfg.Redemption.CodeLength)
	assert.Equal(t, 15*time.Minute, cfg.Audit.BucketSize)
	assert.True(t, cfg.Database.CreateDummyHouseholds)
	assert.Empty(t, cfg.Server.MetricsAddr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"REDEMPTION_CODE_TTL", "soon"},
		{"REDEMPTION_CODE_TTL", "0s"},
		{"REDEMPTION_CODE_LENGTH", "4"},
		{"AUDIT_BUCKET_SIZE", "-1h"},
		{"SWEEP_INTERVAL", "every minute"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
