package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Load_Defaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "PORT", "DB_DRIVER", "TX_MAX_ATTEMPTS", "RATE_LIMIT_RPS", "SHUTDOWN_TIMEOUT", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5, cfg.TxMaxAttempts)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.RedisAddr)
	assert.True(t, cfg.IsDevelopment())
}

func Test_Load_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("MIGRATE_ON_START", "false")
	t.Setenv("DB_CONN_MAX_LIFETIME", "1m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "pgx", cfg.DBDriver)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.False(t, cfg.MigrateOnStart)
	assert.Equal(t, time.Minute, cfg.DBConnMaxLifetime)
	assert.False(t, cfg.IsDevelopment())
}

func Test_Load_ReportsEveryInvalidValue(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("SHUTDOWN_TIMEOUT", "soon")
	t.Setenv("DB_DRIVER", "mysql")

	_, err := Load()
	require.Error(t, err)

	assert.ErrorContains(t, err, "DB_MAX_OPEN_CONNS")
	assert.ErrorContains(t, err, "SHUTDOWN_TIMEOUT")
	assert.ErrorContains(t, err, "DB_DRIVER")
}

func Test_Load_TxMaxAttemptsBounds(t *testing.T) {
	tests := []struct {
		value string
		ok    bool
	}{
		{"1", true},
		{"20", true},
		{"0", false},
		{"21", false},
		{"64", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("DB_DRIVER", "")
			t.Setenv("TX_MAX_ATTEMPTS", tt.value)

			_, err := Load()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, "TX_MAX_ATTEMPTS")
		})
	}
}
