package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBookingDefaults(t *testing.T) {
	cfg, err := LoadBookingConfig()
	require.NoError(t, err)
	require.Equal(t, "Asia/Bangkok", cfg.TimeZone)
	require.Equal(t, 1, cfg.MinLeadDays)
	require.Equal(t, 6, cfg.MaxHorizonDays)
	require.Equal(t, "ACCEPTED", cfg.InitialStatus)
	require.True(t, cfg.MarkPaid)
	require.Equal(t, "local", cfg.LockBackend)
	require.Equal(t, 10*time.Second, cfg.LockTTL)
}

func TestBookingOverridesAndValidation(t *testing.T) {
	t.Setenv("BOOKING_INITIAL_STATUS", "pending")
	t.Setenv("BOOKING_MARK_PAID", "false")
	t.Setenv("BOOKING_MAX_HORIZON_DAYS", "13")
	t.Setenv("BOOKING_LOCK_BACKEND", "Redis")
	cfg, err := LoadBookingConfig()
	require.NoError(t, err)
	require.Equal(t, "PENDING", cfg.InitialStatus)
	require.False(t, cfg.MarkPaid)
	require.Equal(t, 13, cfg.MaxHorizonDays)
	require.Equal(t, "redis", cfg.LockBackend)

	t.Setenv("BOOKING_INITIAL_STATUS", "REJECTED")
	_, err = LoadBookingConfig()
	require.Error(t, err)
}

func TestEventsConfig(t *testing.T) {
	t.Setenv("EVENT_BROKER", "Kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	cfg := LoadEventsConfig()
	require.Equal(t, "kafka", cfg.Broker)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "booking-events", cfg.KafkaTopic)
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1m")
	t.Setenv("RATE_LIMIT_TTL", "1s")
	cfg := LoadRateLimitConfig()
	require.Equal(t, 1, cfg.Capacity)
	require.Equal(t, 5*time.Minute, cfg.TTL)
}

func TestLoadDotEnvKeepsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("VB_TEST_A=from-file\nVB_TEST_B=from-file\n"), 0o600))
	t.Setenv("VB_TEST_A", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("VB_TEST_B") })

	LoadDotEnv(nil, path, filepath.Join(t.TempDir(), "missing.env"))
	require.Equal(t, "from-env", os.Getenv("VB_TEST_A"))
	require.Equal(t, "from-file", os.Getenv("VB_TEST_B"))
}

func TestLoadDotEnvReportsUnreadableFile(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	// a directory passes the existence check but cannot be parsed
	dir := t.TempDir()
	LoadDotEnv(log, dir)
	require.Contains(t, buf.String(), `"msg":"could not load env file"`)
	require.Contains(t, buf.String(), dir)
}

func TestLoadReportsEveryMissingVar(t *testing.T) {
	for _, k := range []string{"APP_ENV", "APP_PORT", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME", "JWT_SECRET",
		"ACCESS_TOKEN_TTL_MIN", "REFRESH_TOKEN_TTL_DAYS", "BCRYPT_COST"} {
		t.Setenv(k, "")
	}
	t.Setenv("APP_ENV", "test")
	t.Setenv("BCRYPT_COST", "high")

	_, err := Load()
	require.Error(t, err)
	require.NotContains(t, err.Error(), "APP_ENV")
	require.Contains(t, err.Error(), "missing required env var JWT_SECRET")
	require.Contains(t, err.Error(), "missing required env var ACCESS_TOKEN_TTL_MIN")
	require.Contains(t, err.Error(), `invalid int for BCRYPT_COST: "high"`)
}

func TestLoadComplete(t *testing.T) {
	for k, v := range map[string]string{
		"APP_ENV": "test", "APP_PORT": "8080", "DB_USER": "app", "DB_HOST": "localhost", "DB_PORT": "3306",
		"DB_NAME": "venues", "JWT_SECRET": "s3cret", "ACCESS_TOKEN_TTL_MIN": "15",
		"REFRESH_TOKEN_TTL_DAYS": "7", "BCRYPT_COST": "10", "DB_DRIVER": "",
	} {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "mysql", cfg.DBDriver)
	require.Equal(t, 15, cfg.AccessTTLMin)
	require.Equal(t, 10, cfg.BcryptCost)
}

func TestCacheReviewVariant(t *testing.T) {
	t.Setenv("CACHE_TTL", "2m")
	t.Setenv("CACHE_REVIEW_TTL", "5m")
	t.Setenv("CACHE_METHODS", " get ,")
	cfg := LoadCacheConfig()
	require.Equal(t, map[string]bool{"GET": true}, cfg.Methods)
	// review TTL never outlives the space TTL
	require.Equal(t, 2*time.Minute, cfg.ReviewTTL)

	rv := cfg.Reviews()
	require.Equal(t, 2*time.Minute, rv.TTL)
	require.Equal(t, "cache:spaces:reviews", rv.Prefix)
	require.Equal(t, "cache:spaces", cfg.Prefix)
}
