package initializer

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/amirasaad/bankcards/infra/cache"
	"github.com/amirasaad/bankcards/pkg/config"
	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.App {
	t.Helper()
	return &config.App{
		Env: "test",
		Log: &config.Log{Format: "text", TimeFormat: time.RFC3339},
		DB: &config.DB{
			Url:          "file:" + filepath.Join(t.TempDir(), "bankcards.db"),
			MaxOpenConns: 1,
			AutoMigrate:  true,
		},
		Redis:       &config.Redis{},
		Idempotency: &config.Idempotency{TTL: time.Hour, ClaimTTL: time.Second},
		Ledger:      &config.Ledger{LockTimeout: time.Second},
		Card: &config.Card{
			DefaultCurrency: "RUB",
			NumberPrefix:    "4000",
			EncryptionKey:   "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef",
			IndexKey:        "test-index-key",
		},
	}
}

func TestInitializeDependencies_SQLiteAndMemoryStore(t *testing.T) {
	deps, err := InitializeDependencies(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, deps.Close()) })

	assert.NotNil(t, deps.Uow)
	assert.IsType(t, &cache.MemoryIdempotencyStore{}, deps.Idempotency)

	customers, err := deps.Uow.CustomerRepository()
	require.NoError(t, err)
	c, err := customers.FindByEmail(context.Background(), "nobody@x.com")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestInitializeDependencies_BadCardKey(t *testing.T) {
	cfg := testConfig(t)
	cfg.Card.EncryptionKey = "short"
	_, err := InitializeDependencies(cfg)
	assert.Error(t, err)
}

func TestInitIdempotencyStore_BadRedisURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.URL = "://not-a-url"
	_, _, err := initIdempotencyStore(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Log{Format: "json", TimeFormat: time.RFC3339})
	logger.Info("CreateCard successful", "card", "**** **** **** 0001")
	assert.Contains(t, buf.String(), `"card":"**** **** **** 0001"`)
	assert.Contains(t, buf.String(), "CreateCard successful")
}

func TestNewLogger_Logfmt(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.Log{Format: "logfmt", Level: int(log.DebugLevel)})
	logger.Debug("Transfer started", "idempotency_key", "k1")
	assert.Contains(t, buf.String(), "idempotency_key=k1")
}
