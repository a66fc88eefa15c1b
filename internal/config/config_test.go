package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NODE_NAME", "Alice")

	cfg := Load()
	assert.Equal(t, "Alice", cfg.NodeName)
	assert.Equal(t, "ledgermsg-alice", cfg.ServiceName)
	assert.Equal(t, "Alice", cfg.KeySeed)
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, 30*time.Second, cfg.FlowTimeout)
	assert.Equal(t, 2*time.Second, cfg.FlowRetryInterval)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.KafkaBrokers)
	require.NoError(t, cfg.Validate())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("NODE_NAME", "Bob")
	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/ledger")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("FLOW_TIMEOUT", "5s")
	t.Setenv("FLOW_RETRY_INTERVAL", "250ms")
	t.Setenv("HTTP_ADDR", "9000")
	t.Setenv("RATE_LIMIT_REQUESTS", "not-a-number")
	t.Setenv("TRACING_ENABLED", "true")

	cfg := Load()
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 5*time.Second, cfg.FlowTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.FlowRetryInterval)
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 100, cfg.RateLimitRequests)
	assert.True(t, cfg.TracingEnabled)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mut  func(*Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage = "sqlite" }},
		{"postgres without url", func(c *Config) { c.Storage = StoragePostgres }},
		{"node named like notary", func(c *Config) { c.NodeName = "Notary" }},
		{"zero timeout", func(c *Config) { c.FlowTimeout = 0 }},
		{"zero retry interval", func(c *Config) { c.FlowRetryInterval = 0 }},
		{"audit without brokers", func(c *Config) { c.KafkaAuditEnabled = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{NodeName: "Alice", NotaryName: "Notary", Storage: StorageMemory, FlowTimeout: time.Second, FlowRetryInterval: time.Second}
			require.NoError(t, cfg.Validate())
			tt.mut(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
