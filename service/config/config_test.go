package config

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv blanks every variable Load reads; t.Setenv restores them afterwards.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"SERVER_ADDR", "LOG_LEVEL", "MAX_REQUEST_BODY", "SHUTDOWN_TIMEOUT",
		"SOLANA_NETWORK", "SOLANA_RPC_URL", "SOLANA_COMMITMENT", "RPC_TIMEOUT",
		"ENVELOPE_ENCODING", "DATABASE_URL", "NATS_URL",
	} {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, int64(1<<20), cfg.MaxRequestBody)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "devnet", cfg.SolanaNetwork)
	assert.Equal(t, []string{rpc.DevNet_RPC}, cfg.SolanaRPCURLs)
	assert.Equal(t, "confirmed", cfg.SolanaCommitment)
	assert.Equal(t, 30*time.Second, cfg.RPCTimeout)
	assert.Equal(t, "base64", cfg.EnvelopeEncoding)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Empty(t, cfg.NATSURL)
}

func TestLoad_CustomValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SOLANA_NETWORK", "mainnet")
	t.Setenv("SOLANA_RPC_URL", "https://a.example.com, https://b.example.com/?api-key=k,")
	t.Setenv("SOLANA_COMMITMENT", "Finalized")
	t.Setenv("RPC_TIMEOUT", "5s")
	t.Setenv("ENVELOPE_ENCODING", "base58")
	t.Setenv("DATABASE_URL", "postgres://localhost/tokenforge")
	t.Setenv("NATS_URL", "nats://nats.example.com:4222")
	t.Setenv("MAX_REQUEST_BODY", "4096")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mainnet", cfg.SolanaNetwork)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com/?api-key=k"}, cfg.SolanaRPCURLs)
	assert.Equal(t, "finalized", cfg.SolanaCommitment)
	assert.Equal(t, 5*time.Second, cfg.RPCTimeout)
	assert.Equal(t, "base58", cfg.EnvelopeEncoding)
	assert.Equal(t, "postgres://localhost/tokenforge", cfg.DatabaseURL)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, int64(4096), cfg.MaxRequestBody)
}

func TestLoad_NetworkSelectsEndpoint(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOLANA_NETWORK", "testnet")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{rpc.TestNet_RPC}, cfg.SolanaRPCURLs)
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("SOLANA_NETWORK", "moonnet")
	t.Setenv("RPC_TIMEOUT", "soon")
	t.Setenv("MAX_REQUEST_BODY", "big")
	t.Setenv("SOLANA_COMMITMENT", "eventually")
	t.Setenv("ENVELOPE_ENCODING", "hex")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)

	msg := err.Error()
	assert.Contains(t, msg, "configuration validation failed")
	assert.Contains(t, msg, "unknown solana network")
	assert.Contains(t, msg, "RPC_TIMEOUT: invalid duration")
	assert.Contains(t, msg, "MAX_REQUEST_BODY: invalid integer")
	assert.Contains(t, msg, "unknown commitment")
	assert.Contains(t, msg, "unsupported envelope encoding")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			ServerAddr:       ":8080",
			LogLevel:         "info",
			MaxRequestBody:   1 << 20,
			SolanaRPCURLs:    []string{rpc.DevNet_RPC},
			SolanaCommitment: "confirmed",
			RPCTimeout:       30 * time.Second,
			EnvelopeEncoding: "base64",
		}
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no rpc urls", func(c *Config) { c.SolanaRPCURLs = nil }, "at least one Solana RPC URL"},
		{"bad rpc scheme", func(c *Config) { c.SolanaRPCURLs = []string{"ws://x"} }, "must be http or https"},
		{"short timeout", func(c *Config) { c.RPCTimeout = time.Millisecond }, "RPCTimeout must be at least"},
		{"tiny body", func(c *Config) { c.MaxRequestBody = 10 }, "MaxRequestBody must be at least"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"bad nats url", func(c *Config) { c.NATSURL = "http://nats" }, "NATSURL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "loud")

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	clearEnv(t)

	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}
