package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/tokenforge/service/solana"
	"github.com/brojonat/tokenforge/service/tokentx"
)

// Config holds all application configuration loaded from environment variables.
// Everything is validated at startup so a bad value stops the process early.
type Config struct {
	// Server configuration
	ServerAddr      string
	LogLevel        string
	MaxRequestBody  int64
	ShutdownTimeout time.Duration

	// Solana configuration
	SolanaNetwork    string
	SolanaRPCURLs    []string
	SolanaCommitment string
	RPCTimeout       time.Duration

	// Envelope encoding returned to callers ("base64" or "base58")
	EnvelopeEncoding string

	// Optional: build records are kept only when DatabaseURL is set.
	DatabaseURL string

	// Optional: build events are published only when NATSURL is set.
	NATSURL string
}

// Load reads configuration from environment variables and validates it.
// Every problem found is reported, not just the first.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	maxBody, err := parseInt("MAX_REQUEST_BODY", 1<<20)
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.MaxRequestBody = int64(maxBody)
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ShutdownTimeout = shutdownTimeout
	}

	// Solana configuration
	cfg.SolanaNetwork = strings.ToLower(getEnvOrDefault("SOLANA_NETWORK", solana.NetworkDevnet))
	if urls := os.Getenv("SOLANA_RPC_URL"); urls != "" {
		cfg.SolanaRPCURLs = splitList(urls)
	} else if endpoint, err := solana.EndpointForNetwork(cfg.SolanaNetwork); err != nil {
		errs = append(errs, fmt.Errorf("SOLANA_NETWORK: %w", err))
	} else {
		cfg.SolanaRPCURLs = []string{endpoint}
	}

	cfg.SolanaCommitment = strings.ToLower(getEnvOrDefault("SOLANA_COMMITMENT", "confirmed"))

	rpcTimeout, err := parseDuration("RPC_TIMEOUT", "30s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.RPCTimeout = rpcTimeout
	}

	cfg.EnvelopeEncoding = strings.ToLower(getEnvOrDefault("ENVELOPE_ENCODING", string(tokentx.EncodingBase64)))

	// Optional sinks
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.NATSURL = os.Getenv("NATS_URL")

	if err := cfg.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	if len(c.SolanaRPCURLs) == 0 {
		errs = append(errs, fmt.Errorf("at least one Solana RPC URL is required"))
	}
	for _, u := range c.SolanaRPCURLs {
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			errs = append(errs, fmt.Errorf("Solana RPC URL %q must be http or https", u))
		}
	}

	if _, err := solana.ParseCommitment(c.SolanaCommitment); err != nil {
		errs = append(errs, err)
	}

	if _, err := tokentx.ParseEncoding(c.EnvelopeEncoding); err != nil {
		errs = append(errs, fmt.Errorf("EnvelopeEncoding: %w", err))
	}

	if c.RPCTimeout < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("RPCTimeout must be at least 100ms"))
	}

	if c.MaxRequestBody < 1024 {
		errs = append(errs, fmt.Errorf("MaxRequestBody must be at least 1024 bytes"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LogLevel %q must be debug, info, warn or error", c.LogLevel))
	}

	if c.NATSURL != "" && !strings.HasPrefix(c.NATSURL, "nats://") && !strings.HasPrefix(c.NATSURL, "tls://") {
		errs = append(errs, fmt.Errorf("NATSURL %q must start with nats:// or tls://", c.NATSURL))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// splitList splits a comma-separated value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
