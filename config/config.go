// Package config loads facilitator configuration from the environment.
// The godotenv.Load()-in-init plus getEnv/getEnvInt helper shape is
// grounded directly on the teacher's own services/facilitator/internal/
// config/config.go; the Environment enum and Validate() pass are grounded
// on the example pack's stronghold service, which enforces stricter
// required-value checks in production than the teacher's config does.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

func init() {
	// Missing .env is expected outside local development; never fatal.
	_ = godotenv.Load()
}

// Environment distinguishes how strictly Validate enforces required values.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
	EnvTest        Environment = "test"
)

// EVMNetworkConfig is one EVM Chain Provider's wiring: its RPC endpoint and
// the facilitator's signing key for that network.
type EVMNetworkConfig struct {
	Network   string
	RPCURL    string
	SignerKey string // hex-encoded ECDSA private key, no 0x prefix required
	ChainID   int64
}

// SolanaNetworkConfig is the Solana Chain Provider's wiring: its RPC
// endpoint and the pool of fee-payer keys available for load balancing.
type SolanaNetworkConfig struct {
	Network  string
	RPCURL   string
	FeePayer []string // base58-encoded ed25519 private keys
}

// Config holds all facilitator core configuration. HTTP-level concerns
// (listen port, read/write timeouts) live with whatever transport a caller
// wires on top of Facilitator; they have no home here.
type Config struct {
	Environment Environment

	MaxServerTimeout  time.Duration
	BlacklistFilePath string

	EVMNetworks    []EVMNetworkConfig
	SolanaNetworks []SolanaNetworkConfig
}

// Load reads configuration from environment variables. Network wiring is
// read generically: FACILITATOR_EVM_NETWORKS / FACILITATOR_SOLANA_NETWORKS
// list the configured network tags, and each network's own RPC_URL /
// SIGNER_KEY / CHAIN_ID / FEE_PAYERS variables are read by convention
// (FACILITATOR_EVM_<NETWORK>_RPC_URL, uppercased, hyphens to underscores).
func Load() *Config {
	env := Environment(getEnv("ENV", "production"))
	if env != EnvDevelopment && env != EnvProduction && env != EnvTest {
		env = EnvProduction
	}

	cfg := &Config{
		Environment:       env,
		MaxServerTimeout:  getDuration("FACILITATOR_MAX_SETTLE_TIMEOUT", 120*time.Second),
		BlacklistFilePath: getEnv("FACILITATOR_BLACKLIST_FILE", ""),
	}

	for _, network := range getEnvSlice("FACILITATOR_EVM_NETWORKS", nil) {
		prefix := envPrefix("FACILITATOR_EVM_", network)
		cfg.EVMNetworks = append(cfg.EVMNetworks, EVMNetworkConfig{
			Network:   network,
			RPCURL:    getEnv(prefix+"RPC_URL", ""),
			SignerKey: getEnv(prefix+"SIGNER_KEY", ""),
			ChainID:   int64(getInt(prefix+"CHAIN_ID", 0)),
		})
	}

	for _, network := range getEnvSlice("FACILITATOR_SOLANA_NETWORKS", nil) {
		prefix := envPrefix("FACILITATOR_SOLANA_", network)
		cfg.SolanaNetworks = append(cfg.SolanaNetworks, SolanaNetworkConfig{
			Network:  network,
			RPCURL:   getEnv(prefix+"RPC_URL", ""),
			FeePayer: getEnvSlice(prefix+"FEE_PAYERS", nil),
		})
	}

	return cfg
}

// envPrefix turns a family prefix and a network tag like "base-sepolia"
// into the env var prefix FACILITATOR_EVM_BASE_SEPOLIA_.
func envPrefix(familyPrefix, network string) string {
	return familyPrefix + strings.ToUpper(strings.ReplaceAll(network, "-", "_")) + "_"
}

// Validate checks that every declared network carries the configuration it
// needs to serve requests. In production, missing values are errors; in
// development and test, an unconfigured network is merely unusable.
func (c *Config) Validate() error {
	var errs []string

	if len(c.EVMNetworks) == 0 && len(c.SolanaNetworks) == 0 {
		errs = append(errs, "at least one of FACILITATOR_EVM_NETWORKS or FACILITATOR_SOLANA_NETWORKS must be configured")
	}

	for _, n := range c.EVMNetworks {
		if n.RPCURL == "" {
			errs = append(errs, "EVM network "+n.Network+" is missing an RPC_URL")
		}
		if n.ChainID == 0 {
			errs = append(errs, "EVM network "+n.Network+" is missing a CHAIN_ID")
		}
		if c.Environment == EnvProduction && n.SignerKey == "" {
			errs = append(errs, "EVM network "+n.Network+" is missing a SIGNER_KEY in production")
		}
	}

	for _, n := range c.SolanaNetworks {
		if n.RPCURL == "" {
			errs = append(errs, "Solana network "+n.Network+" is missing an RPC_URL")
		}
		if c.Environment == EnvProduction && len(n.FeePayer) == 0 {
			errs = append(errs, "Solana network "+n.Network+" is missing FEE_PAYERS in production")
		}
	}

	if c.Environment == EnvProduction && c.BlacklistFilePath == "" {
		errs = append(errs, "FACILITATOR_BLACKLIST_FILE is required in production")
	}

	if len(errs) > 0 {
		return errors.New("configuration errors: " + strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return c.Environment == EnvDevelopment }
func (c *Config) IsProduction() bool  { return c.Environment == EnvProduction }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, v := range strings.Split(value, ",") {
			v = strings.TrimSpace(v)
			if v != "" {
				out = append(out, v)
			}
		}
		return out
	}
	return defaultValue
}
