// Package config defines the top-level configuration for the arbitrage bot
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by FLASHARB_* environment
// variables.
type Config struct {
	Scan     ScanConfig     `toml:"scan"`
	Network  NetworkConfig  `toml:"network"`
	Wallet   WalletConfig   `toml:"wallet"`
	Relay    RelayConfig    `toml:"relay"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ScanConfig shapes the scan loop and the sizing of settlement attempts.
// All thresholds and amounts are integers; nothing here is ever a float.
type ScanConfig struct {
	Interval       duration     `toml:"interval"`
	TriggerOnHeads bool         `toml:"trigger_on_heads"`
	MinProfitBps   int64        `toml:"min_profit_bps"`
	Notional       int64        `toml:"notional"` // whole units of the quote token to borrow
	SlippageBps    int64        `toml:"slippage_bps"`
	Live           bool         `toml:"live"`
	Preflight      bool         `toml:"preflight"`
	WaitTimeout    duration     `toml:"wait_timeout"`
	Pairs          []PairConfig `toml:"pairs"`
}

// PairConfig names one token pair to scan. Base and Quote refer to symbols
// in the network token registry.
type PairConfig struct {
	Base   string             `toml:"base"`
	Quote  string             `toml:"quote"`
	Stable []StablePoolConfig `toml:"stable"`
}

// StablePoolConfig points at one stableswap pool quoting the pair, with the
// pool's own coin indices for the base and quote tokens.
type StablePoolConfig struct {
	Name      string `toml:"name"`
	Pool      string `toml:"pool"`
	BaseCoin  int64  `toml:"base_coin"`
	QuoteCoin int64  `toml:"quote_coin"`
}

// NetworkConfig holds the chain endpoints, the deployed contracts, and the
// token registry.
type NetworkConfig struct {
	RPCURL      string        `toml:"rpc_url"`
	WSURL       string        `toml:"ws_url"`
	ChainID     int64         `toml:"chain_id"`
	Contract    string        `toml:"contract"`    // deployed settlement contract
	LenderPool  string        `toml:"lender_pool"` // flash-loan facility
	PremiumBps  int64         `toml:"premium_bps"`
	PairFactory string        `toml:"pair_factory"`
	Router      string        `toml:"router"`
	PoolFactory string        `toml:"pool_factory"`
	Quoter      string        `toml:"quoter"`
	FeeTiers    []int         `toml:"fee_tiers"`
	Tokens      []TokenConfig `toml:"tokens"`
}

// TokenConfig registers one token in the pair universe.
type TokenConfig struct {
	Symbol   string `toml:"symbol"`
	Address  string `toml:"address"`
	Decimals int    `toml:"decimals"`
}

// WalletConfig holds the operator key material.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// RelayConfig holds the private submission relay parameters. SigningKey is
// the detached reputation identity the relay authenticates requests with; it
// never holds funds, and the operator key is reused when it is empty.
type RelayConfig struct {
	Enabled    bool   `toml:"enabled"`
	URL        string `toml:"url"`
	SigningKey string `toml:"signing_key"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig holds history archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
	Prune         bool     `toml:"prune"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ServerConfig holds HTTP status server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"` // if empty, authentication is disabled
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. The
// factory, router, and quoter defaults are the canonical mainnet
// deployments.
func Defaults() Config {
	return Config{
		Scan: ScanConfig{
			Interval:     duration{12 * time.Second},
			MinProfitBps: 10,
			Notional:     10_000,
			SlippageBps:  50,
			Live:         false,
			Preflight:    true,
			WaitTimeout:  duration{3 * time.Minute},
		},
		Network: NetworkConfig{
			ChainID:     1,
			PremiumBps:  5,
			PairFactory: "0x5C69bEe701ef814a2B6a3EDD4B1652CB9cc5aA6f",
			Router:      "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
			PoolFactory: "0x1F98431c8aD98523631AE4a59f267346ea31F984",
			Quoter:      "0xb27308f9F90D607463bb33eA1BeBb41C27CE5AB6",
			FeeTiers:    []int{500, 3000, 10000},
		},
		Relay: RelayConfig{
			Enabled: false,
			URL:     "https://relay.flashbots.net",
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "flasharb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "flasharb-data",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
			Prune:         false,
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity", "settlement_settled", "settlement_failed", "error"},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8080,
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch": true,
	"trade": true,
	"once":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, trade, once)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Scan
	if c.Scan.TriggerOnHeads {
		if c.Network.WSURL == "" {
			errs = append(errs, "scan: trigger_on_heads requires network.ws_url")
		}
	} else if c.Scan.Interval.Duration <= 0 {
		errs = append(errs, "scan: interval must be > 0")
	}
	if c.Scan.MinProfitBps < 0 {
		errs = append(errs, "scan: min_profit_bps must be >= 0")
	}
	if c.Scan.Notional <= 0 {
		errs = append(errs, "scan: notional must be > 0")
	}
	if c.Scan.SlippageBps < 0 || c.Scan.SlippageBps >= 10_000 {
		errs = append(errs, fmt.Sprintf("scan: slippage_bps must be 0-9999, got %d", c.Scan.SlippageBps))
	}
	if len(c.Scan.Pairs) == 0 {
		errs = append(errs, "scan: at least one pair must be configured")
	}
	registry := map[string]bool{}
	for i, t := range c.Network.Tokens {
		sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if sym == "" {
			errs = append(errs, fmt.Sprintf("network: tokens[%d]: symbol must not be empty", i))
			continue
		}
		if registry[sym] {
			errs = append(errs, fmt.Sprintf("network: tokens[%d]: duplicate symbol %q", i, t.Symbol))
		}
		registry[sym] = true
		if !common.IsHexAddress(t.Address) {
			errs = append(errs, fmt.Sprintf("network: tokens[%d] (%s): invalid address %q", i, t.Symbol, t.Address))
		}
		if t.Decimals < 0 || t.Decimals > 255 {
			errs = append(errs, fmt.Sprintf("network: tokens[%d] (%s): decimals must be 0-255, got %d", i, t.Symbol, t.Decimals))
		}
	}
	for i, p := range c.Scan.Pairs {
		base := strings.ToUpper(strings.TrimSpace(p.Base))
		quote := strings.ToUpper(strings.TrimSpace(p.Quote))
		if base == "" || quote == "" {
			errs = append(errs, fmt.Sprintf("scan: pairs[%d]: base and quote must be set", i))
			continue
		}
		if base == quote {
			errs = append(errs, fmt.Sprintf("scan: pairs[%d]: base and quote must differ", i))
		}
		if !registry[base] {
			errs = append(errs, fmt.Sprintf("scan: pairs[%d]: base %q not in network.tokens", i, p.Base))
		}
		if !registry[quote] {
			errs = append(errs, fmt.Sprintf("scan: pairs[%d]: quote %q not in network.tokens", i, p.Quote))
		}
		for j, sp := range p.Stable {
			if !common.IsHexAddress(sp.Pool) {
				errs = append(errs, fmt.Sprintf("scan: pairs[%d].stable[%d]: invalid pool address %q", i, j, sp.Pool))
			}
			if sp.BaseCoin < 0 || sp.QuoteCoin < 0 {
				errs = append(errs, fmt.Sprintf("scan: pairs[%d].stable[%d]: coin indices must be >= 0", i, j))
			}
			if sp.BaseCoin == sp.QuoteCoin {
				errs = append(errs, fmt.Sprintf("scan: pairs[%d].stable[%d]: base_coin and quote_coin must differ", i, j))
			}
		}
	}

	// Network
	if c.Network.RPCURL == "" {
		errs = append(errs, "network: rpc_url must not be empty")
	}
	if c.Network.ChainID <= 0 {
		errs = append(errs, "network: chain_id must be positive")
	}
	if c.Network.PremiumBps < 0 {
		errs = append(errs, "network: premium_bps must be >= 0")
	}
	for _, field := range []struct{ name, addr string }{
		{"pair_factory", c.Network.PairFactory},
		{"router", c.Network.Router},
		{"pool_factory", c.Network.PoolFactory},
		{"quoter", c.Network.Quoter},
	} {
		if field.addr != "" && !common.IsHexAddress(field.addr) {
			errs = append(errs, fmt.Sprintf("network: %s: invalid address %q", field.name, field.addr))
		}
	}
	for _, tier := range c.Network.FeeTiers {
		if tier <= 0 || tier >= 1_000_000 {
			errs = append(errs, fmt.Sprintf("network: fee_tiers: tier must be 1-999999 ppm, got %d", tier))
		}
	}

	// Trading modes need the on-chain pieces and a signing key.
	trades := c.Mode == "trade" || (c.Mode == "once" && c.Scan.Live)
	if trades {
		if !common.IsHexAddress(c.Network.Contract) {
			errs = append(errs, "network: contract must be a valid address for mode "+c.Mode)
		}
		if !common.IsHexAddress(c.Network.LenderPool) {
			errs = append(errs, "network: lender_pool must be a valid address for mode "+c.Mode)
		}
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
		}
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Relay
	if c.Relay.Enabled && c.Relay.URL == "" {
		errs = append(errs, "relay: url must not be empty when enabled")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if !c.S3.Enabled {
			errs = append(errs, "archive: requires s3.enabled")
		}
		if !c.Postgres.Enabled {
			errs = append(errs, "archive: requires postgres.enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be > 0")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
