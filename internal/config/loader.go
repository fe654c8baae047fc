package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLASHARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLASHARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Scan ──
	setDuration(&cfg.Scan.Interval, "FLASHARB_SCAN_INTERVAL")
	setBool(&cfg.Scan.TriggerOnHeads, "FLASHARB_SCAN_TRIGGER_ON_HEADS")
	setInt64(&cfg.Scan.MinProfitBps, "FLASHARB_SCAN_MIN_PROFIT_BPS")
	setInt64(&cfg.Scan.Notional, "FLASHARB_SCAN_NOTIONAL")
	setInt64(&cfg.Scan.SlippageBps, "FLASHARB_SCAN_SLIPPAGE_BPS")
	setBool(&cfg.Scan.Live, "FLASHARB_SCAN_LIVE")
	setBool(&cfg.Scan.Preflight, "FLASHARB_SCAN_PREFLIGHT")
	setDuration(&cfg.Scan.WaitTimeout, "FLASHARB_SCAN_WAIT_TIMEOUT")

	// ── Network ──
	setStr(&cfg.Network.RPCURL, "FLASHARB_NETWORK_RPC_URL")
	setStr(&cfg.Network.WSURL, "FLASHARB_NETWORK_WS_URL")
	setInt64(&cfg.Network.ChainID, "FLASHARB_NETWORK_CHAIN_ID")
	setStr(&cfg.Network.Contract, "FLASHARB_NETWORK_CONTRACT")
	setStr(&cfg.Network.LenderPool, "FLASHARB_NETWORK_LENDER_POOL")
	setInt64(&cfg.Network.PremiumBps, "FLASHARB_NETWORK_PREMIUM_BPS")
	setStr(&cfg.Network.PairFactory, "FLASHARB_NETWORK_PAIR_FACTORY")
	setStr(&cfg.Network.Router, "FLASHARB_NETWORK_ROUTER")
	setStr(&cfg.Network.PoolFactory, "FLASHARB_NETWORK_POOL_FACTORY")
	setStr(&cfg.Network.Quoter, "FLASHARB_NETWORK_QUOTER")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "FLASHARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "FLASHARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "FLASHARB_WALLET_KEY_PASSWORD")

	// ── Relay ──
	setBool(&cfg.Relay.Enabled, "FLASHARB_RELAY_ENABLED")
	setStr(&cfg.Relay.URL, "FLASHARB_RELAY_URL")
	setStr(&cfg.Relay.SigningKey, "FLASHARB_RELAY_SIGNING_KEY")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "FLASHARB_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "FLASHARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "FLASHARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "FLASHARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "FLASHARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "FLASHARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "FLASHARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "FLASHARB_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "FLASHARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "FLASHARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "FLASHARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FLASHARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FLASHARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLASHARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLASHARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLASHARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLASHARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLASHARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FLASHARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FLASHARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FLASHARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "FLASHARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FLASHARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FLASHARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FLASHARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FLASHARB_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "FLASHARB_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "FLASHARB_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "FLASHARB_ARCHIVE_INTERVAL")
	setBool(&cfg.Archive.Prune, "FLASHARB_ARCHIVE_PRUNE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FLASHARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FLASHARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FLASHARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FLASHARB_NOTIFY_EVENTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "FLASHARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "FLASHARB_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "FLASHARB_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "FLASHARB_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FLASHARB_MODE")
	setStr(&cfg.LogLevel, "FLASHARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
