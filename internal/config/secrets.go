package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	// Wallet
	out.Wallet = cfg.Wallet
	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)

	// Network: the RPC URLs frequently embed provider API keys.
	out.Network = cfg.Network
	redact(&out.Network.RPCURL)
	redact(&out.Network.WSURL)

	// Relay
	out.Relay = cfg.Relay
	redact(&out.Relay.SigningKey)

	// Postgres
	out.Postgres = cfg.Postgres
	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)

	// Redis
	out.Redis = cfg.Redis
	redact(&out.Redis.Password)

	// S3
	out.S3 = cfg.S3
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	// Notify
	out.Notify = cfg.Notify
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Server
	out.Server = cfg.Server
	redact(&out.Server.APIKey)

	// Copy slices so callers cannot mutate the original through the redacted
	// copy.
	if cfg.Notify.Events != nil {
		out.Notify.Events = make([]string, len(cfg.Notify.Events))
		copy(out.Notify.Events, cfg.Notify.Events)
	}
	if cfg.Server.CORSOrigins != nil {
		out.Server.CORSOrigins = make([]string, len(cfg.Server.CORSOrigins))
		copy(out.Server.CORSOrigins, cfg.Server.CORSOrigins)
	}
	if cfg.Network.FeeTiers != nil {
		out.Network.FeeTiers = make([]int, len(cfg.Network.FeeTiers))
		copy(out.Network.FeeTiers, cfg.Network.FeeTiers)
	}
	if cfg.Network.Tokens != nil {
		out.Network.Tokens = make([]TokenConfig, len(cfg.Network.Tokens))
		copy(out.Network.Tokens, cfg.Network.Tokens)
	}
	if cfg.Scan.Pairs != nil {
		out.Scan.Pairs = make([]PairConfig, len(cfg.Scan.Pairs))
		copy(out.Scan.Pairs, cfg.Scan.Pairs)
		for i, p := range cfg.Scan.Pairs {
			if p.Stable != nil {
				out.Scan.Pairs[i].Stable = make([]StablePoolConfig, len(p.Stable))
				copy(out.Scan.Pairs[i].Stable, p.Stable)
			}
		}
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
