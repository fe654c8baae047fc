package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/SMSDAO/aaveflashloan/internal/arbitrage"
	s3blob "github.com/SMSDAO/aaveflashloan/internal/blob/s3"
	"github.com/SMSDAO/aaveflashloan/internal/cache/redis"
	"github.com/SMSDAO/aaveflashloan/internal/config"
	"github.com/SMSDAO/aaveflashloan/internal/domain"
	"github.com/SMSDAO/aaveflashloan/internal/journal"
	"github.com/SMSDAO/aaveflashloan/internal/notify"
	"github.com/SMSDAO/aaveflashloan/internal/store/postgres"
	"github.com/SMSDAO/aaveflashloan/internal/venue"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
// Optional backends stay nil when their config section is disabled.
type Dependencies struct {
	// Chain access
	Backend *ethclient.Client
	Adapter *venue.Adapter

	// Scan universe
	Pairs  []venue.PairSpec
	Tokens []domain.Token

	// Detection
	Matcher *arbitrage.Matcher

	// Persistence
	PG               *postgres.Client
	OpportunityStore *postgres.OpportunityStore
	SettlementStore  *postgres.SettlementStore

	// Caching and streams
	Redis       *redis.Client
	QuoteCache  *redis.QuoteCache
	EventStream *redis.EventStream
	TradeLock   *redis.TradeLock

	// Cold storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Journal fans scan and settlement results out to every sink above.
	Journal *journal.Recorder
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Chain backend ---
	backend, err := ethclient.DialContext(ctx, cfg.Network.RPCURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: dial rpc: %w", err)
	}
	closers = append(closers, backend.Close)
	deps.Backend = backend

	// --- Scan universe ---
	tokens, registry, err := buildTokens(cfg)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: tokens: %w", err)
	}
	deps.Tokens = tokens

	deps.Pairs, err = buildPairs(cfg, registry)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: pairs: %w", err)
	}

	// --- Venue adapter ---
	feeTiers := make([]uint32, 0, len(cfg.Network.FeeTiers))
	for _, tier := range cfg.Network.FeeTiers {
		feeTiers = append(feeTiers, uint32(tier))
	}
	deps.Adapter = venue.NewAdapter(backend, venue.Config{
		PairFactory: common.HexToAddress(cfg.Network.PairFactory),
		Router:      common.HexToAddress(cfg.Network.Router),
		PoolFactory: common.HexToAddress(cfg.Network.PoolFactory),
		Quoter:      common.HexToAddress(cfg.Network.Quoter),
		FeeTiers:    feeTiers,
	}, logger)

	// --- Matcher ---
	deps.Matcher = arbitrage.NewMatcher(arbitrage.MatcherConfig{
		MinProfitBps: cfg.Scan.MinProfitBps,
	}, logger)

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.PG = pgClient
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.SettlementStore = postgres.NewSettlementStore(pool)
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.QuoteCache = redis.NewQuoteCache(redisClient)
		deps.EventStream = redis.NewEventStream(redisClient)
		deps.TradeLock = redis.NewTradeLock(redisClient)
	}

	// --- S3 archival ---
	// The S3 client's only consumer is the archiver, so it is built only when
	// archival is on. Validation guarantees postgres is on too.
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(s3blob.ArchiverConfig{
			RetentionDays: cfg.Archive.RetentionDays,
			Interval:      cfg.Archive.Interval.Duration,
			Prune:         cfg.Archive.Prune,
		}, s3blob.NewWriter(s3Client), deps.OpportunityStore, deps.SettlementStore, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Journal ---
	// Sinks are passed as explicit nil interfaces when disabled; assigning a
	// nil *T to an interface directly would make the nil check inside the
	// recorder useless.
	var (
		jOpps   journal.OpportunityStore
		jSetts  journal.SettlementStore
		jCache  journal.Cache
		jStream journal.Stream
	)
	if deps.OpportunityStore != nil {
		jOpps = deps.OpportunityStore
	}
	if deps.SettlementStore != nil {
		jSetts = deps.SettlementStore
	}
	if deps.QuoteCache != nil {
		jCache = deps.QuoteCache
	}
	if deps.EventStream != nil {
		jStream = deps.EventStream
	}
	deps.Journal = journal.New(jOpps, jSetts, jCache, jStream, deps.Notifier, logger)

	return deps, cleanup, nil
}

// buildTokens converts the configured token registry to domain tokens and
// returns them with a symbol lookup map.
func buildTokens(cfg *config.Config) ([]domain.Token, map[string]domain.Token, error) {
	tokens := make([]domain.Token, 0, len(cfg.Network.Tokens))
	registry := make(map[string]domain.Token, len(cfg.Network.Tokens))
	for _, t := range cfg.Network.Tokens {
		sym := strings.ToUpper(strings.TrimSpace(t.Symbol))
		if sym == "" {
			return nil, nil, fmt.Errorf("token with empty symbol")
		}
		if !common.IsHexAddress(t.Address) {
			return nil, nil, fmt.Errorf("token %s: bad address %q", sym, t.Address)
		}
		tok := domain.Token{
			Symbol:   sym,
			Address:  common.HexToAddress(t.Address),
			Decimals: uint8(t.Decimals),
		}
		tokens = append(tokens, tok)
		registry[sym] = tok
	}
	return tokens, registry, nil
}

// buildPairs resolves the configured pairs against the token registry.
func buildPairs(cfg *config.Config, registry map[string]domain.Token) ([]venue.PairSpec, error) {
	pairs := make([]venue.PairSpec, 0, len(cfg.Scan.Pairs))
	for _, p := range cfg.Scan.Pairs {
		base, ok := registry[strings.ToUpper(strings.TrimSpace(p.Base))]
		if !ok {
			return nil, fmt.Errorf("pair %s/%s: base token not registered", p.Base, p.Quote)
		}
		quote, ok := registry[strings.ToUpper(strings.TrimSpace(p.Quote))]
		if !ok {
			return nil, fmt.Errorf("pair %s/%s: quote token not registered", p.Base, p.Quote)
		}

		spec := venue.PairSpec{TokenPair: domain.TokenPair{Base: base, Quote: quote}}
		for _, sp := range p.Stable {
			name := sp.Name
			if name == "" {
				name = "stableswap"
			}
			spec.Stable = append(spec.Stable, venue.StablePool{
				Name:  name,
				Pool:  common.HexToAddress(sp.Pool),
				CoinI: sp.BaseCoin,
				CoinJ: sp.QuoteCoin,
			})
		}
		pairs = append(pairs, spec)
	}
	return pairs, nil
}
