package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ethereum/go-ethereum/common"

	"github.com/SMSDAO/aaveflashloan/internal/cache/redis"
	"github.com/SMSDAO/aaveflashloan/internal/executor"
	"github.com/SMSDAO/aaveflashloan/internal/headstream"
	"github.com/SMSDAO/aaveflashloan/internal/relay"
	"github.com/SMSDAO/aaveflashloan/internal/scanner"
	"github.com/SMSDAO/aaveflashloan/internal/server"
	"github.com/SMSDAO/aaveflashloan/internal/server/handler"
	"github.com/SMSDAO/aaveflashloan/internal/settlement"
	"github.com/SMSDAO/aaveflashloan/internal/wallet"
)

// WatchMode runs the scan loop without a trader: opportunities are detected,
// journaled, and served over the API, but nothing is ever submitted.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode",
		slog.Int("pairs", len(deps.Pairs)),
	)

	g, ctx := errgroup.WithContext(ctx)

	scan := a.buildScanner(deps, nil, false)
	a.startScanLoop(ctx, g, scan)
	a.startArchiver(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, scan)
	}

	return g.Wait()
}

// TradeMode runs the full pipeline: scan, rank, and hand the best
// opportunity of each cycle to the executor. Submission still requires
// scan.live; with it off the executor rehearses and refuses to send.
func (a *App) TradeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting trade mode",
		slog.Int("pairs", len(deps.Pairs)),
		slog.Bool("live", a.cfg.Scan.Live),
		slog.Bool("relay", a.cfg.Relay.Enabled),
	)

	g, ctx := errgroup.WithContext(ctx)

	exec, err := a.buildExecutor(deps)
	if err != nil {
		return fmt.Errorf("trade mode: %w", err)
	}

	scan := a.buildScanner(deps, exec, true)
	a.startScanLoop(ctx, g, scan)
	a.startArchiver(ctx, g, deps)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, scan)
	}

	return g.Wait()
}

// OnceMode runs a single scan cycle and exits. With scan.live set it also
// executes the best opportunity; without it the cycle only records.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting single cycle",
		slog.Int("pairs", len(deps.Pairs)),
		slog.Bool("live", a.cfg.Scan.Live),
	)

	var trader scanner.Trader
	if a.cfg.Scan.Live {
		exec, err := a.buildExecutor(deps)
		if err != nil {
			return fmt.Errorf("once mode: %w", err)
		}
		trader = exec
	}

	scan := a.buildScanner(deps, trader, a.cfg.Scan.Live)
	scan.Trigger(ctx)

	stats := scan.Stats()
	a.logger.InfoContext(ctx, "single cycle finished",
		slog.Uint64("opportunities", stats.Opportunities),
		slog.Uint64("settlements", stats.Settlements),
		slog.Duration("took", stats.LastDuration),
	)
	return ctx.Err()
}

// buildScanner assembles the scan loop over the wired dependencies. trader
// may be nil for modes that never execute.
func (a *App) buildScanner(deps *Dependencies, trader scanner.Trader, execute bool) *scanner.Scanner {
	return scanner.New(scanner.Config{
		Interval: a.cfg.Scan.Interval.Duration,
		Pairs:    deps.Pairs,
		Execute:  execute,
	}, deps.Adapter, deps.Matcher, trader, deps.Journal, a.logger)
}

// buildExecutor loads the operator wallet and assembles the settlement
// pipeline around it.
func (a *App) buildExecutor(deps *Dependencies) (*executor.Executor, error) {
	w, err := wallet.Load(wallet.KeySource{
		RawHex:   a.cfg.Wallet.PrivateKey,
		FilePath: a.cfg.Wallet.EncryptedKeyPath,
		Password: a.cfg.Wallet.KeyPassword,
	}, big.NewInt(a.cfg.Network.ChainID))
	if err != nil {
		return nil, fmt.Errorf("build executor: load wallet: %w", err)
	}
	a.logger.Info("operator wallet loaded",
		slog.String("address", w.Address().Hex()),
	)

	planner := executor.NewPlanner(executor.PlannerConfig{
		NotionalWhole: a.cfg.Scan.Notional,
		SlippageBps:   a.cfg.Scan.SlippageBps,
		PremiumBps:    a.cfg.Network.PremiumBps,
	}, deps.Tokens, a.logger)

	// The engine recorder stays nil here: preflight rehearsals run through
	// the same engine, and a rehearsal must not leave journal entries.
	engine := settlement.New(settlement.Config{
		Operator: w.Address(),
		Lender:   common.HexToAddress(a.cfg.Network.LenderPool),
	}, nil, a.logger)

	var bundles executor.BundleSender
	if a.cfg.Relay.Enabled {
		// The relay authenticates requests with a reputation identity that
		// never holds funds. Configure one separately; the operator key is
		// only a fallback.
		signer := w
		if a.cfg.Relay.SigningKey != "" {
			signer, err = wallet.Load(wallet.KeySource{RawHex: a.cfg.Relay.SigningKey}, big.NewInt(a.cfg.Network.ChainID))
			if err != nil {
				return nil, fmt.Errorf("build executor: load relay identity: %w", err)
			}
		}
		bundles = relay.NewClient(a.cfg.Relay.URL, signer, a.logger)
	}
	var guard executor.TradeGuard
	if deps.TradeLock != nil {
		guard = deps.TradeLock
	}

	return executor.New(executor.Config{
		Contract:    common.HexToAddress(a.cfg.Network.Contract),
		Lender:      common.HexToAddress(a.cfg.Network.LenderPool),
		ChainID:     big.NewInt(a.cfg.Network.ChainID),
		Live:        a.cfg.Scan.Live,
		Preflight:   a.cfg.Scan.Preflight,
		WaitTimeout: a.cfg.Scan.WaitTimeout.Duration,
	}, deps.Backend, w, planner, engine, deps.Adapter, bundles, deps.Journal, guard, a.logger), nil
}

// startScanLoop launches the scanner on either head triggers or the fixed
// interval, depending on configuration.
func (a *App) startScanLoop(ctx context.Context, g *errgroup.Group, scan *scanner.Scanner) {
	if a.cfg.Scan.TriggerOnHeads && a.cfg.Network.WSURL != "" {
		heads := headstream.New(a.cfg.Network.WSURL, a.logger)
		g.Go(func() error {
			return heads.Run(ctx)
		})
		g.Go(func() error {
			return scan.RunOnHeads(ctx, heads.Heads())
		})
		return
	}
	g.Go(func() error {
		return scan.Run(ctx)
	})
}

// startArchiver launches the periodic cold-storage export when configured.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	if deps.Archiver == nil {
		return
	}
	g.Go(func() error {
		return deps.Archiver.Run(ctx)
	})
}

// startHTTPServer assembles the API handlers over whatever backends are
// wired and runs the server until the context ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, scans handler.ScanSource) {
	var pgPing, redisPing handler.Pinger
	if deps.PG != nil {
		pgPing = deps.PG
	}
	if deps.Redis != nil {
		redisPing = deps.Redis
	}

	var opps handler.OpportunitySource
	var setts handler.SettlementSource
	if deps.OpportunityStore != nil {
		opps = deps.OpportunityStore
	}
	if deps.SettlementStore != nil {
		setts = deps.SettlementStore
	}

	var events handler.EventSource
	if deps.EventStream != nil {
		events = deps.EventStream
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, server.Handlers{
		Health:  handler.NewHealthHandler(pgPing, redisPing, a.logger),
		Status:  handler.NewStatusHandler(a.cfg.Mode, scans),
		History: handler.NewHistoryHandler(opps, setts, a.logger),
		Events: handler.NewEventsHandler(events, map[string]string{
			"opportunities": redis.OpportunityStream,
			"settlements":   redis.SettlementStream,
		}, a.logger),
	}, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
