package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"liquidityArb/internal/config"
	"liquidityArb/internal/feed"
)

const stateName = "arbscan"

func runScanner(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(cfg, time.Now, logger)
	if err != nil {
		return err
	}
	out, err := buildSinks(ctx, cfg, p.validator, logger)
	if err != nil {
		return err
	}
	defer out.close()

	if out.store != nil {
		if last, ok, err := out.store.LoadState(ctx, stateName); err != nil {
			logger.Warn("load scanner state", zap.Error(err))
		} else if ok {
			logger.Info("previous scan", zap.Time("last_scan_at", last))
		}
	}

	logger.Info("scanner start",
		zap.String("feed", cfg.Feed),
		zap.Int("pairs", len(cfg.Pairs)),
		zap.Duration("scan_interval", cfg.ScanInterval),
		zap.Duration("max_pool_age", cfg.MaxPoolAge),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", out.store != nil),
		zap.Bool("redis", cfg.RedisAddr != ""),
		zap.String("oracle_feed", cfg.OracleFeed),
	)

	replayer := feed.NewReplayer(cfg.Feed, p.monitor, logger.Named("feed"))
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		_, err := replayer.Follow(groupCtx, cfg.PollInterval)
		return err
	})
	if p.prices != nil {
		prices := feed.NewPriceReplayer(cfg.OracleFeed, p.prices, logger.Named("oracle_feed"))
		group.Go(func() error {
			_, err := prices.Follow(groupCtx, cfg.PollInterval)
			return err
		})
	}
	group.Go(func() error {
		return scanLoop(groupCtx, cfg, p, out, logger)
	})
	return group.Wait()
}

func scanLoop(ctx context.Context, cfg config.Config, p *pipeline, out *sinks, logger *zap.Logger) error {
	scanInterval := cfg.ScanInterval
	if scanInterval <= 0 {
		scanInterval = 2 * time.Second
	}
	pruneInterval := cfg.PruneInterval
	if pruneInterval <= 0 {
		pruneInterval = 30 * time.Second
	}

	scanTicker := time.NewTicker(scanInterval)
	defer scanTicker.Stop()
	pruneTicker := time.NewTicker(pruneInterval)
	defer pruneTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pruneTicker.C:
			removed := p.monitor.PruneStale(p.monitor.Now())
			stats := p.monitor.Stats()
			logger.Info("pool set",
				zap.Int("pools", stats.Pools),
				zap.Int("fresh", stats.Fresh),
				zap.Int("pairs", stats.Pairs),
				zap.Int("pruned", removed),
			)
		case <-scanTicker.C:
			scanOnce(ctx, cfg, p, out, logger)
		}
	}
}

func scanOnce(ctx context.Context, cfg config.Config, p *pipeline, out *sinks, logger *zap.Logger) {
	opps, err := p.detector.ScanOpportunities(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("scan failed", zap.Error(err))
		}
		return
	}
	if len(opps) > 0 {
		best := opps[0]
		logger.Info("opportunities",
			zap.Int("count", len(opps)),
			zap.String("best_pair", best.Pair),
			zap.String("best_buy_pool", best.BuyPool),
			zap.String("best_sell_pool", best.SellPool),
			zap.Float64("best_net_profit_pct", best.NetProfitPct),
			zap.Float64("best_ev_score", best.EVScore),
			zap.Stringer("best_confidence", best.Confidence),
		)
	}

	if err := out.sink.PutOpportunities(ctx, opps); err != nil {
		logger.Warn("write opportunities", zap.Error(err))
	}
	if out.store == nil {
		return
	}
	if cfg.PersistPools {
		if err := out.store.UpsertPools(ctx, p.cache.Snapshot()); err != nil {
			logger.Warn("persist pools", zap.Error(err))
		}
	}
	if err := out.store.SaveState(ctx, stateName, p.monitor.Now()); err != nil {
		logger.Warn("save scanner state", zap.Error(err))
	}
}
