package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"liquidityArb/internal/arbitrage"
	"liquidityArb/internal/config"
	"liquidityArb/internal/liquidity"
	"liquidityArb/internal/model"
	"liquidityArb/internal/oracle"
	"liquidityArb/internal/poolcache"
	"liquidityArb/internal/storage"
	"liquidityArb/internal/storage/postgres"
	"liquidityArb/internal/storage/redis"
)

type pipeline struct {
	cache    *poolcache.Cache
	monitor  *liquidity.Monitor
	detector *arbitrage.Detector

	// set when an oracle feed is configured
	prices    *oracle.Book
	validator *oracle.Validator
}

func buildPipeline(cfg config.Config, now func() time.Time, logger *zap.Logger) (*pipeline, error) {
	cache := poolcache.New(cfg.CacheShards)
	monitor, err := liquidity.NewMonitor(liquidity.Config{
		MaxPoolAge:       cfg.MaxPoolAge,
		StabilityPools:   cfg.StabilityPools,
		StabilitySamples: cfg.StabilitySamples,
		StabilityWindow:  cfg.StabilityWindow,
		Now:              now,
	}, cache, logger.Named("monitor"))
	if err != nil {
		return nil, fmt.Errorf("create monitor: %w", err)
	}

	spacing, err := arbitrage.ParseSpacing(cfg.Spacing)
	if err != nil {
		return nil, err
	}
	pairs := cfg.MonitoredPairs()
	if len(pairs) == 0 {
		return nil, fmt.Errorf("at least one pair is required: %w", arbitrage.ErrInvalidConfiguration)
	}

	detector, err := arbitrage.New(arbitrage.Config{
		Pairs:            pairs,
		MinNetProfitPct:  cfg.MinNetProfitPct,
		MinExecutionProb: cfg.MinExecutionProb,
		TradeSizeSamples: cfg.TradeSizeSamples,
		Spacing:          spacing,
		FlashLoanFeeRate: cfg.FlashLoanFeeRate,
		TipFraction:      cfg.TipFraction,
		BaseTxFee:        cfg.BaseTxFee,
		PriorityFee:      cfg.PriorityFee,
		EVFullScale:      cfg.EVFullScale,
		MaxOpportunities: cfg.MaxOpportunities,
		MaxConcurrency:   cfg.MaxConcurrency,
		SkipSameDex:      cfg.SkipSameDex,
	}, monitor, logger.Named("detector"))
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}

	p := &pipeline{cache: cache, monitor: monitor, detector: detector}
	if cfg.OracleFeed == "" {
		return p, nil
	}

	oracleCfg, err := oracleConfig(cfg)
	if err != nil {
		return nil, err
	}
	p.prices = oracle.NewBook()
	p.validator, err = oracle.NewValidator(p.prices, oracleCfg, monitor.Now, logger.Named("oracle"))
	if err != nil {
		return nil, fmt.Errorf("create oracle validator: %w", err)
	}
	return p, nil
}

// oracleConfig starts from the configured preset and applies any explicit limits.
func oracleConfig(cfg config.Config) (oracle.ValidationConfig, error) {
	out, err := oracle.ParsePreset(cfg.OraclePreset)
	if err != nil {
		return oracle.ValidationConfig{}, err
	}
	if cfg.OracleMaxDeviationPct > 0 {
		out.MaxDeviationPct = cfg.OracleMaxDeviationPct
	}
	if cfg.OracleMaxConfidencePct > 0 {
		out.MaxConfidencePct = cfg.OracleMaxConfidencePct
	}
	if cfg.OracleMaxStaleness > 0 {
		out.MaxStaleness = cfg.OracleMaxStaleness
	}
	return out, nil
}

type sinks struct {
	sink  storage.Sink
	store *postgres.Store
	close func()
}

// buildSinks wires every configured output. Redis only receives executable opportunities.
// With a validator, every output only receives opportunities that agree with the oracle.
func buildSinks(ctx context.Context, cfg config.Config, validator *oracle.Validator, logger *zap.Logger) (*sinks, error) {
	var (
		all     storage.MultiSink
		closers []func()
		out     = &sinks{}
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	retry := func(next storage.Sink, name string) storage.Sink {
		return storage.NewRetrySink(next, cfg.MaxRetries, cfg.RetryBackoff, logger.With(zap.String("sink", name)))
	}

	if cfg.Out != "" {
		opportunityLog := storage.NewOpportunityLog(cfg.Out, cfg.OutMaxBytes)
		closers = append(closers, func() {
			if err := opportunityLog.Close(); err != nil {
				logger.Warn("close opportunity log", zap.Error(err))
			}
		})
		all = append(all, retry(opportunityLog, "jsonl"))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, err
		}
		out.store = store
		all = append(all, retry(store, "postgres"))
	}

	if cfg.RedisAddr != "" {
		publisher, err := redis.NewPublisher(ctx, redis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		closers = append(closers, func() { _ = publisher.Close() })
		all = append(all, storage.FilterSink{
			Next: retry(publisher, "redis"),
			Keep: func(opp model.ArbitrageOpportunity) bool {
				return arbitrage.IsExecutable(opp, cfg.MinEVScore, cfg.MinNetProfitPct)
			},
		})
	}

	out.sink = all
	if validator != nil {
		out.sink = storage.FilterSink{Next: all, Keep: validator.Keep}
	}
	out.close = closeAll
	return out, nil
}
