package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "arbscan",
		Short:        "DEX liquidity monitor and arbitrage scanner",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Follow the pool update feed and scan periodically",
		RunE:  runScanner,
	}
	addScanFlags(runCmd.Flags())
	runCmd.Flags().Duration("poll-interval", 250*time.Millisecond, "feed poll interval once caught up")
	runCmd.Flags().Duration("scan-interval", 2*time.Second, "interval between scans")
	runCmd.Flags().Duration("prune-interval", 30*time.Second, "interval between stale pool pruning")
	runCmd.Flags().Bool("persist-pools", false, "upsert pool snapshots to Postgres after each scan")

	root.AddCommand(runCmd)

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Replay the pool update feed once and print the opportunities",
		RunE:  runOnce,
	}
	addScanFlags(scanCmd.Flags())
	scanCmd.Flags().Bool("wall-clock", false, "judge freshness against the current time instead of the newest update in the feed")

	root.AddCommand(scanCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addScanFlags(flags *pflag.FlagSet) {
	flags.String("feed", "./data/pool_updates.jsonl", "pool update JSONL path")
	flags.StringSlice("pair", nil, "monitored pair NAME:TOKEN_A:TOKEN_B:MIN:MAX[:POOL|POOL] (repeatable)")
	flags.Duration("max-pool-age", 30*time.Second, "pools older than this are stale")
	flags.Float64("min-net-profit-pct", 0.1, "minimum net profit percentage")
	flags.Float64("min-execution-prob", 0.5, "minimum combined execution probability")
	flags.Float64("min-ev-score", 0, "minimum ev score for alerting")
	flags.Int("trade-size-samples", 20, "trade sizes evaluated per pool pair")
	flags.String("spacing", "linear", "trade size spacing (linear, log)")
	flags.Float64("flash-loan-fee-rate", 0.0009, "flash loan fee as a fraction of notional")
	flags.Float64("tip-fraction", 0.10, "priority tip as a fraction of gross profit")
	flags.Float64("base-tx-fee", 0, "base transaction fee in quote units")
	flags.Float64("priority-fee", 0, "priority fee in quote units")
	flags.Int("max-opportunities", 100, "maximum opportunities per scan (0 for no cap)")
	flags.Bool("skip-same-dex", false, "skip pool pairs on the same dex")
	flags.String("out", "", "opportunity JSONL output path")
	flags.Int64("out-max-bytes", 0, "roll the opportunity JSONL over past this size (0 to never roll)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.String("redis-addr", "", "Redis address for opportunity alerts")
	flags.String("oracle-feed", "", "oracle price JSONL path; enables oracle validation of outputs")
	flags.String("oracle-preset", "balanced", "oracle validation preset (conservative, balanced, aggressive)")
	flags.Float64("oracle-max-deviation-pct", 0, "override the preset's maximum pool to oracle deviation")
	flags.Float64("oracle-max-confidence-pct", 0, "override the preset's maximum oracle confidence interval")
	flags.Duration("oracle-max-staleness", 0, "override the preset's maximum oracle price age")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
