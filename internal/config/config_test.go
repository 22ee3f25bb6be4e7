package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestParsePairSpec(t *testing.T) {
	pair, err := ParsePairSpec("SOL/USDC:So11:EPjF:1000:5000000:poolA|poolB")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if pair.Name != "SOL/USDC" || pair.TokenA != "So11" || pair.TokenB != "EPjF" {
		t.Fatalf("unexpected identity: %+v", pair)
	}
	if pair.MinTradeSize != 1000 || pair.MaxTradeSize != 5000000 {
		t.Fatalf("unexpected sizes: %+v", pair)
	}
	if len(pair.Pools) != 2 || pair.Pools[1] != "poolB" {
		t.Fatalf("unexpected pools: %v", pair.Pools)
	}

	for _, bad := range []string{"", "A:B:C", "N:A:B:x:10", "N:A:B:1:-5", "N:A:B:1:2:p:extra"} {
		if _, err := ParsePairSpec(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestLoadDefaultsAndFlags(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringSlice("pair", nil, "")
	flags.Float64("min-net-profit-pct", 0, "")
	if err := flags.Parse([]string{"--pair", "SOL/USDC:SOL:USDC:1:50", "--min-net-profit-pct", "0.25"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MinNetProfitPct != 0.25 {
		t.Fatalf("flag should override default, got %v", cfg.MinNetProfitPct)
	}
	if cfg.TradeSizeSamples != 20 || cfg.FlashLoanFeeRate != 0.0009 || cfg.MaxPoolAge != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.OracleFeed != "" || cfg.OraclePreset != "balanced" || cfg.OracleMaxStaleness != 0 {
		t.Fatalf("unexpected oracle defaults: %+v", cfg)
	}
	pairs := cfg.MonitoredPairs()
	if len(pairs) != 1 || pairs[0].MaxTradeSize != 50 {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "arbscan.yaml")
	content := `
max-pool-age: 5s
spacing: log
oracle-feed: ./data/oracle.jsonl
oracle-preset: conservative
oracle-max-staleness: 45s
pairs:
  - name: SOL/USDC
    token_a: SOL
    token_b: USDC
    min_trade_size: 10
    max_trade_size: 1000
    pools: [a, b]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ARBSCAN_MAX_CONCURRENCY", "9")

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxPoolAge != 5*time.Second || cfg.Spacing != "log" {
		t.Fatalf("config file values not applied: %+v", cfg)
	}
	if cfg.OracleFeed != "./data/oracle.jsonl" || cfg.OraclePreset != "conservative" || cfg.OracleMaxStaleness != 45*time.Second {
		t.Fatalf("oracle values not applied: %+v", cfg)
	}
	if cfg.MaxConcurrency != 9 {
		t.Fatalf("env override not applied: %d", cfg.MaxConcurrency)
	}
	pairs := cfg.MonitoredPairs()
	if len(pairs) != 1 || pairs[0].MinTradeSize != 10 || len(pairs[0].Pools) != 2 {
		t.Fatalf("unexpected pairs: %+v", pairs)
	}
}
