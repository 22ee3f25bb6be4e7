package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"liquidityArb/internal/model"
)

// PairConfig is a monitored pair as written in the config file.
type PairConfig struct {
	Name         string   `mapstructure:"name"`
	TokenA       string   `mapstructure:"token_a"`
	TokenB       string   `mapstructure:"token_b"`
	MinTradeSize uint64   `mapstructure:"min_trade_size"`
	MaxTradeSize uint64   `mapstructure:"max_trade_size"`
	Pools        []string `mapstructure:"pools"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	Feed          string
	PollInterval  time.Duration
	ScanInterval  time.Duration
	PruneInterval time.Duration

	CacheShards      int
	MaxPoolAge       time.Duration
	StabilityPools   int
	StabilitySamples int
	StabilityWindow  time.Duration

	Pairs            []PairConfig
	MinNetProfitPct  float64
	MinExecutionProb float64
	MinEVScore       float64
	TradeSizeSamples int
	Spacing          string
	FlashLoanFeeRate float64
	TipFraction      float64
	BaseTxFee        float64
	PriorityFee      float64
	EVFullScale      float64
	MaxOpportunities int
	MaxConcurrency   int
	SkipSameDex      bool

	Out           string
	OutMaxBytes   int64
	PGDSN         string
	PersistPools  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisChannel  string
	MaxRetries    int
	RetryBackoff  time.Duration

	OracleFeed             string
	OraclePreset           string
	OracleMaxDeviationPct  float64
	OracleMaxConfidencePct float64
	OracleMaxStaleness     time.Duration

	LogLevel string
}

// Load merges config file, environment variables, and flags into Config.
// A .env file in the working directory is loaded into the environment first.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ARBSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("feed", "./data/pool_updates.jsonl")
	v.SetDefault("poll-interval", 250*time.Millisecond)
	v.SetDefault("scan-interval", 2*time.Second)
	v.SetDefault("prune-interval", 30*time.Second)
	v.SetDefault("cache-shards", 32)
	v.SetDefault("max-pool-age", 30*time.Second)
	v.SetDefault("stability-pools", 4096)
	v.SetDefault("stability-samples", 16)
	v.SetDefault("stability-window", 60*time.Second)
	v.SetDefault("min-net-profit-pct", 0.1)
	v.SetDefault("min-execution-prob", 0.5)
	v.SetDefault("min-ev-score", 0.0)
	v.SetDefault("trade-size-samples", 20)
	v.SetDefault("spacing", "linear")
	v.SetDefault("flash-loan-fee-rate", 0.0009)
	v.SetDefault("tip-fraction", 0.10)
	v.SetDefault("ev-full-scale", 100.0)
	v.SetDefault("max-opportunities", 100)
	v.SetDefault("max-concurrency", 4)
	v.SetDefault("redis-channel", "arbscan:opportunities")
	v.SetDefault("max-retries", 3)
	v.SetDefault("retry-backoff", 200*time.Millisecond)
	v.SetDefault("oracle-preset", "balanced")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var pairs []PairConfig
	if v.IsSet("pairs") {
		if err := v.UnmarshalKey("pairs", &pairs); err != nil {
			return Config{}, fmt.Errorf("decode pairs: %w", err)
		}
	}
	for _, spec := range getStringSlice(v, "pair") {
		pair, err := ParsePairSpec(spec)
		if err != nil {
			return Config{}, err
		}
		pairs = append(pairs, pair)
	}

	cfg := Config{
		Feed:          v.GetString("feed"),
		PollInterval:  v.GetDuration("poll-interval"),
		ScanInterval:  v.GetDuration("scan-interval"),
		PruneInterval: v.GetDuration("prune-interval"),

		CacheShards:      v.GetInt("cache-shards"),
		MaxPoolAge:       v.GetDuration("max-pool-age"),
		StabilityPools:   v.GetInt("stability-pools"),
		StabilitySamples: v.GetInt("stability-samples"),
		StabilityWindow:  v.GetDuration("stability-window"),

		Pairs:            pairs,
		MinNetProfitPct:  v.GetFloat64("min-net-profit-pct"),
		MinExecutionProb: v.GetFloat64("min-execution-prob"),
		MinEVScore:       v.GetFloat64("min-ev-score"),
		TradeSizeSamples: v.GetInt("trade-size-samples"),
		Spacing:          v.GetString("spacing"),
		FlashLoanFeeRate: v.GetFloat64("flash-loan-fee-rate"),
		TipFraction:      v.GetFloat64("tip-fraction"),
		BaseTxFee:        v.GetFloat64("base-tx-fee"),
		PriorityFee:      v.GetFloat64("priority-fee"),
		EVFullScale:      v.GetFloat64("ev-full-scale"),
		MaxOpportunities: v.GetInt("max-opportunities"),
		MaxConcurrency:   v.GetInt("max-concurrency"),
		SkipSameDex:      v.GetBool("skip-same-dex"),

		Out:           v.GetString("out"),
		OutMaxBytes:   v.GetInt64("out-max-bytes"),
		PGDSN:         v.GetString("pg-dsn"),
		PersistPools:  v.GetBool("persist-pools"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		RedisChannel:  v.GetString("redis-channel"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),

		OracleFeed:             v.GetString("oracle-feed"),
		OraclePreset:           v.GetString("oracle-preset"),
		OracleMaxDeviationPct:  v.GetFloat64("oracle-max-deviation-pct"),
		OracleMaxConfidencePct: v.GetFloat64("oracle-max-confidence-pct"),
		OracleMaxStaleness:     v.GetDuration("oracle-max-staleness"),

		LogLevel: v.GetString("log-level"),
	}

	return cfg, nil
}

// ParsePairSpec parses NAME:TOKEN_A:TOKEN_B:MIN:MAX with an optional trailing
// ":POOL|POOL" allow-list.
func ParsePairSpec(spec string) (PairConfig, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) != 5 && len(parts) != 6 {
		return PairConfig{}, fmt.Errorf("invalid pair %q: want NAME:TOKEN_A:TOKEN_B:MIN:MAX[:POOLS]", spec)
	}
	minSize, err := strconv.ParseUint(strings.TrimSpace(parts[3]), 10, 64)
	if err != nil {
		return PairConfig{}, fmt.Errorf("invalid pair %q min size: %w", spec, err)
	}
	maxSize, err := strconv.ParseUint(strings.TrimSpace(parts[4]), 10, 64)
	if err != nil {
		return PairConfig{}, fmt.Errorf("invalid pair %q max size: %w", spec, err)
	}

	pair := PairConfig{
		Name:         strings.TrimSpace(parts[0]),
		TokenA:       strings.TrimSpace(parts[1]),
		TokenB:       strings.TrimSpace(parts[2]),
		MinTradeSize: minSize,
		MaxTradeSize: maxSize,
	}
	if len(parts) == 6 {
		pair.Pools = cleanStrings(strings.Split(parts[5], "|"))
	}
	return pair, nil
}

// MonitoredPairs converts the configured pairs into model pairs.
func (c Config) MonitoredPairs() []model.MonitoredPair {
	out := make([]model.MonitoredPair, 0, len(c.Pairs))
	for _, pair := range c.Pairs {
		out = append(out, model.MonitoredPair{
			Name:         pair.Name,
			TokenA:       strings.TrimSpace(pair.TokenA),
			TokenB:       strings.TrimSpace(pair.TokenB),
			MinTradeSize: pair.MinTradeSize,
			MaxTradeSize: pair.MaxTradeSize,
			Pools:        cleanStrings(pair.Pools),
		})
	}
	return out
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
