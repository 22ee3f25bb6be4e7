package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityArb/internal/config"
	"liquidityArb/internal/feed"
	"liquidityArb/internal/model"
	"liquidityArb/internal/oracle"
)

func runOnce(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	wallClock, _ := cmd.Flags().GetBool("wall-clock")

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clock := &feedClock{}
	now := clock.Now
	if wallClock {
		now = time.Now
	}

	p, err := buildPipeline(cfg, now, logger)
	if err != nil {
		return err
	}
	out, err := buildSinks(ctx, cfg, p.validator, logger)
	if err != nil {
		return err
	}
	defer out.close()

	replayer := feed.NewReplayer(cfg.Feed, clockedUpdater{next: p.monitor, clock: clock}, logger.Named("feed"))
	if _, err := replayer.Replay(ctx); err != nil {
		return err
	}
	if p.prices != nil {
		if _, err := feed.NewPriceReplayer(cfg.OracleFeed, p.prices, logger.Named("oracle_feed")).Replay(ctx); err != nil {
			return err
		}
	}

	opps, err := p.detector.ScanOpportunities(ctx)
	if err != nil {
		return fmt.Errorf("scan opportunities: %w", err)
	}
	if err := out.sink.PutOpportunities(ctx, opps); err != nil {
		logger.Warn("write opportunities", zap.Error(err))
	}

	return printOpportunities(cmd.OutOrStdout(), opps, p.validator)
}

// feedClock reports the newest update time seen in the feed.
type feedClock struct {
	mu     sync.Mutex
	latest time.Time
}

func (c *feedClock) Observe(ts time.Time) {
	c.mu.Lock()
	if ts.After(c.latest) {
		c.latest = ts
	}
	c.mu.Unlock()
}

func (c *feedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest.IsZero() {
		return time.Now()
	}
	return c.latest
}

type clockedUpdater struct {
	next  feed.Updater
	clock *feedClock
}

func (u clockedUpdater) UpdatePool(state model.PoolState) {
	if !state.LastUpdate.IsZero() {
		u.clock.Observe(state.LastUpdate)
	}
	u.next.UpdatePool(state)
}

// printOpportunities writes a table of opportunities. SIZE is in token_a units. The
// ORACLE column is only printed when a validator is given.
func printOpportunities(w io.Writer, opps []model.ArbitrageOpportunity, validator *oracle.Validator) error {
	if len(opps) == 0 {
		_, err := fmt.Fprintln(w, "no opportunities")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := "PAIR\tBUY\tSELL\tSPREAD%\tSIZE\tNET%\tPROB\tEV\tSCORE\tCONFIDENCE"
	if validator != nil {
		header += "\tORACLE"
	}
	fmt.Fprintln(tw, header)
	for _, opp := range opps {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.4f\t%s\t%.4f\t%.3f\t%.6f\t%.2f\t%s",
			opp.Pair,
			opp.BuyPool,
			opp.SellPool,
			opp.GrossProfitPct,
			model.FormatAmount(opp.OptimalTradeSize, opp.DecimalsA),
			opp.NetProfitPct,
			opp.CombinedExecutionProb,
			opp.ExpectedValue,
			opp.EVScore,
			opp.Confidence,
		)
		if validator != nil {
			result := validator.Validate(opp)
			status := "ok"
			if !result.Valid {
				status = "rejected: " + result.Reason
			}
			fmt.Fprintf(tw, "\t%s", status)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}
