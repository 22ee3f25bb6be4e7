package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityArb/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
	id TEXT PRIMARY KEY,
	pair TEXT NOT NULL,
	token_a TEXT NOT NULL,
	token_b TEXT NOT NULL,
	buy_pool TEXT NOT NULL,
	sell_pool TEXT NOT NULL,
	buy_dex TEXT NOT NULL DEFAULT '',
	sell_dex TEXT NOT NULL DEFAULT '',
	buy_kind TEXT NOT NULL DEFAULT '',
	sell_kind TEXT NOT NULL DEFAULT '',
	buy_price DOUBLE PRECISION NOT NULL,
	sell_price DOUBLE PRECISION NOT NULL,
	gross_profit_pct DOUBLE PRECISION NOT NULL,
	optimal_trade_size NUMERIC(20, 0) NOT NULL,
	decimals_a SMALLINT NOT NULL DEFAULT 0,
	expected_input DOUBLE PRECISION NOT NULL,
	expected_output DOUBLE PRECISION NOT NULL,
	gross_profit DOUBLE PRECISION NOT NULL,
	flash_loan_fee DOUBLE PRECISION NOT NULL,
	buy_fee DOUBLE PRECISION NOT NULL,
	sell_fee DOUBLE PRECISION NOT NULL,
	total_fees DOUBLE PRECISION NOT NULL,
	total_fee_pct DOUBLE PRECISION NOT NULL,
	gas_cost DOUBLE PRECISION NOT NULL,
	net_profit DOUBLE PRECISION NOT NULL,
	net_profit_pct DOUBLE PRECISION NOT NULL,
	buy_impact_bps DOUBLE PRECISION NOT NULL,
	sell_impact_bps DOUBLE PRECISION NOT NULL,
	buy_execution_prob DOUBLE PRECISION NOT NULL,
	sell_execution_prob DOUBLE PRECISION NOT NULL,
	combined_execution_prob DOUBLE PRECISION NOT NULL,
	expected_value DOUBLE PRECISION NOT NULL,
	ev_score DOUBLE PRECISION NOT NULL,
	confidence_level TEXT NOT NULL,
	detected_at TIMESTAMPTZ NOT NULL,
	payload JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS arbitrage_opportunities_detected_at_idx
	ON arbitrage_opportunities (detected_at);
CREATE TABLE IF NOT EXISTS pool_states (
	pool_address TEXT PRIMARY KEY,
	dex TEXT NOT NULL DEFAULT '',
	dex_kind TEXT NOT NULL,
	token_a TEXT NOT NULL,
	token_b TEXT NOT NULL,
	reserve_a NUMERIC(20, 0) NOT NULL,
	reserve_b NUMERIC(20, 0) NOT NULL,
	liquidity NUMERIC(78, 0) NOT NULL,
	sqrt_price_x64 NUMERIC(78, 0) NOT NULL,
	fee_rate_bps INTEGER NOT NULL,
	last_update TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS scanner_state (
	name TEXT PRIMARY KEY,
	last_scan_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store provides Postgres persistence for opportunities and pool snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the tables the store writes to.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

var opportunityColumns = []string{
	"id", "pair", "token_a", "token_b", "buy_pool", "sell_pool", "buy_dex", "sell_dex",
	"buy_kind", "sell_kind", "buy_price", "sell_price", "gross_profit_pct",
	"optimal_trade_size", "decimals_a", "expected_input", "expected_output", "gross_profit",
	"flash_loan_fee", "buy_fee", "sell_fee", "total_fees", "total_fee_pct", "gas_cost",
	"net_profit", "net_profit_pct", "buy_impact_bps", "sell_impact_bps",
	"buy_execution_prob", "sell_execution_prob", "combined_execution_prob",
	"expected_value", "ev_score", "confidence_level", "detected_at", "payload",
}

var insertOpportunitySQL = func() string {
	placeholders := make([]string, len(opportunityColumns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf(`INSERT INTO arbitrage_opportunities (%s) VALUES (%s) ON CONFLICT (id) DO NOTHING`,
		strings.Join(opportunityColumns, ", "), strings.Join(placeholders, ","))
}()

// opportunityArgs returns the insert arguments in opportunityColumns order. The whole
// record is also stored as the JSON payload.
func opportunityArgs(opp model.ArbitrageOpportunity) ([]any, error) {
	payload, err := json.Marshal(opp)
	if err != nil {
		return nil, fmt.Errorf("marshal opportunity %s: %w", opp.ID, err)
	}
	return []any{
		opp.ID,
		opp.Pair,
		opp.TokenA,
		opp.TokenB,
		opp.BuyPool,
		opp.SellPool,
		opp.BuyDex,
		opp.SellDex,
		opp.BuyKind.String(),
		opp.SellKind.String(),
		opp.BuyPrice,
		opp.SellPrice,
		opp.GrossProfitPct,
		strconv.FormatUint(opp.OptimalTradeSize, 10),
		int16(opp.DecimalsA),
		opp.ExpectedInput,
		opp.ExpectedOutput,
		opp.GrossProfit,
		opp.FlashLoanFee,
		opp.BuyFee,
		opp.SellFee,
		opp.TotalFees,
		opp.TotalFeePct,
		opp.GasCost,
		opp.NetProfit,
		opp.NetProfitPct,
		opp.BuyImpactBps,
		opp.SellImpactBps,
		opp.BuyExecutionProb,
		opp.SellExecutionProb,
		opp.CombinedExecutionProb,
		opp.ExpectedValue,
		opp.EVScore,
		opp.Confidence.String(),
		opp.DetectedAt,
		string(payload),
	}, nil
}

// PutOpportunities inserts opportunities; ids already stored are left untouched.
func (s *Store) PutOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, opp := range opps {
		args, err := opportunityArgs(opp)
		if err != nil {
			return err
		}
		batch.Queue(insertOpportunitySQL, args...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range opps {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert opportunity: %w", err)
		}
	}
	return nil
}

// UpsertPools stores the latest state of each pool.
func (s *Store) UpsertPools(ctx context.Context, pools []model.PoolState) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pool_states (
				pool_address, dex, dex_kind, token_a, token_b, reserve_a, reserve_b,
				liquidity, sqrt_price_x64, fee_rate_bps, last_update, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now())
			ON CONFLICT (pool_address)
			DO UPDATE SET
				dex = EXCLUDED.dex,
				dex_kind = EXCLUDED.dex_kind,
				token_a = EXCLUDED.token_a,
				token_b = EXCLUDED.token_b,
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				liquidity = EXCLUDED.liquidity,
				sqrt_price_x64 = EXCLUDED.sqrt_price_x64,
				fee_rate_bps = EXCLUDED.fee_rate_bps,
				last_update = GREATEST(pool_states.last_update, EXCLUDED.last_update),
				updated_at = now()
		`,
			pool.Address,
			pool.Dex,
			pool.Kind.String(),
			pool.TokenA,
			pool.TokenB,
			fmt.Sprintf("%d", pool.ReserveA),
			fmt.Sprintf("%d", pool.ReserveB),
			pool.Liquidity.Dec(),
			pool.SqrtPriceX64.Dec(),
			int32(pool.FeeRateBps),
			pool.LastUpdate,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range pools {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert pool: %w", err)
		}
	}
	return nil
}

// LoadState returns the last recorded scan time for a scanner name.
func (s *Store) LoadState(ctx context.Context, name string) (time.Time, bool, error) {
	if name == "" {
		return time.Time{}, false, fmt.Errorf("state name required")
	}
	var ts time.Time
	row := s.pool.QueryRow(ctx, `SELECT last_scan_at FROM scanner_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return ts, true, nil
}

// SaveState records the last scan time for a scanner name.
func (s *Store) SaveState(ctx context.Context, name string, ts time.Time) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO scanner_state (name, last_scan_at, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_scan_at = EXCLUDED.last_scan_at, updated_at = now()
	`, name, ts)
	return err
}
