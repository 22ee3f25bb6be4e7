package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"liquidityArb/internal/model"
)

const defaultPollInterval = 250 * time.Millisecond

// Updater receives decoded pool states.
type Updater interface {
	UpdatePool(state model.PoolState)
}

// Stats counts the lines a Replayer has consumed.
type Stats struct {
	Lines   int
	Applied int
	Failed  int
}

// PriceUpdater receives decoded oracle prices.
type PriceUpdater interface {
	UpdatePrice(price model.OraclePrice)
}

// Replayer feeds a JSONL file into a consumer, one decoded record per line.
type Replayer struct {
	path   string
	apply  func(line []byte) error
	logger *zap.Logger
}

// NewReplayer reads PoolUpdateRecord lines into updater.
func NewReplayer(path string, updater Updater, logger *zap.Logger) *Replayer {
	r := newReplayer(path, logger)
	if updater != nil {
		r.apply = func(line []byte) error {
			var record model.PoolUpdateRecord
			if err := json.Unmarshal(line, &record); err != nil {
				return fmt.Errorf("decode pool update: %w", err)
			}
			state, err := record.ToPoolState()
			if err != nil {
				return fmt.Errorf("convert pool update: %w", err)
			}
			updater.UpdatePool(state)
			return nil
		}
	}
	return r
}

// NewPriceReplayer reads OraclePriceRecord lines into updater.
func NewPriceReplayer(path string, updater PriceUpdater, logger *zap.Logger) *Replayer {
	r := newReplayer(path, logger)
	if updater != nil {
		r.apply = func(line []byte) error {
			var record model.OraclePriceRecord
			if err := json.Unmarshal(line, &record); err != nil {
				return fmt.Errorf("decode oracle price: %w", err)
			}
			price, err := record.ToOraclePrice()
			if err != nil {
				return fmt.Errorf("convert oracle price: %w", err)
			}
			updater.UpdatePrice(price)
			return nil
		}
	}
	return r
}

func newReplayer(path string, logger *zap.Logger) *Replayer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Replayer{path: path, logger: logger}
}

// Replay applies every line of the file once.
func (r *Replayer) Replay(ctx context.Context) (Stats, error) {
	var stats Stats
	if r.apply == nil {
		return stats, fmt.Errorf("updater is nil")
	}

	file, err := os.Open(r.path)
	if err != nil {
		return stats, fmt.Errorf("open feed: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		r.consume(scanner.Bytes(), &stats)
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan feed: %w", err)
	}

	r.logger.Info("feed replayed",
		zap.String("path", r.path),
		zap.Int("lines", stats.Lines),
		zap.Int("applied", stats.Applied),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

// Follow applies the existing lines and then keeps polling for appended ones until ctx is
// done. A trailing line without a newline is held back until it is completed.
func (r *Replayer) Follow(ctx context.Context, poll time.Duration) (Stats, error) {
	var stats Stats
	if r.apply == nil {
		return stats, fmt.Errorf("updater is nil")
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}

	file, err := os.Open(r.path)
	if err != nil {
		return stats, fmt.Errorf("open feed: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 64*1024)
	var pending []byte
	for {
		if ctx.Err() != nil {
			return stats, nil
		}

		chunk, err := reader.ReadBytes('\n')
		pending = append(pending, chunk...)
		if err == nil {
			r.consume(pending, &stats)
			pending = pending[:0]
			continue
		}
		if !errors.Is(err, io.EOF) {
			return stats, fmt.Errorf("read feed: %w", err)
		}

		timer := time.NewTimer(poll)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("feed follow stopped",
				zap.Int("lines", stats.Lines),
				zap.Int("applied", stats.Applied),
				zap.Int("failed", stats.Failed),
			)
			return stats, nil
		case <-timer.C:
		}
	}
}

func (r *Replayer) consume(raw []byte, stats *Stats) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return
	}
	stats.Lines++
	if err := r.apply(line); err != nil {
		stats.Failed++
		r.logger.Warn("skip feed line", zap.String("path", r.path), zap.Error(err))
		return
	}
	stats.Applied++
}
