package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"liquidityArb/internal/model"
)

type flakySink struct {
	failures int
	calls    int
	received []model.ArbitrageOpportunity
}

func (f *flakySink) PutOpportunities(_ context.Context, opps []model.ArbitrageOpportunity) error {
	f.calls++
	if f.calls <= f.failures {
		return errors.New("temporary failure")
	}
	f.received = append(f.received, opps...)
	return nil
}

func sampleOpportunities() []model.ArbitrageOpportunity {
	return []model.ArbitrageOpportunity{
		{ID: "1", Pair: "SOL/USDC", EVScore: 80, NetProfitPct: 1.2, Confidence: model.VeryHigh},
		{ID: "2", Pair: "SOL/USDC", EVScore: 10, NetProfitPct: 0.2, Confidence: model.Low},
	}
}

func readIDs(t *testing.T, path string) []string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer file.Close()

	var ids []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var opp model.ArbitrageOpportunity
		if err := json.Unmarshal(scanner.Bytes(), &opp); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		ids = append(ids, opp.ID)
	}
	return ids
}

func TestOpportunityLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "opps.jsonl")
	log := NewOpportunityLog(path, 0)

	ctx := context.Background()
	if err := log.PutOpportunities(ctx, sampleOpportunities()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := log.PutOpportunities(ctx, sampleOpportunities()[:1]); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if err := log.PutOpportunities(ctx, nil); err != nil {
		t.Fatalf("empty write: %v", err)
	}

	// lines are visible before Close
	if ids := readIDs(t, path); len(ids) != 3 || ids[0] != "1" || ids[2] != "1" {
		t.Fatalf("unexpected ids: %v", ids)
	}
	if err := log.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := NewOpportunityLog(path, 0)
	if err := reopened.PutOpportunities(ctx, sampleOpportunities()[1:]); err != nil {
		t.Fatalf("write after reopen: %v", err)
	}
	reopened.Close()
	if ids := readIDs(t, path); len(ids) != 4 || ids[3] != "2" {
		t.Fatalf("reopen should append, got %v", ids)
	}
}

func TestOpportunityLogRollsOver(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "opps.jsonl")
	log := NewOpportunityLog(path, 1)
	log.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	if err := log.PutOpportunities(ctx, sampleOpportunities()); err != nil {
		t.Fatalf("first write: %v", err)
	}
	rolled := path + ".20240301T120000.000000000"
	if ids := readIDs(t, rolled); len(ids) != 2 {
		t.Fatalf("rolled file should hold the first batch, got %v", ids)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("active file should be gone after rollover, got %v", err)
	}

	log.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 1, 0, time.UTC) }
	if err := log.PutOpportunities(ctx, sampleOpportunities()[1:]); err != nil {
		t.Fatalf("second write: %v", err)
	}
	if ids := readIDs(t, path+".20240301T120001.000000000"); len(ids) != 1 || ids[0] != "2" {
		t.Fatalf("second batch should start a new file, got %v", ids)
	}
}

func TestOpportunityLogStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "opps.jsonl")
	log := NewOpportunityLog(path, 0)
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := log.PutOpportunities(ctx, sampleOpportunities()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if ids := readIDs(t, path); len(ids) != 0 {
		t.Fatalf("cancelled batch should write nothing, got %v", ids)
	}
}

func TestRetrySinkRecovers(t *testing.T) {
	next := &flakySink{failures: 2}
	sink := NewRetrySink(next, 3, time.Millisecond, nil)
	if err := sink.PutOpportunities(context.Background(), sampleOpportunities()); err != nil {
		t.Fatalf("expected retry to succeed: %v", err)
	}
	if next.calls != 3 || len(next.received) != 2 {
		t.Fatalf("unexpected calls %d received %d", next.calls, len(next.received))
	}

	exhausted := &flakySink{failures: 10}
	if err := NewRetrySink(exhausted, 1, time.Millisecond, nil).PutOpportunities(context.Background(), sampleOpportunities()); err == nil {
		t.Fatalf("expected error after retries are exhausted")
	}
	if exhausted.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", exhausted.calls)
	}
}

func TestRetrySinkStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	next := &flakySink{failures: 10}
	err := NewRetrySink(next, 5, time.Hour, nil).PutOpportunities(ctx, sampleOpportunities())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMultiAndFilterSinks(t *testing.T) {
	all := &flakySink{}
	executable := &flakySink{}
	broken := &flakySink{failures: 1}

	sink := MultiSink{
		all,
		FilterSink{Next: executable, Keep: func(opp model.ArbitrageOpportunity) bool { return opp.EVScore >= 50 }},
		broken,
	}
	err := sink.PutOpportunities(context.Background(), sampleOpportunities())
	if err == nil {
		t.Fatalf("expected joined error from broken sink")
	}
	if len(all.received) != 2 {
		t.Fatalf("unfiltered sink got %d", len(all.received))
	}
	if len(executable.received) != 1 || executable.received[0].ID != "1" {
		t.Fatalf("filter sink got %+v", executable.received)
	}
}
