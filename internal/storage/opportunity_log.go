package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"liquidityArb/internal/model"
)

// OpportunityLog appends opportunities to a JSONL file kept open across scans. When
// maxBytes is positive the file is rolled over to a timestamped name once it grows
// past that size.
type OpportunityLog struct {
	path     string
	maxBytes int64
	now      func() time.Time

	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	written int64
}

func NewOpportunityLog(path string, maxBytes int64) *OpportunityLog {
	return &OpportunityLog{path: path, maxBytes: maxBytes, now: time.Now}
}

// PutOpportunities writes one line per opportunity and flushes once per batch. A
// cancelled ctx stops the batch after the lines already written are flushed.
func (l *OpportunityLog) PutOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.open(); err != nil {
		return err
	}
	counter := &countingWriter{w: l.writer}
	enc := json.NewEncoder(counter)
	var writeErr error
	for _, opp := range opps {
		if writeErr = ctx.Err(); writeErr != nil {
			break
		}
		if writeErr = enc.Encode(opp); writeErr != nil {
			writeErr = fmt.Errorf("write opportunity %s: %w", opp.ID, writeErr)
			break
		}
	}
	l.written += counter.n
	if err := l.writer.Flush(); err != nil {
		return fmt.Errorf("flush opportunity log: %w", err)
	}
	if writeErr != nil {
		return writeErr
	}

	if l.maxBytes > 0 && l.written >= l.maxBytes {
		return l.rollover()
	}
	return nil
}

// Close flushes and closes the current file.
func (l *OpportunityLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeFile()
}

func (l *OpportunityLog) open() error {
	if l.file != nil {
		return nil
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open opportunity log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat opportunity log: %w", err)
	}
	l.file = file
	l.writer = bufio.NewWriter(file)
	l.written = info.Size()
	return nil
}

func (l *OpportunityLog) rollover() error {
	if err := l.closeFile(); err != nil {
		return err
	}
	rolled := fmt.Sprintf("%s.%s", l.path, l.now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(l.path, rolled); err != nil {
		return fmt.Errorf("roll over opportunity log: %w", err)
	}
	return nil
}

func (l *OpportunityLog) closeFile() error {
	if l.file == nil {
		return nil
	}
	flushErr := l.writer.Flush()
	closeErr := l.file.Close()
	l.file, l.writer, l.written = nil, nil, 0
	if flushErr != nil {
		return fmt.Errorf("flush opportunity log: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close opportunity log: %w", closeErr)
	}
	return nil
}

type countingWriter struct {
	w *bufio.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
