// Package journal holds the logging collaborators of the simulation core:
// a buffered CSV order/trade log and a pebble-backed event journal. Both
// implement sim.EventSink; the core treats them as fire-and-forget and only
// learns about I/O failures at flush time.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"marketsim/pkg/sim"
)

const csvHeader = "Time,Agent ID,Message,Buy/Sell,Order ID,Original Quantity,Price,Type,Leaves Quantity,Trade Price,Quantity Filled,Aggressor,Trade Match ID\n"

// CSVLog buffers order/trade CSV records in memory and appends them to a
// file when the buffer reaches its threshold, at Flush, or at Close. The
// column layout is the de facto contract of the offline analysis tooling.
type CSVLog struct {
	mu sync.Mutex

	f         *os.File
	buf       []string
	threshold int
	err       error

	log *zap.SugaredLogger
}

// NewCSVLog creates (truncating) the log file and writes the header.
func NewCSVLog(path string, bufferLines int, log *zap.SugaredLogger) (*CSVLog, error) {
	if bufferLines <= 0 {
		bufferLines = 8192
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create order log: %w", err)
	}
	if _, err := f.WriteString(csvHeader); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	return &CSVLog{
		f:         f,
		buf:       make([]string, 0, bufferLines),
		threshold: bufferLines,
		log:       log,
	}, nil
}

// OnLogLine buffers one CSV record.
func (c *CSVLog) OnLogLine(fields []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf = append(c.buf, strings.Join(fields, ","))
	if len(c.buf) >= c.threshold {
		c.flushLocked()
	}
}

// OnOrderEvent is a graphing-feed concern; the CSV log ignores it.
func (c *CSVLog) OnOrderEvent(sim.Side, int64, int64) {}

// OnTrade is a graphing-feed concern; the CSV log ignores it.
func (c *CSVLog) OnTrade(float64, int64) {}

// Flush writes any buffered records and reports the first I/O error seen
// over the life of the log.
func (c *CSVLog) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
	return c.err
}

// Close flushes and closes the underlying file.
func (c *CSVLog) Close() error {
	if err := c.Flush(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}

func (c *CSVLog) flushLocked() {
	if len(c.buf) == 0 {
		return
	}
	_, err := c.f.WriteString(strings.Join(c.buf, "\n") + "\n")
	if err != nil {
		if c.err == nil {
			c.err = fmt.Errorf("order log write: %w", err)
		}
		c.log.Errorw("order log write failed", "err", err)
	}
	c.buf = c.buf[:0]
}

var _ sim.EventSink = (*CSVLog)(nil)
