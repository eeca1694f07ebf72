// Package engine implements the event correlation core: it reconciles
// independently-ordered Built, Advancing, and Validation events from a
// rippled log stream into a chronological timeline of ledger records.
package engine

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/classifier"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/event"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/metrics"
)

// maxLineSize bounds a single log line; rippled lines are far smaller, but
// the input carries no length guarantee.
const maxLineSize = 1 << 20

// Engine consumes a log stream strictly in arrival order. There is exactly
// one logical writer to its state at any time; it is not safe for
// concurrent use.
type Engine struct {
	correlator *Correlator
	attacher   *Attacher

	// ProgressInterval logs progress every N correlated ledgers; zero
	// disables progress logging.
	ProgressInterval int
}

// New creates an engine with empty state.
func New() *Engine {
	return &Engine{
		correlator:       NewCorrelator(),
		attacher:         NewAttacher(),
		ProgressInterval: 100,
	}
}

// Step feeds one classified event into the engine. Whenever the correlator
// completes a ledger, buffered validations for its hash are drained
// immediately, so late-arriving validations attach no matter which side
// arrived first.
func (e *Engine) Step(ev event.Event) {
	switch v := ev.(type) {
	case event.Built:
		if l := e.correlator.ObserveBuilt(v); l != nil {
			e.attacher.Drain(l)
			e.progress()
		}
	case event.Advancing:
		if l := e.correlator.ObserveAdvancing(v); l != nil {
			e.attacher.Drain(l)
			e.progress()
		}
	case event.Validation:
		e.attacher.Observe(v, e.correlator)
	}
}

func (e *Engine) progress() {
	if e.ProgressInterval > 0 && e.correlator.Count()%e.ProgressInterval == 0 {
		slog.Debug("parsed ledgers", "count", e.correlator.Count())
	}
}

// Run consumes the entire stream and returns the finalized timeline.
func (e *Engine) Run(r io.Reader) ([]*ledger.Ledger, error) {
	start := time.Now()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	for scanner.Scan() {
		metrics.LinesScanned.Inc()
		if ev := classifier.Classify(scanner.Text()); ev != nil {
			e.Step(ev)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log stream: %w", err)
	}

	ledgers, err := Finalize(e.correlator.Ledgers(), e.attacher.UNL())
	if err != nil {
		return nil, err
	}
	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	slog.Info("stream consumed",
		"ledgers", len(ledgers),
		"validators", len(e.attacher.UNL()),
		"unattached_validations", e.attacher.PendingCount(),
		"elapsed", time.Since(start))
	return ledgers, nil
}

// UNL returns the observed trusted validator set, sorted.
func (e *Engine) UNL() []string { return e.attacher.UNL() }

// Parse runs a fresh engine over r and returns the finalized timeline.
func Parse(r io.Reader) ([]*ledger.Ledger, error) {
	return New().Run(r)
}

// ParseFile opens path and parses it to completion. Open and read failures
// are fatal and wrapped; no partial timeline is returned.
func ParseFile(path string) ([]*ledger.Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}
