package engine

import (
	"log/slog"
	"sort"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
)

// Finalize orders the completed ledgers by sequence and fills in the
// stream-wide fields: inter-ledger latency, per-ledger validation counters,
// and explicit missing markers for the first ledger (seeded from the
// observed UNL). The returned slice is the finished timeline.
func Finalize(ledgers []*ledger.Ledger, unl []string) ([]*ledger.Ledger, error) {
	if len(ledgers) == 0 {
		return nil, ledger.ErrEmptyTimeline
	}
	sort.Slice(ledgers, func(i, j int) bool { return ledgers[i].Seq < ledgers[j].Seq })

	first := ledgers[0]
	first.Latency = 0
	for _, key := range unl {
		if _, ok := first.Validations[key]; !ok {
			first.Validations[key] = nil
		}
	}

	for i := 1; i < len(ledgers); i++ {
		l, prev := ledgers[i], ledgers[i-1]
		l.Latency = l.Timestamp.Sub(prev.Timestamp).Seconds()
		if l.Latency < 0 {
			// Sequences are monotonic in close time; a negative latency means
			// the input is corrupt or reordered. Surface it, never clamp it.
			l.OutOfOrder = true
			slog.Warn("out-of-order close time",
				"seq", l.Seq, "prev_seq", prev.Seq, "latency", l.Latency)
		}
		late := 0
		for _, delta := range l.Validations {
			if delta != nil && *delta < 0 {
				late++
			}
		}
		l.ValidationsTotal = len(l.Validations)
		l.ValidationsLate = late
	}
	return ledgers, nil
}
