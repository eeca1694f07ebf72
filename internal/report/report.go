// Package report aggregates a finalized ledger timeline into summary and
// per-validator statistics. Build is a pure function: aggregating the same
// timeline twice produces identical output.
package report

import (
	"sort"
	"time"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/rule"
)

// Gap records a hole in the observed ledger sequence.
type Gap struct {
	Start     int64     `json:"start"`
	End       int64     `json:"end"`
	Timestamp time.Time `json:"timestamp"`
}

// Breach records a ledger whose close took longer than the threshold.
type Breach struct {
	Seq       int64     `json:"seq"`
	Duration  float64   `json:"duration"`
	Timestamp time.Time `json:"timestamp"`
}

// Flag records a data-quality rule match on one ledger.
type Flag struct {
	RuleID    string    `json:"rule_id"`
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationSummary pools validation statistics across all validators.
type ValidationSummary struct {
	ValidatorsTotal   int      `json:"validators_total"`
	ValidationsTotal  int      `json:"validations_total"`
	ValidationsMissed int      `json:"validations_missed"`
	ValidationsLate   int      `json:"validations_late"`
	ValidationsMean   *float64 `json:"validations_mean"`
	ValidationsMedian *float64 `json:"validations_median"`
	ValidationsStdev  *float64 `json:"validations_stdev"`
}

// ValidatorStats is the per-validator breakdown.
type ValidatorStats struct {
	MasterKey         string   `json:"master_key"`
	ValidationsTotal  int      `json:"validations_total"`
	ValidationsMissed int      `json:"validations_missed"`
	ValidationsLate   int      `json:"validations_late"`
	ValidationsMean   *float64 `json:"validations_mean"`
	ValidationsMedian *float64 `json:"validations_median"`
	ValidationsStdev  *float64 `json:"validations_stdev"`
}

// Report is the read-only snapshot derived from one finalized timeline.
type Report struct {
	StartDate        time.Time `json:"start_date"`
	EndDate          time.Time `json:"end_date"`
	Duration         string    `json:"duration"`
	DurationSeconds  float64   `json:"duration_seconds"`
	ThresholdSeconds float64   `json:"threshold_seconds"`
	Ledgers          int       `json:"ledgers"`

	Gaps               []Gap    `json:"gaps"`
	GapsTotal          int      `json:"gaps_total"`
	OverThreshold      []Breach `json:"over_threshold"`
	OverThresholdTotal int      `json:"over_threshold_total"`
	LedgerTime         Stats    `json:"ledger_time"`

	ValidationsSummary ValidationSummary `json:"validations_summary"`
	Validators         []ValidatorStats  `json:"validators"`

	Flags      []Flag         `json:"flags,omitempty"`
	FlagTotals map[string]int `json:"flag_totals,omitempty"`
}

// Options control aggregation.
type Options struct {
	// ThresholdSeconds marks ledger closes slower than this as breaches.
	ThresholdSeconds float64
	// Rules are optional data-quality rules evaluated against every ledger.
	Rules []*rule.Rule
}

// validatorAcc accumulates one validator's observations over the window.
type validatorAcc struct {
	missed int
	deltas []float64
}

// Build aggregates ledgers into a Report. The ledgers must already be
// finalized and ordered by sequence.
func Build(ledgers []*ledger.Ledger, opts Options) (*Report, error) {
	if len(ledgers) == 0 {
		return nil, ledger.ErrEmptyTimeline
	}

	first, last := ledgers[0], ledgers[len(ledgers)-1]
	r := &Report{
		StartDate:        first.Timestamp,
		EndDate:          last.Timestamp,
		Duration:         last.Timestamp.Sub(first.Timestamp).String(),
		DurationSeconds:  last.Timestamp.Sub(first.Timestamp).Seconds(),
		ThresholdSeconds: opts.ThresholdSeconds,
		Ledgers:          len(ledgers),
		Gaps:             []Gap{},
		OverThreshold:    []Breach{},
	}

	validators := make(map[string]*validatorAcc)
	var durations []float64

	var prevSeq int64
	var prevTime time.Time
	for i, l := range ledgers {
		if i > 0 {
			duration := l.Timestamp.Sub(prevTime).Seconds()
			durations = append(durations, duration)
			if l.Seq-prevSeq > 1 {
				r.Gaps = append(r.Gaps, Gap{Start: prevSeq, End: l.Seq, Timestamp: l.Timestamp})
			}
			if duration > opts.ThresholdSeconds {
				r.OverThreshold = append(r.OverThreshold, Breach{Seq: l.Seq, Duration: duration, Timestamp: l.Timestamp})
			}
		}

		for key, delta := range l.Validations {
			acc := validators[key]
			if acc == nil {
				acc = &validatorAcc{}
				validators[key] = acc
			}
			if delta == nil {
				acc.missed++
			} else {
				acc.deltas = append(acc.deltas, *delta)
			}
		}

		for _, rl := range opts.Rules {
			if rl.Match(l) {
				r.Flags = append(r.Flags, Flag{RuleID: rl.ID, Seq: l.Seq, Timestamp: l.Timestamp})
				if r.FlagTotals == nil {
					r.FlagTotals = make(map[string]int)
				}
				r.FlagTotals[rl.ID]++
			}
		}

		prevSeq = l.Seq
		prevTime = l.Timestamp
	}

	r.GapsTotal = len(r.Gaps)
	r.OverThresholdTotal = len(r.OverThreshold)
	r.LedgerTime = describe(durations)

	r.ValidationsSummary, r.Validators = summarizeValidators(validators)
	return r, nil
}

// summarizeValidators produces the pooled summary and the per-validator
// breakdown, the latter sorted by master key for determinism.
func summarizeValidators(validators map[string]*validatorAcc) (ValidationSummary, []ValidatorStats) {
	keys := make([]string, 0, len(validators))
	for k := range validators {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var pooled []float64
	summary := ValidationSummary{ValidatorsTotal: len(validators)}
	breakdown := make([]ValidatorStats, 0, len(validators))

	for _, key := range keys {
		acc := validators[key]
		late := 0
		for _, d := range acc.deltas {
			// delta <= 0 means signed at or after the recorded close time.
			if d <= 0 {
				late++
			}
		}
		s := describe(acc.deltas)
		breakdown = append(breakdown, ValidatorStats{
			MasterKey:         key,
			ValidationsTotal:  len(acc.deltas),
			ValidationsMissed: acc.missed,
			ValidationsLate:   late,
			ValidationsMean:   s.Mean,
			ValidationsMedian: s.Median,
			ValidationsStdev:  s.Stdev,
		})

		pooled = append(pooled, acc.deltas...)
		summary.ValidationsMissed += acc.missed
		summary.ValidationsLate += late
	}

	summary.ValidationsTotal = len(pooled)
	s := describe(pooled)
	summary.ValidationsMean = s.Mean
	summary.ValidationsMedian = s.Median
	summary.ValidationsStdev = s.Stdev
	return summary, breakdown
}
