package report_test

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/report"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/rule"
)

var base = time.Date(2023, time.February, 5, 10, 0, 0, 0, time.UTC)

// timeline builds a finalized ledger sequence with the given sequences,
// spaced four seconds apart.
func timeline(seqs ...int64) []*ledger.Ledger {
	ledgers := make([]*ledger.Ledger, 0, len(seqs))
	for i, seq := range seqs {
		l := &ledger.Ledger{
			Seq:         seq,
			Hash:        "H",
			Timestamp:   base.Add(time.Duration(i) * 4 * time.Second),
			Validations: make(ledger.Validations),
		}
		if i > 0 {
			l.Latency = 4
		}
		ledgers = append(ledgers, l)
	}
	return ledgers
}

func TestBuildEmpty(t *testing.T) {
	_, err := report.Build(nil, report.Options{ThresholdSeconds: 10})
	if !errors.Is(err, ledger.ErrEmptyTimeline) {
		t.Fatalf("err = %v, want ErrEmptyTimeline", err)
	}
}

func TestBuildWindow(t *testing.T) {
	r, err := report.Build(timeline(100, 101, 102), report.Options{ThresholdSeconds: 10})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Ledgers != 3 {
		t.Errorf("ledgers = %d, want 3", r.Ledgers)
	}
	if !r.StartDate.Equal(base) || !r.EndDate.Equal(base.Add(8*time.Second)) {
		t.Errorf("window = %v … %v", r.StartDate, r.EndDate)
	}
	if r.DurationSeconds != 8 {
		t.Errorf("duration_seconds = %v, want 8", r.DurationSeconds)
	}
	if r.LedgerTime.Mean == nil || *r.LedgerTime.Mean != 4 {
		t.Errorf("ledger_time mean = %v, want 4", r.LedgerTime.Mean)
	}
}

func TestBuildGapDetection(t *testing.T) {
	r, err := report.Build(timeline(100, 101, 103, 104), report.Options{ThresholdSeconds: 10})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.GapsTotal != 1 || len(r.Gaps) != 1 {
		t.Fatalf("gaps = %+v, want exactly one", r.Gaps)
	}
	g := r.Gaps[0]
	if g.Start != 101 || g.End != 103 {
		t.Errorf("gap = {%d %d}, want {101 103}", g.Start, g.End)
	}
}

func TestBuildOverThreshold(t *testing.T) {
	ledgers := []*ledger.Ledger{
		{Seq: 100, Timestamp: base, Validations: make(ledger.Validations)},
		{Seq: 101, Timestamp: base.Add(60 * time.Second), Latency: 60, Validations: make(ledger.Validations)},
	}
	r, err := report.Build(ledgers, report.Options{ThresholdSeconds: 10})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.OverThresholdTotal != 1 || len(r.OverThreshold) != 1 {
		t.Fatalf("over_threshold = %+v, want exactly one", r.OverThreshold)
	}
	b := r.OverThreshold[0]
	if b.Seq != 101 || b.Duration != 60 {
		t.Errorf("breach = {seq %d duration %v}, want {101 60}", b.Seq, b.Duration)
	}
}

func TestBuildValidatorAggregation(t *testing.T) {
	ledgers := timeline(100, 101)
	// First ledger: alice validated, bob has an explicit missing marker.
	ledgers[0].Validations = ledger.Validations{
		"nHUalice": ledger.Delta(1.0),
		"nHUbob":   nil,
	}
	// Second ledger: alice late, bob exactly on time, carol appears for the
	// first time mid-window.
	ledgers[1].Validations = ledger.Validations{
		"nHUalice": ledger.Delta(-2.5),
		"nHUbob":   ledger.Delta(0),
		"nHUcarol": ledger.Delta(0.5),
	}

	r, err := report.Build(ledgers, report.Options{ThresholdSeconds: 10})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s := r.ValidationsSummary
	if s.ValidatorsTotal != 3 {
		t.Errorf("validators_total = %d, want 3", s.ValidatorsTotal)
	}
	if s.ValidationsTotal != 4 {
		t.Errorf("validations_total = %d, want 4", s.ValidationsTotal)
	}
	if s.ValidationsMissed != 1 {
		t.Errorf("validations_missed = %d, want 1", s.ValidationsMissed)
	}
	// -2.5 and 0 both count under the <= 0 rule.
	if s.ValidationsLate != 2 {
		t.Errorf("validations_late = %d, want 2", s.ValidationsLate)
	}

	// Per-validator breakdown is sorted by master key.
	keys := make([]string, 0, len(r.Validators))
	for _, v := range r.Validators {
		keys = append(keys, v.MasterKey)
	}
	want := []string{"nHUalice", "nHUbob", "nHUcarol"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("validator order = %v, want %v", keys, want)
	}

	alice := r.Validators[0]
	if alice.ValidationsTotal != 2 || alice.ValidationsLate != 1 {
		t.Errorf("alice = %+v, want total 2 late 1", alice)
	}
	if alice.ValidationsStdev == nil {
		t.Error("alice stdev = nil, want a value for two samples")
	}

	// Carol has one observation: reportable, but with no stdev.
	carol := r.Validators[2]
	if carol.ValidationsTotal != 1 {
		t.Errorf("carol total = %d, want 1", carol.ValidationsTotal)
	}
	if carol.ValidationsMean == nil || *carol.ValidationsMean != 0.5 {
		t.Errorf("carol mean = %v, want 0.5", carol.ValidationsMean)
	}
	if carol.ValidationsStdev != nil {
		t.Errorf("carol stdev = %v, want nil", *carol.ValidationsStdev)
	}
}

func TestBuildIdempotent(t *testing.T) {
	ledgers := timeline(100, 101, 103)
	ledgers[0].Validations = ledger.Validations{"nHUalice": ledger.Delta(1.0), "nHUbob": nil}
	ledgers[2].Validations = ledger.Validations{"nHUalice": ledger.Delta(-0.25)}
	opts := report.Options{ThresholdSeconds: 10}

	first, err := report.Build(ledgers, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := report.Build(ledgers, opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("re-aggregating the same timeline produced different output")
	}
}

func TestBuildRuleFlags(t *testing.T) {
	slow, err := rule.Compile("slow_close", "close took too long", "latency > 10")
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ledgers := []*ledger.Ledger{
		{Seq: 100, Timestamp: base, Validations: make(ledger.Validations)},
		{Seq: 101, Timestamp: base.Add(60 * time.Second), Latency: 60, Validations: make(ledger.Validations)},
	}

	r, err := report.Build(ledgers, report.Options{ThresholdSeconds: 10, Rules: []*rule.Rule{slow}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(r.Flags) != 1 {
		t.Fatalf("flags = %+v, want exactly one", r.Flags)
	}
	if r.Flags[0].RuleID != "slow_close" || r.Flags[0].Seq != 101 {
		t.Errorf("flag = %+v, want slow_close on 101", r.Flags[0])
	}
	if r.FlagTotals["slow_close"] != 1 {
		t.Errorf("flag_totals = %v, want slow_close:1", r.FlagTotals)
	}
}
