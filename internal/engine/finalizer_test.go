package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
)

func makeLedger(seq int64, close time.Time, validations ledger.Validations) *ledger.Ledger {
	if validations == nil {
		validations = make(ledger.Validations)
	}
	return &ledger.Ledger{Seq: seq, Hash: "H", Timestamp: close, Validations: validations}
}

func TestFinalizeEmpty(t *testing.T) {
	_, err := Finalize(nil, nil)
	if !errors.Is(err, ledger.ErrEmptyTimeline) {
		t.Fatalf("err = %v, want ErrEmptyTimeline", err)
	}
}

func TestFinalizeOrdersAndComputesLatency(t *testing.T) {
	base := ts(0, 0)
	ledgers := []*ledger.Ledger{
		makeLedger(102, base.Add(8*time.Second), nil),
		makeLedger(100, base, nil),
		makeLedger(101, base.Add(4*time.Second), nil),
	}

	out, err := Finalize(ledgers, nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	for i, want := range []int64{100, 101, 102} {
		if out[i].Seq != want {
			t.Fatalf("out[%d].Seq = %d, want %d", i, out[i].Seq, want)
		}
	}
	if out[0].Latency != 0 {
		t.Errorf("first ledger latency = %v, want 0", out[0].Latency)
	}
	if out[1].Latency != 4 || out[2].Latency != 4 {
		t.Errorf("latencies = %v, %v, want 4, 4", out[1].Latency, out[2].Latency)
	}
}

func TestFinalizeSeedsMissingMarkersFromUNL(t *testing.T) {
	base := ts(0, 0)
	first := makeLedger(100, base, ledger.Validations{"nHUalice": ledger.Delta(1.5)})
	second := makeLedger(101, base.Add(4*time.Second), nil)

	out, err := Finalize([]*ledger.Ledger{first, second}, []string{"nHUalice", "nHUbob", "nHUcarol"})
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	// Every UNL member is present on the first ledger, as a delta or an
	// explicit missing marker. Never absent.
	for _, key := range []string{"nHUalice", "nHUbob", "nHUcarol"} {
		if _, ok := out[0].Validations[key]; !ok {
			t.Errorf("first ledger is missing UNL member %s entirely", key)
		}
	}
	if d := out[0].Validations["nHUalice"]; d == nil || *d != 1.5 {
		t.Errorf("existing delta overwritten: %v", d)
	}
	if d := out[0].Validations["nHUbob"]; d != nil {
		t.Errorf("missing marker for nHUbob = %v, want nil", *d)
	}
	// Later ledgers are not seeded.
	if _, ok := out[1].Validations["nHUbob"]; ok {
		t.Error("second ledger was seeded with UNL markers")
	}
}

func TestFinalizeCountsLateValidations(t *testing.T) {
	base := ts(0, 0)
	ledgers := []*ledger.Ledger{
		makeLedger(100, base, nil),
		makeLedger(101, base.Add(4*time.Second), ledger.Validations{
			"nHUalice": ledger.Delta(-2.5), // late
			"nHUbob":   ledger.Delta(0),    // exactly on time: not late here
			"nHUcarol": ledger.Delta(1.2),
		}),
	}

	out, err := Finalize(ledgers, nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if out[1].ValidationsTotal != 3 {
		t.Errorf("validations_total = %d, want 3", out[1].ValidationsTotal)
	}
	if out[1].ValidationsLate != 1 {
		t.Errorf("validations_late = %d, want 1 (only negative deltas)", out[1].ValidationsLate)
	}
}

func TestFinalizeFlagsOutOfOrderCloseTimes(t *testing.T) {
	base := ts(0, 0)
	ledgers := []*ledger.Ledger{
		makeLedger(100, base, nil),
		makeLedger(101, base.Add(-2*time.Second), nil), // close time went backwards
	}

	out, err := Finalize(ledgers, nil)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if out[1].Latency != -2 {
		t.Errorf("latency = %v, want -2 (never clamped)", out[1].Latency)
	}
	if !out[1].OutOfOrder {
		t.Error("out_of_order not set on negative latency")
	}
}
