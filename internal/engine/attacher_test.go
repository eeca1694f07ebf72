package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/event"
)

func validation(hash, master string, signTime time.Time, trusted bool) event.Validation {
	return event.Validation{
		LedgerHash: hash,
		MasterKey:  master,
		SignTime:   signTime,
		IsTrusted:  trusted,
		IsValid:    true,
		IsFull:     true,
	}
}

func completeLedger(t *testing.T, c *Correlator, seq int64, hash string, close time.Time) {
	t.Helper()
	c.ObserveBuilt(event.Built{Timestamp: close.Add(-time.Second), Seq: seq, Hash: hash})
	if l := c.ObserveAdvancing(event.Advancing{Timestamp: close, Seq: seq}); l == nil {
		t.Fatalf("ledger %d did not complete", seq)
	}
}

func TestAttacherDirectAttach(t *testing.T) {
	c := NewCorrelator()
	a := NewAttacher()
	close := ts(48, 0)
	completeLedger(t, c, 5, "H5", close)

	// Signed 2.5s before the close: delta is positive.
	a.Observe(validation("H5", "nHUalice", close.Add(-2500*time.Millisecond), true), c)

	l, _ := c.ByHash("H5")
	delta, ok := l.Validations["nHUalice"]
	if !ok || delta == nil {
		t.Fatal("validation not attached")
	}
	if *delta != 2.5 {
		t.Errorf("delta = %v, want 2.5", *delta)
	}
}

func TestAttacherLateValidationNegativeDelta(t *testing.T) {
	c := NewCorrelator()
	a := NewAttacher()
	close := ts(48, 0)
	completeLedger(t, c, 5, "H5", close)

	a.Observe(validation("H5", "nHUbob", close.Add(2500*time.Millisecond), true), c)

	l, _ := c.ByHash("H5")
	if delta := l.Validations["nHUbob"]; delta == nil || *delta != -2.5 {
		t.Fatalf("delta = %v, want -2.5", delta)
	}
}

func TestAttacherBufferingEquivalence(t *testing.T) {
	close := ts(48, 0)
	signTime := close.Add(-time.Second)

	// Validation first, ledger later.
	c1 := NewCorrelator()
	a1 := NewAttacher()
	a1.Observe(validation("H5", "nHUalice", signTime, true), c1)
	c1.ObserveBuilt(event.Built{Timestamp: close.Add(-time.Second), Seq: 5, Hash: "H5"})
	l1 := c1.ObserveAdvancing(event.Advancing{Timestamp: close, Seq: 5})
	a1.Drain(l1)

	// Ledger first, validation later.
	c2 := NewCorrelator()
	a2 := NewAttacher()
	completeLedger(t, c2, 5, "H5", close)
	a2.Observe(validation("H5", "nHUalice", signTime, true), c2)

	l2, _ := c2.ByHash("H5")
	if !reflect.DeepEqual(l1.Validations, l2.Validations) {
		t.Errorf("buffered and direct attach differ:\n buffered: %v\n direct:   %v", l1.Validations, l2.Validations)
	}
	if a1.PendingCount() != 0 {
		t.Errorf("pending validations = %d after drain, want 0", a1.PendingCount())
	}
}

func TestAttacherUntrustedExcluded(t *testing.T) {
	c := NewCorrelator()
	a := NewAttacher()
	completeLedger(t, c, 5, "H5", ts(48, 0))

	a.Observe(validation("H5", "nHUmallory", ts(47, 0), false), c)

	l, _ := c.ByHash("H5")
	if _, ok := l.Validations["nHUmallory"]; ok {
		t.Error("untrusted validation appeared in validations map")
	}
	if len(a.UNL()) != 0 {
		t.Errorf("UNL = %v, want empty", a.UNL())
	}
}

func TestAttacherLatestWriteWins(t *testing.T) {
	c := NewCorrelator()
	a := NewAttacher()
	close := ts(48, 0)
	completeLedger(t, c, 5, "H5", close)

	a.Observe(validation("H5", "nHUalice", close.Add(-time.Second), true), c)
	a.Observe(validation("H5", "nHUalice", close.Add(-3*time.Second), true), c)

	l, _ := c.ByHash("H5")
	if delta := l.Validations["nHUalice"]; delta == nil || *delta != 3.0 {
		t.Fatalf("delta = %v, want the later value 3.0", delta)
	}
}

func TestAttacherUNLAccumulatesFromBufferedValidations(t *testing.T) {
	c := NewCorrelator()
	a := NewAttacher()

	// No ledger for this hash will ever exist; the validator is still a
	// known UNL member.
	a.Observe(validation("ORPHAN", "nHUcarol", ts(40, 0), true), c)

	if got := a.UNL(); !reflect.DeepEqual(got, []string{"nHUcarol"}) {
		t.Errorf("UNL = %v, want [nHUcarol]", got)
	}
	if a.PendingCount() != 1 {
		t.Errorf("pending validations = %d, want 1", a.PendingCount())
	}
}
