package engine

import (
	"time"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/event"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/metrics"
)

// pendingBuilt is a Built event waiting for its Advancing counterpart.
type pendingBuilt struct {
	timestamp time.Time
	hash      string
}

// Correlator merges Built and Advancing events for the same sequence number
// into ledger records, in either arrival order. It is the single owner of
// the pending maps and the completed-ledger maps; all access is sequential.
type Correlator struct {
	builts     map[int64]pendingBuilt
	advancings map[int64]time.Time

	byHash map[string]*ledger.Ledger
	bySeq  map[int64]*ledger.Ledger
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{
		builts:     make(map[int64]pendingBuilt),
		advancings: make(map[int64]time.Time),
		byHash:     make(map[string]*ledger.Ledger),
		bySeq:      make(map[int64]*ledger.Ledger),
	}
}

// ObserveBuilt records a Built event. If the matching Advancing event was
// already seen, the completed ledger is created and returned; otherwise nil.
func (c *Correlator) ObserveBuilt(ev event.Built) *ledger.Ledger {
	if _, done := c.bySeq[ev.Seq]; done {
		return nil // replayed event for a completed sequence
	}
	tAdv, ok := c.advancings[ev.Seq]
	if !ok {
		if _, dup := c.builts[ev.Seq]; !dup {
			c.builts[ev.Seq] = pendingBuilt{timestamp: ev.Timestamp, hash: ev.Hash}
		}
		return nil
	}
	delete(c.advancings, ev.Seq)
	return c.complete(ev.Seq, ev.Hash, ev.Timestamp, tAdv)
}

// ObserveAdvancing records an Advancing event, symmetric to ObserveBuilt.
func (c *Correlator) ObserveAdvancing(ev event.Advancing) *ledger.Ledger {
	if _, done := c.bySeq[ev.Seq]; done {
		return nil
	}
	pb, ok := c.builts[ev.Seq]
	if !ok {
		if _, dup := c.advancings[ev.Seq]; !dup {
			c.advancings[ev.Seq] = ev.Timestamp
		}
		return nil
	}
	delete(c.builts, ev.Seq)
	return c.complete(ev.Seq, pb.hash, pb.timestamp, ev.Timestamp)
}

// complete builds the ledger record once both halves are known. The built
// latency is the absolute distance between the two timestamps: arrival
// order says nothing about the physical build duration.
func (c *Correlator) complete(seq int64, hash string, tBuilt, tAdv time.Time) *ledger.Ledger {
	builtLatency := tAdv.Sub(tBuilt).Seconds()
	if builtLatency < 0 {
		builtLatency = -builtLatency
	}
	l := &ledger.Ledger{
		Seq:          seq,
		Hash:         hash,
		BuiltLatency: builtLatency,
		Timestamp:    tAdv,
		Validations:  make(ledger.Validations),
	}
	c.byHash[hash] = l
	c.bySeq[seq] = l
	metrics.LedgersCorrelated.Inc()
	return l
}

// ByHash returns the completed ledger for hash, if any.
func (c *Correlator) ByHash(hash string) (*ledger.Ledger, bool) {
	l, ok := c.byHash[hash]
	return l, ok
}

// Ledgers returns all completed ledgers, in no particular order.
func (c *Correlator) Ledgers() []*ledger.Ledger {
	out := make([]*ledger.Ledger, 0, len(c.bySeq))
	for _, l := range c.bySeq {
		out = append(out, l)
	}
	return out
}

// Count returns the number of completed ledgers.
func (c *Correlator) Count() int { return len(c.bySeq) }
