package engine

import (
	"sort"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/event"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/metrics"
)

// Attacher attaches trusted validations to completed ledgers, buffering
// those that arrive before their ledger exists. It also accumulates the
// observed trusted validator set (UNL) for the lifetime of a run.
type Attacher struct {
	pending map[string][]event.Validation
	unl     map[string]struct{}
}

// NewAttacher creates an empty attacher.
func NewAttacher() *Attacher {
	return &Attacher{
		pending: make(map[string][]event.Validation),
		unl:     make(map[string]struct{}),
	}
}

// Observe processes one validation against the correlator's completed
// ledgers. Untrusted validations are discarded immediately. A trusted
// validation either attaches to its ledger or is buffered until the ledger
// appears; either way its master key joins the UNL.
func (a *Attacher) Observe(ev event.Validation, c *Correlator) {
	if !ev.IsTrusted {
		metrics.ValidationsUntrusted.Inc()
		return
	}
	a.unl[ev.MasterKey] = struct{}{}
	l, ok := c.ByHash(ev.LedgerHash)
	if !ok {
		a.pending[ev.LedgerHash] = append(a.pending[ev.LedgerHash], ev)
		metrics.ValidationsBuffered.Inc()
		return
	}
	attach(l, ev)
}

// Drain attaches all validations buffered for l's hash, in original arrival
// order, then discards the buffer. Called each time the correlator produces
// a new ledger.
func (a *Attacher) Drain(l *ledger.Ledger) {
	buffered, ok := a.pending[l.Hash]
	if !ok {
		return
	}
	for _, ev := range buffered {
		attach(l, ev)
	}
	delete(a.pending, l.Hash)
}

// attach computes the signed delta between the ledger's close time and the
// validation's sign time. Negative means the validation was signed after
// the close, i.e. late. A repeated master key overwrites the earlier value.
func attach(l *ledger.Ledger, ev event.Validation) {
	l.Validations[ev.MasterKey] = ledger.Delta(l.Timestamp.Sub(ev.SignTime).Seconds())
	metrics.ValidationsAttached.Inc()
}

// UNL returns the observed trusted validator master keys, sorted for
// deterministic output.
func (a *Attacher) UNL() []string {
	keys := make([]string, 0, len(a.unl))
	for k := range a.unl {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// PendingCount returns how many validations are still buffered, across all
// unresolved hashes.
func (a *Attacher) PendingCount() int {
	n := 0
	for _, evs := range a.pending {
		n += len(evs)
	}
	return n
}
