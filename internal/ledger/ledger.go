// Package ledger defines the central ledger record produced by the
// correlation engine and consumed by the report aggregator.
package ledger

import (
	"errors"
	"time"
)

// ErrEmptyTimeline is returned when a stream produced no completed ledgers,
// so no timeline (and no report) can be generated.
var ErrEmptyTimeline = errors.New("empty timeline: no ledgers could be correlated")

// Validations maps a validator's master key to the signed delta (seconds)
// between the ledger's close time and the validation's sign time. A nil
// entry is an explicit "missing" marker: the validator is a known UNL
// member but no validation for this ledger was observed.
type Validations map[string]*float64

// Ledger is one correlated consensus round. Seq and Hash never change after
// creation; Latency and the validation counters are filled in by the
// timeline finalizer once the full stream has been consumed.
type Ledger struct {
	Seq          int64     `json:"seq"`
	Hash         string    `json:"hash"`
	BuiltLatency float64   `json:"built_latency"`
	Latency      float64   `json:"latency"`
	Timestamp    time.Time `json:"timestamp"`

	Validations      Validations `json:"validations"`
	ValidationsTotal int         `json:"validations_total"`
	ValidationsLate  int         `json:"validations_late"`

	// OutOfOrder marks a ledger whose close time precedes its predecessor's,
	// which indicates corrupt or reordered input.
	OutOfOrder bool `json:"out_of_order,omitempty"`
}

// Delta returns a pointer to v, for building Validations literals.
func Delta(v float64) *float64 { return &v }
