package event

import "time"

// Kind discriminates the three recognized consensus log events.
type Kind string

const (
	KindBuilt      Kind = "built"
	KindAdvancing  Kind = "advancing"
	KindValidation Kind = "validation"
)

// Event is the common interface for all classified log events.
type Event interface {
	Kind() Kind
	Time() time.Time
}

// Built is emitted when the local node finishes constructing a candidate
// ledger ("LedgerConsensus:DBG Built ledger").
type Built struct {
	Timestamp time.Time
	Seq       int64
	Hash      string
}

func (Built) Kind() Kind        { return KindBuilt }
func (b Built) Time() time.Time { return b.Timestamp }

// Advancing is emitted when the local node accepts a ledger as the new
// validated head ("LedgerMaster:NFO Advancing accepted ledger").
type Advancing struct {
	Timestamp time.Time
	Seq       int64
}

func (Advancing) Kind() Kind        { return KindAdvancing }
func (a Advancing) Time() time.Time { return a.Timestamp }

// Validation is a per-validator attestation for a ledger hash
// ("NetworkOPs:DBG VALIDATION"). SignTime is the validation's own signing
// timestamp and is the one used for latency deltas; LineTime is the log
// line's timestamp prefix, carried for completeness.
type Validation struct {
	LineTime        time.Time
	LedgerHash      string
	ConsensusHash   string
	SignTime        time.Time
	SeenTime        string
	SignerPublicKey string
	NodeID          string
	IsValid         bool
	IsFull          bool
	IsTrusted       bool
	SigningHash     string
	Base58          string
	MasterKey       string
}

func (Validation) Kind() Kind        { return KindValidation }
func (v Validation) Time() time.Time { return v.SignTime }
