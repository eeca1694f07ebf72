// Package classifier matches raw rippled log lines against the three
// recognized consensus event shapes and extracts typed events.
package classifier

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/event"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/metrics"
)

// Anchor substrings used to cheaply reject the overwhelming majority of
// lines before any regexp runs.
const (
	anchorBuilt      = "LedgerConsensus:DBG Built ledger"
	anchorAdvancing  = "LedgerMaster:NFO Advancing accepted ledger to"
	anchorValidation = "NetworkOPs:DBG VALIDATION: validation:"
)

var (
	builtRe     = regexp.MustCompile(`^(.*) LedgerConsensus:DBG Built ledger #(\d+): (.*)$`)
	advancingRe = regexp.MustCompile(`^(.*) LedgerMaster:NFO Advancing accepted ledger to (\d+).*`)

	validationRe = regexp.MustCompile(
		`^(.*) NetworkOPs:DBG VALIDATION: validation:  ledger_hash: (\S+)` +
			` consensus_hash: (\S+)` +
			` sign_time: (.*)` +
			` seen_time: (.*)` +
			` signer_public_key: (\S+)` +
			` node_id: (\S+)` +
			` is_valid: (\d)` +
			` is_full: (\d)` +
			` is_trusted: (\d)` +
			` signing_hash: (\S+)` +
			` base58: (\S+)` +
			` master_key: (\S+)$`)
)

// Timestamp layouts seen in rippled logs and validation dumps, tried in
// order. rippled's own prefix is the Mon-abbreviated form.
var timeLayouts = []string{
	"2006-Jan-02 15:04:05.999999999 MST",
	"2006-Jan-02 15:04:05.999999999",
	"2006-Jan-02 15:04:05 MST",
	"2006-Jan-02 15:04:05",
	"2006-01-02 15:04:05.999999999 MST",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// ParseTimestamp parses a rippled log timestamp, preserving full sub-second
// precision.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// Classify matches one raw line against the three known event shapes.
// It returns nil for lines that match no shape, and also for lines that
// match a shape but carry a malformed field (a malformed capture
// invalidates the whole event rather than partially populating it).
func Classify(line string) event.Event {
	switch {
	case strings.Contains(line, anchorBuilt):
		return classifyBuilt(line)
	case strings.Contains(line, anchorAdvancing):
		return classifyAdvancing(line)
	case strings.Contains(line, anchorValidation):
		return classifyValidation(line)
	}
	return nil
}

func classifyBuilt(line string) event.Event {
	m := builtRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	ts, err := ParseTimestamp(m[1])
	if err != nil {
		metrics.EventsMalformed.Inc()
		return nil
	}
	seq, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		metrics.EventsMalformed.Inc()
		return nil
	}
	metrics.EventsMatched.WithLabelValues(string(event.KindBuilt)).Inc()
	return event.Built{Timestamp: ts, Seq: seq, Hash: m[3]}
}

func classifyAdvancing(line string) event.Event {
	m := advancingRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	ts, err := ParseTimestamp(m[1])
	if err != nil {
		metrics.EventsMalformed.Inc()
		return nil
	}
	seq, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		metrics.EventsMalformed.Inc()
		return nil
	}
	metrics.EventsMatched.WithLabelValues(string(event.KindAdvancing)).Inc()
	return event.Advancing{Timestamp: ts, Seq: seq}
}

func classifyValidation(line string) event.Event {
	m := validationRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	lineTime, err := ParseTimestamp(m[1])
	if err != nil {
		metrics.EventsMalformed.Inc()
		return nil
	}
	signTime, err := ParseTimestamp(m[4])
	if err != nil {
		metrics.EventsMalformed.Inc()
		return nil
	}
	metrics.EventsMatched.WithLabelValues(string(event.KindValidation)).Inc()
	return event.Validation{
		LineTime:        lineTime,
		LedgerHash:      m[2],
		ConsensusHash:   m[3],
		SignTime:        signTime,
		SeenTime:        strings.TrimSpace(m[5]),
		SignerPublicKey: m[6],
		NodeID:          m[7],
		IsValid:         m[8] == "1",
		IsFull:          m[9] == "1",
		IsTrusted:       m[10] == "1",
		SigningHash:     m[11],
		Base58:          m[12],
		MasterKey:       m[13],
	}
}
