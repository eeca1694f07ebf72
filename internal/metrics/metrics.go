package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LinesScanned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgertrace_lines_scanned_total",
		Help: "Total number of log lines read from the input stream.",
	})

	EventsMatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledgertrace_events_matched_total",
		Help: "Total number of classified events, labelled by event kind.",
	}, []string{"kind"})

	EventsMalformed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgertrace_events_malformed_total",
		Help: "Total number of lines that matched an event shape but carried an unparseable field.",
	})

	LedgersCorrelated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgertrace_ledgers_correlated_total",
		Help: "Total number of ledgers created by merging a Built and an Advancing event.",
	})

	ValidationsAttached = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgertrace_validations_attached_total",
		Help: "Total number of trusted validations attached to a ledger.",
	})

	ValidationsBuffered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgertrace_validations_buffered_total",
		Help: "Total number of trusted validations buffered because their ledger was not yet known.",
	})

	ValidationsUntrusted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledgertrace_validations_untrusted_total",
		Help: "Total number of validations discarded because they were not trusted.",
	})

	AnalysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledgertrace_analysis_duration_seconds",
		Help:    "Wall-clock duration of one full parse-and-finalize pass.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	})
)
