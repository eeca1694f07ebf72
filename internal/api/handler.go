package api

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/config"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/report"
)

// Snapshot is one finished analysis: the finalized timeline plus its
// aggregated report. Snapshots are immutable; a re-analysis swaps in a
// whole new one.
type Snapshot struct {
	RunID    string
	ParsedAt time.Time
	Ledgers  []*ledger.Ledger
	Report   *report.Report
}

// NewSnapshot stamps a finished analysis with a run ID.
func NewSnapshot(ledgers []*ledger.Ledger, rep *report.Report) *Snapshot {
	return &Snapshot{
		RunID:    uuid.New().String(),
		ParsedAt: time.Now().UTC(),
		Ledgers:  ledgers,
		Report:   rep,
	}
}

// Handler serves the latest analysis snapshot over HTTP.
type Handler struct {
	loader   *config.Loader
	rescan   func() (*Snapshot, error)
	snapshot atomic.Pointer[Snapshot]
	handler  http.Handler
}

// New creates an HTTP handler and registers all routes. rescan re-parses
// the log file from scratch; the handler swaps in whatever it returns.
func New(loader *config.Loader, rescan func() (*Snapshot, error)) *Handler {
	h := &Handler{loader: loader, rescan: rescan}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/report", h.getReport)
	mux.HandleFunc("GET /v1/ledgers", h.getLedgers)
	mux.HandleFunc("GET /v1/validators", h.getValidators)
	mux.HandleFunc("POST /v1/rescan", h.postRescan)
	mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	mux.HandleFunc("GET /healthz", h.healthz)
	mux.HandleFunc("GET /readyz", h.readyz)
	mux.Handle("GET /metrics", promhttp.Handler())
	h.handler = loggingMiddleware(mux)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.handler.ServeHTTP(w, r)
}

// Swap publishes a new snapshot atomically.
func (h *Handler) Swap(s *Snapshot) {
	h.snapshot.Store(s)
}

// GET /v1/report — the aggregated report for the latest analysis.
func (h *Handler) getReport(w http.ResponseWriter, r *http.Request) {
	s := h.snapshot.Load()
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "no analysis available yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    s.RunID,
		"parsed_at": s.ParsedAt,
		"report":    s.Report,
	})
}

// GET /v1/ledgers — the raw finalized timeline.
func (h *Handler) getLedgers(w http.ResponseWriter, r *http.Request) {
	s := h.snapshot.Load()
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "no analysis available yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  s.RunID,
		"ledgers": s.Ledgers,
	})
}

// GET /v1/validators — the per-validator breakdown from the report.
func (h *Handler) getValidators(w http.ResponseWriter, r *http.Request) {
	s := h.snapshot.Load()
	if s == nil {
		writeError(w, http.StatusServiceUnavailable, "no analysis available yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     s.RunID,
		"validators": s.Report.Validators,
	})
}

// POST /v1/rescan — synchronous re-parse of the log file.
func (h *Handler) postRescan(w http.ResponseWriter, r *http.Request) {
	jobID := uuid.New().String()
	s, err := h.rescan()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Sprintf("rescan %s: %s", jobID, err))
		return
	}
	h.Swap(s)
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":  jobID,
		"run_id":  s.RunID,
		"ledgers": len(s.Ledgers),
	})
}

// POST /v1/config/reload — hot-reload config from disk. Re-aggregation
// happens through the loader's OnChange callbacks.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusNotFound, "no config file in use")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reloaded":    true,
		"rules_count": len(cfg.Rules),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 until the first analysis has completed.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	s := h.snapshot.Load()
	if s == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "analyzing"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ready",
		"run_id":    s.RunID,
		"parsed_at": s.ParsedAt,
	})
}
