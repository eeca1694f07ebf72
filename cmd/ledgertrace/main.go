package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/api"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/config"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/engine"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/ledger"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/report"
	"github.com/gyaneshwarpardhi/ledgertrace/internal/rule"
)

func main() {
	output := flag.String("o", "", "Report output path (default stdout)")
	threshold := flag.Float64("t", 0, "Threshold in seconds for reporting slow ledger closes")
	rawOutput := flag.String("R", "", "Output path for the raw processed ledger list")
	doReport := flag.Bool("r", true, "Generate the summary report")
	cfgPath := flag.String("config", "", "Path to YAML config (optional)")
	serveMode := flag.Bool("serve", false, "Serve the analysis over HTTP instead of exiting")
	addr := flag.String("addr", "", "HTTP listen address for serve mode (default from config)")
	verbose := flag.Bool("v", false, "Enable debug logging")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(),
			"Usage: %s [flags] <rippled log file>\n\n"+
				"Parses rippled consensus logs to calculate ledger build latency, ledger close\n"+
				"latency, and UNL validator latencies. Assumes LedgerConsensus and NetworkOPs\n"+
				"log at debug level and LedgerMaster at info level.\n\n",
			os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	logPath := flag.Arg(0)

	// ── Load config ──────────────────────────────────────────────────────────
	var loader *config.Loader
	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		loader, err = config.NewLoader(*cfgPath)
		if err != nil {
			slog.Error("failed to load config", "err", err)
			os.Exit(1)
		}
		cfg = loader.Config()
	}
	// Explicit flags win over the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			cfg.Analysis.ThresholdSeconds = *threshold
		case "o":
			cfg.Output.Report = *output
		case "R":
			cfg.Output.Raw = *rawOutput
		case "addr":
			cfg.Serve.Addr = *addr
		}
	})
	if err := config.Validate(cfg); err != nil {
		slog.Error("config validation failed", "err", err)
		os.Exit(1)
	}
	rules, err := config.CompileRules(cfg)
	if err != nil {
		slog.Error("failed to compile rules", "err", err)
		os.Exit(1)
	}

	// ── Initial analysis ──────────────────────────────────────────────────────
	ledgers, err := analyze(logPath, cfg)
	if err != nil {
		slog.Error("analysis failed", "file", logPath, "err", err)
		os.Exit(1)
	}

	if *serveMode {
		serve(cfg.Serve.Addr, logPath, loader, cfg, rules, ledgers)
		return
	}

	if cfg.Output.Raw != "" {
		if err := writeDoc(cfg.Output.Raw, ledgers); err != nil {
			slog.Error("failed to write raw output", "err", err)
			os.Exit(1)
		}
	}
	if *doReport {
		rep, err := report.Build(ledgers, report.Options{
			ThresholdSeconds: cfg.Analysis.ThresholdSeconds,
			Rules:            rules,
		})
		if err != nil {
			slog.Error("failed to build report", "err", err)
			os.Exit(1)
		}
		if err := writeDoc(cfg.Output.Report, rep); err != nil {
			slog.Error("failed to write report", "err", err)
			os.Exit(1)
		}
	}
}

// analyze runs one full parse of the log file.
func analyze(path string, cfg *config.Config) ([]*ledger.Ledger, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	e := engine.New()
	e.ProgressInterval = cfg.Analysis.ProgressInterval
	return e.Run(f)
}

// writeDoc writes v as indented JSON to path; "stdout" or "" writes to
// standard output.
func writeDoc(path string, v any) error {
	out := os.Stdout
	if path != "" && path != "stdout" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		out = f
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// serve exposes the analysis over HTTP, re-analyzing when the log file or
// the config changes.
func serve(addr, logPath string, loader *config.Loader, cfg *config.Config, rules []*rule.Rule, ledgers []*ledger.Ledger) {
	var mu sync.Mutex // one analysis at a time

	buildSnapshot := func(ledgers []*ledger.Ledger) (*api.Snapshot, error) {
		mu.Lock()
		threshold := cfg.Analysis.ThresholdSeconds
		activeRules := rules
		mu.Unlock()
		rep, err := report.Build(ledgers, report.Options{ThresholdSeconds: threshold, Rules: activeRules})
		if err != nil {
			return nil, err
		}
		return api.NewSnapshot(ledgers, rep), nil
	}

	rescan := func() (*api.Snapshot, error) {
		mu.Lock()
		current := cfg
		mu.Unlock()
		ledgers, err := analyze(logPath, current)
		if err != nil {
			return nil, err
		}
		return buildSnapshot(ledgers)
	}

	handler := api.New(loader, rescan)

	snap, err := buildSnapshot(ledgers)
	if err != nil {
		slog.Error("failed to build report", "err", err)
		os.Exit(1)
	}
	handler.Swap(snap)

	// ── Config hot-reload: re-aggregate with the new threshold and rules ─────
	if loader != nil {
		loader.OnChange(func(newCfg *config.Config) {
			if err := config.Validate(newCfg); err != nil {
				slog.Warn("hot-reload skipped: config invalid", "err", err)
				return
			}
			newRules, err := config.CompileRules(newCfg)
			if err != nil {
				slog.Warn("hot-reload skipped: rule compile failed", "err", err)
				return
			}
			mu.Lock()
			cfg = newCfg
			rules = newRules
			mu.Unlock()
			if snap, err := rescan(); err == nil {
				handler.Swap(snap)
				slog.Info("config hot-reloaded", "rules", len(newRules))
			} else {
				slog.Warn("hot-reload re-analysis failed", "err", err)
			}
		})
		stopWatch, err := loader.Watch()
		if err != nil {
			slog.Warn("config watcher unavailable (hot-reload disabled)", "err", err)
		} else {
			defer stopWatch()
		}
	}

	// ── Log-file watcher: re-analyze on growth ────────────────────────────────
	if cfg.Serve.WatchLog {
		debounce := time.Duration(cfg.Serve.DebounceMs) * time.Millisecond
		stopLog, err := engine.WatchFile(logPath, debounce, func() {
			snap, err := rescan()
			if err != nil {
				slog.Warn("re-analysis failed", "err", err)
				return
			}
			handler.Swap(snap)
			slog.Info("log re-analyzed", "run_id", snap.RunID, "ledgers", len(snap.Ledgers))
		})
		if err != nil {
			slog.Warn("log watcher unavailable", "err", err)
		} else {
			defer stopLog()
		}
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down…")

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutCancel()
	_ = srv.Shutdown(shutCtx)
	slog.Info("goodbye")
}
