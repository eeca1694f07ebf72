package config

// Config is the top-level YAML structure.
type Config struct {
	Version  string       `yaml:"version"`
	Analysis AnalysisConf `yaml:"analysis"`
	Serve    ServeConf    `yaml:"serve"`
	Output   OutputConf   `yaml:"output"`
	Rules    []RuleDef    `yaml:"rules"`
}

// AnalysisConf holds tunables for the parse-and-aggregate pass.
type AnalysisConf struct {
	// ThresholdSeconds marks ledger closes slower than this in the report.
	ThresholdSeconds float64 `yaml:"threshold_seconds"`
	// ProgressInterval logs parse progress every N correlated ledgers.
	ProgressInterval int `yaml:"progress_interval"`
}

// ServeConf configures the optional HTTP serve mode.
type ServeConf struct {
	Addr string `yaml:"addr"`
	// WatchLog re-analyzes the log file when it changes.
	WatchLog   bool `yaml:"watch_log"`
	DebounceMs int  `yaml:"debounce_ms"`
}

// OutputConf names the report and raw-ledger output destinations.
// "stdout" (or empty report) writes to standard output; an empty raw path
// disables raw output.
type OutputConf struct {
	Report string `yaml:"report"`
	Raw    string `yaml:"raw"`
}

// RuleDef declares a data-quality rule evaluated against every ledger.
type RuleDef struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Expression  string `yaml:"expression"`
}

// Default returns the configuration used when no config file is given.
func Default() *Config {
	cfg := &Config{Version: "v1"}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Analysis.ThresholdSeconds == 0 {
		cfg.Analysis.ThresholdSeconds = 10.0
	}
	if cfg.Analysis.ProgressInterval == 0 {
		cfg.Analysis.ProgressInterval = 100
	}
	if cfg.Serve.Addr == "" {
		cfg.Serve.Addr = ":8080"
	}
	if cfg.Serve.DebounceMs == 0 {
		cfg.Serve.DebounceMs = 500
	}
	if cfg.Output.Report == "" {
		cfg.Output.Report = "stdout"
	}
}
