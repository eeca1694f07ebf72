package config

import (
	"fmt"
	"strings"

	"github.com/gyaneshwarpardhi/ledgertrace/internal/rule"
)

// Validate checks the config for:
//   - Required fields and sane ranges
//   - Duplicate rule IDs
//   - Rule expressions that fail to compile
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Version == "" {
		errs = append(errs, "version is required")
	}
	if cfg.Analysis.ThresholdSeconds < 0 {
		errs = append(errs, "analysis.threshold_seconds must not be negative")
	}
	if cfg.Analysis.ProgressInterval < 0 {
		errs = append(errs, "analysis.progress_interval must not be negative")
	}
	if cfg.Serve.DebounceMs < 0 {
		errs = append(errs, "serve.debounce_ms must not be negative")
	}

	ids := make(map[string]struct{})
	for i, rd := range cfg.Rules {
		if rd.ID == "" {
			errs = append(errs, fmt.Sprintf("rules[%d]: id is required", i))
			continue
		}
		if _, ok := ids[rd.ID]; ok {
			errs = append(errs, fmt.Sprintf("duplicate rule id %q", rd.ID))
		} else {
			ids[rd.ID] = struct{}{}
		}
		if rd.Expression == "" {
			errs = append(errs, fmt.Sprintf("rule %s: expression is required", rd.ID))
			continue
		}
		if _, err := rule.Compile(rd.ID, rd.Description, rd.Expression); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CompileRules compiles the configured rule expressions. The config must
// already have passed Validate.
func CompileRules(cfg *Config) ([]*rule.Rule, error) {
	rules := make([]*rule.Rule, 0, len(cfg.Rules))
	for _, rd := range cfg.Rules {
		r, err := rule.Compile(rd.ID, rd.Description, rd.Expression)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}
