package evaluator

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// maxRules bounds the work done per evaluation. Evaluation runs
// synchronously on the hot path and does no I/O, so bounding rule count
// bounds its latency.
const maxRules = 256

// LoadRulesFile reads evaluator configuration from a standalone YAML file,
// for deployments that manage rules separately from the main config.
func LoadRulesFile(file string) (Config, error) {
	raw, err := os.ReadFile(file)
	if err != nil {
		return Config{}, eris.Wrapf(err, "evaluator: read rules file %s", file)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, eris.Wrapf(err, "evaluator: parse rules file %s", file)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that an evaluator configuration is internally consistent.
func Validate(cfg Config) error {
	var errs []string

	if cfg.DefaultThreshold < 0 || cfg.DefaultThreshold > 1 {
		errs = append(errs, "default_threshold must be between 0 and 1")
	}
	for field, t := range cfg.FieldThresholds {
		if t < 0 || t > 1 {
			errs = append(errs, fmt.Sprintf("field_thresholds[%s] must be between 0 and 1", field))
		}
	}

	if len(cfg.Rules) > maxRules {
		errs = append(errs, fmt.Sprintf("at most %d rules allowed, got %d", maxRules, len(cfg.Rules)))
	}

	seen := make(map[string]bool, len(cfg.Rules))
	for i, r := range cfg.Rules {
		if r.ID == "" {
			errs = append(errs, fmt.Sprintf("rules[%d] missing id", i))
		} else if seen[r.ID] {
			errs = append(errs, fmt.Sprintf("duplicate rule id %q", r.ID))
		}
		seen[r.ID] = true

		if r.Multiplier < 0 {
			errs = append(errs, fmt.Sprintf("rule %q: multiplier must be >= 0", r.ID))
		}
		if r.Min < 0 || r.Min > 1 {
			errs = append(errs, fmt.Sprintf("rule %q: min must be between 0 and 1", r.ID))
		}
		if r.Max < 0 || r.Max > 1 {
			errs = append(errs, fmt.Sprintf("rule %q: max must be between 0 and 1", r.ID))
		}
		if r.Max > 0 && r.Min > r.Max {
			errs = append(errs, fmt.Sprintf("rule %q: min must be <= max", r.ID))
		}
		if r.FieldPattern != "" {
			if _, err := path.Match(r.FieldPattern, "probe"); err != nil {
				errs = append(errs, fmt.Sprintf("rule %q: invalid field pattern %q", r.ID, r.FieldPattern))
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("evaluator: config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
