// Package evaluator scores raw model output against configured rules and
// thresholds, producing a routing decision. Evaluation is a pure function:
// no I/O, no hidden state, deterministic for a given configuration.
package evaluator

import (
	"fmt"
	"math"
	"path"

	"github.com/sells-group/enrich-cli/internal/model"
)

// Rule adjusts confidence for fields matching its pattern. Rules apply in
// configuration order: multiply, add bonus, clamp to [Min, Max].
type Rule struct {
	ID           string  `yaml:"id" mapstructure:"id"`
	FieldPattern string  `yaml:"field_pattern" mapstructure:"field_pattern"`
	Multiplier   float64 `yaml:"multiplier" mapstructure:"multiplier"`
	Bonus        float64 `yaml:"bonus" mapstructure:"bonus"`
	Min          float64 `yaml:"min" mapstructure:"min"`
	Max          float64 `yaml:"max" mapstructure:"max"`
}

// matches reports whether the rule applies to the field. Patterns use
// path.Match syntax ("*" matches any field).
func (r Rule) matches(field string) bool {
	if r.FieldPattern == "" || r.FieldPattern == "*" {
		return true
	}
	ok, err := path.Match(r.FieldPattern, field)
	return err == nil && ok
}

// Config holds evaluation thresholds and adjustment rules.
type Config struct {
	// DefaultThreshold gates auto-apply when no field override exists.
	DefaultThreshold float64 `yaml:"default_threshold" mapstructure:"default_threshold"`

	// FieldThresholds overrides the default per field name.
	FieldThresholds map[string]float64 `yaml:"field_thresholds" mapstructure:"field_thresholds"`

	// Rules apply in order to matching fields.
	Rules []Rule `yaml:"rules" mapstructure:"rules"`
}

// DefaultConfig returns the evaluator configuration used when none is set.
func DefaultConfig() Config {
	return Config{DefaultThreshold: 0.7}
}

// Evaluator applies a fixed configuration to raw model results.
type Evaluator struct {
	cfg Config
}

// New creates an evaluator after validating the configuration.
func New(cfg Config) (*Evaluator, error) {
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg}, nil
}

// Threshold returns the threshold in effect for a field.
func (e *Evaluator) Threshold(field string) float64 {
	if t, ok := e.cfg.FieldThresholds[field]; ok {
		return t
	}
	return e.cfg.DefaultThreshold
}

// Evaluate scores one result. Malformed input yields a decision of error
// rather than a panic or a silent low-confidence routing; the orchestrator
// routes error like manual review but records it distinctly.
func (e *Evaluator) Evaluate(result model.RawModelResult) model.ConfidenceEvaluation {
	ev := model.ConfidenceEvaluation{
		RawConfidence: result.RawConfidence,
	}

	if result.Field == "" {
		ev.Decision = model.DecisionError
		ev.Reason = "evaluation failed: result has no field name"
		return ev
	}
	if math.IsNaN(result.RawConfidence) || result.RawConfidence < 0 || result.RawConfidence > 1 {
		ev.Decision = model.DecisionError
		ev.Reason = fmt.Sprintf("evaluation failed: confidence %v outside [0,1]", result.RawConfidence)
		return ev
	}

	adjusted := result.RawConfidence
	for _, rule := range e.cfg.Rules {
		if !rule.matches(result.Field) {
			continue
		}
		mul := rule.Multiplier
		if mul == 0 {
			mul = 1
		}
		max := rule.Max
		if max == 0 {
			max = 1
		}
		adjusted = adjusted*mul + rule.Bonus
		if adjusted < rule.Min {
			adjusted = rule.Min
		}
		if adjusted > max {
			adjusted = max
		}
		ev.RulesApplied = append(ev.RulesApplied, rule.ID)
	}

	threshold := e.Threshold(result.Field)
	ev.AdjustedConfidence = adjusted
	ev.ThresholdUsed = threshold

	if adjusted >= threshold {
		ev.Decision = model.DecisionAutoApply
	} else {
		ev.Decision = model.DecisionManualReview
		ev.Reason = fmt.Sprintf("confidence %.3f < threshold %.3f", adjusted, threshold)
	}
	return ev
}
