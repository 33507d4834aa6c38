// Package rules evolves governance rule values from weighted cycle votes.
//
// The engine processes one rule per cycle. Rules within a cycle carry no
// shared mutable state, so callers may evolve them in parallel, but voting
// for a rule must be closed before its evolution runs.
package rules

import (
	"context"
	"math"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
	"github.com/meritum/agora/pkg/metrics"
)

// Default evolution parameters.
const (
	defaultRemoveThreshold    = 0.67
	defaultRemoveValueCeiling = 50.0
	defaultMaxChangeBase      = 10.0
	defaultResistanceDamping  = 0.8
	minEffectiveChange        = 1.0
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithRemoveThreshold sets the remove-weight share required for removal.
func WithRemoveThreshold(threshold float64) Option {
	return func(e *Engine) {
		if threshold > 0 && threshold <= 1 {
			e.removeThreshold = threshold
		}
	}
}

// WithRemoveValueCeiling sets the value below which a rule may be removed.
func WithRemoveValueCeiling(ceiling float64) Option {
	return func(e *Engine) {
		if ceiling >= model.RuleValueMin && ceiling <= model.RuleValueMax {
			e.removeValueCeiling = ceiling
		}
	}
}

// WithMaxChangeBase sets the maximum per-cycle value change at zero
// resistance.
func WithMaxChangeBase(base float64) Option {
	return func(e *Engine) {
		if base > 0 {
			e.maxChangeBase = base
		}
	}
}

// WithResistanceDamping sets how strongly resistance suppresses change.
func WithResistanceDamping(damping float64) Option {
	return func(e *Engine) {
		if damping >= 0 && damping <= 1 {
			e.resistanceDamping = damping
		}
	}
}

// Engine applies one cycle's rule votes to a rule value.
type Engine struct {
	removeThreshold    float64
	removeValueCeiling float64
	maxChangeBase      float64
	resistanceDamping  float64
}

// New creates an Engine with configuration options.
func New(opts ...Option) *Engine {
	e := &Engine{
		removeThreshold:    defaultRemoveThreshold,
		removeValueCeiling: defaultRemoveValueCeiling,
		maxChangeBase:      defaultMaxChangeBase,
		resistanceDamping:  defaultResistanceDamping,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Evolve applies the cycle's votes to the rule and returns the modification
// result plus the updated rule. The input rule is not mutated.
//
// Removal is checked first: a rule loses only when remove weight reaches
// the removal threshold and its value sits below the ceiling; entrenched
// rules (value at or above the ceiling) are never removed by vote.
// Otherwise the net strengthen/weaken pressure moves the value against a
// quadratic resistance curve that applies uniformly at every value, and
// changes below one point are dropped as noise.
func (e *Engine) Evolve(_ context.Context, rule model.Rule, votes []model.Ballot) (types.RuleModificationResult, model.Rule, error) {
	if !rule.Active() {
		return types.RuleModificationResult{}, rule, ErrRuleNotActive
	}
	if rule.Value < model.RuleValueMin || rule.Value > model.RuleValueMax {
		// Out-of-bounds stored value means a caller wrote past the engine.
		// Clamping here would hide the upstream defect.
		return types.RuleModificationResult{}, rule, ErrValueOutOfBounds
	}

	result := types.RuleModificationResult{
		RuleID:   rule.ID,
		OldValue: rule.Value,
		NewValue: rule.Value,
	}

	var strengthen, weaken, remove float64
	for _, vote := range votes {
		if vote.TargetID != rule.ID {
			return types.RuleModificationResult{}, rule, ErrVoteTargetMismatch
		}
		switch vote.Option {
		case model.OptionStrengthen:
			strengthen += vote.WeightSnapshot
		case model.OptionWeaken:
			weaken += vote.WeightSnapshot
		case model.OptionRemove:
			remove += vote.WeightSnapshot
		default:
			return types.RuleModificationResult{}, rule, ErrUnknownVoteOption
		}
	}

	total := strengthen + weaken + remove
	if total == 0 {
		return result, rule, nil
	}

	if remove >= e.removeThreshold*total && rule.Value < e.removeValueCeiling {
		rule.Status = model.RuleStatusRemoved
		result.Removed = true
		metrics.RecordRuleRemoval()
		return result, rule, nil
	}

	resistance := (rule.Value / model.RuleValueMax) * (rule.Value / model.RuleValueMax)
	maxChange := e.maxChangeBase * (1 - resistance*e.resistanceDamping)
	netRatio := (strengthen - weaken) / total
	newValue := rule.Value + maxChange*netRatio
	if newValue < model.RuleValueMin {
		newValue = model.RuleValueMin
	}
	if newValue > model.RuleValueMax {
		newValue = model.RuleValueMax
	}

	// Effective change is measured after clamping so a rule pinned at a
	// bound does not keep registering as modified.
	if math.Abs(newValue-rule.Value) < minEffectiveChange {
		return result, rule, nil
	}

	rule.Value = newValue
	result.NewValue = newValue
	result.Modified = true
	metrics.RecordRuleChangeApplied()

	return result, rule, nil
}
