package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New(ctx))
//  2. file (YAML) if AGORA_CONFIG is set
//  3. env (prefix AGORA_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New(ctx)

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("AGORA_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: AGORA_ADDR, AGORA_QUORUM_FRACTION, ...
	// Map env keys like AGORA_QUORUM_FRACTION -> quorum_fraction (flat keys)
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("AGORA_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "agora_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations that would break component invariants.
func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.MinEvaluators < 1:
		return fmt.Errorf("%w: min_evaluators must be at least 1", ErrInvalidConfig)
	case c.OutlierSigma <= 0:
		return fmt.Errorf("%w: outlier_sigma must be positive", ErrInvalidConfig)
	case c.DecayRate < 0 || c.DecayRate >= 1:
		return fmt.Errorf("%w: decay_rate must be in [0,1)", ErrInvalidConfig)
	case c.MaxVotingWeightRatio < 1:
		return fmt.Errorf("%w: max_voting_weight_ratio must be at least 1", ErrInvalidConfig)
	case c.QuorumFraction <= 0 || c.QuorumFraction > 1:
		return fmt.Errorf("%w: quorum_fraction must be in (0,1]", ErrInvalidConfig)
	case c.RemoveThreshold <= 0 || c.RemoveThreshold > 1:
		return fmt.Errorf("%w: remove_threshold must be in (0,1]", ErrInvalidConfig)
	case c.ReviewThreshold < 0 || c.ReviewThreshold > 1:
		return fmt.Errorf("%w: review_threshold must be in [0,1]", ErrInvalidConfig)
	case c.TrendWindow < 2:
		return fmt.Errorf("%w: trend_window must be at least 2", ErrInvalidConfig)
	}
	return nil
}
