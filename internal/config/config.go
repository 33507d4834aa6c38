// Package config defines service configuration structures and loading hooks.
//
// Every tunable of the scoring and governance core lives here so that no
// component carries implicit defaults at its call sites. The struct is
// versioned: bump Version when a field changes meaning.
package config

import (
	"context"
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// Version identifies the configuration schema revision.
	Version string `koanf:"version"`

	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DetectionQueueSize bounds the in-memory detection job queue.
	DetectionQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of detection workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the evaluation-event deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ArchivePath locates the sqlite audit archive. Empty disables archiving.
	ArchivePath string `koanf:"archive_path"`

	// Aggregation tunables.

	// MinEvaluators is the floor below which aggregation returns a
	// zero-confidence result.
	MinEvaluators int `koanf:"min_evaluators"`

	// OutlierSigma is the deviation threshold, in standard deviations,
	// beyond which an evaluation is discarded.
	OutlierSigma float64 `koanf:"outlier_sigma"`

	// OutlierMinCount disables outlier removal below this sample size.
	OutlierMinCount int `koanf:"outlier_min_count"`

	// QualityGain scales the quality multiplier bonus.
	QualityGain float64 `koanf:"quality_gain"`

	// ParticipationGain scales the participation multiplier bonus.
	ParticipationGain float64 `koanf:"participation_gain"`

	// ParticipationCountsRemoved keeps outlier-removed evaluations in the
	// participation numerator.
	ParticipationCountsRemoved bool `koanf:"participation_counts_removed"`

	// Merit tunables.

	// DecayRate is the per-cycle exponential decay applied to history.
	DecayRate float64 `koanf:"decay_rate"`

	// SubjectMultiplier scales the voting-weight transform per subject.
	SubjectMultiplier float64 `koanf:"subject_multiplier"`

	// MaxVotingWeightRatio caps voting weight.
	MaxVotingWeightRatio float64 `koanf:"max_voting_weight_ratio"`

	// Detection tunables.

	// CollusionWindowSeconds is the submission window that marks a pair
	// of evaluations as suspiciously close in time.
	CollusionWindowSeconds int `koanf:"collusion_window_seconds"`

	// FastEvaluationMinutes marks an evaluation as rushed.
	FastEvaluationMinutes float64 `koanf:"fast_evaluation_minutes"`

	// ReviewThreshold is the overall suspicion level above which a
	// detection record requires manual review.
	ReviewThreshold float64 `koanf:"review_threshold"`

	// Governance tunables.

	// QuorumFraction is the default fraction of eligible weight that must
	// participate for a session to be decided.
	QuorumFraction float64 `koanf:"quorum_fraction"`

	// RemoveThreshold is the remove-weight share required to remove a rule.
	RemoveThreshold float64 `koanf:"remove_threshold"`

	// RemoveValueCeiling protects rules at or above this value from removal.
	RemoveValueCeiling float64 `koanf:"remove_value_ceiling"`

	// MaxChangeBase is the largest per-cycle rule value change before
	// resistance damping.
	MaxChangeBase float64 `koanf:"max_change_base"`

	// ResistanceDamping scales how strongly resistance reduces change.
	ResistanceDamping float64 `koanf:"resistance_damping"`

	// DirectorCredits is the initial proposal credit granted per director.
	DirectorCredits int `koanf:"director_credits"`

	// Selection tunables.

	// TrendWindow is the number of trailing cycles used for the trend slope.
	TrendWindow int `koanf:"trend_window"`

	// MinMembershipCycles gates representative eligibility.
	MinMembershipCycles int `koanf:"min_membership_cycles"`

	// MinParticipationRate gates representative eligibility.
	MinParticipationRate float64 `koanf:"min_participation_rate"`

	// MinMeritScore is the selection floor for representatives.
	MinMeritScore float64 `koanf:"min_merit_score"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use and currently
// unused.
func New(_ context.Context) *Config {
	c := &Config{
		Version:                    "1",
		LogLevel:                   "info",
		Addr:                       ":9080",
		DetectionQueueSize:         50_000,
		WorkerCount:                runtime.NumCPU() * 4,
		DedupeSize:                 500_000,
		MaxLeaderboardLimit:        100,
		ArchivePath:                "agora.db",
		MinEvaluators:              3,
		OutlierSigma:               2.0,
		OutlierMinCount:            5,
		QualityGain:                0.2,
		ParticipationGain:          0.3,
		ParticipationCountsRemoved: true,
		DecayRate:                  0.05,
		SubjectMultiplier:          1.0,
		MaxVotingWeightRatio:       10.0,
		CollusionWindowSeconds:     120,
		FastEvaluationMinutes:      5.0,
		ReviewThreshold:            0.7,
		QuorumFraction:             0.6,
		RemoveThreshold:            0.67,
		RemoveValueCeiling:         50,
		MaxChangeBase:              10,
		ResistanceDamping:          0.8,
		DirectorCredits:            3,
		TrendWindow:                5,
		MinMembershipCycles:        4,
		MinParticipationRate:       0.75,
		MinMeritScore:              5.0,
	}
	return c
}
