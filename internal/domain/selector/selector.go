// Package selector picks a subject representative from merit components.
package selector

import (
	"context"
	"sort"

	"github.com/meritum/agora/internal/domain/model"
)

// Merit component weights.
const (
	academicWeight      = 0.60
	trendWeight         = 0.20
	participationWeight = 0.15
	leadershipWeight    = 0.05
)

// Default eligibility parameters.
const (
	defaultTrendWindow      = 5
	defaultMinCycles        = 4
	defaultMinParticipation = 0.75
	defaultMinMerit         = 5.0
	neutralTrend            = 5.0
	trendSlopeGain          = 5.0
)

// Option applies a configuration option to the Selector.
type Option func(*Selector)

// WithTrendWindow sets how many recent cycles feed the trend regression.
func WithTrendWindow(window int) Option {
	return func(s *Selector) {
		if window >= 2 {
			s.trendWindow = window
		}
	}
}

// WithMinMembershipCycles sets the minimum membership age in cycles.
func WithMinMembershipCycles(cycles int) Option {
	return func(s *Selector) {
		if cycles >= 0 {
			s.minCycles = cycles
		}
	}
}

// WithMinParticipationRate sets the minimum participation rate.
func WithMinParticipationRate(rate float64) Option {
	return func(s *Selector) {
		if rate >= 0 && rate <= 1 {
			s.minParticipation = rate
		}
	}
}

// WithMinMeritScore sets the merit floor a candidate must reach.
func WithMinMeritScore(score float64) Option {
	return func(s *Selector) {
		if score >= 0 {
			s.minMerit = score
		}
	}
}

// Candidate is one eligible member with their merit breakdown.
type Candidate struct {
	MemberID           string
	MeritScore         float64
	AcademicScore      float64
	TrendScore         float64
	ParticipationScore float64
	LeadershipScore    float64
}

// Selection is the outcome of a representative selection.
type Selection struct {
	SubjectID      string
	Representative Candidate
	Ranked         []Candidate // eligible candidates, best first
	Considered     int         // all members before eligibility filtering
}

// Selector ranks eligible members by composite merit.
type Selector struct {
	trendWindow      int
	minCycles        int
	minParticipation float64
	minMerit         float64
}

// New creates a Selector with configuration options.
func New(opts ...Option) *Selector {
	s := &Selector{
		trendWindow:      defaultTrendWindow,
		minCycles:        defaultMinCycles,
		minParticipation: defaultMinParticipation,
		minMerit:         defaultMinMerit,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Select picks the representative for a subject from its active members.
// It returns ErrNoEligibleCandidates when nobody passes the eligibility
// filter and the merit floor; this is a reported condition, the fallback
// governance action belongs to the caller.
func (s *Selector) Select(_ context.Context, subjectID string, members []model.Member, cycle model.Cycle) (Selection, error) {
	selection := Selection{SubjectID: subjectID, Considered: len(members)}

	for _, m := range members {
		if !s.eligible(m, cycle) {
			continue
		}
		c := s.score(m)
		if c.MeritScore < s.minMerit {
			continue
		}
		selection.Ranked = append(selection.Ranked, c)
	}

	if len(selection.Ranked) == 0 {
		return selection, ErrNoEligibleCandidates
	}

	// Stable order with an identifier tiebreak keeps selection
	// deterministic across runs.
	sort.Slice(selection.Ranked, func(i, j int) bool {
		a, b := selection.Ranked[i], selection.Ranked[j]
		if a.MeritScore != b.MeritScore {
			return a.MeritScore > b.MeritScore
		}
		return a.MemberID < b.MemberID
	})

	selection.Representative = selection.Ranked[0]
	return selection, nil
}

func (s *Selector) eligible(m model.Member, cycle model.Cycle) bool {
	if int(cycle-m.JoinedCycle) < s.minCycles {
		return false
	}
	if m.ParticipationRate < s.minParticipation {
		return false
	}
	return !m.Sanctioned
}

func (s *Selector) score(m model.Member) Candidate {
	trend := s.trendScore(m.History)
	return Candidate{
		MemberID:           m.ID,
		AcademicScore:      m.CumulativeScore,
		TrendScore:         trend,
		ParticipationScore: m.ParticipationScore,
		LeadershipScore:    m.LeadershipScore,
		MeritScore: m.CumulativeScore*academicWeight +
			trend*trendWeight +
			m.ParticipationScore*participationWeight +
			m.LeadershipScore*leadershipWeight,
	}
}

// trendScore maps the least-squares slope of the last trendWindow scores
// onto [0,10], with a flat history sitting at the neutral midpoint. A
// slope of +-1 point per cycle saturates the scale.
func (s *Selector) trendScore(history []model.HistoryEntry) float64 {
	if len(history) > s.trendWindow {
		history = history[len(history)-s.trendWindow:]
	}
	if len(history) < 2 {
		return neutralTrend
	}

	n := float64(len(history))
	var sumX, sumY, sumXY, sumXX float64
	for i, entry := range history {
		x := float64(i)
		sumX += x
		sumY += entry.Score
		sumXY += x * entry.Score
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return neutralTrend
	}
	slope := (n*sumXY - sumX*sumY) / denom

	trend := neutralTrend + slope*trendSlopeGain
	if trend < 0 {
		return 0
	}
	if trend > float64(model.MaxScore) {
		return float64(model.MaxScore)
	}
	return trend
}
