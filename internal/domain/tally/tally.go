// Package tally counts weighted ballots for a voting session.
//
// Count is a pure function over the session's frozen electorate and ballot
// set: identical inputs always produce identical results, so a tally can be
// recomputed idempotently for live display or audit replay. Ballot
// acceptance (one per voter, session open, voter eligible) is enforced by
// the session store before ballots ever reach this package.
package tally

import (
	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

// DefaultQuorumFraction is the cast-weight share of eligible weight
// required before any tally counts.
const DefaultQuorumFraction = 0.6

// Count tallies the session's ballots and returns the deterministic result.
//
// Quorum is evaluated first: when total cast weight falls short of the
// quorum fraction of eligible weight the result is a quorum failure
// regardless of how the ballots split. Otherwise the winning option must
// reach the required majority of decision-bearing weight, with the abstain
// option excluded from the denominator. A tie between leading options means
// no winner.
func Count(session model.VotingSession) types.VotingResult {
	quorumFraction := session.QuorumFraction
	if quorumFraction <= 0 {
		quorumFraction = DefaultQuorumFraction
	}

	result := types.VotingResult{
		SessionID:     session.ID,
		Tallies:       make(map[string]float64, len(session.Options)),
		TotalEligible: session.EligibleWeight(),
	}
	for _, opt := range session.Options {
		result.Tallies[string(opt)] = 0
	}

	for _, ballot := range session.Ballots {
		result.Tallies[string(ballot.Option)] += ballot.WeightSnapshot
		result.TotalCast += ballot.WeightSnapshot
	}

	if result.TotalCast < quorumFraction*result.TotalEligible {
		result.FailureReason = types.FailureQuorum
		return result
	}
	result.QuorumMet = true

	// Majority is measured against decision-bearing weight only.
	var decisionWeight float64
	var winning model.BallotOption
	var winningWeight float64
	tied := false
	for _, opt := range session.Options {
		if opt == session.AbstainOption {
			continue
		}
		w := result.Tallies[string(opt)]
		decisionWeight += w
		switch {
		case w > winningWeight:
			winning, winningWeight, tied = opt, w, false
		case w == winningWeight && winningWeight > 0:
			tied = true
		}
	}

	if tied || winningWeight == 0 || decisionWeight == 0 {
		result.FailureReason = types.FailureNoMajority
		return result
	}

	if winningWeight/decisionWeight < session.RequiredMajority {
		result.WinningOption = string(winning)
		result.FailureReason = types.FailureUnderMajority
		return result
	}

	result.Passed = true
	result.WinningOption = string(winning)
	return result
}
