package simulate

import (
	"context"
	"fmt"
	"log"
	"sort"
)

// verifyResults cross-checks presentation scores, the merit leaderboard,
// and the voting session outcome for consistency.
func verifyResults(ctx context.Context, config *Config, members []Member, scores map[string]ScoreResult, leaderboard []Entry, session *SessionResult) error {
	log.Println("verifying results")

	if len(scores) == 0 {
		return fmt.Errorf("no presentation scores to verify")
	}

	if err := verifyLeaderboardOrder(leaderboard); err != nil {
		return err
	}
	log.Println("leaderboard ordering verified")

	verifyScoreSpread(members, scores, config.ColluderRing, config.Verbose)

	if session != nil {
		if err := verifySession(session); err != nil {
			log.Printf("session consistency warning: %v", err)
		} else {
			log.Println("voting session tallies verified")
		}
	}

	displayTopMembers(leaderboard)

	log.Println("result verification completed")
	return nil
}

// verifyLeaderboardOrder checks descending rank and score ordering.
func verifyLeaderboardOrder(leaderboard []Entry) error {
	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].CumulativeScore > leaderboard[i-1].CumulativeScore {
			return fmt.Errorf("leaderboard not sorted: entry %d outranks entry %d", i, i-1)
		}
		if leaderboard[i].Rank <= leaderboard[i-1].Rank {
			return fmt.Errorf("leaderboard ranks not increasing at entry %d", i)
		}
	}
	return nil
}

// verifyScoreSpread compares honest and colluding presentations. With
// outlier removal active, ring presentations should not dominate the
// honest ones despite their straight-ten ballots.
func verifyScoreSpread(members []Member, scores map[string]ScoreResult, colluders int, verbose bool) {
	var honest, ring []float64
	for _, member := range members {
		result, ok := scores[member.PresentationID]
		if !ok || result.Insufficient {
			continue
		}
		if member.Colluder {
			ring = append(ring, result.Score)
		} else {
			honest = append(honest, result.Score)
		}
	}

	if len(honest) > 0 {
		log.Printf("honest presentations: %d scored, avg %.3f, max %.3f",
			len(honest), average(honest), maximum(honest))
	}
	if colluders > 0 && len(ring) > 0 {
		log.Printf("collusion ring presentations: %d scored, avg %.3f, max %.3f",
			len(ring), average(ring), maximum(ring))
	}

	all := append(append([]float64{}, honest...), ring...)
	if verbose && len(all) > 0 {
		sort.Float64s(all)
		log.Printf(`score statistics:
   Count: %d
   Minimum: %.3f
   Maximum: %.3f
   Average: %.3f
`, len(all), all[0], all[len(all)-1], average(all))
	}
}

// verifySession checks the internal consistency of a decided session.
func verifySession(session *SessionResult) error {
	var total float64
	for _, weight := range session.Tallies {
		total += weight
	}
	if total > session.TotalCast+1e-9 {
		return fmt.Errorf("tallies sum %.3f exceeds total cast %.3f", total, session.TotalCast)
	}
	if session.Passed && session.WinningOption == "" {
		return fmt.Errorf("session passed without a winning option")
	}
	if session.Passed && !session.QuorumMet {
		return fmt.Errorf("session passed without meeting quorum")
	}
	return nil
}

// displayTopMembers shows the head of the merit leaderboard.
func displayTopMembers(leaderboard []Entry) {
	topN := 10
	if len(leaderboard) < topN {
		topN = len(leaderboard)
	}

	log.Printf("top %d members by merit:", topN)
	for i := 0; i < topN; i++ {
		entry := leaderboard[i]
		log.Printf("   %d. %s - merit: %.3f weight: %.3f",
			entry.Rank, entry.MemberID, entry.CumulativeScore, entry.VotingWeight)
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func maximum(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
