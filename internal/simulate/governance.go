package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// Voting session parameters for the simulated governance round.
const (
	sessionMajority = 0.5
	sessionQuorum   = 0.25
	sessionWindow   = 10 * time.Minute
	opposeShare     = 3 // one in N voters opposes
)

type openSessionRequest struct {
	ID               string  `json:"id"`
	TargetID         string  `json:"target_id"`
	RequiredMajority float64 `json:"required_majority"`
	QuorumFraction   float64 `json:"quorum_fraction"`
	ClosesAt         string  `json:"closes_at"`
	Cycle            int     `json:"cycle"`
}

type ballotRequest struct {
	VoterID string `json:"voter_id"`
	Option  string `json:"option"`
}

// runVotingSession opens a session against the frozen merit board, casts
// ballots from the current leaderboard members, closes the session, and
// returns the decided result.
func runVotingSession(ctx context.Context, config *Config, leaderboard []Entry, stats *Stats) (*SessionResult, error) {
	if len(leaderboard) == 0 {
		return nil, fmt.Errorf("no leaderboard members to vote with")
	}

	client := newHTTPClient(config.Timeout)
	sessionID := "sim-session-" + uuid.New().String()

	log.Printf("opening voting session %s with %d candidate voters", sessionID, len(leaderboard))

	open := openSessionRequest{
		ID:               sessionID,
		TargetID:         "proposal-" + uuid.New().String(),
		RequiredMajority: sessionMajority,
		QuorumFraction:   sessionQuorum,
		ClosesAt:         time.Now().UTC().Add(sessionWindow).Format(time.RFC3339),
		Cycle:            config.Cycle,
	}

	resp, err := client.Post(ctx, config.BaseURL+"/sessions", open)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read open response: %w", err)
	}
	if resp.StatusCode != StatusCreated {
		return nil, fmt.Errorf("session open returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	// Ballot from every leaderboard member; a minority opposes so the
	// tally has more than one option in it.
	ballotURL := fmt.Sprintf("%s/sessions/%s/ballots", config.BaseURL, sessionID)
	for i, entry := range leaderboard {
		option := "support"
		if i%opposeShare == opposeShare-1 {
			option = "oppose"
		}

		resp, err := client.Post(ctx, ballotURL, ballotRequest{VoterID: entry.MemberID, Option: option})
		if err != nil {
			stats.BallotsRejected++
			continue
		}
		if _, err := readResponseBody(resp); err != nil {
			stats.BallotsRejected++
			continue
		}
		if resp.StatusCode == StatusOK {
			stats.BallotsCast++
		} else {
			stats.BallotsRejected++
			if config.Verbose {
				log.Printf("ballot from %s rejected with HTTP %d", entry.MemberID, resp.StatusCode)
			}
		}
	}

	log.Printf("cast %d ballots (%d rejected), closing session", stats.BallotsCast, stats.BallotsRejected)

	resp, err = client.Post(ctx, fmt.Sprintf("%s/sessions/%s/close", config.BaseURL, sessionID), struct{}{})
	if err != nil {
		return nil, fmt.Errorf("failed to close session: %w", err)
	}
	body, err = readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read close response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("session close returned HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result SessionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse session result: %w", err)
	}

	log.Printf("session decided: passed=%v quorumMet=%v winner=%q cast=%.2f",
		result.Passed, result.QuorumMet, result.WinningOption, result.TotalCast)

	return &result, nil
}
