package model

import "time"

// SessionStatus is the lifecycle state of a voting session.
type SessionStatus string

const (
	SessionOpen    SessionStatus = "open"
	SessionClosed  SessionStatus = "closed"
	SessionDecided SessionStatus = "decided"
)

// EligibleVoter is one (voter, weight) pair frozen at session start.
type EligibleVoter struct {
	VoterID string
	Weight  float64
}

// VotingSession holds one decision's frozen electorate and accumulated
// ballots. The session store owns instances exclusively; ballots are
// appended, never mutated.
type VotingSession struct {
	ID               string
	TargetID         string
	Eligible         []EligibleVoter
	Ballots          map[string]Ballot // keyed by voter id
	Options          []BallotOption
	AbstainOption    BallotOption // excluded from the majority denominator
	RequiredMajority float64
	QuorumFraction   float64
	Status           SessionStatus
	OpenedAt         time.Time
	ClosesAt         time.Time
	Cycle            Cycle
}

// EligibleWeight returns the total weight of the frozen electorate.
func (s VotingSession) EligibleWeight() float64 {
	var total float64
	for _, v := range s.Eligible {
		total += v.Weight
	}
	return total
}

// IsEligible reports whether voterID belongs to the frozen electorate.
func (s VotingSession) IsEligible(voterID string) bool {
	for _, v := range s.Eligible {
		if v.VoterID == voterID {
			return true
		}
	}
	return false
}
