package model

import "time"

// BallotOption names one choice on a ballot.
type BallotOption string

// Generic decision options.
const (
	OptionSupport BallotOption = "support"
	OptionOppose  BallotOption = "oppose"
	OptionAbstain BallotOption = "abstain"
)

// Rule vote options.
const (
	OptionStrengthen BallotOption = "strengthen"
	OptionWeaken     BallotOption = "weaken"
	OptionRemove     BallotOption = "remove"
)

// Ballot is one weighted vote against a target (rule, proposition, or
// session). Unique per (target, voter, cycle); the weight snapshot is taken
// when the ballot is cast and never revised.
type Ballot struct {
	TargetID       string
	VoterID        string
	Option         BallotOption
	WeightSnapshot float64
	Cycle          Cycle
	CastAt         time.Time
}
