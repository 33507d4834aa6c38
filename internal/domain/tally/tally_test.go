package tally

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

func decisionSession(eligible []model.EligibleVoter, ballots map[string]model.Ballot) model.VotingSession {
	return model.VotingSession{
		ID:               "s-1",
		TargetID:         "proj-1",
		Eligible:         eligible,
		Ballots:          ballots,
		Options:          []model.BallotOption{model.OptionSupport, model.OptionOppose, model.OptionAbstain},
		AbstainOption:    model.OptionAbstain,
		RequiredMajority: 0.5,
		QuorumFraction:   0.6,
	}
}

func cast(voter string, opt model.BallotOption, weight float64) model.Ballot {
	return model.Ballot{TargetID: "proj-1", VoterID: voter, Option: opt, WeightSnapshot: weight}
}

func TestCountQuorum(t *testing.T) {
	Convey("Given a session with eligible weight 100", t, func() {
		eligible := []model.EligibleVoter{
			{VoterID: "a", Weight: 40},
			{VoterID: "b", Weight: 35},
			{VoterID: "c", Weight: 25},
		}

		Convey("When cast weight sums to 55 out of 100", func() {
			ballots := map[string]model.Ballot{
				"a": cast("a", model.OptionSupport, 40),
				"c": cast("c", model.OptionSupport, 15),
			}
			result := Count(decisionSession(eligible, ballots))

			Convey("Then quorum fails regardless of the vote distribution", func() {
				So(result.QuorumMet, ShouldBeFalse)
				So(result.Passed, ShouldBeFalse)
				So(result.FailureReason, ShouldEqual, types.FailureQuorum)
				So(result.TotalCast, ShouldAlmostEqual, 55.0, 1e-9)
				So(result.TotalEligible, ShouldAlmostEqual, 100.0, 1e-9)
			})
		})

		Convey("When cast weight reaches exactly the quorum boundary", func() {
			ballots := map[string]model.Ballot{
				"a": cast("a", model.OptionSupport, 40),
				"b": cast("b", model.OptionOppose, 20),
			}
			result := Count(decisionSession(eligible, ballots))

			Convey("Then quorum is met at the boundary", func() {
				So(result.QuorumMet, ShouldBeTrue)
			})
		})
	})
}

func TestCountMajority(t *testing.T) {
	Convey("Given a session that meets quorum", t, func() {
		eligible := []model.EligibleVoter{
			{VoterID: "a", Weight: 30},
			{VoterID: "b", Weight: 30},
			{VoterID: "c", Weight: 20},
			{VoterID: "d", Weight: 20},
		}

		Convey("A clear majority passes", func() {
			ballots := map[string]model.Ballot{
				"a": cast("a", model.OptionSupport, 30),
				"b": cast("b", model.OptionSupport, 30),
				"c": cast("c", model.OptionOppose, 20),
			}
			result := Count(decisionSession(eligible, ballots))

			So(result.Passed, ShouldBeTrue)
			So(result.WinningOption, ShouldEqual, string(model.OptionSupport))
			So(result.FailureReason, ShouldEqual, types.FailureNone)
		})

		Convey("Abstain weight counts toward quorum but not the majority denominator", func() {
			ballots := map[string]model.Ballot{
				"a": cast("a", model.OptionSupport, 30),
				"b": cast("b", model.OptionAbstain, 30),
				"c": cast("c", model.OptionAbstain, 20),
			}
			result := Count(decisionSession(eligible, ballots))

			Convey("Then support wins with 100% of decision-bearing weight", func() {
				So(result.QuorumMet, ShouldBeTrue)
				So(result.Passed, ShouldBeTrue)
				So(result.WinningOption, ShouldEqual, string(model.OptionSupport))
			})
		})

		Convey("A tie between leading options yields no winner", func() {
			ballots := map[string]model.Ballot{
				"a": cast("a", model.OptionSupport, 30),
				"b": cast("b", model.OptionOppose, 30),
			}
			result := Count(decisionSession(eligible, ballots))

			So(result.Passed, ShouldBeFalse)
			So(result.WinningOption, ShouldBeEmpty)
			So(result.FailureReason, ShouldEqual, types.FailureNoMajority)
		})

		Convey("Only abstentions yield no winner", func() {
			ballots := map[string]model.Ballot{
				"a": cast("a", model.OptionAbstain, 30),
				"b": cast("b", model.OptionAbstain, 30),
			}
			result := Count(decisionSession(eligible, ballots))

			So(result.QuorumMet, ShouldBeTrue)
			So(result.Passed, ShouldBeFalse)
			So(result.FailureReason, ShouldEqual, types.FailureNoMajority)
		})

		Convey("A plurality below the required majority does not pass", func() {
			session := decisionSession(eligible, map[string]model.Ballot{
				"a": cast("a", model.OptionSupport, 30),
				"b": cast("b", model.OptionOppose, 20),
				"c": cast("c", model.OptionAbstain, 10),
			})
			session.RequiredMajority = 0.75
			result := Count(session)

			So(result.QuorumMet, ShouldBeTrue)
			So(result.Passed, ShouldBeFalse)
			So(result.WinningOption, ShouldEqual, string(model.OptionSupport))
			So(result.FailureReason, ShouldEqual, types.FailureUnderMajority)
		})
	})
}

func TestCountDeterminism(t *testing.T) {
	Convey("Identical sessions always tally identically", t, func() {
		eligible := []model.EligibleVoter{
			{VoterID: "a", Weight: 50},
			{VoterID: "b", Weight: 50},
		}
		ballots := map[string]model.Ballot{
			"a": cast("a", model.OptionSupport, 50),
			"b": cast("b", model.OptionOppose, 50),
		}

		first := Count(decisionSession(eligible, ballots))
		second := Count(decisionSession(eligible, ballots))

		So(second, ShouldResemble, first)
	})
}

func TestCountDefaults(t *testing.T) {
	Convey("A zero quorum fraction falls back to the default", t, func() {
		session := decisionSession(
			[]model.EligibleVoter{{VoterID: "a", Weight: 100}},
			map[string]model.Ballot{"a": cast("a", model.OptionSupport, 50)},
		)
		session.QuorumFraction = 0

		result := Count(session)
		So(result.QuorumMet, ShouldBeFalse)
		So(result.FailureReason, ShouldEqual, types.FailureQuorum)
	})
}
