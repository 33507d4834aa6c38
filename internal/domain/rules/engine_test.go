package rules

import (
	"context"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/meritum/agora/internal/domain/model"
)

func activeRule(id string, value float64) model.Rule {
	return model.Rule{
		ID:              id,
		Title:           "test rule",
		Value:           value,
		VotingThreshold: 0.5,
		Status:          model.RuleStatusActive,
	}
}

func ruleVote(target, voter string, opt model.BallotOption, weight float64) model.Ballot {
	return model.Ballot{TargetID: target, VoterID: voter, Option: opt, WeightSnapshot: weight}
}

func TestEngineEvolve(t *testing.T) {
	Convey("Given a rule evolution engine with defaults", t, func() {
		e := New()
		ctx := context.Background()

		Convey("When a rule at 80 receives strengthen 50 and weaken 10", func() {
			rule := activeRule("r-1", 80)
			votes := []model.Ballot{
				ruleVote("r-1", "a", model.OptionStrengthen, 50),
				ruleVote("r-1", "b", model.OptionWeaken, 10),
			}

			result, updated, err := e.Evolve(ctx, rule, votes)

			Convey("Then resistance damps the change to about 3.25 points", func() {
				So(err, ShouldBeNil)
				So(result.Modified, ShouldBeTrue)
				So(result.Removed, ShouldBeFalse)
				So(result.OldValue, ShouldAlmostEqual, 80.0, 1e-9)
				So(result.NewValue, ShouldAlmostEqual, 80.0+4.88*(40.0/60.0), 1e-9)
				So(updated.Value, ShouldAlmostEqual, result.NewValue, 1e-12)
			})
		})

		Convey("When remove weight dominates a low-value rule", func() {
			rule := activeRule("r-1", 40)
			votes := []model.Ballot{
				ruleVote("r-1", "a", model.OptionRemove, 70),
				ruleVote("r-1", "b", model.OptionStrengthen, 30),
			}

			result, updated, err := e.Evolve(ctx, rule, votes)

			Convey("Then the rule is removed with no value change", func() {
				So(err, ShouldBeNil)
				So(result.Removed, ShouldBeTrue)
				So(result.Modified, ShouldBeFalse)
				So(result.NewValue, ShouldAlmostEqual, 40.0, 1e-9)
				So(updated.Status, ShouldEqual, model.RuleStatusRemoved)
			})
		})

		Convey("When remove weight dominates an entrenched rule", func() {
			rule := activeRule("r-1", 50)
			votes := []model.Ballot{
				ruleVote("r-1", "a", model.OptionRemove, 100),
			}

			result, updated, err := e.Evolve(ctx, rule, votes)

			Convey("Then a rule at or above 50 is never removed by vote", func() {
				So(err, ShouldBeNil)
				So(result.Removed, ShouldBeFalse)
				So(result.Modified, ShouldBeFalse)
				So(updated.Status, ShouldEqual, model.RuleStatusActive)
			})
		})

		Convey("When the net change falls below one point", func() {
			rule := activeRule("r-1", 80)
			votes := []model.Ballot{
				ruleVote("r-1", "a", model.OptionStrengthen, 55),
				ruleVote("r-1", "b", model.OptionWeaken, 45),
			}

			result, updated, err := e.Evolve(ctx, rule, votes)

			Convey("Then the change is dropped as noise", func() {
				So(err, ShouldBeNil)
				So(result.Modified, ShouldBeFalse)
				So(result.NewValue, ShouldAlmostEqual, 80.0, 1e-9)
				So(updated.Value, ShouldAlmostEqual, 80.0, 1e-9)
			})
		})

		Convey("When there are no votes", func() {
			result, updated, err := e.Evolve(ctx, activeRule("r-1", 60), nil)
			So(err, ShouldBeNil)
			So(result.Modified, ShouldBeFalse)
			So(result.Removed, ShouldBeFalse)
			So(updated.Value, ShouldAlmostEqual, 60.0, 1e-9)
		})

		Convey("The value stays within [0,100] under repeated evolution", func() {
			rule := activeRule("r-1", 95)
			votes := []model.Ballot{ruleVote("r-1", "a", model.OptionStrengthen, 100)}

			for i := 0; i < 50; i++ {
				_, updated, err := e.Evolve(ctx, rule, votes)
				So(err, ShouldBeNil)
				So(updated.Value, ShouldBeBetweenOrEqual, 0.0, 100.0)
				rule = updated
			}
		})
	})
}

func TestEngineValidation(t *testing.T) {
	Convey("Given a rule evolution engine", t, func() {
		e := New()
		ctx := context.Background()

		Convey("A removed rule cannot evolve", func() {
			rule := activeRule("r-1", 40)
			rule.Status = model.RuleStatusRemoved
			_, _, err := e.Evolve(ctx, rule, nil)
			So(err, ShouldEqual, ErrRuleNotActive)
		})

		Convey("An out-of-bounds stored value is a caller defect", func() {
			rule := activeRule("r-1", 120)
			_, _, err := e.Evolve(ctx, rule, nil)
			So(err, ShouldEqual, ErrValueOutOfBounds)
		})

		Convey("A vote for a different rule is rejected", func() {
			votes := []model.Ballot{ruleVote("r-2", "a", model.OptionStrengthen, 10)}
			_, _, err := e.Evolve(ctx, activeRule("r-1", 60), votes)
			So(err, ShouldEqual, ErrVoteTargetMismatch)
		})

		Convey("A non-rule ballot option is rejected", func() {
			votes := []model.Ballot{ruleVote("r-1", "a", model.OptionSupport, 10)}
			_, _, err := e.Evolve(ctx, activeRule("r-1", 60), votes)
			So(err, ShouldEqual, ErrUnknownVoteOption)
		})
	})
}
