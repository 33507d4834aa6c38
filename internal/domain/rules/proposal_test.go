package rules

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

func pendingRule(id string) model.Rule {
	return model.Rule{
		ID:              id,
		Title:           "proposed rule",
		Value:           50,
		VotingThreshold: 0.6,
		Status:          model.RuleStatusPendingApproval,
		ProposedBy:      "dir-1",
	}
}

func TestCreditLedger(t *testing.T) {
	Convey("Given a ledger with 3 credits per cycle", t, func() {
		ledger := NewCreditLedger(3)

		Convey("A director can spend exactly the granted credits", func() {
			So(ledger.Spend("dir-1", 1), ShouldBeNil)
			So(ledger.Spend("dir-1", 1), ShouldBeNil)
			So(ledger.Spend("dir-1", 1), ShouldBeNil)
			So(ledger.Spend("dir-1", 1), ShouldEqual, ErrInsufficientCredit)
			So(ledger.Remaining("dir-1", 1), ShouldEqual, 0)
		})

		Convey("Credits are scoped per director and per cycle", func() {
			So(ledger.Spend("dir-1", 1), ShouldBeNil)
			So(ledger.Remaining("dir-1", 1), ShouldEqual, 2)
			So(ledger.Remaining("dir-2", 1), ShouldEqual, 3)
			So(ledger.Remaining("dir-1", 2), ShouldEqual, 3)
		})

		Convey("A refund restores a spent credit", func() {
			So(ledger.Spend("dir-1", 1), ShouldBeNil)
			So(ledger.Remaining("dir-1", 1), ShouldEqual, 2)
			ledger.Refund("dir-1", 1)
			So(ledger.Remaining("dir-1", 1), ShouldEqual, 3)
		})

		Convey("A refund never exceeds the cycle grant", func() {
			ledger.Refund("dir-1", 1)
			So(ledger.Remaining("dir-1", 1), ShouldEqual, 3)
		})

		Convey("A non-positive grant falls back to the default", func() {
			l := NewCreditLedger(0)
			So(l.Remaining("dir-1", 1), ShouldEqual, DefaultDirectorCredits)
		})
	})
}

func TestValidateProposal(t *testing.T) {
	Convey("Given an active rule set", t, func() {
		active := map[string]model.Rule{
			"r-base":    {ID: "r-base", Value: 70, Status: model.RuleStatusActive},
			"r-removed": {ID: "r-removed", Value: 30, Status: model.RuleStatusRemoved},
		}

		Convey("A clean proposal validates", func() {
			rule := pendingRule("r-new")
			rule.DependsOn = []string{"r-base"}
			So(ValidateProposal(rule, active), ShouldBeNil)
		})

		Convey("A proposal depending on a removed rule is rejected", func() {
			rule := pendingRule("r-new")
			rule.DependsOn = []string{"r-removed"}
			So(ValidateProposal(rule, active), ShouldEqual, ErrMissingDependency)
		})

		Convey("A proposal conflicting with an active rule is rejected", func() {
			rule := pendingRule("r-new")
			rule.ConflictsWith = []string{"r-base"}
			So(ValidateProposal(rule, active), ShouldEqual, ErrConflictingRule)
		})

		Convey("A conflict with an already-removed rule is allowed", func() {
			rule := pendingRule("r-new")
			rule.ConflictsWith = []string{"r-removed"}
			So(ValidateProposal(rule, active), ShouldBeNil)
		})

		Convey("Only pending rules can be validated as proposals", func() {
			rule := pendingRule("r-new")
			rule.Status = model.RuleStatusActive
			So(ValidateProposal(rule, active), ShouldEqual, ErrNotPending)
		})
	})
}

func TestDecide(t *testing.T) {
	Convey("Given a pending proposal", t, func() {
		Convey("A passed vote activates it", func() {
			updated, err := Decide(pendingRule("r-new"), types.VotingResult{Passed: true})
			So(err, ShouldBeNil)
			So(updated.Status, ShouldEqual, model.RuleStatusActive)
		})

		Convey("A failed vote rejects it terminally", func() {
			updated, err := Decide(pendingRule("r-new"), types.VotingResult{
				Passed:        false,
				FailureReason: types.FailureQuorum,
			})
			So(err, ShouldBeNil)
			So(updated.Status, ShouldEqual, model.RuleStatusRejected)
		})

		Convey("Deciding a non-pending rule is an error", func() {
			rule := pendingRule("r-new")
			rule.Status = model.RuleStatusRejected
			_, err := Decide(rule, types.VotingResult{Passed: true})
			So(err, ShouldEqual, ErrNotPending)
		})
	})
}
