package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

// RuleDependencies defines the interface for rule governance operations.
type RuleDependencies interface {
	ProposeRule(ctx context.Context, rule model.Rule) (model.Rule, error)
	CastRuleVote(ctx context.Context, ruleID, voterID string, option model.BallotOption) error
	GetRule(ctx context.Context, ruleID string) (model.Rule, error)
	CloseCycle(ctx context.Context) (model.Cycle, []types.RuleModificationResult, error)
}

// RulesHandler handles rule proposal, voting, and cycle evolution endpoints.
type RulesHandler struct {
	deps RuleDependencies
}

// NewRulesHandler creates a new rules handler.
func NewRulesHandler(deps RuleDependencies) *RulesHandler {
	return &RulesHandler{deps: deps}
}

// proposeRuleRequest mirrors the OpenAPI schema for POST /rules.
type proposeRuleRequest struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Value           float64  `json:"value"`
	VotingThreshold float64  `json:"voting_threshold"`
	DependsOn       []string `json:"depends_on,omitempty"`
	ConflictsWith   []string `json:"conflicts_with,omitempty"`
	ProposedBy      string   `json:"proposed_by"`
}

func (p proposeRuleRequest) validate() error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return errors.New("missing id")
	case strings.TrimSpace(p.Title) == "":
		return errors.New("missing title")
	case strings.TrimSpace(p.ProposedBy) == "":
		return errors.New("missing proposed_by")
	case p.Value < model.RuleValueMin || p.Value > model.RuleValueMax:
		return errors.New("value out of bounds")
	}
	return nil
}

func (p proposeRuleRequest) toModel() model.Rule {
	return model.Rule{
		ID:              p.ID,
		Title:           p.Title,
		Value:           p.Value,
		VotingThreshold: p.VotingThreshold,
		DependsOn:       p.DependsOn,
		ConflictsWith:   p.ConflictsWith,
		Status:          model.RuleStatusPendingApproval,
		ProposedBy:      p.ProposedBy,
	}
}

type ruleView struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Value           float64  `json:"value"`
	VotingThreshold float64  `json:"voting_threshold"`
	DependsOn       []string `json:"depends_on,omitempty"`
	ConflictsWith   []string `json:"conflicts_with,omitempty"`
	Status          string   `json:"status"`
	ProposedBy      string   `json:"proposed_by,omitempty"`
}

func newRuleView(r model.Rule) ruleView {
	return ruleView{
		ID:              r.ID,
		Title:           r.Title,
		Value:           r.Value,
		VotingThreshold: r.VotingThreshold,
		DependsOn:       r.DependsOn,
		ConflictsWith:   r.ConflictsWith,
		Status:          string(r.Status),
		ProposedBy:      r.ProposedBy,
	}
}

// HandlePostRule handles POST /rules requests.
func (h *RulesHandler) HandlePostRule(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rule"

	var req proposeRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	proposed, err := h.deps.ProposeRule(r.Context(), req.toModel())
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, newRuleView(proposed))
}

// HandlePostVote handles POST /rules/{id}/votes requests.
func (h *RulesHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_rule_vote"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req ballotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.VoterID) == "" || strings.TrimSpace(req.Option) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing voter_id or option")))
		return
	}

	if err := h.deps.CastRuleVote(r.Context(), id, req.VoterID, model.BallotOption(req.Option)); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "accepted"})
}

// HandleGetRule handles GET /rules/{id} requests.
func (h *RulesHandler) HandleGetRule(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rule"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	rule, err := h.deps.GetRule(r.Context(), id)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newRuleView(rule))
}

type cycleCloseResponse struct {
	Cycle         int                            `json:"cycle"`
	Modifications []types.RuleModificationResult `json:"modifications"`
}

// HandlePostCycleClose handles POST /cycles/close requests. It seals the
// current cycle's rule ballots, evolves every active rule, and advances the
// cycle counter.
func (h *RulesHandler) HandlePostCycleClose(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_cycle_close"

	cycle, mods, err := h.deps.CloseCycle(r.Context())
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, cycleCloseResponse{Cycle: int(cycle), Modifications: mods})
}
