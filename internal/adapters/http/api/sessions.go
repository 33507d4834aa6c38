package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

// SessionDependencies defines the interface for voting session lifecycle
// operations.
type SessionDependencies interface {
	OpenSession(ctx context.Context, session model.VotingSession) (model.VotingSession, error)
	CastSessionBallot(ctx context.Context, sessionID, voterID string, option model.BallotOption) error
	CloseSession(ctx context.Context, sessionID string) (types.VotingResult, error)
	SessionResult(ctx context.Context, sessionID string) (types.VotingResult, error)
}

// SessionsHandler handles voting session endpoints.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type eligibleVoterRequest struct {
	VoterID string  `json:"voter_id"`
	Weight  float64 `json:"weight"`
}

// openSessionRequest mirrors the OpenAPI schema for POST /sessions. When
// eligible is empty the electorate is frozen from the current merit board.
type openSessionRequest struct {
	ID               string                 `json:"id"`
	TargetID         string                 `json:"target_id"`
	Eligible         []eligibleVoterRequest `json:"eligible,omitempty"`
	Options          []string               `json:"options,omitempty"`
	AbstainOption    string                 `json:"abstain_option,omitempty"`
	RequiredMajority float64                `json:"required_majority"`
	QuorumFraction   float64                `json:"quorum_fraction"`
	ClosesAt         string                 `json:"closes_at"`
	Cycle            int                    `json:"cycle"`
}

func (s openSessionRequest) validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return errors.New("missing id")
	case strings.TrimSpace(s.TargetID) == "":
		return errors.New("missing target_id")
	case s.RequiredMajority <= 0 || s.RequiredMajority > 1:
		return errors.New("required_majority must be in (0, 1]")
	case s.QuorumFraction < 0 || s.QuorumFraction > 1:
		return errors.New("quorum_fraction must be in [0, 1]")
	case strings.TrimSpace(s.ClosesAt) == "":
		return errors.New("missing closes_at")
	}
	closesAt, err := time.Parse(time.RFC3339, s.ClosesAt)
	if err != nil {
		return errors.New("invalid closes_at; must be RFC3339")
	}
	if !closesAt.After(time.Now()) {
		return errors.New("closes_at must be in the future")
	}
	return nil
}

func (s openSessionRequest) toModel() model.VotingSession {
	session := model.VotingSession{
		ID:               s.ID,
		TargetID:         s.TargetID,
		RequiredMajority: s.RequiredMajority,
		QuorumFraction:   s.QuorumFraction,
		Cycle:            model.Cycle(s.Cycle),
	}
	session.ClosesAt, _ = time.Parse(time.RFC3339, s.ClosesAt)
	for _, v := range s.Eligible {
		session.Eligible = append(session.Eligible, model.EligibleVoter{VoterID: v.VoterID, Weight: v.Weight})
	}
	for _, opt := range s.Options {
		session.Options = append(session.Options, model.BallotOption(opt))
	}
	if s.AbstainOption != "" {
		session.AbstainOption = model.BallotOption(s.AbstainOption)
	}
	return session
}

type sessionView struct {
	ID               string  `json:"id"`
	TargetID         string  `json:"target_id"`
	EligibleCount    int     `json:"eligible_count"`
	EligibleWeight   float64 `json:"eligible_weight"`
	RequiredMajority float64 `json:"required_majority"`
	QuorumFraction   float64 `json:"quorum_fraction"`
	Status           string  `json:"status"`
	OpenedAt         string  `json:"opened_at"`
	ClosesAt         string  `json:"closes_at"`
	Cycle            int     `json:"cycle"`
}

func newSessionView(s model.VotingSession) sessionView {
	return sessionView{
		ID:               s.ID,
		TargetID:         s.TargetID,
		EligibleCount:    len(s.Eligible),
		EligibleWeight:   s.EligibleWeight(),
		RequiredMajority: s.RequiredMajority,
		QuorumFraction:   s.QuorumFraction,
		Status:           string(s.Status),
		OpenedAt:         s.OpenedAt.Format(time.RFC3339Nano),
		ClosesAt:         s.ClosesAt.Format(time.RFC3339Nano),
		Cycle:            int(s.Cycle),
	}
}

// HandlePostSession handles POST /sessions requests.
func (h *SessionsHandler) HandlePostSession(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_session"

	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	opened, err := h.deps.OpenSession(r.Context(), req.toModel())
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, newSessionView(opened))
}

type ballotRequest struct {
	VoterID string `json:"voter_id"`
	Option  string `json:"option"`
}

// HandlePostBallot handles POST /sessions/{id}/ballots requests.
func (h *SessionsHandler) HandlePostBallot(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_session_ballot"

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

	if err := h.deps.CastSessionBallot(r.Context(), id, req.VoterID, model.BallotOption(req.Option)); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "accepted"})
}

// HandlePostClose handles POST /sessions/{id}/close requests. Closing a
// session tallies it immediately and returns the decided result.
func (h *SessionsHandler) HandlePostClose(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_session_close"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	result, err := h.deps.CloseSession(r.Context(), id)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGetResult handles GET /sessions/{id}/result requests.
func (h *SessionsHandler) HandleGetResult(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session_result"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	result, err := h.deps.SessionResult(r.Context(), id)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}
