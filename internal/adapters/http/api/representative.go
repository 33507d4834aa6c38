package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/selector"
)

// RepresentativeDependencies defines the interface for representative
// selection.
type RepresentativeDependencies interface {
	SelectRepresentative(ctx context.Context, subjectID string, members []model.Member) (selector.Selection, error)
}

// RepresentativeHandler handles representative selection requests.
type RepresentativeHandler struct {
	deps RepresentativeDependencies
}

// NewRepresentativeHandler creates a new representative handler.
func NewRepresentativeHandler(deps RepresentativeDependencies) *RepresentativeHandler {
	return &RepresentativeHandler{deps: deps}
}

// memberRosterEntry carries the roster attributes the membership system
// supplies. Merit state for known members is overlaid from the merit board
// before selection.
type memberRosterEntry struct {
	ID                 string  `json:"id"`
	JoinedCycle        int     `json:"joined_cycle"`
	ParticipationRate  float64 `json:"participation_rate"`
	ParticipationScore float64 `json:"participation_score"`
	LeadershipScore    float64 `json:"leadership_score"`
	Sanctioned         bool    `json:"sanctioned"`
	Presenter          bool    `json:"presenter"`
}

type selectRequest struct {
	Members []memberRosterEntry `json:"members"`
}

type candidateView struct {
	MemberID           string  `json:"member_id"`
	MeritScore         float64 `json:"merit_score"`
	AcademicScore      float64 `json:"academic_score"`
	TrendScore         float64 `json:"trend_score"`
	ParticipationScore float64 `json:"participation_score"`
	LeadershipScore    float64 `json:"leadership_score"`
}

type selectionResponse struct {
	SubjectID      string          `json:"subject_id"`
	Representative candidateView   `json:"representative"`
	Ranked         []candidateView `json:"ranked"`
	Considered     int             `json:"considered"`
}

func newCandidateView(c selector.Candidate) candidateView {
	return candidateView{
		MemberID:           c.MemberID,
		MeritScore:         c.MeritScore,
		AcademicScore:      c.AcademicScore,
		TrendScore:         c.TrendScore,
		ParticipationScore: c.ParticipationScore,
		LeadershipScore:    c.LeadershipScore,
	}
}

// HandlePostSelect handles POST /subjects/{id}/representative requests.
func (h *RepresentativeHandler) HandlePostSelect(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_representative"

	subjectID := r.PathValue("id")
	if strings.TrimSpace(subjectID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req selectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req.Members) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("empty roster")))
		return
	}

	members := make([]model.Member, 0, len(req.Members))
	for _, m := range req.Members {
		if strings.TrimSpace(m.ID) == "" {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("roster entry missing id")))
			return
		}
		members = append(members, model.Member{
			ID:                 m.ID,
			SubjectID:          subjectID,
			JoinedCycle:        model.Cycle(m.JoinedCycle),
			ParticipationRate:  m.ParticipationRate,
			ParticipationScore: m.ParticipationScore,
			LeadershipScore:    m.LeadershipScore,
			Sanctioned:         m.Sanctioned,
			Presenter:          m.Presenter,
		})
	}

	selection, err := h.deps.SelectRepresentative(r.Context(), subjectID, members)
	if err != nil {
		if errors.Is(err, selector.ErrNoEligibleCandidates) {
			writeError(w, http.StatusUnprocessableEntity, "no_eligible_candidates", Wrap(op, err))
			return
		}
		writeDomainError(w, Wrap(op, err))
		return
	}

	ranked := make([]candidateView, 0, len(selection.Ranked))
	for _, c := range selection.Ranked {
		ranked = append(ranked, newCandidateView(c))
	}
	writeJSON(w, http.StatusOK, selectionResponse{
		SubjectID:      selection.SubjectID,
		Representative: newCandidateView(selection.Representative),
		Ranked:         ranked,
		Considered:     selection.Considered,
	})
}
