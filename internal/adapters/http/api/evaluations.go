// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/meritum/agora/internal/domain/dedupe"
	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

// EvaluationDependencies defines the interface for evaluation submission.
type EvaluationDependencies interface {
	dedupe.Deduper
	SubmitEvaluation(ctx context.Context, eval model.Evaluation) (types.PresentationScoreResult, error)
}

// EvaluationsHandler handles evaluation submissions.
type EvaluationsHandler struct {
	deps EvaluationDependencies
}

// NewEvaluationsHandler creates a new evaluations handler.
func NewEvaluationsHandler(deps EvaluationDependencies) *EvaluationsHandler {
	return &EvaluationsHandler{deps: deps}
}

// evaluationRequest mirrors the OpenAPI schema for POST /evaluations.
type evaluationRequest struct {
	EventID          string  `json:"event_id"`
	PresentationID   string  `json:"presentation_id"`
	PresenterID      string  `json:"presenter_id,omitempty"`
	EvaluatorID      string  `json:"evaluator_id"`
	CategoryScores   []int   `json:"category_scores"`
	OverallScore     int     `json:"overall_score"`
	TimeSpentMinutes float64 `json:"time_spent_minutes"`
	SubmittedAt      string  `json:"submitted_at"`
	WeightSnapshot   float64 `json:"weight_snapshot"`
	Cycle            int     `json:"cycle"`
	OriginKey        string  `json:"origin_key,omitempty"`
}

func (e evaluationRequest) validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return errors.New("missing event_id")
	case strings.TrimSpace(e.PresentationID) == "":
		return errors.New("missing presentation_id")
	case strings.TrimSpace(e.EvaluatorID) == "":
		return errors.New("missing evaluator_id")
	case len(e.CategoryScores) != model.CategoryCount:
		return errors.New("category_scores must have exactly 5 entries")
	case strings.TrimSpace(e.SubmittedAt) == "":
		return errors.New("missing submitted_at")
	}
	if _, err := time.Parse(time.RFC3339, e.SubmittedAt); err != nil {
		return errors.New("invalid submitted_at; must be RFC3339")
	}
	return nil
}

func (e evaluationRequest) toModel() model.Evaluation {
	eval := model.Evaluation{
		EventID:          e.EventID,
		PresentationID:   e.PresentationID,
		PresenterID:      e.PresenterID,
		EvaluatorID:      e.EvaluatorID,
		OverallScore:     e.OverallScore,
		TimeSpentMinutes: e.TimeSpentMinutes,
		WeightSnapshot:   e.WeightSnapshot,
		Cycle:            model.Cycle(e.Cycle),
		OriginKey:        e.OriginKey,
	}
	copy(eval.CategoryScores[:], e.CategoryScores)
	eval.SubmittedAt, _ = time.Parse(time.RFC3339, e.SubmittedAt)
	return eval
}

type evaluationResponse struct {
	Status    string                         `json:"status"`
	Duplicate bool                           `json:"duplicate"`
	Score     *types.PresentationScoreResult `json:"score,omitempty"`
}

// HandlePostEvaluation handles POST /evaluations requests.
func (h *EvaluationsHandler) HandlePostEvaluation(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_evaluation"

	var req evaluationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	eval := req.toModel()
	if err := eval.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	// Idempotency check - mark as seen first
	if h.deps.SeenAndRecord(r.Context(), eval.EventID) {
		writeJSON(w, http.StatusOK, evaluationResponse{Status: "duplicate", Duplicate: true})
		return
	}

	result, err := h.deps.SubmitEvaluation(r.Context(), eval)
	if err != nil {
		// Rollback the "seen" status so a corrected resubmission with
		// the same event id is not swallowed as a duplicate.
		h.deps.Unrecord(r.Context(), eval.EventID)
		if errors.Is(err, ErrBackpressure) {
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
			return
		}
		writeDomainError(w, Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusAccepted, evaluationResponse{Status: "accepted", Score: &result})
}
