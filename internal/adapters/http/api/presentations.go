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

// PresentationDependencies defines the interface for presentation queries
// and detection moderation.
type PresentationDependencies interface {
	PresentationScore(ctx context.Context, presentationID string) (types.PresentationScoreResult, error)
	PresentationDetections(ctx context.Context, presentationID string) []model.GamingDetectionRecord
	ReviewDetection(ctx context.Context, recordID string, confirmed bool, reviewer string) (model.GamingDetectionRecord, error)
	ProvideDetectionSignals(ctx context.Context, presentationID string, signals model.DetectionSignals) error
}

// PresentationsHandler handles presentation score and detection endpoints.
type PresentationsHandler struct {
	deps PresentationDependencies
}

// NewPresentationsHandler creates a new presentations handler.
func NewPresentationsHandler(deps PresentationDependencies) *PresentationsHandler {
	return &PresentationsHandler{deps: deps}
}

// HandleGetScore handles GET /presentations/{id}/score requests.
func (h *PresentationsHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_presentation_score"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	result, err := h.deps.PresentationScore(r.Context(), id)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type detectionListResponse struct {
	PresentationID string                      `json:"presentation_id"`
	Records        []types.DetectionRecordView `json:"records"`
}

// HandleGetDetections handles GET /presentations/{id}/detection requests.
// Records are returned newest first; superseded records stay listed so
// moderators can see the full audit trail.
func (h *PresentationsHandler) HandleGetDetections(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_presentation_detections"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	records := h.deps.PresentationDetections(r.Context(), id)
	views := make([]types.DetectionRecordView, 0, len(records))
	for _, rec := range records {
		views = append(views, detectionView(rec))
	}
	writeJSON(w, http.StatusOK, detectionListResponse{PresentationID: id, Records: views})
}

type reciprocalPairRequest struct {
	EvaluatorA string `json:"evaluator_a"`
	EvaluatorB string `json:"evaluator_b"`
}

type identityLinkRequest struct {
	EvaluatorIDs []string `json:"evaluator_ids"`
	Basis        string   `json:"basis"`
}

// signalsRequest mirrors the OpenAPI schema for
// POST /presentations/{id}/signals.
type signalsRequest struct {
	Origins         map[string]string       `json:"origins,omitempty"`
	DemographicSkew bool                    `json:"demographic_skew,omitempty"`
	ReciprocalPairs []reciprocalPairRequest `json:"reciprocal_pairs,omitempty"`
	IdentityLinks   []identityLinkRequest   `json:"identity_links,omitempty"`
}

func (s signalsRequest) empty() bool {
	return len(s.Origins) == 0 && !s.DemographicSkew &&
		len(s.ReciprocalPairs) == 0 && len(s.IdentityLinks) == 0
}

func (s signalsRequest) toModel() model.DetectionSignals {
	signals := model.DetectionSignals{
		Origins:         s.Origins,
		DemographicSkew: s.DemographicSkew,
	}
	for _, pair := range s.ReciprocalPairs {
		signals.ReciprocalPairs = append(signals.ReciprocalPairs, model.ReciprocalPair{
			EvaluatorA: pair.EvaluatorA,
			EvaluatorB: pair.EvaluatorB,
		})
	}
	for _, link := range s.IdentityLinks {
		signals.IdentityLinks = append(signals.IdentityLinks, model.IdentityLink{
			EvaluatorIDs: link.EvaluatorIDs,
			Basis:        link.Basis,
		})
	}
	return signals
}

// HandlePostSignals handles POST /presentations/{id}/signals requests.
// Externally supplied evidence (submission origins, demographic skew,
// reciprocal scoring, identity links) feeds the gaming detectors.
func (h *PresentationsHandler) HandlePostSignals(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_presentation_signals"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req signalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if req.empty() {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("no signals supplied")))
		return
	}

	if err := h.deps.ProvideDetectionSignals(r.Context(), id, req.toModel()); err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}

type reviewRequest struct {
	Confirmed bool   `json:"confirmed"`
	Reviewer  string `json:"reviewer"`
}

type reviewResponse struct {
	Record     types.DetectionRecordView `json:"record"`
	Confirmed  bool                      `json:"confirmed"`
	ReviewedAt string                    `json:"reviewed_at"`
}

// HandlePostReview handles POST /detections/{id}/review requests.
func (h *PresentationsHandler) HandlePostReview(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_detection_review"

	id := r.PathValue("id")
	if strings.TrimSpace(id) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.Reviewer) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, errors.New("missing reviewer")))
		return
	}

	outcome, err := h.deps.ReviewDetection(r.Context(), id, req.Confirmed, req.Reviewer)
	if err != nil {
		writeDomainError(w, Wrap(op, err))
		return
	}

	writeJSON(w, http.StatusOK, reviewResponse{
		Record:     detectionView(outcome),
		Confirmed:  outcome.Confirmed,
		ReviewedAt: outcome.CreatedAt.Format(time.RFC3339Nano),
	})
}

func detectionView(rec model.GamingDetectionRecord) types.DetectionRecordView {
	return types.DetectionRecordView{
		ID:             rec.ID,
		PresentationID: rec.PresentationID,
		Suspicion:      rec.Suspicion,
		Issues:         rec.Issues,
		RequiresReview: rec.RequiresReview,
		Severity:       string(rec.Severity),
	}
}
