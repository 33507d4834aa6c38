// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/meritum/agora/internal/adapters/repository"
	"github.com/meritum/agora/internal/domain/aggregate"
	"github.com/meritum/agora/internal/domain/dedupe"
	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/rules"
	"github.com/meritum/agora/internal/domain/selector"
	"github.com/meritum/agora/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Evaluation pipeline: synchronous aggregation, async detection.
	SubmitEvaluation(ctx context.Context, eval model.Evaluation) (types.PresentationScoreResult, error)
	PresentationScore(ctx context.Context, presentationID string) (types.PresentationScoreResult, error)
	PresentationDetections(ctx context.Context, presentationID string) []model.GamingDetectionRecord
	ReviewDetection(ctx context.Context, recordID string, confirmed bool, reviewer string) (model.GamingDetectionRecord, error)
	ProvideDetectionSignals(ctx context.Context, presentationID string, signals model.DetectionSignals) error

	// Merit reads.
	MemberMerit(ctx context.Context, memberID string) (Entry, []model.HistoryEntry, error)
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Voting sessions.
	OpenSession(ctx context.Context, session model.VotingSession) (model.VotingSession, error)
	CastSessionBallot(ctx context.Context, sessionID, voterID string, option model.BallotOption) error
	CloseSession(ctx context.Context, sessionID string) (types.VotingResult, error)
	SessionResult(ctx context.Context, sessionID string) (types.VotingResult, error)

	// Rule governance.
	ProposeRule(ctx context.Context, rule model.Rule) (model.Rule, error)
	CastRuleVote(ctx context.Context, ruleID, voterID string, option model.BallotOption) error
	GetRule(ctx context.Context, ruleID string) (model.Rule, error)
	CloseCycle(ctx context.Context) (model.Cycle, []types.RuleModificationResult, error)

	// Representative selection over an externally supplied roster.
	SelectRepresentative(ctx context.Context, subjectID string, members []model.Member) (selector.Selection, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler         *HealthHandler
	statsHandler          *StatsHandler
	evaluationsHandler    *EvaluationsHandler
	presentationsHandler  *PresentationsHandler
	meritHandler          *MeritHandler
	leaderboardHandler    *LeaderboardHandler
	sessionsHandler       *SessionsHandler
	rulesHandler          *RulesHandler
	representativeHandler *RepresentativeHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLeaderboardLimit int) *Server {
	return &Server{
		healthHandler:         NewHealthHandler(),
		statsHandler:          NewStatsHandler(statsProvider),
		evaluationsHandler:    NewEvaluationsHandler(deps),
		presentationsHandler:  NewPresentationsHandler(deps),
		meritHandler:          NewMeritHandler(deps),
		leaderboardHandler:    NewLeaderboardHandler(deps, maxLeaderboardLimit),
		sessionsHandler:       NewSessionsHandler(deps),
		rulesHandler:          NewRulesHandler(deps),
		representativeHandler: NewRepresentativeHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", s.healthHandler.MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /evaluations", MetricsMiddleware(s.evaluationsHandler.HandlePostEvaluation, "evaluations"))
	mux.HandleFunc("GET /presentations/{id}/score", MetricsMiddleware(s.presentationsHandler.HandleGetScore, "presentation_score"))
	mux.HandleFunc("GET /presentations/{id}/detection", MetricsMiddleware(s.presentationsHandler.HandleGetDetections, "presentation_detection"))
	mux.HandleFunc("POST /presentations/{id}/signals", MetricsMiddleware(s.presentationsHandler.HandlePostSignals, "presentation_signals"))
	mux.HandleFunc("POST /detections/{id}/review", MetricsMiddleware(s.presentationsHandler.HandlePostReview, "detection_review"))

	mux.HandleFunc("GET /members/{id}/merit", MetricsMiddleware(s.meritHandler.HandleGetMerit, "member_merit"))
	mux.HandleFunc("GET /leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionsHandler.HandlePostSession, "sessions"))
	mux.HandleFunc("POST /sessions/{id}/ballots", MetricsMiddleware(s.sessionsHandler.HandlePostBallot, "session_ballots"))
	mux.HandleFunc("POST /sessions/{id}/close", MetricsMiddleware(s.sessionsHandler.HandlePostClose, "session_close"))
	mux.HandleFunc("GET /sessions/{id}/result", MetricsMiddleware(s.sessionsHandler.HandleGetResult, "session_result"))

	mux.HandleFunc("POST /rules", MetricsMiddleware(s.rulesHandler.HandlePostRule, "rules"))
	mux.HandleFunc("POST /rules/{id}/votes", MetricsMiddleware(s.rulesHandler.HandlePostVote, "rule_votes"))
	mux.HandleFunc("GET /rules/{id}", MetricsMiddleware(s.rulesHandler.HandleGetRule, "rule_get"))
	mux.HandleFunc("POST /cycles/close", MetricsMiddleware(s.rulesHandler.HandlePostCycleClose, "cycle_close"))

	mux.HandleFunc("POST /subjects/{id}/representative", MetricsMiddleware(s.representativeHandler.HandlePostSelect, "representative"))
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeDomainError translates sentinel errors from the stores and domain
// packages to HTTP codes; anything unrecognized is a 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrMemberNotFound),
		errors.Is(err, repository.ErrPresentationNotFound),
		errors.Is(err, repository.ErrSessionNotFound),
		errors.Is(err, repository.ErrRuleNotFound),
		errors.Is(err, repository.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, repository.ErrDuplicateBallot),
		errors.Is(err, repository.ErrSessionExists),
		errors.Is(err, repository.ErrRuleExists),
		errors.Is(err, repository.ErrRecordSuperseded),
		errors.Is(err, aggregate.ErrDuplicateEvaluator):
		writeError(w, http.StatusConflict, "conflict", err)
	case errors.Is(err, repository.ErrNotEligible):
		writeError(w, http.StatusForbidden, "not_eligible", err)
	case errors.Is(err, repository.ErrSessionClosed),
		errors.Is(err, repository.ErrSessionNotClosed),
		errors.Is(err, repository.ErrResultNotReady),
		errors.Is(err, repository.ErrCycleClosed),
		errors.Is(err, rules.ErrInsufficientCredit),
		errors.Is(err, rules.ErrNotPending),
		errors.Is(err, rules.ErrMissingDependency),
		errors.Is(err, rules.ErrConflictingRule),
		errors.Is(err, rules.ErrValueOutOfBounds):
		writeError(w, http.StatusUnprocessableEntity, "policy_rejected", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
