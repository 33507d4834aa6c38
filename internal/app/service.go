// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meritum/agora/internal/adapters/archive"
	jobqueue "github.com/meritum/agora/internal/adapters/mq/queue"
	workerpool "github.com/meritum/agora/internal/adapters/mq/worker"
	"github.com/meritum/agora/internal/adapters/repository"
	"github.com/meritum/agora/internal/broadcast"
	"github.com/meritum/agora/internal/config"
	"github.com/meritum/agora/internal/domain/aggregate"
	"github.com/meritum/agora/internal/domain/dedupe"
	"github.com/meritum/agora/internal/domain/gaming"
	"github.com/meritum/agora/internal/domain/merit"
	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/rules"
	"github.com/meritum/agora/internal/domain/selector"
	"github.com/meritum/agora/internal/domain/tally"
	"github.com/meritum/agora/internal/domain/types"
	"github.com/meritum/agora/pkg/logger"
	"github.com/meritum/agora/pkg/metrics"
)

// expiredSweepInterval is how often overdue sessions are closed and tallied.
const expiredSweepInterval = 30 * time.Second

// archivingRecorder adapts the detection store to the worker Recorder and
// mirrors every record into the audit archive. Archive failures are logged,
// never propagated; the in-memory record is the source of truth.
type archivingRecorder struct {
	store   *repository.DetectionStore
	archive *archive.Archive
	logger  logger.Logger
}

func (r *archivingRecorder) Put(ctx context.Context, record model.GamingDetectionRecord) error {
	if err := r.store.Put(ctx, record); err != nil {
		return err
	}
	if r.archive != nil {
		if err := r.archive.WriteDetection(ctx, record); err != nil {
			r.logger.Warn(ctx, "detection archive write failed",
				logger.String("recordID", record.ID),
				logger.Error(err),
			)
		}
	}
	return nil
}

// Service implements the API dependencies for the governance core.
type Service struct {
	mu sync.RWMutex

	// Core components
	merit         *repository.TreapStore
	presentations *repository.PresentationStore
	sessions      *repository.SessionStore
	ruleStore     *repository.RuleStore
	detections    *repository.DetectionStore
	deduper       dedupe.Deduper
	jobQueue      jobqueue.Queue
	workerPool    *workerpool.Pool
	aggregator    *aggregate.Aggregator
	tracker       *merit.Tracker
	detector      *gaming.Detector
	engine        *rules.Engine
	ledger        *rules.CreditLedger
	selector      *selector.Selector
	archive       *archive.Archive

	// Broadcast channels
	scoreEvents  *broadcast.Broadcaster[types.PresentationScoreResult]
	weightEvents *broadcast.Broadcaster[types.VotingWeightUpdate]
	votingEvents *broadcast.Broadcaster[types.VotingResult]
	ruleEvents   *broadcast.Broadcaster[types.RuleModificationResult]

	// Configuration
	cfg *config.Config

	// State
	currentCycle model.Cycle
	openSessions int
	started      bool
	stopCh       chan struct{}

	// Per-member merit updates are read-modify-write over the history and
	// must not interleave across presentations sharing a presenter.
	memberLocks sync.Map // member id -> *sync.Mutex

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig supplies the full tunables set. Nil leaves defaults in place.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithArchive supplies a pre-opened audit archive, overriding the
// config archive path.
func WithArchive(a *archive.Archive) Option {
	return func(s *Service) {
		s.archive = a
	}
}

// WithStartCycle sets the initial governance cycle, for replay after a
// restart.
func WithStartCycle(cycle model.Cycle) Option {
	return func(s *Service) {
		if cycle > 0 {
			s.currentCycle = cycle
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:          config.New(context.Background()),
		currentCycle: 1,
		stopCh:       make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting governance service...")

	s.merit = repository.NewTreapStore(ctx)
	s.presentations = repository.NewPresentationStore()
	s.sessions = repository.NewSessionStore()
	s.ruleStore = repository.NewRuleStore()
	s.detections = repository.NewDetectionStore()
	s.deduper = dedupe.NewInMemory(
		dedupe.WithCapacity(s.cfg.DedupeSize),
	)
	s.jobQueue = jobqueue.NewInMemoryQueue(
		jobqueue.WithCapacity(s.cfg.DetectionQueueSize),
		jobqueue.WithBufferSize(s.cfg.DetectionQueueSize),
	)

	s.aggregator = aggregate.New(
		aggregate.WithMinEvaluators(s.cfg.MinEvaluators),
		aggregate.WithOutlierSigma(s.cfg.OutlierSigma),
		aggregate.WithOutlierMinCount(s.cfg.OutlierMinCount),
		aggregate.WithQualityGain(s.cfg.QualityGain),
		aggregate.WithParticipationGain(s.cfg.ParticipationGain),
		aggregate.WithParticipationCountsRemoved(s.cfg.ParticipationCountsRemoved),
	)
	s.tracker = merit.New(
		merit.WithDecayRate(s.cfg.DecayRate),
		merit.WithSubjectMultiplier(s.cfg.SubjectMultiplier),
		merit.WithMaxWeightRatio(s.cfg.MaxVotingWeightRatio),
	)
	s.detector = gaming.New(
		gaming.WithCollusionWindow(time.Duration(s.cfg.CollusionWindowSeconds)*time.Second),
		gaming.WithFastEvaluationMinutes(s.cfg.FastEvaluationMinutes),
		gaming.WithReviewThreshold(s.cfg.ReviewThreshold),
		gaming.WithLogger(s.logger),
	)
	s.engine = rules.New(
		rules.WithRemoveThreshold(s.cfg.RemoveThreshold),
		rules.WithRemoveValueCeiling(s.cfg.RemoveValueCeiling),
		rules.WithMaxChangeBase(s.cfg.MaxChangeBase),
		rules.WithResistanceDamping(s.cfg.ResistanceDamping),
	)
	s.ledger = rules.NewCreditLedger(s.cfg.DirectorCredits)
	s.selector = selector.New(
		selector.WithTrendWindow(s.cfg.TrendWindow),
		selector.WithMinMembershipCycles(s.cfg.MinMembershipCycles),
		selector.WithMinParticipationRate(s.cfg.MinParticipationRate),
		selector.WithMinMeritScore(s.cfg.MinMeritScore),
	)

	if s.archive == nil && s.cfg.ArchivePath != "" {
		a, err := archive.Open(ctx, s.cfg.ArchivePath)
		if err != nil {
			return err
		}
		s.archive = a
	}

	s.scoreEvents = broadcast.New[types.PresentationScoreResult]()
	s.weightEvents = broadcast.New[types.VotingWeightUpdate]()
	s.votingEvents = broadcast.New[types.VotingResult]()
	s.ruleEvents = broadcast.New[types.RuleModificationResult]()

	recorder := &archivingRecorder{store: s.detections, archive: s.archive, logger: s.logger}
	s.workerPool = workerpool.NewPool(s.cfg.WorkerCount, s.jobQueue, s.detector, recorder)
	s.workerPool.Start(ctx)

	go s.sweepExpiredSessions(ctx)

	s.started = true
	s.logger.Info(ctx, "governance service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queueSize", s.cfg.DetectionQueueSize),
		logger.Int("dedupeSize", s.cfg.DedupeSize),
		logger.Int("cycle", int(s.currentCycle)),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping governance service...")

	if s.workerPool != nil {
		s.workerPool.Stop()
	}
	if q, ok := s.jobQueue.(*jobqueue.InMemoryQueue); ok {
		_ = q.Close()
	}
	if s.merit != nil {
		_ = s.merit.Close()
	}
	if s.archive != nil {
		_ = s.archive.Close()
	}

	s.scoreEvents.Close()
	s.weightEvents.Close()
	s.votingEvents.Close()
	s.ruleEvents.Close()

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "governance service stopped")
}

// sweepExpiredSessions periodically closes sessions past their deadline and
// tallies them, so an abandoned session still reaches a decision.
func (s *Service) sweepExpiredSessions(ctx context.Context) {
	ticker := time.NewTicker(expiredSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case now := <-ticker.C:
			for _, id := range s.sessions.CloseExpired(ctx, now) {
				if _, err := s.decideClosedSession(ctx, id); err != nil {
					s.logger.Warn(ctx, "expired session tally failed",
						logger.String("sessionID", id),
						logger.Error(err),
					)
				}
			}
		}
	}
}

// SeenAndRecord atomically checks if an evaluation event id was seen and
// records it if not. Returns true if the event was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEvaluationDuplicate()
	}
	return seen
}

// Unrecord removes an event id from the seen list, allowing a retry after a
// failed submission.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// SubmitEvaluation stores an evaluation, recomputes the presentation score
// synchronously, folds the score into the presenter's merit, and queues the
// evaluation set for asynchronous gaming analysis.
func (s *Service) SubmitEvaluation(ctx context.Context, eval model.Evaluation) (types.PresentationScoreResult, error) {
	metrics.RecordEvaluationReceived()

	result, err := s.presentations.Ingest(ctx, eval, func(ctx context.Context, evals []model.Evaluation) (types.PresentationScoreResult, error) {
		start := time.Now()
		agg, aggErr := s.aggregator.Aggregate(ctx, aggregate.Input{
			PresentationID: eval.PresentationID,
			Evaluations:    evals,
			ActiveMembers:  s.merit.Count(ctx),
		})
		metrics.RecordAggregationLatency(float64(time.Since(start).Milliseconds()))
		if aggErr != nil {
			return types.PresentationScoreResult{}, aggErr
		}
		if agg.Insufficient {
			metrics.RecordAggregationInsufficient()
		}
		return types.PresentationScoreResult{
			PresentationID:          agg.PresentationID,
			Score:                   agg.Score,
			Confidence:              agg.Confidence,
			QualityMultiplier:       agg.QualityMultiplier,
			ParticipationMultiplier: agg.ParticipationMultiplier,
			EvaluatorsUsed:          agg.EvaluatorsUsed,
			EvaluatorsRemoved:       agg.EvaluatorsRemoved,
			Insufficient:            agg.Insufficient,
		}, nil
	})
	if err != nil {
		return types.PresentationScoreResult{}, err
	}

	s.scoreEvents.Publish(ctx, result)

	if eval.PresenterID != "" && !result.Insufficient {
		if meritErr := s.applyPresentationScore(ctx, eval.PresenterID, result.Score, eval.Cycle); meritErr != nil {
			s.logger.Warn(ctx, "merit application failed",
				logger.String("presenterID", eval.PresenterID),
				logger.Error(meritErr),
			)
		}
	}

	s.enqueueDetection(ctx, eval.PresentationID, eval.Cycle)

	return result, nil
}

// applyPresentationScore folds a presentation score into the presenter's
// history and republishes their voting weight. The current cycle's entry is
// replaced, not appended, so repeated recomputation within a cycle stays
// idempotent.
func (s *Service) applyPresentationScore(ctx context.Context, presenterID string, score float64, cycle model.Cycle) error {
	lockAny, _ := s.memberLocks.LoadOrStore(presenterID, &sync.Mutex{})
	lock := lockAny.(*sync.Mutex)
	lock.Lock()
	defer lock.Unlock()

	prior, err := s.merit.History(ctx, presenterID)
	if err != nil {
		return err
	}

	history := make([]model.HistoryEntry, 0, len(prior)+1)
	for _, h := range prior {
		if h.Cycle != cycle {
			history = append(history, h)
		}
	}
	history = append(history, model.HistoryEntry{Cycle: cycle, Score: score})

	update := s.tracker.Recompute(ctx, presenterID, history, cycle)
	if err := s.merit.Apply(ctx, update); err != nil {
		return err
	}

	standing, err := s.merit.Standing(ctx, presenterID)
	if err != nil {
		return err
	}
	s.weightEvents.Publish(ctx, types.VotingWeightUpdate{
		MemberID:        presenterID,
		CumulativeScore: standing.CumulativeScore,
		VotingWeight:    standing.VotingWeight,
		Rank:            standing.Rank,
		Percentile:      standing.Percentile,
	})
	return nil
}

// enqueueDetection queues the presentation's full evaluation set for gaming
// analysis, together with any externally supplied evidence. Evaluation
// origin keys feed the shared-origin detector. Detection is best effort; a
// full queue degrades to a warning.
func (s *Service) enqueueDetection(ctx context.Context, presentationID string, cycle model.Cycle) {
	evals, err := s.presentations.Evaluations(ctx, presentationID)
	if err != nil {
		return
	}

	signals := s.presentations.Signals(ctx, presentationID)
	for _, e := range evals {
		if e.OriginKey == "" {
			continue
		}
		if signals.Origins == nil {
			signals.Origins = make(map[string]string)
		}
		if _, ok := signals.Origins[e.EvaluatorID]; !ok {
			signals.Origins[e.EvaluatorID] = e.OriginKey
		}
	}

	job := model.DetectionJob{
		PresentationID: presentationID,
		Evaluations:    evals,
		Signals:        signals,
		Cycle:          cycle,
	}
	if !s.jobQueue.Enqueue(ctx, job) {
		s.logger.Warn(ctx, "detection queue full, job dropped",
			logger.String("presentationID", presentationID),
		)
	}
}

// ProvideDetectionSignals records externally supplied detection evidence
// (origin keys, demographic skew, reciprocal pairs, identity links) for a
// presentation. If evaluations already exist, the set is re-queued for
// analysis with the new evidence.
func (s *Service) ProvideDetectionSignals(ctx context.Context, presentationID string, signals model.DetectionSignals) error {
	s.presentations.SetSignals(ctx, presentationID, signals)
	s.enqueueDetection(ctx, presentationID, s.Cycle())
	return nil
}

// PresentationScore returns the last published score for a presentation.
func (s *Service) PresentationScore(ctx context.Context, presentationID string) (types.PresentationScoreResult, error) {
	return s.presentations.Result(ctx, presentationID)
}

// PresentationDetections returns detection records for a presentation,
// newest first.
func (s *Service) PresentationDetections(ctx context.Context, presentationID string) []model.GamingDetectionRecord {
	return s.detections.ByPresentation(ctx, presentationID)
}

// ReviewDetection applies a manual review outcome to a detection record.
// The original record is superseded by a new one carrying the confirmation
// and, when confirmed, the penalty severity band.
func (s *Service) ReviewDetection(ctx context.Context, recordID string, confirmed bool, reviewer string) (model.GamingDetectionRecord, error) {
	original, err := s.detections.Get(ctx, recordID)
	if err != nil {
		return model.GamingDetectionRecord{}, err
	}

	outcome := model.GamingDetectionRecord{
		ID:             uuid.NewString(),
		PresentationID: original.PresentationID,
		Suspicion:      original.Suspicion,
		Issues:         original.Issues,
		RequiresReview: false,
		CreatedAt:      time.Now(),
		Confirmed:      confirmed,
	}
	if confirmed {
		outcome.Severity = gaming.SeverityFor(original.Suspicion)
	}

	if err := s.detections.Supersede(ctx, recordID, outcome); err != nil {
		return model.GamingDetectionRecord{}, err
	}

	s.logger.Info(ctx, "detection record reviewed",
		logger.String("recordID", recordID),
		logger.String("outcomeID", outcome.ID),
		logger.String("reviewer", reviewer),
		logger.Bool("confirmed", confirmed),
		logger.String("severity", string(outcome.Severity)),
	)

	if s.archive != nil {
		if archErr := s.archive.WriteDetection(ctx, outcome); archErr != nil {
			s.logger.Warn(ctx, "review archive write failed", logger.Error(archErr))
		}
	}

	return outcome, nil
}

// MemberMerit returns a member's standing and score history.
func (s *Service) MemberMerit(ctx context.Context, memberID string) (types.Entry, []model.HistoryEntry, error) {
	standing, err := s.merit.Standing(ctx, memberID)
	if err != nil {
		return types.Entry{}, nil, err
	}
	history, err := s.merit.History(ctx, memberID)
	if err != nil {
		return types.Entry{}, nil, err
	}
	return standing, history, nil
}

// TopN returns the top N merit leaderboard entries.
func (s *Service) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	return s.merit.TopN(ctx, n)
}

// OpenSession opens a voting session. An empty eligible list freezes the
// electorate from the current merit board.
func (s *Service) OpenSession(ctx context.Context, session model.VotingSession) (model.VotingSession, error) {
	if len(session.Eligible) == 0 {
		eligible, err := s.boardElectorate(ctx)
		if err != nil {
			return model.VotingSession{}, err
		}
		session.Eligible = eligible
	}
	if len(session.Options) == 0 {
		session.Options = []model.BallotOption{model.OptionSupport, model.OptionOppose, model.OptionAbstain}
		session.AbstainOption = model.OptionAbstain
	}
	if session.QuorumFraction == 0 {
		session.QuorumFraction = s.cfg.QuorumFraction
	}
	if session.Cycle == 0 {
		session.Cycle = s.Cycle()
	}
	session.Status = model.SessionOpen
	session.OpenedAt = time.Now()

	if err := s.sessions.Open(ctx, session); err != nil {
		return model.VotingSession{}, err
	}

	s.mu.Lock()
	s.openSessions++
	metrics.UpdateSessionsOpen(s.openSessions)
	s.mu.Unlock()

	s.logger.Info(ctx, "voting session opened",
		logger.String("sessionID", session.ID),
		logger.String("targetID", session.TargetID),
		logger.Int("eligible", len(session.Eligible)),
	)
	return session, nil
}

// boardElectorate snapshots every board member's voting weight.
func (s *Service) boardElectorate(ctx context.Context) ([]model.EligibleVoter, error) {
	count := s.merit.Count(ctx)
	if count == 0 {
		return nil, repository.ErrNotEligible
	}
	entries, err := s.merit.TopN(ctx, count)
	if err != nil {
		return nil, err
	}
	eligible := make([]model.EligibleVoter, 0, len(entries))
	for _, e := range entries {
		eligible = append(eligible, model.EligibleVoter{VoterID: e.MemberID, Weight: e.VotingWeight})
	}
	return eligible, nil
}

// CastSessionBallot records one weighted ballot. The weight comes from the
// electorate frozen at session open, never from the live board.
func (s *Service) CastSessionBallot(ctx context.Context, sessionID, voterID string, option model.BallotOption) error {
	snapshot, err := s.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		metrics.RecordBallotRejected("session_not_found")
		return err
	}

	var weight float64
	for _, v := range snapshot.Eligible {
		if v.VoterID == voterID {
			weight = v.Weight
			break
		}
	}

	ballot := model.Ballot{
		TargetID:       sessionID,
		VoterID:        voterID,
		Option:         option,
		WeightSnapshot: weight,
		Cycle:          snapshot.Cycle,
	}
	if err := s.sessions.CastBallot(ctx, sessionID, ballot, time.Now()); err != nil {
		metrics.RecordBallotRejected(ballotRejectionReason(err))
		return err
	}
	metrics.RecordBallotAccepted()
	return nil
}

func ballotRejectionReason(err error) string {
	switch {
	case errors.Is(err, repository.ErrDuplicateBallot):
		return "duplicate"
	case errors.Is(err, repository.ErrNotEligible):
		return "not_eligible"
	case errors.Is(err, repository.ErrSessionClosed), errors.Is(err, repository.ErrCycleClosed):
		return "closed"
	case errors.Is(err, repository.ErrRuleNotFound):
		return "not_found"
	default:
		return "other"
	}
}

// CloseSession closes and tallies a session immediately.
func (s *Service) CloseSession(ctx context.Context, sessionID string) (types.VotingResult, error) {
	if _, err := s.sessions.Close(ctx, sessionID); err != nil {
		return types.VotingResult{}, err
	}
	return s.decideClosedSession(ctx, sessionID)
}

// decideClosedSession tallies an already-closed session, persists and
// publishes the result, and resolves any pending rule proposal the session
// targeted.
func (s *Service) decideClosedSession(ctx context.Context, sessionID string) (types.VotingResult, error) {
	snapshot, err := s.sessions.Snapshot(ctx, sessionID)
	if err != nil {
		return types.VotingResult{}, err
	}

	result := tally.Count(snapshot)
	if err := s.sessions.Decide(ctx, sessionID, result); err != nil {
		return types.VotingResult{}, err
	}

	metrics.RecordSessionDecided()
	s.mu.Lock()
	if s.openSessions > 0 {
		s.openSessions--
	}
	metrics.UpdateSessionsOpen(s.openSessions)
	s.mu.Unlock()

	s.votingEvents.Publish(ctx, result)

	if s.archive != nil {
		if archErr := s.archive.WriteSessionResult(ctx, result); archErr != nil {
			s.logger.Warn(ctx, "session archive write failed", logger.Error(archErr))
		}
	}

	s.resolveProposal(ctx, snapshot.TargetID, result)

	s.logger.Info(ctx, "voting session decided",
		logger.String("sessionID", sessionID),
		logger.Bool("passed", result.Passed),
		logger.String("winner", result.WinningOption),
		logger.Bool("quorumMet", result.QuorumMet),
	)
	return result, nil
}

// resolveProposal activates or rejects a pending rule proposal decided by a
// session. Sessions targeting anything else are left alone.
func (s *Service) resolveProposal(ctx context.Context, targetID string, result types.VotingResult) {
	rule, err := s.ruleStore.Get(ctx, targetID)
	if err != nil || rule.Status != model.RuleStatusPendingApproval {
		return
	}

	decided, err := rules.Decide(rule, result)
	if err != nil {
		s.logger.Warn(ctx, "proposal decision failed",
			logger.String("ruleID", targetID),
			logger.Error(err),
		)
		return
	}
	if err := s.ruleStore.Update(ctx, decided); err != nil {
		s.logger.Warn(ctx, "proposal update failed",
			logger.String("ruleID", targetID),
			logger.Error(err),
		)
		return
	}
	s.logger.Info(ctx, "rule proposal decided",
		logger.String("ruleID", targetID),
		logger.String("status", string(decided.Status)),
	)
}

// SessionResult returns the decided result of a session.
func (s *Service) SessionResult(ctx context.Context, sessionID string) (types.VotingResult, error) {
	return s.sessions.Result(ctx, sessionID)
}

// ProposeRule registers a director's rule proposal, spending one proposal
// credit for the current cycle.
func (s *Service) ProposeRule(ctx context.Context, rule model.Rule) (model.Rule, error) {
	rule.Status = model.RuleStatusPendingApproval
	if err := rules.ValidateProposal(rule, s.ruleStore.Active(ctx)); err != nil {
		return model.Rule{}, err
	}
	if err := s.ledger.Spend(rule.ProposedBy, s.Cycle()); err != nil {
		return model.Rule{}, err
	}
	if err := s.ruleStore.Put(ctx, rule); err != nil {
		s.ledger.Refund(rule.ProposedBy, s.Cycle())
		return model.Rule{}, err
	}

	s.logger.Info(ctx, "rule proposed",
		logger.String("ruleID", rule.ID),
		logger.String("directorID", rule.ProposedBy),
		logger.Int("creditsLeft", s.ledger.Remaining(rule.ProposedBy, s.Cycle())),
	)
	return rule, nil
}

// CastRuleVote casts a weighted modification vote against an active rule.
// The weight snapshot comes from the voter's current board standing.
func (s *Service) CastRuleVote(ctx context.Context, ruleID, voterID string, option model.BallotOption) error {
	standing, err := s.merit.Standing(ctx, voterID)
	if err != nil {
		metrics.RecordBallotRejected("not_eligible")
		return repository.ErrNotEligible
	}

	ballot := model.Ballot{
		TargetID:       ruleID,
		VoterID:        voterID,
		Option:         option,
		WeightSnapshot: standing.VotingWeight,
		Cycle:          s.Cycle(),
		CastAt:         time.Now(),
	}
	if err := s.ruleStore.CastVote(ctx, ballot); err != nil {
		metrics.RecordBallotRejected(ballotRejectionReason(err))
		return err
	}
	metrics.RecordBallotAccepted()
	return nil
}

// GetRule returns one rule by id.
func (s *Service) GetRule(ctx context.Context, ruleID string) (model.Rule, error) {
	return s.ruleStore.Get(ctx, ruleID)
}

// CloseCycle seals the current cycle's rule ballots, evolves every voted
// rule concurrently, advances the cycle counter, and returns the
// modifications applied.
func (s *Service) CloseCycle(ctx context.Context) (model.Cycle, []types.RuleModificationResult, error) {
	s.mu.Lock()
	closing := s.currentCycle
	s.currentCycle++
	next := s.currentCycle
	s.mu.Unlock()

	votesByRule := s.ruleStore.SealCycle(ctx, closing)

	var (
		wg      sync.WaitGroup
		resultM sync.Mutex
		results []types.RuleModificationResult
	)
	for ruleID, votes := range votesByRule {
		wg.Add(1)
		go func(ruleID string, votes []model.Ballot) {
			defer wg.Done()

			mod, err := s.evolveRule(ctx, ruleID, votes)
			if err != nil {
				s.logger.Warn(ctx, "rule evolution failed",
					logger.String("ruleID", ruleID),
					logger.Error(err),
				)
				return
			}
			if !mod.Modified && !mod.Removed {
				return
			}
			resultM.Lock()
			results = append(results, mod)
			resultM.Unlock()
		}(ruleID, votes)
	}
	wg.Wait()

	for _, mod := range results {
		s.ruleEvents.Publish(ctx, mod)
		if s.archive != nil {
			if err := s.archive.WriteRuleModification(ctx, closing, mod); err != nil {
				s.logger.Warn(ctx, "rule archive write failed", logger.Error(err))
			}
		}
	}

	s.logger.Info(ctx, "cycle closed",
		logger.Int("cycle", int(closing)),
		logger.Int("modifications", len(results)),
	)
	return next, results, nil
}

// evolveRule runs the evolution engine for one rule and persists the result.
func (s *Service) evolveRule(ctx context.Context, ruleID string, votes []model.Ballot) (types.RuleModificationResult, error) {
	rule, err := s.ruleStore.Get(ctx, ruleID)
	if err != nil {
		return types.RuleModificationResult{}, err
	}

	mod, updated, err := s.engine.Evolve(ctx, rule, votes)
	if err != nil {
		return types.RuleModificationResult{}, err
	}
	if mod.Modified || mod.Removed {
		if err := s.ruleStore.Update(ctx, updated); err != nil {
			return types.RuleModificationResult{}, err
		}
	}
	if mod.Removed {
		metrics.RecordRuleRemoval()
	} else if mod.Modified {
		metrics.RecordRuleChangeApplied()
	}
	return mod, nil
}

// SelectRepresentative ranks the supplied roster by composite merit. Merit
// state for members known to the board is overlaid before ranking; unknown
// members rank on roster attributes alone.
func (s *Service) SelectRepresentative(ctx context.Context, subjectID string, members []model.Member) (selector.Selection, error) {
	enriched := make([]model.Member, len(members))
	copy(enriched, members)
	for i := range enriched {
		standing, err := s.merit.Standing(ctx, enriched[i].ID)
		if err != nil {
			continue
		}
		history, err := s.merit.History(ctx, enriched[i].ID)
		if err != nil {
			continue
		}
		enriched[i].CumulativeScore = standing.CumulativeScore
		enriched[i].VotingWeight = standing.VotingWeight
		enriched[i].History = history
	}
	return s.selector.Select(ctx, subjectID, enriched, s.Cycle())
}

// Cycle returns the current governance cycle.
func (s *Service) Cycle() model.Cycle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentCycle
}

// SubscribeScores delivers published presentation score results in order.
func (s *Service) SubscribeScores(buffer int) *broadcast.Subscription[types.PresentationScoreResult] {
	return s.scoreEvents.Subscribe(buffer)
}

// SubscribeWeightUpdates delivers voting weight recomputations in order.
func (s *Service) SubscribeWeightUpdates(buffer int) *broadcast.Subscription[types.VotingWeightUpdate] {
	return s.weightEvents.Subscribe(buffer)
}

// SubscribeVotingResults delivers decided session results in order.
func (s *Service) SubscribeVotingResults(buffer int) *broadcast.Subscription[types.VotingResult] {
	return s.votingEvents.Subscribe(buffer)
}

// SubscribeRuleModifications delivers applied rule modifications in order.
func (s *Service) SubscribeRuleModifications(buffer int) *broadcast.Subscription[types.RuleModificationResult] {
	return s.ruleEvents.Subscribe(buffer)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":      s.started,
		"worker_count": s.cfg.WorkerCount,
		"queue_size":   s.cfg.DetectionQueueSize,
		"dedupe_size":  s.cfg.DedupeSize,
		"cycle":        int(s.currentCycle),
	}

	if s.started {
		queueLen := s.jobQueue.Len(ctx)
		totalMembers := s.merit.Count(ctx)

		stats["queue_length"] = queueLen
		stats["total_members"] = totalMembers
		stats["presentations"] = s.presentations.Count(ctx)
		stats["detection_records"] = s.detections.Count(ctx)
		stats["open_sessions"] = s.openSessions

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateTotalMembers(totalMembers)
		metrics.UpdateWorkerCount(s.cfg.WorkerCount)
	}

	return stats
}
