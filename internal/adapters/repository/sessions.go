package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
	"github.com/meritum/agora/pkg/metrics"
)

// session wraps one voting session with its own mutex: ballot acceptance
// is serialized per session so the one-ballot-per-voter invariant holds
// atomically, while reads take a consistent copy.
type session struct {
	mu     sync.Mutex
	data   model.VotingSession
	result *types.VotingResult
}

// SessionStore owns all voting sessions exclusively. Ballots are appended
// through CastBallot only; nothing mutates a stored session from outside.
type SessionStore struct {
	mu   sync.RWMutex
	byID map[string]*session
	open atomic.Int64
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{byID: make(map[string]*session)}
}

// Open registers a new session. The eligible snapshot is frozen as given;
// later weight changes never affect an open session.
func (s *SessionStore) Open(_ context.Context, vs model.VotingSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[vs.ID]; ok {
		return ErrSessionExists
	}

	if vs.Ballots == nil {
		vs.Ballots = make(map[string]model.Ballot)
	}
	vs.Status = model.SessionOpen
	s.byID[vs.ID] = &session{data: vs}

	metrics.UpdateSessionsOpen(int(s.open.Add(1)))
	return nil
}

func (s *SessionStore) lookup(sessionID string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.byID[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// CastBallot validates and appends one ballot. Rejections are explicit:
// a late ballot gets ErrSessionClosed, a second ballot from the same voter
// gets ErrDuplicateBallot and never overwrites the first.
func (s *SessionStore) CastBallot(_ context.Context, sessionID string, ballot model.Ballot, now time.Time) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		metrics.RecordBallotRejected("session_not_found")
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.data.Status != model.SessionOpen || !now.Before(sess.data.ClosesAt) {
		metrics.RecordBallotRejected("session_closed")
		return ErrSessionClosed
	}
	if !sess.data.IsEligible(ballot.VoterID) {
		metrics.RecordBallotRejected("not_eligible")
		return ErrNotEligible
	}
	if _, ok := sess.data.Ballots[ballot.VoterID]; ok {
		metrics.RecordBallotRejected("duplicate")
		return ErrDuplicateBallot
	}

	ballot.CastAt = now
	sess.data.Ballots[ballot.VoterID] = ballot
	metrics.RecordBallotAccepted()
	return nil
}

// Snapshot returns a consistent copy of the session for live tally reads.
// Readers never block ballot acceptance for longer than the copy.
func (s *SessionStore) Snapshot(_ context.Context, sessionID string) (model.VotingSession, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return model.VotingSession{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	return copySession(sess.data), nil
}

// Close transitions the session out of ballot acceptance. Closing an
// already closed session is a no-op so cycle boundaries can close broadly.
func (s *SessionStore) Close(_ context.Context, sessionID string) (model.VotingSession, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return model.VotingSession{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.data.Status == model.SessionOpen {
		sess.data.Status = model.SessionClosed
		metrics.UpdateSessionsOpen(int(s.open.Add(-1)))
	}
	return copySession(sess.data), nil
}

// Decide records the tally outcome for a closed session. Deciding an open
// session is refused: voting must close first.
func (s *SessionStore) Decide(_ context.Context, sessionID string, result types.VotingResult) error {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.data.Status == model.SessionOpen {
		return ErrSessionNotClosed
	}
	sess.data.Status = model.SessionDecided
	sess.result = &result
	metrics.RecordSessionDecided()
	return nil
}

// Result returns the decided outcome. Failed decisions remain queryable
// with their failure reason.
func (s *SessionStore) Result(_ context.Context, sessionID string) (types.VotingResult, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return types.VotingResult{}, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.result == nil {
		return types.VotingResult{}, ErrResultNotReady
	}
	return *sess.result, nil
}

// CloseExpired closes every open session whose close time has passed and
// returns their IDs for deciding.
func (s *SessionStore) CloseExpired(ctx context.Context, now time.Time) []string {
	s.mu.RLock()
	ids := make([]string, 0, len(s.byID))
	for id := range s.byID {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	var closed []string
	for _, id := range ids {
		sess, err := s.lookup(id)
		if err != nil {
			continue
		}
		sess.mu.Lock()
		if sess.data.Status == model.SessionOpen && !now.Before(sess.data.ClosesAt) {
			sess.data.Status = model.SessionClosed
			metrics.UpdateSessionsOpen(int(s.open.Add(-1)))
			closed = append(closed, id)
		}
		sess.mu.Unlock()
	}

	return closed
}

func copySession(vs model.VotingSession) model.VotingSession {
	out := vs
	out.Eligible = make([]model.EligibleVoter, len(vs.Eligible))
	copy(out.Eligible, vs.Eligible)
	out.Ballots = make(map[string]model.Ballot, len(vs.Ballots))
	for voter, ballot := range vs.Ballots {
		out.Ballots[voter] = ballot
	}
	out.Options = make([]model.BallotOption, len(vs.Options))
	copy(out.Options, vs.Options)
	return out
}
