package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

func testSession(id string, closesAt time.Time) model.VotingSession {
	return model.VotingSession{
		ID:       id,
		TargetID: "prop1",
		Eligible: []model.EligibleVoter{
			{VoterID: "alice", Weight: 3},
			{VoterID: "bob", Weight: 2},
			{VoterID: "carol", Weight: 1},
		},
		Options:          []model.BallotOption{model.OptionSupport, model.OptionOppose, model.OptionAbstain},
		AbstainOption:    model.OptionAbstain,
		RequiredMajority: 0.5,
		QuorumFraction:   0.6,
		OpenedAt:         time.Now(),
		ClosesAt:         closesAt,
		Cycle:            1,
	}
}

func sessionBallot(voterID string, option model.BallotOption, weight float64) model.Ballot {
	return model.Ballot{
		TargetID:       "prop1",
		VoterID:        voterID,
		Option:         option,
		WeightSnapshot: weight,
		Cycle:          1,
	}
}

func TestSessionStore_OpenAndCast(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	if err := store.Open(ctx, testSession("s1", now.Add(time.Hour))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Open(ctx, testSession("s1", now.Add(time.Hour))); !errors.Is(err, ErrSessionExists) {
		t.Errorf("expected ErrSessionExists, got %v", err)
	}

	if err := store.CastBallot(ctx, "s1", sessionBallot("alice", model.OptionSupport, 3), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := store.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Ballots) != 1 {
		t.Errorf("expected 1 ballot, got %d", len(snap.Ballots))
	}
	if snap.Ballots["alice"].CastAt.IsZero() {
		t.Errorf("expected CastAt to be stamped on acceptance")
	}
}

func TestSessionStore_BallotRejections(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	if err := store.Open(ctx, testSession("s1", now.Add(time.Hour))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.CastBallot(ctx, "missing", sessionBallot("alice", model.OptionSupport, 3), now); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if err := store.CastBallot(ctx, "s1", sessionBallot("mallory", model.OptionSupport, 9), now); !errors.Is(err, ErrNotEligible) {
		t.Errorf("expected ErrNotEligible, got %v", err)
	}

	if err := store.CastBallot(ctx, "s1", sessionBallot("alice", model.OptionSupport, 3), now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.CastBallot(ctx, "s1", sessionBallot("alice", model.OptionOppose, 3), now); !errors.Is(err, ErrDuplicateBallot) {
		t.Errorf("expected ErrDuplicateBallot, got %v", err)
	}

	// The first ballot survives the rejected overwrite attempt.
	snap, err := store.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Ballots["alice"].Option != model.OptionSupport {
		t.Errorf("duplicate ballot overwrote the original")
	}

	// Past the close time the session refuses ballots even while still
	// marked open.
	late := now.Add(2 * time.Hour)
	if err := store.CastBallot(ctx, "s1", sessionBallot("bob", model.OptionSupport, 2), late); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionStore_CloseAndDecide(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	if err := store.Open(ctx, testSession("s1", now.Add(time.Hour))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := types.VotingResult{SessionID: "s1", Passed: true, WinningOption: "support", QuorumMet: true}

	if err := store.Decide(ctx, "s1", result); !errors.Is(err, ErrSessionNotClosed) {
		t.Errorf("expected ErrSessionNotClosed for open session, got %v", err)
	}
	if _, err := store.Result(ctx, "s1"); !errors.Is(err, ErrResultNotReady) {
		t.Errorf("expected ErrResultNotReady, got %v", err)
	}

	closed, err := store.Close(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.Status != model.SessionClosed {
		t.Errorf("expected status closed, got %s", closed.Status)
	}

	// Closing again is a no-op.
	closed, err = store.Close(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closed.Status != model.SessionClosed {
		t.Errorf("expected status to stay closed, got %s", closed.Status)
	}

	if err := store.CastBallot(ctx, "s1", sessionBallot("bob", model.OptionSupport, 2), now); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed after close, got %v", err)
	}

	if err := store.Decide(ctx, "s1", result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.Result(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Passed || got.WinningOption != "support" {
		t.Errorf("unexpected result: %+v", got)
	}

	snap, err := store.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != model.SessionDecided {
		t.Errorf("expected status decided, got %s", snap.Status)
	}
}

func TestSessionStore_SnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	if err := store.Open(ctx, testSession("s1", now.Add(time.Hour))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap, err := store.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap.Ballots["alice"] = sessionBallot("alice", model.OptionSupport, 3)
	snap.Eligible[0].Weight = 99

	again, err := store.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(again.Ballots) != 0 {
		t.Errorf("stored session was mutated through the snapshot")
	}
	if !floatEqual(again.Eligible[0].Weight, 3) {
		t.Errorf("frozen electorate was mutated through the snapshot")
	}
}

func TestSessionStore_CloseExpired(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	if err := store.Open(ctx, testSession("expired", now.Add(-time.Minute))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Open(ctx, testSession("live", now.Add(time.Hour))); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closed := store.CloseExpired(ctx, now)
	if len(closed) != 1 || closed[0] != "expired" {
		t.Errorf("expected [expired], got %v", closed)
	}

	snap, err := store.Snapshot(ctx, "live")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Status != model.SessionOpen {
		t.Errorf("live session should remain open, got %s", snap.Status)
	}

	// A second sweep finds nothing left to close.
	if closed := store.CloseExpired(ctx, now); len(closed) != 0 {
		t.Errorf("expected no sessions on second sweep, got %v", closed)
	}
}

func TestSessionStore_ConcurrentBallots(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	now := time.Now()

	vs := testSession("s1", now.Add(time.Hour))
	vs.Eligible = nil
	const voters = 64
	for i := 0; i < voters; i++ {
		vs.Eligible = append(vs.Eligible, model.EligibleVoter{VoterID: fmt.Sprintf("voter%d", i), Weight: 1})
	}
	if err := store.Open(ctx, vs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			// Each voter races two identical casts; exactly one wins.
			b := sessionBallot(fmt.Sprintf("voter%d", idx), model.OptionSupport, 1)
			_ = store.CastBallot(ctx, "s1", b, now)
			_ = store.CastBallot(ctx, "s1", b, now)
		}(i)
	}
	wg.Wait()

	snap, err := store.Snapshot(ctx, "s1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Ballots) != voters {
		t.Errorf("expected %d ballots, got %d", voters, len(snap.Ballots))
	}
}
