package repository

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/meritum/agora/internal/domain/merit"
	"github.com/meritum/agora/internal/domain/model"
)

// floatEqual compares two float64 values with a small tolerance.
func floatEqual(a, b float64) bool {
	const tolerance = 1e-10
	return math.Abs(a-b) < tolerance
}

func update(memberID string, cumulative, weight float64) merit.Update {
	return merit.Update{
		MemberID:        memberID,
		CumulativeScore: cumulative,
		VotingWeight:    weight,
		History:         []model.HistoryEntry{{Cycle: 1, Score: cumulative}},
	}
}

func TestTreapStore_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	if count := store.Count(ctx); count != 0 {
		t.Errorf("expected count 0, got %d", count)
	}

	if err := store.Apply(ctx, update("member1", 8.5, 2.25)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}

	entry, err := store.Standing(ctx, "member1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.Rank != 1 {
		t.Errorf("expected rank 1, got %d", entry.Rank)
	}
	if !floatEqual(entry.CumulativeScore, 8.5) {
		t.Errorf("expected cumulative score 8.5, got %f", entry.CumulativeScore)
	}
	if !floatEqual(entry.VotingWeight, 2.25) {
		t.Errorf("expected voting weight 2.25, got %f", entry.VotingWeight)
	}
	if !floatEqual(entry.Percentile, 100.0) {
		t.Errorf("expected percentile 100 for sole member, got %f", entry.Percentile)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].MemberID != "member1" {
		t.Errorf("expected member1, got %s", entries[0].MemberID)
	}
}

func TestTreapStore_ReplacesStanding(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	if err := store.Apply(ctx, update("member1", 7.0, 2.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Merit decays: a lower cumulative score must replace the higher one.
	if err := store.Apply(ctx, update("member1", 6.2, 1.9)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entry, err := store.Standing(ctx, "member1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEqual(entry.CumulativeScore, 6.2) {
		t.Errorf("expected cumulative score 6.2, got %f", entry.CumulativeScore)
	}
	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1 after replacement, got %d", count)
	}
}

func TestTreapStore_Ordering(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	members := []struct {
		id    string
		score float64
	}{
		{"member1", 8.5},
		{"member2", 9.5},
		{"member3", 7.5},
		{"member4", 9.9},
		{"member5", 8.0},
	}

	for _, m := range members {
		if err := store.Apply(ctx, update(m.id, m.score, 1.0)); err != nil {
			t.Fatalf("unexpected error applying %s: %v", m.id, err)
		}
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected 5 entries, got %d", len(entries))
	}

	for i := 0; i < len(entries)-1; i++ {
		if entries[i].CumulativeScore < entries[i+1].CumulativeScore {
			t.Errorf("entries not in descending order: %f < %f",
				entries[i].CumulativeScore, entries[i+1].CumulativeScore)
		}
	}

	expectedOrder := []string{"member4", "member2", "member1", "member5", "member3"}
	for i, expectedID := range expectedOrder {
		if entries[i].MemberID != expectedID {
			t.Errorf("position %d: expected %s, got %s", i, expectedID, entries[i].MemberID)
		}
		if entries[i].Rank != i+1 {
			t.Errorf("entry %d: expected rank %d, got %d", i, i+1, entries[i].Rank)
		}
	}
}

func TestTreapStore_TieBreaking(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	if err := store.Apply(ctx, update("memberB", 9.0, 2.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Apply(ctx, update("memberA", 9.0, 2.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	// Same score: alphabetical order, shared rank.
	if entries[0].MemberID != "memberA" {
		t.Errorf("expected memberA first, got %s", entries[0].MemberID)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 1 {
		t.Errorf("expected shared rank 1 for tie, got %d and %d", entries[0].Rank, entries[1].Rank)
	}
}

func TestTreapStore_History(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	history, err := store.History(ctx, "unknown")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if history != nil {
		t.Errorf("expected nil history for unknown member, got %v", history)
	}

	up := merit.Update{
		MemberID:        "member1",
		CumulativeScore: 7.2,
		VotingWeight:    2.1,
		History: []model.HistoryEntry{
			{Cycle: 1, Score: 6.0},
			{Cycle: 2, Score: 8.0},
		},
	}
	if err := store.Apply(ctx, up); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	history, err = store.History(ctx, "member1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(history))
	}
	if history[0].Cycle != 1 || !floatEqual(history[0].Score, 6.0) {
		t.Errorf("unexpected first history entry: %+v", history[0])
	}

	// Mutating the returned copy must not affect the store.
	history[0].Score = 1.0
	again, _ := store.History(ctx, "member1")
	if !floatEqual(again[0].Score, 6.0) {
		t.Error("history copy leaked store state")
	}
}

func TestTreapStore_Percentiles(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	for i := 0; i < 4; i++ {
		id := fmt.Sprintf("member%d", i)
		if err := store.Apply(ctx, update(id, float64(9-i), 1.0)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	cases := []struct {
		memberID   string
		rank       int
		percentile float64
	}{
		{"member0", 1, 100.0},
		{"member1", 2, 75.0},
		{"member2", 3, 50.0},
		{"member3", 4, 25.0},
	}
	for _, tc := range cases {
		entry, err := store.Standing(ctx, tc.memberID)
		if err != nil {
			t.Fatalf("unexpected error for %s: %v", tc.memberID, err)
		}
		if entry.Rank != tc.rank {
			t.Errorf("%s: expected rank %d, got %d", tc.memberID, tc.rank, entry.Rank)
		}
		if !floatEqual(entry.Percentile, tc.percentile) {
			t.Errorf("%s: expected percentile %f, got %f", tc.memberID, tc.percentile, entry.Percentile)
		}
	}
}

func TestTreapStore_EdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	if _, err := store.TopN(ctx, 0); err == nil {
		t.Error("expected error for invalid limit")
	}
	if _, err := store.TopN(ctx, -1); err == nil {
		t.Error("expected error for negative limit")
	}
	if _, err := store.Standing(ctx, "nonexistent"); err == nil {
		t.Error("expected error for unknown member")
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("TopN on empty store failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected 0 entries from empty store, got %d", len(entries))
	}
}

func TestTreapStore_ConcurrentApply(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)
	defer func() { _ = store.Close() }()

	numGoroutines := 10
	numUpdates := 100

	var wg sync.WaitGroup
	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < numUpdates; j++ {
				memberID := fmt.Sprintf("member%d_%d", id, j)
				score := float64(j%10) + float64(id)/100
				if err := store.Apply(ctx, update(memberID, score, 1.0)); err != nil {
					t.Errorf("goroutine %d: unexpected error: %v", id, err)
				}
			}
		}(g)
	}
	wg.Wait()

	if count := store.Count(ctx); count != numGoroutines*numUpdates {
		t.Errorf("expected count %d, got %d", numGoroutines*numUpdates, count)
	}

	entries, err := store.TopN(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < len(entries)-1; i++ {
		if entries[i].CumulativeScore < entries[i+1].CumulativeScore {
			t.Errorf("entries not in descending order: %f < %f",
				entries[i].CumulativeScore, entries[i+1].CumulativeScore)
		}
	}
}

func TestTreapStore_PeriodicSnapshots(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx, WithSnapshotInterval(10*time.Millisecond))
	defer func() { _ = store.Close() }()

	_ = store.Apply(ctx, update("member1", 6.0, 1.0))
	_ = store.Apply(ctx, update("member2", 8.0, 2.0))
	_ = store.Apply(ctx, update("member3", 7.0, 1.5))

	time.Sleep(50 * time.Millisecond)

	snapshot := store.snapshot.Load()
	if snapshot == nil {
		t.Fatal("expected snapshot to be created")
	}
	if len(snapshot.RankByMember) != 3 {
		t.Errorf("expected 3 ranks in snapshot, got %d", len(snapshot.RankByMember))
	}
	if len(snapshot.TopCache) != 3 {
		t.Errorf("expected 3 cached rows, got %d", len(snapshot.TopCache))
	}
	if snapshot.RankByMember["member2"] != 1 {
		t.Errorf("expected member2 at rank 1, got %d", snapshot.RankByMember["member2"])
	}
	if !floatEqual(snapshot.WeightByMember["member3"], 1.5) {
		t.Errorf("expected member3 weight 1.5, got %f", snapshot.WeightByMember["member3"])
	}
}

func TestTreapStore_CloseBehavior(t *testing.T) {
	ctx := context.Background()
	store := NewTreapStore(ctx)

	if err := store.Apply(ctx, update("member1", 8.0, 2.0)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Close returned error: %v", err)
	}

	// Operations still work after close; only the snapshot goroutine stops.
	if err := store.Apply(ctx, update("member2", 9.0, 2.5)); err != nil {
		t.Fatalf("Apply failed after close: %v", err)
	}

	// Multiple closes should not panic.
	if err := store.Close(); err != nil {
		t.Errorf("second Close returned error: %v", err)
	}
}
