package repository

import (
	"context"
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/meritum/agora/internal/domain/merit"
	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
	"github.com/meritum/agora/pkg/metrics"
)

// Treap-based, in-memory merit leaderboard.
//
// Ordering: cumulative score DESC, then memberID ASC (deterministic).
// The BST comparator treats "less" as ranking earlier, so in-order
// traversal yields the leaderboard from best to worst.

// scoreScale controls fixed-point scaling from float64. Cumulative scores
// live in [0,10], so twelve decimal places fit comfortably in int64.
const scoreScale = 1_000_000_000_000

type scoreFP int64

func toFixedPoint(x float64) scoreFP {
	if math.IsNaN(x) {
		return 0
	}
	scaled := x * scoreScale
	if scaled > float64(math.MaxInt64) {
		return scoreFP(math.MaxInt64)
	}
	if scaled < float64(math.MinInt64) {
		return scoreFP(math.MinInt64)
	}
	return scoreFP(math.Round(scaled))
}

func toFloat(x scoreFP) float64 {
	return float64(x) / scoreScale
}

// record stores a member's standing plus their score history.
type record struct {
	score        scoreFP
	votingWeight float64
	history      []model.HistoryEntry
}

// Snapshot is an immutable view of the leaderboard for lock-free reads.
type Snapshot struct {
	RankByMember   map[string]int
	ScoreByMember  map[string]float64
	WeightByMember map[string]float64

	// Top rows cached for leaderboard queries (small relative to the board).
	TopCache []types.Entry
}

// treap node
type node struct {
	id    string
	score scoreFP
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less reports whether (aScore, aID) ranks earlier than (bScore, bID).
func less(aScore scoreFP, aID string, bScore scoreFP, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	t2 := x.right
	x.right = y
	y.left = t2
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	t2 := y.left
	y.left = x
	x.right = t2
	fix(x)
	fix(y)
	return y
}

// scoreToPriority keeps higher scores nearer the treap root.
func scoreToPriority(score scoreFP) uint64 {
	const offset = uint64(1) << 63
	return uint64(score) + offset
}

func insert(n *node, id string, score scoreFP) *node {
	if n == nil {
		return &node{id: id, score: score, prio: scoreToPriority(score), size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score scoreFP) *node {
	if n == nil {
		return nil
	}
	if score == n.score && id == n.id {
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	} else if less(score, id, n.score, n.id) {
		n.left = deleteNode(n.left, id, score)
	} else {
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, records map[string]record, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}

	collectTopN(n.left, limit, records, out)

	if len(*out) < limit {
		if rec, ok := records[n.id]; ok {
			*out = append(*out, types.Entry{
				MemberID:        n.id,
				CumulativeScore: toFloat(rec.score),
				VotingWeight:    rec.votingWeight,
			})
		}
	}

	if len(*out) < limit {
		collectTopN(n.right, limit, records, out)
	}
}

// TreapStore is the in-memory MeritStore implementation.
type TreapStore struct {
	mu               sync.RWMutex
	root             *node
	byID             map[string]record
	snapshotInterval time.Duration
	topCacheSize     int

	snapshot atomic.Pointer[Snapshot]

	wg       sync.WaitGroup
	stopChan chan struct{}
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(ctx context.Context, opts ...Option) *TreapStore {
	s := &TreapStore{
		snapshotInterval: 1 * time.Second,
		topCacheSize:     500,
		byID:             make(map[string]record),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.stopChan = make(chan struct{})
	s.startPeriodicSnapshots(ctx)

	return s
}

// startPeriodicSnapshots republishes the read snapshot at the configured
// interval.
func (s *TreapStore) startPeriodicSnapshots(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.snapshotInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.publishSnapshot()
			}
		}
	}()
}

func (s *TreapStore) publishSnapshot() {
	s.mu.RLock()
	s.publishSnapshotInternal()
	s.mu.RUnlock()
}

// Close stops the snapshot goroutine.
func (s *TreapStore) Close() error {
	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}
	s.wg.Wait()
	return nil
}

// Apply implements MeritStore.Apply with O(log n) expected time. The
// member's previous standing is always replaced: decay can move merit in
// either direction.
func (s *TreapStore) Apply(ctx context.Context, update merit.Update) error {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Milliseconds()))
	}()

	ns := toFixedPoint(update.CumulativeScore)
	isNewMember := false

	s.mu.Lock()
	if old, ok := s.byID[update.MemberID]; ok {
		s.root = deleteNode(s.root, update.MemberID, old.score)
	} else {
		isNewMember = true
	}
	s.byID[update.MemberID] = record{
		score:        ns,
		votingWeight: update.VotingWeight,
		history:      update.History,
	}
	s.root = insert(s.root, update.MemberID, ns)
	s.mu.Unlock()

	if isNewMember {
		metrics.UpdateTotalMembers(s.Count(ctx))
	}

	return nil
}

// Standing returns the member's current rank, percentile, and scores in
// O(log n) for the lookup plus a full-board rank pass.
func (s *TreapStore) Standing(ctx context.Context, memberID string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.byID[memberID]; !ok {
		metrics.RecordErrorByComponent("repository", "member_not_found")
		return types.Entry{}, ErrMemberNotFound
	}

	all := make([]types.Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &all)
	sortEntries(all)
	assignRanksWithTies(all)

	for _, entry := range all {
		if entry.MemberID == memberID {
			entry.Percentile = percentile(entry.Rank, len(all))
			return entry, nil
		}
	}

	return types.Entry{}, ErrMemberNotFound
}

// History returns a copy of the member's score history, oldest first.
func (s *TreapStore) History(ctx context.Context, memberID string) ([]model.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[memberID]
	if !ok {
		return nil, nil
	}

	out := make([]model.HistoryEntry, len(rec.history))
	copy(out, rec.history)
	return out, nil
}

// TopN returns the top N entries ordered by cumulative score desc.
func (s *TreapStore) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Milliseconds()))
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Entry, 0, n)
	collectTopN(s.root, n, s.byID, &out)
	assignRanksWithTies(out)

	total := len(s.byID)
	for i := range out {
		out[i].Percentile = percentile(out[i].Rank, total)
	}
	return out, nil
}

// Count returns the number of members on the board.
func (s *TreapStore) Count(ctx context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// publishSnapshotInternal rebuilds the snapshot; the read lock must be held.
func (s *TreapStore) publishSnapshotInternal() {
	topCache := make([]types.Entry, 0, s.topCacheSize)
	collectTopN(s.root, s.topCacheSize, s.byID, &topCache)

	rankByMember := make(map[string]int, len(s.byID))
	scoreByMember := make(map[string]float64, len(s.byID))
	weightByMember := make(map[string]float64, len(s.byID))

	all := make([]types.Entry, 0, len(s.byID))
	collectAll(s.root, s.byID, &all)
	assignRanksWithTies(all)

	for _, entry := range all {
		rankByMember[entry.MemberID] = entry.Rank
		scoreByMember[entry.MemberID] = entry.CumulativeScore
		weightByMember[entry.MemberID] = entry.VotingWeight
	}

	for i := range topCache {
		if rank, ok := rankByMember[topCache[i].MemberID]; ok {
			topCache[i].Rank = rank
			topCache[i].Percentile = percentile(rank, len(s.byID))
		}
	}

	s.snapshot.Store(&Snapshot{
		RankByMember:   rankByMember,
		ScoreByMember:  scoreByMember,
		WeightByMember: weightByMember,
		TopCache:       topCache,
	})
}

// collectAll appends all entries in rank order.
func collectAll(n *node, byID map[string]record, out *[]types.Entry) {
	if n == nil {
		return
	}
	collectAll(n.left, byID, out)
	if rec, ok := byID[n.id]; ok {
		*out = append(*out, types.Entry{
			MemberID:        n.id,
			CumulativeScore: toFloat(rec.score),
			VotingWeight:    rec.votingWeight,
		})
	}
	collectAll(n.right, byID, out)
}

// sortEntries orders by cumulative score desc, memberID asc.
func sortEntries(entries []types.Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CumulativeScore != entries[j].CumulativeScore {
			return entries[i].CumulativeScore > entries[j].CumulativeScore
		}
		return entries[i].MemberID < entries[j].MemberID
	})
}

// assignRanksWithTies gives members with equal scores the same rank.
// Percentiles are filled by the caller against the full board size.
func assignRanksWithTies(entries []types.Entry) {
	if len(entries) == 0 {
		return
	}

	currentRank := 1
	for i := 0; i < len(entries); i++ {
		entries[i].Rank = currentRank

		sameScore := 1
		for j := i + 1; j < len(entries) && entries[j].CumulativeScore == entries[i].CumulativeScore; j++ {
			entries[j].Rank = currentRank
			sameScore++
		}

		currentRank++
		i += sameScore - 1
	}
}

// percentile is the share of the board at or below the given rank.
func percentile(rank, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(total-rank+1) / float64(total) * 100
}
