// Package repository holds the in-memory stores backing the governance
// core: the merit leaderboard, per-presentation evaluation sets, voting
// sessions, rules, and detection records.
package repository

import (
	"context"

	"github.com/meritum/agora/internal/domain/merit"
	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

// MeritStore provides read/write access to member merit standings.
type MeritStore interface {
	// Apply replaces a member's standing with the tracker's output.
	// Unlike a best-score board, merit can decrease when decay outweighs
	// new results.
	Apply(ctx context.Context, update merit.Update) error

	// Standing returns the member's rank, percentile, and scores.
	// Returns ErrMemberNotFound for an unknown member.
	Standing(ctx context.Context, memberID string) (types.Entry, error)

	// History returns the member's score history, oldest first. A nil
	// slice with no error means the member has no recorded scores yet.
	History(ctx context.Context, memberID string) ([]model.HistoryEntry, error)

	// TopN returns the top-N leaderboard ordered by cumulative score desc.
	TopN(ctx context.Context, n int) ([]types.Entry, error)

	// Count returns the number of members on the board.
	Count(ctx context.Context) int
}
