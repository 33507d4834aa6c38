// Package archive persists an audit trail of detection records, decided
// session results, and rule modifications to a local sqlite database.
//
// The archive is append-only and sits off the hot path: callers treat
// write failures as degraded observability, not as operation failures.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
	"github.com/meritum/agora/pkg/logger"
	"github.com/meritum/agora/pkg/metrics"
)

const schema = `
CREATE TABLE IF NOT EXISTS detections (
	id TEXT PRIMARY KEY,
	presentation_id TEXT NOT NULL,
	suspicion REAL NOT NULL,
	issues TEXT NOT NULL,
	requires_review INTEGER NOT NULL,
	confirmed INTEGER NOT NULL,
	severity TEXT NOT NULL,
	superseded_by TEXT NOT NULL,
	created_at TEXT NOT NULL,
	archived_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS session_results (
	session_id TEXT PRIMARY KEY,
	passed INTEGER NOT NULL,
	winning_option TEXT NOT NULL,
	quorum_met INTEGER NOT NULL,
	failure_reason TEXT NOT NULL,
	tallies TEXT NOT NULL,
	total_cast REAL NOT NULL,
	total_eligible REAL NOT NULL,
	archived_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS rule_modifications (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	rule_id TEXT NOT NULL,
	cycle INTEGER NOT NULL,
	old_value REAL NOT NULL,
	new_value REAL NOT NULL,
	removed INTEGER NOT NULL,
	modified INTEGER NOT NULL,
	archived_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_detections_presentation
	ON detections(presentation_id);
CREATE INDEX IF NOT EXISTS idx_rule_modifications_rule
	ON rule_modifications(rule_id, cycle);
`

// Archive is the sqlite-backed audit store.
type Archive struct {
	db     *sql.DB
	logger logger.Logger
}

// Open opens or creates the archive database at path and applies the
// schema. Use ":memory:" for an ephemeral archive in tests.
func Open(ctx context.Context, path string) (*Archive, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening archive %s: %w", path, err)
	}

	// modernc sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY churn under concurrent writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("applying archive schema: %w", err)
	}

	return &Archive{
		db:     db,
		logger: logger.Get().Named("archive"),
	}, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// WriteDetection archives one detection record.
func (a *Archive) WriteDetection(ctx context.Context, record model.GamingDetectionRecord) error {
	issues, err := json.Marshal(record.Issues)
	if err != nil {
		return a.fail(ctx, "detection", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT INTO detections
			(id, presentation_id, suspicion, issues, requires_review,
			 confirmed, severity, superseded_by, created_at, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			superseded_by = excluded.superseded_by,
			confirmed = excluded.confirmed,
			severity = excluded.severity,
			archived_at = excluded.archived_at`,
		record.ID,
		record.PresentationID,
		record.Suspicion,
		string(issues),
		boolInt(record.RequiresReview),
		boolInt(record.Confirmed),
		string(record.Severity),
		record.SupersededBy,
		record.CreatedAt.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return a.fail(ctx, "detection", err)
	}

	metrics.RecordArchiveWrite()
	return nil
}

// WriteSessionResult archives one decided session's outcome.
func (a *Archive) WriteSessionResult(ctx context.Context, result types.VotingResult) error {
	tallies, err := json.Marshal(result.Tallies)
	if err != nil {
		return a.fail(ctx, "session_result", err)
	}

	_, err = a.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO session_results
			(session_id, passed, winning_option, quorum_met,
			 failure_reason, tallies, total_cast, total_eligible, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.SessionID,
		boolInt(result.Passed),
		result.WinningOption,
		boolInt(result.QuorumMet),
		string(result.FailureReason),
		string(tallies),
		result.TotalCast,
		result.TotalEligible,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return a.fail(ctx, "session_result", err)
	}

	metrics.RecordArchiveWrite()
	return nil
}

// WriteRuleModification archives one cycle's evolution outcome for a rule.
func (a *Archive) WriteRuleModification(ctx context.Context, cycle model.Cycle, result types.RuleModificationResult) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO rule_modifications
			(rule_id, cycle, old_value, new_value, removed, modified, archived_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.RuleID,
		int(cycle),
		result.OldValue,
		result.NewValue,
		boolInt(result.Removed),
		boolInt(result.Modified),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return a.fail(ctx, "rule_modification", err)
	}

	metrics.RecordArchiveWrite()
	return nil
}

// DetectionCount reports the number of archived detection records.
func (a *Archive) DetectionCount(ctx context.Context) (int, error) {
	var count int
	if err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting archived detections: %w", err)
	}
	return count, nil
}

// RuleHistory returns the archived modification trail for one rule,
// oldest first.
func (a *Archive) RuleHistory(ctx context.Context, ruleID string) ([]types.RuleModificationResult, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT rule_id, old_value, new_value, removed, modified
		 FROM rule_modifications WHERE rule_id = ? ORDER BY id`, ruleID)
	if err != nil {
		return nil, fmt.Errorf("querying rule history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.RuleModificationResult
	for rows.Next() {
		var r types.RuleModificationResult
		var removed, modified int
		if err := rows.Scan(&r.RuleID, &r.OldValue, &r.NewValue, &removed, &modified); err != nil {
			return nil, fmt.Errorf("scanning rule history: %w", err)
		}
		r.Removed = removed != 0
		r.Modified = modified != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func (a *Archive) fail(ctx context.Context, kind string, err error) error {
	metrics.RecordArchiveError()
	metrics.RecordErrorByComponent("archive", kind)
	a.logger.Error(ctx, "archive write failed",
		logger.String("kind", kind),
		logger.Error(err),
	)
	return fmt.Errorf("archiving %s: %w", kind, err)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
