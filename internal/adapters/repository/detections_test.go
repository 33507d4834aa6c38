package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/meritum/agora/internal/domain/model"
)

func detectionRecord(id, presentationID string, suspicion float64, review bool, at time.Time) model.GamingDetectionRecord {
	return model.GamingDetectionRecord{
		ID:             id,
		PresentationID: presentationID,
		Suspicion:      suspicion,
		Issues:         []string{"identical category score vectors"},
		RequiresReview: review,
		CreatedAt:      at,
	}
}

func TestDetectionStore_PutAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewDetectionStore()
	now := time.Now()

	if err := store.Put(ctx, detectionRecord("d1", "pres1", 0.8, true, now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Put(ctx, detectionRecord("d1", "pres1", 0.2, false, now)); !errors.Is(err, ErrRecordSuperseded) {
		t.Errorf("expected ErrRecordSuperseded for duplicate ID, got %v", err)
	}

	record, err := store.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !floatEqual(record.Suspicion, 0.8) {
		t.Errorf("expected suspicion 0.8, got %f", record.Suspicion)
	}

	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	if count := store.Count(ctx); count != 1 {
		t.Errorf("expected count 1, got %d", count)
	}
}

func TestDetectionStore_ByPresentationNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewDetectionStore()
	base := time.Now()

	records := []model.GamingDetectionRecord{
		detectionRecord("d1", "pres1", 0.3, false, base),
		detectionRecord("d2", "pres1", 0.8, true, base.Add(time.Minute)),
		detectionRecord("d3", "pres2", 0.5, false, base.Add(2*time.Minute)),
	}
	for _, r := range records {
		if err := store.Put(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	got := store.ByPresentation(ctx, "pres1")
	if len(got) != 2 {
		t.Fatalf("expected 2 records for pres1, got %d", len(got))
	}
	if got[0].ID != "d2" || got[1].ID != "d1" {
		t.Errorf("expected newest first [d2 d1], got [%s %s]", got[0].ID, got[1].ID)
	}

	if got := store.ByPresentation(ctx, "pres3"); len(got) != 0 {
		t.Errorf("expected no records for pres3, got %d", len(got))
	}
}

func TestDetectionStore_Supersede(t *testing.T) {
	ctx := context.Background()
	store := NewDetectionStore()
	now := time.Now()

	if err := store.Put(ctx, detectionRecord("d1", "pres1", 0.8, true, now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	outcome := detectionRecord("d1-review", "pres1", 0.8, false, now.Add(time.Hour))
	outcome.Confirmed = true
	outcome.Severity = model.PenaltyModerate

	if err := store.Supersede(ctx, "d1", outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The original keeps its content and gains the supersession link.
	original, err := store.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if original.SupersededBy != "d1-review" {
		t.Errorf("expected SupersededBy d1-review, got %q", original.SupersededBy)
	}
	if !floatEqual(original.Suspicion, 0.8) {
		t.Errorf("original record content changed: %+v", original)
	}

	review, err := store.Get(ctx, "d1-review")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !review.Confirmed || review.Severity != model.PenaltyModerate {
		t.Errorf("unexpected review record: %+v", review)
	}

	// Superseding twice is refused; the record is already reviewed.
	second := detectionRecord("d1-review2", "pres1", 0.8, false, now.Add(2*time.Hour))
	if err := store.Supersede(ctx, "d1", second); !errors.Is(err, ErrRecordSuperseded) {
		t.Errorf("expected ErrRecordSuperseded on second review, got %v", err)
	}

	if err := store.Supersede(ctx, "missing", second); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}

	// An outcome ID that collides with an existing record is refused.
	if err := store.Put(ctx, detectionRecord("d2", "pres1", 0.9, true, now)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clash := detectionRecord("d1-review", "pres1", 0.9, false, now)
	if err := store.Supersede(ctx, "d2", clash); !errors.Is(err, ErrRecordSuperseded) {
		t.Errorf("expected ErrRecordSuperseded for outcome ID clash, got %v", err)
	}
}

func TestDetectionStore_PendingReview(t *testing.T) {
	ctx := context.Background()
	store := NewDetectionStore()
	base := time.Now()

	records := []model.GamingDetectionRecord{
		detectionRecord("d1", "pres1", 0.8, true, base),
		detectionRecord("d2", "pres2", 0.3, false, base.Add(time.Minute)),
		detectionRecord("d3", "pres3", 0.9, true, base.Add(2*time.Minute)),
	}
	for _, r := range records {
		if err := store.Put(ctx, r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	pending := store.PendingReview(ctx)
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending records, got %d", len(pending))
	}
	if pending[0].ID != "d3" || pending[1].ID != "d1" {
		t.Errorf("expected newest first [d3 d1], got [%s %s]", pending[0].ID, pending[1].ID)
	}

	// Once reviewed, a record leaves the pending queue.
	outcome := detectionRecord("d1-review", "pres1", 0.8, false, base.Add(time.Hour))
	if err := store.Supersede(ctx, "d1", outcome); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	pending = store.PendingReview(ctx)
	if len(pending) != 1 || pending[0].ID != "d3" {
		t.Errorf("expected only d3 pending, got %v", pending)
	}
}
