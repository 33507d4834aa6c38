package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/meritum/agora/internal/domain/model"
)

// DetectionStore keeps gaming detection records. Records are immutable
// once written: a manual review outcome supersedes the original rather
// than overwriting it, so the raw detection stays auditable.
type DetectionStore struct {
	mu   sync.RWMutex
	byID map[string]model.GamingDetectionRecord
}

// NewDetectionStore creates an empty detection store.
func NewDetectionStore() *DetectionStore {
	return &DetectionStore{byID: make(map[string]model.GamingDetectionRecord)}
}

// Put inserts a new detection record.
func (s *DetectionStore) Put(_ context.Context, record model.GamingDetectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[record.ID]; ok {
		return ErrRecordSuperseded
	}
	s.byID[record.ID] = record
	return nil
}

// Get returns a record by ID.
func (s *DetectionStore) Get(_ context.Context, id string) (model.GamingDetectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byID[id]
	if !ok {
		return model.GamingDetectionRecord{}, ErrRecordNotFound
	}
	return record, nil
}

// ByPresentation returns all records for a presentation, newest first,
// including superseded ones.
func (s *DetectionStore) ByPresentation(_ context.Context, presentationID string) []model.GamingDetectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.GamingDetectionRecord
	for _, record := range s.byID {
		if record.PresentationID == presentationID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// PendingReview returns records flagged for review that no review outcome
// has superseded yet, newest first.
func (s *DetectionStore) PendingReview(_ context.Context) []model.GamingDetectionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.GamingDetectionRecord
	for _, record := range s.byID {
		if record.RequiresReview && record.SupersededBy == "" {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

// Supersede atomically links a review outcome over an existing record. The
// original keeps its content; only its SupersededBy pointer is set.
func (s *DetectionStore) Supersede(_ context.Context, id string, outcome model.GamingDetectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.byID[id]
	if !ok {
		return ErrRecordNotFound
	}
	if original.SupersededBy != "" {
		return ErrRecordSuperseded
	}
	if _, ok := s.byID[outcome.ID]; ok {
		return ErrRecordSuperseded
	}

	original.SupersededBy = outcome.ID
	s.byID[id] = original
	s.byID[outcome.ID] = outcome
	return nil
}

// Count returns the number of stored records.
func (s *DetectionStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
