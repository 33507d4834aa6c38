package repository

import (
	"context"
	"sync"

	"github.com/meritum/agora/internal/domain/model"
	"github.com/meritum/agora/internal/domain/types"
)

// presentation is one presentation's evaluation set and latest result,
// guarded by its own mutex so recomputes for different presentations never
// contend.
type presentation struct {
	mu      sync.Mutex
	evals   []model.Evaluation
	result  *types.PresentationScoreResult
	signals model.DetectionSignals
}

// PresentationStore accumulates evaluations per presentation and holds the
// latest aggregation result. Ingest serializes append-and-recompute per
// presentation, which keeps exactly one recompute in flight at a time.
type PresentationStore struct {
	mu   sync.RWMutex
	byID map[string]*presentation
}

// NewPresentationStore creates an empty presentation store.
func NewPresentationStore() *PresentationStore {
	return &PresentationStore{byID: make(map[string]*presentation)}
}

func (s *PresentationStore) get(presentationID string, create bool) *presentation {
	s.mu.RLock()
	p := s.byID[presentationID]
	s.mu.RUnlock()
	if p != nil || !create {
		return p
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if p = s.byID[presentationID]; p == nil {
		p = &presentation{}
		s.byID[presentationID] = p
	}
	return p
}

// Ingest recomputes the presentation's score over the stored set plus the
// new evaluation, under the per-presentation lock. The evaluation is
// committed only when recompute accepts the set; a rejected evaluation
// leaves the stored set and result exactly as they were.
func (s *PresentationStore) Ingest(ctx context.Context, eval model.Evaluation, recompute func(ctx context.Context, evals []model.Evaluation) (types.PresentationScoreResult, error)) (types.PresentationScoreResult, error) {
	p := s.get(eval.PresentationID, true)

	p.mu.Lock()
	defer p.mu.Unlock()

	snapshot := make([]model.Evaluation, len(p.evals), len(p.evals)+1)
	copy(snapshot, p.evals)
	snapshot = append(snapshot, eval)

	result, err := recompute(ctx, snapshot)
	if err != nil {
		return types.PresentationScoreResult{}, err
	}

	p.evals = snapshot
	p.result = &result
	return result, nil
}

// SetSignals stores externally supplied detection evidence for the
// presentation, merging with anything already held.
func (s *PresentationStore) SetSignals(_ context.Context, presentationID string, signals model.DetectionSignals) {
	p := s.get(presentationID, true)

	p.mu.Lock()
	defer p.mu.Unlock()

	if signals.DemographicSkew {
		p.signals.DemographicSkew = true
	}
	if len(signals.Origins) > 0 {
		if p.signals.Origins == nil {
			p.signals.Origins = make(map[string]string, len(signals.Origins))
		}
		for evaluator, origin := range signals.Origins {
			p.signals.Origins[evaluator] = origin
		}
	}
	p.signals.ReciprocalPairs = append(p.signals.ReciprocalPairs, signals.ReciprocalPairs...)
	p.signals.IdentityLinks = append(p.signals.IdentityLinks, signals.IdentityLinks...)
}

// Signals returns a copy of the presentation's stored detection evidence.
func (s *PresentationStore) Signals(_ context.Context, presentationID string) model.DetectionSignals {
	p := s.get(presentationID, false)
	if p == nil {
		return model.DetectionSignals{}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	out := model.DetectionSignals{DemographicSkew: p.signals.DemographicSkew}
	if len(p.signals.Origins) > 0 {
		out.Origins = make(map[string]string, len(p.signals.Origins))
		for evaluator, origin := range p.signals.Origins {
			out.Origins[evaluator] = origin
		}
	}
	out.ReciprocalPairs = append(out.ReciprocalPairs, p.signals.ReciprocalPairs...)
	out.IdentityLinks = append(out.IdentityLinks, p.signals.IdentityLinks...)
	return out
}

// Evaluations returns a copy of the presentation's evaluation set.
func (s *PresentationStore) Evaluations(_ context.Context, presentationID string) ([]model.Evaluation, error) {
	p := s.get(presentationID, false)
	if p == nil {
		return nil, ErrPresentationNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.evals) == 0 {
		return nil, ErrPresentationNotFound
	}

	out := make([]model.Evaluation, len(p.evals))
	copy(out, p.evals)
	return out, nil
}

// Result returns the latest published score result for the presentation.
func (s *PresentationStore) Result(_ context.Context, presentationID string) (types.PresentationScoreResult, error) {
	p := s.get(presentationID, false)
	if p == nil {
		return types.PresentationScoreResult{}, ErrPresentationNotFound
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.result == nil {
		return types.PresentationScoreResult{}, ErrPresentationNotFound
	}
	return *p.result, nil
}

// Count returns the number of presentations with at least one evaluation.
func (s *PresentationStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
