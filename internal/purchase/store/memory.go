// Package store persists purchase records. Records are append-only; the only
// uniqueness guarantee is at most one completed record per (payer, track),
// enforced here under a single lock and in postgres by a partial unique
// index. Failed attempts never block a retry.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"soundvault/internal/purchase/models"
	"soundvault/pkg/platform/sentinel"
)

type pairKey struct {
	payer uuid.UUID
	track uuid.UUID
}

// InMemory is a map-backed purchase store safe for concurrent use.
type InMemory struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]models.Purchase
	completed map[pairKey]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:      make(map[uuid.UUID]models.Purchase),
		completed: make(map[pairKey]uuid.UUID),
	}
}

// Create appends a purchase record. Returns sentinel.ErrConflict when a
// completed record already exists for the same (payer, track); the check and
// the insert happen under one lock so concurrent attempts cannot both win.
func (s *InMemory) Create(_ context.Context, p *models.Purchase) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{payer: p.PayerID, track: p.TrackID}
	if p.Status == models.StatusCompleted {
		if _, exists := s.completed[key]; exists {
			return sentinel.ErrConflict
		}
		s.completed[key] = p.ID
	}
	s.byID[p.ID] = *p
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

// HasCompleted reports whether a completed purchase exists for (payer, track).
func (s *InMemory) HasCompleted(_ context.Context, payerID, trackID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.completed[pairKey{payer: payerID, track: trackID}]
	return ok, nil
}

// ExistsForTrack reports whether any purchase record, completed or failed,
// references the track.
func (s *InMemory) ExistsForTrack(_ context.Context, trackID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.byID {
		if p.TrackID == trackID {
			return true, nil
		}
	}
	return false, nil
}

// ListCompletedByPayer returns a payer's completed purchases newest-first.
func (s *InMemory) ListCompletedByPayer(_ context.Context, payerID uuid.UUID, skip, limit int) ([]*models.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Purchase
	for _, p := range s.byID {
		if p.PayerID == payerID && p.Status == models.StatusCompleted {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if skip >= len(out) {
		return nil, nil
	}
	end := skip + limit
	if limit <= 0 || end > len(out) {
		end = len(out)
	}
	return out[skip:end], nil
}
