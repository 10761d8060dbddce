// Package store persists tracks. Both implementations list newest-first and
// return sentinel errors for the service layer to translate.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"soundvault/internal/track/models"
	"soundvault/pkg/platform/sentinel"
)

// InMemory is a map-backed track store safe for concurrent use.
type InMemory struct {
	mu     sync.RWMutex
	tracks map[uuid.UUID]models.Track
}

func NewInMemory() *InMemory {
	return &InMemory{tracks: make(map[uuid.UUID]models.Track)}
}

func (s *InMemory) Create(_ context.Context, t *models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tracks[t.ID]; exists {
		return sentinel.ErrConflict
	}
	s.tracks[t.ID] = *t
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tracks[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &t, nil
}

func (s *InMemory) Update(_ context.Context, t *models.Track) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tracks[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.tracks[t.ID] = *t
	return nil
}

func (s *InMemory) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tracks[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.tracks, id)
	return nil
}

// ListPublic returns public tracks newest-first.
func (s *InMemory) ListPublic(_ context.Context, skip, limit int) ([]*models.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Track
	for _, t := range s.tracks {
		if t.IsPublic {
			t := t
			out = append(out, &t)
		}
	}
	sortNewestFirst(out)
	return page(out, skip, limit), nil
}

// ListByOwner returns all of an owner's tracks newest-first, public or not.
func (s *InMemory) ListByOwner(_ context.Context, ownerID uuid.UUID, skip, limit int) ([]*models.Track, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Track
	for _, t := range s.tracks {
		if t.OwnerID == ownerID {
			t := t
			out = append(out, &t)
		}
	}
	sortNewestFirst(out)
	return page(out, skip, limit), nil
}

// IncrementPlayCount bumps the play counter by one.
func (s *InMemory) IncrementPlayCount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tracks[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	t.PlayCount++
	s.tracks[id] = t
	return nil
}

// CountByOwnerSince counts tracks an owner created at or after the cutoff.
// Backs the per-day upload limit.
func (s *InMemory) CountByOwnerSince(_ context.Context, ownerID uuid.UUID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, t := range s.tracks {
		if t.OwnerID == ownerID && !t.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func sortNewestFirst(tracks []*models.Track) {
	sort.Slice(tracks, func(i, j int) bool {
		if tracks[i].CreatedAt.Equal(tracks[j].CreatedAt) {
			return tracks[i].ID.String() > tracks[j].ID.String()
		}
		return tracks[i].CreatedAt.After(tracks[j].CreatedAt)
	})
}

func page(tracks []*models.Track, skip, limit int) []*models.Track {
	if skip >= len(tracks) {
		return nil
	}
	end := skip + limit
	if limit <= 0 || end > len(tracks) {
		end = len(tracks)
	}
	return tracks[skip:end]
}
