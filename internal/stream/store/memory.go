// Package store persists play history. Appends only; reads are aggregate
// counts used for limits and analytics.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"soundvault/internal/stream/models"
)

// InMemory is a slice-backed play store safe for concurrent use.
type InMemory struct {
	mu    sync.RWMutex
	plays []models.Play
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

// Append records a play event.
func (s *InMemory) Append(_ context.Context, p *models.Play) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plays = append(s.plays, *p)
	return nil
}

// CountByTrack reports the number of recorded plays for a track.
func (s *InMemory) CountByTrack(_ context.Context, trackID uuid.UUID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	for _, p := range s.plays {
		if p.TrackID == trackID {
			n++
		}
	}
	return n, nil
}

// CountByPrincipalSince reports a principal's plays in a time window. Used
// for the free-streaming limit.
func (s *InMemory) CountByPrincipalSince(_ context.Context, principalID uuid.UUID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	for _, p := range s.plays {
		if p.PrincipalID == principalID && !p.PlayedAt.Before(since) {
			n++
		}
	}
	return n, nil
}
