// Package store persists principals. The memory implementation backs unit
// tests and local development; postgres is the production store. Both return
// sentinel errors, which the service layer translates into coded domain
// errors.
package store

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"soundvault/internal/principal/models"
	"soundvault/pkg/platform/sentinel"
)

// InMemory is a map-backed principal store safe for concurrent use.
type InMemory struct {
	mu        sync.RWMutex
	byID      map[uuid.UUID]models.Principal
	bySubject map[string]uuid.UUID
	byEmail   map[string]uuid.UUID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:      make(map[uuid.UUID]models.Principal),
		bySubject: make(map[string]uuid.UUID),
		byEmail:   make(map[string]uuid.UUID),
	}
}

// Create persists a new principal. Returns sentinel.ErrConflict when the
// email or subject is already registered.
func (s *InMemory) Create(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(p.Email)
	if _, exists := s.byEmail[email]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.bySubject[p.Subject]; exists {
		return sentinel.ErrConflict
	}
	s.byID[p.ID] = *p
	s.bySubject[p.Subject] = p.ID
	s.byEmail[email] = p.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id uuid.UUID) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &p, nil
}

func (s *InMemory) FindBySubject(_ context.Context, subject string) (*models.Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.bySubject[subject]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	p := s.byID[id]
	return &p, nil
}

// Update persists mutable profile fields. Identity fields (subject, email)
// are not remapped.
func (s *InMemory) Update(_ context.Context, p *models.Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.byID[p.ID] = *p
	return nil
}
