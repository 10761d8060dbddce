package payment

import (
	"context"
	"fmt"
	"sync"
)

// Scripted is an in-process Processor for tests and local development.
// Captures succeed unless the token was scripted to decline or the gateway
// was scripted to fail. Results are memoized per token, matching the
// idempotency contract of the real gateway.
type Scripted struct {
	mu       sync.Mutex
	declined map[string]string
	outage   error
	captured map[string]string
	seq      int
}

func NewScripted() *Scripted {
	return &Scripted{
		declined: make(map[string]string),
		captured: make(map[string]string),
	}
}

// Decline scripts the given token to be declined with a reason.
func (s *Scripted) Decline(token, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.declined[token] = reason
}

// FailWith scripts every capture to fail with err until reset with nil.
func (s *Scripted) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outage = err
}

// Captures reports how many distinct tokens settled successfully.
func (s *Scripted) Captures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.captured)
}

func (s *Scripted) Capture(_ context.Context, req CaptureRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.outage != nil {
		return "", s.outage
	}
	if ref, ok := s.captured[req.Token]; ok {
		return ref, nil
	}
	if reason, ok := s.declined[req.Token]; ok {
		return "", fmt.Errorf("%w: %s", ErrDeclined, reason)
	}
	s.seq++
	ref := fmt.Sprintf("txn_%06d", s.seq)
	s.captured[req.Token] = ref
	return ref, nil
}
