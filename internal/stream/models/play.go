package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/validate"
)

// Play is one playback event. PrincipalID is the zero UUID for anonymous
// plays of public tracks. Duration is how many seconds were actually heard,
// reported by the client and bounded; zero means unknown.
type Play struct {
	ID          uuid.UUID `json:"id"`
	TrackID     uuid.UUID `json:"track_id"`
	PrincipalID uuid.UUID `json:"principal_id,omitempty"`
	Duration    int       `json:"duration"`
	PlayedAt    time.Time `json:"played_at"`
}

// NewPlay constructs a play event, enforcing invariants.
func NewPlay(id, trackID, principalID uuid.UUID, duration int, now time.Time) (*Play, error) {
	if trackID == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "play track cannot be empty")
	}
	if duration < 0 || duration > validate.MaxDuration {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "play duration is out of range")
	}
	return &Play{
		ID:          id,
		TrackID:     trackID,
		PrincipalID: principalID,
		Duration:    duration,
		PlayedAt:    now,
	}, nil
}
