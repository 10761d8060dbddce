package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/validate"
)

// Track is a purchasable audio item.
//
// Invariants:
//   - OwnerID references the artist who created it; ownership never transfers
//   - PriceCents is in [0, validate.MaxPriceCents]; money is integer minor
//     units so amount comparisons stay exact
//   - Title is non-empty, at most validate.MaxTitleLength characters
//   - AudioKey is the object-store key of the uploaded audio; it is never
//     exposed to clients, only exchanged for signed grants
type Track struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Genre       string    `json:"genre,omitempty"`
	PriceCents  int64     `json:"price_cents"`
	Duration    int       `json:"duration"`
	ReleaseDate time.Time `json:"release_date"`
	IsPublic    bool      `json:"is_public"`
	AudioKey    string    `json:"-"`
	CoverKey    string    `json:"-"`
	PlayCount   int64     `json:"play_count"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTrack constructs a Track, enforcing invariants.
func NewTrack(id, ownerID uuid.UUID, title string, priceCents int64, duration int, now time.Time) (*Track, error) {
	if ownerID == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "track owner cannot be empty")
	}
	if title == "" || len(title) > validate.MaxTitleLength {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "track title is invalid")
	}
	if priceCents < 0 || priceCents > validate.MaxPriceCents {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "track price is out of range")
	}
	if duration <= 0 || duration > validate.MaxDuration {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "track duration is out of range")
	}
	return &Track{
		ID:          id,
		OwnerID:     ownerID,
		Title:       title,
		PriceCents:  priceCents,
		Duration:    duration,
		ReleaseDate: now,
		IsPublic:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// OwnedBy reports whether the given principal owns the track.
func (t *Track) OwnedBy(principalID uuid.UUID) bool {
	return t.OwnerID == principalID
}
