package models

import (
	"time"

	"github.com/google/uuid"

	dErrors "soundvault/pkg/domain-errors"
)

// Role is the coarse authorization level of a principal.
//
// Usage: construct via ParseRole at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type Role string

const (
	RoleListener Role = "listener"
	RoleArtist   Role = "artist"
	RoleAdmin    Role = "admin"
)

// validRoles is the single source of truth for valid roles.
var validRoles = map[Role]bool{
	RoleListener: true,
	RoleArtist:   true,
	RoleAdmin:    true,
}

// ParseRole constructs a Role from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
// Admin is never accepted from external input; admin principals are created
// out of band.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !r.IsValid() || r == RoleAdmin {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid role")
	}
	return r, nil
}

// IsValid checks whether the role is one of the supported enum values.
func (r Role) IsValid() bool {
	return validRoles[r]
}

func (r Role) String() string {
	return string(r)
}

// Principal is the authenticated actor making requests.
//
// Invariants:
//   - Subject references exactly one identity-provider account and never changes
//   - Email is unique across principals
//   - Role is one of the supported enum values
//   - A principal is created only through explicit registration, never as a
//     side effect of credential resolution
type Principal struct {
	ID           uuid.UUID `json:"id"`
	Subject      string    `json:"-"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"display_name"`
	ProfileImage string    `json:"profile_image,omitempty"`
	Role         Role      `json:"role"`
	Verified     bool      `json:"verified"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewPrincipal constructs a Principal, enforcing invariants. Inputs are
// expected to have passed the validation guard already; this is the last
// line of defense, so violations are invariant errors, not validation ones.
func NewPrincipal(id uuid.UUID, subject, email, displayName string, role Role, now time.Time) (*Principal, error) {
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal subject cannot be empty")
	}
	if email == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal email cannot be empty")
	}
	if displayName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal display name cannot be empty")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "principal role is invalid")
	}
	return &Principal{
		ID:          id,
		Subject:     subject,
		Email:       email,
		DisplayName: displayName,
		Role:        role,
		Verified:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// IsActive reports whether the principal may act. Unverified principals
// authenticate but are denied authorization.
func (p *Principal) IsActive() bool {
	return p.Verified
}
