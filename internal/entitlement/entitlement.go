// Package entitlement owns the authorization predicates: role checks and the
// canonical per-track entitlement rules. Handlers and services call in here
// instead of re-implementing ownership or purchase checks inline, so policy
// changes happen in one place.
package entitlement

import (
	"context"

	"github.com/google/uuid"

	"soundvault/internal/features"
	"soundvault/internal/principal/models"
	track "soundvault/internal/track/models"
	dErrors "soundvault/pkg/domain-errors"
)

// roleRank orders roles by privilege. A principal satisfies a requirement for
// any role of equal or lower rank; unknown roles rank zero and satisfy
// nothing.
var roleRank = map[models.Role]int{
	models.RoleListener: 1,
	models.RoleArtist:   2,
	models.RoleAdmin:    3,
}

// RequireRole checks that the principal holds at least one of the required
// roles (or outranks it). Admin satisfies every requirement. An empty
// requirement set, an absent principal, or an unknown role all fail closed.
func RequireRole(p *models.Principal, required ...models.Role) error {
	if p == nil {
		return dErrors.New(dErrors.CodeForbidden, "role insufficient")
	}
	have := roleRank[p.Role]
	if have == 0 {
		return dErrors.New(dErrors.CodeForbidden, "role insufficient")
	}
	for _, r := range required {
		want := roleRank[r]
		if want != 0 && have >= want {
			return nil
		}
	}
	return dErrors.New(dErrors.CodeForbidden, "role insufficient")
}

// PurchaseStore is the slice of the purchase ledger the validator consults.
type PurchaseStore interface {
	HasCompleted(ctx context.Context, payerID, trackID uuid.UUID) (bool, error)
}

// Validator decides what a principal may do with a track.
type Validator struct {
	flags     *features.Flags
	purchases PurchaseStore
}

func NewValidator(flags *features.Flags, purchases PurchaseStore) *Validator {
	return &Validator{flags: flags, purchases: purchases}
}

var errNotEntitled = dErrors.New(dErrors.CodeForbidden, "not entitled")

// CanModify permits metadata changes and deletion: owner or admin only.
func (v *Validator) CanModify(p *models.Principal, t *track.Track) error {
	if p.Role == models.RoleAdmin || t.OwnedBy(p.ID) {
		return nil
	}
	return errNotEntitled
}

// CanStream permits playback. Public tracks and owned tracks stream freely;
// otherwise the track streams when payment enforcement is off or the
// principal holds a completed purchase.
func (v *Validator) CanStream(ctx context.Context, p *models.Principal, t *track.Track) error {
	if t.IsPublic || t.OwnedBy(p.ID) {
		return nil
	}
	if !v.flags.Enabled(features.PathPaymentEnabled) {
		return nil
	}
	purchased, err := v.purchases.HasCompleted(ctx, p.ID, t.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "entitlement lookup failed")
	}
	if purchased {
		return nil
	}
	return errNotEntitled
}

// CanDownload permits full-file retrieval. With the payment subsystem off
// entirely, or paid downloads gated off, the entitlement is universal;
// otherwise only a completed purchase grants it.
func (v *Validator) CanDownload(ctx context.Context, p *models.Principal, t *track.Track) error {
	if !v.flags.Enabled(features.PathPaymentEnabled) || !v.flags.Enabled(features.PathPaymentDownloadsEnabled) {
		return nil
	}
	purchased, err := v.purchases.HasCompleted(ctx, p.ID, t.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "entitlement lookup failed")
	}
	if purchased {
		return nil
	}
	return errNotEntitled
}
