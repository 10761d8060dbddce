package entitlement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"soundvault/internal/features"
	"soundvault/internal/principal/models"
	purchasemodels "soundvault/internal/purchase/models"
	purchasestore "soundvault/internal/purchase/store"
	trackmodels "soundvault/internal/track/models"
	dErrors "soundvault/pkg/domain-errors"
)

func TestRequireRole(t *testing.T) {
	principal := func(role models.Role) *models.Principal {
		return &models.Principal{ID: uuid.New(), Role: role}
	}

	cases := []struct {
		name     string
		p        *models.Principal
		required []models.Role
		allowed  bool
	}{
		{"artist can do artist work", principal(models.RoleArtist), []models.Role{models.RoleArtist}, true},
		{"artist outranks listener", principal(models.RoleArtist), []models.Role{models.RoleListener}, true},
		{"listener cannot do artist work", principal(models.RoleListener), []models.Role{models.RoleArtist}, false},
		{"admin satisfies everything", principal(models.RoleAdmin), []models.Role{models.RoleArtist}, true},
		{"unknown role fails closed", principal(models.Role("superuser")), []models.Role{models.RoleListener}, false},
		{"empty role fails closed", principal(models.Role("")), []models.Role{models.RoleListener}, false},
		{"nil principal fails closed", nil, []models.Role{models.RoleListener}, false},
		{"empty requirement fails closed", principal(models.RoleAdmin), nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := RequireRole(tc.p, tc.required...)
			if tc.allowed && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allowed {
				if err == nil {
					t.Fatal("expected deny")
				}
				if !dErrors.HasCode(err, dErrors.CodeForbidden) {
					t.Fatalf("expected forbidden, got %v", err)
				}
			}
		})
	}
}

type ValidatorSuite struct {
	suite.Suite

	purchases *purchasestore.InMemory

	owner    *models.Principal
	buyer    *models.Principal
	stranger *models.Principal
	admin    *models.Principal

	public *trackmodels.Track
	hidden *trackmodels.Track
}

func TestValidatorSuite(t *testing.T) {
	suite.Run(t, new(ValidatorSuite))
}

func (s *ValidatorSuite) SetupTest() {
	s.purchases = purchasestore.NewInMemory()
	now := time.Now().UTC()

	s.owner = &models.Principal{ID: uuid.New(), Role: models.RoleArtist, Verified: true}
	s.buyer = &models.Principal{ID: uuid.New(), Role: models.RoleListener, Verified: true}
	s.stranger = &models.Principal{ID: uuid.New(), Role: models.RoleListener, Verified: true}
	s.admin = &models.Principal{ID: uuid.New(), Role: models.RoleAdmin, Verified: true}

	public, err := trackmodels.NewTrack(uuid.New(), s.owner.ID, "Open Air", 300, 180, now)
	s.Require().NoError(err)
	s.public = public

	hidden, err := trackmodels.NewTrack(uuid.New(), s.owner.ID, "Vault Session", 500, 240, now)
	s.Require().NoError(err)
	hidden.IsPublic = false
	s.hidden = hidden

	rec, err := purchasemodels.NewPurchase(uuid.New(), s.buyer.ID, hidden.ID, 500, purchasemodels.MethodCreditCard, purchasemodels.StatusCompleted, "txn_test", now)
	s.Require().NoError(err)
	s.Require().NoError(s.purchases.Create(context.Background(), rec))
}

func (s *ValidatorSuite) validator(overlay map[string]any) *Validator {
	return NewValidator(features.FromValues(overlay), s.purchases)
}

func (s *ValidatorSuite) TestCanModify() {
	v := s.validator(nil)
	s.NoError(v.CanModify(s.owner, s.hidden))
	s.NoError(v.CanModify(s.admin, s.hidden))

	err := v.CanModify(s.buyer, s.hidden)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

// TestCanStream walks the full predicate: public OR owner OR payments off OR
// completed purchase.
func (s *ValidatorSuite) TestCanStream() {
	ctx := context.Background()

	paid := s.validator(map[string]any{"payment": map[string]any{"enabled": true}})
	free := s.validator(map[string]any{"payment": map[string]any{"enabled": false}})

	cases := []struct {
		name    string
		v       *Validator
		p       *models.Principal
		t       *trackmodels.Track
		allowed bool
	}{
		{"public track streams for anyone", paid, s.stranger, s.public, true},
		{"owner streams own hidden track", paid, s.owner, s.hidden, true},
		{"buyer streams purchased hidden track", paid, s.buyer, s.hidden, true},
		{"stranger denied hidden track", paid, s.stranger, s.hidden, false},
		{"free mode opens hidden track", free, s.stranger, s.hidden, true},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := tc.v.CanStream(ctx, tc.p, tc.t)
			if tc.allowed {
				s.NoError(err)
			} else {
				s.Require().Error(err)
				s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
			}
		})
	}
}

func (s *ValidatorSuite) TestCanDownload() {
	ctx := context.Background()

	paid := s.validator(map[string]any{"payment": map[string]any{"downloads_enabled": true}})
	free := s.validator(map[string]any{"payment": map[string]any{"downloads_enabled": false}})

	s.NoError(paid.CanDownload(ctx, s.buyer, s.hidden))

	err := paid.CanDownload(ctx, s.stranger, s.hidden)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	// Free mode grants the download entitlement universally, purchase or not.
	s.NoError(free.CanDownload(ctx, s.stranger, s.hidden))

	// The payment kill-switch alone opens downloads too, even with
	// downloads_enabled still at its default.
	paymentsOff := s.validator(map[string]any{"payment": map[string]any{"enabled": false}})
	s.NoError(paymentsOff.CanDownload(ctx, s.stranger, s.hidden))

	// Ownership alone does not grant a download in paid mode.
	err = paid.CanDownload(ctx, s.owner, s.hidden)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
