package service

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"soundvault/internal/entitlement"
	"soundvault/internal/features"
	"soundvault/internal/objectstore"
	"soundvault/internal/platform/metrics"
	principalmodels "soundvault/internal/principal/models"
	principalstore "soundvault/internal/principal/store"
	purchasemodels "soundvault/internal/purchase/models"
	purchasestore "soundvault/internal/purchase/store"
	"soundvault/internal/track/models"
	"soundvault/internal/track/store"
	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/requestcontext"
)

// mp3Frame is a minimal payload carrying the MP3 frame-sync signature.
var mp3Frame = append([]byte{0xFF, 0xFB, 0x90, 0x00}, bytes.Repeat([]byte{0x00}, 64)...)

// pngImage is a minimal payload carrying the PNG signature.
var pngImage = append([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, bytes.Repeat([]byte{0x00}, 16)...)

type TrackServiceSuite struct {
	suite.Suite

	tracks     *store.InMemory
	principals *principalstore.InMemory
	purchases  *purchasestore.InMemory
	objects    *objectstore.Memory
	flags      *features.Flags
	svc        *Service

	artist   *principalmodels.Principal
	listener *principalmodels.Principal
	admin    *principalmodels.Principal
	now      time.Time
}

func TestTrackServiceSuite(t *testing.T) {
	suite.Run(t, new(TrackServiceSuite))
}

func (s *TrackServiceSuite) SetupTest() {
	s.tracks = store.NewInMemory()
	s.principals = principalstore.NewInMemory()
	s.objects = objectstore.NewMemory()
	s.purchases = purchasestore.NewInMemory()
	s.flags = features.FromValues(nil)
	validator := entitlement.NewValidator(s.flags, s.purchases)
	s.svc = New(s.tracks, s.principals, s.purchases, s.objects, validator, s.flags)
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	s.artist = s.addPrincipal("sub-artist-01", "ava@example.com", principalmodels.RoleArtist)
	s.listener = s.addPrincipal("sub-listen-01", "leo@example.com", principalmodels.RoleListener)
	s.admin = s.addPrincipal("sub-admin-001", "ops@example.com", principalmodels.RoleAdmin)
}

func (s *TrackServiceSuite) addPrincipal(subject, email string, role principalmodels.Role) *principalmodels.Principal {
	p, err := principalmodels.NewPrincipal(uuid.New(), subject, email, "Test User", role, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.principals.Create(context.Background(), p))
	return p
}

func (s *TrackServiceSuite) as(p *principalmodels.Principal) context.Context {
	ctx := requestcontext.WithPrincipalID(context.Background(), p.ID)
	return requestcontext.WithTime(ctx, s.now)
}

func (s *TrackServiceSuite) createTrack(title string) *models.Track {
	t, err := s.svc.Create(s.as(s.artist), CreateInput{
		Title:      title,
		PriceCents: 300,
		Duration:   180,
	})
	s.Require().NoError(err)
	return t
}

func (s *TrackServiceSuite) TestCreateArtistOnly() {
	t := s.createTrack("First Light")
	s.Equal(s.artist.ID, t.OwnerID)
	s.True(t.IsPublic)

	_, err := s.svc.Create(s.as(s.listener), CreateInput{Title: "Nope", PriceCents: 100, Duration: 60})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *TrackServiceSuite) TestCreateValidatesInput() {
	_, err := s.svc.Create(s.as(s.artist), CreateInput{
		Title:      "'; DROP TABLE tracks; --",
		PriceCents: 300,
		Duration:   180,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.Create(s.as(s.artist), CreateInput{Title: "Fine", PriceCents: -1, Duration: 180})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *TrackServiceSuite) TestGetHidesPrivateTracks() {
	hiddenFlag := false
	t, err := s.svc.Create(s.as(s.artist), CreateInput{
		Title:      "Vault Session",
		PriceCents: 500,
		Duration:   240,
		IsPublic:   &hiddenFlag,
	})
	s.Require().NoError(err)

	// Owner and admin see it; a stranger gets not-found, not forbidden.
	_, err = s.svc.Get(s.as(s.artist), t.ID)
	s.NoError(err)
	_, err = s.svc.Get(s.as(s.admin), t.ID)
	s.NoError(err)

	_, err = s.svc.Get(s.as(s.listener), t.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = s.svc.Get(context.Background(), t.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *TrackServiceSuite) TestUpdateOwnership() {
	t := s.createTrack("Mutable")

	title := "Renamed"
	got, err := s.svc.Update(s.as(s.artist), t.ID, UpdateInput{Title: &title})
	s.Require().NoError(err)
	s.Equal("Renamed", got.Title)

	_, err = s.svc.Update(s.as(s.listener), t.ID, UpdateInput{Title: &title})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	// Admin may modify any track.
	price := int64(999)
	got, err = s.svc.Update(s.as(s.admin), t.ID, UpdateInput{PriceCents: &price})
	s.Require().NoError(err)
	s.Equal(int64(999), got.PriceCents)
}

func (s *TrackServiceSuite) TestDelete() {
	t := s.createTrack("Ephemeral")

	err := s.svc.Delete(s.as(s.listener), t.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	s.Require().NoError(s.svc.Delete(s.as(s.artist), t.ID))

	_, err = s.svc.Get(s.as(s.artist), t.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

// TestDeleteBlockedByPurchases: a sold track stays; the ledger must keep
// pointing at a real row.
func (s *TrackServiceSuite) TestDeleteBlockedByPurchases() {
	t := s.createTrack("Sold Out")

	rec, err := purchasemodels.NewPurchase(uuid.New(), s.listener.ID, t.ID, 300,
		purchasemodels.MethodCreditCard, purchasemodels.StatusCompleted, "txn_keep", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.purchases.Create(context.Background(), rec))

	err = s.svc.Delete(s.as(s.artist), t.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	got, err := s.svc.Get(s.as(s.artist), t.ID)
	s.Require().NoError(err)
	s.Equal(t.ID, got.ID)
}

func (s *TrackServiceSuite) TestUploadAudio() {
	m := metrics.NewNop()
	validator := entitlement.NewValidator(s.flags, s.purchases)
	s.svc = New(s.tracks, s.principals, s.purchases, s.objects, validator, s.flags, WithMetrics(m))

	t := s.createTrack("With Audio")

	got, err := s.svc.UploadAudio(s.as(s.artist), t.ID, "session.mp3", mp3Frame)
	s.Require().NoError(err)
	s.NotEmpty(got.AudioKey)

	stored, ok := s.objects.Get(got.AudioKey)
	s.Require().True(ok)
	s.Equal(mp3Frame, stored)
	s.Equal(float64(1), testutil.ToFloat64(m.UploadsTotal.WithLabelValues("audio")))
}

func (s *TrackServiceSuite) TestUploadRejectsMismatchedContent() {
	t := s.createTrack("Spoofed")

	// PNG bytes behind an .mp3 name must not pass the sniffer.
	_, err := s.svc.UploadAudio(s.as(s.artist), t.ID, "fake.mp3", pngImage)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = s.svc.UploadAudio(s.as(s.artist), t.ID, "../../etc/passwd.mp3", mp3Frame)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *TrackServiceSuite) TestUploadCover() {
	t := s.createTrack("With Cover")

	got, err := s.svc.UploadCover(s.as(s.artist), t.ID, "cover.png", pngImage)
	s.Require().NoError(err)
	s.NotEmpty(got.CoverKey)
}

func (s *TrackServiceSuite) TestUploadOwnershipEnforced() {
	t := s.createTrack("Protected")

	other := s.addPrincipal("sub-artist-02", "rival@example.com", principalmodels.RoleArtist)
	_, err := s.svc.UploadAudio(s.as(other), t.ID, "take.mp3", mp3Frame)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *TrackServiceSuite) TestUploadDailyLimit() {
	s.flags = features.FromValues(map[string]any{
		"limits": map[string]any{"max_uploads_per_day": 2},
	})
	validator := entitlement.NewValidator(s.flags, s.purchases)
	s.svc = New(s.tracks, s.principals, s.purchases, s.objects, validator, s.flags)

	t1 := s.createTrack("One")
	s.createTrack("Two")

	// Two tracks created today exhaust the limit.
	_, err := s.svc.UploadAudio(s.as(s.artist), t1.ID, "one.mp3", mp3Frame)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *TrackServiceSuite) TestListPublicNewestFirst() {
	for i, title := range []string{"Oldest", "Middle", "Newest"} {
		s.now = s.now.Add(time.Duration(i) * time.Minute)
		s.createTrack(title)
	}

	tracks, err := s.svc.ListPublic(context.Background(), 0, 10)
	s.Require().NoError(err)
	s.Require().Len(tracks, 3)
	s.Equal("Newest", tracks[0].Title)
	s.Equal("Oldest", tracks[2].Title)
}

func (s *TrackServiceSuite) TestListMine() {
	s.createTrack("Mine")

	tracks, err := s.svc.ListMine(s.as(s.artist), 0, 10)
	s.Require().NoError(err)
	s.Len(tracks, 1)

	tracks, err = s.svc.ListMine(s.as(s.listener), 0, 10)
	s.Require().NoError(err)
	s.Empty(tracks)
}
