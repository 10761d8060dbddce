package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"soundvault/internal/entitlement"
	"soundvault/internal/features"
	"soundvault/internal/objectstore"
	principalmodels "soundvault/internal/principal/models"
	principalstore "soundvault/internal/principal/store"
	purchasemodels "soundvault/internal/purchase/models"
	purchasestore "soundvault/internal/purchase/store"
	"soundvault/internal/stream/store"
	trackmodels "soundvault/internal/track/models"
	trackstore "soundvault/internal/track/store"
	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/requestcontext"
)

type StreamServiceSuite struct {
	suite.Suite

	plays      *store.InMemory
	tracks     *trackstore.InMemory
	principals *principalstore.InMemory
	purchases  *purchasestore.InMemory
	objects    *objectstore.Memory

	artist   *principalmodels.Principal
	listener *principalmodels.Principal
	public   *trackmodels.Track
	hidden   *trackmodels.Track
	now      time.Time
}

func TestStreamServiceSuite(t *testing.T) {
	suite.Run(t, new(StreamServiceSuite))
}

func (s *StreamServiceSuite) SetupTest() {
	s.plays = store.NewInMemory()
	s.tracks = trackstore.NewInMemory()
	s.principals = principalstore.NewInMemory()
	s.purchases = purchasestore.NewInMemory()
	s.objects = objectstore.NewMemory()
	s.now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	var err error
	s.artist, err = principalmodels.NewPrincipal(uuid.New(), "sub-artist-01", "ava@example.com", "Ava", principalmodels.RoleArtist, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.principals.Create(context.Background(), s.artist))

	s.listener, err = principalmodels.NewPrincipal(uuid.New(), "sub-listen-01", "leo@example.com", "Leo", principalmodels.RoleListener, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.principals.Create(context.Background(), s.listener))

	s.public = s.addTrack("Open Air", true)
	s.hidden = s.addTrack("Vault Session", false)
}

func (s *StreamServiceSuite) addTrack(title string, public bool) *trackmodels.Track {
	t, err := trackmodels.NewTrack(uuid.New(), s.artist.ID, title, 300, 200, s.now)
	s.Require().NoError(err)
	t.IsPublic = public
	t.AudioKey = "audio/" + t.ID.String() + "/master.mp3"
	s.Require().NoError(s.tracks.Create(context.Background(), t))
	return t
}

func (s *StreamServiceSuite) service(overlay map[string]any) *Service {
	flags := features.FromValues(overlay)
	validator := entitlement.NewValidator(flags, s.purchases)
	return New(s.plays, s.tracks, s.principals, validator, s.objects)
}

func (s *StreamServiceSuite) as(p *principalmodels.Principal) context.Context {
	ctx := context.Background()
	if p != nil {
		ctx = requestcontext.WithPrincipalID(ctx, p.ID)
	}
	return requestcontext.WithTime(ctx, s.now)
}

func (s *StreamServiceSuite) TestPublicTrackStreamsAnonymously() {
	svc := s.service(nil)

	url, err := svc.StreamURL(s.as(nil), s.public.ID)
	s.Require().NoError(err)

	// The grant is hour-long: valid just inside, expired just past.
	s.NoError(s.objects.VerifyURL(url, s.now.Add(time.Hour-time.Second)))
	s.Error(s.objects.VerifyURL(url, s.now.Add(time.Hour+time.Second)))
}

func (s *StreamServiceSuite) TestHiddenTrackRequiresEntitlement() {
	svc := s.service(nil)

	_, err := svc.StreamURL(s.as(nil), s.hidden.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, err = svc.StreamURL(s.as(s.listener), s.hidden.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	// Owner streams freely.
	_, err = svc.StreamURL(s.as(s.artist), s.hidden.ID)
	s.NoError(err)
}

func (s *StreamServiceSuite) TestPurchaseUnlocksHiddenTrack() {
	rec, err := purchasemodels.NewPurchase(uuid.New(), s.listener.ID, s.hidden.ID, 300, purchasemodels.MethodCreditCard, purchasemodels.StatusCompleted, "txn_ok", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.purchases.Create(context.Background(), rec))

	svc := s.service(nil)
	_, err = svc.StreamURL(s.as(s.listener), s.hidden.ID)
	s.NoError(err)
}

func (s *StreamServiceSuite) TestFreeModeUnlocksHiddenTrack() {
	svc := s.service(map[string]any{
		"payment": map[string]any{"enabled": false},
	})

	_, err := svc.StreamURL(s.as(s.listener), s.hidden.ID)
	s.NoError(err)
}

func (s *StreamServiceSuite) TestTrackWithoutAudio() {
	bare, err := trackmodels.NewTrack(uuid.New(), s.artist.ID, "Silence", 100, 60, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.tracks.Create(context.Background(), bare))

	svc := s.service(nil)
	_, err = svc.StreamURL(s.as(s.artist), bare.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *StreamServiceSuite) TestRecordPlay() {
	svc := s.service(nil)

	s.Require().NoError(svc.RecordPlay(s.as(s.listener), s.public.ID, 42))
	s.Require().NoError(svc.RecordPlay(s.as(nil), s.public.ID, 0))

	n, err := s.plays.CountByTrack(context.Background(), s.public.ID)
	s.Require().NoError(err)
	s.Equal(2, n)

	t, err := s.tracks.FindByID(context.Background(), s.public.ID)
	s.Require().NoError(err)
	s.Equal(int64(2), t.PlayCount)

	n, err = s.plays.CountByPrincipalSince(context.Background(), s.listener.ID, s.now.Add(-time.Minute))
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *StreamServiceSuite) TestRecordPlayValidatesDuration() {
	svc := s.service(nil)

	err := svc.RecordPlay(s.as(s.listener), s.public.ID, -5)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))

	err = svc.RecordPlay(s.as(s.listener), uuid.New(), 10)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
