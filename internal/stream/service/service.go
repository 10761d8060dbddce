// Package service implements playback: short-lived stream grants and play
// accounting.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"soundvault/internal/entitlement"
	"soundvault/internal/objectstore"
	"soundvault/internal/platform/metrics"
	principalmodels "soundvault/internal/principal/models"
	"soundvault/internal/stream/models"
	trackmodels "soundvault/internal/track/models"
	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/platform/sentinel"
	"soundvault/pkg/requestcontext"
	"soundvault/pkg/validate"
)

// PlayStore is the play-history persistence surface.
type PlayStore interface {
	Append(ctx context.Context, p *models.Play) error
}

// TrackStore resolves tracks and keeps the denormalized play counter.
type TrackStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*trackmodels.Track, error)
	IncrementPlayCount(ctx context.Context, id uuid.UUID) error
}

// PrincipalStore resolves the caller for entitlement decisions.
type PrincipalStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*principalmodels.Principal, error)
}

type Service struct {
	plays      PlayStore
	tracks     TrackStore
	principals PrincipalStore
	validator  *entitlement.Validator
	signer     objectstore.Signer
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(plays PlayStore, tracks TrackStore, principals PrincipalStore, validator *entitlement.Validator, signer objectstore.Signer, opts ...Option) *Service {
	s := &Service{
		plays:      plays,
		tracks:     tracks,
		principals: principals,
		validator:  validator,
		signer:     signer,
		logger:     slog.Default(),
		metrics:    metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) findTrack(ctx context.Context, trackID uuid.UUID) (*trackmodels.Track, error) {
	t, err := s.tracks.FindByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "track not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find track")
	}
	return t, nil
}

// caller resolves the authenticated principal, or nil for anonymous requests.
func (s *Service) caller(ctx context.Context) (*principalmodels.Principal, error) {
	id := requestcontext.PrincipalID(ctx)
	if id == (uuid.UUID{}) {
		return nil, nil
	}
	p, err := s.principals.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find principal")
	}
	return p, nil
}

// StreamURL issues an hour-long signed URL for playback. Anonymous callers
// may stream public tracks; everything else goes through the entitlement
// predicate. The URL is returned to the caller and deliberately not logged.
func (s *Service) StreamURL(ctx context.Context, trackID uuid.UUID) (string, error) {
	t, err := s.findTrack(ctx, trackID)
	if err != nil {
		return "", err
	}
	if t.AudioKey == "" {
		return "", dErrors.New(dErrors.CodeNotFound, "track has no audio")
	}

	p, err := s.caller(ctx)
	if err != nil {
		return "", err
	}
	if p == nil {
		if !t.IsPublic {
			return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
		}
	} else if err := s.validator.CanStream(ctx, p, t); err != nil {
		return "", err
	}

	url, err := s.signer.SignGet(ctx, t.AudioKey, objectstore.StreamTTL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign stream url")
	}
	s.metrics.GrantsIssued.WithLabelValues("stream").Inc()
	s.logger.InfoContext(ctx, "stream grant issued", "track_id", t.ID)
	return url, nil
}

// RecordPlay appends a play-history row and bumps the track's play counter.
// Duration is client-reported and validated; the counter bump is best effort
// once the history row is in.
func (s *Service) RecordPlay(ctx context.Context, trackID uuid.UUID, durationSeconds int) error {
	t, err := s.findTrack(ctx, trackID)
	if err != nil {
		return err
	}
	if durationSeconds != 0 {
		if _, err := validate.DurationSeconds("duration", durationSeconds); err != nil {
			return err
		}
	}

	play, err := models.NewPlay(uuid.New(), t.ID, requestcontext.PrincipalID(ctx), durationSeconds, requestcontext.Now(ctx))
	if err != nil {
		return err
	}
	if err := s.plays.Append(ctx, play); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record play")
	}
	if err := s.tracks.IncrementPlayCount(ctx, t.ID); err != nil {
		s.logger.WarnContext(ctx, "play counter not bumped", "track_id", t.ID, "error", err)
	}

	s.metrics.PlaysRecorded.Inc()
	return nil
}
