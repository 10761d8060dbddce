// Package service implements track catalog management: metadata CRUD, public
// listing, and media upload with content sniffing and per-day limits.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"soundvault/internal/entitlement"
	"soundvault/internal/features"
	"soundvault/internal/objectstore"
	"soundvault/internal/platform/metrics"
	principalmodels "soundvault/internal/principal/models"
	"soundvault/internal/track/models"
	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/platform/sentinel"
	"soundvault/pkg/requestcontext"
	"soundvault/pkg/validate"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, t *models.Track) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Track, error)
	Update(ctx context.Context, t *models.Track) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListPublic(ctx context.Context, skip, limit int) ([]*models.Track, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, skip, limit int) ([]*models.Track, error)
	CountByOwnerSince(ctx context.Context, ownerID uuid.UUID, since time.Time) (int, error)
}

// PrincipalStore resolves the caller for role and ownership decisions.
type PrincipalStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*principalmodels.Principal, error)
}

// PurchaseStore answers whether the ledger references a track. Deletion
// consults it: a track with purchase records cannot be removed.
type PurchaseStore interface {
	ExistsForTrack(ctx context.Context, trackID uuid.UUID) (bool, error)
}

type Service struct {
	store      Store
	principals PrincipalStore
	purchases  PurchaseStore
	objects    objectstore.Store
	validator  *entitlement.Validator
	flags      *features.Flags
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

func New(store Store, principals PrincipalStore, purchases PurchaseStore, objects objectstore.Store, validator *entitlement.Validator, flags *features.Flags, opts ...Option) *Service {
	s := &Service{
		store:      store,
		principals: principals,
		purchases:  purchases,
		objects:    objects,
		validator:  validator,
		flags:      flags,
		logger:     slog.Default(),
		metrics:    metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// caller loads the authenticated principal or rejects.
func (s *Service) caller(ctx context.Context) (*principalmodels.Principal, error) {
	id := requestcontext.PrincipalID(ctx)
	if id == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
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

// CreateInput carries the client-supplied track fields.
type CreateInput struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Genre       string `json:"genre"`
	PriceCents  int64  `json:"price_cents"`
	Duration    int    `json:"duration"`
	IsPublic    *bool  `json:"is_public"`
}

// Create registers a new track owned by the caller. Artist-only.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Track, error) {
	p, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := entitlement.RequireRole(p, principalmodels.RoleArtist); err != nil {
		return nil, err
	}

	title, err := validate.Text("title", in.Title, validate.MaxTitleLength)
	if err != nil {
		return nil, err
	}
	description, err := validate.OptionalText("description", in.Description, validate.MaxDescriptionLength)
	if err != nil {
		return nil, err
	}
	genre, err := validate.OptionalText("genre", in.Genre, validate.MaxTitleLength)
	if err != nil {
		return nil, err
	}
	price, err := validate.PriceCents("price_cents", in.PriceCents)
	if err != nil {
		return nil, err
	}
	duration, err := validate.DurationSeconds("duration", in.Duration)
	if err != nil {
		return nil, err
	}

	t, err := models.NewTrack(uuid.New(), p.ID, title, price, duration, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	t.Description = description
	t.Genre = genre
	if in.IsPublic != nil {
		t.IsPublic = *in.IsPublic
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create track")
	}

	s.logger.InfoContext(ctx, "track created", "track_id", t.ID, "owner_id", p.ID)
	return t, nil
}

// Get returns a track by ID. Non-public tracks are visible only to their
// owner and admins; everyone else sees not-found rather than forbidden so
// hidden tracks do not leak their existence.
func (s *Service) Get(ctx context.Context, trackID uuid.UUID) (*models.Track, error) {
	t, err := s.store.FindByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "track not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find track")
	}
	if t.IsPublic {
		return t, nil
	}

	p, err := s.caller(ctx)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "track not found")
	}
	if err := s.validator.CanModify(p, t); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "track not found")
	}
	return t, nil
}

// ListPublic returns public tracks newest-first.
func (s *Service) ListPublic(ctx context.Context, skip, limit int) ([]*models.Track, error) {
	skip, limit, err := validate.Pagination(skip, limit)
	if err != nil {
		return nil, err
	}
	tracks, err := s.store.ListPublic(ctx, skip, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tracks")
	}
	return tracks, nil
}

// ListMine returns the caller's own tracks newest-first, hidden included.
func (s *Service) ListMine(ctx context.Context, skip, limit int) ([]*models.Track, error) {
	p, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	skip, limit, err = validate.Pagination(skip, limit)
	if err != nil {
		return nil, err
	}
	tracks, err := s.store.ListByOwner(ctx, p.ID, skip, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list tracks")
	}
	return tracks, nil
}

// UpdateInput carries the mutable track fields. Nil means "leave as is".
type UpdateInput struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Genre       *string `json:"genre"`
	PriceCents  *int64  `json:"price_cents"`
	IsPublic    *bool   `json:"is_public"`
}

// Update applies metadata changes. Owner or admin only.
func (s *Service) Update(ctx context.Context, trackID uuid.UUID, in UpdateInput) (*models.Track, error) {
	p, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	t, err := s.findForModify(ctx, p, trackID)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		title, err := validate.Text("title", *in.Title, validate.MaxTitleLength)
		if err != nil {
			return nil, err
		}
		t.Title = title
	}
	if in.Description != nil {
		description, err := validate.OptionalText("description", *in.Description, validate.MaxDescriptionLength)
		if err != nil {
			return nil, err
		}
		t.Description = description
	}
	if in.Genre != nil {
		genre, err := validate.OptionalText("genre", *in.Genre, validate.MaxTitleLength)
		if err != nil {
			return nil, err
		}
		t.Genre = genre
	}
	if in.PriceCents != nil {
		price, err := validate.PriceCents("price_cents", *in.PriceCents)
		if err != nil {
			return nil, err
		}
		t.PriceCents = price
	}
	if in.IsPublic != nil {
		t.IsPublic = *in.IsPublic
	}
	t.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "track not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update track")
	}
	return t, nil
}

// Delete removes a track. Owner or admin only. A track the ledger references
// is never deleted: purchase records are append-only, so the sale history
// keeps the track row alive.
func (s *Service) Delete(ctx context.Context, trackID uuid.UUID) error {
	p, err := s.caller(ctx)
	if err != nil {
		return err
	}
	t, err := s.findForModify(ctx, p, trackID)
	if err != nil {
		return err
	}

	sold, err := s.purchases.ExistsForTrack(ctx, t.ID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check purchases")
	}
	if sold {
		return dErrors.New(dErrors.CodeConflict, "track has purchase records")
	}

	if err := s.store.Delete(ctx, t.ID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "track not found")
		}
		// A purchase that landed between the check and the delete trips the
		// foreign key instead.
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "track has purchase records")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete track")
	}
	s.logger.InfoContext(ctx, "track deleted", "track_id", t.ID, "principal_id", p.ID)
	return nil
}

func (s *Service) findForModify(ctx context.Context, p *principalmodels.Principal, trackID uuid.UUID) (*models.Track, error) {
	t, err := s.store.FindByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "track not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find track")
	}
	if err := s.validator.CanModify(p, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UploadAudio attaches an audio file to a track the caller owns. The content
// is sniffed against its claimed extension before it touches the object
// store, and uploads count against the per-day limit from the feature gate.
func (s *Service) UploadAudio(ctx context.Context, trackID uuid.UUID, filename string, data []byte) (*models.Track, error) {
	return s.upload(ctx, trackID, filename, data, validate.AudioExtensions, "audio")
}

// UploadCover attaches cover art to a track the caller owns.
func (s *Service) UploadCover(ctx context.Context, trackID uuid.UUID, filename string, data []byte) (*models.Track, error) {
	return s.upload(ctx, trackID, filename, data, validate.ImageExtensions, "cover")
}

func (s *Service) upload(ctx context.Context, trackID uuid.UUID, filename string, data []byte, allowed map[string]bool, kind string) (*models.Track, error) {
	p, err := s.caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := entitlement.RequireRole(p, principalmodels.RoleArtist); err != nil {
		return nil, err
	}
	t, err := s.findForModify(ctx, p, trackID)
	if err != nil {
		return nil, err
	}

	name, err := validate.Filename("filename", filename, allowed)
	if err != nil {
		return nil, err
	}
	maxBytes := int64(s.flags.Int(features.PathMaxFileSizeMB, 100)) << 20
	if err := validate.Content("file", name, data, maxBytes); err != nil {
		return nil, err
	}
	if err := s.checkUploadLimit(ctx, p.ID); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%s/%s", kind, t.ID, name)
	if err := s.objects.Put(ctx, key, data, contentTypeFor(name)); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store upload")
	}

	switch kind {
	case "audio":
		t.AudioKey = key
	case "cover":
		t.CoverKey = key
	}
	t.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, t); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update track")
	}

	s.metrics.UploadsTotal.WithLabelValues(kind).Inc()
	s.logger.InfoContext(ctx, "upload stored", "track_id", t.ID, "kind", kind, "bytes", len(data))
	return t, nil
}

// checkUploadLimit enforces the per-day upload cap from the feature gate.
// The day window is the 24 hours preceding the request.
func (s *Service) checkUploadLimit(ctx context.Context, ownerID uuid.UUID) error {
	limit := s.flags.Int(features.PathMaxUploadsPerDay, 10)
	if limit <= 0 {
		return nil
	}
	since := requestcontext.Now(ctx).Add(-24 * time.Hour)
	count, err := s.store.CountByOwnerSince(ctx, ownerID, since)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "count uploads")
	}
	if count >= limit {
		return dErrors.Newf(dErrors.CodeValidation, "upload limit of %d per day reached", limit)
	}
	return nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".flac":
		return "audio/flac"
	case ".ogg":
		return "audio/ogg"
	case ".m4a", ".aac":
		return "audio/aac"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
