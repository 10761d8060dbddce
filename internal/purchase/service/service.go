// Package service implements the purchase ledger: the guarded path from a
// purchase request through payment capture to a durable record, plus the
// read side and the purchased-download grant.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"soundvault/internal/entitlement"
	"soundvault/internal/features"
	"soundvault/internal/objectstore"
	"soundvault/internal/payment"
	"soundvault/internal/platform/metrics"
	principalmodels "soundvault/internal/principal/models"
	"soundvault/internal/purchase/models"
	trackmodels "soundvault/internal/track/models"
	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/platform/sentinel"
	"soundvault/pkg/requestcontext"
	"soundvault/pkg/validate"
)

// Store is the ledger persistence surface.
type Store interface {
	Create(ctx context.Context, p *models.Purchase) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Purchase, error)
	HasCompleted(ctx context.Context, payerID, trackID uuid.UUID) (bool, error)
	ListCompletedByPayer(ctx context.Context, payerID uuid.UUID, skip, limit int) ([]*models.Purchase, error)
}

// TrackStore resolves the item being purchased.
type TrackStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*trackmodels.Track, error)
}

type Service struct {
	store     Store
	tracks    TrackStore
	processor payment.Processor
	validator *entitlement.Validator
	flags     *features.Flags
	signer    objectstore.Signer
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

func New(store Store, tracks TrackStore, processor payment.Processor, validator *entitlement.Validator, flags *features.Flags, signer objectstore.Signer, opts ...Option) *Service {
	s := &Service{
		store:     store,
		tracks:    tracks,
		processor: processor,
		validator: validator,
		flags:     flags,
		signer:    signer,
		logger:    slog.Default(),
		metrics:   metrics.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries the client-supplied purchase fields. PaymentToken is
// the opaque instrument token from the payment widget; it is forwarded to
// the processor and never persisted or logged.
type CreateInput struct {
	TrackID       uuid.UUID `json:"track_id"`
	AmountCents   int64     `json:"amount_cents"`
	PaymentMethod string    `json:"payment_method"`
	PaymentToken  string    `json:"payment_token"`
}

// Create runs a purchase attempt end to end. Preconditions are checked in a
// fixed order so a given bad request always fails the same way:
// payment gate, track exists, no self-purchase, exact amount, payment method,
// no duplicate completed purchase. Only then is the processor called. A
// successful capture persists exactly one completed record; the persist step
// races against concurrent attempts and loses cleanly with a conflict. A
// failed capture is recorded as a failed row for audit and surfaces a
// gateway error.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Purchase, error) {
	payerID := requestcontext.PrincipalID(ctx)
	if payerID == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}

	if !s.flags.Enabled(features.PathPaymentEnabled) {
		return nil, dErrors.New(dErrors.CodePaymentDisabled, s.flags.PaymentDisabledMessage())
	}

	track, err := s.tracks.FindByID(ctx, in.TrackID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "track not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find track")
	}

	if track.OwnedBy(payerID) {
		return nil, dErrors.New(dErrors.CodeValidation, "cannot purchase your own track")
	}

	if in.AmountCents != track.PriceCents {
		return nil, dErrors.Newf(dErrors.CodeValidation, "amount_cents: must equal the track price of %d", track.PriceCents)
	}

	method, err := s.parseMethod(in.PaymentMethod)
	if err != nil {
		return nil, err
	}
	if in.PaymentToken == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "payment_token: must not be empty")
	}

	purchased, err := s.store.HasCompleted(ctx, payerID, track.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check existing purchase")
	}
	if purchased {
		return nil, dErrors.New(dErrors.CodeConflict, "track already purchased")
	}

	ref, captureErr := s.processor.Capture(ctx, payment.CaptureRequest{
		AmountCents: track.PriceCents,
		Token:       in.PaymentToken,
		Description: fmt.Sprintf("Purchase of %q", track.Title),
	})
	if captureErr != nil {
		s.recordFailure(ctx, payerID, track, method)
		if errors.Is(captureErr, payment.ErrDeclined) {
			return nil, dErrors.Wrap(captureErr, dErrors.CodePaymentGateway, "payment was declined")
		}
		return nil, dErrors.Wrap(captureErr, dErrors.CodePaymentGateway, "payment processing failed")
	}

	rec, err := models.NewPurchase(uuid.New(), payerID, track.ID, track.PriceCents, method, models.StatusCompleted, ref, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, rec); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent attempt completed first. The capture for this
			// attempt already settled; surface the duplicate, the gateway
			// side reconciles via the idempotency key.
			return nil, dErrors.New(dErrors.CodeConflict, "track already purchased")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist purchase")
	}

	s.metrics.PurchasesTotal.WithLabelValues(string(models.StatusCompleted)).Inc()
	s.logger.InfoContext(ctx, "purchase completed",
		"purchase_id", rec.ID, "track_id", track.ID, "payer_id", payerID, "amount_cents", rec.AmountCents)
	return rec, nil
}

// recordFailure appends a failed row for audit. Best effort: a failed attempt
// that cannot be recorded still surfaces the gateway error.
func (s *Service) recordFailure(ctx context.Context, payerID uuid.UUID, track *trackmodels.Track, method models.PaymentMethod) {
	rec, err := models.NewPurchase(uuid.New(), payerID, track.ID, track.PriceCents, method, models.StatusFailed, "", requestcontext.Now(ctx))
	if err == nil {
		err = s.store.Create(ctx, rec)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed purchase not recorded", "track_id", track.ID, "error", err)
		return
	}
	s.metrics.PurchasesTotal.WithLabelValues(string(models.StatusFailed)).Inc()
}

// parseMethod validates the payment method against the enum and the feature
// gate. With payment methods gated off only the default card flow is open.
func (s *Service) parseMethod(raw string) (models.PaymentMethod, error) {
	method, err := models.ParsePaymentMethod(raw)
	if err != nil {
		return "", err
	}
	if method != models.MethodCreditCard && !s.flags.Enabled(features.PathPaymentMethodsEnabled) {
		return "", dErrors.Newf(dErrors.CodeValidation, "payment_method: %s is not currently available", method)
	}
	return method, nil
}

// List returns the caller's completed purchases newest-first.
func (s *Service) List(ctx context.Context, skip, limit int) ([]*models.Purchase, error) {
	payerID := requestcontext.PrincipalID(ctx)
	if payerID == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	skip, limit, err := validate.Pagination(skip, limit)
	if err != nil {
		return nil, err
	}
	records, err := s.store.ListCompletedByPayer(ctx, payerID, skip, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list purchases")
	}
	return records, nil
}

// Get returns one purchase record. Only the payer may read it.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Purchase, error) {
	payerID := requestcontext.PrincipalID(ctx)
	if payerID == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	rec, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "purchase not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find purchase")
	}
	if rec.PayerID != payerID {
		return nil, dErrors.New(dErrors.CodeForbidden, "not entitled")
	}
	return rec, nil
}

// DownloadURL issues a day-long signed URL for a track the caller is entitled
// to download: a completed purchase, or free mode. The URL is returned to the
// caller and deliberately not logged.
func (s *Service) DownloadURL(ctx context.Context, trackID uuid.UUID) (string, error) {
	payerID := requestcontext.PrincipalID(ctx)
	if payerID == (uuid.UUID{}) {
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}

	track, err := s.tracks.FindByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", dErrors.New(dErrors.CodeNotFound, "track not found")
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "find track")
	}
	if track.AudioKey == "" {
		return "", dErrors.New(dErrors.CodeNotFound, "track has no audio")
	}

	caller := &principalmodels.Principal{ID: payerID}
	if err := s.validator.CanDownload(ctx, caller, track); err != nil {
		return "", err
	}

	url, err := s.signer.SignGet(ctx, track.AudioKey, objectstore.DownloadTTL)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "sign download url")
	}
	s.metrics.GrantsIssued.WithLabelValues("download").Inc()
	s.logger.InfoContext(ctx, "download grant issued", "track_id", track.ID, "payer_id", payerID)
	return url, nil
}
