// Package service implements principal registration and profile management.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"soundvault/internal/principal/models"
	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/platform/sentinel"
	"soundvault/pkg/requestcontext"
	"soundvault/pkg/validate"
)

// Store is the persistence surface the service needs.
type Store interface {
	Create(ctx context.Context, p *models.Principal) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
	Update(ctx context.Context, p *models.Principal) error
}

type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterInput carries the client-supplied registration fields. The subject
// comes from the verified credential in the context, never from the body.
type RegisterInput struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Register creates the principal for the verified credential in the context.
// Registration is explicit: resolving a credential never creates a principal
// as a side effect.
//
// Errors: CodeUnauthorized when no verified subject is present;
// CodeValidation/CodeInvalidInput on bad fields; CodeConflict when the
// subject or email is already registered.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*models.Principal, error) {
	subject := requestcontext.Subject(ctx)
	if subject == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	if _, err := validate.Subject(subject); err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}

	email, err := validate.Email(in.Email)
	if err != nil {
		return nil, err
	}
	displayName, err := validate.Text("display_name", in.DisplayName, validate.MaxTitleLength)
	if err != nil {
		return nil, err
	}
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, err
	}

	p, err := models.NewPrincipal(uuid.New(), subject, email, displayName, role, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "account already registered")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create principal")
	}

	s.logger.InfoContext(ctx, "principal registered", "principal_id", p.ID, "role", p.Role)
	return p, nil
}

// Me returns the authenticated principal's own record.
func (s *Service) Me(ctx context.Context) (*models.Principal, error) {
	id := requestcontext.PrincipalID(ctx)
	if id == (uuid.UUID{}) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	p, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "find principal")
	}
	return p, nil
}

// UpdateMeInput carries the mutable profile fields. Nil means "leave as is".
type UpdateMeInput struct {
	DisplayName  *string `json:"display_name"`
	ProfileImage *string `json:"profile_image"`
}

// UpdateMe applies profile changes to the authenticated principal. Identity
// fields (subject, email, role) are not updatable here.
func (s *Service) UpdateMe(ctx context.Context, in UpdateMeInput) (*models.Principal, error) {
	p, err := s.Me(ctx)
	if err != nil {
		return nil, err
	}

	if in.DisplayName != nil {
		name, err := validate.Text("display_name", *in.DisplayName, validate.MaxTitleLength)
		if err != nil {
			return nil, err
		}
		p.DisplayName = name
	}
	if in.ProfileImage != nil {
		img, err := validate.OptionalText("profile_image", *in.ProfileImage, validate.MaxFilenameLength)
		if err != nil {
			return nil, err
		}
		p.ProfileImage = img
	}
	p.UpdatedAt = requestcontext.Now(ctx)

	if err := s.store.Update(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "update principal")
	}
	return p, nil
}
