package identity

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"soundvault/internal/principal/models"
	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/platform/sentinel"
)

const defaultResolveTimeout = 5 * time.Second

// PrincipalStore is the slice of the principal store the resolver needs.
type PrincipalStore interface {
	FindBySubject(ctx context.Context, subject string) (*models.Principal, error)
}

// Resolver maps bearer tokens to principals. Every failure on the way —
// malformed token, expired signature, unknown subject, store outage — comes
// back as the same generic unauthorized error so callers cannot probe which
// stage rejected them. Only a resolved-but-deactivated principal is
// distinguished, as forbidden.
type Resolver struct {
	verifier   Verifier
	principals PrincipalStore
	timeout    time.Duration
	logger     *slog.Logger
}

type ResolverOption func(*Resolver)

func WithResolverLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

func WithResolveTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		r.timeout = d
	}
}

func NewResolver(verifier Verifier, principals PrincipalStore, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		verifier:   verifier,
		principals: principals,
		timeout:    defaultResolveTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context, rawToken string) (*models.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cred, err := r.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, unauthorized(err)
	}

	p, err := r.principals.FindBySubject(ctx, cred.Subject)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			// Store trouble during auth fails closed. Log the cause; the
			// caller still only sees the generic rejection.
			r.logger.ErrorContext(ctx, "principal lookup failed", "error", err)
		}
		return nil, unauthorized(err)
	}

	if !p.IsActive() {
		return nil, dErrors.New(dErrors.CodeForbidden, "account is deactivated")
	}
	return p, nil
}

// Credential verifies the token without requiring a stored principal. The
// registration flow uses it: the caller proves who they are before a
// principal row exists.
func (r *Resolver) Credential(ctx context.Context, rawToken string) (Credential, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cred, err := r.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Credential{}, unauthorized(err)
	}
	return cred, nil
}

func unauthorized(cause error) error {
	return dErrors.Wrap(cause, dErrors.CodeUnauthorized, "invalid credential")
}
