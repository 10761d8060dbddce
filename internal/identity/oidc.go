package identity

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"

	dErrors "soundvault/pkg/domain-errors"
)

// OIDCVerifier validates ID tokens against an OIDC provider discovered from
// its issuer URL. Signing keys are fetched from the provider's JWKS endpoint
// and cached by the underlying library.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier performs discovery against the issuer. It is called once at
// startup; a provider that cannot be reached fails the boot rather than
// deferring the error to the first request.
func NewOIDCVerifier(ctx context.Context, issuer, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "oidc discovery failed")
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (Credential, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid credential")
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid credential")
	}
	if idToken.Subject == "" {
		return Credential{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	return Credential{
		Subject: idToken.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}
