package identity

import (
	"context"
	"fmt"

	dErrors "soundvault/pkg/domain-errors"
)

// StaticVerifier maps fixed tokens to credentials. It backs smoke tests and
// scripted local setups where even minting JWTs is more machinery than
// needed. Like the HS256 verifier it refuses to exist in production.
type StaticVerifier struct {
	byToken map[string]Credential
}

func NewStaticVerifier(environment string, byToken map[string]Credential) (*StaticVerifier, error) {
	if environment == "production" {
		return nil, fmt.Errorf("static verifier is not allowed in production")
	}
	creds := make(map[string]Credential, len(byToken))
	for token, cred := range byToken {
		if token == "" || cred.Subject == "" {
			return nil, fmt.Errorf("static verifier entries need a token and a subject")
		}
		creds[token] = cred
	}
	return &StaticVerifier{byToken: creds}, nil
}

func (v *StaticVerifier) Verify(_ context.Context, rawToken string) (Credential, error) {
	cred, ok := v.byToken[rawToken]
	if !ok {
		return Credential{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	return cred, nil
}
