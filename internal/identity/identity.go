// Package identity turns bearer tokens into principals. Token verification
// is pluggable (OIDC in production, HS256 locally); resolution binds a
// verified subject to a stored principal.
package identity

import "context"

// Credential is a verified external identity. Subject is the stable
// identifier issued by the identity provider; email and name are whatever
// claims the provider supplied and may be empty.
type Credential struct {
	Subject string
	Email   string
	Name    string
}

// Verifier checks a raw bearer token and extracts the credential it carries.
type Verifier interface {
	Verify(ctx context.Context, rawToken string) (Credential, error)
}
