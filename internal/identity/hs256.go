package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "soundvault/pkg/domain-errors"
)

// HS256Verifier validates symmetric-key JWTs. It exists for local
// development and tests only; the constructor refuses to build one in a
// production environment so a misconfigured deployment cannot fall back to a
// shared secret.
type HS256Verifier struct {
	secret []byte
}

func NewHS256Verifier(environment string, secret []byte) (*HS256Verifier, error) {
	if environment == "production" {
		return nil, fmt.Errorf("hs256 verifier is not allowed in production")
	}
	if len(secret) == 0 {
		return nil, fmt.Errorf("hs256 verifier requires a secret")
	}
	return &HS256Verifier{secret: secret}, nil
}

type hs256Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

func (v *HS256Verifier) Verify(_ context.Context, rawToken string) (Credential, error) {
	var claims hs256Claims
	_, err := jwt.ParseWithClaims(rawToken, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return Credential{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid credential")
	}
	if claims.Subject == "" {
		return Credential{}, dErrors.New(dErrors.CodeUnauthorized, "invalid credential")
	}
	return Credential{
		Subject: claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
	}, nil
}

// SignHS256 mints a token the verifier accepts. Test and dev tooling only.
func SignHS256(secret []byte, subject, email, name string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, hs256Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(secret)
}
