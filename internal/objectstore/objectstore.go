// Package objectstore abstracts the binary content store. Audio and cover
// files live under opaque keys; entitled callers receive short-lived signed
// URLs instead of direct access. Issued URLs are capabilities: they cannot be
// revoked, so TTLs stay short and the URLs are never stored or logged.
package objectstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Default grant lifetimes. Streaming grants are short; download grants for a
// purchased track last a day.
const (
	StreamTTL   = time.Hour
	DownloadTTL = 24 * time.Hour
)

// ErrMalformedKey marks a stored object key that cannot be signed. Services
// surface it as an internal error since keys are never client-supplied.
var ErrMalformedKey = errors.New("malformed object key")

// Signer converts a granted entitlement into a time-limited capability URL.
type Signer interface {
	SignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Store is the full object-store surface: uploads plus signing.
type Store interface {
	Signer
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// validateKey rejects keys that are empty or escape the bucket namespace.
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrMalformedKey
	}
	if strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return ErrMalformedKey
	}
	return nil
}
