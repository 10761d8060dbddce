package objectstore

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"soundvault/pkg/requestcontext"
)

// Memory is an in-process object store for tests and local development. Its
// signed URLs carry a real HMAC and expiry so TTL behavior can be asserted
// without an S3 endpoint.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
	secret  []byte
}

func NewMemory() *Memory {
	secret := make([]byte, 32)
	_, _ = rand.Read(secret)
	return &Memory{
		objects: make(map[string][]byte),
		secret:  secret,
	}
}

func (m *Memory) Put(_ context.Context, key string, data []byte, _ string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	m.objects[key] = buf
	return nil
}

// Get exposes stored bytes for test assertions.
func (m *Memory) Get(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	return data, ok
}

// SignGet issues a fake capability URL stamped with an expiry and HMAC.
// Expiry is computed from the request-scoped clock so tests can pin time.
func (m *Memory) SignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	expires := requestcontext.Now(ctx).Add(ttl).Unix()
	sig := m.sign(key, expires)
	return fmt.Sprintf("memstore://local/%s?expires=%d&signature=%s",
		url.PathEscape(key), expires, sig), nil
}

// VerifyURL checks a Memory-issued URL at the given instant. Test helper for
// asserting that a grant is honored before expiry and rejected after.
func (m *Memory) VerifyURL(raw string, at time.Time) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse signed url: %w", err)
	}
	key, err := url.PathUnescape(u.Path[1:])
	if err != nil {
		return fmt.Errorf("unescape key: %w", err)
	}
	expires, err := strconv.ParseInt(u.Query().Get("expires"), 10, 64)
	if err != nil {
		return fmt.Errorf("parse expiry: %w", err)
	}
	if !hmac.Equal([]byte(m.sign(key, expires)), []byte(u.Query().Get("signature"))) {
		return fmt.Errorf("signature mismatch")
	}
	if at.Unix() > expires {
		return fmt.Errorf("grant expired")
	}
	return nil
}

func (m *Memory) sign(key string, expires int64) string {
	mac := hmac.New(sha256.New, m.secret)
	fmt.Fprintf(mac, "%s\n%d", key, expires)
	return hex.EncodeToString(mac.Sum(nil))
}
