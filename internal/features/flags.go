// Package features holds the process-wide feature gate.
//
// Flags are assembled once at startup by layering defaults, an optional JSON
// file, and environment overrides (environment wins). The result is read-only;
// consumers receive the *Flags by reference at construction so each can be
// tested under a different configuration. There is no dynamic reload.
package features

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Flags exposes typed, dotted-path lookups over the layered configuration.
type Flags struct {
	values map[string]any
}

// Dotted paths consulted by entitlement and purchase decisions.
const (
	PathPaymentEnabled          = "payment.enabled"
	PathPaymentMethodsEnabled   = "payment.methods_enabled"
	PathPaymentDownloadsEnabled = "payment.downloads_enabled"
	PathPaymentComingSoon       = "payment.coming_soon_message"

	PathMaxUploadsPerDay = "limits.max_uploads_per_day"
	PathMaxFileSizeMB    = "limits.max_file_size_mb"
	PathFreeStreamLimit  = "limits.free_streaming_limit"
)

func defaults() map[string]any {
	return map[string]any{
		"payment": map[string]any{
			"enabled":             true,
			"methods_enabled":     true,
			"downloads_enabled":   true,
			"coming_soon_message": "Payments are coming soon. Everything is free for now.",
		},
		"features": map[string]any{
			"subscription_plans":  false,
			"live_streaming":      false,
			"social_features":     true,
			"analytics_dashboard": true,
			"artist_verification": false,
		},
		"limits": map[string]any{
			"max_uploads_per_day":  10,
			"max_file_size_mb":     100,
			"free_streaming_limit": 100,
		},
	}
}

// Load builds the immutable flag set. path names an optional JSON overlay
// file; a missing file is not an error, a malformed one is.
func Load(path string) (*Flags, error) {
	values := defaults()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err == nil {
			var overlay map[string]any
			if err := json.Unmarshal(raw, &overlay); err != nil {
				return nil, fmt.Errorf("parse feature flags file %s: %w", path, err)
			}
			merge(values, overlay)
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read feature flags file %s: %w", path, err)
		}
	}

	applyEnv(values)
	return &Flags{values: values}, nil
}

// merge overlays src onto dst one nesting level deep, matching the shape of
// the defaults (section -> key -> scalar).
func merge(dst, src map[string]any) {
	for key, value := range src {
		if section, ok := value.(map[string]any); ok {
			if existing, ok := dst[key].(map[string]any); ok {
				for k, v := range section {
					existing[k] = v
				}
				continue
			}
		}
		dst[key] = value
	}
}

func applyEnv(values map[string]any) {
	boolEnv := map[string][2]string{
		"PAYMENT_ENABLED":             {"payment", "enabled"},
		"PAYMENT_METHODS_ENABLED":     {"payment", "methods_enabled"},
		"PURCHASE_DOWNLOADS_ENABLED":  {"payment", "downloads_enabled"},
		"SUBSCRIPTION_PLANS_ENABLED":  {"features", "subscription_plans"},
		"LIVE_STREAMING_ENABLED":      {"features", "live_streaming"},
		"SOCIAL_FEATURES_ENABLED":     {"features", "social_features"},
		"ANALYTICS_DASHBOARD_ENABLED": {"features", "analytics_dashboard"},
		"ARTIST_VERIFICATION_ENABLED": {"features", "artist_verification"},
	}
	for env, target := range boolEnv {
		if raw, ok := os.LookupEnv(env); ok {
			setNested(values, target[0], target[1], parseBool(raw))
		}
	}

	intEnv := map[string][2]string{
		"MAX_UPLOADS_PER_DAY":  {"limits", "max_uploads_per_day"},
		"MAX_FILE_SIZE_MB":     {"limits", "max_file_size_mb"},
		"FREE_STREAMING_LIMIT": {"limits", "free_streaming_limit"},
	}
	for env, target := range intEnv {
		if raw, ok := os.LookupEnv(env); ok {
			if n, err := strconv.Atoi(raw); err == nil {
				setNested(values, target[0], target[1], n)
			}
		}
	}

	if msg, ok := os.LookupEnv("PAYMENT_COMING_SOON_MESSAGE"); ok {
		setNested(values, "payment", "coming_soon_message", msg)
	}
}

func setNested(values map[string]any, section, key string, value any) {
	s, ok := values[section].(map[string]any)
	if !ok {
		s = map[string]any{}
		values[section] = s
	}
	s[key] = value
}

func parseBool(raw string) bool {
	switch strings.ToLower(raw) {
	case "true", "1", "yes", "on", "enabled":
		return true
	}
	return false
}

// lookup walks a dotted path. Missing segments report !ok.
func (f *Flags) lookup(path string) (any, bool) {
	var current any = f.values
	for _, key := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Enabled reports whether the flag at path is truthy. Missing paths are
// disabled: the gate fails closed.
func (f *Flags) Enabled(path string) bool {
	v, ok := f.lookup(path)
	if !ok {
		return false
	}
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return parseBool(t)
	default:
		return false
	}
}

// String returns the string flag at path, or fallback when absent.
func (f *Flags) String(path, fallback string) string {
	if v, ok := f.lookup(path); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return fallback
}

// Int returns the integer flag at path, or fallback when absent. JSON overlay
// numbers arrive as float64 and are accepted.
func (f *Flags) Int(path string, fallback int) int {
	v, ok := f.lookup(path)
	if !ok {
		return fallback
	}
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return fallback
	}
}

// PaymentDisabledMessage is the configured user-facing text returned when a
// purchase is attempted while payments are gated off.
func (f *Flags) PaymentDisabledMessage() string {
	return f.String(PathPaymentComingSoon, "Payments are currently unavailable.")
}

// Public returns the subset of flags safe to expose to clients.
func (f *Flags) Public() map[string]any {
	return map[string]any{
		"payment": map[string]any{
			"enabled":             f.Enabled(PathPaymentEnabled),
			"methods_enabled":     f.Enabled(PathPaymentMethodsEnabled),
			"downloads_enabled":   f.Enabled(PathPaymentDownloadsEnabled),
			"coming_soon_message": f.PaymentDisabledMessage(),
		},
		"features": map[string]any{
			"subscription_plans":  f.Enabled("features.subscription_plans"),
			"live_streaming":      f.Enabled("features.live_streaming"),
			"social_features":     f.Enabled("features.social_features"),
			"analytics_dashboard": f.Enabled("features.analytics_dashboard"),
			"artist_verification": f.Enabled("features.artist_verification"),
		},
		"limits": map[string]any{
			"max_uploads_per_day":  f.Int(PathMaxUploadsPerDay, 10),
			"max_file_size_mb":     f.Int(PathMaxFileSizeMB, 100),
			"free_streaming_limit": f.Int(PathFreeStreamLimit, 100),
		},
	}
}

// FromValues builds Flags directly from a nested map. Intended for tests that
// need a gate in a specific state without touching files or environment.
func FromValues(overlay map[string]any) *Flags {
	values := defaults()
	merge(values, overlay)
	return &Flags{values: values}
}
