// Package validate is the single entry point for untrusted field values.
//
// Every externally supplied field passes through exactly one canonical
// validator for its semantic type before any other component acts on it.
// Validators are pure functions returning a sanitized value or a coded
// validation error; they never silently truncate.
package validate

import (
	"bytes"
	"path"
	"regexp"
	"strings"

	dErrors "soundvault/pkg/domain-errors"
)

// Field length barriers.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxNameLength        = 100
	MaxGenreLength       = 50
	MaxFilenameLength    = 255
	MaxSearchLength      = 100
)

// Money is expressed in integer minor units (cents). Amount equality checks
// must be exact, so floats never enter the domain.
const (
	MaxPriceCents = 10_000_000 // 100,000.00
	MaxDuration   = 36_000     // seconds; 10 hours
	MaxPageLimit  = 100
)

var (
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	subjectPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{6,128}$`)

	// SQL metacharacter sequences. Parameterized queries are the real defense;
	// this guard rejects obviously hostile values before they reach any layer.
	sqlPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\s|^)(union|select|insert|update|delete|drop|create|alter|exec|execute)(\s|\()`),
		regexp.MustCompile(`(?i)(\s|^)(or|and)\s+\d+\s*=\s*\d+`),
		regexp.MustCompile(`'(\s|;|--|#)`),
		regexp.MustCompile(`--(\s|$)`),
		regexp.MustCompile(`/\*.*?\*/`),
		regexp.MustCompile(`(?i)xp_cmdshell|sp_executesql`),
	}

	// Script and event-handler markup.
	xssPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
		regexp.MustCompile(`(?i)javascript:`),
		regexp.MustCompile(`(?i)on\w+\s*=`),
		regexp.MustCompile(`(?is)<iframe[^>]*>`),
		regexp.MustCompile(`(?i)data:text/html`),
	}

	// Path traversal tokens in filename-like fields.
	pathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\.\./`),
		regexp.MustCompile(`\.\.\\`),
		regexp.MustCompile(`^/etc/|^/var/`),
		regexp.MustCompile(`(?i)^[a-z]:\\`),
		regexp.MustCompile(`~/\.`),
	}
)

var dangerousExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true, ".pif": true,
	".scr": true, ".vbs": true, ".js": true, ".jar": true, ".php": true,
	".asp": true, ".aspx": true, ".jsp": true, ".sh": true, ".py": true, ".pl": true,
}

// AudioExtensions is the allow-list for uploaded audio files.
var AudioExtensions = map[string]bool{
	".mp3": true, ".wav": true, ".flac": true, ".aac": true, ".ogg": true,
}

// ImageExtensions is the allow-list for uploaded cover art.
var ImageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".webp": true,
}

func failf(field, format string, args ...any) error {
	return dErrors.Newf(dErrors.CodeValidation, field+": "+format, args...)
}

// stripControl removes control characters; it keeps tab and newline in
// multi-line text untouched callers may pass allowNewlines.
func stripControl(s string, allowNewlines bool) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			if allowNewlines && (r == '\n' || r == '\t') {
				b.WriteRune(r)
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func rejectHostile(field, s string) error {
	for _, p := range sqlPatterns {
		if p.MatchString(s) {
			return failf(field, "contains disallowed SQL sequence")
		}
	}
	for _, p := range xssPatterns {
		if p.MatchString(s) {
			return failf(field, "contains disallowed markup")
		}
	}
	return nil
}

// Text sanitizes a required single-line string: control characters stripped,
// length barrier enforced, hostile patterns rejected.
func Text(field, value string, max int) (string, error) {
	s := strings.TrimSpace(stripControl(value, false))
	if s == "" {
		return "", failf(field, "must not be empty")
	}
	if len(s) > max {
		return "", failf(field, "must be at most %d characters", max)
	}
	if err := rejectHostile(field, s); err != nil {
		return "", err
	}
	return s, nil
}

// OptionalText sanitizes an optional multi-line string. Empty input is valid
// and returns empty output.
func OptionalText(field, value string, max int) (string, error) {
	s := strings.TrimSpace(stripControl(value, true))
	if s == "" {
		return "", nil
	}
	if len(s) > max {
		return "", failf(field, "must be at most %d characters", max)
	}
	if err := rejectHostile(field, s); err != nil {
		return "", err
	}
	return s, nil
}

// Email validates and normalizes an email address.
func Email(value string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(value))
	if s == "" {
		return "", failf("email", "must not be empty")
	}
	if len(s) > 254 || !emailPattern.MatchString(s) {
		return "", failf("email", "is not a valid address")
	}
	return s, nil
}

// Subject validates an external identity-provider subject reference.
func Subject(value string) (string, error) {
	s := strings.TrimSpace(value)
	if !subjectPattern.MatchString(s) {
		return "", failf("subject", "is not a valid subject reference")
	}
	return s, nil
}

// PriceCents checks a price in integer minor units.
func PriceCents(field string, cents int64) (int64, error) {
	if cents < 0 {
		return 0, failf(field, "must not be negative")
	}
	if cents > MaxPriceCents {
		return 0, failf(field, "exceeds the maximum of %d", int64(MaxPriceCents))
	}
	return cents, nil
}

// DurationSeconds checks a track duration.
func DurationSeconds(field string, seconds int) (int, error) {
	if seconds <= 0 {
		return 0, failf(field, "must be positive")
	}
	if seconds > MaxDuration {
		return 0, failf(field, "exceeds the maximum of %d seconds", MaxDuration)
	}
	return seconds, nil
}

// Pagination bounds skip/limit. A zero limit selects the default.
func Pagination(skip, limit int) (int, int, error) {
	if skip < 0 {
		return 0, 0, failf("skip", "must not be negative")
	}
	if limit < 0 {
		return 0, 0, failf("limit", "must not be negative")
	}
	if limit == 0 {
		limit = 20
	}
	if limit > MaxPageLimit {
		return 0, 0, failf("limit", "must be at most %d", MaxPageLimit)
	}
	return skip, limit, nil
}

// Filename validates a filename-like field against traversal tokens,
// dangerous extensions, and an allow-list of permitted extensions.
func Filename(field, name string, allowed map[string]bool) (string, error) {
	s := strings.TrimSpace(stripControl(name, false))
	if s == "" {
		return "", failf(field, "must not be empty")
	}
	if len(s) > MaxFilenameLength {
		return "", failf(field, "must be at most %d characters", MaxFilenameLength)
	}
	for _, p := range pathPatterns {
		if p.MatchString(s) {
			return "", failf(field, "contains a path traversal token")
		}
	}
	if s != path.Base(s) || strings.ContainsAny(s, `/\`) {
		return "", failf(field, "must be a bare filename")
	}
	ext := strings.ToLower(path.Ext(s))
	if ext == "" {
		return "", failf(field, "is missing an extension")
	}
	if dangerousExtensions[ext] {
		return "", failf(field, "has a forbidden extension %q", ext)
	}
	if !allowed[ext] {
		return "", failf(field, "has an unsupported extension %q", ext)
	}
	return s, nil
}

// content signatures by extension. Declared type must match actual bytes.
var magicByExt = map[string][][]byte{
	".mp3":  {[]byte("ID3"), {0xff, 0xfb}, {0xff, 0xf3}, {0xff, 0xf2}},
	".wav":  {[]byte("RIFF")},
	".flac": {[]byte("fLaC")},
	".aac":  {{0xff, 0xf1}, {0xff, 0xf9}},
	".ogg":  {[]byte("OggS")},
	".jpg":  {{0xff, 0xd8, 0xff}},
	".jpeg": {{0xff, 0xd8, 0xff}},
	".png":  {{0x89, 'P', 'N', 'G'}},
	".webp": {[]byte("RIFF")},
}

// Content verifies that the declared filename extension matches the actual
// byte signature of the payload and that the payload fits the size cap.
// Mismatched declared-vs-actual type is rejected outright.
func Content(field, filename string, data []byte, maxBytes int64) error {
	if len(data) == 0 {
		return failf(field, "is empty")
	}
	if int64(len(data)) > maxBytes {
		return failf(field, "exceeds the %d byte limit", maxBytes)
	}
	ext := strings.ToLower(path.Ext(filename))
	signatures, ok := magicByExt[ext]
	if !ok {
		return failf(field, "has no known content signature for %q", ext)
	}
	for _, sig := range signatures {
		if bytes.HasPrefix(data, sig) {
			return nil
		}
	}
	return failf(field, "content does not match the declared %q type", ext)
}
