// Package config assembles process configuration from the environment so
// main stays lean. Everything is read once at startup; a config that fails
// Validate stops the boot.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// ShutdownGrace bounds graceful shutdown on SIGTERM.
var ShutdownGrace = 15 * time.Second

// Config captures everything the server needs to start.
type Config struct {
	Environment string
	Addr        string
	DatabaseURL string

	FlagsFile string

	// Identity provider. In production OIDCIssuer is required; outside it an
	// HS256 dev secret may stand in.
	OIDCIssuer   string
	OIDCClientID string
	DevJWTSecret string

	// Payment gateway.
	PaymentEndpoint string
	PaymentAPIKey   string

	// Object store.
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3KeyID     string
	S3Secret    string
	S3PathStyle bool
}

// FromEnv builds a Config from environment variables.
func FromEnv() Config {
	return Config{
		Environment: getenv("SOUNDVAULT_ENV", "development"),
		Addr:        getenv("SOUNDVAULT_ADDR", ":8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		FlagsFile:   os.Getenv("FEATURE_FLAGS_FILE"),

		OIDCIssuer:   os.Getenv("OIDC_ISSUER"),
		OIDCClientID: os.Getenv("OIDC_CLIENT_ID"),
		DevJWTSecret: os.Getenv("DEV_JWT_SECRET"),

		PaymentEndpoint: os.Getenv("PAYMENT_ENDPOINT"),
		PaymentAPIKey:   os.Getenv("PAYMENT_API_KEY"),

		S3Endpoint:  os.Getenv("S3_ENDPOINT"),
		S3Region:    getenv("S3_REGION", "us-east-1"),
		S3Bucket:    os.Getenv("S3_BUCKET"),
		S3KeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3Secret:    os.Getenv("S3_SECRET_ACCESS_KEY"),
		S3PathStyle: parseBool(os.Getenv("S3_PATH_STYLE")),
	}
}

// Validate checks that the configuration is complete enough to boot. The
// memory-backed dev mode needs almost nothing; production requires the real
// collaborators.
func (c Config) Validate() error {
	if c.Environment == "production" {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if c.OIDCIssuer == "" || c.OIDCClientID == "" {
			return fmt.Errorf("OIDC_ISSUER and OIDC_CLIENT_ID are required in production")
		}
		if c.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required in production")
		}
		if c.DevJWTSecret != "" {
			return fmt.Errorf("DEV_JWT_SECRET must not be set in production")
		}
	} else if c.OIDCIssuer == "" && c.DevJWTSecret == "" {
		return fmt.Errorf("either OIDC_ISSUER or DEV_JWT_SECRET must be set")
	}
	if c.PaymentEndpoint != "" && c.PaymentAPIKey == "" {
		return fmt.Errorf("PAYMENT_API_KEY is required when PAYMENT_ENDPOINT is set")
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBool(raw string) bool {
	b, err := strconv.ParseBool(raw)
	return err == nil && b
}
