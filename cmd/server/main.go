package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"soundvault/internal/entitlement"
	"soundvault/internal/features"
	"soundvault/internal/identity"
	"soundvault/internal/migrations"
	"soundvault/internal/objectstore"
	"soundvault/internal/payment"
	"soundvault/internal/platform/config"
	"soundvault/internal/platform/httpserver"
	"soundvault/internal/platform/logger"
	"soundvault/internal/platform/metrics"
	principalservice "soundvault/internal/principal/service"
	principalstore "soundvault/internal/principal/store"
	purchaseservice "soundvault/internal/purchase/service"
	purchasestore "soundvault/internal/purchase/store"
	streamservice "soundvault/internal/stream/service"
	streamstore "soundvault/internal/stream/store"
	trackservice "soundvault/internal/track/service"
	trackstore "soundvault/internal/track/store"
	httpapi "soundvault/internal/transport/http"
)

// main wires the dependencies and keeps the server lifecycle small. All
// collaborators are constructed up front; anything misconfigured fails the
// boot instead of surfacing on the first request.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Environment)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags, err := features.Load(cfg.FlagsFile)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	m := metrics.New(registry)

	stores, err := buildStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	verifier, err := buildVerifier(ctx, cfg)
	if err != nil {
		return err
	}
	resolver := identity.NewResolver(verifier, stores.principals, identity.WithResolverLogger(log))

	objects, err := buildObjectStore(cfg, log)
	if err != nil {
		return err
	}

	processor := buildProcessor(cfg, log)
	validator := entitlement.NewValidator(flags, stores.purchases)

	server := httpapi.New(
		resolver,
		principalservice.New(stores.principals, principalservice.WithLogger(log)),
		trackservice.New(stores.tracks, stores.principals, stores.purchases, objects, validator, flags,
			trackservice.WithLogger(log), trackservice.WithMetrics(m)),
		purchaseservice.New(stores.purchases, stores.tracks, processor, validator, flags, objects,
			purchaseservice.WithLogger(log), purchaseservice.WithMetrics(m)),
		streamservice.New(stores.plays, stores.tracks, stores.principals, validator, objects,
			streamservice.WithLogger(log), streamservice.WithMetrics(m)),
		flags,
		httpapi.WithLogger(log),
		httpapi.WithMetrics(m, registry),
	)

	srv := httpserver.New(cfg.Addr, server.Router())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// principalStore is the union of what every consumer needs from the
// principal store; both the memory and postgres implementations satisfy it.
type principalStore interface {
	principalservice.Store
	identity.PrincipalStore
}

// trackStore is the union of the track-store surfaces.
type trackStore interface {
	trackservice.Store
	streamservice.TrackStore
}

// purchaseStore adds the track-deletion guard to the purchase service surface.
type purchaseStore interface {
	purchaseservice.Store
	trackservice.PurchaseStore
}

// storeSet bundles the persistence layer so run can swap between postgres
// and the in-memory dev stores as a unit.
type storeSet struct {
	principals principalStore
	tracks     trackStore
	purchases  purchaseStore
	plays      streamservice.PlayStore
	db         *sql.DB
}

func (s *storeSet) close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func buildStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*storeSet, error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		return &storeSet{
			principals: principalstore.NewInMemory(),
			tracks:     trackstore.NewInMemory(),
			purchases:  purchasestore.NewInMemory(),
			plays:      streamstore.NewInMemory(),
		}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &storeSet{
		principals: principalstore.NewPostgres(db),
		tracks:     trackstore.NewPostgres(db),
		purchases:  purchasestore.NewPostgres(db),
		plays:      streamstore.NewPostgres(db),
		db:         db,
	}, nil
}

func buildVerifier(ctx context.Context, cfg config.Config) (identity.Verifier, error) {
	if cfg.OIDCIssuer != "" {
		return identity.NewOIDCVerifier(ctx, cfg.OIDCIssuer, cfg.OIDCClientID)
	}
	return identity.NewHS256Verifier(cfg.Environment, []byte(cfg.DevJWTSecret))
}

func buildObjectStore(cfg config.Config, log *slog.Logger) (objectstore.Store, error) {
	if cfg.S3Bucket == "" {
		log.Warn("S3_BUCKET not set, using in-memory object store")
		return objectstore.NewMemory(), nil
	}
	return objectstore.NewS3Store(objectstore.S3Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		KeyID:     cfg.S3KeyID,
		Secret:    cfg.S3Secret,
		PathStyle: cfg.S3PathStyle,
	})
}

func buildProcessor(cfg config.Config, log *slog.Logger) payment.Processor {
	if cfg.PaymentEndpoint == "" {
		log.Warn("PAYMENT_ENDPOINT not set, captures are simulated in process")
		return payment.NewScripted()
	}
	return payment.NewHTTPProcessor(cfg.PaymentEndpoint, cfg.PaymentAPIKey)
}
