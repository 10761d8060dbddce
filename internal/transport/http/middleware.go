package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	dErrors "soundvault/pkg/domain-errors"
	"soundvault/pkg/requestcontext"
)

// requestContext stamps every request with an ID and the request time. The
// time rides the context so everything downstream shares one clock reading.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithTime(ctx, time.Now().UTC())
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// instrument records request counts and latency per route pattern.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(ww.Status())
		s.metrics.HTTPRequests.WithLabelValues(r.Method, route, status).Inc()
		s.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// bearerToken extracts the credential from the Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	return strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
}

// requireAuth resolves the bearer token to a principal and loads its ID and
// role into the context. Requests without a resolvable, active principal are
// rejected.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || token == "" {
			s.metrics.AuthRejections.Inc()
			s.writeError(w, r, dErrors.New(dErrors.CodeUnauthorized, "invalid credential"))
			return
		}
		p, err := s.resolver.Resolve(r.Context(), token)
		if err != nil {
			s.metrics.AuthRejections.Inc()
			s.writeError(w, r, err)
			return
		}
		ctx := requestcontext.WithPrincipalID(r.Context(), p.ID)
		ctx = requestcontext.WithPrincipalRole(ctx, p.Role.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth resolves a bearer token when one is present but lets
// anonymous requests through. A token that is present and bad is still
// rejected: silently downgrading a broken credential to anonymous would mask
// client bugs.
func (s *Server) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || token == "" {
			next.ServeHTTP(w, r)
			return
		}
		p, err := s.resolver.Resolve(r.Context(), token)
		if err != nil {
			s.metrics.AuthRejections.Inc()
			s.writeError(w, r, err)
			return
		}
		ctx := requestcontext.WithPrincipalID(r.Context(), p.ID)
		ctx = requestcontext.WithPrincipalRole(ctx, p.Role.String())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireCredential verifies the bearer token without requiring a principal.
// The registration route uses it: the caller proves control of an identity
// before the principal row exists.
func (s *Server) requireCredential(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok || token == "" {
			s.metrics.AuthRejections.Inc()
			s.writeError(w, r, dErrors.New(dErrors.CodeUnauthorized, "invalid credential"))
			return
		}
		cred, err := s.resolver.Credential(r.Context(), token)
		if err != nil {
			s.metrics.AuthRejections.Inc()
			s.writeError(w, r, err)
			return
		}
		ctx := requestcontext.WithSubject(r.Context(), cred.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
