// Package server exposes the collection daemon's HTTP JSON API: session
// and test persistence, multipart video upload, server-mediated IP
// geolocation, signed blob downloads, and Prometheus metrics.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"fieldcap/internal/blob"
	"fieldcap/internal/config"
	"fieldcap/internal/geo/ipgeo"
	"fieldcap/internal/logging"
	"fieldcap/internal/store"
)

// Server is the daemon's HTTP front end.
type Server struct {
	bind      string
	token     string
	logger    *slog.Logger
	store     *store.Store
	blobs     blob.Store
	signer    *blob.Signer
	providers []ipgeo.Provider
	signedTTL time.Duration
	metrics   *metrics

	listener net.Listener
	server   *http.Server
}

// New wires the server. providers back /location/ip; signer validates
// /blobs/ links for drivers without native presigning.
func New(cfg *config.Config, st *store.Store, blobs blob.Store, signer *blob.Signer, providers []ipgeo.Provider, logger *slog.Logger) *Server {
	srv := &Server{
		bind:      cfg.Paths.APIBind,
		token:     cfg.Backend.Token,
		logger:    logging.NewComponentLogger(logger, "api-server"),
		store:     st,
		blobs:     blobs,
		signer:    signer,
		providers: providers,
		signedTTL: time.Duration(cfg.Blob.SignedURLDays) * 24 * time.Hour,
		metrics:   newMetrics(),
	}

	// /health stays open for liveness checks and /blobs/ links carry
	// their own signature; everything else requires the shared token
	// when one is configured.
	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.instrument("health", srv.handleHealth))
	mux.HandleFunc("/location/ip", srv.instrument("location-ip", srv.authenticated(srv.handleLocationIP)))
	mux.HandleFunc("/session", srv.instrument("session-create", srv.authenticated(srv.handleSessionCreate)))
	mux.HandleFunc("/session/", srv.instrument("session-get", srv.authenticated(srv.handleSessionGet)))
	mux.HandleFunc("/tests", srv.instrument("tests", srv.authenticated(srv.handleTests)))
	mux.HandleFunc("/tests/", srv.instrument("test-item", srv.authenticated(srv.handleTestItem)))
	mux.HandleFunc("/upload-video", srv.instrument("upload-video", srv.authenticated(srv.handleUploadVideo)))
	mux.HandleFunc("/blobs/", srv.instrument("blob-download", srv.handleBlobDownload))
	mux.Handle("/metrics", promhttp.HandlerFor(srv.metrics.registry, promhttp.HandlerOpts{}))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

// Handler exposes the mux for httptest-based handler tests.
func (s *Server) Handler() http.Handler { return s.server.Handler }

// Start listens and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Stop shuts the server down, draining in-flight requests briefly.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// Addr returns the bound listen address, useful when binding port 0.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.bind
	}
	return s.listener.Addr().String()
}

// authenticated rejects requests whose Authorization header does not
// carry the configured bearer token. A blank token disables the check
// for trusted-network deployments.
func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.token != "" {
			header := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(header), []byte("Bearer "+s.token)) != 1 {
				s.writeError(w, http.StatusUnauthorized, "invalid or missing access token")
				return
			}
		}
		next(w, r)
	}
}

// instrument counts requests per route and status.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(recorder, r)
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
