//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	router := mux.NewRouter().StrictSlash(true)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusNotFound, "No route for "+r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.respondError(w, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	router.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health/metrics", s.handleMetrics).Methods(http.MethodGet)

	// Track catalog
	api.HandleFunc("/tracks", s.handleListTracks).Methods(http.MethodGet)
	api.HandleFunc("/tracks", s.handleAddTrack).Methods(http.MethodPost)
	api.HandleFunc("/tracks/{id}", s.handleGetTrack).Methods(http.MethodGet)
	api.HandleFunc("/tracks/{id}", s.handleDeleteTrack).Methods(http.MethodDelete)
	api.HandleFunc("/tracks/{id}/notes", s.handleTrackNotes).Methods(http.MethodGet)

	// Live sessions
	api.HandleFunc("/sessions", s.handleCreateSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id}", s.handleDeleteSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{id}/start", s.handleStartSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/stop", s.handleStopSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/clock", s.handleClock).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/detections", s.handleDetection).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id}/events", s.handleEvents).Methods(http.MethodGet)

	router.Use(s.loggingMiddleware)

	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           3600,
	})
	return c.Handler(router)
}

// loggingMiddleware logs all HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		s.log.Debugf("%s %s from %s", r.Method, r.URL.Path, getClientIP(r))
		next.ServeHTTP(wrapped, r)
		s.log.Infof("%s %s -> %d (%s)", r.Method, r.URL.Path, wrapped.statusCode, time.Since(start).Round(time.Microsecond))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	return h.Hijack()
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// Start serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Infof("🚀 PitchMatch server starting on %s", addr)
	s.log.Infof("   Database: %s", s.config.DBPath)
	s.log.Infof("   Session TTL: %s", s.config.SessionTTL)
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("Endpoints:")
	s.log.Infof("   GET    /health                        - Health check")
	s.log.Infof("   GET    /api/health/metrics            - Server metrics")
	s.log.Infof("   GET    /api/tracks                    - List all tracks")
	s.log.Infof("   POST   /api/tracks                    - Upload a score (MIDI or JSON)")
	s.log.Infof("   GET    /api/tracks/{id}               - Get track by ID")
	s.log.Infof("   GET    /api/tracks/{id}/notes         - Get a track's notes")
	s.log.Infof("   DELETE /api/tracks/{id}               - Delete track by ID")
	s.log.Infof("   POST   /api/sessions                  - Open a session for a track")
	s.log.Infof("   POST   /api/sessions/{id}/clock       - Playback heartbeat")
	s.log.Infof("   POST   /api/sessions/{id}/detections  - Submit a pitch detection")
	s.log.Infof("   GET    /api/sessions/{id}/events      - Match and score stream (SSE)")

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.Close()
		return err
	case <-ctx.Done():
	}

	s.log.Infof("🛑 Shutting down (%d active sessions)", s.sessions.Count())
	s.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
