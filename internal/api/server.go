package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"github.com/esp32-monitor/esp32-monitor-server/internal/config"
	"github.com/esp32-monitor/esp32-monitor-server/internal/monitor"
	"github.com/esp32-monitor/esp32-monitor-server/internal/ota"
	"github.com/esp32-monitor/esp32-monitor-server/internal/realtime"
)

// RESTServer represents the REST API server
type RESTServer struct {
	config     *config.Config
	reconciler *monitor.Reconciler
	ota        *ota.Service
	hub        *realtime.Hub
	router     chi.Router
	server     *http.Server
}

// NewRESTServer creates a new REST API server
func NewRESTServer(cfg *config.Config, reconciler *monitor.Reconciler, otaSvc *ota.Service, hub *realtime.Hub) *RESTServer {
	s := &RESTServer{
		config:     cfg,
		reconciler: reconciler,
		ota:        otaSvc,
		hub:        hub,
		router:     chi.NewRouter(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures middleware and all routes
func (s *RESTServer) setupRoutes() {
	// Middleware
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	s.router.Get("/health", s.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		s.setupAPIRoutes(r)
	})
}

// ListenAndServe starts the server
func (s *RESTServer) ListenAndServe(addr string) error {
	s.server.Addr = addr
	log.Info().Str("addr", addr).Msg("Starting REST API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *RESTServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HandleHealth health check
func (s *RESTServer) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": s.config.Server.Name,
		"time":    time.Now().UTC(),
	})
}

// respondJSON responds with JSON
func (s *RESTServer) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

// respondError responds with error
func (s *RESTServer) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondInternal responds with a 500 carrying the underlying error text
// and a timestamp. No stack traces cross the wire.
func (s *RESTServer) respondInternal(w http.ResponseWriter, err error) {
	s.respondJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"error":     "Internal server error",
		"details":   err.Error(),
		"timestamp": time.Now().UTC(),
	})
}
