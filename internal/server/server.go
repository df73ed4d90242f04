package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/voyagen/tvplayer/api"
	"github.com/voyagen/tvplayer/internal/cache"
	"github.com/voyagen/tvplayer/internal/config"
	"github.com/voyagen/tvplayer/internal/logo"
	"github.com/voyagen/tvplayer/internal/notify"
	"github.com/voyagen/tvplayer/internal/presenter"
	"github.com/voyagen/tvplayer/internal/service"
)

// Controller executes commands on the application loop.
type Controller interface {
	Dispatch(ctx context.Context, cmd service.Command) (service.Outcome, error)
}

// LogoFetcher resolves logo images synchronously.
type LogoFetcher interface {
	Fetch(ctx context.Context, url string) logo.Logo
}

// Deps are the collaborators of the HTTP API. Rows, Jobs and Notes may be nil.
type Deps struct {
	Controller Controller
	Rows       *presenter.Presenter
	Logos      LogoFetcher
	Notes      *notify.Center
	Jobs       *cache.Redis // import jobs are queued here when set
	Log        logrus.FieldLogger
}

// Server holds dependencies for the HTTP API.
type Server struct {
	Deps
	cfg *config.Config
	mux *http.ServeMux
}

// New creates a Server and registers routes.
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Log == nil {
		deps.Log = logrus.StandardLogger()
	}
	srv := &Server{Deps: deps, cfg: cfg, mux: http.NewServeMux()}
	srv.routes()
	return srv
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)

	// Channels
	s.mux.HandleFunc("GET /api/channels", s.handleListChannels)
	s.mux.HandleFunc("POST /api/channels", s.handleAddChannel)
	s.mux.HandleFunc("GET /api/channels/{id}", s.handleGetChannel)
	s.mux.HandleFunc("PUT /api/channels/{id}", s.handleEditChannel)
	s.mux.HandleFunc("DELETE /api/channels/{id}", s.handleDeleteChannel)
	s.mux.HandleFunc("POST /api/channels/{id}/play", s.handlePlayChannel)
	s.mux.HandleFunc("GET /api/channels/{id}/logo", s.handleChannelLogo)

	s.mux.HandleFunc("POST /api/import", s.handleImport)
	s.mux.HandleFunc("GET /api/player", s.handlePlayer)
	s.mux.HandleFunc("GET /api/notifications", s.handleNotifications)

	// Docs
	s.mux.HandleFunc("GET /api/docs", handleSwaggerUI)
	s.mux.HandleFunc("GET /api/docs/openapi.yaml", handleOpenAPISpec)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Handler returns the API wrapped in the CORS and logging middleware.
func (s *Server) Handler() http.Handler {
	return withCORS(withLogging(s.Log, s))
}

// ListenAndServe starts the HTTP server on the configured port.
// It blocks until the server is shut down or ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := ":" + s.cfg.ServerPort
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.Log.WithError(err).Warn("server shutdown")
		}
	}()

	s.Log.WithField("addr", addr).Info("listening")
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("ListenAndServe: %w", err)
	}
	return nil
}

// --- helpers ---

// APIError is the standard error envelope for all error responses.
type APIError struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Log.WithError(err).Warn("writeJSON")
	}
}

func (s *Server) writeErr(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.Log.WithError(err).WithField("status", status).Error("request failed")
	}
	s.writeJSON(w, status, APIError{
		Status: status,
		Error:  http.StatusText(status),
		Detail: err.Error(),
	})
}

// writeDispatchErr maps controller errors onto status codes.
func (s *Server) writeDispatchErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownChannel):
		s.writeErr(w, http.StatusNotFound, err)
	case errors.Is(err, cache.ErrLocked):
		s.writeErr(w, http.StatusConflict, fmt.Errorf("an import of this playlist is already running"))
	case errors.Is(err, service.ErrStopped), errors.Is(err, context.Canceled):
		s.writeErr(w, http.StatusServiceUnavailable, err)
	default:
		s.writeErr(w, http.StatusInternalServerError, err)
	}
}

// --- docs handlers ---

func handleOpenAPISpec(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(api.OpenAPISpec)
}

func handleSwaggerUI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, swaggerUIHTML)
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>TV Player API</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css">
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: "/api/docs/openapi.yaml", dom_id: "#swagger-ui" });
  </script>
</body>
</html>`
