package mockserver

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rivetr/rivetr-console/internal/logging"
	"github.com/rivetr/rivetr-console/internal/models"
)

// Config holds mock backend settings
type Config struct {
	Listen      string
	Token       string // Empty disables auth
	Apps        []models.App
	Deployments map[string][]models.Deployment

	LogInterval time.Duration // Delay between generated log lines
	LogCount    int           // Lines per log connection before an end frame; 0 streams forever
	BuildSteps  []string
}

// Server simulates the Rivetr API for UI testing and offline demos
type Server struct {
	config   Config
	logger   logging.Logger
	server   *http.Server
	upgrader websocket.Upgrader
}

// New creates a mock backend; zero fields in cfg fall back to demo data
func New(cfg Config, logger logging.Logger) *Server {
	if cfg.Apps == nil {
		cfg.Apps = DemoApps()
	}
	if cfg.Deployments == nil {
		cfg.Deployments = DemoDeployments()
	}
	if cfg.LogInterval <= 0 {
		cfg.LogInterval = 2 * time.Second
	}
	if len(cfg.BuildSteps) == 0 {
		cfg.BuildSteps = demoBuildSteps
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &Server{
		config: cfg,
		logger: logger.With("component", "mockserver"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the routed API
func (s *Server) Handler() http.Handler {
	return s.setupRoutes()
}

// Start serves on config.Listen until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("mock server listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.logger.Info("mock server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("mock server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("mock server error: %w", err)
	}
}

func (s *Server) setupRoutes() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(s.bearerAuth)
		r.Get("/api/apps", s.handleListApps)
		r.Get("/api/apps/{app_id}/deployments", s.handleListDeployments)
		r.Get("/api/apps/{app_id}/logs/stream", s.handleLogStream)
		r.Get("/api/apps/{app_id}/terminal", s.handleTerminal)
		r.Get("/api/deployments/{deployment_id}/logs/stream", s.handleBuildLogs)
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// bearerAuth accepts the token as a bearer header or, for WebSocket
// upgrades, as the token query parameter
func (s *Server) bearerAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Token == "" {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("token")
		if auth := r.Header.Get("Authorization"); auth != "" {
			const prefix = "Bearer "
			if !strings.HasPrefix(auth, prefix) {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}
			token = strings.TrimSpace(strings.TrimPrefix(auth, prefix))
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing token")
			return
		}
		if !constantTimeEqual(token, s.config.Token) {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func constantTimeEqual(a, b string) bool {
	if a == "" || b == "" || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) findApp(id string) (models.App, bool) {
	for _, a := range s.config.Apps {
		if a.ID == id {
			return a, true
		}
	}
	return models.App{}, false
}

func (s *Server) handleListApps(w http.ResponseWriter, r *http.Request) {
	team := r.URL.Query().Get("team_id")
	apps := make([]models.App, 0, len(s.config.Apps))
	for _, a := range s.config.Apps {
		if team == "" || a.TeamID == team {
			apps = append(apps, a)
		}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	appID := chi.URLParam(r, "app_id")
	if _, ok := s.findApp(appID); !ok {
		writeError(w, http.StatusNotFound, "app not found")
		return
	}
	deployments := s.config.Deployments[appID]
	if deployments == nil {
		deployments = []models.Deployment{}
	}
	writeJSON(w, http.StatusOK, deployments)
}
