// Package web serves the dashboard UI and its JSON API.
package web

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"caldash/internal/cal"
	"caldash/internal/config"
	appLog "caldash/internal/log"
	"caldash/internal/model"
)

// Store is the subset of the data layer the handlers need. Declared here
// so tests can substitute a fake without a running Postgres.
type Store interface {
	EventsInRange(ctx context.Context, start, end time.Time) ([]model.Event, error)
	BulkInsertEvents(ctx context.Context, dates []time.Time, clock *string, title, author string) (int64, error)
	Ping(ctx context.Context) error
}

// windowCacheTTL bounds how long a cached window response is served
// before the database is consulted again.
const windowCacheTTL = 30 * time.Second

// Server holds the router, the store, and the in-memory window cache.
type Server struct {
	cfg       *config.Config
	st        Store
	loc       *time.Location
	weekStart time.Weekday
	router    chi.Router

	// now is time.Now in the display zone; injectable for tests.
	now func() time.Time

	cacheMu sync.RWMutex
	cache   *windowCache
}

// windowCache is the last fetched 3-month window response. A request for
// any month inside the window within the TTL is served from memory.
type windowCache struct {
	win       cal.Window
	events    map[string][]eventDTO
	updatedAt time.Time
}

// embeddedStatic holds the dashboard's static single-page UI.
//
//go:embed all:static
var embeddedStatic embed.FS

// NewServer constructs a Server over cfg and st.
func NewServer(cfg *config.Config, st Store) *Server {
	loc := resolveLocationOrLocal(cfg.Timezone)
	s := &Server{
		cfg:       cfg,
		st:        st,
		loc:       loc,
		weekStart: cal.ParseWeekStart(cfg.WeekStart),
		now:       func() time.Time { return time.Now().In(loc) },
	}
	s.router = s.buildRouter()
	return s
}

// Handler returns the http.Handler for this server, with Basic Auth
// applied when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(api chi.Router) {
		api.Get("/events", s.handleGetEvents)
		api.Post("/events", s.handleCreateEvent)
		api.Get("/grid", s.handleGrid)
		api.Get("/config", s.handleConfig)
	})
	r.Get("/calendar.ics", s.handleICSFeed)

	r.NotFound(s.staticFileServer())
	return r
}

func (s *Server) basicAuthEnabled() bool {
	return s.cfg != nil && s.cfg.BasicAuth != nil &&
		s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects everything except /health, which stays
// open for load balancer probes.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="caldash", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// staticFileServer serves the embedded UI for every path no other route
// claims. API paths never fall through to HTML.
func (s *Server) staticFileServer() http.HandlerFunc {
	sub, err := fs.Sub(embeddedStatic, "static")
	if err != nil {
		appLog.Error("failed to initialize embedded static filesystem", err)
		return func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "static UI not available", http.StatusServiceUnavailable)
		}
	}

	fileServer := http.FileServer(http.FS(sub))
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api" || strings.HasPrefix(r.URL.Path, "/api/") {
			http.NotFound(w, r)
			return
		}
		fileServer.ServeHTTP(w, r)
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}

func readJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	// Reject trailing garbage after the JSON document.
	if dec.More() {
		return errors.New("unexpected trailing data")
	}
	return nil
}
