// Package api serves the local read-only HTTP view behind `sayu serve`.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/sayu/internal/aggregator"
	"github.com/MikeSquared-Agency/sayu/internal/collector"
	"github.com/MikeSquared-Agency/sayu/internal/config"
	"github.com/MikeSquared-Agency/sayu/internal/event"
	"github.com/MikeSquared-Agency/sayu/internal/filter"
	"github.com/MikeSquared-Agency/sayu/internal/pipeline"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// Events is the read side of the event store.
type Events interface {
	Recent(ctx context.Context, repo string, limit int) ([]event.Event, error)
	Search(ctx context.Context, query string, limit int) ([]event.Event, error)
}

// Window collects the events for the current commit window.
// *aggregator.Aggregator satisfies it.
type Window interface {
	Collect(ctx context.Context, repo string, mode aggregator.Mode) pipeline.Result[aggregator.Batch]
}

// Deps is what the handlers read from.
type Deps struct {
	Repo      string
	Config    config.Config
	Events    Events
	Window    Window
	Registry  *collector.Registry
	Providers []string
}

type Server struct {
	router *chi.Mux
	port   int
	deps   Deps
}

func NewServer(port int, deps Deps) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router: router,
		port:   port,
		deps:   deps,
	}

	router.Get("/health", s.health)
	router.Route("/api/v1/sayu", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/events", s.events)
		r.Get("/search", s.search)
		r.Get("/window", s.window)
	})

	return s
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type collectorStatus struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	OK      bool   `json:"ok"`
	Reason  string `json:"reason,omitempty"`
}

type statusResponse struct {
	Agent      string            `json:"agent"`
	Repo       string            `json:"repo"`
	Enabled    bool              `json:"enabled"`
	Language   string            `json:"language"`
	Collectors []collectorStatus `json:"collectors"`
	Providers  []string          `json:"providers"`
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Agent:      "sayu",
		Repo:       s.deps.Repo,
		Enabled:    s.deps.Config.Enabled,
		Language:   s.deps.Config.Language,
		Collectors: []collectorStatus{},
		Providers:  s.deps.Providers,
	}
	if resp.Providers == nil {
		resp.Providers = []string{}
	}
	if s.deps.Registry != nil {
		for _, c := range s.deps.Registry.All() {
			h := c.Health()
			resp.Collectors = append(resp.Collectors, collectorStatus{
				Name:    c.Name(),
				Enabled: s.deps.Config.Connectors.Enabled(c.Name()),
				OK:      h.OK,
				Reason:  h.Reason,
			})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.deps.Events.Recent(r.Context(), s.deps.Repo, limit)
	if err != nil {
		slog.Error("recent events failed", "error", err)
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": nonNil(events), "count": len(events)})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	if s.deps.Events == nil {
		writeError(w, http.StatusServiceUnavailable, "event store unavailable")
		return
	}
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	events, err := s.deps.Events.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", "query", q, "error", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"query": q, "events": nonNil(events), "count": len(events)})
}

type windowResponse struct {
	Since     int64         `json:"since"`
	Until     int64         `json:"until"`
	Events    []event.Event `json:"events"`
	HighValue []event.Event `json:"high_value"`
	Degraded  string        `json:"degraded,omitempty"`
}

// window reports what the next commit would see: every collected event and
// the subset the summary would be built from.
func (s *Server) window(w http.ResponseWriter, r *http.Request) {
	if s.deps.Window == nil {
		writeError(w, http.StatusServiceUnavailable, "collectors unavailable")
		return
	}
	res := s.deps.Window.Collect(r.Context(), s.deps.Repo, aggregator.ModeDefault)
	lim := s.deps.Config.Limits
	resp := windowResponse{
		Since:     res.Value.Since,
		Until:     res.Value.Until,
		Events:    nonNil(res.Value.Events),
		HighValue: nonNil(filter.HighValue(res.Value.Events, lim.MaxHighValueEvents, lim.MinResponseLength)),
	}
	if res.IsDegraded() {
		resp.Degraded = res.Degraded.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return min(n, maxLimit), nil
}

func nonNil(events []event.Event) []event.Event {
	if events == nil {
		return []event.Event{}
	}
	return events
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
