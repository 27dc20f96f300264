package web

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"querycal/internal/app"
	"querycal/internal/calendar"
	"querycal/internal/config"
	appLog "querycal/internal/log"
	"querycal/internal/metrics"
	"querycal/internal/model"
)

// Server exposes the projected calendar and the editor options over HTTP.
type Server struct {
	app     *app.App
	auth    *config.BasicAuthConfig
	metrics *metrics.Metrics
	router  *mux.Router
}

// NewServer constructs a Server. m may be nil, in which case /metrics is
// not registered.
func NewServer(a *app.App, auth *config.BasicAuthConfig, m *metrics.Metrics) *Server {
	s := &Server{
		app:     a,
		auth:    auth,
		metrics: m,
		router:  mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the root handler, wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	if s.basicAuthEnabled() {
		return s.basicAuthMiddleware(s.router)
	}
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	s.router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)
	s.router.HandleFunc("/api/columns", s.handleColumns).Methods(http.MethodGet)
	s.router.HandleFunc("/api/options", s.handleGetOptions).Methods(http.MethodGet)
	s.router.HandleFunc("/api/options", s.handlePutOptions).Methods(http.MethodPut)
	s.router.HandleFunc("/api/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router.HandleFunc("/api/colors", s.handleResetColors).Methods(http.MethodDelete)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	if s.metrics != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}
}

// basicAuthEnabled reports whether both username and password are set.
func (s *Server) basicAuthEnabled() bool {
	return s.auth != nil && s.auth.Username != "" && s.auth.Password != ""
}

// basicAuthMiddleware guards everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username, password := s.auth.Username, s.auth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="querycal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleEvents returns the current snapshot: event sources in group order
// plus the display flags for the calendar widget.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

type columnDTO struct {
	model.Column
	Label string `json:"label"`
}

// handleColumns lists result columns with display labels for the editor.
func (s *Server) handleColumns(w http.ResponseWriter, _ *http.Request) {
	cols := s.app.Columns()
	out := make([]columnDTO, 0, len(cols))
	for _, c := range cols {
		out = append(out, columnDTO{Column: c, Label: calendar.CleanColumnName(c.Name)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.app.Options())
}

// handlePutOptions replaces the editor options. Fields absent from the
// body keep their current values; a present group_colors object replaces
// the pinned colors as a whole.
func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request) {
	opts := s.app.Options()
	pinned := opts.GroupColors
	opts.GroupColors = nil
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid options: "+err.Error())
		return
	}
	if opts.GroupColors == nil {
		opts.GroupColors = pinned
	}

	snap, err := s.app.UpdateOptions(opts)
	if err != nil {
		appLog.Error("options update rejected", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// handleRefresh re-fetches the source synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	snap, err := s.app.Refresh(ctx)
	if err != nil {
		appLog.Error("manual refresh failed", err)
		writeError(w, http.StatusBadGateway, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleResetColors(w http.ResponseWriter, _ *http.Request) {
	s.app.ResetColors()
	writeJSON(w, http.StatusOK, s.app.Snapshot())
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func ListenAndServe(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
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
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// writeJSON encodes v before committing the status so an encoding
// failure still yields a complete 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		appLog.Error("failed to encode JSON response", err)
		buf.Reset()
		buf.WriteString(`{"error":"internal error"}` + "\n")
		status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
