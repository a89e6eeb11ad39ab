package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"calgrid/internal/config"
	"calgrid/internal/controller"
	"calgrid/internal/grid"
	appLog "calgrid/internal/log"
	"calgrid/internal/maintenance"
	"calgrid/internal/nav"
)

// reloadTimeout bounds a reload triggered through the API.
const reloadTimeout = 2 * time.Minute

// Calendar is the part of the controller the HTTP layer drives.
type Calendar interface {
	View() (controller.View, error)
	Maintenance() ([]maintenance.Row, error)
	GridFor(year int, month time.Month) (grid.Grid, error)
	Next() (controller.View, error)
	Previous() (controller.View, error)
	Cursor() nav.Cursor
	Reload(ctx context.Context) error
}

// Server exposes the calendar view over HTTP: a JSON API, the rendered
// /calendar page and the last captured preview image.
type Server struct {
	cfg    *config.Config
	cal    Calendar
	router *mux.Router
	page   *template.Template
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, cal Calendar) *Server {
	s := &Server{
		cfg:    cfg,
		cal:    cal,
		router: mux.NewRouter(),
		page:   template.Must(template.New("calendar").Funcs(pageFuncs).Parse(calendarPage)),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	r := s.router
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	r.HandleFunc("/api/grid", s.handleGrid).Methods(http.MethodGet)
	r.HandleFunc("/api/grid/{year:[0-9]{4}}/{month:[0-9]{1,2}}", s.handleGridFor).Methods(http.MethodGet)
	r.HandleFunc("/api/nav/next", s.handleNext).Methods(http.MethodPost)
	r.HandleFunc("/api/nav/prev", s.handlePrevious).Methods(http.MethodPost)
	r.HandleFunc("/api/maintenance", s.handleMaintenance).Methods(http.MethodGet)
	r.HandleFunc("/api/reload", s.handleReload).Methods(http.MethodPost)

	r.HandleFunc("/calendar", s.handleCalendar).Methods(http.MethodGet)
	r.HandleFunc("/preview.png", s.handlePreview).Methods(http.MethodGet)
	r.Handle("/", http.RedirectHandler("/calendar", http.StatusFound))

	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		r.Use(s.basicAuthMiddleware)
	}
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured. Empty
// credentials disable it.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware guards every route except /health.
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
			w.Header().Set("WWW-Authenticate", `Basic realm="calgrid", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleGrid(w http.ResponseWriter, _ *http.Request) {
	view, err := s.cal.View()
	if err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleGridFor(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	year, _ := strconv.Atoi(vars["year"])
	month, _ := strconv.Atoi(vars["month"])
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	g, err := s.cal.GridFor(year, time.Month(month))
	if err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) handleNext(w http.ResponseWriter, _ *http.Request) {
	s.writeNavigation(w, s.cal.Next)
}

func (s *Server) handlePrevious(w http.ResponseWriter, _ *http.Request) {
	s.writeNavigation(w, s.cal.Previous)
}

func (s *Server) writeNavigation(w http.ResponseWriter, move func() (controller.View, error)) {
	view, err := move()
	if err != nil {
		// The cursor still moved; report where it is.
		writeJSON(w, statusFor(err), navResponse{Cursor: s.cal.Cursor(), Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type navResponse struct {
	Cursor nav.Cursor `json:"cursor"`
	Error  string     `json:"error"`
}

func (s *Server) handleMaintenance(w http.ResponseWriter, _ *http.Request) {
	rows, err := s.cal.Maintenance()
	if err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), reloadTimeout)
	defer cancel()

	if err := s.cal.Reload(ctx); err != nil {
		if errors.Is(err, controller.ErrStaleLoad) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		appLog.Error("api reload failed", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	view, err := s.cal.View()
	if err != nil {
		writeStateError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handlePreview serves the last captured PNG from disk.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil || s.cfg.Capture.OutputPath == "" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.cfg.Capture.OutputPath)
}

// statusFor maps controller state errors to HTTP statuses.
func statusFor(err error) int {
	if errors.Is(err, controller.ErrNotLoaded) {
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func writeStateError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
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
