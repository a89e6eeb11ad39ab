package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"calgrid/internal/config"
	"calgrid/internal/controller"
	"calgrid/internal/grid"
	"calgrid/internal/maintenance"
	"calgrid/internal/model"
	"calgrid/internal/nav"
)

type fakeCalendar struct {
	cursor    nav.Cursor
	err       error
	reloadErr error
	reloads   int
	events    []model.Event
}

func (f *fakeCalendar) view() controller.View {
	g := grid.Build(f.events, f.cursor.Year, f.cursor.Month, grid.Options{Location: time.UTC})
	return controller.View{
		RenderID: "render-1",
		Cursor:   f.cursor,
		Grid:     g,
		Rows: []maintenance.Row{
			{Label: "Running", Key: "running", Tier: maintenance.TierFresh, Counter: "T+ 00y 00m 01d 00h 00m 00s"},
		},
	}
}

func (f *fakeCalendar) View() (controller.View, error) {
	if f.err != nil {
		return controller.View{}, f.err
	}
	return f.view(), nil
}

func (f *fakeCalendar) Maintenance() ([]maintenance.Row, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.view().Rows, nil
}

func (f *fakeCalendar) GridFor(year int, month time.Month) (grid.Grid, error) {
	if f.err != nil {
		return grid.Grid{}, f.err
	}
	return grid.Build(f.events, year, month, grid.Options{Location: time.UTC}), nil
}

func (f *fakeCalendar) Next() (controller.View, error) {
	f.cursor = f.cursor.Next()
	return f.View()
}

func (f *fakeCalendar) Previous() (controller.View, error) {
	f.cursor = f.cursor.Previous()
	return f.View()
}

func (f *fakeCalendar) Cursor() nav.Cursor { return f.cursor }

func (f *fakeCalendar) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

func newCalendar() *fakeCalendar {
	return &fakeCalendar{
		cursor: nav.Cursor{Year: 2024, Month: time.March},
		events: []model.Event{{
			Title:    "Lecture",
			Category: "Reading",
			Start:    time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC),
			End:      time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC),
			Valid:    true,
			HasEnd:   true,
		}},
	}
}

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestGridEndpoints(t *testing.T) {
	cal := newCalendar()
	h := NewServer(config.DefaultConfig(), cal).Handler()

	rec := do(t, h, http.MethodGet, "/api/grid")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/grid = %d", rec.Code)
	}
	var view controller.View
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatal(err)
	}
	if view.Grid.Title != "March 2024" || len(view.Grid.Days) != 31 {
		t.Fatalf("unexpected grid %q with %d days", view.Grid.Title, len(view.Grid.Days))
	}

	rec = do(t, h, http.MethodGet, "/api/grid/2024/2")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/grid/2024/2 = %d", rec.Code)
	}
	var g grid.Grid
	if err := json.NewDecoder(rec.Body).Decode(&g); err != nil {
		t.Fatal(err)
	}
	if len(g.Days) != 29 {
		t.Fatalf("expected 29 days, got %d", len(g.Days))
	}

	if rec := do(t, h, http.MethodGet, "/api/grid/2024/13"); rec.Code != http.StatusBadRequest {
		t.Fatalf("month 13 should be rejected, got %d", rec.Code)
	}
}

func TestNavigationEndpoints(t *testing.T) {
	cal := newCalendar()
	h := NewServer(config.DefaultConfig(), cal).Handler()

	if rec := do(t, h, http.MethodPost, "/api/nav/prev"); rec.Code != http.StatusOK {
		t.Fatalf("POST /api/nav/prev = %d", rec.Code)
	}
	if cal.cursor != (nav.Cursor{Year: 2024, Month: time.February}) {
		t.Fatalf("cursor = %v", cal.cursor)
	}
	do(t, h, http.MethodPost, "/api/nav/next")
	do(t, h, http.MethodPost, "/api/nav/next")
	if cal.cursor != (nav.Cursor{Year: 2024, Month: time.April}) {
		t.Fatalf("cursor = %v", cal.cursor)
	}

	if rec := do(t, h, http.MethodGet, "/api/nav/next"); rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET on a POST route = %d", rec.Code)
	}
}

func TestStateErrors(t *testing.T) {
	cal := newCalendar()
	cal.err = controller.ErrNotLoaded
	h := NewServer(config.DefaultConfig(), cal).Handler()

	if rec := do(t, h, http.MethodGet, "/api/maintenance"); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("not loaded should be 503, got %d", rec.Code)
	}

	cal.err = errors.New("calendar: HTTP 500")
	rec := do(t, h, http.MethodGet, "/api/grid")
	if rec.Code != http.StatusBadGateway || !strings.Contains(rec.Body.String(), "HTTP 500") {
		t.Fatalf("load failure should be 502 with message, got %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, h, http.MethodPost, "/api/nav/next")
	var resp navResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Cursor != (nav.Cursor{Year: 2024, Month: time.April}) || resp.Error == "" {
		t.Fatalf("navigation during failure should still report the cursor: %+v", resp)
	}
}

func TestReloadEndpoint(t *testing.T) {
	cal := newCalendar()
	h := NewServer(config.DefaultConfig(), cal).Handler()

	if rec := do(t, h, http.MethodPost, "/api/reload"); rec.Code != http.StatusOK || cal.reloads != 1 {
		t.Fatalf("reload = %d (reloads %d)", rec.Code, cal.reloads)
	}
	cal.reloadErr = controller.ErrStaleLoad
	if rec := do(t, h, http.MethodPost, "/api/reload"); rec.Code != http.StatusConflict {
		t.Fatalf("stale reload = %d", rec.Code)
	}
	cal.reloadErr = errors.New("boom")
	if rec := do(t, h, http.MethodPost, "/api/reload"); rec.Code != http.StatusBadGateway {
		t.Fatalf("failed reload = %d", rec.Code)
	}
}

func TestCalendarPage(t *testing.T) {
	cal := newCalendar()
	h := NewServer(config.DefaultConfig(), cal).Handler()

	rec := do(t, h, http.MethodGet, "/calendar")
	body := rec.Body.String()
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /calendar = %d", rec.Code)
	}
	for _, want := range []string{
		`data-ready="true"`,
		"<h1>March 2024</h1>",
		"Fri 15",
		"left: 37.5000%",
		"width: 6.2500%",
		`class="bar bar-reading"`,
		"Start: 09:00\nEnd: 10:30",
		"Running: T&#43; 00y 00m 01d 00h 00m 00s",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}

	cal.err = errors.New("categories: HTTP 500")
	rec = do(t, h, http.MethodGet, "/calendar")
	if rec.Code != http.StatusBadGateway || strings.Contains(rec.Body.String(), "data-ready") {
		t.Fatalf("failed load should render an error page without data-ready: %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "categories: HTTP 500") {
		t.Fatal("error page should show the load error")
	}
}

func TestBasicAuth(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "secret"}
	h := NewServer(cfg, newCalendar()).Handler()

	if rec := do(t, h, http.MethodGet, "/health"); rec.Code != http.StatusOK {
		t.Fatalf("/health must stay open, got %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/grid"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated request = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/grid", nil)
	req.SetBasicAuth("admin", "secret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("authenticated request = %d", rec.Code)
	}
}

func TestPreview(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Capture.OutputPath = filepath.Join(t.TempDir(), "preview.png")
	h := NewServer(cfg, newCalendar()).Handler()

	if rec := do(t, h, http.MethodGet, "/preview.png"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing preview = %d", rec.Code)
	}
	if err := os.WriteFile(cfg.Capture.OutputPath, []byte("\x89PNG\r\n\x1a\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if rec := do(t, h, http.MethodGet, "/preview.png"); rec.Code != http.StatusOK {
		t.Fatalf("preview = %d", rec.Code)
	}
}
