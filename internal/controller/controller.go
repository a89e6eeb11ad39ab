// Package controller owns the page-level state of the calendar view: the
// month cursor, the event store, the maintenance rows and the live ticker.
package controller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"calgrid/internal/grid"
	appLog "calgrid/internal/log"
	"calgrid/internal/maintenance"
	"calgrid/internal/model"
	"calgrid/internal/nav"
	"calgrid/internal/source"
	"calgrid/internal/store"
	"calgrid/internal/ticker"
)

var (
	// ErrNotLoaded is returned before the first load has completed.
	ErrNotLoaded = errors.New("calendar data not loaded yet")
	// ErrStaleLoad is returned by a load whose result was discarded because a
	// newer load had been started in the meantime.
	ErrStaleLoad = errors.New("load superseded by a newer request")
)

// Loader fetches the input documents.
type Loader interface {
	Load(ctx context.Context) (source.Documents, error)
}

// Options configures a Controller.
type Options struct {
	// Location is the viewer's zone. Nil means time.Local.
	Location *time.Location
	// Classifier maps categories to bar classes. Nil means the defaults.
	Classifier *grid.Classifier
	// TickInterval is the live counter period; zero means one second.
	TickInterval time.Duration
	// Now is the clock. Nil means time.Now.
	Now func() time.Time
	// AfterRender, if set, is called after every successful render with
	// the fresh view. It may read the controller but must not navigate or
	// reload.
	AfterRender func(View)
}

// View is a consistent snapshot of what the page shows.
type View struct {
	RenderID string            `json:"render_id"`
	Cursor   nav.Cursor        `json:"cursor"`
	Grid     grid.Grid         `json:"grid"`
	Rows     []maintenance.Row `json:"maintenance"`
	LoadedAt time.Time         `json:"loaded_at"`
}

// Controller serializes every view operation. Loads may race; only the
// newest started load is allowed to replace the view.
type Controller struct {
	ctx    context.Context
	loader Loader
	opts   Options

	nav    *nav.Navigator
	ticker *ticker.Ticker

	// generation of the newest started load
	gen atomic.Uint64

	// renderMu orders renders against load results so the ticker and the
	// AfterRender hook always follow the latest state. Taken before mu.
	renderMu sync.Mutex

	mu         sync.RWMutex
	events     []model.Event
	categories []model.CategoryDescriptor
	loaded     bool
	loadErr    error
	loadedAt   time.Time
	grid       grid.Grid
	rows       []maintenance.Row
	renderID   string
}

// New returns a controller positioned at the current month. ctx bounds the
// lifetime of the live ticker.
func New(ctx context.Context, loader Loader, opts Options) *Controller {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		ctx:    ctx,
		loader: loader,
		opts:   opts,
		ticker: ticker.New(opts.TickInterval, opts.Now),
	}
	c.nav = nav.New(nav.CursorFor(opts.Now().In(opts.Location)), func(nav.Cursor) {
		c.render()
	})
	return c
}

// Reload fetches both documents and, if this is still the newest load,
// rebuilds the event store and re-renders. A failed load clears the view so
// that no partial data is shown.
func (c *Controller) Reload(ctx context.Context) error {
	gen := c.gen.Add(1)
	docs, err := c.loader.Load(ctx)

	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	c.mu.Lock()
	if gen != c.gen.Load() {
		c.mu.Unlock()
		appLog.Info("discarding stale load result", "generation", gen)
		return ErrStaleLoad
	}

	if err != nil {
		c.loaded = false
		c.loadErr = err
		c.events = nil
		c.categories = nil
		c.grid = grid.Grid{}
		c.rows = nil
		c.renderID = ""
		c.mu.Unlock()

		c.ticker.Stop()
		appLog.Error("data load failed", err, "generation", gen)
		return err
	}

	c.events = store.Normalize(docs.Calendar.Events, c.opts.Location)
	c.categories = docs.Categories.Categories
	c.loaded = true
	c.loadErr = nil
	c.loadedAt = c.opts.Now()
	c.mu.Unlock()

	appLog.Info("data loaded", "generation", gen, "events", len(docs.Calendar.Events), "categories", len(docs.Categories.Categories))
	c.renderLocked()
	return nil
}

// render rebuilds the grid and the maintenance rows for the current cursor
// and replaces the running ticker.
func (c *Controller) render() {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	c.renderLocked()
}

// renderLocked is render with renderMu held.
func (c *Controller) renderLocked() {
	c.mu.Lock()
	if !c.loaded {
		c.mu.Unlock()
		c.ticker.Stop()
		return
	}

	cursor := c.nav.Current()
	c.grid = grid.Build(c.events, cursor.Year, cursor.Month, grid.Options{
		Location:   c.opts.Location,
		Classifier: c.opts.Classifier,
	})
	c.rows = maintenance.Aggregate(c.events, c.categories, c.opts.Now())
	c.renderID = uuid.NewString()
	view := c.viewLocked()
	c.mu.Unlock()

	appLog.Debug("rendered", "render_id", view.RenderID, "cursor", cursor.String(), "invalid_events", view.Grid.Invalid)

	c.ticker.Start(c.ctx, c.tick)

	if c.opts.AfterRender != nil {
		c.opts.AfterRender(view)
	}
}

func (c *Controller) tick(now time.Time) {
	c.mu.Lock()
	maintenance.RefreshAll(c.rows, now)
	c.mu.Unlock()
}

// View returns the current snapshot, the last load error, or ErrNotLoaded.
func (c *Controller) View() (View, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.stateErrLocked(); err != nil {
		return View{Cursor: c.nav.Current()}, err
	}
	return c.viewLocked(), nil
}

// Maintenance returns the live rows.
func (c *Controller) Maintenance() ([]maintenance.Row, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.stateErrLocked(); err != nil {
		return nil, err
	}
	return maintenance.Clone(c.rows), nil
}

// GridFor lays out an arbitrary month without moving the cursor.
func (c *Controller) GridFor(year int, month time.Month) (grid.Grid, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if err := c.stateErrLocked(); err != nil {
		return grid.Grid{}, err
	}
	return grid.Build(c.events, year, month, grid.Options{
		Location:   c.opts.Location,
		Classifier: c.opts.Classifier,
	}), nil
}

// Next moves to the following month and re-renders.
func (c *Controller) Next() (View, error) {
	c.nav.Next()
	return c.View()
}

// Previous moves to the preceding month and re-renders.
func (c *Controller) Previous() (View, error) {
	c.nav.Previous()
	return c.View()
}

// Cursor returns the current month.
func (c *Controller) Cursor() nav.Cursor {
	return c.nav.Current()
}

// Close stops the live ticker.
func (c *Controller) Close() {
	c.ticker.Stop()
}

func (c *Controller) stateErrLocked() error {
	if c.loadErr != nil {
		return c.loadErr
	}
	if !c.loaded {
		return ErrNotLoaded
	}
	return nil
}

func (c *Controller) viewLocked() View {
	return View{
		RenderID: c.renderID,
		Cursor:   nav.Cursor{Year: c.grid.Year, Month: c.grid.Month},
		Grid:     c.grid,
		Rows:     maintenance.Clone(c.rows),
		LoadedAt: c.loadedAt,
	}
}
