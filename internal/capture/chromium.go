// Package capture screenshots the rendered /calendar page with a headless
// Chromium driven by chromedp.
package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	appLog "calgrid/internal/log"
)

// Default capture parameters.
const (
	DefaultWidth   = 1280
	DefaultHeight  = 900
	DefaultTimeout = 30 * time.Second

	// readySelector matches the page root once calendar data is loaded.
	readySelector = `[data-ready="true"]`
)

// Options defines parameters for one screenshot.
type Options struct {
	// URL to capture, e.g. "http://127.0.0.1:8080/calendar".
	URL string
	// OutputPath is where the PNG is written.
	OutputPath string
	// Width and Height are the viewport size in pixels. Zero means the
	// defaults.
	Width  int
	Height int
	// Timeout bounds the whole capture. Zero means DefaultTimeout.
	Timeout time.Duration
}

func (o Options) withDefaults() (Options, error) {
	if o.URL == "" {
		return o, errors.New("capture: URL is required")
	}
	if o.OutputPath == "" {
		return o, errors.New("capture: OutputPath is required")
	}
	if o.Width <= 0 {
		o.Width = DefaultWidth
	}
	if o.Height <= 0 {
		o.Height = DefaultHeight
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o, nil
}

// CalendarPNG navigates to opts.URL, waits until the page reports
// data-ready="true" and writes a full-page PNG to opts.OutputPath. The file
// is replaced atomically.
func CalendarPNG(parentCtx context.Context, opts Options) error {
	opts, err := opts.withDefaults()
	if err != nil {
		return err
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height)),
		chromedp.Navigate(opts.URL),
		chromedp.WaitVisible(readySelector, chromedp.ByQuery),
		chromedp.FullScreenshot(&png, 100),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return fmt.Errorf("capture: chromedp run failed: %w", err)
	}

	return writeFileAtomic(opts.OutputPath, png)
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("capture: create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".calgrid-preview-*.png")
	if err != nil {
		return fmt.Errorf("capture: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("capture: write PNG: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("capture: close PNG: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("capture: replace PNG: %w", err)
	}
	return nil
}

// Runner triggers captures in the background. A trigger that arrives while a
// capture is running is coalesced into one follow-up capture.
type Runner struct {
	opts Options
	run  func(context.Context, Options) error

	mu      sync.Mutex
	running bool
	pending bool
}

// NewRunner returns a Runner that captures with opts.
func NewRunner(opts Options) *Runner {
	return &Runner{opts: opts, run: CalendarPNG}
}

// Trigger schedules a capture. It never blocks.
func (r *Runner) Trigger(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.pending = true
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.loop(ctx)
}

func (r *Runner) loop(ctx context.Context) {
	for {
		start := time.Now()
		if err := r.run(ctx, r.opts); err != nil {
			appLog.Error("capture failed", err, "url", r.opts.URL)
		} else {
			appLog.Info("capture written", "path", r.opts.OutputPath, "elapsed", time.Since(start).String())
		}

		r.mu.Lock()
		if !r.pending || ctx.Err() != nil {
			r.running = false
			r.pending = false
			r.mu.Unlock()
			return
		}
		r.pending = false
		r.mu.Unlock()
	}
}
