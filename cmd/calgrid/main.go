package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"calgrid/internal/capture"
	"calgrid/internal/config"
	"calgrid/internal/controller"
	"calgrid/internal/grid"
	appLog "calgrid/internal/log"
	"calgrid/internal/source"
	"calgrid/internal/web"
)

const shutdownTimeout = 10 * time.Second

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	capture    bool
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.capture {
		conf.Capture.Enabled = true
	}
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"calendar_source", conf.CalendarSource,
		"categories_source", conf.CategoriesSource,
		"refresh", conf.RefreshCron,
		"ics_count", len(conf.ICS),
		"capture", conf.Capture.Enabled,
		"once", flags.once,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := source.NewLoader(source.NewFetcher(conf.CacheDir), source.Options{
		Calendar:     source.Source{ID: "calendar", Location: conf.CalendarSource},
		Categories:   source.Source{ID: "categories", Location: conf.CategoriesSource},
		Feeds:        feedsFromConfig(conf.ICS),
		Location:     loc,
		BackfillDays: conf.ICSBackfillDays,
		HorizonDays:  conf.ICSHorizonDays,
	})

	if flags.once {
		if err := runOnce(ctx, loader, conf, loc); err != nil {
			appLog.Error("single run failed", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, loader, conf, loc); err != nil {
		appLog.Error("server exited with error", err)
		os.Exit(1)
	}
	appLog.Info("calgrid exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load once, print the current month and maintenance rows as JSON, and exit")
	flag.BoolVar(&cfg.capture, "capture", false, "Screenshot /calendar after every successful refresh")

	flag.Parse()
	return cfg
}

func feedsFromConfig(list []config.ICSConfig) []source.Feed {
	feeds := make([]source.Feed, 0, len(list))
	for _, c := range list {
		if c.URL == "" {
			continue
		}
		id := c.ID
		if id == "" {
			id = c.Name
		}
		if id == "" {
			id = c.URL
		}
		feeds = append(feeds, source.Feed{
			Source:   source.Source{ID: id, Location: c.URL},
			Category: c.Category,
		})
	}
	return feeds
}

func controllerOptions(conf *config.Config, loc *time.Location) controller.Options {
	return controller.Options{
		Location:     loc,
		Classifier:   grid.NewClassifier(conf.CategoryClasses),
		TickInterval: conf.TickInterval,
	}
}

func runOnce(ctx context.Context, loader controller.Loader, conf *config.Config, loc *time.Location) error {
	if conf.Capture.Enabled {
		appLog.Warn("capture needs the HTTP server; ignored with --once")
	}
	ctrl := controller.New(ctx, loader, controllerOptions(conf, loc))
	defer ctrl.Close()

	if err := ctrl.Reload(ctx); err != nil {
		return err
	}
	view, err := ctrl.View()
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}

func serve(ctx context.Context, loader controller.Loader, conf *config.Config, loc *time.Location) error {
	opts := controllerOptions(conf, loc)
	if conf.Capture.Enabled {
		runner := capture.NewRunner(capture.Options{
			URL:        captureURL(conf),
			OutputPath: conf.Capture.OutputPath,
			Width:      conf.Capture.Width,
			Height:     conf.Capture.Height,
		})
		opts.AfterRender = func(controller.View) { runner.Trigger(ctx) }
	}

	ctrl := controller.New(ctx, loader, opts)
	defer ctrl.Close()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, ctrl).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// A failed first load is reported by the page; the schedule retries.
	if err := ctrl.Reload(ctx); err != nil {
		appLog.Error("initial load failed", err)
	}

	stopRefresh, err := ctrl.StartRefresh(ctx, conf.RefreshCron)
	if err != nil {
		_ = srv.Close()
		return err
	}
	defer stopRefresh()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err, ok := <-errCh:
		if ok {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// captureURL points the headless browser at the local /calendar page,
// carrying basic auth credentials when they are configured.
func captureURL(conf *config.Config) string {
	host, port, err := net.SplitHostPort(conf.Listen)
	if err != nil {
		host, port = "127.0.0.1", "8080"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	u := url.URL{Scheme: "http", Host: net.JoinHostPort(host, port), Path: "/calendar"}
	if conf.BasicAuth != nil && conf.BasicAuth.Username != "" {
		u.User = url.UserPassword(conf.BasicAuth.Username, conf.BasicAuth.Password)
	}
	return u.String()
}
