// Package source loads the calendar and categories documents, plus any ICS
// feeds, from disk or HTTP.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"calgrid/internal/ics"
	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

// Documents is the parsed input of one load.
type Documents struct {
	Calendar   model.CalendarDocument
	Categories model.CategoriesDocument
}

// Feed is an ICS subscription merged into the calendar document.
type Feed struct {
	Source
	// Category is used for events without their own CATEGORIES property.
	Category string
}

// Options configures a Loader.
type Options struct {
	Calendar   Source
	Categories Source
	Feeds      []Feed

	// Location is the display zone that ICS occurrences are converted to.
	Location *time.Location
	// BackfillDays / HorizonDays bound ICS recurrence expansion around now.
	BackfillDays int
	HorizonDays  int

	// Now is the clock used for the ICS expansion window. Nil means time.Now.
	Now func() time.Time
}

// Loader fetches both JSON documents concurrently. A load succeeds only when
// both documents were fetched and decoded; ICS feed failures are logged and
// skipped since the feeds only enrich the calendar.
type Loader struct {
	fetcher *Fetcher
	opts    Options
}

// NewLoader returns a Loader reading through fetcher.
func NewLoader(fetcher *Fetcher, opts Options) *Loader {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Loader{fetcher: fetcher, opts: opts}
}

// Load fetches and decodes the documents.
func (l *Loader) Load(ctx context.Context) (Documents, error) {
	var docs Documents
	var feedRecords []model.RawRecord

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return l.fetchJSON(gctx, l.opts.Calendar, &docs.Calendar)
	})
	g.Go(func() error {
		return l.fetchJSON(gctx, l.opts.Categories, &docs.Categories)
	})
	if len(l.opts.Feeds) > 0 {
		g.Go(func() error {
			feedRecords = l.loadFeeds(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Documents{}, err
	}

	docs.Calendar.Events = append(docs.Calendar.Events, feedRecords...)
	appLog.Info("documents loaded",
		"events", len(docs.Calendar.Events),
		"feed_events", len(feedRecords),
		"categories", len(docs.Categories.Categories),
	)
	return docs, nil
}

func (l *Loader) fetchJSON(ctx context.Context, src Source, v any) error {
	res, err := l.fetcher.Fetch(ctx, src)
	if err != nil {
		return fmt.Errorf("load %s: %w", src.ID, err)
	}
	if err := json.Unmarshal(res.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", src.ID, err)
	}
	return nil
}

func (l *Loader) loadFeeds(ctx context.Context) []model.RawRecord {
	now := l.opts.Now().In(l.opts.Location)
	cfg := ics.ExpandConfig{
		DisplayLocation: l.opts.Location,
		RangeStart:      now.AddDate(0, 0, -l.opts.BackfillDays),
		RangeEnd:        now.AddDate(0, 0, l.opts.HorizonDays),
	}

	records := make([]model.RawRecord, 0)
	for _, feed := range l.opts.Feeds {
		res, err := l.fetcher.Fetch(ctx, feed.Source)
		if err != nil {
			appLog.Error("ics feed fetch failed", err, "id", feed.ID, "url", redactURL(feed.Location))
			continue
		}
		parsed, err := ics.ParseICS(feed.ID, res.Body)
		if err != nil {
			continue
		}
		expanded, err := ics.ExpandOccurrences(parsed, cfg)
		if err != nil {
			appLog.Error("ics feed expand failed", err, "id", feed.ID)
			continue
		}
		records = append(records, ics.ToRecords(expanded.Occurrences, feed.Category)...)
	}
	return records
}
