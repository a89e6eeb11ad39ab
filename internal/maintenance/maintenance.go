// Package maintenance derives "time since last occurrence" counters per
// category and grades them into freshness tiers.
package maintenance

import (
	"strings"
	"time"

	"calgrid/internal/model"
)

const (
	// NoHistoryCounter is shown for categories without any matching event.
	NoHistoryCounter = "—"
	// PlaceholderLabel is the single row produced for an empty category list.
	PlaceholderLabel = "No categories defined"
)

// Record is the most recent event of a category.
type Record struct {
	Start    time.Time `json:"start"`
	Title    string    `json:"title"`
	Category string    `json:"category"`
}

// Row is one line of the maintenance list.
type Row struct {
	Label   string   `json:"label"`
	Key     string   `json:"key"`
	Tier    Tier     `json:"tier"`
	Counter string   `json:"counter"`
	Elapsed *Elapsed `json:"elapsed,omitempty"`
	Last    *Record  `json:"last,omitempty"`

	NoHistory   bool `json:"no_history"`
	Placeholder bool `json:"placeholder,omitempty"`
}

// Refresh recomputes the counter and tier against now. Rows without history
// are re-confirmed stale; placeholder rows are left alone.
func (r *Row) Refresh(now time.Time) {
	switch {
	case r.Placeholder:
		return
	case r.Last == nil:
		r.NoHistory = true
		r.Tier = TierStale
		r.Counter = NoHistoryCounter
		r.Elapsed = nil
	default:
		e := Decompose(r.Last.Start, now)
		r.Elapsed = &e
		r.Counter = e.String()
		r.Tier = ClassifyTier(r.Last.Start, now)
	}
}

// LatestByCategory scans events once and keeps, per category key, the event
// with the latest start. On an exact tie the event seen last wins. Events
// with an unparseable start or an empty category key are ignored.
func LatestByCategory(events []model.Event) map[string]Record {
	latest := make(map[string]Record)
	for _, ev := range events {
		if !ev.Valid {
			continue
		}
		key := model.CategoryKey(ev.Category)
		if key == "" {
			continue
		}
		existing, ok := latest[key]
		if ok && ev.Start.Before(existing.Start) {
			continue
		}
		latest[key] = Record{
			Start:    ev.Start,
			Title:    ev.Title,
			Category: strings.TrimSpace(ev.Category),
		}
	}
	return latest
}

// Aggregate produces one row per category, in the order given. An empty
// category list yields a single placeholder row rather than no rows.
func Aggregate(events []model.Event, categories []model.CategoryDescriptor, now time.Time) []Row {
	if len(categories) == 0 {
		return []Row{{
			Label:       PlaceholderLabel,
			Tier:        TierStale,
			Counter:     NoHistoryCounter,
			Placeholder: true,
		}}
	}

	latest := LatestByCategory(events)
	rows := make([]Row, 0, len(categories))
	for _, cat := range categories {
		row := Row{
			Label: cat.Label(),
			Key:   cat.Key(),
		}
		if rec, ok := latest[row.Key]; ok {
			row.Last = &rec
		}
		row.Refresh(now)
		rows = append(rows, row)
	}
	return rows
}

// RefreshAll refreshes every row in place.
func RefreshAll(rows []Row, now time.Time) {
	for i := range rows {
		rows[i].Refresh(now)
	}
}

// Clone deep-copies rows so callers can hand them out while the originals
// keep being refreshed.
func Clone(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		if r.Elapsed != nil {
			e := *r.Elapsed
			r.Elapsed = &e
		}
		if r.Last != nil {
			l := *r.Last
			r.Last = &l
		}
		out[i] = r
	}
	return out
}
