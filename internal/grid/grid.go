// Package grid lays out events on a month-by-day-by-hour time grid.
package grid

import (
	"fmt"
	"math"
	"strings"
	"time"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const (
	minutesPerDay = 24 * 60

	// MinWidthPercent keeps zero and negative length events visible.
	MinWidthPercent = 2.0

	dateKeyLayout = "2006-01-02"
	clockLayout   = "15:04"
	placeholder   = "—"
)

// Bar is the horizontal placement of one event within a 24-hour track.
type Bar struct {
	LeftPercent  float64 `json:"left_percent"`
	WidthPercent float64 `json:"width_percent"`
	Class        string  `json:"class"`
	Category     string  `json:"category"`
	Title        string  `json:"title"`
	Tooltip      string  `json:"tooltip"`
}

// DaySlot is one calendar day's row of bars.
type DaySlot struct {
	Date  time.Time `json:"date"`
	Key   string    `json:"key"`
	Label string    `json:"label"`
	Bars  []Bar     `json:"bars"`
}

// Grid is the layout of one month.
type Grid struct {
	Year       int        `json:"year"`
	Month      time.Month `json:"month"`
	Title      string     `json:"title"`
	HourLabels []string   `json:"hour_labels"`
	Days       []DaySlot  `json:"days"`

	// Invalid counts events that were skipped because their start could
	// not be parsed.
	Invalid int `json:"invalid"`
}

// Options controls how Build interprets event times and categories.
type Options struct {
	// Location is the viewer's zone. Nil means time.Local.
	Location *time.Location
	// Classifier maps categories to bar classes. Nil means DefaultClasses.
	Classifier *Classifier
}

// Build lays out events for the given month. Only events whose start falls
// on a day of (year, month) in opts.Location are placed; an event that runs
// past midnight stays on its start day and never spills into the next month.
func Build(events []model.Event, year int, month time.Month, opts Options) Grid {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	g := Grid{
		Year:       year,
		Month:      month,
		Title:      fmt.Sprintf("%s %d", month, year),
		HourLabels: hourLabels(),
	}

	byDate, invalid := bucketByDate(events, year, month, loc)
	g.Invalid = invalid
	if invalid > 0 {
		appLog.Warn("grid: skipped events with unparseable start",
			"year", year,
			"month", int(month),
			"count", invalid,
		)
	}

	n := DaysIn(year, month)
	g.Days = make([]DaySlot, 0, n)
	for day := 1; day <= n; day++ {
		date := time.Date(year, month, day, 0, 0, 0, 0, loc)
		key := date.Format(dateKeyLayout)
		dayEvents := byDate[key]

		slot := DaySlot{
			Date:  date,
			Key:   key,
			Label: fmt.Sprintf("%s %d", date.Weekday().String()[:3], day),
			Bars:  make([]Bar, 0, len(dayEvents)),
		}
		for _, ev := range dayEvents {
			slot.Bars = append(slot.Bars, place(ev, loc, opts.Classifier))
		}
		g.Days = append(g.Days, slot)
	}

	return g
}

// DaysIn returns the number of days in the given month, leap years included.
func DaysIn(year int, month time.Month) int {
	// Day 0 of the next month normalizes to the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func bucketByDate(events []model.Event, year int, month time.Month, loc *time.Location) (map[string][]model.Event, int) {
	byDate := make(map[string][]model.Event)
	invalid := 0
	for _, ev := range events {
		if !ev.Valid {
			invalid++
			continue
		}
		start := ev.Start.In(loc)
		if start.Year() != year || start.Month() != month {
			continue
		}
		key := start.Format(dateKeyLayout)
		byDate[key] = append(byDate[key], ev)
	}
	return byDate, invalid
}

func place(ev model.Event, loc *time.Location, cls *Classifier) Bar {
	start := ev.Start.In(loc)
	startMins := minutesFromMidnight(start)

	endMins := startMins + model.DefaultDuration.Minutes()
	if ev.HasEnd {
		endMins = minutesFromMidnight(ev.End.In(loc))
	}

	width := (endMins - startMins) / minutesPerDay * 100
	return Bar{
		LeftPercent:  startMins / minutesPerDay * 100,
		WidthPercent: math.Max(width, MinWidthPercent),
		Class:        cls.Classify(ev.Category),
		Category:     ev.Category,
		Title:        ev.Title,
		Tooltip:      tooltip(ev, loc),
	}
}

func minutesFromMidnight(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) + float64(t.Second())/60
}

func tooltip(ev model.Event, loc *time.Location) string {
	end := ""
	if ev.HasEnd {
		end = ev.End.In(loc).Format(clockLayout)
	}
	lines := []string{
		"Start: " + ev.Start.In(loc).Format(clockLayout),
		"End: " + end,
		"Title: " + ev.Title,
		"Description: " + orPlaceholder(ev.Description),
		"Category: " + orPlaceholder(ev.Category),
	}
	return strings.Join(lines, "\n")
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}

func hourLabels() []string {
	labels := make([]string, 24)
	for h := range labels {
		labels[h] = fmt.Sprintf("%02d:00", h)
	}
	return labels
}
