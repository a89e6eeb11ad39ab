package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "calgrid/internal/log"
	"calgrid/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// Occurrence is a single concrete instance of a feed event in the display
// timezone.
type Occurrence struct {
	SourceID    string
	UID         string
	InstanceKey string

	Summary     string
	Description string
	Category    string
	AllDay      bool

	Start time.Time
	// End is zero when the feed gave no end for a timed event.
	End time.Time
}

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone occurrences are converted to.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps expansion of unbounded rules. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the expanded occurrences and the UIDs that hit the cap.
type ExpandResult struct {
	Occurrences     []Occurrence
	TruncatedEvents []string
}

// ExpandOccurrences expands single events, RRULE recurrences (minus EXDATEs)
// and RECURRENCE-ID overrides into occurrences inside the configured window,
// sorted by start.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	uids := make([]string, 0)

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			uids = append(uids, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	all := make([]Occurrence, 0)
	for _, uid := range uids {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseByUID[uid] {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			all = append(all, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start.Before(all[j].Start)
	})
	result.Occurrences = all
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []Occurrence {
	if o, ok := findOverrideForStart(overrides, ev.Start); ok {
		ev = o
	}
	if !inRange(ev.Start, effectiveEnd(ev.Start, ev.End), cfg) {
		return nil
	}
	return []Occurrence{makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]Occurrence, bool) {
	out := make([]Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Widen the lower bound by the event length so instances that started
	// before the window but are still running are kept.
	dur := time.Duration(0)
	if !ev.End.IsZero() {
		dur = ev.End.Sub(ev.Start)
	}
	loc := ev.Start.Location()
	occTimes := set.Between(cfg.RangeStart.Add(-dur).In(loc), cfg.RangeEnd.In(loc), true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		var occEnd time.Time
		if ev.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.AddDate(0, 0, 1)
		} else if !ev.End.IsZero() {
			occEnd = occStart.Add(dur)
		}

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			out = append(out, makeOccurrence(o, o.Start, o.End, cfg.DisplayLocation))
			continue
		}
		out = append(out, makeOccurrence(ev, occStart, occEnd, cfg.DisplayLocation))
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) Occurrence {
	occ := Occurrence{
		SourceID:    ev.SourceID,
		UID:         ev.UID,
		Summary:     ev.Summary,
		Description: ev.Description,
		Category:    ev.Category(),
		AllDay:      ev.AllDay,
		Start:       start.In(displayLoc),
	}
	if !end.IsZero() {
		occ.End = end.In(displayLoc)
	}
	occ.InstanceKey = occ.Start.Format(time.RFC3339Nano)
	return occ
}

func effectiveEnd(start, end time.Time) time.Time {
	if end.IsZero() {
		return start.Add(model.DefaultDuration)
	}
	return end
}

func inRange(start, end time.Time, cfg ExpandConfig) bool {
	return !end.Before(cfg.RangeStart) && !start.After(cfg.RangeEnd)
}

// endOfDay is the last second of t's day. The grid keeps an event on its
// start day, so an all-day occurrence fills that day's track.
func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// ToRecords converts occurrences into calendar records. fallbackCategory is
// used for occurrences without a category of their own.
func ToRecords(occs []Occurrence, fallbackCategory string) []model.RawRecord {
	out := make([]model.RawRecord, 0, len(occs))
	for _, occ := range occs {
		category := occ.Category
		if category == "" {
			category = fallbackCategory
		}
		rec := model.RawRecord{
			"title":       occ.Summary,
			"description": occ.Description,
			"category":    category,
			"start":       occ.Start.Format(time.RFC3339),
		}
		switch {
		case occ.AllDay:
			rec["end"] = endOfDay(occ.Start).Format(time.RFC3339)
		case !occ.End.IsZero():
			rec["end"] = occ.End.Format(time.RFC3339)
		}
		out = append(out, rec)
	}
	return out
}
