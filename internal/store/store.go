// Package store turns loosely-typed calendar records into normalized events.
package store

import (
	"fmt"
	"math"
	"strings"
	"time"

	"calgrid/internal/model"
)

// localLayouts are parsed in the display location; they carry no offset.
// A bare date is local midnight, not UTC midnight, so it never moves to the
// previous day west of UTC.
var localLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Normalize converts raw records into events, one per record and in input
// order. It never drops a record and never fails: string fields default to
// "", an unparseable start yields an event with Valid=false and an
// unparseable or missing end yields HasEnd=false.
//
// loc is the zone used for timestamps without an explicit offset. A nil loc
// means time.Local.
func Normalize(records []model.RawRecord, loc *time.Location) []model.Event {
	if loc == nil {
		loc = time.Local
	}
	out := make([]model.Event, 0, len(records))
	for _, rec := range records {
		out = append(out, normalizeOne(rec, loc))
	}
	return out
}

func normalizeOne(rec model.RawRecord, loc *time.Location) model.Event {
	ev := model.Event{
		Title:       text(rec["title"]),
		Description: text(rec["description"]),
		Category:    text(rec["category"]),
	}
	if start, ok := ParseTime(rec["start"], loc); ok {
		ev.Start = start
		ev.Valid = true
	}
	if end, ok := ParseTime(rec["end"], loc); ok {
		ev.End = end
		ev.HasEnd = true
	}
	return ev
}

// text stringifies a scalar JSON value. Missing, null and empty values become "".
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return fmt.Sprint(t)
	default:
		return fmt.Sprint(t)
	}
}

// ParseTime parses a raw timestamp value. Strings are tried as RFC3339 first
// and then as offset-less local layouts in loc; JSON numbers are Unix
// milliseconds.
func ParseTime(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.Local
	}
	switch t := v.(type) {
	case string:
		return parseTimeString(t, loc)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)).In(loc), true
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.In(loc), true
	default:
		return time.Time{}, false
	}
}

func parseTimeString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
