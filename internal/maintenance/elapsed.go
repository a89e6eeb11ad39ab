package maintenance

import (
	"fmt"
	"time"
)

// Sign tells whether the target lies ahead of or behind "now".
type Sign string

const (
	// SignAhead: the target is in the future.
	SignAhead Sign = "ahead"
	// SignBehind: the target is in the past or exactly now.
	SignBehind Sign = "behind"
)

// Marker is the short glyph printed in front of a formatted counter.
func (s Sign) Marker() string {
	if s == SignAhead {
		return "T-"
	}
	return "T+"
}

// Fixed-length calendar approximation. Years are 365 days and months are 30
// days; this is not calendar-accurate and changing it would shift every
// displayed counter.
const (
	daysPerYear  = 365
	daysPerMonth = 30

	msPerDay = 24 * 60 * 60 * 1000
)

// Elapsed is a years/months/days/hours/minutes/seconds decomposition of the
// distance between a target and "now".
type Elapsed struct {
	Sign    Sign  `json:"sign"`
	Years   int64 `json:"years"`
	Months  int64 `json:"months"`
	Days    int64 `json:"days"`
	Hours   int64 `json:"hours"`
	Minutes int64 `json:"minutes"`
	Seconds int64 `json:"seconds"`
}

// Decompose splits |now - target| into whole units. Months never exceed 12
// since at most 364 days remain after whole years are taken out.
func Decompose(target, now time.Time) Elapsed {
	sign := SignBehind
	if target.After(now) {
		sign = SignAhead
	}

	ms := absMillis(target, now)
	totalSeconds := ms / 1000
	totalMinutes := totalSeconds / 60
	totalHours := totalMinutes / 60
	totalDays := totalHours / 24

	remaining := totalDays % daysPerYear
	return Elapsed{
		Sign:    sign,
		Years:   totalDays / daysPerYear,
		Months:  remaining / daysPerMonth,
		Days:    remaining % daysPerMonth,
		Hours:   totalHours % 24,
		Minutes: totalMinutes % 60,
		Seconds: totalSeconds % 60,
	}
}

// Total returns the approximate length represented by the components.
func (e Elapsed) Total() time.Duration {
	days := e.Years*daysPerYear + e.Months*daysPerMonth + e.Days
	return time.Duration(days)*24*time.Hour +
		time.Duration(e.Hours)*time.Hour +
		time.Duration(e.Minutes)*time.Minute +
		time.Duration(e.Seconds)*time.Second
}

// String formats the components as "T+ 01y 02m 03d 04h 05m 06s".
func (e Elapsed) String() string {
	return fmt.Sprintf("%s %02dy %02dm %02dd %02dh %02dm %02ds",
		e.Sign.Marker(), e.Years, e.Months, e.Days, e.Hours, e.Minutes, e.Seconds)
}

// Format decomposes and formats in one step.
func Format(target, now time.Time) string {
	return Decompose(target, now).String()
}

// DaysSince is the unsigned distance between target and now in fractional days.
func DaysSince(target, now time.Time) float64 {
	return float64(absMillis(target, now)) / msPerDay
}

// absMillis is computed from Unix milliseconds so that distances beyond the
// range of time.Duration are not clamped.
func absMillis(target, now time.Time) int64 {
	d := now.UnixMilli() - target.UnixMilli()
	if d < 0 {
		return -d
	}
	return d
}
