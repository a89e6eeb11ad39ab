package grid

import (
	"encoding/json"
	"math"
	"os"
	"strings"
	"testing"
	"time"

	"calgrid/internal/model"
)

func at(y int, m time.Month, d, h, mi int) time.Time {
	return time.Date(y, m, d, h, mi, 0, 0, time.UTC)
}

func event(title, category string, start, end time.Time) model.Event {
	return model.Event{Title: title, Category: category, Start: start, End: end, Valid: true, HasEnd: !end.IsZero()}
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestBuildPlacesExampleEvent(t *testing.T) {
	ev := event("Lecture", "Mathematics", at(2024, time.March, 15, 9, 0), at(2024, time.March, 15, 10, 30))

	g := Build([]model.Event{ev}, 2024, time.March, Options{Location: time.UTC})

	if len(g.Days) != 31 {
		t.Fatalf("expected 31 day slots, got %d", len(g.Days))
	}
	slot := g.Days[14]
	if slot.Key != "2024-03-15" || slot.Label != "Fri 15" {
		t.Fatalf("unexpected slot %q / %q", slot.Key, slot.Label)
	}
	if len(slot.Bars) != 1 {
		t.Fatalf("expected one bar, got %d", len(slot.Bars))
	}
	bar := slot.Bars[0]
	if !approx(bar.LeftPercent, 37.5) {
		t.Errorf("left = %v, want 37.5", bar.LeftPercent)
	}
	if !approx(bar.WidthPercent, 6.25) {
		t.Errorf("width = %v, want 6.25", bar.WidthPercent)
	}
	if bar.Class != ClassReading {
		t.Errorf("class = %q, want %q", bar.Class, ClassReading)
	}

	for i, d := range g.Days {
		if i != 14 && len(d.Bars) != 0 {
			t.Errorf("day %s should be empty", d.Key)
		}
	}
}

func TestBuildTitleAndHours(t *testing.T) {
	g := Build(nil, 2024, time.March, Options{Location: time.UTC})
	if g.Title != "March 2024" {
		t.Errorf("title = %q", g.Title)
	}
	if len(g.HourLabels) != 24 || g.HourLabels[0] != "00:00" || g.HourLabels[23] != "23:00" {
		t.Errorf("unexpected hour labels %v", g.HourLabels)
	}
	if g.Days[0].Label != "Fri 1" {
		t.Errorf("March 1st 2024 is a Friday, got %q", g.Days[0].Label)
	}
}

func TestDaysIn(t *testing.T) {
	cases := []struct {
		year  int
		month time.Month
		want  int
	}{
		{2024, time.February, 29},
		{2023, time.February, 28},
		{1900, time.February, 28},
		{2000, time.February, 29},
		{2024, time.April, 30},
		{2024, time.December, 31},
	}
	for _, tc := range cases {
		if got := DaysIn(tc.year, tc.month); got != tc.want {
			t.Errorf("DaysIn(%d, %s) = %d, want %d", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestBuildExcludesOtherMonths(t *testing.T) {
	events := []model.Event{
		event("late", "", at(2024, time.February, 29, 23, 0), at(2024, time.March, 1, 1, 0)),
		event("in", "", at(2024, time.March, 31, 23, 30), at(2024, time.April, 1, 0, 30)),
		event("next", "", at(2024, time.April, 1, 8, 0), time.Time{}),
	}

	march := Build(events, 2024, time.March, Options{Location: time.UTC})
	if got := countBars(march); got != 1 {
		t.Fatalf("march should hold exactly one bar, got %d", got)
	}
	if bars := march.Days[30].Bars; len(bars) != 1 || bars[0].Title != "in" {
		t.Fatalf("expected the March 31 event on the last day, got %+v", bars)
	}

	feb := Build(events, 2024, time.February, Options{Location: time.UTC})
	if got := countBars(feb); got != 1 {
		t.Fatalf("february should hold exactly one bar, got %d", got)
	}
	april := Build(events, 2024, time.April, Options{Location: time.UTC})
	if got := countBars(april); got != 1 {
		t.Fatalf("april should hold exactly one bar, got %d", got)
	}
}

func TestBuildUsesViewerLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	// 20:00 UTC on the 31st is 05:00 on April 1st in UTC+9.
	ev := event("shifted", "", at(2024, time.March, 31, 20, 0), time.Time{})

	if got := countBars(Build([]model.Event{ev}, 2024, time.March, Options{Location: loc})); got != 0 {
		t.Fatalf("event belongs to April in UTC+9, march got %d bars", got)
	}
	april := Build([]model.Event{ev}, 2024, time.April, Options{Location: loc})
	if bars := april.Days[0].Bars; len(bars) != 1 || !approx(bars[0].LeftPercent, 5*60.0/1440*100) {
		t.Fatalf("unexpected april placement %+v", bars)
	}
}

func TestBuildWidthFloorAndDefaults(t *testing.T) {
	start := at(2024, time.March, 2, 12, 0)
	events := []model.Event{
		event("zero", "", start, start),
		event("negative", "", start, start.Add(-3*time.Hour)),
		event("open", "", start, time.Time{}),
	}
	g := Build(events, 2024, time.March, Options{Location: time.UTC})
	bars := g.Days[1].Bars
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	for _, b := range bars[:2] {
		if !approx(b.WidthPercent, MinWidthPercent) {
			t.Errorf("%s: width = %v, want floor %v", b.Title, b.WidthPercent, MinWidthPercent)
		}
	}
	if !approx(bars[2].WidthPercent, 60.0/1440*100) {
		t.Errorf("open-ended event should span 60 minutes, got %v", bars[2].WidthPercent)
	}
	for _, b := range bars {
		if b.LeftPercent < 0 || b.LeftPercent >= 100 || b.WidthPercent < MinWidthPercent {
			t.Errorf("bar out of bounds: %+v", b)
		}
	}
}

func TestBuildSkipsAndCountsInvalidStarts(t *testing.T) {
	events := []model.Event{
		{Title: "broken"},
		event("ok", "", at(2024, time.March, 3, 6, 0), time.Time{}),
	}
	g := Build(events, 2024, time.March, Options{Location: time.UTC})
	if g.Invalid != 1 {
		t.Errorf("invalid = %d, want 1", g.Invalid)
	}
	if got := countBars(g); got != 1 {
		t.Errorf("expected one placed bar, got %d", got)
	}
}

func TestTooltip(t *testing.T) {
	withEnd := event("Deploy", "", at(2024, time.March, 4, 8, 5), at(2024, time.March, 4, 9, 0))
	withEnd.Description = "ship it"
	open := event("Call", "Job", at(2024, time.March, 4, 13, 0), time.Time{})

	g := Build([]model.Event{withEnd, open}, 2024, time.March, Options{Location: time.UTC})
	bars := g.Days[3].Bars

	want := "Start: 08:05\nEnd: 09:00\nTitle: Deploy\nDescription: ship it\nCategory: —"
	if bars[0].Tooltip != want {
		t.Errorf("tooltip = %q, want %q", bars[0].Tooltip, want)
	}
	if !strings.Contains(bars[1].Tooltip, "End: \n") || !strings.Contains(bars[1].Tooltip, "Description: —") {
		t.Errorf("open event tooltip should have blank end and placeholder description: %q", bars[1].Tooltip)
	}
	if !strings.HasSuffix(bars[1].Tooltip, "Category: Job") {
		t.Errorf("tooltip should end with the category: %q", bars[1].Tooltip)
	}
}

func TestClassifierExactMatch(t *testing.T) {
	c := NewClassifier(map[string]string{"Deep Work": "focus", "job": "career"})

	cases := map[string]string{
		"Mathematics":   ClassReading,
		"Reading":       ClassReading,
		" Practical":    ClassPractical,
		" running ":     ClassRunning,
		"deep work":     "focus",
		"Job":           "career",
		"jobsearch":     ClassNone,
		"peer support":  ClassNone,
		"":              ClassNone,
		"PROGRAMMING":   ClassPractical,
		"crisis":        ClassCrisis,
		"Crisis Line":   ClassNone,
		"unknown thing": ClassNone,
	}
	for in, want := range cases {
		if got := c.Classify(in); got != want {
			t.Errorf("Classify(%q) = %q, want %q", in, got, want)
		}
	}

	var nilClassifier *Classifier
	if got := nilClassifier.Classify("Support"); got != ClassSupport {
		t.Errorf("nil classifier should use defaults, got %q", got)
	}
}

func TestSampleCategoriesHaveClasses(t *testing.T) {
	data, err := os.ReadFile("../../assets/categories.json")
	if err != nil {
		t.Fatal(err)
	}
	var doc model.CategoriesDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Categories) == 0 {
		t.Fatal("sample categories are empty")
	}
	c := NewClassifier(nil)
	for _, cat := range doc.Categories {
		if c.Classify(cat.Label()) == ClassNone {
			t.Errorf("sample category %q has no bar class", cat.Label())
		}
	}
}

func countBars(g Grid) int {
	n := 0
	for _, d := range g.Days {
		n += len(d.Bars)
	}
	return n
}
