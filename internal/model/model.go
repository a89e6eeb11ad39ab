package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode"
)

// DefaultDuration is the effective length of an event that has no usable end.
const DefaultDuration = 60 * time.Minute

// RawRecord is one loosely-typed entry of the calendar document's "events"
// array. Any key may be missing or hold an unexpected JSON type; the Event
// Store is responsible for normalizing it.
type RawRecord map[string]any

// Event is a normalized calendar occurrence. Events are values and are never
// mutated after the store builds them.
type Event struct {
	Title       string
	Description string
	Category    string

	Start time.Time
	End   time.Time

	// Valid is false when the raw start could not be parsed. Such events
	// can not be placed on the grid and do not count towards maintenance.
	Valid bool

	// HasEnd is false when the raw end was missing or unparseable.
	HasEnd bool
}

// EffectiveEnd returns End, or Start+DefaultDuration when no end is known.
func (e Event) EffectiveEnd() time.Time {
	if e.HasEnd {
		return e.End
	}
	return e.Start.Add(DefaultDuration)
}

// CategoryKey normalizes a category label for matching: lower-cased with all
// whitespace removed, so "Running", "running " and "run ning" collide.
func CategoryKey(label string) string {
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range strings.ToLower(label) {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CategoryDescriptor is one entry of the categories document. It is either a
// bare label or an object with a name or id plus optional display metadata.
type CategoryDescriptor struct {
	Name string
	ID   string
	Meta map[string]any
}

// unnamedCategory is shown for descriptors that carry neither name nor id.
const unnamedCategory = "—"

// Label is the display text of the descriptor.
func (c CategoryDescriptor) Label() string {
	if c.Name != "" {
		return c.Name
	}
	if c.ID != "" {
		return c.ID
	}
	return unnamedCategory
}

// Key is the normalized identity of the descriptor.
func (c CategoryDescriptor) Key() string {
	return CategoryKey(c.Label())
}

func (c *CategoryDescriptor) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		*c = CategoryDescriptor{Name: label}
		return nil
	}

	var obj map[string]any
	if err := json.Unmarshal(data, &obj); err != nil {
		return errors.New("category must be a string or an object")
	}
	out := CategoryDescriptor{Meta: map[string]any{}}
	for k, v := range obj {
		switch k {
		case "name":
			out.Name, _ = v.(string)
		case "id":
			out.ID, _ = v.(string)
		default:
			out.Meta[k] = v
		}
	}
	*c = out
	return nil
}

func (c CategoryDescriptor) MarshalJSON() ([]byte, error) {
	if c.ID == "" && len(c.Meta) == 0 {
		return json.Marshal(c.Name)
	}
	obj := make(map[string]any, len(c.Meta)+2)
	for k, v := range c.Meta {
		obj[k] = v
	}
	if c.Name != "" {
		obj["name"] = c.Name
	}
	if c.ID != "" {
		obj["id"] = c.ID
	}
	return json.Marshal(obj)
}

// CalendarDocument is the parsed calendar JSON: {"events": [...]}.
type CalendarDocument struct {
	Events []RawRecord `json:"events"`
}

// CategoriesDocument accepts both a bare array of descriptors and the
// {"categories": [...]} wrapper.
type CategoriesDocument struct {
	Categories []CategoryDescriptor `json:"categories"`
}

func (d *CategoriesDocument) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var list []CategoryDescriptor
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		d.Categories = list
		return nil
	}

	var wrapped struct {
		Categories []CategoryDescriptor `json:"categories"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return err
	}
	d.Categories = wrapped.Categories
	return nil
}
