// Package nav holds the month cursor of the calendar view.
package nav

import (
	"fmt"
	"sync"
	"time"
)

// Cursor identifies a calendar month.
type Cursor struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// CursorFor returns the month containing t.
func CursorFor(t time.Time) Cursor {
	return Cursor{Year: t.Year(), Month: t.Month()}
}

// Next returns the following month; December rolls over into January.
func (c Cursor) Next() Cursor {
	if c.Month == time.December {
		return Cursor{Year: c.Year + 1, Month: time.January}
	}
	return Cursor{Year: c.Year, Month: c.Month + 1}
}

// Previous returns the preceding month; January rolls back into December.
func (c Cursor) Previous() Cursor {
	if c.Month == time.January {
		return Cursor{Year: c.Year - 1, Month: time.December}
	}
	return Cursor{Year: c.Year, Month: c.Month - 1}
}

func (c Cursor) String() string {
	return fmt.Sprintf("%04d-%02d", c.Year, int(c.Month))
}

// Navigator owns the current cursor. Every move invokes the change callback
// with the new cursor so the owner can rebuild its view. There are no bounds
// in either direction.
type Navigator struct {
	mu       sync.Mutex
	cursor   Cursor
	onChange func(Cursor)
}

// New returns a navigator positioned at start. onChange may be nil.
func New(start Cursor, onChange func(Cursor)) *Navigator {
	return &Navigator{cursor: start, onChange: onChange}
}

// Current returns the cursor.
func (n *Navigator) Current() Cursor {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.cursor
}

// Next advances by one month.
func (n *Navigator) Next() Cursor {
	return n.move(Cursor.Next)
}

// Previous retreats by one month.
func (n *Navigator) Previous() Cursor {
	return n.move(Cursor.Previous)
}

// Set jumps to c.
func (n *Navigator) Set(c Cursor) Cursor {
	return n.move(func(Cursor) Cursor { return c })
}

func (n *Navigator) move(step func(Cursor) Cursor) Cursor {
	n.mu.Lock()
	n.cursor = step(n.cursor)
	c := n.cursor
	cb := n.onChange
	n.mu.Unlock()

	if cb != nil {
		cb(c)
	}
	return c
}
