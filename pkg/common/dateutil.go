package common

import (
	"sync"
	"time"
)

// DateKeyLayout is the layout used for day and week keys in local and remote storage.
// ISO dates compare lexically in the same order as chronologically, which the
// remote cleanup query relies on.
const DateKeyLayout = "2006-01-02"

// Clock abstracts the wall clock so day and week boundaries can be driven in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in the configured location.
type SystemClock struct {
	Location *time.Location
}

// Now returns the current time in the clock's location (local time when unset).
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock is a settable clock. Safe for concurrent use.
type FixedClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixedClock returns a FixedClock pinned at t.
func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{now: t}
}

// Now returns the pinned time.
func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *FixedClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TruncateToDate returns local midnight of t, keeping t's location.
//
// Example:
//   - Input: 2025-10-17 14:23:45 +03
//   - Output: 2025-10-17 00:00:00 +03
//
// time.Truncate is not used because it rounds in absolute (UTC) time and would
// land on the wrong day for non-UTC locations.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns the most recent Monday 00:00 in t's location.
// A Monday input maps onto that same Monday.
func WeekStart(t time.Time) time.Time {
	day := TruncateToDate(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -offset)
}

// DayKey formats t's calendar date as "YYYY-MM-DD".
func DayKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// WeekKey formats the week boundary containing t as "YYYY-MM-DD" (the Monday).
func WeekKey(t time.Time) string {
	return WeekStart(t).Format(DateKeyLayout)
}
