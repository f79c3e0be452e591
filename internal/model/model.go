package model

import "time"

// Event is the normalized calendar event produced by the ICS pipeline.
// It is immutable once emitted; day buckets hold copies, never exclusive
// ownership.
type Event struct {
	// ID is the iCalendar UID when present, otherwise a generated
	// fallback. Fallback IDs are not stable across re-fetches and must
	// not be used for cross-run deduplication.
	ID string

	Title       string
	Description string
	Location    string

	// Start / End are instants in the display location's civil calendar.
	// For all-day events Start is local midnight of the first day and
	// End is local midnight of the day after the last day (exclusive).
	Start time.Time
	End   time.Time

	// AllDay is true only when both DTSTART and DTEND were parsed as
	// pure civil dates. An event with any time-of-day component on
	// either boundary is never all-day.
	AllDay bool

	// Salvaged marks events whose boundaries were synthesized or fell
	// back to "now" because the feed carried missing or unparseable
	// date values. Their dates are not trustworthy.
	Salvaged bool

	// Color and SourceName are stamped from the owning feed.
	Color      string
	SourceName string
}

// Projection is one event's appearance on a single civil day of a
// rendered grid.
type Projection struct {
	Event

	IsSpanStart  bool
	IsSpanEnd    bool
	IsSpanMiddle bool
	IsMultiDay   bool

	// SpanDays is the total number of civil days the event touches.
	// It is set only on the start-day projection (renderers use it for
	// the "Nd" badge); it is zero everywhere else.
	SpanDays int
}

// DayBucket is the ordered set of projections touching one civil day.
type DayBucket struct {
	// Date is local midnight of the bucket's civil day.
	Date time.Time

	Events []Projection
}
