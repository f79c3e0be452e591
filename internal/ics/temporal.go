package ics

import (
	"strings"
	"time"
)

// temporalKind classifies a parsed ICS date/date-time value. Exactly one
// classification holds per value; all-day detection is a simple check
// that both boundaries are kindCivilDate.
type temporalKind int

const (
	// kindCivilDate is a pure calendar date (VALUE=DATE or a bare
	// 8-digit token), anchored at local midnight.
	kindCivilDate temporalKind = iota
	// kindFloatingLocal is a date-time with no zone; the numeric fields
	// map directly onto the display location's clock.
	kindFloatingLocal
	// kindUTCInstant is an absolute instant (trailing Z).
	kindUTCInstant
)

// temporalValue is one parsed DTSTART/DTEND value.
type temporalValue struct {
	time time.Time
	kind temporalKind
}

const (
	layoutDate          = "20060102"
	layoutLocalDateTime = "20060102T150405"
	layoutUTCDateTime   = "20060102T150405Z"
)

// fallbackLayouts are tried, in order, for values that match none of the
// standard ICS forms.
var fallbackLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"20060102T1504",
}

// parseTemporal converts an ICS date/date-time token plus its parameter
// map into a temporalValue in loc. TZID parameters are not resolved
// against a timezone database; such values are treated as floating local
// time. When nothing parses, the value falls back to now and ok is
// false so the caller can flag the event instead of failing the feed.
func parseTemporal(value string, params map[string]string, loc *time.Location, now time.Time) (temporalValue, bool) {
	v := strings.TrimSpace(value)

	if paramEquals(params, "VALUE", "DATE") || isBareDate(v) {
		if t, err := time.ParseInLocation(layoutDate, v, loc); err == nil {
			return temporalValue{time: t, kind: kindCivilDate}, true
		}
	} else if strings.Contains(v, "T") {
		if strings.HasSuffix(v, "Z") {
			if t, err := time.Parse(layoutUTCDateTime, v); err == nil {
				return temporalValue{time: t, kind: kindUTCInstant}, true
			}
		} else if t, err := time.ParseInLocation(layoutLocalDateTime, v, loc); err == nil {
			return temporalValue{time: t, kind: kindFloatingLocal}, true
		}
	}

	// Last resort: generic date-string parsing.
	for _, layout := range fallbackLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			kind := kindFloatingLocal
			if layout == time.RFC3339 {
				kind = kindUTCInstant
			}
			return temporalValue{time: t, kind: kind}, true
		}
	}

	return temporalValue{time: now, kind: kindFloatingLocal}, false
}

// isBareDate reports whether v is exactly eight digits (YYYYMMDD with no
// time component).
func isBareDate(v string) bool {
	if len(v) != 8 {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}

// midnightOf truncates t to local midnight of its civil day in loc.
func midnightOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
