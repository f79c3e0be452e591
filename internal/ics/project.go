package ics

import (
	"sort"
	"time"

	"homeboard/internal/model"
)

const dateKeyLayout = "2006-01-02"

// ProjectDays projects the merged event list onto a grid of consecutive
// civil days starting at gridStart (expected to be local midnight in
// loc). Every day of the grid gets a bucket, empty or not. An event
// spanning N days appears in up to N buckets; within one bucket no event
// appears twice, and repeated calls with the same inputs yield identical
// output.
func ProjectDays(events []model.Event, gridStart time.Time, days int, loc *time.Location) []model.DayBucket {
	if loc == nil {
		loc = time.Local
	}
	if days < 0 {
		days = 0
	}

	gridStart = midnightOf(gridStart, loc)

	buckets := make([]model.DayBucket, days)
	index := make(map[string]int, days)
	for i := range buckets {
		date := gridStart.AddDate(0, 0, i)
		buckets[i] = model.DayBucket{Date: date, Events: []model.Projection{}}
		index[date.Format(dateKeyLayout)] = i
	}
	if days == 0 {
		return buckets
	}
	gridEnd := gridStart.AddDate(0, 0, days-1)

	for _, ev := range events {
		startDay := midnightOf(ev.Start, loc)

		endRef := ev.End
		if ev.AllDay {
			// Undo the exclusive-end normalization.
			endRef = endRef.AddDate(0, 0, -1)
		}
		endDay := midnightOf(endRef, loc)

		// Malformed feeds can put the end before the start; treat the
		// event as single-day rather than walking backwards.
		if endDay.Before(startDay) {
			endDay = startDay
		}

		multiDay := !startDay.Equal(endDay)
		spanDays := civilDaysBetween(startDay, endDay) + 1

		walkFrom := startDay
		if walkFrom.Before(gridStart) {
			walkFrom = gridStart
		}
		walkTo := endDay
		if walkTo.After(gridEnd) {
			walkTo = gridEnd
		}

		for day := walkFrom; !day.After(walkTo); day = day.AddDate(0, 0, 1) {
			i, ok := index[day.Format(dateKeyLayout)]
			if !ok {
				continue
			}

			proj := model.Projection{
				Event:       ev,
				IsSpanStart: day.Equal(startDay),
				IsSpanEnd:   day.Equal(endDay),
				IsMultiDay:  multiDay,
			}
			proj.IsSpanMiddle = multiDay && !proj.IsSpanStart && !proj.IsSpanEnd
			if proj.IsSpanStart {
				proj.SpanDays = spanDays
			}

			buckets[i].Events = append(buckets[i].Events, proj)
		}
	}

	// All-day events first (stable among themselves), then timed events
	// by start instant.
	for i := range buckets {
		evs := buckets[i].Events
		sort.SliceStable(evs, func(a, b int) bool {
			if evs[a].AllDay != evs[b].AllDay {
				return evs[a].AllDay
			}
			if evs[a].AllDay {
				return false
			}
			return evs[a].Start.Before(evs[b].Start)
		})
	}

	return buckets
}

// civilDaysBetween counts whole civil days from a to b (both local
// midnights). Rounding absorbs DST transitions inside the span.
func civilDaysBetween(a, b time.Time) int {
	const day = 24 * time.Hour
	return int((b.Sub(a) + day/2) / day)
}

// GridStart returns local midnight of the most recent week-start day at
// or before now. weekStart accepts "sunday" or "monday"; anything else
// is treated as sunday, matching the dashboard's default grid.
func GridStart(now time.Time, weekStart string, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	day := midnightOf(now, loc)

	target := time.Sunday
	if weekStart == "monday" {
		target = time.Monday
	}

	offset := int(day.Weekday()) - int(target)
	if offset < 0 {
		offset += 7
	}
	return day.AddDate(0, 0, -offset)
}

// Overlaps reports whether the event's span intersects [start, end].
func Overlaps(ev model.Event, start, end time.Time) bool {
	if ev.End.Before(start) {
		return false
	}
	if end.Before(ev.Start) {
		return false
	}
	return true
}
