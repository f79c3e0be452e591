package ics

import (
	"reflect"
	"testing"
	"time"

	"homeboard/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, testLoc)
}

func allDayEvent(title string, startDay, endDayExclusive time.Time) model.Event {
	return model.Event{
		ID:     "uid-" + title,
		Title:  title,
		Start:  startDay,
		End:    endDayExclusive,
		AllDay: true,
	}
}

func TestProjectDays_ThreeDaySpanFlags(t *testing.T) {
	// All-day Jan 6-8 (exclusive end Jan 9) over a week grid.
	ev := allDayEvent("Ski trip", day(2025, 1, 6), day(2025, 1, 9))

	buckets := ProjectDays([]model.Event{ev}, day(2025, 1, 5), 7, testLoc)
	if len(buckets) != 7 {
		t.Fatalf("expected 7 buckets, got %d", len(buckets))
	}

	counts := make([]int, 7)
	for i, b := range buckets {
		counts[i] = len(b.Events)
	}
	if want := []int{0, 1, 1, 1, 0, 0, 0}; !reflect.DeepEqual(counts, want) {
		t.Fatalf("per-day counts = %v, want %v", counts, want)
	}

	d1 := buckets[1].Events[0]
	d2 := buckets[2].Events[0]
	d3 := buckets[3].Events[0]

	if !d1.IsSpanStart || d1.IsSpanMiddle || d1.IsSpanEnd {
		t.Errorf("day 1 flags = %+v, want span start", d1)
	}
	if !d2.IsSpanMiddle || d2.IsSpanStart || d2.IsSpanEnd {
		t.Errorf("day 2 flags = %+v, want span middle", d2)
	}
	if !d3.IsSpanEnd || d3.IsSpanStart || d3.IsSpanMiddle {
		t.Errorf("day 3 flags = %+v, want span end", d3)
	}
	for _, p := range []model.Projection{d1, d2, d3} {
		if !p.IsMultiDay {
			t.Error("expected IsMultiDay on every projection of the span")
		}
	}
	if d1.SpanDays != 3 {
		t.Errorf("start-day SpanDays = %d, want 3", d1.SpanDays)
	}
	if d2.SpanDays != 0 || d3.SpanDays != 0 {
		t.Errorf("SpanDays leaked to non-start days: %d, %d", d2.SpanDays, d3.SpanDays)
	}
}

func TestProjectDays_TwoDayAllDaySpan(t *testing.T) {
	// VALUE=DATE 20250101/20250103 covers exactly Jan 1-2.
	ev := allDayEvent("Overnighter", day(2025, 1, 1), day(2025, 1, 3))

	buckets := ProjectDays([]model.Event{ev}, day(2025, 1, 1), 7, testLoc)
	if n := len(buckets[0].Events) + len(buckets[1].Events); n != 2 {
		t.Fatalf("expected projections on 2 days, got %d", n)
	}
	if len(buckets[2].Events) != 0 {
		t.Fatal("exclusive end day must stay empty")
	}
	if got := buckets[0].Events[0].SpanDays; got != 2 {
		t.Fatalf("SpanDays = %d, want 2", got)
	}
}

func TestProjectDays_BackwardsEndClampedToSingleDay(t *testing.T) {
	ev := model.Event{
		ID:    "uid-backwards",
		Title: "Backwards",
		Start: time.Date(2025, 1, 10, 15, 0, 0, 0, testLoc),
		End:   time.Date(2025, 1, 8, 15, 0, 0, 0, testLoc),
	}

	buckets := ProjectDays([]model.Event{ev}, day(2025, 1, 5), 14, testLoc)

	total := 0
	var hit model.Projection
	for _, b := range buckets {
		for _, p := range b.Events {
			total++
			hit = p
		}
	}
	if total != 1 {
		t.Fatalf("expected exactly one projection, got %d", total)
	}
	if !hit.IsSpanStart || !hit.IsSpanEnd || hit.IsMultiDay {
		t.Errorf("clamped projection flags = %+v, want single-day", hit)
	}
}

func TestProjectDays_Idempotent(t *testing.T) {
	events := []model.Event{
		allDayEvent("Span", day(2025, 1, 6), day(2025, 1, 9)),
		{ID: "t1", Title: "Timed", Start: time.Date(2025, 1, 6, 9, 0, 0, 0, testLoc),
			End: time.Date(2025, 1, 6, 10, 0, 0, 0, testLoc)},
	}

	a := ProjectDays(events, day(2025, 1, 5), 7, testLoc)
	b := ProjectDays(events, day(2025, 1, 5), 7, testLoc)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("repeated projection produced different output")
	}
}

func TestProjectDays_BucketOrdering(t *testing.T) {
	d := day(2025, 1, 6)
	events := []model.Event{
		{ID: "late", Title: "Late", Start: d.Add(18 * time.Hour), End: d.Add(19 * time.Hour)},
		{ID: "early", Title: "Early", Start: d.Add(8 * time.Hour), End: d.Add(9 * time.Hour)},
		allDayEvent("All day B", d, d.AddDate(0, 0, 1)),
		allDayEvent("All day A", d, d.AddDate(0, 0, 1)),
	}

	buckets := ProjectDays(events, d, 1, testLoc)
	got := make([]string, 0, 4)
	for _, p := range buckets[0].Events {
		got = append(got, p.Title)
	}
	// All-day first, stable among themselves, then timed by start.
	want := []string{"All day B", "All day A", "Early", "Late"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("bucket order = %v, want %v", got, want)
	}
}

func TestProjectDays_EventOutsideGrid(t *testing.T) {
	ev := allDayEvent("Far future", day(2026, 5, 1), day(2026, 5, 2))
	buckets := ProjectDays([]model.Event{ev}, day(2025, 1, 5), 7, testLoc)
	for _, b := range buckets {
		if len(b.Events) != 0 {
			t.Fatal("event outside the grid must not be projected")
		}
	}
}

func TestProjectDays_SpanEnteringGrid(t *testing.T) {
	// Span starts before the grid; in-grid projections are not flagged
	// as the start.
	ev := allDayEvent("Long span", day(2025, 1, 3), day(2025, 1, 7))

	buckets := ProjectDays([]model.Event{ev}, day(2025, 1, 5), 7, testLoc)
	if len(buckets[0].Events) != 1 {
		t.Fatalf("expected projection on first grid day")
	}
	p := buckets[0].Events[0]
	if p.IsSpanStart {
		t.Error("grid-entry day must not be flagged as span start")
	}
	if !p.IsSpanMiddle {
		t.Error("expected span middle on grid-entry day")
	}
	if p.SpanDays != 0 {
		t.Errorf("SpanDays = %d on non-start day", p.SpanDays)
	}
}

func TestGridStart(t *testing.T) {
	// 2025-06-18 is a Wednesday.
	now := time.Date(2025, 6, 18, 14, 30, 0, 0, testLoc)

	if got, want := GridStart(now, "sunday", testLoc), day(2025, 6, 15); !got.Equal(want) {
		t.Errorf("sunday grid start = %v, want %v", got, want)
	}
	if got, want := GridStart(now, "monday", testLoc), day(2025, 6, 16); !got.Equal(want) {
		t.Errorf("monday grid start = %v, want %v", got, want)
	}

	// A Sunday is its own grid start.
	sunday := time.Date(2025, 6, 15, 23, 0, 0, 0, testLoc)
	if got := GridStart(sunday, "sunday", testLoc); !got.Equal(day(2025, 6, 15)) {
		t.Errorf("sunday noon grid start = %v", got)
	}
}

func TestOverlaps(t *testing.T) {
	ev := model.Event{
		Start: time.Date(2025, 1, 10, 9, 0, 0, 0, testLoc),
		End:   time.Date(2025, 1, 10, 10, 0, 0, 0, testLoc),
	}
	if !Overlaps(ev, day(2025, 1, 10), day(2025, 1, 11)) {
		t.Error("expected overlap with containing range")
	}
	if Overlaps(ev, day(2025, 1, 11), day(2025, 1, 12)) {
		t.Error("expected no overlap with later range")
	}
	if Overlaps(ev, day(2025, 1, 1), day(2025, 1, 9)) {
		t.Error("expected no overlap with earlier range")
	}
}
