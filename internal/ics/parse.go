package ics

import (
	"errors"
	"strings"

	appLog "homeboard/internal/log"
	"homeboard/internal/model"
)

// Feed describes one configured calendar subscription.
type Feed struct {
	// Name is the display label stamped onto every event.
	Name string
	// URL is the ICS endpoint.
	URL string
	// Color is the feed's display color stamped onto every event.
	Color string
}

// ParseFeed parses one feed's raw ICS text into normalized events,
// stamped with the feed's color and display name.
//
// A malformed line or event never aborts the feed: structural defects
// are logged and skipped, incomplete events are salvaged or dropped per
// the accumulator's rules, and parsing continues with the next
// BEGIN:VEVENT. The returned error is non-nil only when the feed text
// itself is empty or is not an iCalendar payload at all.
func ParseFeed(feed Feed, body []byte, opts ParseOptions) ([]model.Event, error) {
	text := string(body)
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty ICS body")
	}
	if !strings.Contains(text, "BEGIN:VCALENDAR") {
		return nil, errors.New("response is not an iCalendar payload")
	}

	events := make([]model.Event, 0)

	// Idle / Building state machine over the tokenized line stream.
	var cur *partialEvent

	for _, line := range unfoldLines(text) {
		switch {
		case strings.HasPrefix(line, "BEGIN:VEVENT"):
			if cur != nil {
				// Nested BEGIN is malformed; keep building.
				appLog.Debug("ignoring nested BEGIN:VEVENT", "feed", feed.Name)
				continue
			}
			cur = &partialEvent{}

		case strings.HasPrefix(line, "END:VEVENT"):
			if cur == nil {
				// Stray END with no open event.
				appLog.Debug("ignoring stray END:VEVENT", "feed", feed.Name)
				continue
			}
			if ev, ok := cur.finish(opts); ok {
				ev.Color = feed.Color
				ev.SourceName = feed.Name
				events = append(events, ev)
			}
			cur = nil

		case cur != nil:
			if line == "" {
				continue
			}
			prop, ok := parseContentLine(line)
			if !ok {
				appLog.Info("skipping malformed ICS line (no colon)",
					"feed", feed.Name, "line", truncateForLog(line))
				continue
			}
			cur.apply(prop, opts)
		}
	}

	if cur != nil {
		appLog.Info("dropping unclosed VEVENT at end of feed", "feed", feed.Name)
	}

	appLog.Info("feed parsed", "feed", feed.Name, "event_count", len(events))
	return events, nil
}

func truncateForLog(s string) string {
	const max = 50
	if len(s) <= max {
		return s
	}
	return s[:max]
}
