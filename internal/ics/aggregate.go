package ics

import (
	"context"
	"strings"

	appLog "homeboard/internal/log"
	"homeboard/internal/model"
)

// dedupKey identifies an event across feeds. A structured key avoids the
// delimiter-collision bugs of concatenated strings.
type dedupKey struct {
	title string
	start int64
	end   int64
}

func keyOf(ev model.Event) dedupKey {
	return dedupKey{
		title: strings.TrimSpace(ev.Title),
		start: ev.Start.UnixNano(),
		end:   ev.End.UnixNano(),
	}
}

// Merge concatenates per-feed event lists and suppresses duplicates by
// (title, start, end), keeping the first occurrence in input order.
// Callers that care about reproducible dedup winners should pass lists
// in a deterministic feed order.
func Merge(lists ...[]model.Event) []model.Event {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[dedupKey]struct{}, total)
	merged := make([]model.Event, 0, total)

	for _, l := range lists {
		for _, ev := range l {
			k := keyOf(ev)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			merged = append(merged, ev)
		}
	}

	return merged
}

// Aggregate runs the full fetch+parse pipeline over the configured feeds
// and returns the merged, deduplicated event list. A feed that fails to
// fetch or parse contributes zero events and does not block the others;
// its error is collected and returned alongside the result. No feeds is
// an empty result, not an error.
func Aggregate(ctx context.Context, fetcher *Fetcher, feeds []Feed, opts ParseOptions) ([]model.Event, []error) {
	lists := make([][]model.Event, 0, len(feeds))
	errs := make([]error, 0)

	results, fetchErrs := fetcher.FetchAll(ctx, feeds)
	errs = append(errs, fetchErrs...)

	for _, res := range results {
		events, err := ParseFeed(res.Feed, res.Body, opts)
		if err != nil {
			appLog.Error("feed parse failed", err, "feed", res.Feed.Name)
			errs = append(errs, err)
			continue
		}
		lists = append(lists, events)
	}

	merged := Merge(lists...)
	appLog.Info("feeds aggregated",
		"feed_count", len(feeds), "event_count", len(merged), "error_count", len(errs))
	return merged, errs
}
