package ics

import (
	"time"

	"github.com/google/uuid"

	appLog "homeboard/internal/log"
	"homeboard/internal/model"
)

const defaultTitle = "Untitled"

// ParseOptions control how a feed's events are normalized.
type ParseOptions struct {
	// Location is the civil calendar used for floating and date values
	// and for all-day normalization. Nil means time.Local.
	Location *time.Location

	// Now supplies the current time for salvage fallbacks. Nil means
	// time.Now. Tests inject a fixed clock here.
	Now func() time.Time

	// DisableSalvage drops events that carry a title but no usable
	// dates instead of synthesizing a one-day span at today. The
	// salvage fallback is a product decision, so it is explicit and
	// switchable rather than baked in.
	DisableSalvage bool
}

func (o ParseOptions) location() *time.Location {
	if o.Location != nil {
		return o.Location
	}
	return time.Local
}

func (o ParseOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// partialEvent accumulates properties between BEGIN:VEVENT and
// END:VEVENT. The raw DTSTART/DTEND values and parameter maps are kept
// until completion because the all-day determination needs to inspect
// both boundaries together.
type partialEvent struct {
	uid         string
	summary     string
	description string
	location    string

	start *temporalValue
	end   *temporalValue

	startRaw    string
	endRaw      string
	startParams map[string]string
	endParams   map[string]string

	lowConfidence bool
}

// apply folds one tokenized property into the partial event. Unknown
// properties are ignored.
func (p *partialEvent) apply(prop property, opts ParseOptions) {
	switch {
	case prop.name == "SUMMARY":
		p.summary = unescapeText(prop.value)
	case prop.name == "DESCRIPTION":
		p.description = unescapeText(prop.value)
	case prop.name == "LOCATION":
		p.location = unescapeText(prop.value)
	case prop.name == "UID":
		p.uid = prop.value
	case hasDatePrefix(prop.name, "DTSTART"):
		tv, ok := parseTemporal(prop.value, prop.params, opts.location(), opts.now())
		if !ok {
			appLog.Info("unparseable DTSTART, falling back to now", "value", prop.value)
			p.lowConfidence = true
		}
		p.start = &tv
		p.startRaw = prop.value
		p.startParams = prop.params
	case hasDatePrefix(prop.name, "DTEND"):
		tv, ok := parseTemporal(prop.value, prop.params, opts.location(), opts.now())
		if !ok {
			appLog.Info("unparseable DTEND, falling back to now", "value", prop.value)
			p.lowConfidence = true
		}
		p.end = &tv
		p.endRaw = prop.value
		p.endParams = prop.params
	}
}

// hasDatePrefix matches DTSTART/DTEND by prefix. The parameter suffix is
// already stripped into the parameter map, so this matches the bare name
// plus any nonstandard trailing characters some feeds emit.
func hasDatePrefix(name, prefix string) bool {
	return len(name) >= len(prefix) && name[:len(prefix)] == prefix
}

// finish applies completion and salvage rules and emits the immutable
// event. ok is false when the candidate carries no useful information
// and must be discarded.
func (p *partialEvent) finish(opts ParseOptions) (model.Event, bool) {
	loc := opts.location()

	var (
		start, end time.Time
		allDay     bool
		salvaged   bool
	)

	if p.start == nil || p.end == nil {
		// Missing boundaries. Titled events are salvaged onto a
		// one-day span at today; title-less ones are dropped.
		if p.summary == "" {
			appLog.Debug("dropping event with no title and no dates", "uid", p.uid)
			return model.Event{}, false
		}
		if opts.DisableSalvage {
			appLog.Info("dropping undated event (salvage disabled)",
				"title", p.summary, "dtstart", p.startRaw, "dtend", p.endRaw)
			return model.Event{}, false
		}
		appLog.Info("salvaging event with missing dates",
			"title", p.summary, "dtstart", p.startRaw, "dtend", p.endRaw)

		start = midnightOf(opts.now().In(loc), loc)
		if p.start != nil {
			start = midnightOf(p.start.time, loc)
		}
		end = start.AddDate(0, 0, 1)
		allDay = true
		salvaged = true
	} else {
		start = p.start.time.In(loc)
		end = p.end.time.In(loc)

		// All-day iff both boundaries are pure civil dates. A
		// midnight-to-midnight pair of date-times is not all-day.
		allDay = p.start.kind == kindCivilDate && p.end.kind == kindCivilDate
		if allDay {
			start = midnightOf(start, loc)
			end = midnightOf(end, loc)
			// ICS all-day ends are exclusive; a degenerate or
			// backwards end still gets a one-day span.
			if !end.After(start) {
				end = start.AddDate(0, 0, 1)
			}
		}
	}

	title := p.summary
	if title == "" {
		title = defaultTitle
	}

	id := p.uid
	if id == "" {
		// Not stable across re-fetches; never used for cross-run dedup.
		id = uuid.NewString()
	}

	return model.Event{
		ID:          id,
		Title:       title,
		Description: p.description,
		Location:    p.location,
		Start:       start,
		End:         end,
		AllDay:      allDay,
		Salvaged:    salvaged || p.lowConfidence,
	}, true
}
