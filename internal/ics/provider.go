package ics

import (
	"context"
	"time"

	appLog "minkal/internal/log"
	"minkal/internal/model"
)

// Provider is the event source backed by ICS subscriptions. It never fails
// outright: sources that cannot be fetched or parsed are logged and simply
// contribute no events.
type Provider struct {
	fetcher  *Fetcher
	sources  []Source
	location *time.Location
}

// NewProvider returns a Provider converting all events to loc.
func NewProvider(fetcher *Fetcher, sources []Source, loc *time.Location) *Provider {
	if loc == nil {
		loc = time.Local
	}
	return &Provider{fetcher: fetcher, sources: sources, location: loc}
}

// Events returns the events of all sources starting within [from, to].
func (p *Provider) Events(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	if len(p.sources) == 0 {
		return []model.Event{}, nil
	}

	results, err := p.fetcher.FetchAll(ctx, p.sources)
	if err != nil {
		appLog.Warn("ics: some sources failed", "failed", len(p.sources)-len(results), "total", len(p.sources))
	}

	var parsed []ParsedEvent
	for _, res := range results {
		events, err := ParseICS(res.Source, res.Body)
		if err != nil {
			appLog.Error("ics: parse failed for source", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	expanded, err := ExpandOccurrences(parsed, ExpandConfig{
		DisplayLocation: p.location,
		RangeStart:      from,
		RangeEnd:        to,
	})
	if err != nil {
		appLog.Error("ics: expand failed", err)
		return []model.Event{}, nil
	}

	appLog.Info("ics: events loaded",
		"sources", len(results),
		"events", len(expanded.Events),
		"from", from.Format(time.DateOnly),
		"to", to.Format(time.DateOnly),
	)
	return expanded.Events, nil
}
