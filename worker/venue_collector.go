package worker

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"sauna-briefing/internal/config"
	"sauna-briefing/internal/dedup"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/scrape"
	"sauna-briefing/internal/venues"
)

// VenueCollector scrapes configured venue pages for special events.
type VenueCollector struct {
	Venues []config.VenueConfig
	Plain  scrape.Fetcher
	// Renderer fetches pages that need a browser. When nil, those venues
	// fall back to Plain.
	Renderer scrape.Fetcher
	Filter   *venues.Filter
	Now      func() time.Time
}

func (c *VenueCollector) Name() string { return string(model.SourceVenueScrape) }

func (c *VenueCollector) Collect(ctx context.Context, w Window) ([]model.RawRecord, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	ref := now()
	var out []model.RawRecord
	for _, v := range c.Venues {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		recs, err := c.collectVenue(ctx, v, w, ref)
		if err != nil {
			slog.Warn("venue-collector: venue skipped", "venue", v.Name, "err", err)
			continue
		}
		out = append(out, recs...)
	}
	return out, nil
}

func (c *VenueCollector) collectVenue(ctx context.Context, v config.VenueConfig, w Window, ref time.Time) ([]model.RawRecord, error) {
	f := c.Plain
	if v.Render && c.Renderer != nil {
		f = c.Renderer
	}
	html, err := f.Fetch(ctx, v.URL)
	if err != nil {
		return nil, err
	}
	events, err := venues.ParseEvents(html, v)
	if err != nil {
		return nil, err
	}
	var out []model.RawRecord
	filtered, outside := 0, 0
	for _, ev := range events {
		if c.Filter.Skip(ev.Title, v.Name) {
			filtered++
			continue
		}
		if !w.Contains(dedup.ParseEventDate(ev.DateText, ref)) {
			outside++
			continue
		}
		link := ev.Link
		if link == "" {
			link = v.URL
		}
		out = append(out, model.RawRecord{
			ID:         eventID(v.Name, ev.Title, ev.DateText),
			SourceType: model.SourceVenueScrape,
			Title:      ev.Title,
			Body:       ev.Description,
			URL:        link,
			VenueName:  v.Name,
			DateText:   ev.DateText,
		})
	}
	slog.Info("venue-collector: venue scraped", "venue", v.Name, "events", len(events),
		"kept", len(out), "filtered", filtered, "outside_window", outside)
	return out, nil
}

// eventID is stable across runs so the same listing keeps the same raw id.
func eventID(venue, title, date string) string {
	return shortHash(strings.Join([]string{venue, title, date}, "|"))
}
