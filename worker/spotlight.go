package worker

import (
	"context"
	"log/slog"
	"strings"

	"sauna-briefing/internal/config"
	"sauna-briefing/internal/model"
)

// SpotlightPicker chooses the week's venue profile and researches it.
type SpotlightPicker struct {
	Venues   []config.VenueConfig
	Searcher Searcher // optional; without it the spotlight carries no research
	// Queries may contain "{venue}".
	Queries []string
	// History returns venues spotlighted by earlier runs.
	History func() (map[string]bool, error)
}

// PickVenue returns the first watchlist venue not yet spotlighted. Once every
// watchlist venue has had its turn the rotation starts over.
func PickVenue(vs []config.VenueConfig, used map[string]bool) (config.VenueConfig, bool) {
	var watch []config.VenueConfig
	for _, v := range vs {
		if v.Watchlist {
			watch = append(watch, v)
		}
	}
	if len(watch) == 0 {
		return config.VenueConfig{}, false
	}
	for _, v := range watch {
		if !used[v.Name] {
			return v, true
		}
	}
	return watch[0], true
}

// Pick returns nil when no watchlist venue is configured.
func (p *SpotlightPicker) Pick(ctx context.Context) *model.Spotlight {
	if p == nil {
		return nil
	}
	used := map[string]bool{}
	if p.History != nil {
		h, err := p.History()
		if err != nil {
			slog.Warn("spotlight: reading history failed; treating every venue as unused", "err", err)
		} else {
			used = h
		}
	}
	v, ok := PickVenue(p.Venues, used)
	if !ok {
		return nil
	}
	sp := &model.Spotlight{Venue: v.Name, URL: v.URL}
	if p.Searcher == nil {
		return sp
	}
	for _, tmpl := range p.Queries {
		q := strings.ReplaceAll(tmpl, "{venue}", v.Name)
		ans, err := p.Searcher.Search(ctx, q)
		if err != nil {
			slog.Warn("spotlight: research query failed", "venue", v.Name, "query", q, "err", err)
			continue
		}
		f := model.SearchFindings{Query: q, Answer: ans.Content, Sources: ans.Citations}
		if len(f.Sources) == 0 {
			for _, r := range ans.Results {
				f.Sources = append(f.Sources, r.URL)
			}
		}
		sp.Research = append(sp.Research, f)
	}
	slog.Info("spotlight: venue chosen", "venue", v.Name, "research", len(sp.Research))
	return sp
}
