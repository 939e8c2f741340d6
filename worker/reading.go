package worker

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"sauna-briefing/internal/judge"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/search"
)

// ReadingChooser is satisfied by *judge.Judge.
type ReadingChooser interface {
	ChooseReading(ctx context.Context, opts []judge.ReadingOption) (judge.ReadingChoice, error)
}

// ReadingPicker finds one article worth reading for the Reading Corner.
type ReadingPicker struct {
	Searcher Searcher
	Chooser  ReadingChooser
	Queries  []string
	// Blocked domains are promotional or low quality; subdomains match too.
	Blocked []string
}

// Pick returns nil when searching is unavailable, no article survives the
// filter or the chooser fails or declines.
func (p *ReadingPicker) Pick(ctx context.Context) *model.Article {
	if p == nil || p.Searcher == nil || p.Chooser == nil {
		return nil
	}
	var found []search.Result
	for _, q := range p.Queries {
		ans, err := p.Searcher.Search(ctx, q)
		if err != nil {
			slog.Warn("reading: search failed", "query", q, "err", err)
			continue
		}
		found = append(found, ans.Results...)
	}
	opts := QualityArticles(found, p.Blocked)
	slog.Info("reading: articles found", "results", len(found), "kept", len(opts))
	if len(opts) == 0 {
		return nil
	}
	choice, err := p.Chooser.ChooseReading(ctx, opts)
	if err != nil {
		slog.Warn("reading: choosing article failed; section omitted", "err", err)
		return nil
	}
	if choice.None {
		slog.Info("reading: no suitable article this week")
		return nil
	}
	o := opts[choice.Index]
	a := &model.Article{
		Title:         o.Title,
		URL:           o.URL,
		Publication:   choice.Publication,
		PublishedDate: o.Date,
		Summary:       choice.Summary,
		Type:          choice.Type,
	}
	if a.Summary == "" {
		a.Summary = o.Snippet
	}
	slog.Info("reading: article chosen", "title", a.Title, "url", a.URL)
	return a
}

// QualityArticles drops undated results, results from blocked domains and
// repeated URLs.
func QualityArticles(rs []search.Result, blocked []string) []judge.ReadingOption {
	seen := map[string]bool{}
	var out []judge.ReadingOption
	for _, r := range rs {
		if strings.TrimSpace(r.Date) == "" || strings.TrimSpace(r.URL) == "" {
			continue
		}
		if seen[r.URL] || blockedHost(r.URL, blocked) {
			continue
		}
		seen[r.URL] = true
		out = append(out, judge.ReadingOption{Title: r.Title, URL: r.URL, Date: r.Date, Snippet: r.Snippet})
	}
	return out
}

func blockedHost(raw string, blocked []string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return true
	}
	host := strings.ToLower(u.Hostname())
	for _, d := range blocked {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" && (host == d || strings.HasSuffix(host, "."+d)) {
			return true
		}
	}
	return false
}
