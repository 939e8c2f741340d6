package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sauna-briefing/internal/config"
	"sauna-briefing/internal/dedup"
	"sauna-briefing/internal/editorial"
	"sauna-briefing/internal/judge"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/notion"
	"sauna-briefing/internal/runstore"
	"sauna-briefing/internal/scrape"
	"sauna-briefing/internal/search"
	"sauna-briefing/internal/shortlist"
	"sauna-briefing/internal/storage"
	"sauna-briefing/internal/usage"
	"sauna-briefing/internal/venues"
	"sauna-briefing/worker"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// signalContext is cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newJudge wires each judgment call site to its configured backend. Sites
// whose backend has no API key are left unset and fall back deterministically.
func newJudge(ctx context.Context, cfg config.Config) (*judge.Judge, error) {
	timeout, err := config.Duration("judges.timeout", cfg.Judges.Timeout, 180*time.Second)
	if err != nil {
		return nil, err
	}
	backends := map[string]judge.Completer{}
	if cfg.OpenAI.APIKey != "" {
		c, err := judge.NewOpenAI(judge.OpenAIConfig{APIKey: cfg.OpenAI.APIKey, Model: cfg.OpenAI.Model, BaseURL: cfg.OpenAI.BaseURL})
		if err != nil {
			return nil, err
		}
		backends["openai"] = c
	}
	if cfg.Gemini.APIKey != "" {
		c, err := judge.NewGemini(ctx, judge.GeminiConfig{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model, BaseURL: cfg.Gemini.BaseURL})
		if err != nil {
			return nil, err
		}
		backends["gemini"] = c
	}
	sites := map[judge.Site]string{
		judge.SiteMerge:    cfg.Judges.Merge,
		judge.SiteRank:     cfg.Judges.Rank,
		judge.SiteDraft:    cfg.Judges.Draft,
		judge.SiteCritique: cfg.Judges.Critique,
		judge.SiteRevise:   cfg.Judges.Revise,
		judge.SiteEmail:    cfg.Judges.Email,
		judge.SiteReading:  cfg.Judges.Reading,
	}
	routed := map[judge.Site]judge.Completer{}
	for site, name := range sites {
		if b, ok := backends[name]; ok {
			routed[site] = b
		} else {
			slog.Warn("judge: no backend for call site; its fallback will be used", "site", site, "backend", name)
		}
	}
	return judge.New(routed, timeout), nil
}

// newSearchCache returns nil when Redis is not configured.
func newSearchCache(cfg config.Config) (*storage.SearchCache, *redis.Client, error) {
	if cfg.Redis.Addr == "" {
		return nil, nil, nil
	}
	ttl, err := config.Duration("redis.cache_ttl", cfg.Redis.CacheTTL, 72*time.Hour)
	if err != nil {
		return nil, nil, err
	}
	rdb := storage.NewRedis(cfg.Redis)
	return storage.NewSearchCache(rdb, ttl), rdb, nil
}

// newSearcher returns nil when no Perplexity key is configured.
func newSearcher(cfg config.Config, cache *storage.SearchCache) (worker.Searcher, error) {
	if cfg.Perplexity.APIKey == "" {
		return nil, nil
	}
	timeout, err := config.Duration("perplexity.timeout", cfg.Perplexity.Timeout, 60*time.Second)
	if err != nil {
		return nil, err
	}
	cli, err := search.New(search.Config{
		APIKey:  cfg.Perplexity.APIKey,
		BaseURL: cfg.Perplexity.BaseURL,
		Model:   cfg.Perplexity.Model,
		Recency: cfg.Perplexity.Recency,
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}
	if cache == nil {
		return cli, nil
	}
	return &worker.CachedSearcher{Searcher: cli, Cache: cache}, nil
}

func newPublisher(cfg config.Config) (*notion.Publisher, error) {
	timeout, err := config.Duration("notion.timeout", cfg.Notion.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	return notion.New(notion.Config{APIKey: cfg.Notion.APIKey, DatabaseID: cfg.Notion.DatabaseID, Timeout: timeout})
}

// gatherDeps holds what a gather run needs to release afterwards.
type gatherDeps struct {
	gatherer *worker.Gatherer
	closers  []func() error
}

func (d *gatherDeps) Close() {
	for _, c := range d.closers {
		_ = c()
	}
}

func buildGatherer(cfg config.Config, j *judge.Judge) (*gatherDeps, error) {
	deps := &gatherDeps{}
	collectorTimeout, err := config.Duration("gather.collector_timeout", cfg.Gather.CollectorTimeout, 5*time.Minute)
	if err != nil {
		return nil, err
	}
	tolerance, err := config.Duration("gather.date_tolerance", cfg.Gather.DateTolerance, 36*time.Hour)
	if err != nil {
		return nil, err
	}

	cache, rdb, err := newSearchCache(cfg)
	if err != nil {
		return nil, err
	}
	if rdb != nil {
		deps.closers = append(deps.closers, rdb.Close)
	}
	searcher, err := newSearcher(cfg, cache)
	if err != nil {
		return nil, err
	}

	var collectors []worker.Collector

	filter, err := venues.NewFilter(cfg.Gather.EventFilter)
	if err != nil {
		return nil, err
	}
	vc := &worker.VenueCollector{Venues: cfg.Venues, Plain: scrape.NewHTTPFetcher(30 * time.Second), Filter: filter}
	if cfg.Cloudflare.AccountID != "" && cfg.Cloudflare.APIToken != "" {
		cfTimeout, err := config.Duration("cloudflare.timeout", cfg.Cloudflare.Timeout, 30*time.Second)
		if err != nil {
			return nil, err
		}
		vc.Renderer = scrape.NewCloudflare(cfg.Cloudflare.AccountID, cfg.Cloudflare.APIToken, cfTimeout)
	}
	collectors = append(collectors, vc)

	if searcher != nil {
		nc := &worker.NewsCollector{Searcher: searcher, Queries: cfg.Perplexity.Queries, MaxConcurrent: cfg.Perplexity.MaxConcurrent}
		if cfg.Perplexity.RatePerSecond > 0 {
			nc.Limiter = rate.NewLimiter(rate.Limit(cfg.Perplexity.RatePerSecond), 1)
		}
		collectors = append(collectors, nc)
	} else {
		slog.Warn("gather: perplexity api key not set; news search disabled")
	}

	emails, err := storage.NewSQLiteStore(cfg.Email.DBPath)
	if err != nil {
		slog.Warn("gather: email store unavailable; email collector disabled", "path", cfg.Email.DBPath, "err", err)
	} else {
		deps.closers = append(deps.closers, emails.Close)
		collectors = append(collectors, &worker.EmailCollector{Store: emails, MinConfidence: cfg.Email.MinConfidence, DaysBack: cfg.Email.DaysBack})
	}

	store := runstore.New(cfg.Gather.RunsDir)
	deps.gatherer = &worker.Gatherer{
		Manager: worker.NewManager(collectorTimeout, collectors...),
		Merger:  &dedup.Merger{Judge: j, Tolerance: tolerance},
		Store:   store,
		Spotlight: &worker.SpotlightPicker{
			Venues:   cfg.Venues,
			Searcher: searcher,
			Queries:  cfg.Gather.SpotlightQueries,
			History:  store.Spotlighted,
		},
		Reading: &worker.ReadingPicker{
			Searcher: searcher,
			Chooser:  j,
			Queries:  cfg.Gather.ReadingQueries,
			Blocked:  cfg.Gather.ReadingBlocklist,
		},
		WindowDays: cfg.Gather.WindowDays,
	}
	return deps, nil
}

type draftOptions struct {
	maxIterations int // -1 keeps the configured value
	publish       bool
}

type draftDeps struct {
	drafter *worker.Drafter
	closers []func() error
}

func (d *draftDeps) Close() {
	for _, c := range d.closers {
		_ = c()
	}
}

func buildDrafter(cfg config.Config, j *judge.Judge, opt draftOptions) (*draftDeps, error) {
	deps := &draftDeps{}
	threshold, err := model.ParseSeverity(cfg.Draft.SeverityThreshold)
	if err != nil {
		return nil, fmt.Errorf("draft.severity_threshold: %w", err)
	}
	style, err := editorial.LoadStyle(cfg.Draft.StyleFile)
	if err != nil {
		return nil, err
	}
	maxIter := cfg.Draft.MaxIterations
	if opt.maxIterations >= 0 {
		maxIter = opt.maxIterations
	}

	d := &worker.Drafter{
		Runs:        runstore.New(cfg.Gather.RunsDir),
		Shortlister: &shortlist.Shortlister{Ranker: j, Rubric: cfg.Draft.Rubric, Target: cfg.Draft.TargetCount},
		Loop: &editorial.Loop{
			Writer:        j,
			Critic:        j,
			Reviser:       j,
			Style:         style,
			MaxIterations: maxIter,
			Threshold:     threshold,
			WordMin:       cfg.Draft.WordMin,
			WordMax:       cfg.Draft.WordMax,
			Language:      cfg.Draft.Language,
			Title:         cfg.Draft.Title,
		},
		Archive:    &worker.IssueArchive{DraftsDir: cfg.Draft.DraftsDir},
		PastIssues: cfg.Draft.PastIssues,
		DraftsDir:  cfg.Draft.DraftsDir,
		Title:      cfg.Draft.Title,
	}

	pub, err := newPublisher(cfg)
	switch {
	case err == nil:
		d.Archive.Remote = pub
		if opt.publish {
			d.Publisher = pub
		}
	case opt.publish:
		return nil, err
	}

	if opt.publish {
		emails, err := storage.NewSQLiteStore(cfg.Email.DBPath)
		if err != nil {
			slog.Warn("draft: email store unavailable; usage will not be tracked", "err", err)
		} else {
			deps.closers = append(deps.closers, emails.Close)
			d.Tracker = &usage.Tracker{Store: emails}
		}
	}
	deps.drafter = d
	return deps, nil
}
