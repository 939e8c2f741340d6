package worker

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"log/slog"
	"strings"
	"sync"
	"time"

	"sauna-briefing/internal/model"
	"sauna-briefing/internal/search"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// MaxSearchConcurrency is the hard cap on search requests in flight.
const MaxSearchConcurrency = 5

// Searcher answers one web search query.
type Searcher interface {
	Search(ctx context.Context, query string) (search.Answer, error)
}

// AnswerCache is satisfied by *storage.SearchCache.
type AnswerCache interface {
	Get(ctx context.Context, query string, at time.Time, v any) (bool, error)
	Set(ctx context.Context, query string, at time.Time, v any) error
}

// CachedSearcher serves repeated queries within the same week from the cache.
type CachedSearcher struct {
	Searcher Searcher
	Cache    AnswerCache
	Now      func() time.Time
}

func (s *CachedSearcher) Search(ctx context.Context, query string) (search.Answer, error) {
	if s.Cache == nil {
		return s.Searcher.Search(ctx, query)
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	at := now()
	var cached search.Answer
	if ok, err := s.Cache.Get(ctx, query, at, &cached); err != nil {
		slog.Warn("search: cache read failed", "query", query, "err", err)
	} else if ok {
		slog.Debug("search: cache hit", "query", query)
		return cached, nil
	}
	ans, err := s.Searcher.Search(ctx, query)
	if err != nil {
		return ans, err
	}
	if err := s.Cache.Set(ctx, query, at, ans); err != nil {
		slog.Warn("search: cache write failed", "query", query, "err", err)
	}
	return ans, nil
}

// NewsCollector runs the weekly news queries with bounded concurrency.
type NewsCollector struct {
	Searcher      Searcher
	Queries       []string
	MaxConcurrent int
	// Limiter paces request starts; nil means no pacing.
	Limiter *rate.Limiter
}

func (c *NewsCollector) Name() string { return string(model.SourceNewsSearch) }

func (c *NewsCollector) Collect(ctx context.Context, _ Window) ([]model.RawRecord, error) {
	n := c.MaxConcurrent
	if n <= 0 || n > MaxSearchConcurrency {
		n = MaxSearchConcurrency
	}
	sem := semaphore.NewWeighted(int64(n))
	answers := make([]*search.Answer, len(c.Queries))
	var wg sync.WaitGroup
	for i, q := range c.Queries {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		if c.Limiter != nil {
			if err := c.Limiter.Wait(ctx); err != nil {
				sem.Release(1)
				break
			}
		}
		wg.Add(1)
		go func(i int, q string) {
			defer wg.Done()
			defer sem.Release(1)
			ans, err := c.Searcher.Search(ctx, q)
			if err != nil {
				slog.Warn("news-collector: query failed", "query", q, "err", err)
				return
			}
			answers[i] = &ans
		}(i, q)
	}
	wg.Wait()

	var out []model.RawRecord
	for _, a := range answers {
		if a != nil {
			out = append(out, answerRecords(*a)...)
		}
	}
	return out, ctx.Err()
}

// answerRecords turns one answer into records: one per structured result, or
// a single record carrying the answer text and its citations.
func answerRecords(a search.Answer) []model.RawRecord {
	if len(a.Results) > 0 {
		out := make([]model.RawRecord, 0, len(a.Results))
		for _, r := range a.Results {
			if strings.TrimSpace(r.URL) == "" && strings.TrimSpace(r.Title) == "" {
				continue
			}
			out = append(out, model.RawRecord{
				ID:         shortHash(r.URL + "|" + r.Title),
				SourceType: model.SourceNewsSearch,
				Title:      r.Title,
				Body:       r.Snippet,
				URL:        r.URL,
				DateText:   r.Date,
				Query:      a.Query,
			})
		}
		return out
	}
	if strings.TrimSpace(a.Content) == "" {
		return nil
	}
	rec := model.RawRecord{
		ID:         shortHash("answer|" + a.Query),
		SourceType: model.SourceNewsSearch,
		Body:       a.Content,
		Query:      a.Query,
	}
	if len(a.Citations) > 0 {
		rec.URL = a.Citations[0]
		rec.Body += "\n\nSources: " + strings.Join(a.Citations, " ")
	}
	return []model.RawRecord{rec}
}

func shortHash(s string) string {
	sum := sha1.Sum([]byte(strings.ToLower(strings.TrimSpace(s))))
	return hex.EncodeToString(sum[:10])
}
