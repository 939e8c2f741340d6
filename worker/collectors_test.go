package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sauna-briefing/internal/config"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/scrape"
	"sauna-briefing/internal/search"
	"sauna-briefing/internal/storage"
	"sauna-briefing/internal/venues"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tuesday; the event window runs Fri 13 Feb to Fri 20 Feb.
var tuesday = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

type fnCollector struct {
	name string
	fn   func(ctx context.Context) ([]model.RawRecord, error)
}

func (c fnCollector) Name() string { return c.name }
func (c fnCollector) Collect(ctx context.Context, _ Window) ([]model.RawRecord, error) {
	return c.fn(ctx)
}

func TestManagerIsolatesFailingCollectors(t *testing.T) {
	ok := fnCollector{"venue_scrape", func(context.Context) ([]model.RawRecord, error) {
		return []model.RawRecord{{ID: "a", SourceType: model.SourceVenueScrape, Title: "A"}}, nil
	}}
	failing := fnCollector{"email_artifact", func(context.Context) ([]model.RawRecord, error) {
		return nil, errors.New("database locked")
	}}
	slow := fnCollector{"news_search", func(ctx context.Context) ([]model.RawRecord, error) {
		<-ctx.Done()
		return []model.RawRecord{{ID: "late"}}, nil
	}}

	start := time.Now()
	got := NewManager(50*time.Millisecond, ok, failing, slow).Run(context.Background(), Window{})
	require.Less(t, time.Since(start), 5*time.Second)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "a", got.Records[0].ID)
	assert.Equal(t, map[string]int{"venue_scrape": 1, "email_artifact": 0, "news_search": 0}, got.Counts)
}

func TestManagerAbandonsCollectorIgnoringDeadline(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	stuck := fnCollector{"news_search", func(context.Context) ([]model.RawRecord, error) {
		<-release
		return []model.RawRecord{{ID: "late"}}, nil
	}}
	ok := fnCollector{"venue_scrape", func(context.Context) ([]model.RawRecord, error) {
		return []model.RawRecord{{ID: "a", SourceType: model.SourceVenueScrape, Title: "A"}}, nil
	}}

	done := make(chan Collected, 1)
	go func() { done <- NewManager(20*time.Millisecond, stuck, ok).Run(context.Background(), Window{}) }()
	select {
	case got := <-done:
		require.Len(t, got.Records, 1)
		assert.Equal(t, "a", got.Records[0].ID)
		assert.Equal(t, map[string]int{"news_search": 0, "venue_scrape": 1}, got.Counts)
	case <-time.After(5 * time.Second):
		t.Fatal("Run waited on a collector that ignores its context")
	}
}

func TestWindowContains(t *testing.T) {
	w := Window{Start: time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)}
	end := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	assert.True(t, w.Contains(nil))
	assert.True(t, w.Contains(&model.EventWindow{Start: time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)}))
	assert.True(t, w.Contains(&model.EventWindow{Start: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC), End: &end}))
	assert.False(t, w.Contains(&model.EventWindow{Start: time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)}))
	assert.False(t, w.Contains(&model.EventWindow{Start: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)}))
}

// countingSearcher records the peak number of concurrent calls.
type countingSearcher struct {
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	fail     string
}

func (s *countingSearcher) Search(ctx context.Context, q string) (search.Answer, error) {
	s.calls.Add(1)
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	if q == s.fail {
		return search.Answer{}, errors.New("quota")
	}
	return search.Answer{Query: q, Results: []search.Result{{Title: "Result for " + q, URL: "https://example.com/" + q}}}, nil
}

func TestNewsCollectorCapsConcurrency(t *testing.T) {
	s := &countingSearcher{fail: "q3"}
	var qs []string
	for i := 0; i < 14; i++ {
		qs = append(qs, fmt.Sprintf("q%d", i))
	}
	c := &NewsCollector{Searcher: s, Queries: qs, MaxConcurrent: 50}
	recs, err := c.Collect(context.Background(), Window{})
	require.NoError(t, err)
	assert.LessOrEqual(t, int(s.peak.Load()), MaxSearchConcurrency)
	assert.EqualValues(t, 14, s.calls.Load())
	assert.Len(t, recs, 13, "the failed query contributes nothing")
	for _, r := range recs {
		assert.Equal(t, model.SourceNewsSearch, r.SourceType)
		assert.NotEmpty(t, r.ID)
	}
}

func TestAnswerRecordsWithoutResults(t *testing.T) {
	recs := answerRecords(search.Answer{
		Query:     "London sauna closures",
		Content:   "Two saunas closed this week.",
		Citations: []string{"https://example.com/a", "https://example.com/b"},
	})
	require.Len(t, recs, 1)
	assert.Equal(t, "https://example.com/a", recs[0].URL)
	assert.Contains(t, recs[0].Body, "https://example.com/b")
	assert.Empty(t, answerRecords(search.Answer{Query: "empty"}))
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]search.Answer
}

func (c *mapCache) Get(_ context.Context, q string, _ time.Time, v any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.m[q]
	if ok {
		*(v.(*search.Answer)) = a
	}
	return ok, nil
}

func (c *mapCache) Set(_ context.Context, q string, _ time.Time, v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[q] = v.(search.Answer)
	return nil
}

func TestCachedSearcherServesRepeats(t *testing.T) {
	inner := &countingSearcher{}
	s := &CachedSearcher{Searcher: inner, Cache: &mapCache{m: map[string]search.Answer{}}}
	a1, err := s.Search(context.Background(), "sauna")
	require.NoError(t, err)
	a2, err := s.Search(context.Background(), "sauna")
	require.NoError(t, err)
	assert.Equal(t, a1, a2)
	assert.EqualValues(t, 1, inner.calls.Load())

	// a nil *storage.SearchCache caches nothing but still answers
	s = &CachedSearcher{Searcher: inner, Cache: (*storage.SearchCache)(nil)}
	_, err = s.Search(context.Background(), "sauna")
	require.NoError(t, err)
	assert.EqualValues(t, 2, inner.calls.Load())
}

const venuePage = `<html><body>
<div class="event"><h3>Full Moon Aufguss</h3><span class="date">Saturday 14 February 2026</span><a href="/events/full-moon">Book</a><p>Evening ritual.</p></div>
<div class="event"><h3>Free Flow 60</h3><span class="date">Saturday 14 February 2026</span></div>
<div class="event"><h3>Spring Banya Night</h3><span class="date">Tuesday 3 March 2026</span></div>
<div class="event"><h3>Sound Bath Social</h3></div>
</body></html>`

func TestVenueCollector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(venuePage))
	}))
	defer srv.Close()

	sel := config.SelectorConfig{Item: ".event", Title: "h3", Date: ".date", Link: "a", Description: "p"}
	filter, err := venues.NewFilter(config.EventFilterConfig{
		Exclude: config.DefaultExcludePatterns,
		Include: config.DefaultIncludePatterns,
	})
	require.NoError(t, err)
	c := &VenueCollector{
		Venues: []config.VenueConfig{
			{Name: "Broken Baths", URL: srv.URL + "/broken", Selectors: sel},
			{Name: "Hackney Wick Sauna", URL: srv.URL + "/whats-on", Selectors: sel},
		},
		Plain:  scrape.NewHTTPFetcher(5 * time.Second),
		Filter: filter,
		Now:    func() time.Time { return tuesday },
	}
	start, end := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC), time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	recs, err := c.Collect(context.Background(), Window{Start: start, End: end})
	require.NoError(t, err)

	var titles []string
	for _, r := range recs {
		titles = append(titles, r.Title)
		assert.Equal(t, "Hackney Wick Sauna", r.VenueName)
		assert.Equal(t, model.SourceVenueScrape, r.SourceType)
	}
	assert.Equal(t, []string{"Full Moon Aufguss", "Sound Bath Social"}, titles)
	assert.Equal(t, srv.URL+"/events/full-moon", recs[0].URL)
	assert.Equal(t, srv.URL+"/whats-on", recs[1].URL, "items without a link point at the venue page")
	assert.Equal(t, eventID("Hackney Wick Sauna", "Full Moon Aufguss", "Saturday 14 February 2026"), recs[0].ID)
}

type fakeArtifacts struct {
	got  storage.ArtifactQuery
	arts []model.EmailArtifact
}

func (f *fakeArtifacts) UnusedArtifacts(_ context.Context, q storage.ArtifactQuery) ([]model.EmailArtifact, error) {
	f.got = q
	return f.arts, nil
}

func TestEmailCollector(t *testing.T) {
	store := &fakeArtifacts{arts: []model.EmailArtifact{
		{ArtifactID: "art-1", Subject: "Newsletter #42", Summary: "New cold plunge at Peckham", CompressedContent: "Peckham adds a plunge pool from 1 March.", ConfidenceScore: 0.9},
		{ArtifactID: "art-2", Subject: "Members update", CompressedContent: "", Summary: "Prices rise", ConfidenceScore: 0.6},
	}}
	c := &EmailCollector{Store: store, MinConfidence: 0.5, DaysBack: 7, Now: func() time.Time { return tuesday }}
	recs, err := c.Collect(context.Background(), Window{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 0.5, store.got.MinConfidence)
	assert.Equal(t, tuesday.AddDate(0, 0, -7), store.got.Since)
	assert.Equal(t, "art-1", recs[0].ID)
	assert.Equal(t, model.SourceEmailArtifact, recs[0].SourceType)
	assert.Equal(t, 0.9, recs[0].Confidence)
	assert.Equal(t, "Prices rise", recs[1].Body)
}

func TestPickVenueRotates(t *testing.T) {
	vs := []config.VenueConfig{
		{Name: "Arc", Watchlist: true},
		{Name: "Not watched"},
		{Name: "Community Sauna Baths", Watchlist: true},
	}
	v, ok := PickVenue(vs, map[string]bool{"Arc": true})
	require.True(t, ok)
	assert.Equal(t, "Community Sauna Baths", v.Name)

	v, ok = PickVenue(vs, map[string]bool{"Arc": true, "Community Sauna Baths": true})
	require.True(t, ok)
	assert.Equal(t, "Arc", v.Name, "rotation restarts once every venue has had a turn")

	_, ok = PickVenue([]config.VenueConfig{{Name: "x"}}, nil)
	assert.False(t, ok)
}

func TestSpotlightResearch(t *testing.T) {
	p := &SpotlightPicker{
		Venues:   []config.VenueConfig{{Name: "Arc", URL: "https://arc.example", Watchlist: true}},
		Searcher: &countingSearcher{},
		Queries:  []string{"{venue} reviews", "{venue} prices"},
	}
	sp := p.Pick(context.Background())
	require.NotNil(t, sp)
	assert.Equal(t, "Arc", sp.Venue)
	require.Len(t, sp.Research, 2)
	assert.Equal(t, "Arc reviews", sp.Research[0].Query)
	assert.Equal(t, []string{"https://example.com/Arc reviews"}, sp.Research[0].Sources)

	var nilPicker *SpotlightPicker
	assert.Nil(t, nilPicker.Pick(context.Background()))
}
