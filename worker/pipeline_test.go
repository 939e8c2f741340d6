package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sauna-briefing/internal/config"
	"sauna-briefing/internal/dedup"
	"sauna-briefing/internal/editorial"
	"sauna-briefing/internal/judge"
	"sauna-briefing/internal/markdown"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/notion"
	"sauna-briefing/internal/runstore"
	"sauna-briefing/internal/shortlist"
	"sauna-briefing/internal/usage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGathererSavesRun(t *testing.T) {
	store := runstore.New(t.TempDir())
	venuesC := fnCollector{"venue_scrape", func(context.Context) ([]model.RawRecord, error) {
		return []model.RawRecord{
			{ID: "v1", SourceType: model.SourceVenueScrape, Title: "Full Moon Aufguss", VenueName: "Arc", DateText: "Saturday 14 February 2026"},
			{ID: "v1", SourceType: model.SourceVenueScrape, Title: "Full Moon Aufguss", VenueName: "Arc", DateText: "Saturday 14 February 2026"},
		}, nil
	}}
	emails := fnCollector{"email_artifact", func(context.Context) ([]model.RawRecord, error) {
		return []model.RawRecord{{ID: "art-1", SourceType: model.SourceEmailArtifact, Title: "Peckham plunge pool", Confidence: 0.9}}, nil
	}}
	news := fnCollector{"news_search", func(context.Context) ([]model.RawRecord, error) {
		return nil, errors.New("search api down")
	}}

	g := &Gatherer{
		Manager: NewManager(time.Second, venuesC, emails, news),
		Merger:  &dedup.Merger{Tolerance: 36 * time.Hour},
		Store:   store,
		Spotlight: &SpotlightPicker{
			Venues:  []config.VenueConfig{{Name: "Arc", Watchlist: true}},
			History: store.Spotlighted,
		},
		Now: func() time.Time { return tuesday },
	}
	run, err := g.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "20260210_090000", run.RunID)
	assert.Len(t, run.Candidates, 2, "the repeated venue record merges by raw id")
	assert.Equal(t, 3, run.Metadata.RawRecordCount)
	assert.Equal(t, 0, run.Metadata.SourceCounts["news_search"])
	require.NotNil(t, run.Metadata.Spotlight)
	assert.Equal(t, "Arc", run.Metadata.Spotlight.Venue)

	loaded, err := store.Load(runstore.LatestAlias)
	require.NoError(t, err)
	assert.Equal(t, run.RunID, loaded.RunID)
	assert.Len(t, loaded.Candidates, 2)

	// a second gather in the same second must not overwrite the first
	_, err = g.Run(context.Background())
	require.ErrorIs(t, err, runstore.ErrRunExists)
}

// stubEditor answers every editorial call without a model.
type stubEditor struct{}

func (stubEditor) WriteDraft(_ context.Context, req judge.DraftRequest) (string, error) {
	var b strings.Builder
	b.WriteString("# The London Sauna\n\n")
	for _, c := range req.Shortlist {
		b.WriteString("- " + c.Title + "\n")
	}
	return b.String(), nil
}

func (stubEditor) Critique(context.Context, judge.CritiqueRequest) ([]model.Finding, error) {
	return nil, nil
}

func (stubEditor) Revise(_ context.Context, req judge.ReviseRequest) (string, error) {
	return req.Draft, nil
}

type fakePublisher struct {
	pages    []notion.Page
	archived []string
	err      error
	partial  string // page id returned with err, as when appending blocks fails
}

func (p *fakePublisher) Publish(_ context.Context, page notion.Page) (string, error) {
	if p.err != nil {
		return p.partial, p.err
	}
	p.pages = append(p.pages, page)
	return "page-1", nil
}

func (p *fakePublisher) Archive(_ context.Context, pageID string) error {
	p.archived = append(p.archived, pageID)
	return nil
}

type fakeRecorder struct {
	recs []model.UsageRecord
}

func (r *fakeRecorder) RecordUsage(_ context.Context, recs []model.UsageRecord) (int, error) {
	r.recs = append(r.recs, recs...)
	return len(recs), nil
}

func seedRun(t *testing.T, store *runstore.Store) model.Run {
	t.Helper()
	run := model.Run{
		RunID:     "20260210_090000",
		CreatedAt: tuesday,
		Candidates: []model.Candidate{
			{ID: "c1", SourceType: model.SourceEmailArtifact, Title: "Peckham plunge pool", Confidence: 0.9, RawSourceIDs: []string{"email_artifact:art-1"}},
			{ID: "c2", SourceType: model.SourceVenueScrape, Title: "Full Moon Aufguss", URL: "https://arc.example/fm", Confidence: 0.85, RawSourceIDs: []string{"venue_scrape:v1"}},
		},
		Metadata: model.RunMetadata{Spotlight: &model.Spotlight{Venue: "Arc", URL: "https://arc.example"}},
	}
	_, err := store.Save(run)
	require.NoError(t, err)
	return run
}

func newDrafter(t *testing.T, pub Publisher, rec *fakeRecorder) (*Drafter, string) {
	t.Helper()
	dir := t.TempDir()
	store := runstore.New(filepath.Join(dir, "runs"))
	seedRun(t, store)
	draftsDir := filepath.Join(dir, "drafts")
	d := &Drafter{
		Runs:        store,
		Shortlister: &shortlist.Shortlister{Target: 15},
		Loop: &editorial.Loop{
			Writer: stubEditor{}, Critic: stubEditor{}, Reviser: stubEditor{},
			MaxIterations: 2, Threshold: model.SeverityLow,
		},
		Archive:   &IssueArchive{DraftsDir: draftsDir},
		DraftsDir: draftsDir,
		Title:     "Draft - {.IssueDate}",
		Publisher: pub,
		Tracker:   &usage.Tracker{Store: rec, Now: func() time.Time { return tuesday }},
		Now:       func() time.Time { return tuesday },
	}
	return d, draftsDir
}

func TestDrafterPublishesAndTracksUsage(t *testing.T) {
	pub := &fakePublisher{}
	rec := &fakeRecorder{}
	d, draftsDir := newDrafter(t, pub, rec)

	res, err := d.Run(context.Background(), "latest")
	require.NoError(t, err)
	assert.Equal(t, "page-1", res.PageID)
	assert.Equal(t, editorial.Accepted, res.Outcome.State)

	require.Len(t, pub.pages, 1)
	page := pub.pages[0]
	assert.Equal(t, "Draft - February 12, 2026", page.Title)
	assert.Equal(t, "Arc", page.Spotlight)
	assert.Equal(t, time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC), page.IssueDate)
	assert.Contains(t, page.Markdown, "- Full Moon Aufguss")
	assert.Equal(t, []string{"https://arc.example/fm", "https://arc.example"}, page.Sources)

	require.Len(t, rec.recs, 1)
	assert.Equal(t, model.UsageRecord{ArtifactID: "art-1", RunID: "20260210_090000", UsedAt: tuesday}, rec.recs[0])

	var meta DraftMeta
	_, err = markdown.ReadFile(DraftPath(draftsDir, res.RunID), &meta)
	require.NoError(t, err)
	assert.Equal(t, "ACCEPTED", meta.FinalState)
	assert.Equal(t, "page-1", meta.PageID)
	assert.Equal(t, []string{"c1", "c2"}, meta.ShortlistIDs)
}

func TestDrafterPublishFailureKeepsDraft(t *testing.T) {
	pub := &fakePublisher{err: &notion.PublishError{Kind: notion.KindAuth, Err: errors.New("401")}}
	rec := &fakeRecorder{}
	d, draftsDir := newDrafter(t, pub, rec)

	res, err := d.Run(context.Background(), "20260210_090000")
	var pe *notion.PublishError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, notion.KindAuth, pe.Kind)
	assert.FileExists(t, DraftPath(draftsDir, res.RunID))
	assert.Empty(t, rec.recs, "usage is only recorded after a successful publish")

	// retry without re-drafting
	pub.err = nil
	id, err := d.Publish(context.Background(), "latest")
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
	require.Len(t, pub.pages, 1)
	assert.Equal(t, "Draft - February 12, 2026", pub.pages[0].Title)
	require.Len(t, rec.recs, 1)
	assert.Equal(t, "art-1", rec.recs[0].ArtifactID)
}

func TestDrafterArchivesPartialPageBeforeRetry(t *testing.T) {
	pub := &fakePublisher{
		err:     &notion.PublishError{Kind: notion.KindNetwork, Err: errors.New("500")},
		partial: "page-half",
	}
	rec := &fakeRecorder{}
	d, draftsDir := newDrafter(t, pub, rec)

	res, err := d.Run(context.Background(), "latest")
	require.Error(t, err)
	var meta DraftMeta
	_, err = markdown.ReadFile(DraftPath(draftsDir, res.RunID), &meta)
	require.NoError(t, err)
	assert.Equal(t, "page-half", meta.PageID)
	assert.True(t, meta.Incomplete)
	assert.Empty(t, pub.archived)

	pub.err, pub.partial = nil, ""
	id, err := d.Publish(context.Background(), "latest")
	require.NoError(t, err)
	assert.Equal(t, "page-1", id)
	assert.Equal(t, []string{"page-half"}, pub.archived)
	require.Len(t, pub.pages, 1)

	meta = DraftMeta{}
	_, err = markdown.ReadFile(DraftPath(draftsDir, res.RunID), &meta)
	require.NoError(t, err)
	assert.Equal(t, "page-1", meta.PageID)
	assert.False(t, meta.Incomplete)

	// a complete page is not archived on a later re-publish
	_, err = d.Publish(context.Background(), "latest")
	require.NoError(t, err)
	assert.Equal(t, []string{"page-half"}, pub.archived)
}

func TestDrafterPublishRejectsPathLikeRunID(t *testing.T) {
	pub := &fakePublisher{}
	d, _ := newDrafter(t, pub, &fakeRecorder{})
	_, err := d.Publish(context.Background(), "../../etc/passwd")
	require.ErrorIs(t, err, runstore.ErrInvalidID)
	assert.Empty(t, pub.pages)
}

func TestDrafterMissingRunHasNoSideEffects(t *testing.T) {
	pub := &fakePublisher{}
	d, draftsDir := newDrafter(t, pub, &fakeRecorder{})
	_, err := d.Run(context.Background(), "20250101_000000")
	require.ErrorIs(t, err, runstore.ErrRunNotFound)
	_, statErr := os.Stat(draftsDir)
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, pub.pages)
}

func TestDrafterWithoutPublisherOnlySaves(t *testing.T) {
	d, draftsDir := newDrafter(t, nil, &fakeRecorder{})
	res, err := d.Run(context.Background(), "latest")
	require.NoError(t, err)
	assert.Empty(t, res.PageID)
	assert.FileExists(t, DraftPath(draftsDir, res.RunID))
}

func TestIssueArchiveLocalFallback(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"20260127_090000", "20260203_090000", "20260210_090000"} {
		require.NoError(t, markdown.WriteFile(DraftPath(dir, id), DraftMeta{RunID: id}, "issue "+id))
	}
	a := &IssueArchive{Remote: failingIssues{}, DraftsDir: dir, MaxChars: 11}
	got := a.Sample(context.Background(), 2, "20260210_090000")
	assert.Equal(t, []string{"issue 20260", "issue 20260"}, got)

	a.MaxChars = 0
	got = a.Sample(context.Background(), 5, "20260210_090000")
	assert.Equal(t, []string{"issue 20260203_090000", "issue 20260127_090000"}, got)
}

type failingIssues struct{}

func (failingIssues) RecentIssues(context.Context, int) ([]string, error) {
	return nil, errors.New("notion unavailable")
}
