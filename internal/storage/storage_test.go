package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"sauna-briefing/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "email.db"))
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, s.Close()) })
	return s
}

func saveArtifact(t *testing.T, s *SQLiteStore, id string, conf float64, relevant bool, date time.Time) {
	t.Helper()
	err := s.SaveEmail(context.Background(),
		Email{ID: "msg-" + id, Sender: "news@example.com", Subject: "Sauna " + id, Date: date, Body: "body"},
		&model.EmailArtifact{ArtifactID: id, CompressedContent: "content " + id, Summary: "summary " + id, ConfidenceScore: conf, IsRelevant: relevant},
	)
	require.NoError(t, err)
}

func TestRecordUsageIsIdempotent(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	recs := []model.UsageRecord{
		{ArtifactID: "a1", RunID: "20260210_090000"},
		{ArtifactID: "a2", RunID: "20260210_090000"},
	}

	n, err := s.RecordUsage(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.RecordUsage(ctx, recs)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "resubmitting the same pairs must be a no-op")

	ids, err := s.UsageForRun(ctx, "20260210_090000")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2"}, ids)
}

func TestUnusedArtifactsFiltersAndOrders(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	saveArtifact(t, s, "low", 0.3, true, now.Add(-24*time.Hour))
	saveArtifact(t, s, "old", 0.9, true, now.Add(-10*24*time.Hour))
	saveArtifact(t, s, "irrelevant", 0.9, false, now.Add(-24*time.Hour))
	saveArtifact(t, s, "mid", 0.7, true, now.Add(-48*time.Hour))
	saveArtifact(t, s, "top-new", 0.8, true, now.Add(-2*time.Hour))
	saveArtifact(t, s, "top-old", 0.8, true, now.Add(-72*time.Hour))
	saveArtifact(t, s, "used", 0.95, true, now.Add(-time.Hour))

	_, err := s.RecordUsage(ctx, []model.UsageRecord{{ArtifactID: "used", RunID: "20260203_090000"}})
	require.NoError(t, err)

	got, err := s.UnusedArtifacts(ctx, ArtifactQuery{MinConfidence: 0.5, Since: now.AddDate(0, 0, -7)})
	require.NoError(t, err)

	var ids []string
	for _, a := range got {
		ids = append(ids, a.ArtifactID)
	}
	assert.Equal(t, []string{"top-new", "top-old", "mid"}, ids)
	assert.Equal(t, "Sauna top-new", got[0].Subject)
	assert.True(t, got[0].IsRelevant)
	assert.Equal(t, now.Add(-2*time.Hour), got[0].EmailDate)
}

func TestSaveEmailTwiceAndLatestDate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	_, ok, err := s.LatestEmailDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	d := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	saveArtifact(t, s, "x", 0.8, true, d)
	saveArtifact(t, s, "x", 0.8, true, d)

	has, err := s.HasEmail(ctx, "msg-x")
	require.NoError(t, err)
	assert.True(t, has)
	has, err = s.HasEmail(ctx, "msg-missing")
	require.NoError(t, err)
	assert.False(t, has)

	latest, ok, err := s.LatestEmailDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, d, latest)
}

func TestWatermarkUpserts(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "email.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	_, ok, err := s.Watermark(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	first := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetWatermark(ctx, first))
	require.NoError(t, s.SetWatermark(ctx, first.Add(time.Hour)))
	got, ok, err := s.Watermark(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first.Add(time.Hour), got)
}

func TestReopenDoesNotRerunMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email.db")
	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	s, err = NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestSearchKeyPerWeek(t *testing.T) {
	mon := time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)
	sun := time.Date(2026, 2, 15, 23, 0, 0, 0, time.UTC)
	next := time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, searchKey("London sauna", mon), searchKey(" london SAUNA ", sun))
	assert.NotEqual(t, searchKey("London sauna", mon), searchKey("London sauna", next))
	assert.Contains(t, searchKey("q", mon), "2026-W07")
}

func TestNilSearchCache(t *testing.T) {
	var c *SearchCache
	var v []string
	hit, err := c.Get(context.Background(), "q", time.Now(), &v)
	assert.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, c.Set(context.Background(), "q", time.Now(), v))
}
