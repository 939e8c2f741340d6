package usage

import (
	"context"
	"testing"
	"time"

	"sauna-briefing/internal/model"
)

type memRecorder struct {
	rows map[[2]string]bool
}

func (m *memRecorder) RecordUsage(_ context.Context, recs []model.UsageRecord) (int, error) {
	if m.rows == nil {
		m.rows = map[[2]string]bool{}
	}
	n := 0
	for _, r := range recs {
		k := [2]string{r.ArtifactID, r.RunID}
		if !m.rows[k] {
			m.rows[k] = true
			n++
		}
	}
	return n, nil
}

func TestTrackOnlyEmailArtifacts(t *testing.T) {
	shortlist := []model.Candidate{
		{ID: "c1", RawSourceIDs: []string{"venue_scrape:hw-0214", "email_artifact:art-77"}},
		{ID: "c2", RawSourceIDs: []string{"news_search:q1"}},
		{ID: "c3", RawSourceIDs: []string{"email_artifact:art-80", "email_artifact:art-77", "garbage"}},
	}
	rec := &memRecorder{}
	tr := &Tracker{Store: rec, Now: func() time.Time { return time.Date(2026, 2, 11, 0, 0, 0, 0, time.UTC) }}

	n, err := tr.Track(context.Background(), "20260210_090000", shortlist)
	if err != nil {
		t.Fatalf("Track: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 usage records, got %d", n)
	}
	if !rec.rows[[2]string{"art-77", "20260210_090000"}] || !rec.rows[[2]string{"art-80", "20260210_090000"}] {
		t.Fatalf("unexpected rows %v", rec.rows)
	}

	n, err = tr.Track(context.Background(), "20260210_090000", shortlist)
	if err != nil || n != 0 {
		t.Fatalf("second Track should write nothing, got %d %v", n, err)
	}
}

func TestTrackNothingToRecord(t *testing.T) {
	tr := &Tracker{Store: nil}
	n, err := tr.Track(context.Background(), "r", []model.Candidate{{RawSourceIDs: []string{"news_search:x"}}})
	if err != nil || n != 0 {
		t.Fatalf("got %d %v", n, err)
	}
}
