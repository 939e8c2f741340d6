// Package usage records which email artifacts a published newsletter used,
// so they are not offered to later runs.
package usage

import (
	"context"
	"log/slog"
	"time"

	"sauna-briefing/internal/model"
)

// Recorder persists usage records, ignoring pairs that already exist.
type Recorder interface {
	RecordUsage(ctx context.Context, recs []model.UsageRecord) (int, error)
}

type Tracker struct {
	Store Recorder
	Now   func() time.Time
}

// Records derives one usage record per email artifact behind the shortlist.
func Records(runID string, shortlist []model.Candidate, at time.Time) []model.UsageRecord {
	seen := map[string]bool{}
	var out []model.UsageRecord
	for _, c := range shortlist {
		for _, raw := range c.RawSourceIDs {
			typ, id, err := model.ParseRawSourceID(raw)
			if err != nil || typ != model.SourceEmailArtifact || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, model.UsageRecord{ArtifactID: id, RunID: runID, UsedAt: at})
		}
	}
	return out
}

// Track writes usage for a published run. Calling it again for the same run
// writes nothing new.
func (t *Tracker) Track(ctx context.Context, runID string, shortlist []model.Candidate) (int, error) {
	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	recs := Records(runID, shortlist, now().UTC())
	if len(recs) == 0 {
		return 0, nil
	}
	n, err := t.Store.RecordUsage(ctx, recs)
	if err != nil {
		return 0, err
	}
	slog.Info("usage: recorded artifact usage", "run_id", runID, "artifacts", len(recs), "new", n)
	return n, nil
}
