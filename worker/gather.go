package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sauna-briefing/internal/dedup"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/newsletter"
	"sauna-briefing/internal/runstore"
)

// Gatherer runs collectors, merges their output and persists a new run.
type Gatherer struct {
	Manager   *Manager
	Merger    *dedup.Merger
	Store     *runstore.Store
	Spotlight *SpotlightPicker
	Reading   *ReadingPicker
	// WindowDays widens the collection window beyond the issue week when larger than 7.
	WindowDays int
	Now        func() time.Time
}

// Run performs one gather. Only persistence failures are returned as errors.
func (g *Gatherer) Run(ctx context.Context) (model.Run, error) {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	at := now().UTC()
	start, end := newsletter.EventWindow(at)
	if g.WindowDays > 7 {
		end = start.AddDate(0, 0, g.WindowDays)
	}
	w := Window{Start: start, End: end}
	slog.Info("gather: starting", "window_start", start.Format(time.DateOnly), "window_end", end.Format(time.DateOnly))

	collected := g.Manager.Run(ctx, w)
	cands := dedup.Normalize(collected.Records, at)
	merged := g.Merger.Merge(ctx, cands)
	slog.Info("gather: merged candidates", "raw", len(collected.Records), "candidates", len(merged.Candidates), "fallback", merged.Fallback)

	run := model.Run{
		SchemaVersion: model.RunSchemaVersion,
		RunID:         runstore.NewRunID(at),
		CreatedAt:     at,
		Candidates:    merged.Candidates,
		Metadata: model.RunMetadata{
			SourceCounts:   collected.Counts,
			RawRecordCount: len(collected.Records),
			MergeFallback:  merged.Fallback,
			Spotlight:      g.Spotlight.Pick(ctx),
			ReadingCorner:  g.Reading.Pick(ctx),
		},
	}
	if run.Candidates == nil {
		run.Candidates = []model.Candidate{}
	}
	if _, err := g.Store.Save(run); err != nil {
		return model.Run{}, fmt.Errorf("save run %s: %w", run.RunID, err)
	}
	slog.Info("gather: run saved", "run_id", run.RunID, "candidates", len(run.Candidates))
	return run, nil
}
