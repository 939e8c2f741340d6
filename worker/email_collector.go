package worker

import (
	"context"
	"strings"
	"time"

	"sauna-briefing/internal/model"
	"sauna-briefing/internal/storage"
)

// ArtifactSource is satisfied by *storage.SQLiteStore.
type ArtifactSource interface {
	UnusedArtifacts(ctx context.Context, q storage.ArtifactQuery) ([]model.EmailArtifact, error)
}

// EmailCollector offers relevant email artifacts no earlier newsletter used.
type EmailCollector struct {
	Store         ArtifactSource
	MinConfidence float64
	DaysBack      int
	Now           func() time.Time
}

func (c *EmailCollector) Name() string { return string(model.SourceEmailArtifact) }

func (c *EmailCollector) Collect(ctx context.Context, _ Window) ([]model.RawRecord, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	q := storage.ArtifactQuery{MinConfidence: c.MinConfidence}
	if c.DaysBack > 0 {
		q.Since = now().AddDate(0, 0, -c.DaysBack)
	}
	arts, err := c.Store.UnusedArtifacts(ctx, q)
	if err != nil {
		return nil, err
	}
	out := make([]model.RawRecord, 0, len(arts))
	for _, a := range arts {
		body := strings.TrimSpace(a.CompressedContent)
		if body == "" {
			body = a.Summary
		}
		title := strings.TrimSpace(a.Summary)
		if title == "" || len(title) > 120 {
			title = a.Subject
		}
		out = append(out, model.RawRecord{
			ID:         a.ArtifactID,
			SourceType: model.SourceEmailArtifact,
			Title:      title,
			Body:       body,
			Confidence: a.ConfidenceScore,
		})
	}
	return out, nil
}
