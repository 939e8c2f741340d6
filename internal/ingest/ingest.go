// Package ingest pulls newsletter emails, triages them with the email judge
// and stores the relevant ones as artifacts for the gather pipeline.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"sauna-briefing/internal/judge"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/storage"

	"github.com/google/uuid"
)

// Message is one fetched email.
type Message struct {
	ID      string
	Sender  string
	Subject string
	Date    time.Time
	Body    string
}

// Source lists messages received after since.
type Source interface {
	Messages(ctx context.Context, since time.Time, max int) ([]Message, error)
}

// Classifier is satisfied by *judge.Judge.
type Classifier interface {
	ClassifyEmail(ctx context.Context, req judge.EmailRequest) (judge.EmailVerdict, error)
}

// Store is satisfied by *storage.SQLiteStore.
type Store interface {
	HasEmail(ctx context.Context, id string) (bool, error)
	LatestEmailDate(ctx context.Context) (time.Time, bool, error)
	Watermark(ctx context.Context) (time.Time, bool, error)
	SetWatermark(ctx context.Context, t time.Time) error
	SaveEmail(ctx context.Context, e storage.Email, a *model.EmailArtifact) error
}

type Ingester struct {
	Source     Source
	Classifier Classifier
	Store      Store
	DaysBack   int
	MaxResults int
	Now        func() time.Time
}

// Stats summarises one ingest run.
type Stats struct {
	Fetched  int
	Skipped  int
	Relevant int
	Stored   int
	Failed   int
}

// Run fetches messages after the watermark (or DaysBack days back on the
// first run). Messages arrive oldest first and the watermark only advances
// past an unbroken run of stored or already-seen messages, so a message
// whose classification fails is fetched again next run.
func (in *Ingester) Run(ctx context.Context) (Stats, error) {
	now := time.Now
	if in.Now != nil {
		now = in.Now
	}
	since, err := in.resumePoint(ctx, now())
	if err != nil {
		return Stats{}, err
	}
	slog.Info("ingest: fetching messages", "since", since.Format(time.RFC3339))

	msgs, err := in.Source.Messages(ctx, since, in.MaxResults)
	if err != nil {
		return Stats{}, fmt.Errorf("list messages: %w", err)
	}
	st := Stats{Fetched: len(msgs)}
	mark, blocked := since, false
	advance := func(m Message) {
		if !blocked && m.Date.After(mark) {
			mark = m.Date
		}
	}
	// saved even when unchanged, so a first run whose oldest message failed
	// keeps its window instead of resuming from a newer stored email
	defer func() {
		if err := in.Store.SetWatermark(ctx, mark); err != nil {
			slog.Warn("ingest: saving watermark failed", "err", err)
		}
	}()
	for _, m := range msgs {
		seen, err := in.Store.HasEmail(ctx, m.ID)
		if err != nil {
			return st, fmt.Errorf("check email %s: %w", m.ID, err)
		}
		if seen {
			st.Skipped++
			advance(m)
			continue
		}
		body := CleanBody(m.Body)
		v, err := in.Classifier.ClassifyEmail(ctx, judge.EmailRequest{
			Sender:  m.Sender,
			Subject: m.Subject,
			Body:    body,
			Date:    m.Date,
		})
		if err != nil {
			slog.Warn("ingest: classification failed; will retry next run", "email_id", m.ID, "err", err)
			st.Failed++
			blocked = true
			continue
		}
		art := &model.EmailArtifact{
			ArtifactID:        uuid.NewString(),
			EmailID:           m.ID,
			CompressedContent: v.Compressed,
			Summary:           v.Summary,
			ConfidenceScore:   v.Confidence,
			IsRelevant:        v.IsRelevant,
		}
		if err := in.Store.SaveEmail(ctx, storage.Email{
			ID:      m.ID,
			Sender:  m.Sender,
			Subject: m.Subject,
			Date:    m.Date,
			Body:    body,
		}, art); err != nil {
			return st, fmt.Errorf("save email %s: %w", m.ID, err)
		}
		st.Stored++
		advance(m)
		if v.IsRelevant {
			st.Relevant++
		}
	}
	slog.Info("ingest: done", "fetched", st.Fetched, "stored", st.Stored, "relevant", st.Relevant,
		"skipped", st.Skipped, "failed", st.Failed)
	return st, nil
}

// resumePoint prefers the stored watermark. Stores written before the
// watermark existed resume from their newest email.
func (in *Ingester) resumePoint(ctx context.Context, now time.Time) (time.Time, error) {
	if t, ok, err := in.Store.Watermark(ctx); err != nil {
		return time.Time{}, fmt.Errorf("read watermark: %w", err)
	} else if ok {
		return t, nil
	}
	if t, ok, err := in.Store.LatestEmailDate(ctx); err != nil {
		return time.Time{}, fmt.Errorf("latest email date: %w", err)
	} else if ok {
		return t, nil
	}
	days := in.DaysBack
	if days <= 0 {
		days = 7
	}
	return now.AddDate(0, 0, -days), nil
}
