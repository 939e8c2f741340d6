package ingest

import (
	"context"
	"encoding/base64"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sauna-briefing/internal/judge"
	"sauna-briefing/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
)

type fakeSource struct {
	since time.Time
	msgs  []Message
}

func (f *fakeSource) Messages(_ context.Context, since time.Time, _ int) ([]Message, error) {
	f.since = since
	return f.msgs, nil
}

type fnClassifier func(req judge.EmailRequest) (judge.EmailVerdict, error)

func (f fnClassifier) ClassifyEmail(_ context.Context, req judge.EmailRequest) (judge.EmailVerdict, error) {
	return f(req)
}

func TestIngesterStoresClassifiedEmails(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "email.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	// already ingested
	require.NoError(t, store.SaveEmail(ctx, storage.Email{ID: "m0", Date: now.Add(-48 * time.Hour)}, nil))

	src := &fakeSource{msgs: []Message{
		{ID: "m0", Subject: "old"},
		{ID: "m1", Sender: "news@arc.example", Subject: "Full moon aufguss", Date: now.Add(-2 * time.Hour), Body: "Join us Saturday.\n> quoted reply\nUnsubscribe here"},
		{ID: "m2", Subject: "Shoe sale", Date: now.Add(-time.Hour), Body: "50% off"},
		{ID: "m3", Subject: "garbled", Date: now, Body: "???"},
	}}
	cls := fnClassifier(func(req judge.EmailRequest) (judge.EmailVerdict, error) {
		switch req.Subject {
		case "Full moon aufguss":
			assert.Equal(t, "Join us Saturday.", req.Body)
			return judge.EmailVerdict{IsRelevant: true, Confidence: 0.9, Summary: "Arc full moon aufguss", Compressed: "Full moon aufguss at Arc, Saturday."}, nil
		case "garbled":
			return judge.EmailVerdict{}, errors.New("unparseable verdict")
		}
		return judge.EmailVerdict{IsRelevant: false, Confidence: 0.1}, nil
	})

	in := &Ingester{Source: src, Classifier: cls, Store: store, Now: func() time.Time { return now }}
	st, err := in.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Fetched: 4, Skipped: 1, Relevant: 1, Stored: 2, Failed: 1}, st)
	assert.True(t, src.since.Equal(now.Add(-48*time.Hour)), "fetch resumes from the newest stored email")

	arts, err := store.UnusedArtifacts(ctx, storage.ArtifactQuery{MinConfidence: 0.5})
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, "m1", arts[0].EmailID)
	assert.Equal(t, "Full moon aufguss at Arc, Saturday.", arts[0].CompressedContent)

	seen, err := store.HasEmail(ctx, "m3")
	require.NoError(t, err)
	assert.False(t, seen, "failed classifications are retried next run")
}

func TestIngesterRetriesFailedMessageAfterNewerSuccess(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "email.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

	all := []Message{
		{ID: "old", Subject: "Banya night", Date: now.Add(-3 * time.Hour), Body: "Thursday banya."},
		{ID: "new", Subject: "Sauna opening", Date: now.Add(-time.Hour), Body: "Opens Friday."},
	}
	src := &windowSource{all: all}
	failOld := true
	cls := fnClassifier(func(req judge.EmailRequest) (judge.EmailVerdict, error) {
		if req.Subject == "Banya night" && failOld {
			return judge.EmailVerdict{}, errors.New("timeout")
		}
		return judge.EmailVerdict{IsRelevant: true, Confidence: 0.8, Summary: req.Subject}, nil
	})
	in := &Ingester{Source: src, Classifier: cls, Store: store, Now: func() time.Time { return now }}

	st, err := in.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Fetched: 2, Relevant: 1, Stored: 1, Failed: 1}, st)

	failOld = false
	st, err = in.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), src.since, "resume point must not pass the failed message")
	assert.Equal(t, Stats{Fetched: 2, Skipped: 1, Relevant: 1, Stored: 1}, st)

	seen, err := store.HasEmail(ctx, "old")
	require.NoError(t, err)
	assert.True(t, seen)

	mark, ok, err := store.Watermark(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, now.Add(-time.Hour), mark)
}

// windowSource returns the messages dated after since, oldest first.
type windowSource struct {
	since time.Time
	all   []Message
}

func (w *windowSource) Messages(_ context.Context, since time.Time, _ int) ([]Message, error) {
	w.since = since
	var out []Message
	for _, m := range w.all {
		if m.Date.After(since) {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestIngesterDefaultWindow(t *testing.T) {
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "email.db"))
	require.NoError(t, err)
	defer store.Close()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	src := &fakeSource{}
	in := &Ingester{Source: src, Classifier: fnClassifier(nil), Store: store, Now: func() time.Time { return now }}
	_, err = in.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, -7), src.since)
}

func TestCleanBody(t *testing.T) {
	long := "https://track.example.com/" + strings.Repeat("x", 90)
	in := "Hello   sauna   friends\r\n\r\n\r\n\r\nNew session: " + long + "\n> On Monday someone wrote\nView this email in your browser\nfooter junk"
	got := CleanBody(in)
	assert.Equal(t, "Hello sauna friends\n\nNew session: [link]", got)
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText(`<html><head><style>p{}</style></head><body><p>Banya night</p><p>Friday<br>7pm</p><script>x()</script></body></html>`)
	assert.Contains(t, got, "Banya night")
	assert.Contains(t, got, "Friday\n7pm")
	assert.NotContains(t, got, "x()")
}

func TestToMessagePrefersPlainText(t *testing.T) {
	enc := base64.URLEncoding.EncodeToString
	msg := &gmail.Message{
		Id:           "abc",
		InternalDate: time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC).UnixMilli(),
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Arc <hello@arc.example>"},
				{Name: "Subject", Value: "This week at Arc"},
			},
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: enc([]byte("<p>html body</p>"))}},
				{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: enc([]byte("plain body"))}},
			},
		},
	}
	m := toMessage(msg)
	assert.Equal(t, "abc", m.ID)
	assert.Equal(t, "Arc <hello@arc.example>", m.Sender)
	assert.Equal(t, "This week at Arc", m.Subject)
	assert.Equal(t, "plain body", m.Body)
	assert.Equal(t, time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC), m.Date)

	msg.Payload.Parts = msg.Payload.Parts[:1]
	assert.Contains(t, toMessage(msg).Body, "html body")
}
