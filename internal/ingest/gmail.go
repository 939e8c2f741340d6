package ingest

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"sauna-briefing/internal/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// ErrNoToken means the OAuth token file is missing; run the auth flow first.
var ErrNoToken = errors.New("gmail token not found")

// Gmail lists messages from the authorised mailbox.
type Gmail struct {
	svc   *gmail.Service
	query string
}

func oauthConfig(cfg config.GmailConfig) (*oauth2.Config, error) {
	b, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read gmail credentials: %w", err)
	}
	conf, err := google.ConfigFromJSON(b, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse gmail credentials: %w", err)
	}
	return conf, nil
}

// NewGmail builds a Gmail client from the credentials and token files.
func NewGmail(ctx context.Context, cfg config.GmailConfig) (*Gmail, error) {
	conf, err := oauthConfig(cfg)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(cfg.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s", ErrNoToken, cfg.TokenFile)
	}
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("decode gmail token: %w", err)
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(conf.TokenSource(ctx, &tok)))
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}
	return &Gmail{svc: svc, query: cfg.Query}, nil
}

// Authorize runs the copy-paste OAuth flow and saves the token file.
func Authorize(ctx context.Context, cfg config.GmailConfig, in io.Reader, out io.Writer) error {
	conf, err := oauthConfig(cfg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Open this URL, approve access, then paste the code here:\n%s\n> ",
		conf.AuthCodeURL("sauna-briefing", oauth2.AccessTypeOffline))
	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return fmt.Errorf("read auth code: %w", err)
	}
	tok, err := conf.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return fmt.Errorf("exchange auth code: %w", err)
	}
	b, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.TokenFile), 0o700); err != nil {
		return err
	}
	return os.WriteFile(cfg.TokenFile, b, 0o600)
}

// Messages returns the oldest max messages after since, oldest first. The
// listing is newest first, so every page is read before trimming; keeping
// the oldest ones leaves no gap behind the caller's resume point.
func (g *Gmail) Messages(ctx context.Context, since time.Time, max int) ([]Message, error) {
	if max <= 0 {
		max = 100
	}
	// after: has one-second resolution; re-fetched messages are skipped by id
	q := strings.TrimSpace(fmt.Sprintf("%s after:%d", g.query, since.Unix()-1))
	var ids []string
	err := g.svc.Users.Messages.List("me").Q(q).MaxResults(500).Pages(ctx, func(resp *gmail.ListMessagesResponse) error {
		for _, m := range resp.Messages {
			ids = append(ids, m.Id)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gmail list: %w", err)
	}
	if len(ids) > max {
		ids = ids[len(ids)-max:]
	}

	out := make([]Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		msg, err := g.svc.Users.Messages.Get("me", ids[i]).Format("full").Context(ctx).Do()
		if err != nil {
			return out, fmt.Errorf("gmail get %s: %w", ids[i], err)
		}
		out = append(out, toMessage(msg))
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Date.Before(out[b].Date) })
	return out, nil
}

func toMessage(msg *gmail.Message) Message {
	m := Message{ID: msg.Id, Date: time.UnixMilli(msg.InternalDate).UTC()}
	if msg.Payload == nil {
		m.Body = msg.Snippet
		return m
	}
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			m.Sender = h.Value
		case "subject":
			m.Subject = h.Value
		}
	}
	plain, html := bodies(msg.Payload)
	switch {
	case strings.TrimSpace(plain) != "":
		m.Body = plain
	case strings.TrimSpace(html) != "":
		m.Body = HTMLToText(html)
	default:
		m.Body = msg.Snippet
	}
	return m
}

// bodies walks the MIME tree and returns the first text/plain and text/html parts.
func bodies(p *gmail.MessagePart) (plain, html string) {
	if p == nil {
		return "", ""
	}
	if p.Body != nil && p.Body.Data != "" {
		switch p.MimeType {
		case "text/plain":
			plain = decodePart(p.Body.Data)
		case "text/html":
			html = decodePart(p.Body.Data)
		}
	}
	for _, child := range p.Parts {
		cp, ch := bodies(child)
		if plain == "" {
			plain = cp
		}
		if html == "" {
			html = ch
		}
	}
	return plain, html
}

func decodePart(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		b, err = base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
		if err != nil {
			return ""
		}
	}
	return string(b)
}
