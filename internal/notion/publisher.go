// Package notion publishes drafts to a Notion database and reads back
// previously published issues.
package notion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jomei/notionapi"
)

// ErrNotConfigured is returned when the API key or database id is missing.
var ErrNotConfigured = errors.New("notion: api key and database id are required")

// Notion accepts at most this many children per request.
const maxChildren = 100

// MaxSources caps the links listed in the Sources section.
const MaxSources = 20

// Publisher creates draft pages in the newsletter database.
type Publisher struct {
	client     *notionapi.Client
	databaseID notionapi.DatabaseID
	timeout    time.Duration
}

type Config struct {
	APIKey     string
	DatabaseID string
	Timeout    time.Duration
	HTTPClient *http.Client // optional
}

func New(cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.APIKey) == "" || strings.TrimSpace(cfg.DatabaseID) == "" {
		return nil, ErrNotConfigured
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	var opts []notionapi.ClientOption
	if cfg.HTTPClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(cfg.HTTPClient))
	}
	return &Publisher{
		client:     notionapi.NewClient(notionapi.Token(strings.TrimSpace(cfg.APIKey)), opts...),
		databaseID: notionapi.DatabaseID(strings.TrimSpace(cfg.DatabaseID)),
		timeout:    timeout,
	}, nil
}

// Page is one newsletter draft to publish.
type Page struct {
	Title     string
	IssueDate time.Time
	RunID     string
	Spotlight string
	Markdown  string
	Sources   []string
}

// Publish creates the page and returns its id. Failures come back as
// *PublishError; when the page was created but appending the remaining
// blocks failed, its id is returned alongside the error.
func (p *Publisher) Publish(ctx context.Context, page Page) (string, error) {
	children := append(MarkdownToBlocks(page.Markdown), SourceBlocks(page.Sources, MaxSources)...)
	first := children
	var rest []notionapi.Block
	if len(children) > maxChildren {
		first, rest = children[:maxChildren], children[maxChildren:]
	}

	ctxCreate, cancel := context.WithTimeout(ctx, p.timeout)
	created, err := p.client.Page.Create(ctxCreate, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: p.databaseID,
		},
		Properties: properties(page),
		Children:   first,
	})
	cancel()
	if err != nil {
		return "", classify(err)
	}
	pageID := created.ID.String()

	for len(rest) > 0 {
		batch := rest
		if len(batch) > maxChildren {
			batch = rest[:maxChildren]
		}
		rest = rest[len(batch):]
		ctxAppend, cancel := context.WithTimeout(ctx, p.timeout)
		_, err := p.client.Block.AppendChildren(ctxAppend, notionapi.BlockID(pageID), &notionapi.AppendBlockChildrenRequest{Children: batch})
		cancel()
		if err != nil {
			return pageID, classify(fmt.Errorf("append blocks to %s: %w", pageID, err))
		}
	}
	slog.Info("notion: page created", "page_id", pageID, "run_id", page.RunID, "blocks", len(children))
	return pageID, nil
}

func properties(page Page) notionapi.Properties {
	date := notionapi.Date(page.IssueDate)
	props := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: page.Title}}},
		},
		"Issue Date": notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &date},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: "Draft"},
		},
		"Run ID": notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: page.RunID}}},
		},
	}
	if page.Spotlight != "" {
		props["Spotlight Venue"] = notionapi.RichTextProperty{
			RichText: []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: page.Spotlight}}},
		}
	}
	return props
}

// RecentIssues returns the text of the most recently published issues,
// newest first.
func (p *Publisher) RecentIssues(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}
	ctxQ, cancel := context.WithTimeout(ctx, p.timeout)
	resp, err := p.client.Database.Query(ctxQ, p.databaseID, &notionapi.DatabaseQueryRequest{
		Filter: notionapi.PropertyFilter{
			Property: "Status",
			Select:   &notionapi.SelectFilterCondition{Equals: "Published"},
		},
		Sorts:    []notionapi.SortObject{{Property: "Issue Date", Direction: notionapi.SortOrderDESC}},
		PageSize: limit,
	})
	cancel()
	if err != nil {
		return nil, classify(err)
	}
	var out []string
	for _, pg := range resp.Results {
		ctxB, cancel := context.WithTimeout(ctx, p.timeout)
		children, err := p.client.Block.GetChildren(ctxB, notionapi.BlockID(pg.ID), &notionapi.Pagination{PageSize: 100})
		cancel()
		if err != nil {
			slog.Warn("notion: reading past issue failed", "page_id", pg.ID, "err", err)
			continue
		}
		if text := blocksToText(children.Results); text != "" {
			out = append(out, text)
		}
	}
	return out, nil
}

// Archive moves a page to the trash. A page that no longer exists counts as
// archived.
func (p *Publisher) Archive(ctx context.Context, pageID string) error {
	ctxU, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	_, err := p.client.Page.Update(ctxU, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{},
		Archived:   true,
	})
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	if err != nil {
		return classify(fmt.Errorf("archive page %s: %w", pageID, err))
	}
	slog.Info("notion: page archived", "page_id", pageID)
	return nil
}

// ErrorKind classifies publish failures for the operator.
type ErrorKind string

const (
	KindAuth       ErrorKind = "auth"
	KindValidation ErrorKind = "validation"
	KindNetwork    ErrorKind = "network"
	KindUnknown    ErrorKind = "unknown"
)

// PublishError is a typed Notion failure.
type PublishError struct {
	Kind ErrorKind
	Err  error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("notion %s error: %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

func classify(err error) error {
	if err == nil {
		return nil
	}
	var pe *PublishError
	if errors.As(err, &pe) {
		return err
	}
	kind := KindUnknown
	var apiErr *notionapi.Error
	var netErr net.Error
	switch {
	case errors.As(err, &apiErr):
		switch {
		case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
			kind = KindAuth
		case apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500:
			kind = KindNetwork
		case apiErr.Status >= 400:
			kind = KindValidation
		}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		kind = KindNetwork
	}
	return &PublishError{Kind: kind, Err: err}
}
