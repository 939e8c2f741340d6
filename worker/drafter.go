package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"sauna-briefing/internal/editorial"
	"sauna-briefing/internal/markdown"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/newsletter"
	"sauna-briefing/internal/notion"
	"sauna-briefing/internal/runstore"
	"sauna-briefing/internal/shortlist"
	"sauna-briefing/internal/usage"
)

// Publisher is satisfied by *notion.Publisher.
type Publisher interface {
	Publish(ctx context.Context, page notion.Page) (string, error)
	Archive(ctx context.Context, pageID string) error
}

// DraftMeta is the frontmatter of a saved draft file.
type DraftMeta struct {
	RunID        string   `yaml:"run_id"`
	Title        string   `yaml:"title"`
	IssueDate    string   `yaml:"issue_date"`
	FinalState   string   `yaml:"final_state"`
	Iterations   int      `yaml:"iterations"`
	Spotlight    string   `yaml:"spotlight,omitempty"`
	ShortlistIDs []string `yaml:"shortlist_ids,omitempty"`
	Sources      []string `yaml:"sources,omitempty"`
	PageID       string   `yaml:"page_id,omitempty"`
	Incomplete   bool     `yaml:"publish_incomplete,omitempty"` // PageID holds only part of the draft
}

// Drafter turns a stored run into a published draft.
type Drafter struct {
	Runs        *runstore.Store
	Shortlister *shortlist.Shortlister
	Loop        *editorial.Loop
	Archive     *IssueArchive
	PastIssues  int
	DraftsDir   string
	Title       string
	// Publisher and Tracker are optional; without a publisher the draft is
	// only written to disk.
	Publisher Publisher
	Tracker   *usage.Tracker
	Now       func() time.Time
}

type DraftResult struct {
	RunID     string
	Path      string
	PageID    string
	Outcome   editorial.Outcome
	Shortlist []model.Candidate
}

// DraftPath is where the draft for runID is kept.
func DraftPath(dir, runID string) string {
	return filepath.Join(dir, runID+draftSuffix)
}

// Run drafts the given run ("latest" allowed). A missing run fails before
// any side effect; a publish failure is returned after the draft file is saved.
func (d *Drafter) Run(ctx context.Context, runID string) (DraftResult, error) {
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	at := now()
	run, err := d.Runs.Load(runID)
	if err != nil {
		return DraftResult{}, err
	}
	res := DraftResult{RunID: run.RunID}
	slog.Info("draft: run loaded", "run_id", run.RunID, "candidates", len(run.Candidates))

	res.Shortlist = d.Shortlister.Select(ctx, run.Candidates)
	slog.Info("draft: shortlist selected", "run_id", run.RunID, "items", len(res.Shortlist))

	past := d.Archive.Sample(ctx, d.PastIssues, run.RunID)
	res.Outcome, err = d.Loop.Run(ctx, editorial.Input{
		Shortlist:  res.Shortlist,
		Spotlight:  run.Metadata.Spotlight,
		Reading:    run.Metadata.ReadingCorner,
		PastIssues: past,
		Now:        at,
	})
	if err != nil {
		return res, fmt.Errorf("editorial loop: %w", err)
	}

	meta := DraftMeta{
		RunID:        run.RunID,
		Title:        newsletter.ExpandVars(d.Title, at),
		IssueDate:    newsletter.IssueDate(at).Format(time.DateOnly),
		FinalState:   res.Outcome.State.String(),
		Iterations:   res.Outcome.Iterations,
		ShortlistIDs: candidateIDs(res.Shortlist),
		Sources:      sources(res.Shortlist, run.Metadata.Spotlight, run.Metadata.ReadingCorner),
	}
	if sp := run.Metadata.Spotlight; sp != nil {
		meta.Spotlight = sp.Venue
	}
	res.Path = DraftPath(d.DraftsDir, run.RunID)
	if err := markdown.WriteFile(res.Path, meta, res.Outcome.Draft); err != nil {
		return res, fmt.Errorf("save draft: %w", err)
	}
	slog.Info("draft: saved", "path", res.Path, "state", meta.FinalState, "iterations", meta.Iterations)

	if d.Publisher == nil {
		return res, nil
	}
	res.PageID, err = d.publish(ctx, res.Path, meta, res.Outcome.Draft, res.Shortlist)
	return res, err
}

// Publish re-publishes a saved draft without re-running the editorial loop.
func (d *Drafter) Publish(ctx context.Context, runID string) (string, error) {
	if d.Publisher == nil {
		return "", notion.ErrNotConfigured
	}
	id, err := d.Runs.Resolve(runID)
	if err != nil {
		return "", err
	}
	path := DraftPath(d.DraftsDir, id)
	var meta DraftMeta
	body, err := markdown.ReadFile(path, &meta)
	if err != nil {
		return "", fmt.Errorf("read draft for run %s: %w", id, err)
	}
	if meta.RunID == "" {
		meta.RunID = id
	}
	var picked []model.Candidate
	if run, err := d.Runs.Load(id); err == nil {
		picked = byID(run.Candidates, meta.ShortlistIDs)
	} else if !errors.Is(err, runstore.ErrRunNotFound) {
		return "", err
	}
	return d.publish(ctx, path, meta, body, picked)
}

func (d *Drafter) publish(ctx context.Context, path string, meta DraftMeta, body string, picked []model.Candidate) (string, error) {
	issue, err := time.Parse(time.DateOnly, meta.IssueDate)
	if err != nil {
		issue = newsletter.IssueDate(time.Now())
	}
	if meta.Incomplete && meta.PageID != "" {
		if err := d.Publisher.Archive(ctx, meta.PageID); err != nil {
			return "", fmt.Errorf("archive partial page %s before retry: %w", meta.PageID, err)
		}
		slog.Info("draft: archived partial page", "run_id", meta.RunID, "page_id", meta.PageID)
		meta.PageID, meta.Incomplete = "", false
		d.record(path, meta, body)
	}
	pageID, err := d.Publisher.Publish(ctx, notion.Page{
		Title:     meta.Title,
		IssueDate: issue,
		RunID:     meta.RunID,
		Spotlight: meta.Spotlight,
		Markdown:  strings.TrimSpace(body),
		Sources:   meta.Sources,
	})
	if err != nil {
		if pageID != "" {
			meta.PageID, meta.Incomplete = pageID, true
			d.record(path, meta, body)
		}
		return "", fmt.Errorf("publish draft (kept at %s): %w", path, err)
	}
	slog.Info("draft: published", "run_id", meta.RunID, "page_id", pageID)

	meta.PageID = pageID
	d.record(path, meta, body)
	if d.Tracker != nil {
		if _, err := d.Tracker.Track(ctx, meta.RunID, picked); err != nil {
			slog.Error("draft: usage tracking failed after publish", "run_id", meta.RunID, "err", err)
		}
	}
	return pageID, nil
}

func (d *Drafter) record(path string, meta DraftMeta, body string) {
	if err := markdown.WriteFile(path, meta, body); err != nil {
		slog.Warn("draft: recording page id failed", "path", path, "err", err)
	}
}

func candidateIDs(cs []model.Candidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func byID(cs []model.Candidate, ids []string) []model.Candidate {
	idx := make(map[string]model.Candidate, len(cs))
	for _, c := range cs {
		idx[c.ID] = c
	}
	var out []model.Candidate
	for _, id := range ids {
		if c, ok := idx[id]; ok {
			out = append(out, c)
		}
	}
	return out
}

// sources lists distinct URLs behind the shortlist, then the spotlight
// research, then the reading corner article.
func sources(cs []model.Candidate, sp *model.Spotlight, rd *model.Article) []string {
	seen := map[string]bool{}
	var out []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	for _, c := range cs {
		add(c.URL)
		for _, u := range c.URLs {
			add(u)
		}
	}
	if sp != nil {
		add(sp.URL)
		for _, r := range sp.Research {
			for _, u := range r.Sources {
				add(u)
			}
		}
	}
	if rd != nil {
		add(rd.URL)
	}
	return out
}
