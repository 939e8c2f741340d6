// Package judge turns newsletter judgment calls (merge, rank, draft, critique,
// revise, email triage) into prompts for a language model backend and parses
// the answers back into typed values.
package judge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sauna-briefing/internal/model"
)

// Site names one judgment call site; each can be routed to its own backend.
type Site string

const (
	SiteMerge    Site = "merge"
	SiteRank     Site = "rank"
	SiteDraft    Site = "draft"
	SiteCritique Site = "critique"
	SiteRevise   Site = "revise"
	SiteEmail    Site = "email"
	SiteReading  Site = "reading"
)

// Prompt is one model call.
type Prompt struct {
	Site        Site
	System      string
	User        string
	JSON        bool // answer must be a single JSON object
	Temperature float32
}

// Completer is a language model backend.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// ErrNoBackend is returned when a call site has no backend configured.
var ErrNoBackend = errors.New("judge: no backend configured")

// Judge routes every call site to a backend and owns the prompt/parse logic.
type Judge struct {
	backends map[Site]Completer
	timeout  time.Duration
}

// New creates a judge. Sites missing from backends fail with ErrNoBackend,
// which callers treat like any other judgment failure.
func New(backends map[Site]Completer, timeout time.Duration) *Judge {
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	return &Judge{backends: backends, timeout: timeout}
}

func (j *Judge) call(ctx context.Context, p Prompt) (string, error) {
	b, ok := j.backends[p.Site]
	if !ok || b == nil {
		return "", fmt.Errorf("%w for %s", ErrNoBackend, p.Site)
	}
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	out, err := b.Complete(ctx, p)
	if err != nil {
		return "", fmt.Errorf("judge %s: %w", p.Site, err)
	}
	return out, nil
}

// GroupDuplicates asks which candidates describe the same real-world item.
// The answer is a list of index groups; indices are not range-checked here.
func (j *Judge) GroupDuplicates(ctx context.Context, cands []model.Candidate, tolerance time.Duration) ([][]int, error) {
	out, err := j.call(ctx, Prompt{
		Site:        SiteMerge,
		System:      mergeSystem(tolerance),
		User:        listCandidates(cands, 400),
		JSON:        true,
		Temperature: 0,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Groups [][]int `json:"groups"`
	}
	if err := decodeJSON(out, &resp); err != nil {
		return nil, fmt.Errorf("judge merge: %w", err)
	}
	return resp.Groups, nil
}

// Rank returns candidate indices, best first, at most limit long.
func (j *Judge) Rank(ctx context.Context, cands []model.Candidate, rubric string, limit int) ([]int, error) {
	out, err := j.call(ctx, Prompt{
		Site:        SiteRank,
		System:      rankSystem(rubric, limit),
		User:        listCandidates(cands, 300),
		JSON:        true,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}
	var resp struct {
		Order []int `json:"order"`
	}
	if err := decodeJSON(out, &resp); err != nil {
		return nil, fmt.Errorf("judge rank: %w", err)
	}
	return resp.Order, nil
}

// ReadingOption is one article offered to the reading corner judge.
type ReadingOption struct {
	Title   string
	URL     string
	Date    string
	Snippet string
}

// ReadingChoice is the judge's pick; Index is -1 when nothing was suitable.
type ReadingChoice struct {
	Index       int    `json:"index"`
	Publication string `json:"source_publication"`
	Summary     string `json:"summary"`
	Type        string `json:"article_type"`
	None        bool   `json:"no_article_found"`
}

// ChooseReading picks the single best article for the Reading Corner.
func (j *Judge) ChooseReading(ctx context.Context, opts []ReadingOption) (ReadingChoice, error) {
	out, err := j.call(ctx, Prompt{
		Site:        SiteReading,
		System:      readingSystem,
		User:        readingUser(opts),
		JSON:        true,
		Temperature: 0.2,
	})
	if err != nil {
		return ReadingChoice{}, err
	}
	c := ReadingChoice{Index: -1}
	if err := decodeJSON(out, &c); err != nil {
		return ReadingChoice{}, fmt.Errorf("judge reading: %w", err)
	}
	if c.None {
		return ReadingChoice{Index: -1, None: true}, nil
	}
	if c.Index < 0 || c.Index >= len(opts) {
		return ReadingChoice{}, fmt.Errorf("judge reading: index %d out of range [0,%d)", c.Index, len(opts))
	}
	c.Summary = strings.TrimSpace(c.Summary)
	return c, nil
}

// DraftRequest carries everything the writer sees.
type DraftRequest struct {
	Style      string
	Shortlist  []model.Candidate
	Spotlight  *model.Spotlight
	Reading    *model.Article
	IssueDate  string
	WeekRange  string
	PastIssues []string
	Language   string
	WordMin    int
	WordMax    int
}

// WriteDraft produces the first markdown draft.
func (j *Judge) WriteDraft(ctx context.Context, req DraftRequest) (string, error) {
	out, err := j.call(ctx, Prompt{
		Site:        SiteDraft,
		System:      draftSystem(req),
		User:        draftUser(req),
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}
	return cleanMarkdown(out)
}

// CritiqueRequest carries the draft and what it is judged against.
type CritiqueRequest struct {
	Draft      string
	PastIssues []string
	WordCount  int
	WordMin    int
	WordMax    int
	Language   string
}

// Critique returns the critic's findings; an empty slice means approved.
func (j *Judge) Critique(ctx context.Context, req CritiqueRequest) ([]model.Finding, error) {
	out, err := j.call(ctx, Prompt{
		Site:        SiteCritique,
		System:      critiqueSystem(req),
		User:        critiqueUser(req),
		JSON:        true,
		Temperature: 0.2,
	})
	if err != nil {
		return nil, err
	}
	findings, err := parseFindings(out)
	if err != nil {
		return nil, fmt.Errorf("judge critique: %w", err)
	}
	return findings, nil
}

// ReviseRequest carries the draft and the findings to fix.
type ReviseRequest struct {
	Draft    string
	Findings []model.Finding
	Style    string
	Language string
	WordMin  int
	WordMax  int
}

// Revise applies targeted fixes and returns the full revised draft.
func (j *Judge) Revise(ctx context.Context, req ReviseRequest) (string, error) {
	out, err := j.call(ctx, Prompt{
		Site:        SiteRevise,
		System:      reviseSystem(req),
		User:        reviseUser(req),
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}
	return cleanMarkdown(out)
}

// EmailRequest is one newsletter email to triage.
type EmailRequest struct {
	Sender  string
	Subject string
	Body    string
	Date    time.Time
}

// EmailVerdict is the triage outcome for one email.
type EmailVerdict struct {
	IsRelevant bool    `json:"is_sauna_related"`
	Confidence float64 `json:"confidence"`
	Summary    string  `json:"summary"`
	Compressed string  `json:"compressed_content"`
}

// ClassifyEmail decides whether an email is sauna-related and compresses it.
func (j *Judge) ClassifyEmail(ctx context.Context, req EmailRequest) (EmailVerdict, error) {
	out, err := j.call(ctx, Prompt{
		Site:        SiteEmail,
		System:      emailSystem,
		User:        emailUser(req),
		JSON:        true,
		Temperature: 0,
	})
	if err != nil {
		return EmailVerdict{}, err
	}
	var v EmailVerdict
	if err := decodeJSON(out, &v); err != nil {
		return EmailVerdict{}, fmt.Errorf("judge email: %w", err)
	}
	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}
	v.Summary = strings.TrimSpace(v.Summary)
	v.Compressed = strings.TrimSpace(v.Compressed)
	return v, nil
}
