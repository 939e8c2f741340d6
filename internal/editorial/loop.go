// Package editorial drives the bounded draft, critique and revise cycle.
package editorial

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"sauna-briefing/internal/judge"
	"sauna-briefing/internal/model"
	"sauna-briefing/internal/newsletter"
)

// State is a position in the editorial state machine.
type State int

const (
	Drafting State = iota
	Critiquing
	Revising
	Accepted
	Exhausted
)

func (s State) String() string {
	switch s {
	case Drafting:
		return "DRAFTING"
	case Critiquing:
		return "CRITIQUING"
	case Revising:
		return "REVISING"
	case Accepted:
		return "ACCEPTED"
	case Exhausted:
		return "MAX_ITERATIONS_EXHAUSTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the loop stops in s.
func (s State) Terminal() bool { return s == Accepted || s == Exhausted }

type Writer interface {
	WriteDraft(ctx context.Context, req judge.DraftRequest) (string, error)
}

type Critic interface {
	Critique(ctx context.Context, req judge.CritiqueRequest) ([]model.Finding, error)
}

type Reviser interface {
	Revise(ctx context.Context, req judge.ReviseRequest) (string, error)
}

// Loop holds the configuration of the editorial cycle. Writer, Critic and
// Reviser are usually the same *judge.Judge.
type Loop struct {
	Writer  Writer
	Critic  Critic
	Reviser Reviser

	Style         string
	MaxIterations int
	// Findings strictly above Threshold block acceptance.
	Threshold model.Severity
	WordMin   int
	WordMax   int
	Language  string
	Title     string
}

// Input is what one draft invocation works from.
type Input struct {
	Shortlist  []model.Candidate
	Spotlight  *model.Spotlight
	Reading    *model.Article
	PastIssues []string
	Now        time.Time
}

type Transition struct {
	From, To State
}

// Outcome is the final draft state handed to the publisher.
type Outcome struct {
	Draft          string
	State          State
	Iterations     int // REVISING transitions taken
	CritiquePasses int
	Findings       []model.Finding // from the last critique pass
	DraftFallback  bool            // drafting failed and the plain digest was used
	Transitions    []Transition
}

// Run drives DRAFTING -> CRITIQUING -> (ACCEPTED | REVISING -> CRITIQUING ...)
// until a terminal state. It takes at most MaxIterations revisions and
// MaxIterations+1 critique passes; exhausting them is not an error.
func (l *Loop) Run(ctx context.Context, in Input) (Outcome, error) {
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	maxIter := l.MaxIterations
	if maxIter < 0 {
		maxIter = 0
	}
	threshold := l.Threshold
	if threshold == 0 {
		threshold = model.SeverityLow
	}

	out := Outcome{State: Drafting}
	move := func(to State) {
		slog.Info("editorial: transition", "from", out.State, "to", to, "iteration", out.Iterations)
		out.Transitions = append(out.Transitions, Transition{From: out.State, To: to})
		out.State = to
	}

	for !out.State.Terminal() {
		switch out.State {
		case Drafting:
			draft, err := l.write(ctx, in, now)
			if err != nil {
				slog.Warn("editorial: drafting failed; rendering plain digest", "err", err)
				draft, err = l.digest(in, now)
				if err != nil {
					return out, fmt.Errorf("render fallback digest: %w", err)
				}
				out.DraftFallback = true
			}
			out.Draft = draft
			move(Critiquing)

		case Critiquing:
			out.CritiquePasses++
			findings, err := l.critique(ctx, in, out.Draft)
			if err != nil {
				slog.Warn("editorial: critique failed; accepting current draft", "pass", out.CritiquePasses, "err", err)
				out.Findings = nil
				move(Accepted)
				continue
			}
			out.Findings = findings
			blocking := Blocking(findings, threshold)
			if len(blocking) == 0 {
				move(Accepted)
				continue
			}
			if out.Iterations >= maxIter {
				slog.Warn("editorial: max iterations exhausted; publishing latest draft",
					"iterations", out.Iterations, "blocking", len(blocking))
				move(Exhausted)
				continue
			}
			move(Revising)

		case Revising:
			out.Iterations++
			revised, err := l.revise(ctx, out.Draft, Blocking(out.Findings, threshold))
			if err != nil {
				slog.Warn("editorial: revision failed; keeping current draft", "iteration", out.Iterations, "err", err)
			} else {
				out.Draft = revised
			}
			move(Critiquing)
		}
	}
	slog.Info("editorial: finished", "state", out.State, "iterations", out.Iterations,
		"critique_passes", out.CritiquePasses, "words", WordCount(out.Draft))
	return out, nil
}

func (l *Loop) write(ctx context.Context, in Input, now time.Time) (string, error) {
	if l.Writer == nil {
		return "", fmt.Errorf("no writer configured")
	}
	return l.Writer.WriteDraft(ctx, judge.DraftRequest{
		Style:      l.Style,
		Shortlist:  in.Shortlist,
		Spotlight:  in.Spotlight,
		Reading:    in.Reading,
		IssueDate:  newsletter.IssueDate(now).Format("Thursday 2 January 2006"),
		WeekRange:  newsletter.WeekRange(now),
		PastIssues: in.PastIssues,
		Language:   l.Language,
		WordMin:    l.WordMin,
		WordMax:    l.WordMax,
	})
}

func (l *Loop) critique(ctx context.Context, in Input, draft string) ([]model.Finding, error) {
	if l.Critic == nil {
		return nil, fmt.Errorf("no critic configured")
	}
	return l.Critic.Critique(ctx, judge.CritiqueRequest{
		Draft:      draft,
		PastIssues: in.PastIssues,
		WordCount:  WordCount(draft),
		WordMin:    l.WordMin,
		WordMax:    l.WordMax,
		Language:   l.Language,
	})
}

func (l *Loop) revise(ctx context.Context, draft string, blocking []model.Finding) (string, error) {
	if l.Reviser == nil {
		return "", fmt.Errorf("no reviser configured")
	}
	return l.Reviser.Revise(ctx, judge.ReviseRequest{
		Draft:    draft,
		Findings: blocking,
		Style:    l.Style,
		Language: l.Language,
		WordMin:  l.WordMin,
		WordMax:  l.WordMax,
	})
}

// digest renders the shortlist with the plain newsletter template.
func (l *Loop) digest(in Input, now time.Time) (string, error) {
	title := strings.TrimSpace(l.Title)
	if title == "" {
		title = "The London Sauna"
	}
	d := newsletter.Data{
		Title:     newsletter.ExpandVars(title, now),
		WeekRange: newsletter.WeekRange(now),
		Items:     make([]newsletter.Item, 0, len(in.Shortlist)),
	}
	for _, c := range in.Shortlist {
		it := newsletter.Item{Title: c.Title, URL: c.URL, Venue: c.VenueName, Description: c.Body}
		if c.EventDate != nil {
			it.Date = c.EventDate.Start.Format("Mon 2 Jan")
		}
		d.Items = append(d.Items, it)
	}
	if in.Spotlight != nil {
		d.Spotlight = in.Spotlight.Venue
	}
	if a := in.Reading; a != nil {
		d.Reading = &newsletter.Item{Title: a.Title, URL: a.URL, Venue: a.Publication, Description: a.Summary}
	}
	return newsletter.Render(d)
}

// Blocking returns the findings strictly above threshold.
func Blocking(findings []model.Finding, threshold model.Severity) []model.Finding {
	var out []model.Finding
	for _, f := range findings {
		if f.Severity > threshold {
			out = append(out, f)
		}
	}
	return out
}
