package judge

import (
	"fmt"
	"strings"
	"time"

	"sauna-briefing/internal/model"
)

// listCandidates renders candidates as an indexed list for merge and rank prompts.
func listCandidates(cands []model.Candidate, bodyLimit int) string {
	b := &strings.Builder{}
	for i, c := range cands {
		fmt.Fprintf(b, "[%d] (%s) %s", i, c.SourceType, c.Title)
		if c.VenueName != "" {
			fmt.Fprintf(b, " | venue: %s", c.VenueName)
		}
		if c.EventDate != nil {
			fmt.Fprintf(b, " | date: %s", c.EventDate.Start.Format("Mon 2 Jan 2006"))
			if c.EventDate.End != nil {
				fmt.Fprintf(b, " - %s", c.EventDate.End.Format("Mon 2 Jan 2006"))
			}
		}
		fmt.Fprintf(b, " | confidence: %.2f\n", c.Confidence)
		if body := truncate(c.Body, bodyLimit); body != "" {
			fmt.Fprintf(b, "    %s\n", strings.ReplaceAll(body, "\n", " "))
		}
	}
	return b.String()
}

func mergeSystem(tolerance time.Duration) string {
	return fmt.Sprintf(`You deduplicate items gathered for a weekly London sauna newsletter.
Items come from venue websites, newsletter emails and news search, so the same event or
venue update is often described differently.
Two items are duplicates only when they describe the same venue and the same event or news
update, and their dates (when both have one) are no more than %s apart.
Different sessions at the same venue are NOT duplicates. When unsure, keep items apart.
Return ONLY a JSON object: {"groups": [[i, j, ...], ...]} listing every group of two or
more duplicate item indices. Items not listed stay on their own. Use each index at most once.`,
		humanDuration(tolerance))
}

func rankSystem(rubric string, limit int) string {
	return fmt.Sprintf(`You are the editor of a weekly London sauna newsletter choosing what to cover.
%s
Return ONLY a JSON object: {"order": [i, j, ...]} with the indices of the best %d items,
best first. Every index must come from the list and appear at most once.`, strings.TrimSpace(rubric), limit)
}

func draftSystem(req DraftRequest) string {
	return fmt.Sprintf(`You write "The London Sauna", a weekly newsletter for London sauna-goers.
Write in %s. Follow the house style below exactly. Use only facts present in the material you
are given; never invent venues, dates, prices or links. Target %d-%d words.
Return the newsletter as markdown only, with no preamble or commentary.

HOUSE STYLE:
%s`, langOrDefault(req.Language), req.WordMin, req.WordMax, strings.TrimSpace(req.Style))
}

func draftUser(req DraftRequest) string {
	b := &strings.Builder{}
	fmt.Fprintf(b, "Issue date: %s\nEvents window: %s\n\n", req.IssueDate, req.WeekRange)
	b.WriteString("SHORTLISTED ITEMS (ranked, best first):\n")
	for i, c := range req.Shortlist {
		fmt.Fprintf(b, "\n%d. %s\n", i+1, c.Title)
		if c.VenueName != "" {
			fmt.Fprintf(b, "   Venue: %s\n", c.VenueName)
		}
		if c.EventDate != nil {
			fmt.Fprintf(b, "   Date: %s\n", c.EventDate.Start.Format("Monday 2 January"))
		}
		if c.URL != "" {
			fmt.Fprintf(b, "   Link: %s\n", c.URL)
		}
		fmt.Fprintf(b, "   Source: %s\n", c.SourceType)
		if body := truncate(c.Body, 800); body != "" {
			fmt.Fprintf(b, "   %s\n", body)
		}
	}
	if s := req.Spotlight; s != nil {
		fmt.Fprintf(b, "\nVENUE SPOTLIGHT: %s", s.Venue)
		if s.URL != "" {
			fmt.Fprintf(b, " (%s)", s.URL)
		}
		b.WriteString("\n")
		for _, r := range s.Research {
			fmt.Fprintf(b, "- %s\n  %s\n", r.Query, truncate(r.Answer, 1500))
			for _, src := range r.Sources {
				fmt.Fprintf(b, "  source: %s\n", src)
			}
		}
	}
	if a := req.Reading; a != nil {
		fmt.Fprintf(b, "\nREADING CORNER: %s\n  Link: %s\n", a.Title, a.URL)
		if a.Publication != "" {
			fmt.Fprintf(b, "  Publication: %s\n", a.Publication)
		}
		if a.Summary != "" {
			fmt.Fprintf(b, "  %s\n", a.Summary)
		}
	} else {
		b.WriteString("\nREADING CORNER: none this week; omit the section.\n")
	}
	if len(req.PastIssues) > 0 {
		b.WriteString("\nRECENT ISSUES (match the voice, do not repeat their stories):\n")
		for i, p := range req.PastIssues {
			fmt.Fprintf(b, "\n--- issue %d ---\n%s\n", i+1, truncate(p, 1500))
		}
	}
	return b.String()
}

func critiqueSystem(req CritiqueRequest) string {
	return fmt.Sprintf(`You are a demanding editor reviewing a draft of a weekly London sauna newsletter.
Judge four dimensions:
- novelty: does it repeat stories from the recent issues provided?
- clarity: is every item understandable and actionable?
- length: the target is %d-%d words; the draft has %d words.
- tone: warm, knowing, concise; no hype, no generic wellness talk.
Return ONLY a JSON object:
{"verdict": "approved" | "needs_revision",
 "findings": [{"category": "novelty|clarity|length|tone", "severity": "low|medium|high", "detail": "..."}]}
Use "high" for problems a reader would notice, "low" for polish. An approved draft may still list low findings.`,
		req.WordMin, req.WordMax, req.WordCount)
}

func critiqueUser(req CritiqueRequest) string {
	b := &strings.Builder{}
	b.WriteString("DRAFT:\n")
	b.WriteString(req.Draft)
	if len(req.PastIssues) > 0 {
		b.WriteString("\n\nRECENT ISSUES:\n")
		for i, p := range req.PastIssues {
			fmt.Fprintf(b, "\n--- issue %d ---\n%s\n", i+1, truncate(p, 2000))
		}
	}
	return b.String()
}

func reviseSystem(req ReviseRequest) string {
	return fmt.Sprintf(`You revise a draft of "The London Sauna" newsletter. Write in %s.
Make targeted edits that fix the listed findings and nothing else; keep every section,
link and fact that is not affected. Target %d-%d words.
Return the complete revised newsletter as markdown only. Do not describe your changes.

HOUSE STYLE:
%s`, langOrDefault(req.Language), req.WordMin, req.WordMax, strings.TrimSpace(req.Style))
}

func reviseUser(req ReviseRequest) string {
	b := &strings.Builder{}
	b.WriteString("FINDINGS TO FIX:\n")
	for _, f := range req.Findings {
		fmt.Fprintf(b, "- [%s/%s] %s\n", f.Category, f.Severity, f.Detail)
	}
	b.WriteString("\nDRAFT:\n")
	b.WriteString(req.Draft)
	return b.String()
}

const emailSystem = `You triage newsletter emails for a weekly London sauna newsletter.
Decide whether the email contains sauna, banya, cold plunge or bathing-culture content
relevant to London readers, then compress it: keep venues, events, dates, prices and links,
drop boilerplate, footers and tracking text.
Return ONLY a JSON object:
{"is_sauna_related": true|false, "confidence": 0.0-1.0, "summary": "one sentence",
 "compressed_content": "the compressed text"}`

func emailUser(req EmailRequest) string {
	return fmt.Sprintf("From: %s\nSubject: %s\nDate: %s\n\n%s",
		req.Sender, req.Subject, req.Date.Format(time.RFC1123), truncate(req.Body, 12000))
}

const readingSystem = `You pick the single most interesting article for the "Reading Corner" of a
weekly London sauna newsletter. Readers are London sauna enthusiasts who value scientific rigour
and cultural commentary, care about health, community and bathing culture, and distrust wellness
hype. Judge recency, credibility, relevance, novelty and depth; prefer substance over news briefs.
Return ONLY a JSON object:
{"index": i, "source_publication": "publication name", "summary": "2-3 sentences on what it
covers and why it is worth reading", "article_type": "research"|"cultural"|"news"}
or {"no_article_found": true} when none is suitable.`

func readingUser(opts []ReadingOption) string {
	b := &strings.Builder{}
	for i, o := range opts {
		fmt.Fprintf(b, "[%d] %s\n    url: %s\n    date: %s\n", i, o.Title, o.URL, o.Date)
		if s := truncate(o.Snippet, 400); s != "" {
			fmt.Fprintf(b, "    %s\n", strings.ReplaceAll(s, "\n", " "))
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if n <= 0 || len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "…"
}

func humanDuration(d time.Duration) string {
	if d <= 0 {
		return "0 hours"
	}
	if d%(24*time.Hour) == 0 {
		return fmt.Sprintf("%d days", int(d/(24*time.Hour)))
	}
	return fmt.Sprintf("%d hours", int(d.Round(time.Hour)/time.Hour))
}

func langOrDefault(lang string) string {
	l := strings.TrimSpace(lang)
	if l == "" {
		return "English"
	}
	return l
}
