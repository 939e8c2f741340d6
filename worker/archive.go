package worker

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"sauna-briefing/internal/markdown"
)

// IssueSource returns the text of recent published issues, newest first.
type IssueSource interface {
	RecentIssues(ctx context.Context, limit int) ([]string, error)
}

// IssueArchive samples past issues for the writer and critic. Published
// issues come from Remote; the local drafts directory is the fallback.
type IssueArchive struct {
	Remote    IssueSource
	DraftsDir string
	MaxChars  int
}

const draftSuffix = "_draft.md"

// Sample returns up to n past issues, skipping the draft for excludeRun.
func (a *IssueArchive) Sample(ctx context.Context, n int, excludeRun string) []string {
	if a == nil || n <= 0 {
		return nil
	}
	var issues []string
	if a.Remote != nil {
		got, err := a.Remote.RecentIssues(ctx, n)
		if err != nil {
			slog.Warn("archive: reading published issues failed; using local drafts", "err", err)
		}
		issues = got
	}
	if len(issues) == 0 {
		issues = a.local(n, excludeRun)
	}
	max := a.MaxChars
	if max <= 0 {
		max = 4000
	}
	for i, s := range issues {
		if r := []rune(s); len(r) > max {
			issues[i] = string(r[:max])
		}
	}
	return issues
}

func (a *IssueArchive) local(n int, excludeRun string) []string {
	if a.DraftsDir == "" {
		return nil
	}
	entries, err := os.ReadDir(a.DraftsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("archive: reading drafts dir failed", "dir", a.DraftsDir, "err", err)
		}
		return nil
	}
	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, draftSuffix) || strings.TrimSuffix(name, draftSuffix) == excludeRun {
			continue
		}
		names = append(names, name)
	}
	// run ids sort chronologically
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	var out []string
	for _, name := range names {
		if len(out) == n {
			break
		}
		doc, err := markdown.ParseFile(filepath.Join(a.DraftsDir, name))
		if err != nil {
			continue
		}
		if body := strings.TrimSpace(doc.Body); body != "" {
			out = append(out, body)
		}
	}
	return out
}
