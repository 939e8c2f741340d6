package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"sauna-briefing/internal/model"
)

var errEmptyAnswer = errors.New("empty answer")

// decodeJSON unmarshals the first JSON object found in a model answer,
// tolerating code fences and chatter around it.
func decodeJSON(out string, v any) error {
	s := strings.TrimSpace(stripFence(out))
	if s == "" {
		return errEmptyAnswer
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return fmt.Errorf("no json object in answer: %.80q", s)
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), v); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}

func stripFence(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return s
	}
	// drop the opening fence line (```json, ```markdown, ...)
	if i := strings.Index(t, "\n"); i >= 0 {
		t = t[i+1:]
	} else {
		return ""
	}
	t = strings.TrimSpace(t)
	t = strings.TrimSuffix(t, "```")
	return t
}

// cleanMarkdown unwraps a fenced markdown answer; an empty draft is an error.
func cleanMarkdown(out string) (string, error) {
	s := strings.TrimSpace(stripFence(out))
	if s == "" {
		return "", errEmptyAnswer
	}
	return s + "\n", nil
}

type rawFinding struct {
	Category string `json:"category"`
	Severity string `json:"severity"`
	Detail   string `json:"detail"`
}

func parseFindings(out string) ([]model.Finding, error) {
	var resp struct {
		Findings []rawFinding `json:"findings"`
		Verdict  string       `json:"verdict"`
	}
	if err := decodeJSON(out, &resp); err != nil {
		return nil, err
	}
	findings := make([]model.Finding, 0, len(resp.Findings))
	for _, f := range resp.Findings {
		sev, err := model.ParseSeverity(f.Severity)
		if err != nil {
			return nil, err
		}
		cat := model.Category(strings.ToLower(strings.TrimSpace(f.Category)))
		if cat == "" {
			cat = model.CategoryClarity
		}
		findings = append(findings, model.Finding{Category: cat, Severity: sev, Detail: strings.TrimSpace(f.Detail)})
	}
	return findings, nil
}
