package model

import (
	"fmt"
	"strings"
	"time"
)

type Category string

const (
	CategoryNovelty Category = "novelty"
	CategoryClarity Category = "clarity"
	CategoryLength  Category = "length"
	CategoryTone    Category = "tone"
)

// Severity orders findings; higher values are worse.
type Severity int

const (
	SeverityLow Severity = iota + 1
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity accepts low/medium/high, plus the minor/major wording critics tend to use.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "minor":
		return SeverityLow, nil
	case "medium", "moderate":
		return SeverityMedium, nil
	case "high", "major", "critical":
		return SeverityHigh, nil
	}
	return 0, fmt.Errorf("unknown severity %q", s)
}

// Finding is one issue raised by the critic.
type Finding struct {
	Category Category `json:"category"`
	Severity Severity `json:"severity"`
	Detail   string   `json:"detail"`
}

// UsageRecord marks an email artifact as consumed by a published run.
type UsageRecord struct {
	ArtifactID string
	RunID      string
	UsedAt     time.Time
}

// EmailArtifact is a classified, compressed newsletter email.
type EmailArtifact struct {
	ArtifactID        string
	EmailID           string
	CompressedContent string
	Summary           string
	ConfidenceScore   float64
	Sender            string
	Subject           string
	EmailDate         time.Time
	IsRelevant        bool
}
