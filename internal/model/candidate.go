package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceType identifies which collector produced a record.
type SourceType string

const (
	SourceVenueScrape   SourceType = "venue_scrape"
	SourceEmailArtifact SourceType = "email_artifact"
	SourceNewsSearch    SourceType = "news_search"
)

// Valid reports whether t is one of the known source types.
func (t SourceType) Valid() bool {
	switch t {
	case SourceVenueScrape, SourceEmailArtifact, SourceNewsSearch:
		return true
	}
	return false
}

// DefaultConfidence is used when a collector does not score its own records.
func (t SourceType) DefaultConfidence() float64 {
	switch t {
	case SourceVenueScrape:
		return 0.85
	case SourceEmailArtifact:
		return 0.5
	case SourceNewsSearch:
		return 0.6
	}
	return 0.5
}

// RawRecord is a source record exactly as a collector produced it.
type RawRecord struct {
	ID         string     `json:"id"`
	SourceType SourceType `json:"source_type"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	URL        string     `json:"url,omitempty"`
	VenueName  string     `json:"venue_name,omitempty"`
	DateText   string     `json:"date_text,omitempty"`
	Confidence float64    `json:"confidence,omitempty"` // 0 = unknown
	Query      string     `json:"query,omitempty"`
}

// RawSourceID formats the provenance id of a record: "<source_type>:<native id>".
func RawSourceID(t SourceType, nativeID string) string {
	return string(t) + ":" + nativeID
}

// ParseRawSourceID splits a provenance id back into its parts.
func ParseRawSourceID(s string) (SourceType, string, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok || id == "" || !SourceType(typ).Valid() {
		return "", "", fmt.Errorf("malformed raw source id %q", s)
	}
	return SourceType(typ), id, nil
}

// EventWindow is the date (or date range) an item refers to.
type EventWindow struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end,omitempty"`
}

// Last returns the end of the window, or its start for single-day events.
func (w EventWindow) Last() time.Time {
	if w.End != nil {
		return *w.End
	}
	return w.Start
}

// Candidate is one deduplicated newsletter item.
type Candidate struct {
	ID           string       `json:"id"`
	SourceType   SourceType   `json:"source_type"`
	Title        string       `json:"title"`
	Body         string       `json:"body"`
	URL          string       `json:"url,omitempty"`
	URLs         []string     `json:"urls,omitempty"`
	VenueName    string       `json:"venue_name,omitempty"`
	EventDate    *EventWindow `json:"event_date,omitempty"`
	Confidence   float64      `json:"confidence"`
	RawSourceIDs []string     `json:"raw_source_ids"`
}

// Validate checks the invariants every persisted candidate must satisfy.
func (c Candidate) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("candidate has empty id")
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("candidate %s: confidence %v out of range", c.ID, c.Confidence)
	}
	if len(c.RawSourceIDs) == 0 {
		return fmt.Errorf("candidate %s: no raw source ids", c.ID)
	}
	for _, id := range c.RawSourceIDs {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("candidate %s: empty raw source id", c.ID)
		}
	}
	return nil
}
