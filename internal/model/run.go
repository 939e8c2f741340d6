package model

import "time"

// RunSchemaVersion is bumped whenever the run file layout changes.
const RunSchemaVersion = 1

// Run is the persisted output of one gather invocation.
type Run struct {
	SchemaVersion int         `json:"schema_version"`
	RunID         string      `json:"run_id"`
	CreatedAt     time.Time   `json:"created_at"`
	Candidates    []Candidate `json:"candidates"`
	Metadata      RunMetadata `json:"metadata"`
}

type RunMetadata struct {
	SourceCounts   map[string]int `json:"source_counts,omitempty"`
	RawRecordCount int            `json:"raw_record_count"`
	MergeFallback  bool           `json:"merge_fallback,omitempty"`
	Spotlight      *Spotlight     `json:"spotlight,omitempty"`
	ReadingCorner  *Article       `json:"reading_corner,omitempty"`
}

// Spotlight is the venue chosen for the week's long-form profile.
type Spotlight struct {
	Venue    string           `json:"venue"`
	URL      string           `json:"url,omitempty"`
	Research []SearchFindings `json:"research,omitempty"`
}

// Article is the single piece chosen for the Reading Corner section.
type Article struct {
	Title         string `json:"title"`
	URL           string `json:"url"`
	Publication   string `json:"source_publication,omitempty"`
	PublishedDate string `json:"published_date,omitempty"`
	Summary       string `json:"summary"`
	Type          string `json:"article_type,omitempty"` // research, cultural or news
}

// SearchFindings is one answered search query with its sources.
type SearchFindings struct {
	Query   string   `json:"query"`
	Answer  string   `json:"answer"`
	Sources []string `json:"sources,omitempty"`
}

// RunSummary is what listing the run store returns.
type RunSummary struct {
	RunID          string
	CreatedAt      time.Time
	CandidateCount int
}
