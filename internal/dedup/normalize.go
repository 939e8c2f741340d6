package dedup

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"sauna-briefing/internal/model"

	"github.com/google/uuid"
)

var (
	candidateNS = uuid.NewSHA1(uuid.NameSpaceURL, []byte("sauna-briefing/candidate"))
	recordNS    = uuid.NewSHA1(uuid.NameSpaceURL, []byte("sauna-briefing/record"))
)

// Normalize turns raw collector records into provisional single-member candidates.
// ref anchors dates written without a year.
func Normalize(records []model.RawRecord, ref time.Time) []model.Candidate {
	out := make([]model.Candidate, 0, len(records))
	for i, r := range records {
		out = append(out, normalizeOne(r, i, ref))
	}
	return out
}

func normalizeOne(r model.RawRecord, index int, ref time.Time) model.Candidate {
	typ := r.SourceType
	if !typ.Valid() {
		typ = model.SourceNewsSearch
	}
	title := collapseSpaces(r.Title)
	body := cleanBody(r.Body)
	if title == "" {
		title = deriveTitle(body)
	}
	if title == "" {
		title = collapseSpaces(r.VenueName)
	}
	if title == "" {
		title = "Untitled"
	}
	url := strings.TrimSpace(r.URL)

	native := strings.TrimSpace(r.ID)
	if native == "" {
		native = uuid.NewSHA1(recordNS, []byte(fmt.Sprintf("%s|%s|%s|%d", typ, title, url, index))).String()
	}
	raw := model.RawSourceID(typ, native)

	conf := r.Confidence
	if conf <= 0 {
		conf = typ.DefaultConfidence()
	}
	if conf > 1 {
		conf = 1
	}

	c := model.Candidate{
		ID:           uuid.NewSHA1(candidateNS, []byte(raw)).String(),
		SourceType:   typ,
		Title:        title,
		Body:         body,
		URL:          url,
		VenueName:    collapseSpaces(r.VenueName),
		EventDate:    ParseEventDate(r.DateText, ref),
		Confidence:   conf,
		RawSourceIDs: []string{raw},
	}
	if url != "" {
		c.URLs = []string{url}
	}
	return c
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func cleanBody(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, l := range lines {
		l = collapseSpaces(l)
		if l == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, l)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// deriveTitle takes the first sentence of the first line, capped at 100 runes.
func deriveTitle(body string) string {
	line, _, _ := strings.Cut(body, "\n")
	line = strings.TrimLeft(line, "#*- ")
	if i := strings.IndexAny(line, ".!?"); i > 0 {
		line = line[:i]
	}
	line = collapseSpaces(line)
	if r := []rune(line); len(r) > 100 {
		line = strings.TrimSpace(string(r[:100]))
	}
	return line
}

var (
	ordinalRe   = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	rangeSplits = []string{" to ", " – ", " — ", " - ", " until "}

	datedLayouts = []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
		"02/01/2006",
		"2 Jan 2006",
		"2 January 2006",
		"Mon 2 Jan 2006",
		"Monday 2 January 2006",
		"Mon, 2 Jan 2006",
		"Monday, 2 January 2006",
		"Jan 2, 2006",
		"January 2, 2006",
		"Mon, Jan 2, 2006",
		"Monday, January 2, 2006",
		"Mon, 02 Jan 2006 15:04:05 -0700",
	}
	yearlessLayouts = []string{
		"2 Jan",
		"2 January",
		"Mon 2 Jan",
		"Monday 2 January",
		"Mon, 2 Jan",
		"Monday, 2 January",
		"Jan 2",
		"January 2",
		"Monday, January 2",
	}
)

// ParseEventDate parses a single date or a "start to end" range. Unparseable
// input yields nil rather than an error: a missing date is a valid state.
func ParseEventDate(s string, ref time.Time) *model.EventWindow {
	s = collapseSpaces(ordinalRe.ReplaceAllString(s, "$1"))
	if s == "" {
		return nil
	}
	if start, ok := parseDate(s, ref); ok {
		return &model.EventWindow{Start: start}
	}
	for _, sep := range rangeSplits {
		a, b, found := strings.Cut(s, sep)
		if !found {
			continue
		}
		start, ok := parseDate(strings.TrimSpace(a), ref)
		if !ok {
			continue
		}
		w := &model.EventWindow{Start: start}
		if end, ok := parseDate(strings.TrimSpace(b), start); ok && !end.Before(start) {
			w.End = &end
		}
		return w
	}
	return nil
}

func parseDate(s string, ref time.Time) (time.Time, bool) {
	s = strings.TrimRightFunc(s, func(r rune) bool { return unicode.IsPunct(r) && r != ')' })
	for _, layout := range datedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range yearlessLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		t = time.Date(ref.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		// "3 Jan" read in late December means next year
		if t.Before(ref.AddDate(0, -6, 0)) {
			t = t.AddDate(1, 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}
