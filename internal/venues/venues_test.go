package venues

import (
	"testing"

	"sauna-briefing/internal/config"
)

const page = `<html><body>
<ul class="schedule">
  <li class="event">
    <h3>Full Moon   Sauna Night</h3>
    <time datetime="2026-02-14T19:00">Sat 14 Feb, 7pm</time>
    <a class="book" href="/book/full-moon">Book</a>
    <p class="blurb">Guided aufguss rounds.</p>
  </li>
  <li class="event">
    <h3>Free Flow 70</h3>
    <span class="when">Sun 15 Feb</span>
    <a class="book" href="https://other.example.com/ff70">Book</a>
  </li>
  <li class="event"><h3>  </h3></li>
</ul>
</body></html>`

func TestParseEvents(t *testing.T) {
	v := config.VenueConfig{
		Name: "Hackney Wick Sauna",
		URL:  "https://hw.example.com/whats-on/",
		Selectors: config.SelectorConfig{
			Item: "li.event", Title: "h3", Date: "time, .when", Link: "a.book", Description: ".blurb",
		},
	}
	evs, err := ParseEvents(page, v)
	if err != nil {
		t.Fatalf("ParseEvents: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("want 2 events, got %d: %+v", len(evs), evs)
	}
	first := evs[0]
	if first.Title != "Full Moon Sauna Night" || first.DateText != "2026-02-14T19:00" {
		t.Errorf("first event: %+v", first)
	}
	if first.Link != "https://hw.example.com/book/full-moon" {
		t.Errorf("relative link not resolved: %q", first.Link)
	}
	if first.Description != "Guided aufguss rounds." {
		t.Errorf("description: %q", first.Description)
	}
	if evs[1].DateText != "Sun 15 Feb" || evs[1].Link != "https://other.example.com/ff70" {
		t.Errorf("second event: %+v", evs[1])
	}
}

func TestParseEventsNeedsItemSelector(t *testing.T) {
	if _, err := ParseEvents(page, config.VenueConfig{Name: "x"}); err == nil {
		t.Fatalf("expected error without item selector")
	}
}

func TestFilter(t *testing.T) {
	f, err := NewFilter(config.EventFilterConfig{
		Exclude:      config.DefaultExcludePatterns,
		Include:      config.DefaultIncludePatterns,
		AlwaysVenues: []string{"SweSauna"},
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	cases := []struct {
		title, venue string
		skip         bool
	}{
		{"Free Flow 70", "Arc", true},
		{"Off-Peak 1h Sauna", "Community Sauna", true},
		{"Members Slot", "Community Sauna", true},
		{"Members Slot: Aufguss Special", "Community Sauna", false},
		{"Full Moon Sauna Night", "Hackney Wick Sauna", false},
		{"Free Flow 50", "swesauna", false},
		{"Breathwork morning", "WellNest", false},
	}
	for _, tc := range cases {
		if got := f.Skip(tc.title, tc.venue); got != tc.skip {
			t.Errorf("Skip(%q, %q) = %v, want %v", tc.title, tc.venue, got, tc.skip)
		}
	}
}

func TestFilterBadPattern(t *testing.T) {
	if _, err := NewFilter(config.EventFilterConfig{Exclude: []string{"("}}); err == nil {
		t.Fatalf("expected compile error")
	}
}
