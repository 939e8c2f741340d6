// Package venues extracts events from venue web pages using per-venue CSS
// selectors from configuration.
package venues

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"sauna-briefing/internal/config"

	"github.com/PuerkitoBio/goquery"
)

// Event is one schedule entry found on a venue page.
type Event struct {
	Title       string
	DateText    string
	Link        string
	Description string
}

var errNoItemSelector = errors.New("venue has no item selector")

// ParseEvents pulls events out of a venue page.
func ParseEvents(html string, v config.VenueConfig) ([]Event, error) {
	sel := v.Selectors
	if strings.TrimSpace(sel.Item) == "" {
		return nil, fmt.Errorf("%s: %w", v.Name, errNoItemSelector)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%s: parse html: %w", v.Name, err)
	}
	base, _ := url.Parse(v.URL)

	var out []Event
	doc.Find(sel.Item).Each(func(_ int, item *goquery.Selection) {
		ev := Event{
			Title:       text(item, sel.Title),
			DateText:    dateText(item, sel.Date),
			Description: text(item, sel.Description),
		}
		if sel.Title == "" {
			ev.Title = squash(item.Text())
		}
		ev.Link = link(item, sel.Link, base)
		if ev.Title == "" {
			return
		}
		out = append(out, ev)
	})
	return out, nil
}

func text(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return squash(item.Find(selector).First().Text())
}

// dateText prefers a machine-readable datetime attribute over visible text.
func dateText(item *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	s := item.Find(selector).First()
	if dt, ok := s.Attr("datetime"); ok && strings.TrimSpace(dt) != "" {
		return strings.TrimSpace(dt)
	}
	return squash(s.Text())
}

func link(item *goquery.Selection, selector string, base *url.URL) string {
	s := item
	if selector != "" {
		s = item.Find(selector).First()
	} else if !item.Is("a") {
		s = item.Find("a[href]").First()
	}
	href, ok := s.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return ""
	}
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	return u.String()
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
