package ingest

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// maxBodyChars bounds what is stored and sent to the email judge.
const maxBodyChars = 12000

var (
	urlRe       = regexp.MustCompile(`https?://\S{80,}`)
	blankRunsRe = regexp.MustCompile(`\n{3,}`)
	footerRe    = regexp.MustCompile(`(?i)^(unsubscribe|update your preferences|view (this email )?in (your )?browser|you are receiving this)`)
)

// CleanBody strips quoted replies, footers and tracking links and collapses
// whitespace.
func CleanBody(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		t := strings.TrimSpace(l)
		if strings.HasPrefix(t, ">") {
			continue
		}
		if footerRe.MatchString(t) {
			break
		}
		lines = append(lines, strings.Join(strings.Fields(t), " "))
	}
	s = strings.Join(lines, "\n")
	s = urlRe.ReplaceAllString(s, "[link]")
	s = blankRunsRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxBodyChars {
		s = string(r[:maxBodyChars])
	}
	return s
}

// HTMLToText renders an HTML email body as plain text, one block per line.
func HTMLToText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, head").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("p, div, li, tr, h1, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	return doc.Text()
}
