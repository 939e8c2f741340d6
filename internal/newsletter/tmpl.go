package newsletter

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"
)

type Item struct {
	Title       string
	URL         string
	Venue       string
	Date        string
	Description string
}

type Data struct {
	Title     string
	WeekRange string
	Items     []Item
	Spotlight string
	Reading   *Item
	Sources   []string
}

//go:embed newsletter.tmpl
var newsletterTpl string

var compiled = template.Must(template.New("newsletter").Funcs(template.FuncMap{
	"oneline": func(s string) string { return strings.Join(strings.Fields(s), " ") },
}).Parse(newsletterTpl))

// Render produces the plain digest used when no written draft is available.
func Render(d Data) (string, error) {
	var buf bytes.Buffer
	if err := compiled.Execute(&buf, d); err != nil {
		return "", err
	}
	return buf.String(), nil
}
