package venues

import (
	"fmt"
	"regexp"
	"strings"

	"sauna-briefing/internal/config"
)

// Filter drops recurring standard sessions (hourly drop-ins, regular classes)
// so only special events reach the newsletter.
type Filter struct {
	exclude []*regexp.Regexp
	include []*regexp.Regexp
	venues  map[string]bool
}

func NewFilter(cfg config.EventFilterConfig) (*Filter, error) {
	f := &Filter{venues: map[string]bool{}}
	var err error
	if f.exclude, err = compileAll(cfg.Exclude); err != nil {
		return nil, fmt.Errorf("event filter exclude: %w", err)
	}
	if f.include, err = compileAll(cfg.Include); err != nil {
		return nil, fmt.Errorf("event filter include: %w", err)
	}
	for _, v := range cfg.AlwaysVenues {
		f.venues[strings.ToLower(strings.TrimSpace(v))] = true
	}
	return f, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// Skip reports whether an event is a standard session. Always-include venues
// and include patterns win over exclude patterns.
func (f *Filter) Skip(title, venue string) bool {
	if f == nil {
		return false
	}
	if f.venues[strings.ToLower(strings.TrimSpace(venue))] {
		return false
	}
	name := strings.TrimSpace(title)
	for _, re := range f.include {
		if re.MatchString(name) {
			return false
		}
	}
	for _, re := range f.exclude {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
