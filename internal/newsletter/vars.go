package newsletter

import (
	"strings"
	"time"
)

// ExpandVars performs simple placeholder substitutions for template strings
// used in config-provided text fields (e.g., the page title).
//
// Supported variables:
// - {.CurrentDate} => formatted as YYYY-MM-DD (UTC)
// - {.IssueDate}   => the issue's Thursday, e.g. "February 12, 2026"
// - {.WeekRange}   => the events window, e.g. "February 13 to February 20, 2026"
func ExpandVars(s string, now time.Time) string {
	if strings.TrimSpace(s) == "" {
		return s
	}
	r := strings.NewReplacer(
		"{.CurrentDate}", now.UTC().Format("2006-01-02"),
		"{.IssueDate}", IssueDate(now).Format("January 2, 2006"),
		"{.WeekRange}", WeekRange(now),
	)
	return r.Replace(s)
}

// IssueDate is the Thursday 09:00 the issue goes out: today when it is
// Thursday before 11:00, otherwise the next Thursday.
func IssueDate(now time.Time) time.Time {
	days := (int(time.Thursday) - int(now.Weekday()) + 7) % 7
	if days == 0 && now.Hour() >= 11 {
		days = 7
	}
	d := now.AddDate(0, 0, days)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 0, 0, 0, now.Location())
}

// EventWindow is Friday 00:00 of this week to the following Friday. On a
// Friday afternoon the window moves to next week.
func EventWindow(now time.Time) (start, end time.Time) {
	days := (int(time.Friday) - int(now.Weekday()) + 7) % 7
	if days == 0 && now.Hour() >= 12 {
		days = 7
	}
	d := now.AddDate(0, 0, days)
	start = time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 0, 7)
}

// WeekRange describes the events window for prompts and titles.
func WeekRange(now time.Time) string {
	start, end := EventWindow(now)
	return start.Format("January 2") + " to " + end.Format("January 2, 2006")
}
