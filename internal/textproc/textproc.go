// Package textproc provides the text helpers used by the classification
// dispatcher: cleaning classifier task text into presentable item titles
// and extracting due dates from natural-language hints. The helpers are
// pure functions with no persistence or transport concerns.
package textproc

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// maxTitleRunes caps cleaned titles; longer text is cut to 197 runes plus
// a three-dot ellipsis.
const maxTitleRunes = 200

// titlePrefixes are classifier artifacts stripped from the front of task
// text before it becomes an item title. Matching is case-insensitive.
var titlePrefixes = []string{
	"task:", "todo:", "action item:",
	"follow up:", "followup:", "reply to",
}

// dueKeyword maps a phrase to a day offset from "now".
type dueKeyword struct {
	phrase string
	days   int
}

// dueKeywords are checked in order; the first phrase found in the text
// wins. "next week" must come after "this week" so the longer phrases are
// matched by their own entries, not swallowed by a shorter one.
var dueKeywords = []dueKeyword{
	{"today", 0},
	{"tomorrow", 1},
	{"asap", 0},
	{"urgent", 0},
	{"this week", 7},
	{"next week", 14},
	{"eod", 0},
	{"eow", 7},
}

// dateRE matches bare month/day hints like "6/30" or "12/5".
var dateRE = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})\b`)

// CleanTitle turns raw classifier task text into an item title: known
// prefixes are stripped, follow-ups get a "Reply: " prefix when they do
// not already start with "reply", the first rune is upper-cased using the
// given locale, and overly long text is truncated with an ellipsis.
func CleanTitle(raw string, followup bool, loc language.Tag) string {
	text := strings.TrimSpace(raw)

	for _, p := range titlePrefixes {
		if len(text) >= len(p) && strings.EqualFold(text[:len(p)], p) {
			text = strings.TrimSpace(text[len(p):])
		}
	}

	if text == "" {
		return ""
	}

	if followup && !strings.HasPrefix(strings.ToLower(text), "reply") {
		text = "Reply: " + text
	}

	if text != "" {
		r, size := utf8.DecodeRuneInString(text)
		if r != utf8.RuneError {
			text = cases.Upper(loc).String(text[:size]) + text[size:]
		}
	}

	if utf8.RuneCountInString(text) > maxTitleRunes {
		text = string([]rune(text)[:maxTitleRunes-3]) + "..."
	}
	return text
}

// ExtractDueDate derives a due timestamp from task text, or nil when the
// text carries no recognizable hint. Keyword phrases ("tomorrow", "eod",
// "next week", ...) resolve to day offsets from now; otherwise a bare M/D
// date is parsed, rolling into next year when the date has already passed.
func ExtractDueDate(text string, now time.Time) *time.Time {
	lower := strings.ToLower(text)
	for _, kw := range dueKeywords {
		if strings.Contains(lower, kw.phrase) {
			due := now.AddDate(0, 0, kw.days)
			return &due
		}
	}

	if m := dateRE.FindStringSubmatch(text); m != nil {
		month := atoi(m[1])
		day := atoi(m[2])
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			due := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
			// Reject normalized overflow like 2/31 -> 3/2.
			if due.Month() != time.Month(month) || due.Day() != day {
				return nil
			}
			if due.Before(now) {
				due = time.Date(now.Year()+1, time.Month(month), day, 0, 0, 0, 0, now.Location())
			}
			return &due
		}
	}
	return nil
}

// atoi parses digits already matched by dateRE; it never sees signs or
// non-digit input.
func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
