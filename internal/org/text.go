package org

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	escHeadingRe = regexp.MustCompile(`^\*+(\s|$)`)
	escDrawerRe  = regexp.MustCompile(`^\s*:[\w-]+:`)
	tsRe         = regexp.MustCompile(`^[\[<](\d{4}-\d{2}-\d{2})(?: [A-Za-z]+)?(?: (\d{1,2}:\d{2}))?[\]>]$`)
)

// EscapeBody makes free text safe to embed as a heading body: lines the parser would
// read as a headline, planning line or drawer marker get a ", " prefix. Line endings
// are normalized and surrounding blank lines trimmed.
func EscapeBody(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if escHeadingRe.MatchString(l) || escDrawerRe.MatchString(l) || planningRe.MatchString(l) {
			lines[i] = ", " + l
		}
	}
	return trimBlankLines(lines)
}

// UnescapeBody reverses EscapeBody for display.
func UnescapeBody(body string) string {
	lines := strings.Split(body, "\n")
	for i, l := range lines {
		rest, ok := strings.CutPrefix(l, ", ")
		if ok && (escHeadingRe.MatchString(rest) || escDrawerRe.MatchString(rest) || planningRe.MatchString(rest)) {
			lines[i] = rest
		}
	}
	return strings.Join(lines, "\n")
}

// CleanTitle collapses s onto one line and defuses a trailing token that would
// otherwise be read back as a tag group.
func CleanTitle(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	i := strings.LastIndexByte(s, ' ')
	if tagGroupRe.MatchString(s[i+1:]) {
		s = strings.TrimSuffix(s, ":")
	}
	return s
}

// FormatTimestamp renders t as an inactive Org timestamp in UTC, e.g.
// [2024-03-05 Tue 14:07].
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("[2006-01-02 Mon 15:04]")
}

// ParseTimestamp reads an active or inactive Org timestamp, with or without a time of
// day. The result is in UTC.
func ParseTimestamp(s string) (time.Time, error) {
	m := tsRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return time.Time{}, fmt.Errorf("not an org timestamp: %q", s)
	}
	if m[2] == "" {
		return time.Parse("2006-01-02", m[1])
	}
	return time.Parse("2006-01-02 15:04", m[1]+" "+m[2])
}
