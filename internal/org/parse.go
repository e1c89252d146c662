package org

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

var (
	headingRe  = regexp.MustCompile(`^(\*+)(?:[ \t]+(.*))?$`)
	keywordRe  = regexp.MustCompile(`^#\+([A-Za-z0-9_-]+):[ \t]*(.*)$`)
	tagGroupRe = regexp.MustCompile(`^:(?:[\p{L}\p{N}_@#%]+:)+$`)
	planningRe = regexp.MustCompile(`^\s*(CLOSED|SCHEDULED|DEADLINE):`)
	planTokRe  = regexp.MustCompile(`(CLOSED|SCHEDULED|DEADLINE):`)
	drawerRe   = regexp.MustCompile(`(?i)^\s*:PROPERTIES:\s*$`)
	endRe      = regexp.MustCompile(`(?i)^\s*:END:\s*$`)
	propRe     = regexp.MustCompile(`^\s*:([^:\s]+):(?:[ \t]+(.*))?[ \t]*$`)
)

// ParseResult carries a parsed document plus non-fatal findings.
type ParseResult struct {
	Doc      *Document `json:"document"`
	Warnings []Warning `json:"warnings,omitempty"`
}

// Parse reads Org text into a Document. Structural errors are returned as
// *MalformedDocumentError.
func Parse(data []byte) (*Document, error) {
	p := newParser(data)
	if err := p.run(); err != nil {
		return nil, err
	}
	return p.doc, nil
}

// ParseWithLint parses data and reports top-level headings that repeat a value of any
// of uniqueKeys. Duplicates stay in the document; the first occurrence wins when the
// document is indexed.
func ParseWithLint(data []byte, uniqueKeys ...string) (*ParseResult, error) {
	p := newParser(data)
	if err := p.run(); err != nil {
		return nil, err
	}
	res := &ParseResult{Doc: p.doc}
	for _, key := range uniqueKeys {
		_, dups := p.doc.IndexByProperty(key)
		for _, h := range dups {
			v, _ := h.Property(key)
			res.Warnings = append(res.Warnings, Warning{
				Line: p.lines[h],
				Msg:  fmt.Sprintf("duplicate %s %q; only the first heading is synced", strings.ToUpper(key), v),
			})
		}
	}
	return res, nil
}

type parser struct {
	src   []string
	pos   int
	doc   *Document
	todo  map[string]bool
	lines map[*Heading]int
}

func newParser(data []byte) *parser {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	var src []string
	if text != "" {
		src = strings.Split(text, "\n")
	}
	return &parser{
		src:   src,
		doc:   NewDocument(),
		todo:  map[string]bool{"TODO": true, "DONE": true},
		lines: map[*Heading]int{},
	}
}

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

func (p *parser) run() error {
	p.parsePreamble()
	active, done := p.doc.TodoKeywords()
	for _, k := range active {
		p.todo[k] = true
	}
	for _, k := range done {
		p.todo[k] = true
	}

	var stack []*Heading
	for p.pos < len(p.src) {
		h, err := p.parseHeading()
		if err != nil {
			return err
		}
		for len(stack) > 0 && stack[len(stack)-1].Level >= h.Level {
			stack = stack[:len(stack)-1]
		}
		if len(stack) == 0 {
			p.doc.Headings = append(p.doc.Headings, h)
		} else {
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, h)
		}
		stack = append(stack, h)
	}
	return nil
}

func (p *parser) parsePreamble() {
	for p.pos < len(p.src) {
		line := p.src[p.pos]
		if headingRe.MatchString(line) {
			break
		}
		if m := keywordRe.FindStringSubmatch(line); m != nil {
			p.doc.Preamble = append(p.doc.Preamble, PreambleLine{
				Key:   strings.ToUpper(m[1]),
				Value: strings.TrimSpace(m[2]),
				Raw:   line,
			})
		} else {
			p.doc.Preamble = append(p.doc.Preamble, PreambleLine{Raw: line})
		}
		p.pos++
	}
	for n := len(p.doc.Preamble); n > 0; n-- {
		l := p.doc.Preamble[n-1]
		if l.Key != "" || !isBlank(l.Raw) {
			break
		}
		p.doc.Preamble = p.doc.Preamble[:n-1]
	}
}

// parseHeading consumes the heading line at p.pos and everything up to the next
// heading line.
func (p *parser) parseHeading() (*Heading, error) {
	m := headingRe.FindStringSubmatch(p.src[p.pos])
	h := &Heading{Level: len(m[1])}
	p.lines[h] = p.pos + 1
	p.splitHeadline(h, m[2])
	p.pos++

	// Planning and drawer may be separated from the headline by blank lines only.
	next := p.skipBlank()
	if next < len(p.src) && planningRe.MatchString(p.src[next]) {
		h.Planning = parsePlanning(p.src[next])
		p.pos = next + 1
		next = p.skipBlank()
	}
	if next < len(p.src) && drawerRe.MatchString(p.src[next]) {
		d, err := p.parseDrawer(next)
		if err != nil {
			return nil, err
		}
		h.Properties = d
	}

	start := p.pos
	for p.pos < len(p.src) && !headingRe.MatchString(p.src[p.pos]) {
		p.pos++
	}
	h.Body = trimBlankLines(p.src[start:p.pos])
	return h, nil
}

func (p *parser) skipBlank() int {
	i := p.pos
	for i < len(p.src) && isBlank(p.src[i]) {
		i++
	}
	return i
}

func (p *parser) splitHeadline(h *Heading, rest string) {
	rest = strings.TrimSpace(rest)
	if i := strings.LastIndexAny(rest, " \t"); tagGroupRe.MatchString(rest[i+1:]) {
		h.SetTags(strings.Split(strings.Trim(rest[i+1:], ":"), ":"))
		if i < 0 {
			rest = ""
		} else {
			rest = strings.TrimSpace(rest[:i])
		}
	}
	if rest == "" {
		return
	}
	word, title := rest, ""
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		word, title = rest[:i], rest[i+1:]
	}
	if p.todo[word] {
		h.Keyword = word
		rest = strings.TrimSpace(title)
	}
	h.Title = rest
}

func parsePlanning(line string) []PlanningEntry {
	var out []PlanningEntry
	locs := planTokRe.FindAllStringSubmatchIndex(line, -1)
	for i, loc := range locs {
		end := len(line)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		out = append(out, PlanningEntry{
			Keyword: line[loc[2]:loc[3]],
			Value:   strings.TrimSpace(line[loc[1]:end]),
		})
	}
	return out
}

func (p *parser) parseDrawer(open int) (*Drawer, error) {
	d := NewDrawer()
	for i := open + 1; i < len(p.src); i++ {
		line := p.src[i]
		switch {
		case endRe.MatchString(line):
			p.pos = i + 1
			return d, nil
		case headingRe.MatchString(line):
			return nil, &MalformedDocumentError{Line: open + 1, Msg: "property drawer is not closed before the next heading"}
		case isBlank(line):
			continue
		}
		m := propRe.FindStringSubmatch(line)
		if m == nil {
			return nil, &MalformedDocumentError{Line: i + 1, Msg: fmt.Sprintf("expected :KEY: value inside property drawer, got %q", strings.TrimSpace(line))}
		}
		d.Set(m[1], m[2])
	}
	return nil, &MalformedDocumentError{Line: open + 1, Msg: "property drawer is not closed before end of file"}
}

func trimBlankLines(lines []string) string {
	for len(lines) > 0 && isBlank(lines[0]) {
		lines = lines[1:]
	}
	for len(lines) > 0 && isBlank(lines[len(lines)-1]) {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}
