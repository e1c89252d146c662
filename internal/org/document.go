package org

import (
	"strings"
)

// Document is an in-memory Org outline: the preamble (everything before the first
// heading) and an ordered forest of headings.
type Document struct {
	Preamble []PreambleLine `json:"preamble"`
	Headings []*Heading     `json:"headings"`
}

// PreambleLine is one line before the first heading. Keyword lines (`#+KEY: value`)
// have Key set. Raw holds the line as read and is what gets written back until the
// value changes.
type PreambleLine struct {
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

func (l PreambleLine) IsKeyword() bool { return l.Key != "" }

func (l PreambleLine) String() string {
	if l.Key == "" || l.Raw != "" {
		return l.Raw
	}
	if l.Value == "" {
		return "#+" + l.Key + ":"
	}
	return "#+" + l.Key + ": " + l.Value
}

// Heading is one outline entry.
type Heading struct {
	Level      int             `json:"level"`
	Keyword    string          `json:"keyword,omitempty"`
	Title      string          `json:"title"`
	Tags       []string        `json:"tags,omitempty"`
	Planning   []PlanningEntry `json:"planning,omitempty"`
	Properties *Drawer         `json:"properties,omitempty"`
	Body       string          `json:"body,omitempty"`
	Children   []*Heading      `json:"children,omitempty"`
}

// PlanningEntry is one `KEYWORD: <timestamp>` token of a planning line.
type PlanningEntry struct {
	Keyword string `json:"keyword"`
	Value   string `json:"value"`
}

const (
	PlanningClosed    = "CLOSED"
	PlanningScheduled = "SCHEDULED"
	PlanningDeadline  = "DEADLINE"
)

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{}
}

// Keyword returns the value of the first `#+KEY:` preamble line.
func (d *Document) Keyword(key string) (string, bool) {
	key = strings.ToUpper(strings.TrimSpace(key))
	for _, l := range d.Preamble {
		if l.Key == key {
			return l.Value, true
		}
	}
	return "", false
}

// SetKeyword replaces the first `#+KEY:` line in place or appends a new one after the
// last keyword line.
func (d *Document) SetKeyword(key, value string) {
	key = strings.ToUpper(strings.TrimSpace(key))
	value = strings.TrimSpace(value)
	last := -1
	for i := range d.Preamble {
		if d.Preamble[i].Key == key {
			if d.Preamble[i].Value != value {
				d.Preamble[i].Value = value
				d.Preamble[i].Raw = ""
			}
			return
		}
		if d.Preamble[i].Key != "" {
			last = i
		}
	}
	line := PreambleLine{Key: key, Value: value}
	if last < 0 {
		d.Preamble = append([]PreambleLine{line}, d.Preamble...)
		return
	}
	d.Preamble = append(d.Preamble, PreambleLine{})
	copy(d.Preamble[last+2:], d.Preamble[last+1:])
	d.Preamble[last+1] = line
}

// TodoKeywords returns the active (not done) and done keyword sets declared by
// `#+TODO:`, `#+SEQ_TODO:` and `#+TYP_TODO:` lines. Without declarations the defaults
// TODO and DONE apply.
func (d *Document) TodoKeywords() (active []string, done []string) {
	var lines []string
	for _, l := range d.Preamble {
		switch l.Key {
		case "TODO", "SEQ_TODO", "TYP_TODO":
			lines = append(lines, l.Value)
		}
	}
	return parseTodoKeywords(lines)
}

func parseTodoKeywords(lines []string) (active []string, done []string) {
	for _, v := range lines {
		words := strings.Fields(v)
		bar := -1
		for i, w := range words {
			if w == "|" {
				bar = i
				break
			}
		}
		for i, w := range words {
			if w == "|" {
				continue
			}
			// Fast-access keys: NEXT(n) -> NEXT.
			if p := strings.IndexByte(w, '('); p > 0 {
				w = w[:p]
			}
			switch {
			case bar >= 0 && i > bar:
				done = append(done, w)
			case bar < 0 && i == len(words)-1 && len(words) > 1:
				done = append(done, w)
			default:
				active = append(active, w)
			}
		}
	}
	if len(active) == 0 && len(done) == 0 {
		return []string{"TODO"}, []string{"DONE"}
	}
	return active, done
}

// IsTodoKeyword reports whether word is a state keyword for this document. TODO and
// DONE are always recognized, in addition to any declared keywords.
func (d *Document) IsTodoKeyword(word string) bool {
	if word == "TODO" || word == "DONE" {
		return true
	}
	active, done := d.TodoKeywords()
	for _, k := range active {
		if k == word {
			return true
		}
	}
	for _, k := range done {
		if k == word {
			return true
		}
	}
	return false
}

// DeclareTodoKeywords appends a `#+TODO: active | done` line.
func (d *Document) DeclareTodoKeywords(active, done string) {
	line := PreambleLine{Key: "TODO", Value: strings.TrimSpace(active) + " | " + strings.TrimSpace(done)}
	last := -1
	for i := range d.Preamble {
		if d.Preamble[i].Key != "" {
			last = i
		}
	}
	d.Preamble = append(d.Preamble, PreambleLine{})
	copy(d.Preamble[last+2:], d.Preamble[last+1:])
	d.Preamble[last+1] = line
}

// Walk visits every heading depth-first in document order. Returning false from fn
// skips the heading's children.
func (d *Document) Walk(fn func(h *Heading) bool) {
	for _, h := range d.Headings {
		h.Walk(fn)
	}
}

// Walk visits h and its descendants depth-first.
func (h *Heading) Walk(fn func(h *Heading) bool) {
	if h == nil {
		return
	}
	if !fn(h) {
		return
	}
	for _, c := range h.Children {
		c.Walk(fn)
	}
}

// Count returns the number of headings in the document, at any depth.
func (d *Document) Count() int {
	n := 0
	d.Walk(func(*Heading) bool {
		n++
		return true
	})
	return n
}

// IndexByProperty builds a fresh map from the value of a drawer key to the top-level
// heading carrying it. The first occurrence wins; later headings with an already-seen
// value are returned in dups, in document order. The index is never cached on the
// document, so it cannot go stale across mutations.
func (d *Document) IndexByProperty(key string) (index map[string]*Heading, dups []*Heading) {
	index = map[string]*Heading{}
	for _, h := range d.Headings {
		v, ok := h.Property(key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		v = strings.TrimSpace(v)
		if _, seen := index[v]; seen {
			dups = append(dups, h)
			continue
		}
		index[v] = h
	}
	return index, dups
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := &Document{
		Preamble: append([]PreambleLine(nil), d.Preamble...),
	}
	for _, h := range d.Headings {
		out.Headings = append(out.Headings, h.Clone())
	}
	return out
}

// Clone returns a deep copy of the heading subtree.
func (h *Heading) Clone() *Heading {
	if h == nil {
		return nil
	}
	out := &Heading{
		Level:    h.Level,
		Keyword:  h.Keyword,
		Title:    h.Title,
		Tags:     append([]string(nil), h.Tags...),
		Planning: append([]PlanningEntry(nil), h.Planning...),
		Body:     h.Body,
	}
	if h.Properties != nil {
		out.Properties = h.Properties.Clone()
	}
	for _, c := range h.Children {
		out.Children = append(out.Children, c.Clone())
	}
	return out
}

// Property returns the drawer value for key (case-insensitive).
func (h *Heading) Property(key string) (string, bool) {
	if h == nil || h.Properties == nil {
		return "", false
	}
	return h.Properties.Get(key)
}

// HasTag reports whether the heading carries tag (case-sensitive, as Org does).
func (h *Heading) HasTag(tag string) bool {
	for _, t := range h.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// SetTags replaces the tag list, dropping empties and collapsing duplicates.
func (h *Heading) SetTags(tags []string) {
	h.Tags = UniqueTags(tags)
}

// UniqueTags returns tags in first-seen order without empties or duplicates.
func UniqueTags(tags []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Closed returns the CLOSED planning timestamp text.
func (h *Heading) Closed() (string, bool) {
	for _, p := range h.Planning {
		if p.Keyword == PlanningClosed {
			return p.Value, true
		}
	}
	return "", false
}

// SetClosed sets the CLOSED planning entry in place (or first, when absent). An empty
// value removes it.
func (h *Heading) SetClosed(value string) {
	value = strings.TrimSpace(value)
	for i, p := range h.Planning {
		if p.Keyword != PlanningClosed {
			continue
		}
		if value == "" {
			h.Planning = append(h.Planning[:i:i], h.Planning[i+1:]...)
		} else {
			h.Planning[i].Value = value
		}
		return
	}
	if value == "" {
		return
	}
	h.Planning = append([]PlanningEntry{{Keyword: PlanningClosed, Value: value}}, h.Planning...)
}

// Equal reports whether two documents are structurally identical.
func Equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Preamble) != len(b.Preamble) || len(a.Headings) != len(b.Headings) {
		return false
	}
	for i := range a.Preamble {
		la, lb := a.Preamble[i], b.Preamble[i]
		if la.Key != lb.Key || la.Value != lb.Value || la.String() != lb.String() {
			return false
		}
	}
	for i := range a.Headings {
		if !HeadingEqual(a.Headings[i], b.Headings[i]) {
			return false
		}
	}
	return true
}

// HeadingEqual reports whether two heading subtrees are structurally identical.
func HeadingEqual(a, b *Heading) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Level != b.Level || a.Keyword != b.Keyword || a.Title != b.Title || a.Body != b.Body {
		return false
	}
	if !stringsEqual(a.Tags, b.Tags) {
		return false
	}
	if len(a.Planning) != len(b.Planning) {
		return false
	}
	for i := range a.Planning {
		if a.Planning[i] != b.Planning[i] {
			return false
		}
	}
	if !a.Properties.Equal(b.Properties) {
		return false
	}
	if len(a.Children) != len(b.Children) {
		return false
	}
	for i := range a.Children {
		if !HeadingEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
