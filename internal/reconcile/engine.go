// Package reconcile merges fetched tracker records into an Org document without
// disturbing anything the tracker does not own.
package reconcile

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"orgsync-cli/internal/org"
	"orgsync-cli/internal/record"
)

// Managed drawer key suffixes. The engine writes Prefix+suffix and nothing else.
const (
	KeyNumber    = "NUMBER"
	KeyState     = "STATE"
	KeyURL       = "URL"
	KeyAuthor    = "AUTHOR"
	KeyCreated   = "CREATED"
	KeyUpdated   = "UPDATED"
	KeyClosed    = "CLOSED"
	KeyAssignees = "ASSIGNEES"
	KeyMilestone = "MILESTONE"
	KeyLabels    = "LABELS"
)

var managedKeys = []string{
	KeyNumber, KeyState, KeyURL, KeyAuthor, KeyCreated,
	KeyUpdated, KeyClosed, KeyAssignees, KeyMilestone, KeyLabels,
}

// DefaultLinkTag marks headings that mirror a tracker issue.
const DefaultLinkTag = "LINK"

type Engine struct {
	// Prefix namespaces the managed keys, e.g. "GITHUB_".
	Prefix string
	// LinkTag is ensured on every synced heading. Empty disables it.
	LinkTag string
	// OpenKeyword and DoneKeyword default to the document's first active and done
	// keywords.
	OpenKeyword string
	DoneKeyword string
	// IgnoreComments leaves existing comment sub-headings alone and creates none.
	IgnoreComments bool
}

type Action string

const (
	ActionAdded     Action = "added"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
)

type Entry struct {
	Number  int      `json:"number"`
	Title   string   `json:"title"`
	Action  Action   `json:"action"`
	Changes []string `json:"changes,omitempty"`
}

type Summary struct {
	Added     int     `json:"added"`
	Updated   int     `json:"updated"`
	Unchanged int     `json:"unchanged"`
	Untouched int     `json:"untouched"`
	Entries   []Entry `json:"entries,omitempty"`
}

// Changed reports whether the document was modified.
func (s Summary) Changed() bool { return s.Added+s.Updated > 0 }

// Key returns the fully prefixed drawer key for a managed suffix.
func (e Engine) Key(suffix string) string {
	return strings.ToUpper(e.Prefix) + suffix
}

// Reconcile folds recs into doc in place, in the order given. It never fails: doc must
// already be a successfully parsed document. A number repeated within recs is applied
// once, with the data of its last occurrence at the position of its first.
func (e Engine) Reconcile(doc *org.Document, recs []record.Record) Summary {
	e = e.withDefaults(doc)
	recs = collapse(recs)

	var sum Summary
	if len(recs) > 0 && (!doc.IsTodoKeyword(e.OpenKeyword) || !doc.IsTodoKeyword(e.DoneKeyword)) {
		doc.DeclareTodoKeywords(e.OpenKeyword, e.DoneKeyword)
	}

	index := e.index(doc)
	seen := map[*org.Heading]bool{}
	for _, rec := range recs {
		title := org.CleanTitle(rec.Title)
		existing, ok := index[rec.Number]
		if !ok {
			h := e.newHeading(rec)
			doc.Headings = append(doc.Headings, h)
			index[rec.Number] = h
			seen[h] = true
			sum.Added++
			sum.Entries = append(sum.Entries, Entry{Number: rec.Number, Title: title, Action: ActionAdded})
			continue
		}
		seen[existing] = true

		updated := existing.Clone()
		e.apply(updated, rec)
		if bytes.Equal(org.RenderHeading(existing), org.RenderHeading(updated)) {
			sum.Unchanged++
			sum.Entries = append(sum.Entries, Entry{Number: rec.Number, Title: title, Action: ActionUnchanged})
			continue
		}
		changes := describeChanges(existing, updated)
		*existing = *updated
		sum.Updated++
		sum.Entries = append(sum.Entries, Entry{Number: rec.Number, Title: title, Action: ActionUpdated, Changes: changes})
	}

	for _, h := range index {
		if !seen[h] {
			sum.Untouched++
		}
	}
	return sum
}

func collapse(recs []record.Record) []record.Record {
	pos := make(map[int]int, len(recs))
	out := make([]record.Record, 0, len(recs))
	for _, r := range recs {
		if i, ok := pos[r.Number]; ok {
			out[i] = r
			continue
		}
		pos[r.Number] = len(out)
		out = append(out, r)
	}
	return out
}

func (e Engine) withDefaults(doc *org.Document) Engine {
	active, done := doc.TodoKeywords()
	if e.OpenKeyword == "" {
		e.OpenKeyword = "TODO"
		if len(active) > 0 {
			e.OpenKeyword = active[0]
		}
	}
	if e.DoneKeyword == "" {
		e.DoneKeyword = "DONE"
		if len(done) > 0 {
			e.DoneKeyword = done[0]
		}
	}
	return e
}

// index maps record numbers to top-level headings. It is rebuilt on every call; the
// first heading carrying a number wins.
func (e Engine) index(doc *org.Document) map[int]*org.Heading {
	out := map[int]*org.Heading{}
	key := e.Key(KeyNumber)
	for _, h := range doc.Headings {
		v, ok := h.Property(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			continue
		}
		if _, dup := out[n]; !dup {
			out[n] = h
		}
	}
	return out
}

func (e Engine) newHeading(rec record.Record) *org.Heading {
	h := &org.Heading{Level: 1, Properties: org.NewDrawer()}
	labels := NormalizeLabels(rec.Labels)
	var tags []string
	if e.LinkTag != "" {
		tags = append(tags, e.LinkTag)
	}
	h.SetTags(append(tags, labels...))
	e.apply(h, rec)
	return h
}

// apply overwrites the managed parts of h from rec.
func (e Engine) apply(h *org.Heading, rec record.Record) {
	if rec.IsClosed() {
		h.Keyword = e.DoneKeyword
	} else {
		h.Keyword = e.OpenKeyword
	}
	if rec.IsClosed() && rec.ClosedAt != nil {
		h.SetClosed(org.FormatTimestamp(*rec.ClosedAt))
	} else {
		h.SetClosed("")
	}
	h.Title = org.CleanTitle(rec.Title)
	h.Body = org.EscapeBody(rec.Body)

	if h.Properties == nil {
		h.Properties = org.NewDrawer()
	}
	labels := NormalizeLabels(rec.Labels)
	prev, _ := h.Properties.Get(e.Key(KeyLabels))
	h.SetTags(mergeTags(h.Tags, parseSnapshot(prev), labels, e.LinkTag))

	values := e.values(rec, labels)
	for _, k := range managedKeys {
		v, keep := values[k]
		if !keep {
			h.Properties.Delete(e.Key(k))
			continue
		}
		h.Properties.Set(e.Key(k), v)
	}

	if !e.IgnoreComments {
		h.Children = spliceComments(h.Children, e.commentHeadings(h.Level+1, rec.Comments))
	}
}

// values returns the managed drawer values for rec. Keys absent from the map are
// removed from the drawer.
func (e Engine) values(rec record.Record, labels []string) map[string]string {
	v := map[string]string{
		KeyNumber: strconv.Itoa(rec.Number),
		KeyState:  string(rec.State),
		KeyLabels: labelSnapshot(labels),
	}
	set := func(k, s string) {
		if s = oneLine(s); s != "" {
			v[k] = s
		}
	}
	set(KeyURL, rec.URL)
	set(KeyAuthor, rec.Author)
	set(KeyCreated, formatTime(rec.CreatedAt))
	set(KeyUpdated, formatTime(rec.UpdatedAt))
	if rec.ClosedAt != nil {
		set(KeyClosed, formatTime(*rec.ClosedAt))
	}
	set(KeyAssignees, strings.Join(rec.Assignees, ", "))
	set(KeyMilestone, rec.Milestone)
	return v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func describeChanges(old, updated *org.Heading) []string {
	var out []string
	oldClosed, _ := old.Closed()
	newClosed, _ := updated.Closed()
	if old.Keyword != updated.Keyword || oldClosed != newClosed {
		out = append(out, "state")
	}
	if old.Title != updated.Title {
		out = append(out, "title")
	}
	if old.Body != updated.Body {
		out = append(out, "body")
	}
	if strings.Join(old.Tags, ":") != strings.Join(updated.Tags, ":") {
		out = append(out, "tags")
	}
	if !old.Properties.Equal(updated.Properties) {
		out = append(out, "properties")
	}
	if !childrenEqual(old.Children, updated.Children) {
		out = append(out, "comments")
	}
	return out
}

func childrenEqual(a, b []*org.Heading) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !org.HeadingEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}
