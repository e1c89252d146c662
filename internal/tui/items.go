package tui

import (
	"strings"

	"orgsync-cli/internal/org"

	"github.com/charmbracelet/bubbles/list"
)

type outlineRow struct {
	h           *org.Heading
	depth       int
	done        bool
	hasChildren bool
	collapsed   bool
}

func (r outlineRow) FilterValue() string {
	return strings.TrimSpace(r.h.Title + " " + strings.Join(r.h.Tags, " "))
}

func (r outlineRow) Title() string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", r.depth))
	switch {
	case r.hasChildren && r.collapsed:
		b.WriteString("▸ ")
	case r.hasChildren:
		b.WriteString("▾ ")
	default:
		b.WriteString("  ")
	}
	if r.h.Keyword != "" {
		b.WriteString(r.h.Keyword)
		b.WriteString(" ")
	}
	b.WriteString(strings.TrimSpace(r.h.Title))
	return b.String()
}

func (r outlineRow) Description() string {
	parts := []string{}
	if n := issueNumber(r.h); n != "" {
		parts = append(parts, "#"+n)
	}
	if len(r.h.Tags) > 0 {
		parts = append(parts, ":"+strings.Join(r.h.Tags, ":")+":")
	}
	return strings.Repeat("  ", r.depth) + "  " + strings.Join(parts, " ")
}

// issueNumber returns the value of the first *_NUMBER property, if any.
func issueNumber(h *org.Heading) string {
	if h.Properties == nil {
		return ""
	}
	for _, p := range h.Properties.Entries() {
		if strings.HasSuffix(p.Key, "_NUMBER") && p.Value != "" {
			return p.Value
		}
	}
	return ""
}

// flattenOutline walks doc depth-first, skipping the subtrees of collapsed headings.
func flattenOutline(doc *org.Document, collapsed map[*org.Heading]bool) []outlineRow {
	if doc == nil {
		return nil
	}
	_, doneKws := doc.TodoKeywords()
	isDone := map[string]bool{}
	for _, k := range doneKws {
		isDone[k] = true
	}

	var out []outlineRow
	var walk func(h *org.Heading, depth int)
	walk = func(h *org.Heading, depth int) {
		out = append(out, outlineRow{
			h:           h,
			depth:       depth,
			done:        isDone[h.Keyword],
			hasChildren: len(h.Children) > 0,
			collapsed:   collapsed[h],
		})
		if collapsed[h] {
			return
		}
		for _, c := range h.Children {
			walk(c, depth+1)
		}
	}
	for _, h := range doc.Headings {
		walk(h, 0)
	}
	return out
}

func rowsToItems(rows []outlineRow) []list.Item {
	items := make([]list.Item, 0, len(rows))
	for _, r := range rows {
		items = append(items, r)
	}
	return items
}

func newList(items []list.Item) list.Model {
	d := list.NewDefaultDelegate()
	d.Styles.SelectedTitle = d.Styles.SelectedTitle.Foreground(colorAccent).BorderForeground(colorAccent)
	d.Styles.SelectedDesc = d.Styles.SelectedDesc.Foreground(colorMuted).BorderForeground(colorAccent)

	l := list.New(items, d, 0, 0)
	l.Title = "Headings"
	// The browser renders its own footer, so keep list chrome minimal.
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(true)
	l.SetStatusBarItemName("heading", "headings")
	// ESC clears the filter; only q quits.
	l.KeyMap.Quit.SetKeys("q")

	cursorUpKeys := append([]string{}, l.KeyMap.CursorUp.Keys()...)
	l.KeyMap.CursorUp.SetKeys(append(cursorUpKeys, "ctrl+p")...)
	cursorDownKeys := append([]string{}, l.KeyMap.CursorDown.Keys()...)
	l.KeyMap.CursorDown.SetKeys(append(cursorDownKeys, "ctrl+n")...)
	return l
}
