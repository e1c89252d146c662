// Package publish exports a synced Org outline as Markdown.
package publish

import (
	"bytes"
	"strings"

	"orgsync-cli/internal/org"
)

type RenderOptions struct {
	// IncludeProperties lists each heading's drawer as a bullet list.
	IncludeProperties bool
	// MaxDepth drops headings deeper than this level; zero keeps everything.
	MaxDepth int
}

// maxATXLevel is the deepest Markdown heading; the document title takes level 1.
const maxATXLevel = 6

// RenderMarkdown renders doc as a Markdown document. The #+TITLE keyword, when present,
// becomes the top-level heading and Org headings shift down one level.
func RenderMarkdown(doc *org.Document, opt RenderOptions) string {
	var buf bytes.Buffer
	writeLn := func(s string) {
		buf.WriteString(s)
		buf.WriteString("\n")
	}

	shift := 0
	if title, ok := doc.Keyword("TITLE"); ok && strings.TrimSpace(title) != "" {
		writeLn("# " + strings.TrimSpace(title))
		if desc, ok := doc.Keyword("DESCRIPTION"); ok && strings.TrimSpace(desc) != "" {
			writeLn("")
			writeLn(strings.TrimSpace(desc))
		}
		shift = 1
	}

	var walk func(h *org.Heading)
	walk = func(h *org.Heading) {
		if opt.MaxDepth > 0 && h.Level > opt.MaxDepth {
			return
		}
		if buf.Len() > 0 {
			writeLn("")
		}
		writeLn(headingLine(h, shift))

		var meta []string
		if v, ok := h.Closed(); ok {
			meta = append(meta, "- Closed: "+v)
		}
		if len(h.Tags) > 0 {
			meta = append(meta, "- Tags: "+codeList(h.Tags))
		}
		if opt.IncludeProperties {
			for _, p := range h.Properties.Entries() {
				if p.Value == "" {
					continue
				}
				meta = append(meta, "- "+p.Key+": "+p.Value)
			}
		}
		if len(meta) > 0 {
			writeLn("")
			for _, m := range meta {
				writeLn(m)
			}
		}

		if body := strings.TrimSpace(org.UnescapeBody(h.Body)); body != "" {
			writeLn("")
			writeLn(body)
		}
		for _, c := range h.Children {
			walk(c)
		}
	}
	for _, h := range doc.Headings {
		walk(h)
	}
	return buf.String()
}

func headingLine(h *org.Heading, shift int) string {
	title := strings.TrimSpace(h.Title)
	if h.Keyword != "" {
		title = "**" + h.Keyword + "** " + title
	}
	level := h.Level + shift
	if level < 1 {
		level = 1
	}
	if level > maxATXLevel {
		return "**" + strings.TrimSpace(h.Title) + "**"
	}
	return strings.Repeat("#", level) + " " + strings.TrimSpace(title)
}

func codeList(xs []string) string {
	parts := make([]string, 0, len(xs))
	for _, x := range xs {
		parts = append(parts, "`"+x+"`")
	}
	return strings.Join(parts, ", ")
}
