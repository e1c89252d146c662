package org

import (
	"bytes"
	"strings"
)

// Render serializes doc. Output always ends in a single newline; an empty document
// renders as no bytes.
func Render(doc *Document) []byte {
	var buf bytes.Buffer
	for _, l := range doc.Preamble {
		writeLn(&buf, l.String())
	}
	for _, h := range doc.Headings {
		writeHeading(&buf, h)
	}
	return buf.Bytes()
}

// RenderHeading serializes one heading subtree exactly as Render would, without the
// separating blank line.
func RenderHeading(h *Heading) []byte {
	var buf bytes.Buffer
	writeHeading(&buf, h)
	return bytes.TrimPrefix(buf.Bytes(), []byte("\n"))
}

func writeLn(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte('\n')
}

func writeHeading(buf *bytes.Buffer, h *Heading) {
	if buf.Len() > 0 {
		buf.WriteByte('\n')
	}
	writeLn(buf, Headline(h))
	if len(h.Planning) > 0 {
		parts := make([]string, 0, len(h.Planning))
		for _, p := range h.Planning {
			parts = append(parts, p.Keyword+": "+p.Value)
		}
		writeLn(buf, strings.Join(parts, " "))
	}
	if h.Properties != nil {
		writeDrawer(buf, h.Properties)
	}
	if h.Body != "" {
		writeLn(buf, h.Body)
	}
	for _, c := range h.Children {
		writeHeading(buf, c)
	}
}

// Headline returns the `*** KEYWORD Title :tags:` line for h.
func Headline(h *Heading) string {
	level := h.Level
	if level < 1 {
		level = 1
	}
	parts := []string{strings.Repeat("*", level)}
	if h.Keyword != "" {
		parts = append(parts, h.Keyword)
	}
	if h.Title != "" {
		parts = append(parts, h.Title)
	}
	if tags := UniqueTags(h.Tags); len(tags) > 0 {
		parts = append(parts, ":"+strings.Join(tags, ":")+":")
	}
	return strings.Join(parts, " ")
}

func writeDrawer(buf *bytes.Buffer, d *Drawer) {
	writeLn(buf, ":PROPERTIES:")
	width := 0
	for _, p := range d.entries {
		if n := len(p.Key) + 2; n > width {
			width = n
		}
	}
	for _, p := range d.entries {
		key := ":" + p.Key + ":"
		if p.Value == "" {
			writeLn(buf, key)
			continue
		}
		writeLn(buf, key+strings.Repeat(" ", width-len(key)+1)+p.Value)
	}
	writeLn(buf, ":END:")
}
