package prose

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	emojiast "github.com/yuin/goldmark-emoji/ast"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown converts GitHub-flavoured Markdown to Org markup.
type Markdown struct {
	md goldmark.Markdown
}

func NewMarkdown() *Markdown {
	return &Markdown{md: goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			emoji.Emoji,
		),
	)}
}

func (m *Markdown) Convert(src string) (string, error) {
	if !utf8.ValidString(src) {
		return "", ErrInvalidText
	}
	src = strings.ReplaceAll(src, "\r\n", "\n")
	if strings.TrimSpace(src) == "" {
		return "", nil
	}
	source := []byte(src)
	root := m.md.Parser().Parse(text.NewReader(source))
	w := &orgWriter{source: source}
	w.blocks(root, "")
	return strings.TrimRight(w.b.String(), "\n"), nil
}

type orgWriter struct {
	source []byte
	b      strings.Builder
}

// blocks renders the block children of n, separated by blank lines.
func (w *orgWriter) blocks(n ast.Node, indent string) {
	first := true
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if !first {
			w.b.WriteString("\n")
		}
		first = false
		w.block(c, indent, indent)
	}
}

// block renders one block. lead prefixes the first line, indent the rest.
func (w *orgWriter) block(n ast.Node, lead, indent string) {
	switch n := n.(type) {
	case *ast.Paragraph, *ast.TextBlock:
		w.lines(w.inlines(n), lead, indent)
	case *ast.Heading:
		w.lines("*"+strings.TrimSpace(w.inlines(n))+"*", lead, indent)
	case *ast.ThematicBreak:
		w.lines("-----", lead, indent)
	case *ast.FencedCodeBlock:
		open := "#+begin_src"
		if lang := n.Language(w.source); len(lang) > 0 {
			open += " " + string(lang)
		}
		w.lines(open+"\n"+w.raw(n)+"#+end_src", lead, indent)
	case *ast.CodeBlock:
		w.lines("#+begin_example\n"+w.raw(n)+"#+end_example", lead, indent)
	case *ast.HTMLBlock:
		w.lines("#+begin_export html\n"+w.raw(n)+"#+end_export", lead, indent)
	case *ast.Blockquote:
		w.lines("#+begin_quote", lead, indent)
		w.blocks(n, indent)
		w.lines("#+end_quote", indent, indent)
	case *ast.List:
		w.list(n, lead, indent)
	case *extast.Table:
		w.table(n, lead, indent)
	default:
		if n.HasChildren() {
			w.blocks(n, indent)
		}
	}
}

func (w *orgWriter) list(l *ast.List, lead, indent string) {
	num := l.Start
	if num == 0 {
		num = 1
	}
	i := 0
	for item := l.FirstChild(); item != nil; item = item.NextSibling() {
		bullet := "- "
		if l.IsOrdered() {
			bullet = strconv.Itoa(num) + ". "
			num++
		}
		pad := indent + strings.Repeat(" ", len(bullet))
		first := indent
		if i == 0 {
			first = lead
		}
		if !l.IsTight && i > 0 {
			w.b.WriteString("\n")
		}
		i++

		if item.FirstChild() == nil {
			w.lines(strings.TrimRight(bullet, " "), first, indent)
			continue
		}
		j := 0
		for c := item.FirstChild(); c != nil; c = c.NextSibling() {
			if j == 0 {
				w.block(c, first+bullet, pad)
			} else {
				if !l.IsTight {
					w.b.WriteString("\n")
				}
				w.block(c, pad, pad)
			}
			j++
		}
	}
}

func (w *orgWriter) table(t *extast.Table, lead, indent string) {
	var rows []string
	for r := t.FirstChild(); r != nil; r = r.NextSibling() {
		var cells []string
		for c := r.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, strings.ReplaceAll(strings.TrimSpace(w.inlines(c)), "|", "\\vert{}"))
		}
		rows = append(rows, "| "+strings.Join(cells, " | ")+" |")
		if _, ok := r.(*extast.TableHeader); ok {
			seps := make([]string, len(cells))
			for i, c := range cells {
				seps[i] = strings.Repeat("-", max(utf8.RuneCountInString(c), 1)+2)
			}
			rows = append(rows, "|"+strings.Join(seps, "+")+"|")
		}
	}
	w.lines(strings.Join(rows, "\n"), lead, indent)
}

// lines writes s line by line, prefixing the first with lead and the rest with indent.
func (w *orgWriter) lines(s, lead, indent string) {
	for i, l := range strings.Split(s, "\n") {
		p := indent
		if i == 0 {
			p = lead
		}
		if l == "" {
			w.b.WriteString("\n")
			continue
		}
		w.b.WriteString(p + l + "\n")
	}
}

func (w *orgWriter) raw(n ast.Node) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(w.source))
	}
	s := b.String()
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s
}

func (w *orgWriter) inlines(n ast.Node) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		w.inline(&b, c)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (w *orgWriter) inline(b *strings.Builder, n ast.Node) {
	switch n := n.(type) {
	case *ast.Text:
		b.Write(n.Segment.Value(w.source))
		if n.SoftLineBreak() || n.HardLineBreak() {
			b.WriteString("\n")
		}
	case *ast.String:
		b.Write(n.Value)
	case *ast.CodeSpan:
		b.WriteString("~" + w.inlines(n) + "~")
	case *ast.Emphasis:
		mark := "/"
		if n.Level >= 2 {
			mark = "*"
		}
		b.WriteString(mark + w.inlines(n) + mark)
	case *extast.Strikethrough:
		b.WriteString("+" + w.inlines(n) + "+")
	case *ast.Link:
		b.WriteString(orgLink(string(n.Destination), w.inlines(n)))
	case *ast.Image:
		b.WriteString(orgLink(string(n.Destination), ""))
	case *ast.AutoLink:
		url := string(n.URL(w.source))
		if n.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(url, "mailto:") {
			url = "mailto:" + url
		}
		b.WriteString(orgLink(url, ""))
	case *ast.RawHTML:
		for i := 0; i < n.Segments.Len(); i++ {
			seg := n.Segments.At(i)
			b.Write(seg.Value(w.source))
		}
	case *extast.TaskCheckBox:
		if n.IsChecked {
			b.WriteString("[X] ")
		} else {
			b.WriteString("[ ] ")
		}
	case *emojiast.Emoji:
		if n.Value != nil && len(n.Value.Unicode) > 0 {
			b.WriteString(string(n.Value.Unicode))
		} else {
			b.WriteString(":" + string(n.ShortName) + ":")
		}
	default:
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			w.inline(b, c)
		}
	}
}

func orgLink(dest, label string) string {
	label = strings.ReplaceAll(strings.TrimSpace(label), "\n", " ")
	if label == "" || label == dest {
		return "[[" + dest + "]]"
	}
	return "[[" + dest + "][" + label + "]]"
}
