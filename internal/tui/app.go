// Package tui is a read-only terminal browser for a synced Org file.
package tui

import (
	"fmt"
	"os"
	"strings"

	"orgsync-cli/internal/org"
	"orgsync-cli/internal/publish"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type pane int

const (
	paneList pane = iota
	paneDetail
)

type reloadedMsg struct {
	doc *org.Document
	err error
}

type appModel struct {
	path string
	doc  *org.Document

	list   list.Model
	detail viewport.Model
	focus  pane

	collapsed map[*org.Heading]bool
	selected  *org.Heading

	width  int
	height int

	minibuffer string
}

// Run opens the browser for doc, which was read from path. Reloads re-read path.
func Run(path string, doc *org.Document) error {
	m := newAppModel(path, doc)
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func newAppModel(path string, doc *org.Document) appModel {
	if doc == nil {
		doc = org.NewDocument()
	}
	m := appModel{
		path:      path,
		doc:       doc,
		detail:    viewport.New(0, 0),
		collapsed: map[*org.Heading]bool{},
	}
	m.list = newList(rowsToItems(flattenOutline(doc, m.collapsed)))
	m.syncDetail()
	return m
}

func (m appModel) Init() tea.Cmd { return nil }

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		m.selected = nil
		m.syncDetail()
		return m, nil

	case reloadedMsg:
		if msg.err != nil {
			m.minibuffer = "reload failed: " + msg.err.Error()
			return m, nil
		}
		m.doc = msg.doc
		m.collapsed = map[*org.Heading]bool{}
		m.refreshRows()
		m.minibuffer = fmt.Sprintf("reloaded %d headings", m.doc.Count())
		return m, nil

	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "tab", "enter":
			if m.focus == paneList {
				m.focus = paneDetail
			} else {
				m.focus = paneList
			}
			return m, nil
		case "esc":
			if m.focus == paneDetail {
				m.focus = paneList
				return m, nil
			}
		case "r":
			return m, m.reloadCmd()
		case "z":
			if m.focus == paneList {
				m.toggleCollapsed()
				return m, nil
			}
		}
		if m.focus == paneDetail {
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	m.syncDetail()
	return m, cmd
}

func (m appModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	left, right := paneStyle, paneStyle
	if m.focus == paneList {
		left = focusedPane
	} else {
		right = focusedPane
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		left.Render(m.list.View()),
		right.Render(m.detail.View()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, body, m.footer())
}

func (m appModel) footer() string {
	left := fmt.Sprintf("%s  %d headings", m.path, m.doc.Count())
	if m.minibuffer != "" {
		left = m.minibuffer
	}
	help := "tab:focus  z:fold  /:filter  r:reload  q:quit"
	gap := m.width - xansi.StringWidth(left) - xansi.StringWidth(help)
	if gap < 2 {
		return footerStyle.Render(xansi.Truncate(left, m.width, "…"))
	}
	return footerStyle.Render(left + strings.Repeat(" ", gap) + help)
}

// layout splits the screen 2:3 between the outline and the detail pane. Each pane
// loses two columns and two rows to its border; the footer takes one row.
func (m *appModel) layout() {
	innerH := m.height - 3
	if innerH < 1 {
		innerH = 1
	}
	listW := m.width * 2 / 5
	detailW := m.width - listW - 4
	listW -= 2
	if listW < 1 {
		listW = 1
	}
	if detailW < 1 {
		detailW = 1
	}
	m.list.SetSize(listW, innerH)
	m.detail.Width = detailW
	m.detail.Height = innerH
}

func (m *appModel) refreshRows() {
	idx := m.list.Index()
	m.list.SetItems(rowsToItems(flattenOutline(m.doc, m.collapsed)))
	if n := len(m.list.Items()); idx >= n && n > 0 {
		idx = n - 1
	}
	m.list.Select(idx)
	m.selected = nil
	m.syncDetail()
}

func (m *appModel) toggleCollapsed() {
	row, ok := m.list.SelectedItem().(outlineRow)
	if !ok || !row.hasChildren {
		return
	}
	m.collapsed[row.h] = !m.collapsed[row.h]
	m.refreshRows()
}

// syncDetail re-renders the detail pane when the selection changed.
func (m *appModel) syncDetail() {
	row, ok := m.list.SelectedItem().(outlineRow)
	if !ok {
		m.selected = nil
		m.detail.SetContent(mutedStyle.Render("No headings."))
		return
	}
	if row.h == m.selected && m.detail.Width > 0 {
		return
	}
	m.selected = row.h
	m.detail.SetContent(renderDetail(row, m.detail.Width))
	m.detail.GotoTop()
}

func (m appModel) reloadCmd() tea.Cmd {
	path := m.path
	return func() tea.Msg {
		b, err := os.ReadFile(path)
		if err != nil {
			return reloadedMsg{err: err}
		}
		doc, err := org.Parse(b)
		if err != nil {
			return reloadedMsg{err: err}
		}
		return reloadedMsg{doc: doc}
	}
}

func renderDetail(row outlineRow, width int) string {
	h := row.h
	var header strings.Builder
	if h.Keyword != "" {
		if row.done {
			header.WriteString(doneKwStyle.Render(h.Keyword))
		} else {
			header.WriteString(openKwStyle.Render(h.Keyword))
		}
		header.WriteString(" ")
	}
	header.WriteString(titleStyle.Render(strings.TrimSpace(h.Title)))
	if len(h.Tags) > 0 {
		header.WriteString(" ")
		header.WriteString(tagStyle.Render(":" + strings.Join(h.Tags, ":") + ":"))
	}

	// Render the heading alone; children have their own rows.
	single := &org.Heading{
		Level:      1,
		Title:      h.Title,
		Planning:   h.Planning,
		Properties: h.Properties,
		Body:       h.Body,
	}
	md := publish.RenderMarkdown(&org.Document{Headings: []*org.Heading{single}}, publish.RenderOptions{IncludeProperties: true})
	// Drop the markdown heading line; the styled header replaces it.
	if _, rest, ok := strings.Cut(md, "\n"); ok {
		md = rest
	} else {
		md = ""
	}

	out := header.String()
	if width > 0 {
		out = xansi.Truncate(out, width, "…")
	}
	if rendered := RenderMarkdown(md, width); rendered != "" {
		out += "\n\n" + rendered
	}
	return out
}
