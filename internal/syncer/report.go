package syncer

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"orgsync-cli/internal/reconcile"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	addedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"})
	updatedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"})
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#57606a", Dark: "#8b949e"})
)

// WriteText prints a human-readable merge summary. Unchanged issues are counted but
// not listed.
func (r *Result) WriteText(w io.Writer) error {
	var b strings.Builder
	verb := "Synced"
	if r.DryRun {
		verb = "Dry run:"
	}
	fmt.Fprintf(&b, "%s\n", headerStyle.Render(fmt.Sprintf("%s %s issues from %s into %s", verb, r.Provider, r.Repo, r.Path)))
	fmt.Fprintf(&b, "  fetched %d, added %d, updated %d, unchanged %d, untouched %d\n",
		r.Fetched, r.Added, r.Updated, r.Unchanged, r.Untouched)

	for _, e := range r.Entries {
		switch e.Action {
		case reconcile.ActionAdded:
			fmt.Fprintf(&b, "  %s #%d %s\n", addedStyle.Render("+"), e.Number, e.Title)
		case reconcile.ActionUpdated:
			fmt.Fprintf(&b, "  %s #%d %s %s\n", updatedStyle.Render("~"), e.Number, e.Title,
				mutedStyle.Render("("+strings.Join(e.Changes, ", ")+")"))
		}
	}
	for _, n := range r.Skipped {
		fmt.Fprintf(&b, "  %s #%d skipped (conversion failed)\n", mutedStyle.Render("!"), n)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  %s %s: %s\n", updatedStyle.Render("warning"), r.Path, w)
	}

	switch {
	case r.DryRun && (r.Changed() || r.Created):
		b.WriteString(mutedStyle.Render("  nothing written (dry run)") + "\n")
	case r.Written:
		line := "  wrote " + r.Path
		if r.Backup != "" {
			line += " (backup " + r.Backup + ")"
		}
		if r.Committed {
			line += ", committed"
		}
		b.WriteString(line + "\n")
	default:
		b.WriteString(mutedStyle.Render("  no changes") + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
