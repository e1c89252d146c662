package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"orgsync-cli/internal/config"
	"orgsync-cli/internal/journal"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	historyIDStyle    = lipgloss.NewStyle().Bold(true)
	historyMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#57606a", Dark: "#8b949e"})
)

type historyList []journal.Run

func (runs historyList) WriteText(w io.Writer) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No sync runs recorded yet.")
		return err
	}
	var b strings.Builder
	for _, r := range runs {
		fmt.Fprintf(&b, "%s  %s  %s %s -> %s  +%d ~%d =%d",
			historyIDStyle.Render(shortID(r.ID)),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Provider, r.Repo, r.File,
			r.Added, r.Updated, r.Unchanged)
		if r.Skipped > 0 {
			fmt.Fprintf(&b, " !%d", r.Skipped)
		}
		if !r.Written {
			b.WriteString(historyMutedStyle.Render("  (no write)"))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

type historyRun journal.Run

func (r historyRun) WriteText(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s -> %s\n", historyIDStyle.Render(r.ID), r.Provider, r.Repo, r.File)
	fmt.Fprintf(&b, "  started %s, took %s\n", r.StartedAt.Local().Format(time.RFC3339), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(&b, "  added %d, updated %d, unchanged %d, untouched %d, skipped %d\n",
		r.Added, r.Updated, r.Unchanged, r.Untouched, r.Skipped)
	for _, e := range r.Entries {
		line := fmt.Sprintf("  %-9s #%d %s", e.Action, e.Number, e.Title)
		if len(e.Changes) > 0 {
			line += historyMutedStyle.Render(" (" + strings.Join(e.Changes, ", ") + ")")
		}
		b.WriteString(line + "\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newHistoryCmd(app *App) *cobra.Command {
	var repo string
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recent sync runs, or one run in detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.JournalPath()
			if err != nil {
				return err
			}
			j, err := journal.Open(cmd.Context(), path, app.log)
			if err != nil {
				return err
			}
			defer j.Close()

			if len(args) == 1 {
				run, err := j.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeOut(cmd, app, historyRun(run))
			}
			runs, err := j.Recent(cmd.Context(), strings.TrimSpace(repo), limit)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, historyList(runs))
		},
	}
	cmd.Flags().StringVar(&repo, "repo", "", "Only runs for this owner/repo")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum runs to list")
	return cmd
}
