package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"orgsync-cli/internal/org"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	xansi "github.com/charmbracelet/x/ansi"
	"github.com/spf13/cobra"
)

const maxTitleWidth = 50

// numberKeys are the issue-number properties checked for duplicates and shown in the
// parse table, one per provider.
var numberKeys = []string{"GITHUB_NUMBER", "GITEA_NUMBER"}

type parseReport struct {
	Path     string        `json:"path"`
	Headings int           `json:"headings"`
	Doc      *org.Document `json:"document"`
	Warnings []org.Warning `json:"warnings,omitempty"`
}

func (r *parseReport) WriteText(w io.Writer) error {
	if r.Headings == 0 {
		_, err := fmt.Fprintf(w, "No headings found in %s\n", r.Path)
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("#", "Level", "State", "Title", "Issue", "Tags")
	i := 0
	r.Doc.Walk(func(h *org.Heading) bool {
		i++
		t.Row(
			fmt.Sprint(i),
			strings.Repeat("*", h.Level),
			orDash(h.Keyword),
			orDash(xansi.Truncate(strings.TrimSpace(h.Title), maxTitleWidth, "…")),
			orDash(headingNumber(h)),
			orDash(strings.Join(h.Tags, ":")),
		)
		return true
	})

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Render("Org file: "+r.Path) + "\n")
	b.WriteString(t.Render() + "\n")
	fmt.Fprintf(&b, "%d headings\n", r.Headings)
	for _, warn := range r.Warnings {
		fmt.Fprintf(&b, "warning: %s\n", warn)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func headingNumber(h *org.Heading) string {
	for _, k := range numberKeys {
		if v, ok := h.Property(k); ok && v != "" {
			return v
		}
	}
	return ""
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// readOrg reads and parses path, attaching the path to parse errors.
func readOrg(path string) (*org.ParseResult, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fileNotFoundError{path: path}
	}
	if err != nil {
		return nil, err
	}
	res, err := org.ParseWithLint(b, numberKeys...)
	if err != nil {
		var me *org.MalformedDocumentError
		if errors.As(err, &me) {
			me.Path = path
		}
		return nil, err
	}
	return res, nil
}

func newParseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse an Org file and print its structure",
		Long:  "Parse an Org file and print its heading structure and lint warnings. Useful for debugging a file before syncing into it.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := readOrg(args[0])
			if err != nil {
				return err
			}
			app.log.Debug("parsed", "path", args[0], "warnings", len(res.Warnings))
			return writeOut(cmd, app, &parseReport{
				Path:     args[0],
				Headings: res.Doc.Count(),
				Doc:      res.Doc,
				Warnings: res.Warnings,
			})
		},
	}
}
