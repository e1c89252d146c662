package cli

import (
	"io"
	"strings"

	"orgsync-cli/internal/publish"
	"orgsync-cli/internal/tui"

	"github.com/spf13/cobra"
)

func newExportCmd(app *App) *cobra.Command {
	var (
		to         string
		overwrite  bool
		properties bool
		depth      int
		render     bool
		width      int
	)

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export an Org outline as Markdown (derived, not synced back)",
		Example: strings.TrimSpace(`
  orgsync export issues.org --to docs/issues.md
  orgsync export issues.org --render | less -R
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := readOrg(args[0])
			if err != nil {
				return err
			}
			ropt := publish.RenderOptions{IncludeProperties: properties, MaxDepth: depth}

			if strings.TrimSpace(to) == "" {
				md := publish.RenderMarkdown(res.Doc, ropt)
				if render {
					md = tui.RenderMarkdown(md, width) + "\n"
				}
				_, err := io.WriteString(cmd.OutOrStdout(), md)
				return err
			}

			out, err := publish.WriteMarkdown(res.Doc, to, publish.WriteOptions{
				RenderOptions: ropt,
				Overwrite:     overwrite,
			})
			if err != nil {
				return err
			}
			app.log.Info("exported", "path", out.Written, "headings", out.Headings)
			return writeOut(cmd, app, out)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Markdown file to write (default: stdout)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing --to file")
	cmd.Flags().BoolVar(&properties, "properties", false, "Include property drawers as bullet lists")
	cmd.Flags().IntVar(&depth, "depth", 0, "Drop headings deeper than this level (0 keeps all)")
	cmd.Flags().BoolVar(&render, "render", false, "Render the Markdown for the terminal (stdout only)")
	cmd.Flags().IntVar(&width, "width", 100, "Wrap width for --render")
	return cmd
}
