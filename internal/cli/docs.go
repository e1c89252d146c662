package cli

import (
	"fmt"
	"io"
	"strings"

	"orgsync-cli/internal/docs"
	"orgsync-cli/internal/tui"

	"github.com/spf13/cobra"
)

type docsTopics struct {
	Topics []string `json:"topics"`
}

func (d docsTopics) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "Topics: %s\nRun `orgsync docs <topic>` to read one.\n", strings.Join(d.Topics, ", "))
	return err
}

type docsTopic struct {
	Topic    string `json:"topic"`
	Markdown string `json:"markdown"`
	width    int
}

func (d docsTopic) WriteText(w io.Writer) error {
	_, err := io.WriteString(w, tui.RenderMarkdown(d.Markdown, d.width)+"\n")
	return err
}

func newDocsCmd(app *App) *cobra.Command {
	var raw bool
	var width int

	cmd := &cobra.Command{
		Use:   "docs [topic]",
		Short: "Show long-form documentation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeOut(cmd, app, docsTopics{Topics: docs.Topics()})
			}
			topic := args[0]
			body, ok := docs.Get(topic)
			if !ok {
				return fmt.Errorf("unknown docs topic: %q (run `orgsync docs` to list topics)", topic)
			}
			if raw {
				_, err := fmt.Fprint(cmd.OutOrStdout(), body)
				return err
			}
			return writeOut(cmd, app, docsTopic{Topic: topic, Markdown: body, width: width})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print raw Markdown")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width")
	return cmd
}
