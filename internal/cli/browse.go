package cli

import (
	"orgsync-cli/internal/tui"

	"github.com/spf13/cobra"
)

func newBrowseCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "browse [file]",
		Short: "Browse an Org outline interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.cfg.Output
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = defaultOutput
			}
			res, err := readOrg(path)
			if err != nil {
				return err
			}
			return tui.Run(path, res.Doc)
		},
	}
}
