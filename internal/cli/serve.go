package cli

import (
	"fmt"

	"orgsync-cli/internal/web"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve [file]",
		Short: "Serve a live, read-only HTML view of an Org file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.cfg.Output
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				path = defaultOutput
			}
			if _, err := readOrg(path); err != nil {
				return err
			}
			srv, err := web.NewServer(web.ServerConfig{Addr: addr, Path: path, Logger: app.log})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Serving %s on http://%s (Ctrl+C to stop)\n", path, srv.Addr())
			return srv.ListenAndServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", envOr("ORGSYNC_ADDR", "127.0.0.1:3333"), "Listen address")
	return cmd
}
