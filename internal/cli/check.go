package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

type checkResult struct {
	Provider string `json:"provider"`
	URL      string `json:"url,omitempty"`
	OK       bool   `json:"ok"`
}

func (r checkResult) WriteText(w io.Writer) error {
	where := r.Provider
	if r.URL != "" {
		where += " at " + r.URL
	}
	_, err := fmt.Fprintf(w, "✓ %s is reachable and authenticated\n", where)
	return err
}

func newCheckCmd(app *App) *cobra.Command {
	var pf providerFlags

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify the provider is installed, reachable and authenticated",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			popt := pf.resolve(app)
			p, err := app.newProvider(popt, app.log)
			if err != nil {
				return err
			}
			if err := p.Check(cmd.Context()); err != nil {
				return err
			}
			res := checkResult{Provider: p.Name(), OK: true}
			if popt.Name == "gitea" {
				res.URL = popt.GiteaURL
			}
			return writeOut(cmd, app, res)
		},
	}
	pf.bind(cmd)
	return cmd
}
