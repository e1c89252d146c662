package cli

import (
	"fmt"
	"io"
	"os"

	"orgsync-cli/internal/config"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type configView struct {
	Path   string         `json:"path,omitempty"`
	Config *config.Config `json:"config"`
}

func (v configView) WriteText(w io.Writer) error {
	src := v.Path
	if src == "" {
		src = "(defaults)"
	}
	b, err := yaml.Marshal(v.Config)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "# %s\n%s", src, b)
	return err
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the orgsync config file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeOut(cmd, app, configView{Path: app.cfgPath, Config: app.cfg})
		},
	})

	var global, force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.FileName
			if global {
				p, err := config.ConfigPath()
				if err != nil {
					return err
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists (use --force): %s", path)
			}
			cfg := config.Default()
			if err := config.Save(cfg, path); err != nil {
				return err
			}
			return writeOut(cmd, app, configView{Path: path, Config: cfg})
		},
	}
	initCmd.Flags().BoolVar(&global, "global", false, "Write the global config instead of ./"+config.FileName)
	initCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file (the old one is kept as .bak)")
	cmd.AddCommand(initCmd)

	return cmd
}
