package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"orgsync-cli/internal/config"
	"orgsync-cli/internal/format"
	"orgsync-cli/internal/tui"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type App struct {
	ConfigPath string
	PrettyJSON bool
	Format     string
	Verbose    bool
	LogLevel   string
	NoColor    bool

	cfg     *config.Config
	cfgPath string
	log     *log.Logger

	// newProvider builds the tracker client; tests swap it for a fake.
	newProvider providerFactory
}

// NewRootCmd builds the orgsync command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(&App{newProvider: defaultProvider})
}

func newRootCmd(app *App) *cobra.Command {
	if app.newProvider == nil {
		app.newProvider = defaultProvider
	}

	cmd := &cobra.Command{
		Use:           "orgsync",
		Short:         "Sync GitHub/Gitea issues into an Org-mode outline",
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: strings.TrimSpace(`
  # Sync open issues into ./issues.org
  orgsync sync acme/widgets

  # Shortcut for: orgsync sync acme/widgets
  orgsync acme/widgets -o todo.org -s all

  # Preview without writing
  orgsync sync acme/widgets --dry-run

  # Gitea instead of GitHub
  orgsync sync team/app -p gitea --gitea-url https://gitea.example.com
`),
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.setup(cmd)
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("ORGSYNC_CONFIG", ""), "Config file (default: ./.orgsync.yaml, then ~/.orgsync/config.yaml)")
	cmd.PersistentFlags().BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	cmd.PersistentFlags().StringVar(&app.Format, "format", envOr("ORGSYNC_FORMAT", "text"), "Output format (text|json)")
	cmd.PersistentFlags().BoolVarP(&app.Verbose, "verbose", "v", false, "Verbose logging (same as --log-level debug)")
	cmd.PersistentFlags().StringVar(&app.LogLevel, "log-level", envOr("ORGSYNC_LOG_LEVEL", ""), "Log level (debug|info|warn|error)")
	cmd.PersistentFlags().BoolVar(&app.NoColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newSyncCmd(app))
	cmd.AddCommand(newCheckCmd(app))
	cmd.AddCommand(newParseCmd(app))
	cmd.AddCommand(newHistoryCmd(app))
	cmd.AddCommand(newExportCmd(app))
	cmd.AddCommand(newBrowseCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// setup loads configuration and the logger once flags are parsed.
func (app *App) setup(cmd *cobra.Command) error {
	switch app.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown format: %s (want text or json)", app.Format)
	}

	cfg, path, err := config.Load(app.ConfigPath)
	if err != nil {
		return err
	}
	app.cfg = cfg
	app.cfgPath = path

	level := cfg.LogLevel
	if app.LogLevel != "" {
		level = app.LogLevel
	}
	if app.Verbose {
		level = "debug"
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}
	app.log = log.NewWithOptions(cmd.ErrOrStderr(), log.Options{
		Level:  lvl,
		Prefix: "orgsync",
	})

	tui.ConfigureColor(app.NoColor)
	if path != "" {
		app.log.Debug("loaded config", "path", path)
	}
	return nil
}

// Execute runs the command tree with args and reports failures on stderr. It returns
// the process exit code.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	return execute(ctx, cmd, args, stdout, stderr)
}

func execute(ctx context.Context, cmd *cobra.Command, args []string, stdout, stderr io.Writer) int {
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(stderr, "Interrupted")
		return 130
	}
	_ = writeErr(stderr, err)
	return 1
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeOut(cmd *cobra.Command, app *App, v any) error {
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}
