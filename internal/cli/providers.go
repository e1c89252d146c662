package cli

import (
	"fmt"
	"strings"

	"orgsync-cli/internal/provider"
	"orgsync-cli/internal/provider/gitea"
	"orgsync-cli/internal/provider/github"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

type providerOptions struct {
	Name       string
	GiteaURL   string
	GiteaToken string
}

type providerFactory func(opt providerOptions, logger *log.Logger) (provider.Provider, error)

func defaultProvider(opt providerOptions, logger *log.Logger) (provider.Provider, error) {
	switch strings.ToLower(strings.TrimSpace(opt.Name)) {
	case "github", "gh":
		return github.New(github.WithLogger(logger)), nil
	case "gitea":
		return gitea.New(opt.GiteaURL,
			gitea.WithToken(opt.GiteaToken),
			gitea.WithLogger(logger),
		), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (want github or gitea)", opt.Name)
	}
}

// providerFlags binds the flags shared by sync and check. Values fall back to the
// environment here and to the config file in resolve.
type providerFlags struct {
	name       string
	giteaURL   string
	giteaToken string
}

func (f *providerFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "provider", "p", envOr("ORGSYNC_PROVIDER", ""), "Issue provider (github|gitea)")
	cmd.Flags().StringVar(&f.giteaURL, "gitea-url", envOr("GITEA_URL", ""), "Gitea server URL (e.g. https://gitea.example.com)")
	cmd.Flags().StringVar(&f.giteaToken, "gitea-token", envOr("GITEA_TOKEN", ""), "Gitea API token")
}

func (f *providerFlags) resolve(app *App) providerOptions {
	opt := providerOptions{Name: f.name, GiteaURL: f.giteaURL, GiteaToken: f.giteaToken}
	if opt.Name == "" {
		opt.Name = app.cfg.Provider
	}
	if opt.GiteaURL == "" {
		opt.GiteaURL = app.cfg.GiteaURL
	}
	return opt
}
