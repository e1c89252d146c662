package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"orgsync-cli/internal/config"
	"orgsync-cli/internal/journal"
	"orgsync-cli/internal/prose"
	"orgsync-cli/internal/provider"
	"orgsync-cli/internal/syncer"

	"github.com/spf13/cobra"
)

const defaultOutput = "issues.org"

func newSyncCmd(app *App) *cobra.Command {
	var (
		pf                providerFlags
		output            string
		state             string
		limit             int
		noComments        bool
		dryRun            bool
		printDoc          bool
		noBackup          bool
		noLinkTag         bool
		timeout           time.Duration
		concurrency       int
		proseName         string
		onConversionError string
		commit            bool
	)

	cmd := &cobra.Command{
		Use:   "sync <owner/repo>",
		Short: "Fetch issues and merge them into an Org file",
		Long: strings.TrimSpace(`
Fetch issues from GitHub (via the gh CLI) or Gitea and merge them into an Org file.

Headings are matched on their issue number property. Tracker-owned fields are
refreshed; everything you added by hand (notes, sub-headings, extra tags and
properties) is kept. Issues no longer returned by the tracker are left alone.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			repo := strings.TrimSpace(args[0])

			popt := pf.resolve(app)
			p, err := app.newProvider(popt, app.log)
			if err != nil {
				return err
			}

			state = pick(cmd, "state", state, cfg.State)
			if !provider.ValidState(state) {
				return fmt.Errorf("invalid --state %q (want open, closed or all)", state)
			}
			policy, err := syncer.ParsePolicy(pick(cmd, "on-conversion-error", onConversionError, cfg.OnConversionError))
			if err != nil {
				return err
			}
			conv, err := prose.New(pick(cmd, "prose", proseName, cfg.Prose))
			if err != nil {
				return err
			}

			linkTag := cfg.LinkTag
			if noLinkTag {
				linkTag = ""
			}
			out := pick(cmd, "output", output, cfg.Output)
			if out == "" {
				out = defaultOutput
			}

			opt := syncer.Options{
				Repo: repo,
				Path: out,
				Fetch: provider.FetchOptions{
					State:           state,
					Limit:           pick(cmd, "limit", limit, cfg.Limit),
					IncludeComments: cfg.CommentsEnabled() && !noComments,
					Concurrency:     pick(cmd, "concurrency", concurrency, cfg.Concurrency),
					Timeout:         pick(cmd, "timeout", timeout, cfg.Timeout),
				}.WithDefaults(),
				DryRun:            dryRun,
				Backup:            cfg.BackupEnabled() && !noBackup,
				Commit:            cfg.Commit || commit,
				LinkTag:           linkTag,
				OpenKeyword:       cfg.Keywords.Open,
				DoneKeyword:       cfg.Keywords.Done,
				OnConversionError: policy,
				Title:             cfg.Title,
			}

			sopts := []syncer.Option{
				syncer.WithConverter(conv),
				syncer.WithLogger(app.log),
			}
			if !dryRun {
				if j := openJournal(cmd, app); j != nil {
					defer j.Close()
					sopts = append(sopts, syncer.WithJournal(j))
				}
			}

			app.log.Debug("sync", "repo", repo, "provider", p.Name(), "output", out, "state", state, "limit", opt.Fetch.Limit)
			res, err := syncer.New(p, sopts...).Run(cmd.Context(), opt)
			if err != nil {
				return err
			}
			if dryRun && printDoc {
				_, err := io.WriteString(cmd.OutOrStdout(), res.Rendered)
				return err
			}
			return writeOut(cmd, app, res)
		},
	}

	pf.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Org file to sync (default "+defaultOutput+")")
	cmd.Flags().StringVarP(&state, "state", "s", "", "Issue state filter (open|closed|all)")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Maximum number of issues to fetch")
	cmd.Flags().BoolVar(&noComments, "no-comments", false, "Do not fetch or update issue comments")
	cmd.Flags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would change without writing")
	cmd.Flags().BoolVar(&printDoc, "print", false, "With --dry-run, print the resulting Org file instead of the summary")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Do not keep a .bak copy of the previous file")
	cmd.Flags().BoolVar(&noLinkTag, "no-link-tag", false, "Do not add the LINK tag to synced headings")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default 30s)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Parallel comment requests (default 4)")
	cmd.Flags().StringVar(&proseName, "prose", "", "Body conversion (markdown|plain)")
	cmd.Flags().StringVar(&onConversionError, "on-conversion-error", "", "When a body cannot be converted (fail|skip)")
	cmd.Flags().BoolVar(&commit, "commit", false, "Commit the updated file when it lives in a git repository")
	return cmd
}

// pick returns the flag value when the flag was set on the command line, else the
// configured value.
func pick[T any](cmd *cobra.Command, name string, flagVal, cfgVal T) T {
	if cmd.Flags().Changed(name) {
		return flagVal
	}
	return cfgVal
}

// openJournal opens the sync history. History is best effort: failures are logged and
// the sync continues without it.
func openJournal(cmd *cobra.Command, app *App) *journal.Journal {
	path, err := config.JournalPath()
	if err != nil {
		app.log.Warn("sync history disabled", "err", err)
		return nil
	}
	j, err := journal.Open(cmd.Context(), path, app.log)
	if err != nil {
		app.log.Warn("sync history disabled", "path", path, "err", err)
		return nil
	}
	return j
}
