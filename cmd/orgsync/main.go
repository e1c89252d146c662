package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"orgsync-cli/internal/cli"
	"orgsync-cli/internal/syncer"
)

// rewriteDirectSyncArgs makes `orgsync <owner/repo>` work like `orgsync sync <owner/repo>`.
//
// Cobra treats the first non-flag token as a subcommand, so we rewrite argv before parsing.
// Users often pass flags first (e.g. `orgsync -o todo.org acme/widgets`), so we look for
// the first positional token, not just argv[1]. "sync" is inserted right after the
// program name so every flag lands on the sync command.
func rewriteDirectSyncArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	// Flags whose value is a separate token. Unknown flags are skipped without their
	// value so a repository is never consumed as a flag value by accident.
	valueFlags := map[string]bool{
		"--config":              true,
		"--format":              true,
		"--log-level":           true,
		"-o":                    true,
		"--output":              true,
		"-s":                    true,
		"--state":               true,
		"-l":                    true,
		"--limit":               true,
		"-p":                    true,
		"--provider":            true,
		"--timeout":             true,
		"--concurrency":         true,
		"--gitea-url":           true,
		"--gitea-token":         true,
		"--prose":               true,
		"--on-conversion-error": true,
	}

	insertSync := func() []string {
		out := make([]string, 0, len(argv)+1)
		out = append(out, argv[0], "sync")
		return append(out, argv[1:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && syncer.ValidateRepo(argv[i+1]) == nil {
				return insertSync()
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if !strings.Contains(a, "=") && valueFlags[a] {
				i++
			}
			continue
		}

		// First positional token.
		if syncer.ValidateRepo(a) == nil {
			return insertSync()
		}
		return argv
	}
	return argv
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	args := rewriteDirectSyncArgs(os.Args)[1:]
	code := cli.Execute(ctx, args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
