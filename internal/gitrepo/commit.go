// Package gitrepo commits synced outline files when they live inside a git work tree.
package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// ErrInProgress is returned when the repository is mid-merge or mid-rebase.
var ErrInProgress = errors.New("git repo has an in-progress merge/rebase; resolve first")

// CommitFile stages path and commits it alone. Other staged or dirty files are left as they are.
// Returns committed=false when path is not inside a repository or has no changes.
func CommitFile(ctx context.Context, path string, message string) (committed bool, err error) {
	path, err = filepath.Abs(path)
	if err != nil {
		return false, err
	}
	dir := filepath.Dir(path)

	st, err := GetStatus(ctx, dir)
	if err != nil {
		return false, err
	}
	if !st.IsRepo {
		return false, nil
	}
	if st.Unmerged || st.InProgress {
		return false, ErrInProgress
	}

	rel, err := relToRoot(st.Root, path)
	if err != nil {
		return false, err
	}

	if _, err := runGit(ctx, st.Root, "add", "--", rel); err != nil {
		return false, err
	}

	// Commit only if the file itself has staged changes.
	out, err := runGit(ctx, st.Root, "diff", "--cached", "--name-only", "--", rel)
	if err != nil {
		return false, err
	}
	if strings.TrimSpace(out) == "" {
		return false, nil
	}

	msg := strings.TrimSpace(message)
	if msg == "" {
		msg = fmt.Sprintf("orgsync: update %s (%s)", filepath.Base(path), time.Now().UTC().Format(time.RFC3339))
	}

	if _, err := runGit(ctx, st.Root, "commit", "-m", msg, "--", rel); err != nil {
		return false, err
	}
	return true, nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return "", fmt.Errorf("git %s: %s", strings.Join(args, " "), msg)
	}
	return string(out), nil
}

func relToRoot(root, path string) (string, error) {
	// On macOS, temp dirs may involve symlinks like /var -> /private/var. Git often
	// reports a canonicalized repo root, so normalize both sides before Rel() to avoid
	// "path is outside repository" errors.
	if v, err := filepath.EvalSymlinks(root); err == nil {
		root = v
	}
	if v, err := filepath.EvalSymlinks(filepath.Dir(path)); err == nil {
		path = filepath.Join(v, filepath.Base(path))
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("%s is outside repository %s", path, root)
	}
	return filepath.ToSlash(rel), nil
}
