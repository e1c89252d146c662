package gitrepo

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	repo := t.TempDir()
	run(t, repo, "git", "init")
	run(t, repo, "git", "config", "user.email", "test@example.com")
	run(t, repo, "git", "config", "user.name", "Test")
	writeFile(t, filepath.Join(repo, "README"), "base\n")
	run(t, repo, "git", "add", "README")
	run(t, repo, "git", "commit", "-m", "base")
	return repo
}

func TestCommitFile_NonRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "issues.org")
	writeFile(t, path, "* TODO x\n")
	committed, err := CommitFile(context.Background(), path, "msg")
	if err != nil {
		t.Fatalf("CommitFile: %v", err)
	}
	if committed {
		t.Fatalf("expected no commit outside a repository")
	}
}

func TestCommitFile_CommitsOnlyTheFile(t *testing.T) {
	repo := initRepo(t)
	ctx := context.Background()

	sub := filepath.Join(repo, "notes")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := filepath.Join(sub, "issues.org")
	writeFile(t, path, "* TODO first\n")
	writeFile(t, filepath.Join(repo, "other.txt"), "unrelated\n")

	committed, err := CommitFile(ctx, path, "orgsync: acme/w: add #1")
	if err != nil {
		t.Fatalf("CommitFile: %v", err)
	}
	if !committed {
		t.Fatalf("expected a commit")
	}
	if got := strings.TrimSpace(runOut(t, repo, "git", "log", "-1", "--format=%s")); got != "orgsync: acme/w: add #1" {
		t.Fatalf("unexpected subject: %q", got)
	}
	files := strings.TrimSpace(runOut(t, repo, "git", "show", "--name-only", "--format=", "HEAD"))
	if files != "notes/issues.org" {
		t.Fatalf("unexpected committed files: %q", files)
	}

	// No change: nothing to commit.
	committed, err = CommitFile(ctx, path, "again")
	if err != nil {
		t.Fatalf("CommitFile (unchanged): %v", err)
	}
	if committed {
		t.Fatalf("expected no commit for an unchanged file")
	}

	st, err := GetStatus(ctx, repo)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if !st.Dirty {
		t.Fatalf("expected unrelated file to stay untracked: %+v", st)
	}
}

func TestSyncMessage(t *testing.T) {
	tests := []struct {
		name    string
		added   []int
		updated []int
		want    string
	}{
		{name: "nothing", want: "orgsync: acme/w"},
		{name: "added", added: []int{3, 1}, want: "orgsync: acme/w: add #1, #3"},
		{name: "both", added: []int{2}, updated: []int{5}, want: "orgsync: acme/w: add #2; update #5"},
		{name: "many", updated: []int{1, 2, 3, 4, 5, 6, 7}, want: "orgsync: acme/w: update #1, #2, #3, #4, #5 (+2 more)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SyncMessage("acme/w", tt.added, tt.updated); got != tt.want {
				t.Fatalf("SyncMessage: got %q want %q", got, tt.want)
			}
		})
	}
}
