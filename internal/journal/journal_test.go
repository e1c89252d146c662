package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(context.Background(), filepath.Join(t.TempDir(), "sub", "history.sqlite"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndGet(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)

	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	id, err := j.Record(ctx, Run{
		Repo:      "acme/w",
		Provider:  "GitHub",
		File:      "issues.org",
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Written:   true,
		Added:     1,
		Updated:   1,
		Entries: []Entry{
			{Number: 1, Title: "New", Action: "added"},
			{Number: 2, Title: "Changed", Action: "updated", Changes: []string{"title", "tags"}},
		},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if len(id) != 36 {
		t.Fatalf("expected uuid run id, got %q", id)
	}

	run, err := j.Get(ctx, id[:8])
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.ID != id || run.Repo != "acme/w" || !run.Written || run.DryRun {
		t.Fatalf("unexpected run: %+v", run)
	}
	if !run.StartedAt.Equal(started) || run.Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected timing: %v %v", run.StartedAt, run.Duration)
	}
	if len(run.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(run.Entries))
	}
	if run.Entries[0].Changes != nil {
		t.Fatalf("expected no changes for added entry: %+v", run.Entries[0])
	}
	if got := run.Entries[1].Changes; len(got) != 2 || got[0] != "title" || got[1] != "tags" {
		t.Fatalf("unexpected changes: %v", got)
	}

	if _, err := j.Get(ctx, "does-not-exist"); err == nil {
		t.Fatalf("expected not found error")
	}
}

func TestRecent(t *testing.T) {
	ctx := context.Background()
	j := openTemp(t)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, repo := range []string{"acme/a", "acme/b", "acme/a"} {
		if _, err := j.Record(ctx, Run{Repo: repo, Provider: "GitHub", File: "x.org", StartedAt: base.Add(time.Duration(i) * time.Hour), Added: i}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := j.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 || all[0].Added != 2 || all[2].Added != 0 {
		t.Fatalf("expected newest first: %+v", all)
	}

	onlyA, err := j.Recent(ctx, "acme/a", 1)
	if err != nil {
		t.Fatalf("Recent filtered: %v", err)
	}
	if len(onlyA) != 1 || onlyA[0].Repo != "acme/a" || onlyA[0].Added != 2 {
		t.Fatalf("unexpected filtered runs: %+v", onlyA)
	}

	none, err := j.Recent(ctx, "acme/none", 5)
	if err != nil {
		t.Fatalf("Recent none: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", none)
	}
}
