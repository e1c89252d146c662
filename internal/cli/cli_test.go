package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"orgsync-cli/internal/provider"
	"orgsync-cli/internal/record"

	"github.com/charmbracelet/log"
)

type fakeProvider struct {
	recs     []record.Record
	err      error
	checkErr error
	lastOpt  provider.FetchOptions
	lastRepo string
}

func (f *fakeProvider) Name() string                    { return "GitHub" }
func (f *fakeProvider) Prefix() string                  { return "GITHUB_" }
func (f *fakeProvider) Check(ctx context.Context) error { return f.checkErr }
func (f *fakeProvider) Fetch(ctx context.Context, repo string, opt provider.FetchOptions) ([]record.Record, error) {
	f.lastRepo, f.lastOpt = repo, opt
	if f.err != nil {
		return nil, f.err
	}
	return append([]record.Record(nil), f.recs...), nil
}

func sampleRecords() []record.Record {
	created := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	return []record.Record{
		{Number: 1, Title: "Crash on start", State: record.StateOpen, CreatedAt: created, UpdatedAt: created,
			Author: "alice", URL: "https://github.com/acme/widgets/issues/1", Body: "It **crashes**.", Labels: []string{"bug"}},
		{Number: 2, Title: "Docs", State: record.StateOpen, CreatedAt: created, UpdatedAt: created,
			Author: "bob", URL: "https://github.com/acme/widgets/issues/2"},
	}
}

// isolate points config and history at temp dirs and runs the test from an empty
// working directory.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("ORGSYNC_CONFIG_DIR", t.TempDir())
	t.Setenv("ORGSYNC_PROVIDER", "")
	t.Setenv("ORGSYNC_FORMAT", "")
	t.Setenv("GITEA_URL", "")
	t.Setenv("GITEA_TOKEN", "")
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, fake *fakeProvider, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	app := &App{newProvider: func(opt providerOptions, logger *log.Logger) (provider.Provider, error) {
		if fake == nil {
			return defaultProvider(opt, logger)
		}
		return fake, nil
	}}
	var outBuf, errBuf bytes.Buffer
	code = execute(context.Background(), newRootCmd(app), args, &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestSync_WritesFileAndRecordsHistory(t *testing.T) {
	dir := isolate(t)
	fake := &fakeProvider{recs: sampleRecords()}

	stdout, stderr, code := runCLI(t, fake, "sync", "acme/widgets", "--format", "json")
	if code != 0 {
		t.Fatalf("sync failed (%d): %s", code, stderr)
	}
	var res map[string]any
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatalf("unmarshal: %v\n%s", err, stdout)
	}
	if res["added"].(float64) != 2 || res["written"] != true || res["created"] != true {
		t.Fatalf("unexpected result: %v", res)
	}
	if fake.lastRepo != "acme/widgets" || fake.lastOpt.State != "open" || fake.lastOpt.Limit != 100 || !fake.lastOpt.IncludeComments {
		t.Fatalf("unexpected fetch: %q %+v", fake.lastRepo, fake.lastOpt)
	}

	b, err := os.ReadFile(filepath.Join(dir, "issues.org"))
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	for _, want := range []string{"#+TITLE: GitHub Issues: acme/widgets", "* TODO Crash on start", "It *crashes*."} {
		if !strings.Contains(string(b), want) {
			t.Fatalf("expected %q in output:\n%s", want, b)
		}
	}

	stdout, stderr, code = runCLI(t, fake, "history", "--format", "json")
	if code != 0 {
		t.Fatalf("history failed: %s", stderr)
	}
	var runs []map[string]any
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("unmarshal history: %v\n%s", err, stdout)
	}
	if len(runs) != 1 || runs[0]["repo"] != "acme/widgets" || runs[0]["added"].(float64) != 2 {
		t.Fatalf("unexpected history: %v", runs)
	}

	id := runs[0]["id"].(string)
	stdout, _, code = runCLI(t, fake, "history", id[:8])
	if code != 0 || !strings.Contains(stdout, "#1 Crash on start") {
		t.Fatalf("history detail (%d):\n%s", code, stdout)
	}
}

func TestSync_DryRunPrint(t *testing.T) {
	dir := isolate(t)
	fake := &fakeProvider{recs: sampleRecords()}

	stdout, stderr, code := runCLI(t, fake, "sync", "acme/widgets", "-n", "--print", "--no-link-tag")
	if code != 0 {
		t.Fatalf("dry run failed: %s", stderr)
	}
	if !strings.Contains(stdout, "* TODO Crash on start :bug:\n") {
		t.Fatalf("expected rendered org on stdout:\n%s", stdout)
	}
	if _, err := os.Stat(filepath.Join(dir, "issues.org")); !os.IsNotExist(err) {
		t.Fatalf("dry run must not write, stat err = %v", err)
	}
}

func TestSync_ConfigFileAndFlagPrecedence(t *testing.T) {
	dir := isolate(t)
	cfg := "state: closed\noutput: from-config.org\nlimit: 7\ncomments: false\n"
	if err := os.WriteFile(filepath.Join(dir, ".orgsync.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	fake := &fakeProvider{recs: sampleRecords()}

	if _, stderr, code := runCLI(t, fake, "sync", "acme/widgets"); code != 0 {
		t.Fatalf("sync failed: %s", stderr)
	}
	if fake.lastOpt.State != "closed" || fake.lastOpt.Limit != 7 || fake.lastOpt.IncludeComments {
		t.Fatalf("config not applied: %+v", fake.lastOpt)
	}
	if _, err := os.Stat(filepath.Join(dir, "from-config.org")); err != nil {
		t.Fatalf("expected config output path: %v", err)
	}

	if _, stderr, code := runCLI(t, fake, "sync", "acme/widgets", "-s", "all", "-l", "3", "-o", "flag.org"); code != 0 {
		t.Fatalf("sync failed: %s", stderr)
	}
	if fake.lastOpt.State != "all" || fake.lastOpt.Limit != 3 {
		t.Fatalf("flags should win: %+v", fake.lastOpt)
	}
	if _, err := os.Stat(filepath.Join(dir, "flag.org")); err != nil {
		t.Fatalf("expected flag output path: %v", err)
	}
}

func TestSync_Errors(t *testing.T) {
	isolate(t)

	cases := []struct {
		name string
		fake *fakeProvider
		args []string
		want []string
	}{
		{
			name: "invalid repo",
			fake: &fakeProvider{},
			args: []string{"sync", "not-a-repo"},
			want: []string{"Error: ", "not-a-repo"},
		},
		{
			name: "fetch error carries hint",
			fake: &fakeProvider{err: &provider.FetchError{Provider: "GitHub", Kind: provider.KindAuth, Msg: "not logged in", Hint: "run gh auth login"}},
			args: []string{"sync", "acme/widgets"},
			want: []string{"Error: GitHub: not logged in", "Hint: run gh auth login"},
		},
		{
			name: "bad state",
			fake: &fakeProvider{},
			args: []string{"sync", "acme/widgets", "-s", "merged"},
			want: []string{`invalid --state "merged"`},
		},
		{
			name: "unknown provider",
			fake: nil,
			args: []string{"sync", "acme/widgets", "-p", "jira"},
			want: []string{`unknown provider "jira"`},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, stderr, code := runCLI(t, tc.fake, tc.args...)
			if code != 1 {
				t.Fatalf("expected exit 1, got %d", code)
			}
			for _, w := range tc.want {
				if !strings.Contains(stderr, w) {
					t.Fatalf("expected %q in stderr:\n%s", w, stderr)
				}
			}
		})
	}
}

func TestSync_MalformedFileIsUntouched(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "issues.org")
	bad := "* Heading\n:PROPERTIES:\n:GITHUB_NUMBER: 1\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, stderr, code := runCLI(t, &fakeProvider{recs: sampleRecords()}, "sync", "acme/widgets")
	if code != 1 || !strings.Contains(stderr, "issues.org:2") || !strings.Contains(stderr, "Hint: ") {
		t.Fatalf("expected malformed document error (%d):\n%s", code, stderr)
	}
	b, _ := os.ReadFile(path)
	if string(b) != bad {
		t.Fatalf("file was modified:\n%s", b)
	}
}

func TestCheck(t *testing.T) {
	isolate(t)
	stdout, _, code := runCLI(t, &fakeProvider{}, "check")
	if code != 0 || !strings.Contains(stdout, "GitHub is reachable") {
		t.Fatalf("check (%d): %s", code, stdout)
	}

	fake := &fakeProvider{checkErr: &provider.FetchError{Provider: "GitHub", Kind: provider.KindCLIMissing, Msg: "gh not found", Hint: "install the GitHub CLI"}}
	_, stderr, code := runCLI(t, fake, "check")
	if code != 1 || !strings.Contains(stderr, "Hint: install the GitHub CLI") {
		t.Fatalf("check failure (%d): %s", code, stderr)
	}
}

func TestParse(t *testing.T) {
	dir := isolate(t)
	doc := "#+TITLE: T\n* TODO One :bug:\n:PROPERTIES:\n:GITHUB_NUMBER: 4\n:END:\n** Note\n* Two\n:PROPERTIES:\n:GITHUB_NUMBER: 4\n:END:\n"
	path := filepath.Join(dir, "issues.org")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	stdout, stderr, code := runCLI(t, nil, "parse", path, "--no-color")
	if code != 0 {
		t.Fatalf("parse failed: %s", stderr)
	}
	for _, want := range []string{"One", "Note", "TODO", "bug", "3 headings", "duplicate GITHUB_NUMBER"} {
		if !strings.Contains(stdout, want) {
			t.Fatalf("expected %q in:\n%s", want, stdout)
		}
	}

	stdout, _, code = runCLI(t, nil, "parse", path, "--format", "json")
	var rep map[string]any
	if code != 0 || json.Unmarshal([]byte(stdout), &rep) != nil {
		t.Fatalf("parse json (%d):\n%s", code, stdout)
	}
	if rep["headings"].(float64) != 3 || len(rep["warnings"].([]any)) != 1 {
		t.Fatalf("unexpected report: %v", rep)
	}

	_, stderr, code = runCLI(t, nil, "parse", filepath.Join(dir, "missing.org"))
	if code != 1 || !strings.Contains(stderr, "file not found") || !strings.Contains(stderr, "Hint: ") {
		t.Fatalf("missing file (%d): %s", code, stderr)
	}
}

func TestExport(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "issues.org")
	if err := os.WriteFile(path, []byte("#+TITLE: Issues\n* TODO One\nBody.\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	stdout, _, code := runCLI(t, nil, "export", path)
	if code != 0 || stdout != "# Issues\n\n## **TODO** One\n\nBody.\n" {
		t.Fatalf("export stdout (%d): %q", code, stdout)
	}

	to := filepath.Join(dir, "out", "issues.md")
	if _, stderr, code := runCLI(t, nil, "export", path, "--to", to); code != 0 {
		t.Fatalf("export --to: %s", stderr)
	}
	if _, err := os.Stat(to); err != nil {
		t.Fatalf("expected markdown file: %v", err)
	}
	if _, stderr, code := runCLI(t, nil, "export", path, "--to", to); code != 1 || !strings.Contains(stderr, "--overwrite") {
		t.Fatalf("expected overwrite refusal (%d): %s", code, stderr)
	}
}

func TestConfigInitAndShow(t *testing.T) {
	dir := isolate(t)

	if _, stderr, code := runCLI(t, nil, "config", "init"); code != 0 {
		t.Fatalf("config init: %s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, ".orgsync.yaml")); err != nil {
		t.Fatalf("expected config file: %v", err)
	}
	if _, _, code := runCLI(t, nil, "config", "init"); code != 1 {
		t.Fatalf("expected refusal without --force")
	}
	if _, stderr, code := runCLI(t, nil, "config", "init", "--force"); code != 0 {
		t.Fatalf("config init --force: %s", stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, ".orgsync.yaml.bak")); err != nil {
		t.Fatalf("expected backup: %v", err)
	}

	stdout, _, code := runCLI(t, nil, "config", "show")
	if code != 0 || !strings.Contains(stdout, "provider: github") || !strings.Contains(stdout, "timeout: 30s") {
		t.Fatalf("config show (%d):\n%s", code, stdout)
	}
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	isolate(t)
	_, stderr, code := runCLI(t, nil, "parse", "x.org", "--format", "edn")
	if code != 1 || !strings.Contains(stderr, "unknown format: edn") {
		t.Fatalf("expected format error (%d): %s", code, stderr)
	}
}

func TestDocs(t *testing.T) {
	isolate(t)
	stdout, _, code := runCLI(t, nil, "docs", "--format", "json")
	if code != 0 || !strings.Contains(stdout, `"format"`) {
		t.Fatalf("docs list (%d): %s", code, stdout)
	}
	stdout, _, code = runCLI(t, nil, "docs", "config", "--raw")
	if code != 0 || !strings.HasPrefix(stdout, "# Configuration") {
		t.Fatalf("docs raw (%d): %s", code, stdout)
	}
	_, stderr, code := runCLI(t, nil, "docs", "nope")
	if code != 1 || !strings.Contains(stderr, "unknown docs topic") {
		t.Fatalf("docs unknown (%d): %s", code, stderr)
	}
}
