// Package syncer runs one sync: read the Org file, fetch issues, convert their prose,
// reconcile, and write the result back atomically.
package syncer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/natefinch/atomic"

	"orgsync-cli/internal/gitrepo"
	"orgsync-cli/internal/journal"
	"orgsync-cli/internal/org"
	"orgsync-cli/internal/prose"
	"orgsync-cli/internal/provider"
	"orgsync-cli/internal/reconcile"
	"orgsync-cli/internal/record"
)

// ErrInvalidRepo is returned for repository identifiers not of the form owner/name.
var ErrInvalidRepo = errors.New("invalid repository")

var repoRe = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// ValidateRepo checks that repo looks like owner/name.
func ValidateRepo(repo string) error {
	if !repoRe.MatchString(repo) || strings.HasPrefix(repo, ".") || strings.Contains(repo, "/.") {
		return fmt.Errorf("%w %q: expected owner/name", ErrInvalidRepo, repo)
	}
	return nil
}

// ConversionPolicy decides what happens when an issue's prose cannot be converted.
type ConversionPolicy string

const (
	// PolicyFail aborts the whole run.
	PolicyFail ConversionPolicy = "fail"
	// PolicySkip drops the issue from the batch; its heading, if any, is left as is.
	PolicySkip ConversionPolicy = "skip"
)

func ParsePolicy(s string) (ConversionPolicy, error) {
	switch ConversionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyFail:
		return PolicyFail, nil
	case PolicySkip:
		return PolicySkip, nil
	}
	return "", fmt.Errorf("invalid conversion error policy %q (expected fail|skip)", s)
}

// ConversionError reports an issue whose body or comments could not be converted.
type ConversionError struct {
	Number int
	Err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert issue #%d: %v", e.Number, e.Err)
}

func (e *ConversionError) Unwrap() error { return e.Err }

func (e *ConversionError) Hint() string {
	return "rerun with --on-conversion-error skip to leave this issue out, or --prose plain"
}

// Recorder stores completed runs. *journal.Journal implements it.
type Recorder interface {
	Record(ctx context.Context, run journal.Run) (string, error)
}

// Committer commits path with message; committed=false means there was nothing to do.
type Committer func(ctx context.Context, path, message string) (committed bool, err error)

type Options struct {
	Repo  string
	Path  string
	Fetch provider.FetchOptions

	DryRun bool
	Backup bool
	Commit bool

	// LinkTag is ensured on synced headings; empty disables it.
	LinkTag     string
	OpenKeyword string
	DoneKeyword string

	OnConversionError ConversionPolicy
	// Title overrides the #+TITLE written when the file is created.
	Title string
}

type Result struct {
	Repo     string `json:"repo"`
	Path     string `json:"path"`
	Provider string `json:"provider"`
	Fetched  int    `json:"fetched"`

	reconcile.Summary

	Skipped   []int         `json:"skipped,omitempty"`
	Warnings  []org.Warning `json:"warnings,omitempty"`
	Created   bool          `json:"created"`
	Written   bool          `json:"written"`
	DryRun    bool          `json:"dryRun"`
	Backup    string        `json:"backup,omitempty"`
	Committed bool          `json:"committed"`
	RunID     string        `json:"runId,omitempty"`

	// Rendered holds the would-be file content of a dry run.
	Rendered string `json:"-"`
}

type Syncer struct {
	provider  provider.Provider
	converter prose.Converter
	journal   Recorder
	commit    Committer
	log       *log.Logger
	now       func() time.Time
}

type Option func(*Syncer)

func WithConverter(c prose.Converter) Option {
	return func(s *Syncer) {
		if c != nil {
			s.converter = c
		}
	}
}

func WithJournal(r Recorder) Option {
	return func(s *Syncer) { s.journal = r }
}

func WithCommitter(c Committer) Option {
	return func(s *Syncer) {
		if c != nil {
			s.commit = c
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(s *Syncer) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

func New(p provider.Provider, opts ...Option) *Syncer {
	s := &Syncer{
		provider:  p,
		converter: prose.NewMarkdown(),
		commit:    gitrepo.CommitFile,
		log:       log.New(io.Discard),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Run performs one sync. On any error before the write the file is left untouched.
func (s *Syncer) Run(ctx context.Context, opt Options) (*Result, error) {
	started := s.now()
	if err := ValidateRepo(opt.Repo); err != nil {
		return nil, err
	}
	if strings.TrimSpace(opt.Path) == "" {
		return nil, errors.New("missing output path")
	}
	policy := opt.OnConversionError
	if policy == "" {
		policy = PolicyFail
	}

	res := &Result{Repo: opt.Repo, Path: opt.Path, Provider: s.provider.Name(), DryRun: opt.DryRun}

	original, err := os.ReadFile(opt.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		res.Created = true
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", opt.Path, err)
	}

	parsed, err := org.ParseWithLint(original, s.provider.Prefix()+reconcile.KeyNumber)
	if err != nil {
		var me *org.MalformedDocumentError
		if errors.As(err, &me) {
			me.Path = opt.Path
		}
		return nil, err
	}
	doc := parsed.Doc
	res.Warnings = parsed.Warnings
	for _, w := range parsed.Warnings {
		s.log.Warn("lint", "path", opt.Path, "line", w.Line, "msg", w.Msg)
	}
	s.log.Debug("parsed document", "path", opt.Path, "headings", doc.Count())

	recs, err := s.provider.Fetch(ctx, opt.Repo, opt.Fetch)
	if err != nil {
		return nil, err
	}
	res.Fetched = len(recs)
	s.log.Info("fetched issues", "provider", s.provider.Name(), "repo", opt.Repo, "count", len(recs))

	recs, res.Skipped, err = s.convert(recs, policy)
	if err != nil {
		return nil, err
	}

	eng := reconcile.Engine{
		Prefix:         s.provider.Prefix(),
		LinkTag:        opt.LinkTag,
		OpenKeyword:    opt.OpenKeyword,
		DoneKeyword:    opt.DoneKeyword,
		IgnoreComments: !opt.Fetch.IncludeComments,
	}
	res.Summary = eng.Reconcile(doc, recs)
	s.log.Info("reconciled", "added", res.Added, "updated", res.Updated, "unchanged", res.Unchanged, "untouched", res.Untouched)

	if !res.Changed() && !res.Created {
		s.log.Info("no changes; file left as is", "path", opt.Path)
		s.record(ctx, res, started)
		return res, nil
	}

	s.stampHeader(doc, opt, res.Created)
	out := org.Render(doc)

	if opt.DryRun {
		res.Rendered = string(out)
		s.log.Info("dry run; not writing", "path", opt.Path, "bytes", len(out))
		return res, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opt.Backup && !res.Created {
		res.Backup = opt.Path + ".bak"
		if err := atomic.WriteFile(res.Backup, bytes.NewReader(original)); err != nil {
			return nil, fmt.Errorf("backup %s: %w", opt.Path, err)
		}
	}
	if dir := filepath.Dir(opt.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := atomic.WriteFile(opt.Path, bytes.NewReader(out)); err != nil {
		return nil, fmt.Errorf("write %s: %w", opt.Path, err)
	}
	res.Written = true
	s.log.Info("wrote file", "path", opt.Path, "bytes", len(out))

	if opt.Commit {
		committed, err := s.commit(ctx, opt.Path, commitMessage(opt.Repo, res.Summary))
		if err != nil {
			// The file is already written; a failed commit is reported, not fatal.
			s.log.Warn("git commit failed", "path", opt.Path, "err", err)
		}
		res.Committed = committed
	}

	s.record(ctx, res, started)
	return res, nil
}

// convert rewrites bodies and comment bodies through the converter.
func (s *Syncer) convert(recs []record.Record, policy ConversionPolicy) ([]record.Record, []int, error) {
	out := make([]record.Record, 0, len(recs))
	var skipped []int
	for _, rec := range recs {
		conv, err := s.convertOne(rec)
		if err != nil {
			cerr := &ConversionError{Number: rec.Number, Err: err}
			if policy == PolicyFail {
				return nil, nil, cerr
			}
			s.log.Warn("skipping issue", "number", rec.Number, "err", err)
			skipped = append(skipped, rec.Number)
			continue
		}
		out = append(out, conv)
	}
	return out, skipped, nil
}

func (s *Syncer) convertOne(rec record.Record) (record.Record, error) {
	body, err := s.converter.Convert(rec.Body)
	if err != nil {
		return rec, fmt.Errorf("body: %w", err)
	}
	rec.Body = body
	if len(rec.Comments) > 0 {
		cs := make([]record.Comment, len(rec.Comments))
		for i, c := range rec.Comments {
			b, err := s.converter.Convert(c.Body)
			if err != nil {
				return rec, fmt.Errorf("comment by @%s: %w", c.Author, err)
			}
			c.Body = b
			cs[i] = c
		}
		rec.Comments = cs
	}
	return rec, nil
}

func (s *Syncer) stampHeader(doc *org.Document, opt Options, created bool) {
	if created {
		title := strings.TrimSpace(opt.Title)
		if title == "" {
			title = fmt.Sprintf("%s Issues: %s", s.provider.Name(), opt.Repo)
		}
		if _, ok := doc.Keyword("TITLE"); !ok {
			doc.SetKeyword("TITLE", title)
		}
		if _, ok := doc.Keyword("DESCRIPTION"); !ok {
			doc.SetKeyword("DESCRIPTION", fmt.Sprintf("%s issues synced from %s", s.provider.Name(), opt.Repo))
		}
		if _, ok := doc.Keyword("STARTUP"); !ok {
			doc.SetKeyword("STARTUP", "overview")
		}
	}
	doc.SetKeyword("SYNC_REPO", opt.Repo)
	doc.SetKeyword("SYNC_SOURCE", s.provider.Name())
	doc.SetKeyword("SYNC_TIME", s.now().UTC().Format(time.RFC3339))
}

func commitMessage(repo string, sum reconcile.Summary) string {
	var added, updated []int
	for _, e := range sum.Entries {
		switch e.Action {
		case reconcile.ActionAdded:
			added = append(added, e.Number)
		case reconcile.ActionUpdated:
			updated = append(updated, e.Number)
		}
	}
	return gitrepo.SyncMessage(repo, added, updated)
}

// record writes the journal entry. Journal failures are logged, never returned.
func (s *Syncer) record(ctx context.Context, res *Result, started time.Time) {
	if s.journal == nil || res.DryRun {
		return
	}
	run := journal.Run{
		Repo:      res.Repo,
		Provider:  res.Provider,
		File:      res.Path,
		StartedAt: started,
		Duration:  s.now().Sub(started),
		Written:   res.Written,
		Added:     res.Added,
		Updated:   res.Updated,
		Unchanged: res.Unchanged,
		Untouched: res.Untouched,
		Skipped:   len(res.Skipped),
	}
	if abs, err := filepath.Abs(res.Path); err == nil {
		run.File = abs
	}
	for _, e := range res.Entries {
		run.Entries = append(run.Entries, journal.Entry{Number: e.Number, Title: e.Title, Action: string(e.Action), Changes: e.Changes})
	}
	id, err := s.journal.Record(ctx, run)
	if err != nil {
		s.log.Warn("journal write failed", "err", err)
		return
	}
	res.RunID = id
}
