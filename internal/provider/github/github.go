// Package github fetches issues through the GitHub CLI (gh), which owns
// authentication.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"orgsync-cli/internal/provider"
	"orgsync-cli/internal/record"
)

const (
	name   = "GitHub"
	prefix = "GITHUB_"

	defaultRetries    = 3
	defaultRetryDelay = 2 * time.Second
)

var issueFields = []string{
	"number", "title", "body", "state", "createdAt", "updatedAt", "closedAt",
	"author", "assignees", "labels", "milestone", "url",
}

// Runner executes the CLI and returns stdout and stderr separately.
type Runner func(ctx context.Context, bin string, args ...string) (stdout, stderr []byte, err error)

type Client struct {
	bin        string
	run        Runner
	lookPath   func(string) (string, error)
	retries    int
	retryDelay time.Duration
	log        *log.Logger
}

type Option func(*Client)

// WithBinary overrides the gh executable.
func WithBinary(bin string) Option {
	return func(c *Client) { c.bin = bin }
}

// WithRunner replaces process execution, mainly for tests. It also skips the PATH
// lookup for the binary.
func WithRunner(r Runner) Option {
	return func(c *Client) {
		c.run = r
		c.lookPath = func(s string) (string, error) { return s, nil }
	}
}

// WithRetries sets how often a timed-out command is retried and the base delay
// between attempts.
func WithRetries(n int, delay time.Duration) Option {
	return func(c *Client) {
		c.retries = n
		c.retryDelay = delay
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		bin:        "gh",
		run:        execRunner,
		lookPath:   exec.LookPath,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
		log:        log.New(io.Discard),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string   { return name }
func (c *Client) Prefix() string { return prefix }

func execRunner(ctx context.Context, bin string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// Check verifies gh is installed and logged in.
func (c *Client) Check(ctx context.Context) error {
	if _, err := c.lookPath(c.bin); err != nil {
		return &provider.FetchError{
			Provider: name,
			Kind:     provider.KindCLIMissing,
			Msg:      "GitHub CLI (gh) not found",
			Hint:     "install it from https://cli.github.com/ and run `gh auth login`",
			Err:      err,
		}
	}
	_, err := c.gh(ctx, provider.DefaultTimeout, "auth", "status")
	return err
}

func (c *Client) Fetch(ctx context.Context, repo string, opt provider.FetchOptions) ([]record.Record, error) {
	opt = opt.WithDefaults()
	if err := c.Check(ctx); err != nil {
		return nil, err
	}

	fields := issueFields
	if opt.IncludeComments {
		fields = append(append([]string(nil), issueFields...), "comments")
	}
	args := []string{
		"issue", "list",
		"-R", repo,
		"--state", opt.State,
		"--json", strings.Join(fields, ","),
		"--limit", strconv.Itoa(opt.Limit),
	}
	c.log.Info("fetching issues", "repo", repo, "state", opt.State, "limit", opt.Limit)
	out, err := c.gh(ctx, opt.Timeout, args...)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return []record.Record{}, nil
	}

	var issues []ghIssue
	if err := json.Unmarshal(out, &issues); err != nil {
		return nil, &provider.FetchError{Provider: name, Kind: provider.KindAPI, Msg: "decode gh output", Err: err}
	}
	recs := make([]record.Record, 0, len(issues))
	for _, is := range issues {
		recs = append(recs, is.toRecord())
	}
	record.SortByNumber(recs)
	c.log.Debug("fetched issues", "repo", repo, "count", len(recs))
	return recs, nil
}

// gh runs one CLI command with a per-attempt timeout, retrying timeouts.
func (c *Client) gh(ctx context.Context, timeout time.Duration, args ...string) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		stdout, stderr, err := c.run(reqCtx, c.bin, args...)
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(reqCtx.Err(), context.DeadlineExceeded)
		cancel()
		if err == nil {
			return stdout, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !timedOut {
			return nil, classify(string(stderr), err)
		}
		if attempt >= c.retries {
			return nil, &provider.FetchError{
				Provider: name,
				Kind:     provider.KindTimeout,
				Msg:      fmt.Sprintf("gh %s timed out after %s", args[0], timeout),
				Hint:     "retry later or raise --timeout",
			}
		}
		c.log.Warn("gh command timed out, retrying", "attempt", attempt+1, "of", c.retries)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.retryDelay * time.Duration(attempt+1)):
		}
	}
}

// classify maps gh's stderr onto a FetchError kind.
func classify(stderr string, err error) error {
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = err.Error()
	}
	lower := strings.ToLower(msg)
	fe := &provider.FetchError{Provider: name, Kind: provider.KindAPI, Msg: msg}
	switch {
	case strings.Contains(lower, "not logged in") || strings.Contains(lower, "authentication") || strings.Contains(lower, "gh auth login"):
		fe.Kind = provider.KindAuth
		fe.Hint = "run `gh auth login`"
	case strings.Contains(lower, "rate limit"):
		fe.Kind = provider.KindRateLimit
		fe.Hint = "wait for the rate limit window to reset"
	case strings.Contains(lower, "could not resolve to a repository"):
		fe.Kind = provider.KindNotFound
		fe.Hint = "check the repository name and that you have access to it"
	case strings.Contains(lower, "could not resolve") || strings.Contains(lower, "network") || strings.Contains(lower, "connection"):
		fe.Kind = provider.KindNetwork
		fe.Hint = "check your network connection"
	case strings.Contains(lower, "not found") || strings.Contains(lower, "404"):
		fe.Kind = provider.KindNotFound
		fe.Status = 404
		fe.Hint = "check the repository name and that you have access to it"
	case strings.Contains(lower, "403"):
		fe.Status = 403
		fe.Hint = "your token may lack the repo scope"
	}
	return fe
}

type ghUser struct {
	Login string `json:"login"`
}

type ghIssue struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt"`
	Author    *ghUser    `json:"author"`
	Assignees []ghUser   `json:"assignees"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Milestone *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	URL      string `json:"url"`
	Comments []struct {
		Author    *ghUser   `json:"author"`
		Body      string    `json:"body"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"comments"`
}

func login(u *ghUser) string {
	if u == nil || u.Login == "" {
		return "ghost"
	}
	return u.Login
}

func (is ghIssue) toRecord() record.Record {
	r := record.Record{
		Number:    is.Number,
		Title:     is.Title,
		State:     record.ParseState(is.State),
		CreatedAt: is.CreatedAt,
		UpdatedAt: is.UpdatedAt,
		Author:    login(is.Author),
		URL:       is.URL,
		Body:      is.Body,
	}
	if is.ClosedAt != nil && !is.ClosedAt.IsZero() {
		t := *is.ClosedAt
		r.ClosedAt = &t
	}
	for _, a := range is.Assignees {
		r.Assignees = append(r.Assignees, a.Login)
	}
	for _, l := range is.Labels {
		r.Labels = append(r.Labels, l.Name)
	}
	if is.Milestone != nil {
		r.Milestone = is.Milestone.Title
	}
	for _, c := range is.Comments {
		r.Comments = append(r.Comments, record.Comment{Author: login(c.Author), CreatedAt: c.CreatedAt, Body: c.Body})
	}
	record.SortComments(r.Comments)
	return r
}
