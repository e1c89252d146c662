// Package gitea fetches issues from a Gitea (or Forgejo) instance over its REST API.
package gitea

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"orgsync-cli/internal/provider"
	"orgsync-cli/internal/record"
)

const (
	name   = "Gitea"
	prefix = "GITEA_"

	pageSize = 50
)

// Compile-time interface check.
var _ provider.Provider = (*Client)(nil)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *log.Logger
}

type Option func(*Client)

// WithToken sets the API token sent as `Authorization: token <t>`.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New returns a client for the instance at baseURL, e.g. https://gitea.example.com.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{},
		log:     log.New(io.Discard),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Name() string   { return name }
func (c *Client) Prefix() string { return prefix }

// Check verifies the instance is reachable and the token is accepted.
func (c *Client) Check(ctx context.Context) error {
	if c.baseURL == "" {
		return &provider.FetchError{Provider: name, Kind: provider.KindNetwork, Msg: "no Gitea URL configured", Hint: "pass --gitea-url or set GITEA_URL"}
	}
	ctx, cancel := context.WithTimeout(ctx, provider.DefaultTimeout)
	defer cancel()
	err := c.get(ctx, "/user", nil, nil)
	if provider.IsKind(err, provider.KindNotFound) {
		// Older instances lack /user; fall back to an unauthenticated probe.
		return c.get(ctx, "/version", nil, nil)
	}
	return err
}

func (c *Client) Fetch(ctx context.Context, repo string, opt provider.FetchOptions) ([]record.Record, error) {
	opt = opt.WithDefaults()
	if c.baseURL == "" {
		return nil, &provider.FetchError{Provider: name, Kind: provider.KindNetwork, Msg: "no Gitea URL configured", Hint: "pass --gitea-url or set GITEA_URL"}
	}
	c.log.Info("fetching issues", "repo", repo, "state", opt.State, "limit", opt.Limit)

	var issues []giteaIssue
	size := min(opt.Limit, pageSize)
	for page := 1; len(issues) < opt.Limit; page++ {
		q := url.Values{}
		q.Set("state", opt.State)
		q.Set("type", "issues")
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(size))

		var batch []giteaIssue
		reqCtx, cancel := context.WithTimeout(ctx, opt.Timeout)
		err := c.get(reqCtx, "/repos/"+repo+"/issues", q, &batch)
		cancel()
		if err != nil {
			return nil, err
		}
		issues = append(issues, batch...)
		if len(batch) < size {
			break
		}
	}
	if len(issues) > opt.Limit {
		issues = issues[:opt.Limit]
	}

	recs := make([]record.Record, len(issues))
	for i, is := range issues {
		recs[i] = is.toRecord()
	}

	if opt.IncludeComments && len(recs) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opt.Concurrency)
		for i := range recs {
			g.Go(func() error {
				reqCtx, cancel := context.WithTimeout(gctx, opt.Timeout)
				defer cancel()
				var cs []giteaComment
				path := fmt.Sprintf("/repos/%s/issues/%d/comments", repo, recs[i].Number)
				if err := c.get(reqCtx, path, nil, &cs); err != nil {
					return err
				}
				comments := make([]record.Comment, 0, len(cs))
				for _, cm := range cs {
					comments = append(comments, record.Comment{Author: cm.User.login(), CreatedAt: cm.CreatedAt, Body: cm.Body})
				}
				record.SortComments(comments)
				recs[i].Comments = comments
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	record.SortByNumber(recs)
	c.log.Debug("fetched issues", "repo", repo, "count", len(recs))
	return recs, nil
}

// get performs one GET against /api/v1 and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + "/api/v1" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &provider.FetchError{Provider: name, Kind: provider.KindAPI, Msg: "create request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "token "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return transportError(ctx, err)
	}
	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, path, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &provider.FetchError{Provider: name, Kind: provider.KindAPI, Msg: "decode " + path, Err: err}
	}
	return nil
}

func transportError(ctx context.Context, err error) error {
	var ne net.Error
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &provider.FetchError{Provider: name, Kind: provider.KindTimeout, Msg: "request timed out", Hint: "retry later or raise --timeout", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &provider.FetchError{Provider: name, Kind: provider.KindNetwork, Msg: "request failed", Hint: "check --gitea-url and your network connection", Err: err}
}

func statusError(status int, path string, body []byte) error {
	text := strings.TrimSpace(string(body))
	var apiErr struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Message != "" {
		text = apiErr.Message
	}
	fe := &provider.FetchError{Provider: name, Kind: provider.KindAPI, Status: status, Msg: text}
	switch {
	case status == http.StatusUnauthorized:
		fe.Kind = provider.KindAuth
		fe.Msg = "invalid or expired API token"
		fe.Hint = "pass --gitea-token or set GITEA_TOKEN"
	case status == http.StatusForbidden && strings.Contains(strings.ToLower(text), "rate limit"):
		fe.Kind = provider.KindRateLimit
		fe.Hint = "wait for the rate limit window to reset"
	case status == http.StatusForbidden:
		fe.Kind = provider.KindAuth
		fe.Msg = "access forbidden: " + text
		fe.Hint = "check the token's repository permissions"
	case status == http.StatusTooManyRequests:
		fe.Kind = provider.KindRateLimit
		fe.Hint = "wait for the rate limit window to reset"
	case status == http.StatusNotFound:
		fe.Kind = provider.KindNotFound
		fe.Msg = "not found: " + path
		fe.Hint = "check the repository name and --gitea-url"
	}
	return fe
}

type giteaUser struct {
	Login string `json:"login"`
}

func (u *giteaUser) login() string {
	if u == nil || u.Login == "" {
		return "ghost"
	}
	return u.Login
}

type giteaIssue struct {
	Number    int          `json:"number"`
	Title     string       `json:"title"`
	Body      string       `json:"body"`
	State     string       `json:"state"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	ClosedAt  *time.Time   `json:"closed_at"`
	User      *giteaUser   `json:"user"`
	Assignees []*giteaUser `json:"assignees"`
	Labels    []struct {
		Name string `json:"name"`
	} `json:"labels"`
	Milestone *struct {
		Title string `json:"title"`
	} `json:"milestone"`
	HTMLURL string `json:"html_url"`
}

type giteaComment struct {
	User      *giteaUser `json:"user"`
	Body      string     `json:"body"`
	CreatedAt time.Time  `json:"created_at"`
}

func (is giteaIssue) toRecord() record.Record {
	r := record.Record{
		Number:    is.Number,
		Title:     is.Title,
		State:     record.ParseState(is.State),
		CreatedAt: is.CreatedAt,
		UpdatedAt: is.UpdatedAt,
		Author:    is.User.login(),
		URL:       is.HTMLURL,
		Body:      is.Body,
	}
	if is.ClosedAt != nil && !is.ClosedAt.IsZero() {
		t := *is.ClosedAt
		r.ClosedAt = &t
	}
	for _, a := range is.Assignees {
		r.Assignees = append(r.Assignees, a.login())
	}
	for _, l := range is.Labels {
		r.Labels = append(r.Labels, l.Name)
	}
	if is.Milestone != nil {
		r.Milestone = is.Milestone.Title
	}
	return r
}
