// Package provider defines the boundary between trackers and the sync pipeline.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"orgsync-cli/internal/record"
)

// Provider fetches issues from one tracker.
type Provider interface {
	// Name is the human-readable tracker name, e.g. "GitHub".
	Name() string
	// Prefix namespaces the managed drawer keys, e.g. "GITHUB_".
	Prefix() string
	// Check verifies the tracker is reachable and credentials work.
	Check(ctx context.Context) error
	// Fetch returns every matching issue or an error; never a partial set. An empty
	// result with a nil error means the tracker has no matching issues.
	Fetch(ctx context.Context, repo string, opt FetchOptions) ([]record.Record, error)
}

type FetchOptions struct {
	// State is open, closed or all.
	State string
	// Limit caps the number of issues; zero means the provider default.
	Limit           int
	IncludeComments bool
	// Concurrency bounds parallel per-issue requests.
	Concurrency int
	// Timeout bounds each request.
	Timeout time.Duration
}

const (
	DefaultLimit       = 100
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

func (o FetchOptions) WithDefaults() FetchOptions {
	if o.State == "" {
		o.State = "open"
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	return o
}

// ValidState reports whether s is an accepted state filter.
func ValidState(s string) bool {
	switch s {
	case "open", "closed", "all":
		return true
	}
	return false
}

type Kind string

const (
	KindAuth       Kind = "auth"
	KindNetwork    Kind = "network"
	KindAPI        Kind = "api"
	KindRateLimit  Kind = "rate_limit"
	KindTimeout    Kind = "timeout"
	KindNotFound   Kind = "not_found"
	KindCLIMissing Kind = "cli_missing"
)

// FetchError is the only error type providers return for tracker failures.
type FetchError struct {
	Provider string
	Kind     Kind
	Status   int
	Msg      string
	Hint     string
	Err      error
}

func (e *FetchError) Error() string {
	s := fmt.Sprintf("%s: %s", e.Provider, e.Msg)
	if e.Status != 0 {
		s = fmt.Sprintf("%s (status %d)", s, e.Status)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsKind reports whether err is a FetchError of kind k.
func IsKind(err error, k Kind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == k
}
