package github

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orgsync-cli/internal/provider"
	"orgsync-cli/internal/record"
)

const issuesJSON = `[
  {"number": 7, "title": "Second", "body": "b", "state": "CLOSED",
   "createdAt": "2024-01-01T10:00:00Z", "updatedAt": "2024-01-02T10:00:00Z", "closedAt": "2024-01-02T10:00:00Z",
   "author": {"login": "alice"}, "assignees": [{"login": "bob"}], "labels": [{"name": "bug"}],
   "milestone": {"title": "v1"}, "url": "https://github.com/acme/w/issues/7",
   "comments": [
     {"author": {"login": "carol"}, "body": "later", "createdAt": "2024-01-03T00:00:00Z"},
     {"author": null, "body": "earlier", "createdAt": "2024-01-02T00:00:00Z"}
   ]},
  {"number": 3, "title": "First", "body": "", "state": "OPEN",
   "createdAt": "2024-01-01T09:00:00Z", "updatedAt": "2024-01-01T09:00:00Z", "closedAt": null,
   "author": {"login": "dave"}, "assignees": [], "labels": [], "milestone": null, "url": "u3"}
]`

type call struct {
	args []string
}

func fakeRunner(calls *[]call, fn func(args []string) ([]byte, []byte, error)) Runner {
	return func(ctx context.Context, bin string, args ...string) ([]byte, []byte, error) {
		*calls = append(*calls, call{args: args})
		return fn(args)
	}
}

func TestFetch_MapsIssues(t *testing.T) {
	var calls []call
	c := New(WithRunner(fakeRunner(&calls, func(args []string) ([]byte, []byte, error) {
		if args[0] == "auth" {
			return nil, nil, nil
		}
		return []byte(issuesJSON), nil, nil
	})))

	recs, err := c.Fetch(context.Background(), "acme/w", provider.FetchOptions{State: "all", Limit: 50, IncludeComments: true})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, 3, recs[0].Number, "records are sorted by number")
	assert.Equal(t, record.StateOpen, recs[0].State)
	assert.Nil(t, recs[0].ClosedAt)

	second := recs[1]
	assert.Equal(t, record.StateClosed, second.State)
	require.NotNil(t, second.ClosedAt)
	assert.Equal(t, []string{"bob"}, second.Assignees)
	assert.Equal(t, []string{"bug"}, second.Labels)
	assert.Equal(t, "v1", second.Milestone)
	require.Len(t, second.Comments, 2)
	assert.Equal(t, "ghost", second.Comments[0].Author)
	assert.Equal(t, "earlier", second.Comments[0].Body)

	require.Len(t, calls, 2)
	list := strings.Join(calls[1].args, " ")
	assert.Contains(t, list, "issue list -R acme/w --state all")
	assert.Contains(t, list, "--limit 50")
	assert.Contains(t, list, ",comments")
}

func TestFetch_EmptyOutputIsEmptyResult(t *testing.T) {
	var calls []call
	c := New(WithRunner(fakeRunner(&calls, func(args []string) ([]byte, []byte, error) {
		return []byte("  \n"), nil, nil
	})))
	recs, err := c.Fetch(context.Background(), "acme/w", provider.FetchOptions{})
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
	assert.NotContains(t, strings.Join(calls[1].args, " "), "comments")
}

func TestFetch_ClassifiesErrors(t *testing.T) {
	cases := []struct {
		stderr string
		kind   provider.Kind
	}{
		{stderr: "You are not logged into any GitHub hosts. Run gh auth login to authenticate.", kind: provider.KindAuth},
		{stderr: "API rate limit exceeded for user", kind: provider.KindRateLimit},
		{stderr: "error connecting to api.github.com: could not resolve host", kind: provider.KindNetwork},
		{stderr: "GraphQL: Could not resolve to a Repository with the name 'acme/nope'. (repository)", kind: provider.KindNotFound},
		{stderr: "HTTP 404: Not Found", kind: provider.KindNotFound},
		{stderr: "something odd", kind: provider.KindAPI},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			var calls []call
			c := New(WithRunner(fakeRunner(&calls, func(args []string) ([]byte, []byte, error) {
				if args[0] == "auth" {
					return nil, nil, nil
				}
				return nil, []byte(tc.stderr), errors.New("exit status 1")
			})))
			_, err := c.Fetch(context.Background(), "acme/w", provider.FetchOptions{})
			var fe *provider.FetchError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.kind, fe.Kind)
			assert.Equal(t, "GitHub", fe.Provider)
		})
	}
}

func TestFetch_RetriesTimeouts(t *testing.T) {
	var calls []call
	attempts := 0
	c := New(
		WithRetries(2, time.Millisecond),
		WithRunner(fakeRunner(&calls, func(args []string) ([]byte, []byte, error) {
			if args[0] == "auth" {
				return nil, nil, nil
			}
			attempts++
			if attempts < 3 {
				return nil, nil, context.DeadlineExceeded
			}
			return []byte("[]"), nil, nil
		})),
	)
	recs, err := c.Fetch(context.Background(), "acme/w", provider.FetchOptions{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Equal(t, 3, attempts)
}

func TestFetch_TimeoutAfterRetries(t *testing.T) {
	var calls []call
	c := New(
		WithRetries(1, time.Millisecond),
		WithRunner(fakeRunner(&calls, func(args []string) ([]byte, []byte, error) {
			return nil, nil, context.DeadlineExceeded
		})),
	)
	err := c.Check(context.Background())
	assert.True(t, provider.IsKind(err, provider.KindTimeout), "got %v", err)
	assert.Len(t, calls, 2)
}

func TestCheck_MissingBinary(t *testing.T) {
	c := New(WithBinary("definitely-not-a-real-gh-binary"))
	err := c.Check(context.Background())
	assert.True(t, provider.IsKind(err, provider.KindCLIMissing), "got %v", err)
}
