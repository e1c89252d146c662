// Package record defines the tracker-neutral issue shape that providers produce and
// the reconciliation engine consumes.
package record

import (
	"sort"
	"time"
)

type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
)

// Record is one issue as fetched from a tracker. Body and comment bodies are already
// converted to Org markup by the time a Record reaches the engine.
type Record struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	State     State      `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	ClosedAt  *time.Time `json:"closedAt,omitempty"`
	Author    string     `json:"author,omitempty"`
	Assignees []string   `json:"assignees,omitempty"`
	Milestone string     `json:"milestone,omitempty"`
	Labels    []string   `json:"labels,omitempty"`
	URL       string     `json:"url,omitempty"`
	Body      string     `json:"body,omitempty"`
	Comments  []Comment  `json:"comments,omitempty"`
}

type Comment struct {
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Body      string    `json:"body"`
}

func (r Record) IsClosed() bool { return r.State == StateClosed }

// SortByNumber orders records ascending by number so output order is stable across
// runs.
func SortByNumber(recs []Record) {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Number < recs[j].Number })
}

// SortComments orders comments by creation time, oldest first.
func SortComments(cs []Comment) {
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].CreatedAt.Before(cs[j].CreatedAt) })
}

// ParseState maps tracker spellings onto State. Unknown values are treated as open.
func ParseState(s string) State {
	switch s {
	case "closed", "CLOSED", "Closed":
		return StateClosed
	default:
		return StateOpen
	}
}
