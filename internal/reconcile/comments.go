package reconcile

import (
	"regexp"

	"orgsync-cli/internal/org"
	"orgsync-cli/internal/record"
)

var commentTitleRe = regexp.MustCompile(`^Comment by @\S*`)

// IsComment reports whether h is an engine-rendered tracker comment.
func IsComment(h *org.Heading) bool {
	return commentTitleRe.MatchString(h.Title)
}

func commentTitle(c record.Comment) string {
	author := oneLine(c.Author)
	if author == "" {
		author = "ghost"
	}
	return "Comment by @" + author + " " + org.FormatTimestamp(c.CreatedAt)
}

func (e Engine) commentHeadings(level int, cs []record.Comment) []*org.Heading {
	out := make([]*org.Heading, 0, len(cs))
	for _, c := range cs {
		out = append(out, &org.Heading{
			Level: level,
			Title: commentTitle(c),
			Body:  org.EscapeBody(c.Body),
		})
	}
	return out
}

// spliceComments replaces the comment children of a heading slot by slot. Non-comment
// children keep their positions. Surplus new comments follow the last existing one, or
// lead the list when there were none; surplus old ones are dropped. A slot whose title
// is unchanged keeps everything but its body, so user additions under a comment
// survive.
func spliceComments(children, fresh []*org.Heading) []*org.Heading {
	var slots []int
	for i, c := range children {
		if IsComment(c) {
			slots = append(slots, i)
		}
	}

	out := make([]*org.Heading, 0, len(children)+len(fresh))
	insertAt := 0
	if len(slots) > 0 {
		insertAt = slots[len(slots)-1] + 1
	}
	slot := 0
	for i, c := range children {
		if i == insertAt && slot == len(slots) {
			out = append(out, fresh[min(slot, len(fresh)):]...)
		}
		if slot < len(slots) && slots[slot] == i {
			if slot < len(fresh) {
				out = append(out, refresh(c, fresh[slot]))
			}
			slot++
			continue
		}
		out = append(out, c)
	}
	if insertAt >= len(children) {
		out = append(out, fresh[min(len(slots), len(fresh)):]...)
	}
	return out
}

func refresh(old, fresh *org.Heading) *org.Heading {
	if old.Title != fresh.Title {
		return fresh
	}
	h := old.Clone()
	h.Body = fresh.Body
	return h
}
