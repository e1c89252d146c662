package reconcile

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
	"time"

	"orgsync-cli/internal/org"
	"orgsync-cli/internal/record"
)

var t0 = time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC)

func issue(n int, title string, labels ...string) record.Record {
	return record.Record{
		Number:    n,
		Title:     title,
		State:     record.StateOpen,
		CreatedAt: t0,
		UpdatedAt: t0.Add(time.Hour),
		Author:    "octo",
		URL:       "https://github.com/acme/widgets/issues/" + strconv.Itoa(n),
		Labels:    labels,
	}
}

func mustParse(t *testing.T, src string) *org.Document {
	t.Helper()
	doc, err := org.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func heading(t *testing.T, doc *org.Document, n string) *org.Heading {
	t.Helper()
	for _, h := range doc.Headings {
		if v, _ := h.Property("GITHUB_NUMBER"); v == n {
			return h
		}
	}
	t.Fatalf("no heading with number %s", n)
	return nil
}

func TestReconcile_AddsInOrder(t *testing.T) {
	doc := mustParse(t, "* My notes\nfree text\n")
	eng := Engine{Prefix: "GITHUB_", LinkTag: DefaultLinkTag}

	sum := eng.Reconcile(doc, []record.Record{issue(3, "Third", "bug"), issue(1, "First")})
	if sum.Added != 2 || sum.Updated != 0 || sum.Unchanged != 0 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
	if len(doc.Headings) != 3 {
		t.Fatalf("expected 3 headings, got %d", len(doc.Headings))
	}
	if doc.Headings[0].Title != "My notes" || doc.Headings[1].Title != "Third" || doc.Headings[2].Title != "First" {
		t.Fatalf("unexpected order: %q %q %q", doc.Headings[0].Title, doc.Headings[1].Title, doc.Headings[2].Title)
	}
	h := doc.Headings[1]
	if h.Keyword != "TODO" {
		t.Fatalf("expected TODO keyword, got %q", h.Keyword)
	}
	if strings.Join(h.Tags, ",") != "LINK,bug" {
		t.Fatalf("unexpected tags %v", h.Tags)
	}
	wantKeys := "GITHUB_NUMBER,GITHUB_STATE,GITHUB_URL,GITHUB_AUTHOR,GITHUB_CREATED,GITHUB_UPDATED,GITHUB_LABELS"
	if got := strings.Join(h.Properties.Keys(), ","); got != wantKeys {
		t.Fatalf("unexpected drawer keys %s", got)
	}
	if v, _ := h.Property("GITHUB_CREATED"); v != "2024-02-01T09:30:00Z" {
		t.Fatalf("unexpected created value %q", v)
	}
}

func TestReconcile_DuplicateRecordInBatchCollapses(t *testing.T) {
	doc := org.NewDocument()
	eng := Engine{Prefix: "GITHUB_"}
	sum := eng.Reconcile(doc, []record.Record{issue(5, "Original"), issue(6, "Other"), issue(5, "Renamed")})
	if sum.Added != 2 || sum.Updated != 0 || len(sum.Entries) != 2 {
		t.Fatalf("expected two adds, got %+v", sum)
	}
	if doc.Headings[0].Title != "Renamed" {
		t.Fatalf("expected last occurrence to win at first position, got %q", doc.Headings[0].Title)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	closedAt := t0.Add(48 * time.Hour)
	recs := []record.Record{
		issue(1, "Open one", "bug", "Needs Triage"),
		{
			Number: 2, Title: "Closed :done:", State: record.StateClosed,
			CreatedAt: t0, UpdatedAt: closedAt, ClosedAt: &closedAt,
			Author: "alice", Assignees: []string{"bob", "carol"}, Milestone: "v1.0",
			Body: "* not a heading\nplain",
			Comments: []record.Comment{
				{Author: "bob", CreatedAt: t0, Body: "first"},
				{Author: "carol", CreatedAt: t0.Add(time.Minute), Body: ":PROPERTIES:"},
			},
		},
	}
	eng := Engine{Prefix: "GITHUB_", LinkTag: DefaultLinkTag}

	doc := org.NewDocument()
	eng.Reconcile(doc, recs)
	first := org.Render(doc)

	reparsed := mustParse(t, string(first))
	sum := eng.Reconcile(reparsed, recs)
	if sum.Added != 0 || sum.Updated != 0 || sum.Unchanged != 2 {
		t.Fatalf("second pass changed things: %+v", sum)
	}
	if !bytes.Equal(org.Render(reparsed), first) {
		t.Fatalf("second pass output differs:\n%s\n---\n%s", first, org.Render(reparsed))
	}

	h := heading(t, reparsed, "2")
	if h.Keyword != "DONE" {
		t.Fatalf("expected DONE, got %q", h.Keyword)
	}
	if v, ok := h.Closed(); !ok || v != "[2024-02-03 Sat 09:30]" {
		t.Fatalf("unexpected CLOSED %q", v)
	}
	if h.Title != "Closed :done" {
		t.Fatalf("expected title defused, got %q", h.Title)
	}
	if len(h.Children) != 2 {
		t.Fatalf("expected 2 comments, got %d", len(h.Children))
	}
}

func TestReconcile_NonDestructive(t *testing.T) {
	src := `* Personal :mine:
:PROPERTIES:
:OWNER: me
:END:
My notes

* TODO Synced
:PROPERTIES:
:GITHUB_NUMBER: 9
:CUSTOM: keep
:END:
`
	doc := mustParse(t, src)
	before := org.RenderHeading(doc.Headings[0])

	eng := Engine{Prefix: "GITHUB_"}
	eng.Reconcile(doc, []record.Record{issue(9, "Synced again"), issue(4, "New")})

	if !bytes.Equal(before, org.RenderHeading(doc.Headings[0])) {
		t.Fatalf("user heading was modified")
	}
	h := heading(t, doc, "9")
	if v, _ := h.Property("CUSTOM"); v != "keep" {
		t.Fatalf("user property lost, got %q", v)
	}
	if h.Properties.Keys()[1] != "CUSTOM" {
		t.Fatalf("user property moved: %v", h.Properties.Keys())
	}
}

func TestReconcile_AbsencePreservation(t *testing.T) {
	src := "* TODO Forty two\n:PROPERTIES:\n:GITHUB_NUMBER: 42\n:GITHUB_STATE: open\n:END:\nlocal edits\n"
	doc := mustParse(t, src)
	before := org.Render(doc)

	sum := Engine{Prefix: "GITHUB_"}.Reconcile(doc, []record.Record{issue(1, "Other")})
	if sum.Untouched != 1 {
		t.Fatalf("expected 1 untouched, got %+v", sum)
	}
	if !bytes.HasPrefix(org.Render(doc), before[:len(before)-1]) {
		t.Fatalf("heading 42 changed:\n%s", org.Render(doc))
	}
}

func TestReconcile_TagProvenance(t *testing.T) {
	cases := []struct {
		name     string
		tags     string
		snapshot string
		labels   []string
		want     string
	}{
		{name: "label added", tags: ":bug:mine:", snapshot: "bug", labels: []string{"bug", "urgent"}, want: "bug,mine,urgent"},
		{name: "label removed", tags: ":bug:urgent:mine:", snapshot: "bug urgent", labels: []string{"bug"}, want: "bug,mine"},
		{name: "first sync keeps user tags", tags: ":urgent:mine:", snapshot: "", labels: []string{"bug"}, want: "urgent,mine,bug"},
		{name: "user removed label tag stays removed", tags: ":mine:", snapshot: "bug", labels: []string{"bug"}, want: "mine"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			drawer := ":GITHUB_NUMBER: 1\n"
			if tc.snapshot != "" {
				drawer += ":GITHUB_LABELS: " + tc.snapshot + "\n"
			}
			doc := mustParse(t, "* TODO Issue "+tc.tags+"\n:PROPERTIES:\n"+drawer+":END:\n")
			Engine{Prefix: "GITHUB_"}.Reconcile(doc, []record.Record{issue(1, "Issue", tc.labels...)})
			if got := strings.Join(doc.Headings[0].Tags, ","); got != tc.want {
				t.Fatalf("tags: got %s want %s", got, tc.want)
			}
			if v, _ := doc.Headings[0].Property("GITHUB_LABELS"); v != strings.Join(tc.labels, " ") {
				t.Fatalf("snapshot: got %q", v)
			}
		})
	}
}

func TestReconcile_CommentReplacement(t *testing.T) {
	src := `* TODO Issue
:PROPERTIES:
:GITHUB_NUMBER: 1
:END:

** Comment by @bob [2024-02-01 Thu 09:30]
old

** My sub-heading
mine

** Comment by @carol [2024-02-01 Thu 09:31]
old too
`
	doc := mustParse(t, src)
	rec := issue(1, "Issue")
	rec.Comments = []record.Comment{
		{Author: "bob", CreatedAt: t0, Body: "one"},
		{Author: "carol", CreatedAt: t0.Add(time.Minute), Body: "two"},
		{Author: "dave", CreatedAt: t0.Add(2 * time.Minute), Body: "three"},
	}
	sum := Engine{Prefix: "GITHUB_"}.Reconcile(doc, []record.Record{rec})
	if sum.Updated != 1 {
		t.Fatalf("expected update, got %+v", sum)
	}

	kids := doc.Headings[0].Children
	var titles []string
	for _, k := range kids {
		titles = append(titles, k.Title)
	}
	want := []string{
		"Comment by @bob [2024-02-01 Thu 09:30]",
		"My sub-heading",
		"Comment by @carol [2024-02-01 Thu 09:31]",
		"Comment by @dave [2024-02-01 Thu 09:32]",
	}
	if strings.Join(titles, "|") != strings.Join(want, "|") {
		t.Fatalf("children: got %q", titles)
	}
	if kids[0].Body != "one" || kids[1].Body != "mine" || kids[3].Body != "three" {
		t.Fatalf("unexpected bodies: %q %q %q", kids[0].Body, kids[1].Body, kids[3].Body)
	}
}

func TestReconcile_CommentRunInsertedFirst(t *testing.T) {
	doc := mustParse(t, "* TODO Issue\n:PROPERTIES:\n:GITHUB_NUMBER: 1\n:END:\n** Notes\n")
	rec := issue(1, "Issue")
	rec.Comments = []record.Comment{{Author: "bob", CreatedAt: t0, Body: "hi"}}
	Engine{Prefix: "GITHUB_"}.Reconcile(doc, []record.Record{rec})
	kids := doc.Headings[0].Children
	if len(kids) != 2 || !IsComment(kids[0]) || kids[1].Title != "Notes" {
		t.Fatalf("unexpected children %+v", kids)
	}
}

func TestReconcile_CommentKeepsUserDescendants(t *testing.T) {
	src := "* TODO Issue\n:PROPERTIES:\n:GITHUB_NUMBER: 1\n:END:\n** Comment by @bob [2024-02-01 Thu 09:30]\nold\n*** my reply\n"
	doc := mustParse(t, src)
	rec := issue(1, "Issue")
	rec.Comments = []record.Comment{{Author: "bob", CreatedAt: t0, Body: "edited"}}
	Engine{Prefix: "GITHUB_"}.Reconcile(doc, []record.Record{rec})
	c := doc.Headings[0].Children[0]
	if c.Body != "edited" || len(c.Children) != 1 || c.Children[0].Title != "my reply" {
		t.Fatalf("comment descendants lost: %+v", c)
	}
}

func TestReconcile_IgnoreComments(t *testing.T) {
	src := "* TODO Issue\n:PROPERTIES:\n:GITHUB_NUMBER: 1\n:END:\n** Comment by @bob [2024-02-01 Thu 09:30]\nold\n"
	doc := mustParse(t, src)
	Engine{Prefix: "GITHUB_", IgnoreComments: true}.Reconcile(doc, []record.Record{issue(1, "Issue")})
	if len(doc.Headings[0].Children) != 1 {
		t.Fatalf("comments should be left alone")
	}
}

func TestReconcile_StateTransitions(t *testing.T) {
	closedAt := t0.Add(time.Hour)
	rec := issue(1, "Issue")
	rec.State = record.StateClosed
	rec.ClosedAt = &closedAt
	rec.Milestone = "v2"

	doc := org.NewDocument()
	eng := Engine{Prefix: "GITEA_"}
	eng.Reconcile(doc, []record.Record{rec})
	h := doc.Headings[0]
	if h.Keyword != "DONE" {
		t.Fatalf("expected DONE, got %q", h.Keyword)
	}
	if _, ok := h.Property("GITEA_CLOSED"); !ok {
		t.Fatalf("expected GITEA_CLOSED")
	}

	reopened := issue(1, "Issue")
	sum := eng.Reconcile(doc, []record.Record{reopened})
	if sum.Updated != 1 || sum.Entries[0].Changes[0] != "state" {
		t.Fatalf("expected state change, got %+v", sum)
	}
	if h.Keyword != "TODO" {
		t.Fatalf("expected TODO after reopen, got %q", h.Keyword)
	}
	if _, ok := h.Closed(); ok {
		t.Fatalf("CLOSED planning should be removed")
	}
	for _, k := range []string{"GITEA_CLOSED", "GITEA_MILESTONE"} {
		if _, ok := h.Property(k); ok {
			t.Fatalf("expected %s removed", k)
		}
	}
}

func TestReconcile_CustomKeywordsAreDeclared(t *testing.T) {
	doc := org.NewDocument()
	Engine{Prefix: "GITHUB_", OpenKeyword: "OPEN", DoneKeyword: "CLOSED"}.Reconcile(doc, []record.Record{issue(1, "x")})
	out := org.Render(doc)
	again := mustParse(t, string(out))
	if again.Headings[0].Keyword != "OPEN" {
		t.Fatalf("custom keyword did not survive a round trip:\n%s", out)
	}
}

func TestReconcile_DocumentKeywordsAreDefaults(t *testing.T) {
	doc := mustParse(t, "#+TODO: NEXT | FINISHED\n")
	Engine{Prefix: "GITHUB_"}.Reconcile(doc, []record.Record{issue(1, "x")})
	if doc.Headings[0].Keyword != "NEXT" {
		t.Fatalf("expected NEXT, got %q", doc.Headings[0].Keyword)
	}
	if len(doc.Preamble) != 1 {
		t.Fatalf("no declaration should be added, got %v", doc.Preamble)
	}
}

func TestNormalizeLabels(t *testing.T) {
	got := NormalizeLabels([]string{"Bug", "good first issue", "area: UI", "bug", "  ", "--", "p1/high"})
	want := "bug,good_first_issue,area_ui,p1_high"
	if strings.Join(got, ",") != want {
		t.Fatalf("got %v want %s", got, want)
	}

	got = NormalizeLabels([]string{"バグ", "Café", "C++", "c", "näive: ÜBER"})
	want = "バグ,café,c__,c,näive_über"
	if strings.Join(got, ",") != want {
		t.Fatalf("got %v want %s", got, want)
	}
}

func TestReconcile_NonASCIILabelsRoundTrip(t *testing.T) {
	doc := org.NewDocument()
	eng := Engine{Prefix: "GITHUB_"}
	recs := []record.Record{issue(1, "Issue", "バグ", "café", "C++", "c")}
	eng.Reconcile(doc, recs)

	h := doc.Headings[0]
	if got := strings.Join(h.Tags, ","); got != "バグ,café,c__,c" {
		t.Fatalf("tags: got %s", got)
	}
	if v, _ := h.Property("GITHUB_LABELS"); v != "バグ café c__ c" {
		t.Fatalf("snapshot: got %q", v)
	}

	again := mustParse(t, string(org.Render(doc)))
	if sum := eng.Reconcile(again, recs); sum.Unchanged != 1 {
		t.Fatalf("expected second pass to be unchanged: %+v", sum)
	}
	if got := strings.Join(again.Headings[0].Tags, ","); got != "バグ,café,c__,c" {
		t.Fatalf("tags after reparse: got %s", got)
	}
}

func TestReconcile_UpdateKeepsNonASCIIUserTags(t *testing.T) {
	doc := mustParse(t, "* TODO Old title :café:mine:\n:PROPERTIES:\n:GITHUB_NUMBER: 7\n:END:\n")
	sum := Engine{Prefix: "GITHUB_"}.Reconcile(doc, []record.Record{issue(7, "New title")})
	if sum.Updated != 1 {
		t.Fatalf("expected an update: %+v", sum)
	}
	h := doc.Headings[0]
	if h.Title != "New title" {
		t.Fatalf("title: got %q", h.Title)
	}
	if got := strings.Join(h.Tags, ","); got != "café,mine" {
		t.Fatalf("user tags lost: got %s", got)
	}
	if !strings.HasPrefix(string(org.Render(doc)), "* TODO New title :café:mine:\n") {
		t.Fatalf("unexpected render:\n%s", org.Render(doc))
	}
}
