package reconcile

import (
	"regexp"
	"strings"
)

var (
	labelSepRe = regexp.MustCompile(`[:\s]+`)
	nonTagRe   = regexp.MustCompile(`[^\p{L}\p{N}_@#%]`)
)

// NormalizeLabel turns a tracker label into an Org tag: lower-case, runs of spaces and
// colons become "_", and every other character Org does not allow in tags becomes "_"
// on its own, so "C++" and "c" stay distinct. Labels made only of such characters
// normalize to "".
func NormalizeLabel(label string) string {
	s := labelSepRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(label)), "_")
	s = nonTagRe.ReplaceAllString(s, "_")
	if strings.Trim(s, "_") == "" {
		return ""
	}
	return s
}

// NormalizeLabels normalizes labels, dropping empties and duplicates while keeping
// tracker order.
func NormalizeLabels(labels []string) []string {
	var out []string
	seen := map[string]bool{}
	for _, l := range labels {
		t := NormalizeLabel(l)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func labelSnapshot(labels []string) string {
	return strings.Join(labels, " ")
}

func parseSnapshot(v string) []string {
	return strings.Fields(v)
}

// mergeTags applies label changes to the existing tag list. Tags that were never part
// of a snapshot are user tags and always survive.
func mergeTags(existing, previous, current []string, linkTag string) []string {
	prev := toSet(previous)
	cur := toSet(current)

	var out []string
	have := map[string]bool{}
	for _, t := range existing {
		if prev[t] && !cur[t] {
			continue
		}
		if have[t] {
			continue
		}
		have[t] = true
		out = append(out, t)
	}
	for _, t := range current {
		if prev[t] || have[t] {
			continue
		}
		have[t] = true
		out = append(out, t)
	}
	if linkTag != "" && !have[linkTag] {
		out = append(out, linkTag)
	}
	return out
}

func toSet(xs []string) map[string]bool {
	m := make(map[string]bool, len(xs))
	for _, x := range xs {
		m[x] = true
	}
	return m
}
