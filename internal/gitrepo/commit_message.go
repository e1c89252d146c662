package gitrepo

import (
	"fmt"
	"sort"
	"strings"
)

// maxSubjectNumbers bounds how many issue numbers are listed in the subject line.
const maxSubjectNumbers = 5

// SyncMessage builds a commit message for a sync run. added and updated are issue numbers.
func SyncMessage(repo string, added, updated []int) string {
	var parts []string
	if len(added) > 0 {
		parts = append(parts, fmt.Sprintf("add %s", numberList(added)))
	}
	if len(updated) > 0 {
		parts = append(parts, fmt.Sprintf("update %s", numberList(updated)))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("orgsync: %s", repo)
	}
	return fmt.Sprintf("orgsync: %s: %s", repo, strings.Join(parts, "; "))
}

func numberList(ns []int) string {
	sorted := append([]int(nil), ns...)
	sort.Ints(sorted)
	var b strings.Builder
	for i, n := range sorted {
		if i == maxSubjectNumbers {
			fmt.Fprintf(&b, " (+%d more)", len(sorted)-i)
			break
		}
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "#%d", n)
	}
	return b.String()
}
