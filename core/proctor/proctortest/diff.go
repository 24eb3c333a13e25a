package proctortest

import (
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/examguard/core/proctor"
)

// Kinds extracts the kinds of a violation log, in order.
func Kinds(violations []proctor.Violation) []proctor.Kind {
	kinds := make([]proctor.Kind, 0, len(violations))
	for _, v := range violations {
		kinds = append(kinds, v.Kind)
	}
	return kinds
}

// DiffKinds returns a unified diff of two kind sequences, or "" when they are equal.
func DiffKinds(want, got []proctor.Kind) string {
	if equalKinds(want, got) {
		return ""
	}
	lines := func(kinds []proctor.Kind) []string {
		out := make([]string, 0, len(kinds))
		for _, k := range kinds {
			out = append(out, string(k)+"\n")
		}
		return out
	}
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        lines(want),
		B:        lines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  2,
	})
	return diff
}

func equalKinds(a, b []proctor.Kind) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
