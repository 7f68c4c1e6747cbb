// Package diff renders unified diffs between original and fixed code.
package diff

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	// OriginalHeader and FixedHeader are the file names in every diff.
	OriginalHeader = "original"
	FixedHeader    = "fixed"

	contextLines = 3
)

// Unified returns a unified diff from original to fixed with three lines of
// context. The output always starts with the "--- original" and
// "+++ fixed" header lines; equal inputs produce only those two lines.
//
// Unified is pure: equal inputs give byte-identical output.
func Unified(original, fixed string) string {
	header := "--- " + OriginalHeader + "\n+++ " + FixedHeader + "\n"
	if original == fixed {
		return header
	}

	d := difflib.UnifiedDiff{
		A:        splitLines(original),
		B:        splitLines(fixed),
		FromFile: OriginalHeader,
		ToFile:   FixedHeader,
		Context:  contextLines,
	}
	out, err := difflib.GetUnifiedDiffString(d)
	if err != nil || out == "" {
		// Only whitespace at line ends differed after splitting.
		return header
	}
	return out
}

// ChangedLines counts the added and removed lines of a unified diff,
// ignoring the file headers.
func ChangedLines(unified string) (added, removed int) {
	for _, line := range strings.Split(unified, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// splitLines splits s into lines that each keep their newline. A missing
// final newline is added so the last line diffs like the others.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	lines := strings.SplitAfter(s, "\n")
	return lines[:len(lines)-1]
}
