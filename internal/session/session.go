// Package session parses the free-form session labels attached to
// appointments ("5/10", "3ª", "12", ...).
package session

import (
	"regexp"
	"strconv"
)

var labelPattern = regexp.MustCompile(`^(\d+)(.*)$`)

// Label is the parsed form of a session label. OK is false when the label
// does not start with an integer, in which case renumbering is disabled for
// the operation but the label itself is still carried verbatim.
type Label struct {
	Number int
	Suffix string
	OK     bool
}

// Parse splits a session label into its leading integer and suffix.
func Parse(s string) Label {
	m := labelPattern.FindStringSubmatch(s)
	if m == nil {
		return Label{}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		// Only reachable when the digit run overflows int.
		return Label{}
	}
	return Label{Number: n, Suffix: m[2], OK: true}
}

// Format renders a label with the given number, preserving the suffix.
func Format(n int, suffix string) string {
	return strconv.Itoa(n) + suffix
}

// With returns the label's string form with its number replaced by n.
func (l Label) With(n int) string {
	return Format(n, l.Suffix)
}
