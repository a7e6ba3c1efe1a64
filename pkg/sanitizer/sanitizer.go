package sanitizer

import (
	"regexp"
	"strings"
)

type Strategy func(string) string

type Pipeline []Strategy

func (p Pipeline) Apply(s string) string {
	for _, fn := range p {
		s = fn(s)
	}
	return s
}

var (
	reHorizontalSpace = regexp.MustCompile(`[ \t\f\v]+`)
	reBlankLines      = regexp.MustCompile(`\n{3,}`)
)

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}

func trimLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.Join(lines, "\n")
}

// SanitizeDescription keeps paragraph breaks but collapses horizontal runs
// of whitespace and more than one consecutive blank line.
func SanitizeDescription(input string) string {
	p := Pipeline{
		normalizeNewlines,
		func(s string) string { return reHorizontalSpace.ReplaceAllString(s, " ") },
		trimLines,
		func(s string) string { return reBlankLines.ReplaceAllString(s, "\n\n") },
		strings.TrimSpace,
	}
	return p.Apply(input)
}
