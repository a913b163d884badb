// Package sanitize cleans free text and identifiers arriving from MCP
// clients before they are stored on walkers or echoed back into an agent's
// context. Reasoning and headline text keep their meaning; markup that could
// restructure a prompt is stripped.
package sanitize

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxTextLength bounds reasoning and stance text, in bytes.
const MaxTextLength = 2000

// MaxIdentifierLength bounds user and session identifiers.
const MaxIdentifierLength = 80

var (
	// reTag matches XML/HTML tags, with attributes or self-closing, and
	// processing instructions like <?xml ...?>.
	reTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	reHeading    = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reRule       = regexp.MustCompile(`(?m)^[-*_]{3,}\s*$`)
	reFence      = regexp.MustCompile("```+")
	reBlankLines = regexp.MustCompile(`\n{3,}`)

	reHyphens     = regexp.MustCompile(`-{2,}`)
	reUnderscores = regexp.MustCompile(`_{2,}`)
)

// Text cleans reasoning or stance text. In order it strips control
// characters other than newline and tab, strips tags, turns markdown
// headings into list items, drops horizontal rules, collapses code fences
// to a single backtick and runs of blank lines to one, trims, and
// truncates to MaxTextLength on a rune boundary.
func Text(input string) string {
	if input == "" {
		return ""
	}

	s := stripControl(input)
	s = reTag.ReplaceAllString(s, "")
	s = reHeading.ReplaceAllString(s, "- ")
	s = reRule.ReplaceAllString(s, "")
	s = reFence.ReplaceAllString(s, "`")
	s = reBlankLines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if len(s) > MaxTextLength {
		cut := MaxTextLength
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}

// Identifier keeps only [a-zA-Z0-9-_.:@], collapses repeated hyphens and
// underscores, and truncates to MaxIdentifierLength.
func Identifier(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == ':' || r == '@' {
			b.WriteRune(r)
		}
	}
	s := reHyphens.ReplaceAllString(b.String(), "-")
	s = reUnderscores.ReplaceAllString(s, "_")

	if len(s) > MaxIdentifierLength {
		s = s[:MaxIdentifierLength]
	}
	return s
}

func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 && r != '\n' && r != '\t' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
