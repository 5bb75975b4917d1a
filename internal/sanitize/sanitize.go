// Package sanitize cleans text that leaves battsim for an agent or an
// object store. Error messages can quote dataset content, and they are
// stored in the run catalog and returned by MCP tools, so markup that
// could read as instructions is stripped before they go out.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxMessageLength is the longest message kept, in bytes.
const MaxMessageLength = 1000

// MaxSegmentLength bounds one object key segment.
const MaxSegmentLength = 80

var (
	// reXMLTag matches XML/HTML tags, with attributes or self-closing, and
	// processing instructions like <?xml ...?>.
	reXMLTag = regexp.MustCompile(`<[/?!]?[a-zA-Z][a-zA-Z0-9]*(?:\s+[^>]*)?/?>|<\?[^?]*\?>`)

	reMarkdownHeading     = regexp.MustCompile(`(?m)^#{1,6}\s+`)
	reTripleBacktick      = regexp.MustCompile("```+")
	reExcessiveNewlines   = regexp.MustCompile(`\n{3,}`)
	reRepeatedHyphens     = regexp.MustCompile(`-{2,}`)
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

// Message makes an error or status message safe to store and hand to an
// agent. Control characters other than newline and tab are dropped, tags
// removed, headings turned into list markers, code fences collapsed and
// the result truncated to MaxMessageLength.
func Message(input string) string {
	if input == "" {
		return ""
	}

	s := stripControlChars(input)
	s = reXMLTag.ReplaceAllString(s, "")
	s = reMarkdownHeading.ReplaceAllString(s, "- ")
	s = reTripleBacktick.ReplaceAllString(s, "`")
	s = reExcessiveNewlines.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)

	if len(s) > MaxMessageLength {
		s = truncate(s, MaxMessageLength) + "..."
	}
	return s
}

// KeySegment reduces s to an object-key-safe form: ASCII letters, digits
// and - _ . / only, with repeated hyphens and underscores collapsed and
// no empty segments. Dot-only segments are dropped so a key cannot climb.
func KeySegment(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '/' || r == '.' {
			b.WriteRune(r)
		}
	}
	parts := strings.Split(b.String(), "/")
	kept := parts[:0]
	for _, p := range parts {
		if strings.Trim(p, ".") == "" {
			continue
		}
		p = reRepeatedHyphens.ReplaceAllString(p, "-")
		p = reRepeatedUnderscores.ReplaceAllString(p, "_")
		kept = append(kept, p)
	}
	s := strings.Join(kept, "/")

	if len(s) > MaxSegmentLength {
		s = strings.TrimRight(s[:MaxSegmentLength], "/")
	}
	return s
}

// stripControlChars removes ASCII control characters except \n and \t.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 && r != '\n' && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
