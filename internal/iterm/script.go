package iterm

import (
	"fmt"
	"strings"
	"unicode/utf16"
)

// AppleScript string literals only admit printable ASCII directly.
// Everything else is smuggled in as \uXXXX escapes, which the
// AppleScript runtime decodes back into the original characters.

// EscapeLine escapes s for embedding inside a double-quoted AppleScript
// string literal. Backslash and double quote get backslash-escaped,
// printable ASCII passes through, anything else becomes lower-case
// \uXXXX escapes (UTF-16 units, so astral runes emit a surrogate pair).
func EscapeLine(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r >= 0x20 && r <= 0x7e:
			b.WriteRune(r)
		case r <= 0xffff:
			fmt.Fprintf(&b, `\u%04x`, r)
		default:
			for _, u := range utf16.Encode([]rune{r}) {
				fmt.Fprintf(&b, `\u%04x`, u)
			}
		}
	}
	return b.String()
}

// EscapeText is EscapeLine plus single-quote handling for the
// shell-quoted invocation form: the whole osascript argument travels
// inside single quotes, so an embedded ' closes the quote, emits an
// escaped literal quote, and reopens it ('\''). Only single-line
// payloads go through the shell-quoted form.
//
// Not composable: escaping already-escaped text escapes the escapes.
func EscapeText(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '\'' {
			b.WriteString(`'\''`)
			continue
		}
		b.WriteString(EscapeLine(string(r)))
	}
	return b.String()
}

// EncodeMultiline turns text containing line breaks into an AppleScript
// expression that evaluates to the same text: each line escaped as a
// quoted literal, joined with the language's newline constant. k line
// breaks produce exactly k joins. The result is an expression, not a
// literal; callers embed it unquoted.
func EncodeMultiline(s string) string {
	lines := strings.Split(normalizeLineBreaks(s), "\n")
	parts := make([]string, len(lines))
	for i, line := range lines {
		parts[i] = `"` + EscapeLine(line) + `"`
	}
	return strings.Join(parts, " & return & ")
}

// hasLineBreak reports whether text needs the multiline encoding form.
func hasLineBreak(s string) bool {
	return strings.ContainsAny(s, "\r\n")
}

func normalizeLineBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
