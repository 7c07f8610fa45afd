package iterm

import (
	"fmt"
	"strings"
)

// SessionRef identifies a target session. The zero value means the
// current session of the current window. A ref never holds a live
// handle; every bridge call re-resolves it, so a session closing
// between calls surfaces naturally as SessionNotFoundError.
type SessionRef struct {
	path string
}

// CurrentSession targets whatever session has focus right now.
func CurrentSession() SessionRef { return SessionRef{} }

// SessionByPath targets the session whose tty device is path,
// e.g. /dev/ttys003. Exact string match, no normalization.
func SessionByPath(path string) SessionRef { return SessionRef{path: path} }

func (r SessionRef) IsCurrent() bool { return r.path == "" }

// Path returns the tty device path, or "" for the current session.
func (r SessionRef) Path() string { return r.path }

func (r SessionRef) String() string {
	if r.IsCurrent() {
		return "current session"
	}
	return r.path
}

// notFoundMarker is returned by the enumeration scripts when no session
// matched; it never collides with real bridge output because every
// matched branch returns before the marker line runs.
const notFoundMarker = "__iterm_deck_session_not_found__"

// Script shapes. Each operation has a current-session form and a
// by-path form; the by-path form walks every window, tab and session
// comparing tty values, swallowing per-session errors so one broken
// session doesn't abort the search.

func (r SessionRef) script(action string, returns bool) string {
	if r.IsCurrent() {
		var b strings.Builder
		b.WriteString("tell application \"iTerm2\"\n")
		b.WriteString("\ttell current session of current window\n")
		b.WriteString("\t\t" + action + "\n")
		b.WriteString("\tend tell\n")
		b.WriteString("end tell")
		return b.String()
	}

	found := action
	if !returns {
		found += "\n\t\t\t\t\t\treturn \"ok\""
	}
	var b strings.Builder
	b.WriteString("tell application \"iTerm2\"\n")
	b.WriteString("\trepeat with w in windows\n")
	b.WriteString("\t\trepeat with t in tabs of w\n")
	b.WriteString("\t\t\trepeat with s in sessions of t\n")
	b.WriteString("\t\t\t\ttry\n")
	b.WriteString("\t\t\t\t\tif tty of s is \"" + EscapeLine(r.path) + "\" then\n")
	b.WriteString("\t\t\t\t\t\ttell s\n")
	for _, line := range strings.Split(found, "\n") {
		b.WriteString("\t\t\t\t\t\t\t" + strings.TrimLeft(line, "\t") + "\n")
	}
	b.WriteString("\t\t\t\t\t\tend tell\n")
	b.WriteString("\t\t\t\t\tend if\n")
	b.WriteString("\t\t\t\tend try\n")
	b.WriteString("\t\t\tend repeat\n")
	b.WriteString("\t\tend repeat\n")
	b.WriteString("\tend repeat\n")
	b.WriteString("end tell\n")
	b.WriteString("return \"" + notFoundMarker + "\"")
	return b.String()
}

func (r SessionRef) writeTextScript(payload string) string {
	return r.script("write text "+payload, false)
}

func (r SessionRef) contentsScript() string {
	return r.script("return contents", true)
}

func (r SessionRef) isProcessingScript() string {
	return r.script("return (is processing)", true)
}

func (r SessionRef) ttyScript() string {
	return r.script("return tty", true)
}

func (r SessionRef) controlScript(code byte) string {
	return r.script(fmt.Sprintf("write text (character id %d) newline NO", code), false)
}
