package iterm

import (
	"errors"
	"fmt"
	"time"
)

// ErrAppUnavailable means osascript could not talk to iTerm2 at all.
// The bridge maps "application isn't running" style failures to this.
var ErrAppUnavailable = errors.New("iTerm2 is not running or not reachable; start iTerm2 and try again")

// SessionNotFoundError is returned when a tty device path matches no
// open iTerm2 session. Closed sessions are not distinguishable from
// paths that never existed.
type SessionNotFoundError struct {
	Path string
}

func (e *SessionNotFoundError) Error() string {
	return fmt.Sprintf("no iTerm2 session found with tty %s", e.Path)
}

// InvalidControlCharacterError is returned before any bridge call when
// a control-character request names something outside the supported set.
type InvalidControlCharacterError struct {
	Input string
}

func (e *InvalidControlCharacterError) Error() string {
	return fmt.Sprintf("invalid control character %q: use a single letter, %q, %q or %q", e.Input, "]", "ESC", "Escape")
}

// BridgeError wraps an osascript or ps invocation failure with the
// operation that was in flight.
type BridgeError struct {
	Op  string // "send", "read", "busy", "tty", "control", "probe"
	Err error
}

func (e *BridgeError) Error() string {
	return fmt.Sprintf("terminal bridge %s failed: %v", e.Op, e.Err)
}

func (e *BridgeError) Unwrap() error { return e.Err }

// CompletionTimeoutError is returned when a configured max-wait ceiling
// is exceeded while waiting for a command to finish. The command keeps
// running in the terminal; only the wait is abandoned.
type CompletionTimeoutError struct {
	Waited time.Duration
}

func (e *CompletionTimeoutError) Error() string {
	return fmt.Sprintf("command still running after %s; increase timing.max_wait_ms or read the output later", e.Waited.Round(time.Millisecond))
}
