package iterm

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"golang.org/x/time/rate"
)

// Bridge runs AppleScript against the host terminal application. One
// external process per call; nothing is cached between calls.
//
// Run passes the script to osascript as a plain argument. RunQuoted
// goes through /bin/sh with the script wrapped in single quotes, which
// is the form the single-line text escaping (EscapeText) is built for.
type Bridge interface {
	Run(ctx context.Context, script string) (string, error)
	RunQuoted(ctx context.Context, script string) (string, error)
}

type osascriptBridge struct {
	limiter *rate.Limiter
}

// NewBridge returns the production osascript bridge. Calls are
// rate-smoothed so tight poll loops don't stampede osascript.
func NewBridge() Bridge {
	return &osascriptBridge{
		limiter: rate.NewLimiter(rate.Limit(50), 10),
	}
}

func (b *osascriptBridge) Run(ctx context.Context, script string) (string, error) {
	return b.exec(ctx, exec.CommandContext(ctx, "osascript", "-e", script))
}

func (b *osascriptBridge) RunQuoted(ctx context.Context, script string) (string, error) {
	cmdline := "osascript -e '" + script + "'"
	return b.exec(ctx, exec.CommandContext(ctx, "/bin/sh", "-c", cmdline))
}

func (b *osascriptBridge) exec(ctx context.Context, cmd *exec.Cmd) (string, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if isAppUnavailable(msg) {
			return "", fmt.Errorf("%w (%s)", ErrAppUnavailable, msg)
		}
		if msg != "" {
			return "", fmt.Errorf("osascript: %s: %w", msg, err)
		}
		return "", fmt.Errorf("osascript: %w", err)
	}

	// osascript terminates its result with a newline.
	return strings.TrimSuffix(stdout.String(), "\n"), nil
}

// isAppUnavailable recognizes the osascript errors raised when iTerm2
// is not running or Apple Events can't reach it (-600, -1728 family).
func isAppUnavailable(stderr string) bool {
	s := strings.ToLower(stderr)
	return strings.Contains(s, "isn't running") ||
		strings.Contains(s, "is not running") ||
		strings.Contains(s, "(-600)") ||
		strings.Contains(s, "application can't be found") ||
		strings.Contains(s, "connection is invalid")
}
