package iterm

import (
	"context"
	"errors"
	"log/slog"

	"github.com/asheshgoplani/iterm-deck/internal/logging"
)

var bridgeLog = logging.ForComponent(logging.CompBridge)

// Client bundles the per-session terminal operations on top of a
// Bridge. It is stateless; every method resolves the session again.
type Client struct {
	bridge Bridge
	log    *slog.Logger
}

func NewClient(bridge Bridge) *Client {
	return &Client{bridge: bridge, log: bridgeLog}
}

// WriteText types text into the session followed by a newline, as if
// the user typed it and pressed return. Multiline text is sent as one
// write of an AppleScript concatenation expression so the line
// sequence arrives intact.
func (c *Client) WriteText(ctx context.Context, ref SessionRef, text string) error {
	var out string
	var err error
	if hasLineBreak(text) {
		script := ref.writeTextScript(EncodeMultiline(text))
		out, err = c.bridge.Run(ctx, script)
	} else {
		script := ref.writeTextScript(`"` + EscapeText(text) + `"`)
		out, err = c.bridge.RunQuoted(ctx, script)
	}
	if err != nil {
		return c.wrap("send", err)
	}
	return c.checkFound(ref, out)
}

// Contents returns the full visible buffer text of the session.
func (c *Client) Contents(ctx context.Context, ref SessionRef) (string, error) {
	out, err := c.bridge.Run(ctx, ref.contentsScript())
	if err != nil {
		return "", c.wrap("read", err)
	}
	if err := c.checkFound(ref, out); err != nil {
		return "", err
	}
	return out, nil
}

// IsProcessing reports the host's own busy flag for the session.
func (c *Client) IsProcessing(ctx context.Context, ref SessionRef) (bool, error) {
	out, err := c.bridge.Run(ctx, ref.isProcessingScript())
	if err != nil {
		return false, c.wrap("busy", err)
	}
	if err := c.checkFound(ref, out); err != nil {
		return false, err
	}
	return out == "true", nil
}

// TTY resolves the session's tty device path, e.g. /dev/ttys003.
// By-path refs still round-trip through the bridge so a stale path
// errors here instead of several calls later.
func (c *Client) TTY(ctx context.Context, ref SessionRef) (string, error) {
	out, err := c.bridge.Run(ctx, ref.ttyScript())
	if err != nil {
		return "", c.wrap("tty", err)
	}
	if err := c.checkFound(ref, out); err != nil {
		return "", err
	}
	return out, nil
}

// SendControl writes a single raw control character to the session.
// Fire and forget; there is no completion handshake for these.
func (c *Client) SendControl(ctx context.Context, ref SessionRef, code byte) error {
	out, err := c.bridge.Run(ctx, ref.controlScript(code))
	if err != nil {
		return c.wrap("control", err)
	}
	return c.checkFound(ref, out)
}

// SendControlCharacter validates letter and sends the mapped control
// code. Validation failures never reach the bridge.
func (c *Client) SendControlCharacter(ctx context.Context, ref SessionRef, letter string) error {
	code, err := ControlCode(letter)
	if err != nil {
		return err
	}
	c.log.Debug("sending control character", "letter", letter, "code", code, "session", ref.String())
	return c.SendControl(ctx, ref, code)
}

func (c *Client) wrap(op string, err error) error {
	if errors.Is(err, ErrAppUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	c.log.Warn("bridge call failed", "op", op, "error", err)
	return &BridgeError{Op: op, Err: err}
}

func (c *Client) checkFound(ref SessionRef, out string) error {
	if !ref.IsCurrent() && out == notFoundMarker {
		return &SessionNotFoundError{Path: ref.Path()}
	}
	return nil
}
