package iterm

import (
	"context"
	"log/slog"

	"github.com/asheshgoplani/iterm-deck/internal/logging"
)

var execLog = logging.ForComponent(logging.CompExec)

// Executor runs the write-and-wait pipeline behind write_to_terminal.
// It holds no per-session state; concurrent Execute calls against the
// same session interleave keystrokes and skew each other's line
// counts. Serializing is the caller's job.
type Executor struct {
	client *Client
	waiter *Waiter
	log    *slog.Logger
}

func NewExecutor(client *Client, waiter *Waiter) *Executor {
	return &Executor{client: client, waiter: waiter, log: execLog}
}

// Execute types text into the session, waits for the command to
// finish, and returns how many new lines appeared in the buffer. The
// count is a before/after line-count delta: scrollback truncation or
// screen clearing can shrink the buffer, so it is clamped at zero and
// should be treated as approximate.
func (e *Executor) Execute(ctx context.Context, ref SessionRef, text string) (int, error) {
	before, err := e.client.Contents(ctx, ref)
	if err != nil {
		return 0, err
	}

	if err := e.client.WriteText(ctx, ref, text); err != nil {
		return 0, err
	}

	outcome, err := e.waiter.Wait(ctx, ref)
	if err != nil {
		return 0, err
	}

	after, err := e.client.Contents(ctx, ref)
	if err != nil {
		return 0, err
	}

	delta := CountLines(after) - CountLines(before)
	if delta < 0 {
		delta = 0
	}
	e.log.Debug("command executed", "session", ref.String(), "outcome", outcome.String(), "new_lines", delta)
	return delta, nil
}
