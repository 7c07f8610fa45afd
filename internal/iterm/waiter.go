package iterm

import (
	"context"
	"log/slog"
	"time"

	"github.com/asheshgoplani/iterm-deck/internal/logging"
)

var waitLog = logging.ForComponent(logging.CompExec)

// WaitState is the completion detector's position in its lifecycle.
type WaitState int

const (
	// WaitStateBusy polls the host's is-processing flag.
	WaitStateBusy WaitState = iota
	// WaitStateSettling watches CPU of the foreground process until it
	// stays quiet long enough.
	WaitStateSettling
	// WaitStateReady means the command is considered finished.
	WaitStateReady
)

// WaitOutcome records which exit path declared the command finished.
type WaitOutcome int

const (
	// OutcomeIdle: no foreground process left on the tty.
	OutcomeIdle WaitOutcome = iota
	// OutcomeDebounced: a process remains but its CPU stayed below the
	// idle threshold for the full debounce window. Interactive
	// programs waiting for input land here.
	OutcomeDebounced
	// OutcomeProbeFailed: the process probe errored and the wait
	// failed open rather than hang forever.
	OutcomeProbeFailed
)

func (o WaitOutcome) String() string {
	switch o {
	case OutcomeIdle:
		return "idle"
	case OutcomeDebounced:
		return "debounced"
	case OutcomeProbeFailed:
		return "probe-failed"
	}
	return "unknown"
}

// Clock abstracts time for the waiter so tests run without wall-clock
// delays. Sleep returns early with the context error on cancellation.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WaiterConfig holds the completion-detection timings. Zero MaxWait
// means wait forever.
type WaiterConfig struct {
	BusyPollInterval time.Duration
	ProbeInterval    time.Duration
	IdleCPUThreshold float64
	DebounceWindow   time.Duration
	SettleDelay      time.Duration
	MaxWait          time.Duration
}

func DefaultWaiterConfig() WaiterConfig {
	return WaiterConfig{
		BusyPollInterval: 100 * time.Millisecond,
		ProbeInterval:    350 * time.Millisecond,
		IdleCPUThreshold: 1.0,
		DebounceWindow:   time.Second,
		SettleDelay:      200 * time.Millisecond,
	}
}

// busyChecker is the slice of Client the waiter needs; narrowed so
// tests can fake it without scripting a whole bridge.
type busyChecker interface {
	IsProcessing(ctx context.Context, ref SessionRef) (bool, error)
	TTY(ctx context.Context, ref SessionRef) (string, error)
}

// Waiter decides when a written command has finished. Two phases: the
// host busy flag clears fast for simple commands, then the CPU of
// whatever is still attached to the tty has to stay quiet for the
// debounce window. A trailing settle delay lets final output land in
// the buffer before it is read back.
type Waiter struct {
	client busyChecker
	prober Prober
	clock  Clock
	cfg    WaiterConfig
	log    *slog.Logger
}

func NewWaiter(client *Client, prober Prober, cfg WaiterConfig) *Waiter {
	return &Waiter{client: client, prober: prober, clock: realClock{}, cfg: cfg, log: waitLog}
}

// Wait blocks until the command running in ref's session is considered
// finished and the settle delay has passed. Returns
// CompletionTimeoutError when a configured MaxWait is exceeded; the
// command itself keeps running.
func (w *Waiter) Wait(ctx context.Context, ref SessionRef) (WaitOutcome, error) {
	start := w.clock.Now()

	overBudget := func() bool {
		return w.cfg.MaxWait > 0 && w.clock.Now().Sub(start) >= w.cfg.MaxWait
	}

	state := WaitStateBusy
	var tty string
	var outcome WaitOutcome
	var idle time.Duration

	for state != WaitStateReady {
		switch state {
		case WaitStateBusy:
			busy, err := w.client.IsProcessing(ctx, ref)
			if err != nil {
				return 0, err
			}
			if !busy {
				t, err := w.client.TTY(ctx, ref)
				if err != nil {
					return 0, err
				}
				tty = t
				state = WaitStateSettling
				continue
			}
			if overBudget() {
				return 0, &CompletionTimeoutError{Waited: w.clock.Now().Sub(start)}
			}
			if err := w.clock.Sleep(ctx, w.cfg.BusyPollInterval); err != nil {
				return 0, err
			}

		case WaitStateSettling:
			proc, err := w.prober.Probe(ctx, tty)
			if err != nil {
				if ctx.Err() != nil {
					return 0, ctx.Err()
				}
				// Fail open: better to read a possibly-early buffer
				// than to hang on a broken probe.
				w.log.Warn("process probe failed, finishing wait early", "tty", tty, "error", err)
				outcome = OutcomeProbeFailed
				state = WaitStateReady
				continue
			}
			if proc == nil {
				outcome = OutcomeIdle
				state = WaitStateReady
				continue
			}
			if proc.CPUPercent < w.cfg.IdleCPUThreshold {
				idle += w.cfg.ProbeInterval
				if idle >= w.cfg.DebounceWindow {
					w.log.Debug("command settled", "tty", tty, "process", proc.String())
					outcome = OutcomeDebounced
					state = WaitStateReady
					continue
				}
			} else {
				idle = 0
			}
			if overBudget() {
				return 0, &CompletionTimeoutError{Waited: w.clock.Now().Sub(start)}
			}
			if err := w.clock.Sleep(ctx, w.cfg.ProbeInterval); err != nil {
				return 0, err
			}
		}
	}

	if err := w.clock.Sleep(ctx, w.cfg.SettleDelay); err != nil {
		return 0, err
	}
	return outcome, nil
}
