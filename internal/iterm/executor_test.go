package iterm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTerminal answers bridge calls like a live session: contents
// snapshots advance on each read, the busy flag is scripted.
type scriptedTerminal struct {
	contents  []string
	reads     int
	busyFlags []bool
	busyCalls int
}

func (s *scriptedTerminal) respond(script string, _ bool) (string, error) {
	switch {
	case strings.Contains(script, "return contents"):
		i := s.reads
		s.reads++
		if i >= len(s.contents) {
			i = len(s.contents) - 1
		}
		return s.contents[i], nil
	case strings.Contains(script, "is processing"):
		i := s.busyCalls
		s.busyCalls++
		if i >= len(s.busyFlags) {
			i = len(s.busyFlags) - 1
		}
		if len(s.busyFlags) == 0 {
			return "false", nil
		}
		if s.busyFlags[i] {
			return "true", nil
		}
		return "false", nil
	case strings.Contains(script, "return tty"):
		return "/dev/ttys001", nil
	default:
		return "", nil
	}
}

func newTestExecutor(term *scriptedTerminal, prober *fakeProber) (*Executor, *fakeClock) {
	bridge := &fakeBridge{respond: term.respond}
	client := NewClient(bridge)
	clock := newFakeClock()
	waiter := &Waiter{client: client, prober: prober, clock: clock, cfg: DefaultWaiterConfig(), log: waitLog}
	return NewExecutor(client, waiter), clock
}

func TestExecuteCountsNewLines(t *testing.T) {
	term := &scriptedTerminal{
		contents: []string{
			"$ ",                            // before
			"$ ls\nfile1\nfile2\nfile3\n$ ", // after
		},
		busyFlags: []bool{false},
	}
	executor, _ := newTestExecutor(term, &fakeProber{})

	lines, err := executor.Execute(context.Background(), CurrentSession(), "ls")
	require.NoError(t, err)
	assert.Equal(t, 4, lines) // 5 lines after, 1 before
}

func TestExecuteNoGrowthClampsAtZero(t *testing.T) {
	// A clear shrinks the buffer; the delta must not go negative
	term := &scriptedTerminal{
		contents: []string{
			"$ a\n$ b\n$ c\n$ ",
			"$ ",
		},
		busyFlags: []bool{false},
	}
	executor, _ := newTestExecutor(term, &fakeProber{})

	lines, err := executor.Execute(context.Background(), CurrentSession(), "clear")
	require.NoError(t, err)
	assert.Equal(t, 0, lines)
}

func TestExecuteWaitsThroughBusyPhase(t *testing.T) {
	term := &scriptedTerminal{
		contents:  []string{"$ ", "$ sleep 1\n$ "},
		busyFlags: []bool{true, true, false},
	}
	executor, clock := newTestExecutor(term, &fakeProber{})

	lines, err := executor.Execute(context.Background(), CurrentSession(), "sleep 1")
	require.NoError(t, err)
	assert.Equal(t, 1, lines)
	assert.Equal(t, 3, term.busyCalls)
	// Two busy polls plus the settle delay
	assert.Len(t, clock.sleeps, 3)
}

func TestExecutePropagatesWriteFailure(t *testing.T) {
	bridge := &fakeBridge{respond: func(script string, _ bool) (string, error) {
		if strings.Contains(script, "write text") {
			return "", errors.New("write rejected")
		}
		return "", nil
	}}
	client := NewClient(bridge)
	clock := newFakeClock()
	waiter := &Waiter{client: client, prober: &fakeProber{}, clock: clock, cfg: DefaultWaiterConfig(), log: waitLog}
	executor := NewExecutor(client, waiter)

	_, err := executor.Execute(context.Background(), CurrentSession(), "ls")
	var bridgeErr *BridgeError
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, "send", bridgeErr.Op)
}
