package iterm

import (
	"context"
	"fmt"
	"os/exec"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/asheshgoplani/iterm-deck/internal/logging"
)

var probeLog = logging.ForComponent(logging.CompProbe)

// ActiveProcess is a snapshot of the foreground process on a tty.
// CPUPercent is ps pcpu, a short-window average that decays to near
// zero within about a poll interval of the process going idle.
type ActiveProcess struct {
	PID        int
	Command    string
	CPUPercent float64
}

// Prober reports what, if anything, is actively running on a tty.
// A nil process with nil error means only an idle shell (or nothing)
// is attached.
type Prober interface {
	Probe(ctx context.Context, ttyPath string) (*ActiveProcess, error)
}

// PSProber shells out to ps. Concurrent probes for the same tty are
// coalesced; the waiter polls on a few-hundred-millisecond cadence and
// overlapping tool calls would otherwise double up the exec traffic.
type PSProber struct {
	group singleflight.Group
}

func NewPSProber() *PSProber { return &PSProber{} }

func (p *PSProber) Probe(ctx context.Context, ttyPath string) (*ActiveProcess, error) {
	v, err, _ := p.group.Do(ttyPath, func() (any, error) {
		return p.probe(ctx, ttyPath)
	})
	if err != nil {
		return nil, err
	}
	proc, _ := v.(*ActiveProcess)
	return proc, nil
}

func (p *PSProber) probe(ctx context.Context, ttyPath string) (*ActiveProcess, error) {
	short := strings.TrimPrefix(ttyPath, "/dev/")
	out, err := exec.CommandContext(ctx, "ps", "-t", short, "-o", "pid=,pcpu=,comm=").Output()
	if err != nil {
		if ee, ok := err.(*exec.ExitError); ok && ee.ExitCode() == 1 {
			// ps exits 1 when no processes match the tty
			return nil, nil
		}
		probeLog.Warn("ps failed", "tty", short, "error", err)
		return nil, &BridgeError{Op: "probe", Err: err}
	}
	return pickForeground(parsePSRows(string(out))), nil
}

// parsePSRows parses "pid pcpu comm" rows. comm may contain spaces, so
// only the first two columns are split off.
func parsePSRows(out string) []ActiveProcess {
	var rows []ActiveProcess
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cpu, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		rows = append(rows, ActiveProcess{
			PID:        pid,
			Command:    strings.Join(fields[2:], " "),
			CPUPercent: cpu,
		})
	}
	return rows
}

// pickForeground drops shell rows and returns the highest-CPU
// remaining process, or nil when only shells are attached.
func pickForeground(rows []ActiveProcess) *ActiveProcess {
	var best *ActiveProcess
	for i := range rows {
		if isShell(rows[i].Command) {
			continue
		}
		if best == nil || rows[i].CPUPercent > best.CPUPercent {
			best = &rows[i]
		}
	}
	return best
}

func isShell(command string) bool {
	name := path.Base(strings.TrimPrefix(command, "-"))
	switch name {
	case "bash", "zsh", "sh", "fish", "tcsh", "csh", "dash", "ksh", "login":
		return true
	}
	return false
}

func (p ActiveProcess) String() string {
	return fmt.Sprintf("%s (pid %d, %.1f%% cpu)", p.Command, p.PID, p.CPUPercent)
}
