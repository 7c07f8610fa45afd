package iterm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBridge records scripts and answers from a scripted respond func.
type bridgeCall struct {
	script string
	quoted bool
}

type fakeBridge struct {
	mu      sync.Mutex
	calls   []bridgeCall
	respond func(script string, quoted bool) (string, error)
}

func (b *fakeBridge) Run(ctx context.Context, script string) (string, error) {
	return b.record(script, false)
}

func (b *fakeBridge) RunQuoted(ctx context.Context, script string) (string, error) {
	return b.record(script, true)
}

func (b *fakeBridge) record(script string, quoted bool) (string, error) {
	b.mu.Lock()
	b.calls = append(b.calls, bridgeCall{script: script, quoted: quoted})
	b.mu.Unlock()
	if b.respond == nil {
		return "", nil
	}
	return b.respond(script, quoted)
}

func (b *fakeBridge) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *fakeBridge) lastCall() bridgeCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[len(b.calls)-1]
}

func TestSessionRefCurrent(t *testing.T) {
	ref := CurrentSession()
	assert.True(t, ref.IsCurrent())
	assert.Equal(t, "current session", ref.String())

	byPath := SessionByPath("/dev/ttys003")
	assert.False(t, byPath.IsCurrent())
	assert.Equal(t, "/dev/ttys003", byPath.Path())
}

func TestCurrentSessionScriptShape(t *testing.T) {
	script := CurrentSession().contentsScript()
	assert.Contains(t, script, `tell application "iTerm2"`)
	assert.Contains(t, script, "current session of current window")
	assert.Contains(t, script, "return contents")
	assert.NotContains(t, script, "repeat")
}

func TestByPathScriptEnumerates(t *testing.T) {
	script := SessionByPath("/dev/ttys007").contentsScript()

	assert.Contains(t, script, "repeat with w in windows")
	assert.Contains(t, script, "repeat with t in tabs of w")
	assert.Contains(t, script, "repeat with s in sessions of t")
	assert.Contains(t, script, `if tty of s is "/dev/ttys007" then`)
	// Per-session failures must not abort the search
	assert.Contains(t, script, "try")
	assert.Contains(t, script, "end try")
	assert.Contains(t, script, notFoundMarker)
}

func TestContentsSessionNotFound(t *testing.T) {
	bridge := &fakeBridge{respond: func(string, bool) (string, error) {
		return notFoundMarker, nil
	}}
	client := NewClient(bridge)

	_, err := client.Contents(context.Background(), SessionByPath("/dev/ttys042"))
	var notFound *SessionNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "/dev/ttys042", notFound.Path)
	assert.Contains(t, err.Error(), "/dev/ttys042")
}

func TestContentsCurrentNeverNotFound(t *testing.T) {
	// The current-session form has no enumeration, so marker-looking
	// output is just buffer text.
	bridge := &fakeBridge{respond: func(string, bool) (string, error) {
		return notFoundMarker, nil
	}}
	client := NewClient(bridge)

	out, err := client.Contents(context.Background(), CurrentSession())
	require.NoError(t, err)
	assert.Equal(t, notFoundMarker, out)
}

func TestWriteTextSingleLineUsesQuotedForm(t *testing.T) {
	bridge := &fakeBridge{}
	client := NewClient(bridge)

	err := client.WriteText(context.Background(), CurrentSession(), `echo "it's done"`)
	require.NoError(t, err)

	call := bridge.lastCall()
	assert.True(t, call.quoted)
	assert.Contains(t, call.script, "write text \"echo "+`\"it'\''s done\"`+"\"")
}

func TestWriteTextMultilineUsesConcatExpression(t *testing.T) {
	bridge := &fakeBridge{}
	client := NewClient(bridge)

	err := client.WriteText(context.Background(), CurrentSession(), "line1\nline2")
	require.NoError(t, err)

	call := bridge.lastCall()
	assert.False(t, call.quoted)
	assert.Contains(t, call.script, `write text "line1" & return & "line2"`)
}

func TestIsProcessing(t *testing.T) {
	for _, tt := range []struct {
		output string
		want   bool
	}{
		{"true", true},
		{"false", false},
		{"", false},
	} {
		bridge := &fakeBridge{respond: func(string, bool) (string, error) {
			return tt.output, nil
		}}
		client := NewClient(bridge)
		got, err := client.IsProcessing(context.Background(), CurrentSession())
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "output %q", tt.output)
	}
}

func TestBridgeErrorWrapping(t *testing.T) {
	bridge := &fakeBridge{respond: func(string, bool) (string, error) {
		return "", fmt.Errorf("osascript: exit status 1")
	}}
	client := NewClient(bridge)

	_, err := client.Contents(context.Background(), CurrentSession())
	var bridgeErr *BridgeError
	require.ErrorAs(t, err, &bridgeErr)
	assert.Equal(t, "read", bridgeErr.Op)
}

func TestAppUnavailablePassesThrough(t *testing.T) {
	bridge := &fakeBridge{respond: func(string, bool) (string, error) {
		return "", fmt.Errorf("%w (execution error)", ErrAppUnavailable)
	}}
	client := NewClient(bridge)

	err := client.WriteText(context.Background(), CurrentSession(), "ls")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAppUnavailable))
	var bridgeErr *BridgeError
	assert.False(t, errors.As(err, &bridgeErr))
}

func TestSendControlCharacter(t *testing.T) {
	bridge := &fakeBridge{}
	client := NewClient(bridge)

	err := client.SendControlCharacter(context.Background(), CurrentSession(), "C")
	require.NoError(t, err)
	assert.Contains(t, bridge.lastCall().script, "write text (character id 3) newline NO")
}

func TestSendControlCharacterInvalidSkipsBridge(t *testing.T) {
	bridge := &fakeBridge{}
	client := NewClient(bridge)

	err := client.SendControlCharacter(context.Background(), CurrentSession(), "ctrl-c")
	var invalid *InvalidControlCharacterError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 0, bridge.callCount(), "validation failures must not reach the bridge")
}

func TestByPathWriteReturnsOK(t *testing.T) {
	bridge := &fakeBridge{respond: func(script string, _ bool) (string, error) {
		if strings.Contains(script, "write text") {
			return "ok", nil
		}
		return "", nil
	}}
	client := NewClient(bridge)

	err := client.WriteText(context.Background(), SessionByPath("/dev/ttys003"), "ls")
	require.NoError(t, err)
}
