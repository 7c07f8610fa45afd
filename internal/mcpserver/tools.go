package mcpserver

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/asheshgoplani/iterm-deck/internal/iterm"
)

// WriteToTerminalInput is the payload for write_to_terminal.
type WriteToTerminalInput struct {
	// Command is the text to type into the terminal; a newline is
	// appended, so commands execute.
	Command string `json:"command"`
	// Session optionally targets a terminal by tty device path.
	Session string `json:"session,omitempty"`
}

// WriteToTerminalOutput reports the buffer growth caused by a command.
type WriteToTerminalOutput struct {
	OutputLineCount int `json:"output_line_count"`
}

// ReadTerminalOutputInput is the payload for read_terminal_output.
type ReadTerminalOutputInput struct {
	LinesOfOutput int    `json:"lines_of_output"`
	Session       string `json:"session,omitempty"`
}

// ReadTerminalOutputOutput carries the buffer tail.
type ReadTerminalOutputOutput struct {
	Output string `json:"output"`
}

// SendControlCharacterInput is the payload for send_control_character.
type SendControlCharacterInput struct {
	// Letter is the control character to send: a single letter
	// (C = Ctrl-C), "]", or "Escape".
	Letter  string `json:"letter"`
	Session string `json:"session,omitempty"`
}

// SendControlCharacterOutput acknowledges a sent control character.
type SendControlCharacterOutput struct {
	Sent string `json:"sent"`
}

func sessionRef(session string) iterm.SessionRef {
	if session == "" {
		return iterm.CurrentSession()
	}
	return iterm.SessionByPath(session)
}

func (s *Server) handleWriteToTerminal(ctx context.Context, _ *mcpsdk.CallToolRequest, args WriteToTerminalInput) (*mcpsdk.CallToolResult, WriteToTerminalOutput, error) {
	ref := sessionRef(args.Session)
	settings := *s.settings.Load()

	waiter := iterm.NewWaiter(s.client, s.prober, settings.Waiter)
	executor := iterm.NewExecutor(s.client, waiter)

	lines, err := executor.Execute(ctx, ref, args.Command)
	if err != nil {
		s.log.Warn("write_to_terminal failed", "session", ref.String(), "error", err)
		return nil, WriteToTerminalOutput{}, err
	}

	s.log.Info("write_to_terminal", "session", ref.String(), "command_length", len(args.Command), "output_lines", lines)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: fmt.Sprintf(
				"%d lines were output after sending the command to the terminal. Read the last %d lines of terminal contents to orient yourself. Never assume that the command was executed or that it was successful.",
				lines, lines)},
		},
	}, WriteToTerminalOutput{OutputLineCount: lines}, nil
}

func (s *Server) handleReadTerminalOutput(ctx context.Context, _ *mcpsdk.CallToolRequest, args ReadTerminalOutputInput) (*mcpsdk.CallToolResult, ReadTerminalOutputOutput, error) {
	ref := sessionRef(args.Session)
	settings := *s.settings.Load()

	reader := iterm.NewBufferReader(s.client, settings.FilterBase64, settings.MinRunLength)
	output, err := reader.Tail(ctx, ref, args.LinesOfOutput)
	if err != nil {
		s.log.Warn("read_terminal_output failed", "session", ref.String(), "error", err)
		return nil, ReadTerminalOutputOutput{}, err
	}

	s.log.Info("read_terminal_output", "session", ref.String(), "lines_requested", args.LinesOfOutput)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: output},
		},
	}, ReadTerminalOutputOutput{Output: output}, nil
}

func (s *Server) handleSendControlCharacter(ctx context.Context, _ *mcpsdk.CallToolRequest, args SendControlCharacterInput) (*mcpsdk.CallToolResult, SendControlCharacterOutput, error) {
	ref := sessionRef(args.Session)

	if err := s.client.SendControlCharacter(ctx, ref, args.Letter); err != nil {
		s.log.Warn("send_control_character failed", "session", ref.String(), "letter", args.Letter, "error", err)
		return nil, SendControlCharacterOutput{}, err
	}

	s.log.Info("send_control_character", "session", ref.String(), "letter", args.Letter)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{
			&mcpsdk.TextContent{Text: fmt.Sprintf("Sent control character: Control-%s", args.Letter)},
		},
	}, SendControlCharacterOutput{Sent: args.Letter}, nil
}
