// Package mcpserver exposes terminal control as MCP tools over stdio.
package mcpserver

import (
	"context"
	"log/slog"
	"sync/atomic"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/asheshgoplani/iterm-deck/internal/config"
	"github.com/asheshgoplani/iterm-deck/internal/iterm"
	"github.com/asheshgoplani/iterm-deck/internal/logging"
)

const (
	ServerName    = "iterm-deck"
	ServerVersion = "0.1.0"
)

// Settings is the per-call tuning snapshot. Tool handlers read the
// current snapshot on every call, so a config hot reload takes effect
// on the next tool invocation without restarting anything.
type Settings struct {
	Waiter       iterm.WaiterConfig
	FilterBase64 bool
	MinRunLength int
}

// SettingsFromConfig maps the TOML config onto a Settings snapshot.
func SettingsFromConfig(cfg *config.Config) Settings {
	return Settings{
		Waiter: iterm.WaiterConfig{
			BusyPollInterval: cfg.Timing.GetBusyPoll(),
			ProbeInterval:    cfg.Timing.GetProbeInterval(),
			IdleCPUThreshold: cfg.Timing.GetIdleCPUPercent(),
			DebounceWindow:   cfg.Timing.GetDebounce(),
			SettleDelay:      cfg.Timing.GetSettle(),
			MaxWait:          cfg.Timing.GetMaxWait(),
		},
		FilterBase64: cfg.Filter.GetFilterBase64(),
		MinRunLength: cfg.Filter.GetMinRunLength(),
	}
}

// Server is the MCP server for driving iTerm2 sessions.
type Server struct {
	mcpServer *mcpsdk.Server
	client    *iterm.Client
	prober    iterm.Prober
	settings  atomic.Pointer[Settings]
	log       *slog.Logger
}

// NewServer creates the MCP server on top of a bridge and prober.
func NewServer(bridge iterm.Bridge, prober iterm.Prober, settings Settings) *Server {
	s := &Server{
		client: iterm.NewClient(bridge),
		prober: prober,
		log:    logging.ForComponent(logging.CompMCP),
	}
	s.settings.Store(&settings)

	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)

	s.registerTools()
	return s
}

// UpdateSettings swaps in a new tuning snapshot. Safe to call while
// tool calls are in flight; running calls finish with the old values.
func (s *Server) UpdateSettings(settings Settings) {
	s.settings.Store(&settings)
	s.log.Info("settings updated",
		"max_wait", settings.Waiter.MaxWait,
		"filter_base64", settings.FilterBase64)
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "write_to_terminal",
		Description: "Write text to the active iTerm2 terminal, often used to run a command. " +
			"Waits for the command to finish and reports how many output lines were produced. " +
			"Pass session to target a specific terminal by its tty device path (e.g. /dev/ttys003); " +
			"omit it to use the currently focused session.",
	}, s.handleWriteToTerminal)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "read_terminal_output",
		Description: "Read the requested number of lines from the bottom of the active iTerm2 " +
			"terminal's buffer. Long base64 blobs and inline images are replaced with placeholders. " +
			"Pass session to target a specific terminal by tty device path.",
	}, s.handleReadTerminalOutput)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name: "send_control_character",
		Description: "Send a control character to the active iTerm2 terminal, such as Ctrl-C to " +
			"interrupt a running command. Accepts a single letter (C for Ctrl-C), \"]\" for telnet " +
			"escape, or \"Escape\" for the escape key. Pass session to target a specific terminal " +
			"by tty device path.",
	}, s.handleSendControlCharacter)
}
