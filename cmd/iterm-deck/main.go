package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"golang.org/x/term"

	"github.com/asheshgoplani/iterm-deck/internal/config"
	"github.com/asheshgoplani/iterm-deck/internal/iterm"
	"github.com/asheshgoplani/iterm-deck/internal/logging"
	"github.com/asheshgoplani/iterm-deck/internal/mcpserver"
)

const Version = "0.1.0"

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "version", "--version", "-v":
			fmt.Printf("iterm-deck v%s\n", Version)
			return
		case "help", "--help", "-h":
			printHelp()
			return
		case "serve":
			handleServe(args[1:])
			return
		case "doctor":
			handleDoctor(args[1:])
			return
		case "config":
			handleConfig(args[1:])
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
			printHelp()
			os.Exit(1)
		}
	}

	// No subcommand: serve on stdio, which is what MCP client configs
	// typically invoke.
	handleServe(nil)
}

func printHelp() {
	fmt.Println(`iterm-deck - MCP server for driving iTerm2 terminal sessions

Usage:
  iterm-deck [serve]          Run the MCP server on stdio (default)
  iterm-deck doctor           Check the environment (macOS, osascript, iTerm2)
  iterm-deck config init      Write an example config to ~/.iterm-deck/config.toml
  iterm-deck config path      Print the config file location
  iterm-deck version          Print the version

Serve flags:
  -log-level <level>          Log level: debug, info, warn, error
  -debug                      Shorthand for -log-level debug

The server exposes three tools to MCP clients: write_to_terminal,
read_terminal_output and send_control_character. Logs go to
~/.iterm-deck/iterm-deck.log, never to stdout.`)
}

func handleServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	debug := fs.Bool("debug", false, "enable debug logging")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, cfgErr := config.Load()

	level := cfg.Logs.Level
	if *logLevel != "" {
		level = *logLevel
	}
	if *debug {
		level = "debug"
	}

	logDir, _ := config.Dir()
	logging.Init(logging.Config{
		LogDir:     logDir,
		Level:      level,
		Format:     cfg.Logs.Format,
		MaxSizeMB:  cfg.Logs.MaxSizeMB,
		MaxBackups: cfg.Logs.MaxBackups,
		MaxAgeDays: cfg.Logs.MaxAgeDays,
		Compress:   cfg.Logs.GetCompress(),
		Debug:      true,
	})
	defer logging.Shutdown()

	log := logging.ForComponent(logging.CompCLI)
	if cfgErr != nil {
		// Bad config falls back to defaults; tell both channels
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", cfgErr)
		log.Warn("config load failed, using defaults", "error", cfgErr)
	}

	// stdio is the MCP transport. A human at a terminal almost
	// certainly didn't mean to start this.
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "iterm-deck serve expects an MCP client on stdin/stdout.")
		fmt.Fprintln(os.Stderr, "Add it to your MCP client config, or press Ctrl+C to exit.")
	}

	server := mcpserver.NewServer(
		iterm.NewBridge(),
		iterm.NewPSProber(),
		mcpserver.SettingsFromConfig(cfg),
	)

	// Hot-reload timing and filter settings on config edits
	if path, err := config.Path(); err == nil {
		watcher, err := config.Watch(path, func(fresh *config.Config) {
			server.UpdateSettings(mcpserver.SettingsFromConfig(fresh))
		})
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting MCP server", "version", Version)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("server exited", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleDoctor(args []string) {
	fs := flag.NewFlagSet("doctor", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	ok := true
	check := func(name string, pass bool, hint string) {
		mark := "✓"
		if !pass {
			mark = "✗"
			ok = false
		}
		fmt.Printf("  %s %s\n", mark, name)
		if !pass && hint != "" {
			fmt.Printf("    %s\n", hint)
		}
	}

	fmt.Println("iterm-deck environment check:")
	check("running on macOS", runtime.GOOS == "darwin",
		"iTerm2 automation requires macOS")
	_, osascriptErr := exec.LookPath("osascript")
	check("osascript on PATH", osascriptErr == nil,
		"osascript ships with macOS; check your PATH")
	_, psErr := exec.LookPath("ps")
	check("ps on PATH", psErr == nil,
		"ps is required for command-completion detection")

	if runtime.GOOS == "darwin" && osascriptErr == nil {
		bridge := iterm.NewBridge()
		out, err := bridge.Run(context.Background(), `tell application "iTerm2" to version`)
		if err != nil {
			check("iTerm2 reachable", false, "start iTerm2, then run doctor again")
		} else {
			check(fmt.Sprintf("iTerm2 reachable (version %s)", out), true, "")
		}
	}

	if path, err := config.Path(); err == nil {
		if _, statErr := os.Stat(path); statErr == nil {
			fmt.Printf("  • config: %s\n", path)
		} else {
			fmt.Printf("  • config: none (defaults in effect; run 'iterm-deck config init')\n")
		}
	}

	if !ok {
		os.Exit(1)
	}
}

func handleConfig(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: iterm-deck config <init|path>")
		os.Exit(1)
	}

	switch args[0] {
	case "init":
		if err := config.CreateExample(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		path, _ := config.Path()
		fmt.Printf("Config ready at %s\n", path)
	case "path":
		path, err := config.Path()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(path)
	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", args[0])
		fmt.Fprintln(os.Stderr, "Usage: iterm-deck config <init|path>")
		os.Exit(1)
	}
}
