package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// FileName is the TOML config file for user preferences
const FileName = "config.toml"

// Config represents user-facing configuration in TOML format.
// Every value has a working default; the file is optional.
type Config struct {
	// Timing tunes the command-completion detector
	Timing TimingSettings `toml:"timing"`

	// Filter controls output filtering on terminal reads
	Filter FilterSettings `toml:"filter"`

	// Logs defines debug log settings
	Logs LogSettings `toml:"logs"`
}

// TimingSettings tunes how long the server waits for commands to
// finish before reading the buffer back.
type TimingSettings struct {
	// BusyPollMs is how often to poll the terminal's busy flag
	// Default: 100
	BusyPollMs int `toml:"busy_poll_ms"`

	// ProbeIntervalMs is how often to sample CPU of the foreground process
	// Default: 350
	ProbeIntervalMs int `toml:"probe_interval_ms"`

	// IdleCPUPercent is the CPU threshold below which a process counts as idle
	// Default: 1.0
	IdleCPUPercent float64 `toml:"idle_cpu_percent"`

	// DebounceMs is how long CPU must stay below the threshold before
	// the command is considered done
	// Default: 1000
	DebounceMs int `toml:"debounce_ms"`

	// SettleMs is the delay after completion before the final buffer read,
	// giving trailing output time to land
	// Default: 200
	SettleMs int `toml:"settle_ms"`

	// MaxWaitMs caps the total wait for a command. 0 means wait forever.
	// When exceeded the tool call fails but the command keeps running.
	// Default: 0
	MaxWaitMs int `toml:"max_wait_ms"`
}

// FilterSettings controls read-side output filtering
type FilterSettings struct {
	// FilterBase64 replaces long base64 runs and inline images with
	// placeholders so encoded blobs don't flood the caller
	// Default: true (pointer to distinguish "not set" from "explicitly false")
	FilterBase64 *bool `toml:"filter_base64"`

	// MinRunLength is the shortest base64 run that gets replaced
	// Default: 100
	MinRunLength int `toml:"min_run_length"`
}

// GetFilterBase64 returns whether base64 filtering is on, defaulting to true
func (f *FilterSettings) GetFilterBase64() bool {
	if f.FilterBase64 == nil {
		return true
	}
	return *f.FilterBase64
}

// GetMinRunLength returns the base64 run threshold with the default applied
func (f *FilterSettings) GetMinRunLength() int {
	if f.MinRunLength <= 0 {
		return 100
	}
	return f.MinRunLength
}

// LogSettings defines debug log configuration
type LogSettings struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `toml:"level"`

	// Format sets the log format: "json" (default) or "text"
	Format string `toml:"format"`

	// MaxSizeMB is the max size in MB before rotation (default: 10)
	MaxSizeMB int `toml:"max_size_mb"`

	// MaxBackups is the number of rotated files to keep (default: 5)
	MaxBackups int `toml:"max_backups"`

	// MaxAgeDays is days to keep rotated files (default: 10)
	MaxAgeDays int `toml:"max_age_days"`

	// Compress enables gzip compression for rotated logs
	// Default: true (pointer to distinguish "not set" from "explicitly false")
	Compress *bool `toml:"compress"`
}

// GetCompress returns whether rotated logs are compressed, defaulting to true
func (l *LogSettings) GetCompress() bool {
	if l.Compress == nil {
		return true
	}
	return *l.Compress
}

// Timing getters apply defaults so a partial [timing] section works.

func (t *TimingSettings) GetBusyPoll() time.Duration {
	if t.BusyPollMs <= 0 {
		return 100 * time.Millisecond
	}
	return time.Duration(t.BusyPollMs) * time.Millisecond
}

func (t *TimingSettings) GetProbeInterval() time.Duration {
	if t.ProbeIntervalMs <= 0 {
		return 350 * time.Millisecond
	}
	return time.Duration(t.ProbeIntervalMs) * time.Millisecond
}

func (t *TimingSettings) GetIdleCPUPercent() float64 {
	if t.IdleCPUPercent <= 0 {
		return 1.0
	}
	return t.IdleCPUPercent
}

func (t *TimingSettings) GetDebounce() time.Duration {
	if t.DebounceMs <= 0 {
		return time.Second
	}
	return time.Duration(t.DebounceMs) * time.Millisecond
}

func (t *TimingSettings) GetSettle() time.Duration {
	if t.SettleMs <= 0 {
		return 200 * time.Millisecond
	}
	return time.Duration(t.SettleMs) * time.Millisecond
}

// GetMaxWait returns the wait ceiling; zero means unbounded.
func (t *TimingSettings) GetMaxWait() time.Duration {
	if t.MaxWaitMs <= 0 {
		return 0
	}
	return time.Duration(t.MaxWaitMs) * time.Millisecond
}

// Dir returns the iterm-deck directory, creating it if needed.
// ITERM_DECK_DIR overrides the default ~/.iterm-deck.
func Dir() (string, error) {
	if dir := os.Getenv("ITERM_DECK_DIR"); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return "", fmt.Errorf("failed to create config directory: %w", err)
		}
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".iterm-deck")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Path returns the path to the config file
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

// Load reads the config file. A missing file returns defaults; a
// malformed file returns defaults plus the parse error so the caller
// can surface it.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return &Config{}, nil
	}
	return LoadFrom(path)
}

// LoadFrom reads a specific config file path.
func LoadFrom(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return &Config{}, nil
	}
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &Config{}, fmt.Errorf("config.toml parse error: %w", err)
	}
	return &cfg, nil
}

// Save writes the config atomically: temp file, fsync, rename.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("# iterm-deck configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := syncFile(tmpPath); err != nil {
		// Rename still gives crash safety on most filesystems
		_ = err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finalize config save: %w", err)
	}
	return nil
}

func syncFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// CreateExample writes a commented example config if none exists.
func CreateExample() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	example := `# iterm-deck configuration
# All settings are optional; defaults match the values shown.

# Command completion detection timings
[timing]
# How often to poll iTerm2's busy flag, in milliseconds (default: 100)
busy_poll_ms = 100
# How often to sample CPU of the foreground process (default: 350)
probe_interval_ms = 350
# CPU percent below which the process counts as idle (default: 1.0)
idle_cpu_percent = 1.0
# How long CPU must stay idle before the command is considered done (default: 1000)
debounce_ms = 1000
# Delay before the final buffer read, so trailing output lands (default: 200)
settle_ms = 200
# Total wait ceiling in milliseconds; 0 waits forever (default: 0)
# When exceeded the tool call errors but the command keeps running.
# max_wait_ms = 120000

# Output filtering on terminal reads
[filter]
# Replace long base64 runs and inline images with placeholders (default: true)
filter_base64 = true
# Shortest base64 run that gets replaced (default: 100)
min_run_length = 100

# Debug log settings (logs go to ~/.iterm-deck/iterm-deck.log)
[logs]
# Minimum level: "debug", "info", "warn", "error" (default: "info")
level = "info"
# Format: "json" or "text" (default: "json")
format = "json"
# Rotation: size per file, files kept, days kept
max_size_mb = 10
max_backups = 5
max_age_days = 10
`

	return os.WriteFile(path, []byte(example), 0o600)
}
