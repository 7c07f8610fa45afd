package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("[timing]\nbusy_poll_ms = 100\n"), 0o600))

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	// Small grace so the watch is established before the write
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("[timing]\nbusy_poll_ms = 500\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 500*time.Millisecond, cfg.Timing.GetBusyPoll())
	case <-time.After(5 * time.Second):
		t.Fatal("config change was never delivered")
	}
}

func TestWatcherReloadsOnAtomicRename(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("[filter]\nmin_run_length = 100\n"), 0o600))

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)

	// Mirror Save: write a temp file and rename it over the target
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte("[filter]\nmin_run_length = 64\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, 64, cfg.Filter.GetMinRunLength())
	case <-time.After(5 * time.Second):
		t.Fatal("config change was never delivered")
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte(""), 0o600))

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o600))

	select {
	case <-reloaded:
		t.Fatal("unrelated file triggered a reload")
	case <-time.After(400 * time.Millisecond):
	}
}

func TestWatcherKeepsSettingsOnBrokenReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("[timing]\nbusy_poll_ms = 100\n"), 0o600))

	reloaded := make(chan *Config, 4)
	w, err := Watch(path, func(cfg *Config) {
		reloaded <- cfg
	})
	require.NoError(t, err)
	defer w.Stop()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("busy_poll_ms = [broken"), 0o600))

	// A half-saved or broken file must not reach the callback
	select {
	case <-reloaded:
		t.Fatal("broken config reached the callback")
	case <-time.After(400 * time.Millisecond):
	}
}
