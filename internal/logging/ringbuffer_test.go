package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRingBufferKeepsShortWrite(t *testing.T) {
	rb := NewRingBuffer(32)

	n, err := rb.Write([]byte("log line"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 8 {
		t.Errorf("expected n=8, got %d", n)
	}
	if got := string(rb.Bytes()); got != "log line" {
		t.Errorf("expected %q, got %q", "log line", got)
	}
}

func TestRingBufferWrapKeepsTail(t *testing.T) {
	rb := NewRingBuffer(8)

	_, _ = rb.Write([]byte("abcdefgh")) // exact fill
	_, _ = rb.Write([]byte("XYZ"))      // wraps over oldest

	if got := string(rb.Bytes()); got != "defghXYZ" {
		t.Errorf("expected %q, got %q", "defghXYZ", got)
	}
}

func TestRingBufferOversizedWrite(t *testing.T) {
	rb := NewRingBuffer(4)

	_, _ = rb.Write([]byte("0123456789"))

	if got := string(rb.Bytes()); got != "6789" {
		t.Errorf("expected %q, got %q", "6789", got)
	}
}

func TestRingBufferManySmallWrites(t *testing.T) {
	rb := NewRingBuffer(6)

	for _, s := range []string{"aa", "bb", "cc", "dd"} {
		_, _ = rb.Write([]byte(s))
	}
	// 8 bytes into a 6-byte ring: the oldest two are gone
	if got := string(rb.Bytes()); got != "bbccdd" {
		t.Errorf("expected %q, got %q", "bbccdd", got)
	}
}

func TestRingBufferDumpToFile(t *testing.T) {
	rb := NewRingBuffer(64)
	_, _ = rb.Write([]byte("tail for the crash dump"))

	path := filepath.Join(t.TempDir(), "tail.bin")
	if err := rb.DumpToFile(path); err != nil {
		t.Fatalf("DumpToFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read dump: %v", err)
	}
	if string(data) != "tail for the crash dump" {
		t.Errorf("unexpected dump contents: %q", string(data))
	}
}

func TestRingBufferConcurrentWrites(t *testing.T) {
	rb := NewRingBuffer(4096)
	done := make(chan struct{})

	for range 8 {
		go func() {
			defer func() { done <- struct{}{} }()
			for range 64 {
				_, _ = rb.Write([]byte("z"))
			}
		}()
	}
	for range 8 {
		<-done
	}

	got := rb.Bytes()
	if len(got) != 512 {
		t.Fatalf("expected 512 bytes, got %d", len(got))
	}
	if strings.Trim(string(got), "z") != "" {
		t.Error("unexpected bytes in buffer")
	}
}
