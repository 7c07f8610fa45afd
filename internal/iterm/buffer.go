package iterm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"
)

const (
	// DefaultBase64MinRun is the shortest contiguous base64 run that
	// gets replaced. Long enough to spare hashes, tokens and short
	// encoded values; inline images and clipboard payloads blow far
	// past it.
	DefaultBase64MinRun = 100

	base64Placeholder = "[base64 data omitted]"
	imagePlaceholder  = "[inline image omitted]"
)

// iTerm renders inline images via OSC 1337 File= sequences; terminated
// by BEL or ST.
var inlineImageRe = regexp.MustCompile(`\x1b\]1337;File=[^\x07\x1b]*(?:\x07|\x1b\\)`)

var base64ReCache sync.Map // minRun -> *regexp.Regexp

func base64Re(minRun int) *regexp.Regexp {
	if v, ok := base64ReCache.Load(minRun); ok {
		return v.(*regexp.Regexp)
	}
	re := regexp.MustCompile(fmt.Sprintf(`[A-Za-z0-9+/]{%d,}={0,2}`, minRun))
	base64ReCache.Store(minRun, re)
	return re
}

// CountLines returns the number of lines in a buffer snapshot.
func CountLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}

// TailLines returns the trailing lines of text. It keeps n+1 lines,
// one more than asked for, so the prompt line that follows command
// output stays visible; callers of the tool surface rely on that.
func TailLines(text string, n int) string {
	if n < 0 {
		n = 0
	}
	lines := strings.Split(text, "\n")
	keep := n + 1
	if keep >= len(lines) {
		return text
	}
	return strings.Join(lines[len(lines)-keep:], "\n")
}

// FilterBase64Content replaces long base64 runs and inline-image
// escape sequences with placeholder tokens. Runs shorter than minRun
// and all surrounding text pass through untouched. minRun <= 0 uses
// the default.
func FilterBase64Content(s string, minRun int) string {
	if minRun <= 0 {
		minRun = DefaultBase64MinRun
	}
	s = inlineImageRe.ReplaceAllString(s, imagePlaceholder)
	return base64Re(minRun).ReplaceAllString(s, base64Placeholder)
}

// BufferReader reads session buffer tails for the tool surface,
// applying the base64 filter when enabled. Every read is a fresh
// bridge query; nothing is cached.
type BufferReader struct {
	client *Client
	filter bool
	minRun int
}

func NewBufferReader(client *Client, filter bool, minRun int) *BufferReader {
	return &BufferReader{client: client, filter: filter, minRun: minRun}
}

// Tail returns the last n(+1) lines of the session buffer.
func (r *BufferReader) Tail(ctx context.Context, ref SessionRef, n int) (string, error) {
	contents, err := r.client.Contents(ctx, ref)
	if err != nil {
		return "", err
	}
	out := TailLines(contents, n)
	if r.filter {
		out = FilterBase64Content(out, r.minRun)
	}
	return out, nil
}
