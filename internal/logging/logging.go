// Package logging configures the process-wide slog logger and keeps a
// bounded in-memory tail of recent lines for the dashboard.
package logging

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	slogmulti "github.com/samber/slog-multi"
)

const DefaultRingSize = 200

// Ring is a bounded line buffer. It implements io.Writer so a slog handler
// can feed it; each Write is assumed to be one rendered log line.
type Ring struct {
	mu    sync.Mutex
	lines []string
	size  int
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = DefaultRingSize
	}
	return &Ring{size: size}
}

func (r *Ring) Write(p []byte) (int, error) {
	line := strings.TrimRight(string(p), "\n")
	r.mu.Lock()
	r.lines = append(r.lines, line)
	if len(r.lines) > r.size {
		r.lines = r.lines[len(r.lines)-r.size:]
	}
	r.mu.Unlock()
	return len(p), nil
}

// Lines returns a copy of the buffered tail, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.lines))
	copy(out, r.lines)
	return out
}

// Setup installs the default logger: level and format from config, fanned
// out to stdout and the returned ring buffer.
func Setup(level, format string) (*Ring, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("logging: bad level %q: %w", level, err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var stdout slog.Handler
	switch strings.ToLower(format) {
	case "json":
		stdout = slog.NewJSONHandler(os.Stdout, opts)
	case "text", "":
		stdout = slog.NewTextHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}

	ring := NewRing(DefaultRingSize)
	tail := slog.NewTextHandler(ring, opts)

	slog.SetDefault(slog.New(slogmulti.Fanout(stdout, tail)))
	return ring, nil
}
