// Package logger provides modifications to charmbracelet/log's default logger to be used in various files/packages.
//
// stdout carries the RPC stream, so every logger here writes to stderr or to
// a log file.
package logger

import (
	"io"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	outMu sync.Mutex
	out   io.Writer = os.Stderr
)

// New creates a new default charm log.
func New(prefix string) *log.Logger {
	return log.NewWithOptions(output(), log.Options{
		Prefix:          prefix,
		ReportCaller:    false,
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           log.GetLevel(),
	})
}

// Setup points the global logger at file, or stderr when file is empty, and
// sets its level. The returned function closes the file.
func Setup(level, file string) (func() error, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	w := io.Writer(os.Stderr)
	closer := func() error { return nil }
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
		closer = f.Close
	}

	outMu.Lock()
	out = w
	outMu.Unlock()

	log.SetDefault(log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Formatter:       log.TextFormatter,
		Level:           lvl,
	}))
	return closer, nil
}

func output() io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	return out
}
