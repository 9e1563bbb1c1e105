package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/term"

	"winlib/pkg/config"
)

// newLogger creates the command logger. With no explicit format, output
// is text when w is a terminal and JSON otherwise. The level comes from
// WINLIB_LOG_LEVEL unless verbose forces debug.
func newLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	level, err := config.LogLevel(slog.LevelInfo)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = slog.LevelDebug
	}
	options := &slog.HandlerOptions{Level: level}

	if format == "" {
		format = "json"
		if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			format = "text"
		}
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(w, options)
	case "json":
		handler = slog.NewJSONHandler(w, options)
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}
	return slog.New(handler), nil
}
