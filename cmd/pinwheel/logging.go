package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn or error)", s)
	}
	return level, nil
}

// newLogger builds the process logger. With format "auto" a terminal gets
// text output and anything else gets JSON.
func newLogger(w io.Writer, level, format string, isTerminal bool) (*slog.Logger, error) {
	lvl, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "auto", "":
		if isTerminal {
			return slog.New(slog.NewTextHandler(w, opts)), nil
		}
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (expected auto, text or json)", format)
	}
}

func stderrLogger() (*slog.Logger, error) {
	return newLogger(os.Stderr, logLevel, logFormat, term.IsTerminal(int(os.Stderr.Fd())))
}
