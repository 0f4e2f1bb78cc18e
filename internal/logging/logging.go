// (c) 2024-2025, Stratus Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package logging wires the process-wide go-ethereum logger: a colored
// terminal stream, or a rotating logfmt file when one is configured.
package logging

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/exp/slog"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the process log setup.
type Config struct {
	Verbosity string // trace, debug, info, warn, error, crit
	File      string // rotating log file; empty means terminal only
	MaxSizeMB int    // per-file cap before rotation
	MaxFiles  int    // rotated files kept around
}

// Setup installs the root log handler. Colors are used when stderr is a
// terminal.
func Setup(cfg Config) error {
	level, err := levelFromString(cfg.Verbosity)
	if err != nil {
		return err
	}
	var handler slog.Handler
	if cfg.File != "" {
		sink := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxFiles,
			Compress:   true,
		}
		handler = log.LogfmtHandlerWithLevel(sink, level)
	} else {
		usecolor := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		var output io.Writer = os.Stderr
		if usecolor {
			output = colorable.NewColorableStderr()
		}
		handler = log.NewTerminalHandlerWithLevel(output, level, usecolor)
	}
	log.SetDefault(log.NewLogger(handler))
	return nil
}

func levelFromString(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}
