package core

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

const defaultLogPrefix = "Prism 🔷 "

// LogConfig drives the construction of the engine logger.
type LogConfig struct {
	Level  string `toml:"level"`
	Caller bool   `toml:"caller"`
	Prefix string `toml:"prefix"`
}

// NewLogger builds the logger shared by every engine component. There is no
// package level logger: callers own the returned value and pass it down.
func NewLogger(cfg LogConfig) (*log.Logger, error) {
	return newLogger(os.Stderr, cfg)
}

func newLogger(w io.Writer, cfg LogConfig) (*log.Logger, error) {
	level := log.DebugLevel
	if cfg.Level != "" {
		lvl, err := log.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: log level %q", ErrInvalidConfig, cfg.Level)
		}
		level = lvl
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = defaultLogPrefix
	}
	l := log.NewWithOptions(w, log.Options{
		ReportCaller:    cfg.Caller,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          prefix,
		Level:           level,
	})
	return l, nil
}

// DiscardLogger returns a logger that drops everything. Used by tests and by
// components constructed without an explicit logger.
func DiscardLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel + 1})
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return DiscardLogger()
	}
	return l
}
