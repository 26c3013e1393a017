// Package logging builds the leveled stderr loggers used across the runner.
// Stdout is reserved for the protocol stream.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to stderr with the given prefix.
func New(prefix string) *log.Logger {
	return NewWriter(os.Stderr, prefix)
}

// NewWriter returns a logger writing to w with the given prefix.
func NewWriter(w io.Writer, prefix string) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
	})
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

// SetLevel parses level ("debug", "info", "warn", "error") and applies it.
// An unknown level leaves the logger at info.
func SetLevel(l *log.Logger, level string) error {
	if strings.TrimSpace(level) == "" {
		l.SetLevel(log.InfoLevel)
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		l.SetLevel(log.InfoLevel)
		return err
	}
	l.SetLevel(lvl)
	return nil
}
