package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/go-pcan-server/internal/logging"
)

// setupLogger installs the process logger. The level was checked by validate,
// so a parse failure falls back to info.
func setupLogger(format, level string) *slog.Logger {
	lvl, _ := logging.ParseLevel(level)
	l := logging.New(format, lvl, os.Stderr).With("app", "pcan-server")
	logging.Set(l)
	return l
}
