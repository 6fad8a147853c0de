// Package cmd implements the CLI command trees for paramd's two
// binaries: the paramd server and the paramctl client. A shared package
// holding flags and logging setup, consumed by a thin main.go per
// binary, follows the teacher's cmd/root.go + root-level main.go split.
package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"paramd/config"
	"paramd/logging"
)

// Version is set at build time.
var Version = "0.1.0"

// setupLogging builds and installs the process-wide default logger from
// cfg, the way the teacher's cmd/root.go wires its log flags into
// logging.SetDefault.
func setupLogging(cfg config.Config) *slog.Logger {
	logger := logging.NewLogger(logging.Config{
		Level:  logging.ParseLevel(strings.ToLower(cfg.LogLevel)),
		Format: cfg.LogFormat,
	})
	logging.SetDefault(logger)
	return logger
}

// signalContext returns a context that cancels on SIGINT/SIGTERM.
func signalContext() context.Context {
	ctx, _ := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return ctx
}
