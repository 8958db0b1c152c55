// Package logging provides the two logging surfaces the server needs:
// an operational slog logger for process lifecycle and error paths, and
// a domain logger (see domainlog.go) for the request/state-transition
// trail clients and operators depend on in a fixed textual format.
package logging

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// NewOperationalLogger returns the slog logger used for startup, shutdown,
// and recovered-panic diagnostics. It is deliberately separate from the
// Domain logger: this one's format is free to evolve, the domain log's is not.
func NewOperationalLogger(level slog.Leveler) *slog.Logger {
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
		AddSource:  true,
	}))

	slog.SetDefault(logger)
	return logger
}
