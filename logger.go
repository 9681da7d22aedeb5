package vizctx

import (
	"log/slog"

	"github.com/gogpu/vizctx/internal/xlog"
)

// SetLogger configures the logger for vizctx and all its sub-packages.
// By default, vizctx produces no log output. Call SetLogger to enable logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by vizctx:
//   - [slog.LevelDebug]: settings applied, quality tier transitions
//   - [slog.LevelInfo]: backend selected, contexts created and evicted
//   - [slog.LevelWarn]: fallback models, draw errors, unknown pool keys
//
// Example:
//
//	vizctx.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	xlog.Set(l)
}

// Logger returns the current logger used by vizctx.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return xlog.L()
}
