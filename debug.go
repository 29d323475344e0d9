package amqp

import (
	"log/slog"

	"github.com/yumeiwang/amqp-engine/internal/debug"
)

// RegisterLogger configures the engine's debug logger with the input slog.Handler h.
//
// By default, the debug logger uses a no-op handler and doesn't produce any log events.
func RegisterLogger(h slog.Handler) {
	debug.RegisterLogger(h)
}
