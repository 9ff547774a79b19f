package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic and logs it with structured logging.
//
// Usage in defer statements:
//
//	defer observability.RecoverPanic(logger, "webhook dispatch")
//
// After logging, the panic is NOT re-raised. A panicking reconciliation or
// dispatch must not take the whole service down; the full-resync design means
// the next trigger converges regardless.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
