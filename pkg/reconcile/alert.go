package reconcile

import "log/slog"

// Level classifies a user-facing notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Alerter receives user-visible notices from the engine. Failed commits are
// always surfaced through this interface, never swallowed; the UI decides
// how to render them (toast, inline message).
type Alerter interface {
	Alert(level Level, message string)
}

// AlertFunc adapts a function to the Alerter interface.
type AlertFunc func(level Level, message string)

// Alert calls f.
func (f AlertFunc) Alert(level Level, message string) {
	f(level, message)
}

// NopAlerter discards all notices. Useful in tests that assert state, not
// presentation.
var NopAlerter Alerter = AlertFunc(func(Level, string) {})

// LogAlerter routes notices to a logger. The default when no Alerter is
// configured, so errors stay visible even without a UI binding.
func LogAlerter(logger *slog.Logger) Alerter {
	return AlertFunc(func(level Level, message string) {
		switch level {
		case LevelError:
			logger.Error(message)
		case LevelWarning:
			logger.Warn(message)
		default:
			logger.Info(message)
		}
	})
}
