package logger

import (
	"log/slog"
)

// Leveled adapts slog to libraries that log key/value pairs at two levels,
// such as the cron runner. Their chatty info lines are demoted to debug.
type Leveled struct {
	base *slog.Logger
}

// New returns a Leveled logger tagged with component. A nil base discards.
func New(base *slog.Logger, component string) Leveled {
	if base == nil {
		base = slog.New(slog.DiscardHandler)
	}
	return Leveled{base: base.With("component", component)}
}

// Info logs at debug level.
func (l Leveled) Info(msg string, keysAndValues ...any) {
	l.base.Debug(msg, keysAndValues...)
}

// Error logs at error level with err attached.
func (l Leveled) Error(err error, msg string, keysAndValues ...any) {
	l.base.Error(msg, append(keysAndValues, "error", err)...)
}
