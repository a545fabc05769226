package native

import (
	"log/slog"
	"sync/atomic"
)

// discard is the logger in effect until a Device receives one.
var discard = slog.New(slog.DiscardHandler)

// current is shared by every Device in the process.
var current atomic.Pointer[slog.Logger]

// slogger returns the logger for native log output, never nil.
func slogger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return discard
}

// setLogger installs l; nil restores silence.
func setLogger(l *slog.Logger) {
	current.Store(l)
}
