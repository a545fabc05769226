package gpures

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// nopHandler drops every record. Enabled reports false, so slog skips
// building records for a silent gpures.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger returns the silent default logger.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr holds the package logger; SetLogger swaps it atomically.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	loggerPtr.Store(newNopLogger())
}

// live tracks open instances so SetLogger reaches their devices.
var (
	liveMu sync.Mutex
	live   = make(map[*Instance]struct{})
)

// SetLogger configures the logger for gpures and all its sub-packages.
// By default, gpures produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger
// atomically. Pass nil to disable logging (restore default silent
// behavior). Devices of open instances that accept a logger receive it
// too, unless the instance was given its own logger with WithLogger.
//
// Log levels used by gpures:
//   - [slog.LevelDebug]: cache hits and misses, resolution and replay counts
//   - [slog.LevelInfo]: instance creation and backend selection
//   - [slog.LevelWarn]: non-fatal issues (resource release errors)
//
// Example:
//
//	gpures.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)

	liveMu.Lock()
	defer liveMu.Unlock()
	for inst := range live {
		if !inst.ownLogger {
			propagateLogger(inst.device, l)
		}
	}
}

// Logger returns the package logger. It is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the logger to a device if it implements the
// loggerSetter interface.
func propagateLogger(dev any, l *slog.Logger) {
	if ls, ok := dev.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

func track(inst *Instance) {
	liveMu.Lock()
	live[inst] = struct{}{}
	liveMu.Unlock()
}

func untrack(inst *Instance) {
	liveMu.Lock()
	delete(live, inst)
	liveMu.Unlock()
}
