// Package ankhalog provides the VM's structured logging. It wraps logrus
// the way the Synnergy core's component logger does: one *logrus.Entry
// carries fixed fields (module, function, op) through a call, so every
// line a single Context invocation emits can be filtered back out.
//
// Logging here is purely informational: the evaluator's control flow is
// always governed by the return value of an operation, never by a log
// call, and a nil/disabled Logger silently drops everything.
package ankhalog

import "github.com/sirupsen/logrus"

// Logger is a thin façade over a *logrus.Entry, scoped to one Context.
type Logger struct {
	entry *logrus.Entry
}

// New builds a root logger at the given level.
func New(level logrus.Level) *Logger {
	base := logrus.New()
	if level >= 0 {
		base.SetLevel(level)
	}
	return &Logger{entry: logrus.NewEntry(base)}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	base := logrus.New()
	base.SetOutput(discard{})
	return &Logger{entry: logrus.NewEntry(base)}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

// WithModule returns a child logger tagged with the current module name.
func (l *Logger) WithModule(module string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{entry: l.entry.WithField("module", module)}
}

// WithFunction returns a child logger tagged with the current function name.
func (l *Logger) WithFunction(function string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{entry: l.entry.WithField("function", function)}
}

// WithOp returns a child logger tagged with the operation being evaluated.
func (l *Logger) WithOp(op string) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{entry: l.entry.WithField("op", op)}
}

// Debugf logs at debug level. Safe to call on a nil *Logger.
func (l *Logger) Debugf(format string, args ...any) {
	if l == nil {
		return
	}
	l.entry.Debugf(format, args...)
}

// Errorf logs at error level, typically right before a fatal abort is
// returned to the host. Safe to call on a nil *Logger.
func (l *Logger) Errorf(format string, args ...any) {
	if l == nil {
		return
	}
	l.entry.Errorf(format, args...)
}
