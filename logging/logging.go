package logging

import (
	"io"
	"os"
	"sync"

	gologging "github.com/op/go-logging"
)

type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

const (
	terminalFormat = `%{color}%{time:15:04:05.000} %{module} %{level:.4s}%{color:reset} %{message}`
	plainFormat    = `%{module} %{level:.4s} %{message}`
)

// DefaultLogger routes through a go-logging backend owned by the logger, so
// several renderers in one process can carry independent levels.
type DefaultLogger struct {
	mu      sync.Mutex
	debug   bool
	module  string
	backend gologging.LeveledBackend
	log     *gologging.Logger
}

// NewDefaultLogger writes colored records to stderr.
func NewDefaultLogger(module string, debug bool) *DefaultLogger {
	return newLogger(os.Stderr, module, terminalFormat, debug)
}

// NewLogger writes uncolored records to w.
func NewLogger(w io.Writer, module string, debug bool) *DefaultLogger {
	return newLogger(w, module, plainFormat, debug)
}

func newLogger(w io.Writer, module, format string, debug bool) *DefaultLogger {
	if module == "" {
		module = "forward"
	}
	raw := gologging.NewLogBackend(w, "", 0)
	formatted := gologging.NewBackendFormatter(raw, gologging.MustStringFormatter(format))
	leveled := gologging.AddModuleLevel(formatted)

	l := &DefaultLogger{
		module:  module,
		backend: leveled,
		log:     gologging.MustGetLogger(module),
	}
	l.log.SetBackend(leveled)
	l.SetDebug(debug)
	return l
}

func (l *DefaultLogger) DebugEnabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.debug
}

func (l *DefaultLogger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	level := gologging.INFO
	if enabled {
		level = gologging.DEBUG
	}
	l.backend.SetLevel(level, l.module)
	l.mu.Unlock()
}

func (l *DefaultLogger) Debugf(format string, args ...any) {
	l.log.Debugf(format, args...)
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.log.Infof(format, args...)
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.log.Warningf(format, args...)
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.log.Errorf(format, args...)
}

type nopLogger struct{}

func NewNopLogger() Logger                             { return &nopLogger{} }
func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

// OrNop returns l, or a no-op logger when l is nil. Never returns nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return NewNopLogger()
	}
	return l
}
