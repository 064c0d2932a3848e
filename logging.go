package forward

import (
	"github.com/gekko3d/forward/logging"
)

type Logger = logging.Logger

func NewDefaultLogger(module string, debug bool) Logger {
	return logging.NewDefaultLogger(module, debug)
}

func NewNopLogger() Logger { return logging.NewNopLogger() }

// Logger returns the renderer's logger. Safe on a nil renderer; never
// returns nil.
func (r *Renderer) Logger() Logger {
	if r == nil || r.log == nil {
		return NewNopLogger()
	}
	return r.log
}

// SetLogger replaces the logger of the renderer and of the caches it owns.
func (r *Renderer) SetLogger(l Logger) {
	r.log = logging.OrNop(l)
	r.programs.SetLogger(r.log)
	r.builder.SetLogger(r.log)
	r.shadowBuilder.SetLogger(r.log)
}
