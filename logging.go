package umbra

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the leveled printf logger used across umbra. It satisfies
// core.Logger, so it can be handed to every lighting package.
type Logger interface {
	DebugEnabled() bool
	SetDebug(enabled bool)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// DefaultLogger writes through zerolog. The component name is attached as
// a field on every event.
type DefaultLogger struct {
	debug atomic.Bool
	base  zerolog.Logger
	zl    zerolog.Logger
}

// NewDefaultLogger logs human readable lines to stderr.
func NewDefaultLogger(component string, debug bool) *DefaultLogger {
	return NewLogger(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}, component, debug)
}

// NewJSONLogger logs one JSON object per line to w.
func NewJSONLogger(w io.Writer, component string, debug bool) *DefaultLogger {
	return NewLogger(w, component, debug)
}

func NewLogger(w io.Writer, component string, debug bool) *DefaultLogger {
	return newComponentLogger(zerolog.New(w).With().Timestamp().Logger(), component, debug)
}

func newComponentLogger(base zerolog.Logger, component string, debug bool) *DefaultLogger {
	l := &DefaultLogger{base: base, zl: base}
	if component != "" {
		l.zl = base.With().Str("component", component).Logger()
	}
	l.SetDebug(debug)
	return l
}

// With returns a logger sharing the output with a different component.
func (l *DefaultLogger) With(component string) *DefaultLogger {
	return newComponentLogger(l.base, component, l.DebugEnabled())
}

// Zerolog exposes the underlying logger for structured fields.
func (l *DefaultLogger) Zerolog() *zerolog.Logger { return &l.zl }

func (l *DefaultLogger) DebugEnabled() bool { return l.debug.Load() }

func (l *DefaultLogger) SetDebug(enabled bool) { l.debug.Store(enabled) }

func (l *DefaultLogger) Debugf(format string, args ...any) {
	if !l.DebugEnabled() {
		return
	}
	l.zl.Debug().Msg(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Infof(format string, args ...any) {
	l.zl.Info().Msg(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Warnf(format string, args ...any) {
	l.zl.Warn().Msg(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Errorf(format string, args ...any) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

type nopLogger struct{}

func NewNopLogger() Logger { return &nopLogger{} }

func (n *nopLogger) DebugEnabled() bool                { return false }
func (n *nopLogger) SetDebug(enabled bool)             {}
func (n *nopLogger) Debugf(format string, args ...any) {}
func (n *nopLogger) Infof(format string, args ...any)  {}
func (n *nopLogger) Warnf(format string, args ...any)  {}
func (n *nopLogger) Errorf(format string, args ...any) {}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
