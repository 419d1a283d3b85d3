package core

import "time"

// Logger is the logging surface the lighting packages depend on.
// umbra.DefaultLogger satisfies it.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type nopLogger struct{}

func NewNopLogger() Logger                          { return nopLogger{} }
func (nopLogger) Debugf(format string, args ...any) {}
func (nopLogger) Infof(format string, args ...any)  {}
func (nopLogger) Warnf(format string, args ...any)  {}
func (nopLogger) Errorf(format string, args ...any) {}

// Clock reports the current simulation time in milliseconds.
type Clock interface {
	NowMs() uint32
}

// SystemClock counts wall time from its creation.
type SystemClock struct {
	start time.Time
}

func NewSystemClock() *SystemClock { return &SystemClock{start: time.Now()} }

func (c *SystemClock) NowMs() uint32 { return uint32(time.Since(c.start).Milliseconds()) }

// ManualClock is a Clock driven by the caller. Used by the simulator and tests.
type ManualClock struct {
	Ms uint32
}

func (c *ManualClock) NowMs() uint32 { return c.Ms }

func (c *ManualClock) Advance(ms uint32) { c.Ms += ms }
