package kernel

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// NewLogger builds a console-rendered zerolog.Logger writing to w, the
// level scheme the rest of this module expects: Debug for scheduling
// internals (context switches, thread creation), Info for process
// lifecycle (exit, policy changes), Warn for recoverable syscall
// failures. Grounded on the teacher's own logging setup
// (_examples/joeycumines-go-utilpkg uses zerolog throughout for exactly
// this density split), generalized from request-scoped fields to
// kernel-scoped ones.
func NewLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}).
		Level(level).
		With().
		Timestamp().
		Str("component", "kernel").
		Logger()
}

// NewDiscardLogger returns a logger that drops everything, the default
// a Config starts from, matching eventloop's own zerolog.Nop() default
// for callers that haven't opted into diagnostics.
func NewDiscardLogger() zerolog.Logger {
	return zerolog.Nop()
}
