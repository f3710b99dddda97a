// Package log provides the contextual, leveled logging calls used
// throughout this repository (Infof, Warningf, Errorf, VEventf), matching
// the ctx-first printf-style convention the storage and bulk-ingest code
// is written against. It is a thin layer over zerolog: the global Logger
// does the actual formatting and writing, while the package-level
// functions attach whatever fields the calling context carries.
package log

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. Init replaces it; until Init is
// called it writes human-readable output to stderr at info level, so
// tests and short-lived commands don't need to call Init first.
var Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
	With().Timestamp().Logger()

// Verbosity gates VEventf: a VEventf call at level n only logs when the
// configured verbosity is >= n. It has no effect on Infof/Warningf/Errorf.
var Verbosity int

// Config controls Init.
type Config struct {
	Level      zerolog.Level
	JSONOutput bool
	Verbosity  int
	Output     *os.File
}

// Init installs the process-wide logger per cfg. Components that never
// call Init still log, via the package's zero-value default above.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	zerolog.SetGlobalLevel(cfg.Level)
	Verbosity = cfg.Verbosity
	if cfg.JSONOutput {
		Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}
	Logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

type ctxFieldsKey struct{}

// WithFields returns a context whose logging calls will carry the given
// key/value pairs, the way a request-scoped region or peer ID gets
// attached once and threaded through subsequent log calls.
func WithFields(ctx context.Context, fields map[string]interface{}) context.Context {
	merged := fieldsFromContext(ctx)
	next := make(map[string]interface{}, len(merged)+len(fields))
	for k, v := range merged {
		next[k] = v
	}
	for k, v := range fields {
		next[k] = v
	}
	return context.WithValue(ctx, ctxFieldsKey{}, next)
}

func fieldsFromContext(ctx context.Context) map[string]interface{} {
	if ctx == nil {
		return nil
	}
	if v, ok := ctx.Value(ctxFieldsKey{}).(map[string]interface{}); ok {
		return v
	}
	return nil
}

func event(ctx context.Context, e *zerolog.Event, format string, args ...interface{}) {
	for k, v := range fieldsFromContext(ctx) {
		e = e.Interface(k, v)
	}
	e.Msgf(format, args...)
}

// Infof logs at info level.
func Infof(ctx context.Context, format string, args ...interface{}) {
	event(ctx, Logger.Info(), format, args...)
}

// Warningf logs at warn level.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	event(ctx, Logger.Warn(), format, args...)
}

// Errorf logs at error level.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	event(ctx, Logger.Error(), format, args...)
}

// VEventf logs at debug level if the configured verbosity is at least
// level, mirroring the original's leveled debug!/trace! call sites.
func VEventf(ctx context.Context, level int, format string, args ...interface{}) {
	if level > Verbosity {
		return
	}
	event(ctx, Logger.Debug(), format, args...)
}
