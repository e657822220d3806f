// Package logging sets up the structured logger carried in the context.
package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/lmittmann/tint"
	slogctx "github.com/veqryn/slog-context"
	"gitlab.com/tozd/go/errors"
)

// TimeFormat is the timestamp layout of log lines.
const TimeFormat = "15:04:05.000"

// ErrUnknownLevel is returned by ParseLevel for unsupported names.
var ErrUnknownLevel = errors.Base("unknown log level")

// ParseLevel maps debug, info, warn or error to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo, errors.Errorf("%w: %q", ErrUnknownLevel, name)
	}
	return l, nil
}

// New returns a tint logger writing to w, wrapped so that attributes added
// to the context with slogctx are included in every record.
func New(w io.Writer, level slog.Level, color bool) *slog.Logger {
	h := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: TimeFormat,
		NoColor:    !color,
	})
	return slog.New(slogctx.NewHandler(h, nil))
}

// WithLogger returns ctx carrying a new logger, as built by New.
func WithLogger(ctx context.Context, w io.Writer, level slog.Level, color bool) (context.Context, *slog.Logger) {
	logger := New(w, level, color)
	return slogctx.NewCtx(ctx, logger), logger
}
