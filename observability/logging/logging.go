package logging

import (
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

// Option adjusts the logger built by Setup.
type Option func(*options)

type options struct {
	out   io.Writer
	level slog.Level
}

// WithWriter redirects log output, e.g. to a rotating file.
func WithWriter(w io.Writer) Option {
	return func(o *options) {
		if w != nil {
			o.out = w
		}
	}
}

// WithLevel raises or lowers the minimum emitted level.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// Setup configures structured JSON logging and returns the base slog.Logger.
// Every line carries the service name and, when provided, the environment.
// The standard library logger is bridged so legacy call sites keep working.
func Setup(service, env string, opts ...Option) *slog.Logger {
	o := &options{out: os.Stdout, level: slog.LevelInfo}
	for _, opt := range opts {
		opt(o)
	}

	handler := slog.NewJSONHandler(o.out, &slog.HandlerOptions{
		Level: o.level,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				return slog.Attr{Key: "timestamp", Value: attr.Value}
			case slog.LevelKey:
				return slog.String("severity", strings.ToUpper(attr.Value.String()))
			case slog.MessageKey:
				return slog.Attr{Key: "message", Value: attr.Value}
			}
			return attr
		},
	})

	attrs := []slog.Attr{slog.String("service", strings.TrimSpace(service))}
	if env = strings.TrimSpace(env); env != "" {
		attrs = append(attrs, slog.String("env", env))
	}

	withArgs := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		withArgs = append(withArgs, attr)
	}

	base := slog.New(handler).With(withArgs...)
	slog.SetDefault(base)

	stdBridge := slog.NewLogLogger(handler.WithAttrs(attrs), slog.LevelInfo)
	stdBridge.SetFlags(0)
	log.SetOutput(stdBridge.Writer())
	log.SetFlags(0)
	log.SetPrefix("")

	return base
}
