// Package observability provides structured logging with redaction support.
package observability

import (
	"io"
	"log/slog"
)

// LoggerConfig contains configuration for the logger.
type LoggerConfig struct {
	Level      slog.Level
	Output     io.Writer
	AddSource  bool
	JSONFormat bool
}

// NewLogger builds a slog.Logger whose handler masks sensitive values.
// The message and every string attribute pass through the redactor
// before reaching the sink; error attributes are flattened to their
// redacted string form. A nil redactor logs verbatim.
func NewLogger(cfg LoggerConfig, redactor *Redactor) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if redactor != nil {
		opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			switch a.Value.Kind() {
			case slog.KindString:
				a.Value = slog.StringValue(redactor.Redact(a.Value.String()))
			case slog.KindAny:
				if err, ok := a.Value.Any().(error); ok {
					a.Value = slog.StringValue(redactor.Redact(err.Error()))
				}
			}
			return a
		}
	}

	var handler slog.Handler
	if cfg.JSONFormat {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}
	return slog.New(handler)
}
