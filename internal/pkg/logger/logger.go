package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

type contextKey string

// RunIDKey is the context key for pipeline run ids.
const RunIDKey contextKey = "run_id"

// Logger wraps slog.Logger with run-scoped helpers.
type Logger struct {
	*slog.Logger
}

type Config struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string
	// Format is json or text.
	Format string
	// Output defaults to os.Stderr so stdout stays free for command output.
	Output      io.Writer
	ServiceName string
}

func DefaultConfig() Config {
	return Config{
		Level:       getenv("LOG_LEVEL", "info"),
		Format:      getenv("LOG_FORMAT", "text"),
		Output:      os.Stderr,
		ServiceName: "topiccut",
	}
}

func New(cfg Config) *Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		h = slog.NewTextHandler(cfg.Output, opts)
	}
	if cfg.ServiceName != "" {
		h = h.WithAttrs([]slog.Attr{slog.String("service", cfg.ServiceName)})
	}
	return &Logger{Logger: slog.New(h)}
}

func NewDefault() *Logger { return New(DefaultConfig()) }

// Nop discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("component", component))}
}

func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{Logger: l.Logger.With(slog.String("run_id", runID))}
}

func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return &Logger{Logger: l.Logger.With(slog.String("error", err.Error()))}
}

func (l *Logger) WithFields(fields map[string]any) *Logger {
	attrs := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	return &Logger{Logger: l.Logger.With(attrs...)}
}

// FromContext attaches the run id stored in ctx, if any.
func (l *Logger) FromContext(ctx context.Context) *Logger {
	if id, ok := ctx.Value(RunIDKey).(string); ok && id != "" {
		return l.WithRunID(id)
	}
	return l
}

func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}
