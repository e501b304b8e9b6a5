package athina

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
)

// Logger is a printf-style logger such as *log.Logger.
type Logger interface {
	Printf(format string, v ...any)
}

// StructuredLogger provides leveled, structured logging for the SDK.
// Arguments after msg are alternating key/value pairs.
//
//	client, _ := athina.New(key,
//	    athina.WithLogger(athina.NewSlogAdapter(slog.Default())),
//	)
type StructuredLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// fallbackLogger writes warnings and errors to stderr. It is used when no
// logger is configured so pipeline failures are never silently dropped.
var fallbackLogger StructuredLogger = newDefaultLogger(false)

func newDefaultLogger(debug bool) StructuredLogger {
	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return NewSlogAdapter(slog.New(h).With("sdk", "athina"))
}

// printfLoggerWrapper wraps a printf-style logger to implement StructuredLogger.
type printfLoggerWrapper struct {
	logger Logger
}

// WrapPrintfLogger wraps a printf-style Logger (like *log.Logger) so it can
// be used as a StructuredLogger. Key/value pairs are appended to the line.
func WrapPrintfLogger(l Logger) StructuredLogger {
	return &printfLoggerWrapper{logger: l}
}

// WrapStdLogger is WrapPrintfLogger for a *log.Logger.
func WrapStdLogger(l *log.Logger) StructuredLogger {
	return &printfLoggerWrapper{logger: l}
}

func (w *printfLoggerWrapper) Debug(msg string, args ...any) {
	w.logger.Printf("[DEBUG] %s%s", msg, formatArgs(args))
}

func (w *printfLoggerWrapper) Info(msg string, args ...any) {
	w.logger.Printf("[INFO] %s%s", msg, formatArgs(args))
}

func (w *printfLoggerWrapper) Warn(msg string, args ...any) {
	w.logger.Printf("[WARN] %s%s", msg, formatArgs(args))
}

func (w *printfLoggerWrapper) Error(msg string, args ...any) {
	w.logger.Printf("[ERROR] %s%s", msg, formatArgs(args))
}

// formatArgs formats structured logging arguments as " | k=v k=v".
func formatArgs(args []any) string {
	if len(args) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(" |")
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return b.String()
}

// NopLogger discards all log messages.
type NopLogger struct{}

// Debug implements StructuredLogger.
func (NopLogger) Debug(msg string, args ...any) {}

// Info implements StructuredLogger.
func (NopLogger) Info(msg string, args ...any) {}

// Warn implements StructuredLogger.
func (NopLogger) Warn(msg string, args ...any) {}

// Error implements StructuredLogger.
func (NopLogger) Error(msg string, args ...any) {}

var (
	_ StructuredLogger = NopLogger{}
	_ StructuredLogger = (*printfLoggerWrapper)(nil)
	_ StructuredLogger = (*SlogAdapter)(nil)
	_ StructuredLogger = (*ZapAdapter)(nil)
)

// SlogAdapter adapts a *slog.Logger to StructuredLogger.
type SlogAdapter struct {
	logger *slog.Logger
}

// NewSlogAdapter wraps logger. A nil logger means slog.Default().
func NewSlogAdapter(logger *slog.Logger) *SlogAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogAdapter{logger: logger}
}

// Debug implements StructuredLogger.
func (a *SlogAdapter) Debug(msg string, args ...any) { a.logger.Debug(msg, args...) }

// Info implements StructuredLogger.
func (a *SlogAdapter) Info(msg string, args ...any) { a.logger.Info(msg, args...) }

// Warn implements StructuredLogger.
func (a *SlogAdapter) Warn(msg string, args ...any) { a.logger.Warn(msg, args...) }

// Error implements StructuredLogger.
func (a *SlogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }

// With returns an adapter with the given attributes added.
func (a *SlogAdapter) With(args ...any) *SlogAdapter {
	return &SlogAdapter{logger: a.logger.With(args...)}
}

// ZapAdapter adapts a *zap.Logger to StructuredLogger using the sugared
// key/value API.
//
//	zl, _ := zap.NewProduction()
//	client, _ := athina.New(key, athina.WithLogger(athina.NewZapAdapter(zl)))
type ZapAdapter struct {
	logger *zap.SugaredLogger
}

// NewZapAdapter wraps logger. A nil logger means zap.NewNop().
func NewZapAdapter(logger *zap.Logger) *ZapAdapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapAdapter{logger: logger.Sugar()}
}

// Debug implements StructuredLogger.
func (a *ZapAdapter) Debug(msg string, args ...any) { a.logger.Debugw(msg, args...) }

// Info implements StructuredLogger.
func (a *ZapAdapter) Info(msg string, args ...any) { a.logger.Infow(msg, args...) }

// Warn implements StructuredLogger.
func (a *ZapAdapter) Warn(msg string, args ...any) { a.logger.Warnw(msg, args...) }

// Error implements StructuredLogger.
func (a *ZapAdapter) Error(msg string, args ...any) { a.logger.Errorw(msg, args...) }

// MaskAPIKey masks a key for safe logging, keeping only the last 4
// characters visible.
//
//	MaskAPIKey("athina-1234567890abcd") => "*****************abcd"
func MaskAPIKey(s string) string {
	const visibleSuffix = 4
	if s == "" {
		return ""
	}
	if len(s) <= visibleSuffix {
		return "****"
	}
	return strings.Repeat("*", len(s)-visibleSuffix) + s[len(s)-visibleSuffix:]
}
