package diag

import (
	"fmt"
	"io"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// LogSink writes diagnostics through a charmbracelet logger.
type LogSink struct {
	logger *charmlog.Logger
}

// NewLogSink wraps logger. A nil logger falls back to NewLogger(os.Stderr).
func NewLogSink(logger *charmlog.Logger) *LogSink {
	if logger == nil {
		logger = NewLogger(os.Stderr)
	}
	return &LogSink{logger: logger}
}

// NewLogger builds the default structured logger used by the sink.
func NewLogger(w io.Writer) *charmlog.Logger {
	return charmlog.NewWithOptions(w, charmlog.Options{
		Prefix:          "starmap",
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Level:           charmlog.InfoLevel,
	})
}

// NewLeveledLogger is NewLogger dropping entries below level ("debug",
// "info", "warn" or "error").
func NewLeveledLogger(w io.Writer, level string) (*charmlog.Logger, error) {
	parsed, err := charmlog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("diag: %w", err)
	}
	logger := NewLogger(w)
	logger.SetLevel(parsed)
	return logger, nil
}

func (s *LogSink) Info(msg string, keyvals ...any) {
	s.logger.Info(msg, keyvals...)
}

func (s *LogSink) Warn(msg string, keyvals ...any) {
	s.logger.Warn(msg, keyvals...)
}

func (s *LogSink) Error(msg string, err error, keyvals ...any) {
	if err != nil {
		keyvals = append([]any{"err", err}, keyvals...)
	}
	s.logger.Error(msg, keyvals...)
}

func (s *LogSink) CriticalWithFallback(msg string, err error, fallback func() any) any {
	s.Error(msg, err, "fallback", fallback != nil)
	return runFallback(fallback, func(panicErr error) {
		s.logger.Error("fallback failed", "err", panicErr, "cause", msg)
	})
}

func (s *LogSink) Validate(condition bool, msg string) bool {
	if !condition {
		s.logger.Warn(msg, "check", "validate")
	}
	return condition
}
