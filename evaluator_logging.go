package starmap

import (
	"time"

	"github.com/goliatone/go-starmap/diag"
)

// EvaluatorLogEvent describes one query evaluation against one system.
type EvaluatorLogEvent struct {
	Engine   string
	Expr     string
	System   string
	Matched  bool
	Duration time.Duration
	Err      error
}

// EvaluatorLogger records evaluator events.
type EvaluatorLogger interface {
	LogEvaluation(EvaluatorLogEvent)
}

// EvaluatorLoggerFunc adapts a function to EvaluatorLogger.
type EvaluatorLoggerFunc func(EvaluatorLogEvent)

// LogEvaluation implements EvaluatorLogger.
func (f EvaluatorLoggerFunc) LogEvaluation(event EvaluatorLogEvent) {
	if f != nil {
		f(event)
	}
}

type noopEvaluatorLogger struct{}

func (noopEvaluatorLogger) LogEvaluation(EvaluatorLogEvent) {}

// DiagnosticsEvaluatorLogger reports failed evaluations to sink as warnings.
// Successful evaluations are not reported.
func DiagnosticsEvaluatorLogger(sink diag.Sink) EvaluatorLogger {
	sink = diag.OrNop(sink)
	return EvaluatorLoggerFunc(func(event EvaluatorLogEvent) {
		if event.Err == nil {
			return
		}
		sink.Warn("query: evaluation failed",
			"engine", event.Engine,
			"expr", event.Expr,
			"system", event.System,
			"duration", event.Duration,
			"err", event.Err,
		)
	})
}

// QueryWithEvaluatorLogger attaches an evaluator logger to a query.
func QueryWithEvaluatorLogger(logger EvaluatorLogger) QueryOption {
	return func(cfg *queryConfig) {
		if logger == nil {
			cfg.logger = noopEvaluatorLogger{}
			return
		}
		cfg.logger = logger
	}
}
