package starmap

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoEvaluator indicates no query engine could be resolved.
	ErrNoEvaluator = errors.New("starmap: evaluator not configured")
	// ErrQueryNotBoolean indicates a query returned something other than a bool.
	ErrQueryNotBoolean = errors.New("starmap: query result is not a boolean")
	// ErrScriptTimeout indicates a JS query was interrupted.
	ErrScriptTimeout = errors.New("starmap: script timed out")
)

// EvaluationError captures query metadata alongside the originating error.
type EvaluationError struct {
	Engine string
	Expr   string
	// System is the id being evaluated when the error occurred. Empty for
	// compile errors.
	System string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	system := e.System
	if system == "" {
		system = "-"
	}
	return fmt.Sprintf("starmap: %s query %s system=%s: %v", e.Engine, describeExpression(e.Expr), system, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "starmap:") {
		return err
	}
	return fmt.Errorf("starmap: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, system string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.System == "" {
			evalErr.System = system
		}
		return evalErr
	}

	return &EvaluationError{
		Engine: engine,
		Expr:   expr,
		System: system,
		Err:    err,
	}
}
