package starmap

import (
	"fmt"
	"strings"
	"time"
)

// Query engine names accepted by QueryWithEngine.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
	EngineJS   = "js"
)

// QueryOption configures FilterSystems.
type QueryOption func(*queryConfig)

type queryConfig struct {
	engine       string
	evaluator    Evaluator
	programCache ProgramCache
	functions    *FunctionRegistry
	logger       EvaluatorLogger
	args         map[string]any
	now          *time.Time
	timeout      time.Duration
}

func applyQueryOptions(opts []QueryOption) queryConfig {
	cfg := queryConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// QueryWithEngine selects a built-in engine by name. The js engine needs the
// js_eval build tag.
func QueryWithEngine(engine string) QueryOption {
	return func(cfg *queryConfig) {
		cfg.engine = strings.ToLower(strings.TrimSpace(engine))
	}
}

// QueryWithEvaluator uses evaluator instead of a built-in engine.
func QueryWithEvaluator(evaluator Evaluator) QueryOption {
	return func(cfg *queryConfig) {
		cfg.evaluator = evaluator
	}
}

// QueryWithArgs binds args to the "args" variable.
func QueryWithArgs(args map[string]any) QueryOption {
	return func(cfg *queryConfig) {
		cfg.args = args
	}
}

// QueryWithNow pins the "now" binding.
func QueryWithNow(now time.Time) QueryOption {
	return func(cfg *queryConfig) {
		cfg.now = &now
	}
}

// QueryWithScriptTimeout bounds each JS evaluation. Other engines ignore it.
func QueryWithScriptTimeout(timeout time.Duration) QueryOption {
	return func(cfg *queryConfig) {
		cfg.timeout = timeout
	}
}

func (cfg queryConfig) evaluatorLogger() EvaluatorLogger {
	if cfg.logger != nil {
		return cfg.logger
	}
	return noopEvaluatorLogger{}
}

func (cfg queryConfig) resolveEvaluator() (Evaluator, error) {
	if cfg.evaluator != nil {
		return cfg.evaluator, nil
	}
	var evaluator Evaluator
	switch cfg.engine {
	case "", EngineExpr:
		var exprOpts []ExprEvaluatorOption
		if cfg.programCache != nil {
			exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
		}
		if cfg.functions != nil {
			exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
		}
		evaluator = NewExprEvaluator(exprOpts...)
	case EngineCEL:
		evaluator = NewCELEvaluator(
			CELWithProgramCache(cfg.programCache),
			CELWithFunctionRegistry(cfg.functions),
		)
	case EngineJS:
		if !jsEvaluatorAvailable() {
			return nil, fmt.Errorf("%w: js engine requires the js_eval build tag", ErrNoEvaluator)
		}
		evaluator = NewJSEvaluator(
			JSWithProgramCache(cfg.programCache),
			JSWithFunctionRegistry(cfg.functions),
			JSWithTimeout(cfg.timeout),
		)
	default:
		return nil, fmt.Errorf("%w: unknown engine %q", ErrNoEvaluator, cfg.engine)
	}
	if evaluator == nil {
		return nil, ErrNoEvaluator
	}
	return evaluator, nil
}

// FilterSystems returns the sorted ids of the systems in ds for which
// expression evaluates to true. The expression is compiled once. The first
// evaluation error, or a non-boolean result, aborts the query.
func FilterSystems(ds *Dataset, expression string, opts ...QueryOption) ([]string, error) {
	if strings.TrimSpace(expression) == "" {
		return nil, fmt.Errorf("starmap: query expression must not be empty")
	}
	cfg := applyQueryOptions(opts)
	evaluator, err := cfg.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	engine := evaluatorEngineName(evaluator)
	logger := cfg.evaluatorLogger()

	rule, err := evaluator.Compile(expression)
	if err != nil {
		err = wrapEvaluationError(engine, expression, "", err)
		logger.LogEvaluation(EvaluatorLogEvent{Engine: engine, Expr: expression, Err: err})
		return nil, err
	}

	matches := []string{}
	for _, id := range ds.IDs() {
		ctx := RuleContext{
			Snapshot: SystemBinding(ds.Systems[id]),
			Now:      cfg.now,
			Args:     cfg.args,
			System:   id,
		}.withDefaults()

		start := time.Now()
		value, evalErr := rule.Evaluate(ctx)
		duration := time.Since(start)
		matched, isBool := value.(bool)
		if evalErr == nil && !isBool {
			evalErr = fmt.Errorf("%w: got %s", ErrQueryNotBoolean, describeType(value))
		}
		evalErr = wrapEvaluationError(engine, expression, id, evalErr)
		logger.LogEvaluation(EvaluatorLogEvent{
			Engine:   engine,
			Expr:     expression,
			System:   id,
			Matched:  matched,
			Duration: duration,
			Err:      evalErr,
		})
		if evalErr != nil {
			return nil, evalErr
		}
		if matched {
			matches = append(matches, id)
		}
	}
	return matches, nil
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	switch fmt.Sprintf("%T", e) {
	case "*starmap.exprEvaluator":
		return EngineExpr
	case "*starmap.celEvaluator":
		return EngineCEL
	case "*starmap.jsEvaluator":
		return EngineJS
	default:
		return "custom"
	}
}
