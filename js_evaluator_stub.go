//go:build !js_eval

package starmap

// NewJSEvaluator needs the js_eval build tag. Without it the options are
// still validated and nil is returned, which queries report as
// ErrNoEvaluator.
func NewJSEvaluator(opts ...JSEvaluatorOption) Evaluator {
	applyJSEvaluatorOptions(opts)
	return nil
}

func jsEvaluatorAvailable() bool { return false }
