package starmap

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"
	"sync"
)

// Function is a custom query function. Names are case-insensitive.
type Function func(args ...any) (any, error)

// FunctionRegistry holds the functions queries may call.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]Function
}

// NewFunctionRegistry returns an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{}}
}

// NewMapFunctionRegistry returns a registry preloaded with the map helpers:
//
//	distance(a, b)          euclidean distance between two coords
//	within(coords, x, y, r) whether coords lie within r of (x, y)
func NewMapFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{functions: map[string]Function{
		"distance": distanceFunction,
		"within":   withinFunction,
	}}
}

// Register adds fn under name. Registering a taken name is an error; use
// Replace to override a built-in.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	return r.store(name, fn, false)
}

// Replace adds fn under name, overriding any existing function.
func (r *FunctionRegistry) Replace(name string, fn Function) error {
	return r.store(name, fn, true)
}

func (r *FunctionRegistry) store(name string, fn Function, replace bool) error {
	key := strings.ToLower(strings.TrimSpace(name))
	switch {
	case key == "":
		return fmt.Errorf("starmap: function name must not be empty")
	case fn == nil:
		return fmt.Errorf("starmap: function %q is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = map[string]Function{}
	}
	if _, taken := r.functions[key]; taken && !replace {
		return fmt.Errorf("starmap: function %q already registered", name)
	}
	r.functions[key] = fn
	return nil
}

// Clone returns an independent registry with the same functions.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	functions := maps.Clone(r.functions)
	if functions == nil {
		functions = map[string]Function{}
	}
	return &FunctionRegistry{functions: functions}
}

// Call runs the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("starmap: function registry is nil")
	}
	r.mu.RLock()
	fn := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if fn == nil {
		return nil, fmt.Errorf("starmap: function %q not registered", name)
	}
	return fn(args...)
}

// Names returns the registered names in sorted order.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.functions))
}

// QueryWithFunctionRegistry makes registry's functions available to a query.
func QueryWithFunctionRegistry(registry *FunctionRegistry) QueryOption {
	return func(cfg *queryConfig) {
		if registry != nil {
			cfg.functions = registry.Clone()
		}
	}
}

// QueryWithCustomFunction adds fn for a single query, overriding a function
// of the same name.
func QueryWithCustomFunction(name string, fn Function) QueryOption {
	return func(cfg *queryConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Replace(name, fn)
	}
}

func distanceFunction(args ...any) (any, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("starmap: distance expects 2 arguments, got %d", len(args))
	}
	a, err := coordsArgument(args[0])
	if err != nil {
		return nil, err
	}
	b, err := coordsArgument(args[1])
	if err != nil {
		return nil, err
	}
	return math.Hypot(a.X()-b.X(), a.Y()-b.Y()), nil
}

func withinFunction(args ...any) (any, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("starmap: within expects 4 arguments, got %d", len(args))
	}
	list, ok := args[0].([]float64)
	if ok && len(list) == 0 {
		return false, nil
	}
	point, err := coordsArgument(args[0])
	if err != nil {
		return nil, err
	}
	var center Coords
	for i, arg := range args[1:3] {
		value, ok := toFloat(arg)
		if !ok {
			return nil, fmt.Errorf("starmap: within: %s is not a number", describeType(arg))
		}
		center[i] = value
	}
	radius, ok := toFloat(args[3])
	if !ok {
		return nil, fmt.Errorf("starmap: within: radius %s is not a number", describeType(args[3]))
	}
	return math.Hypot(point.X()-center.X(), point.Y()-center.Y()) <= radius, nil
}

func coordsArgument(value any) (Coords, error) {
	coords, err := parseCoords(value)
	if err != nil {
		return Coords{}, fmt.Errorf("starmap: %w", err)
	}
	return coords, nil
}
