package starmap

import "time"

// RuleContext carries the inputs bound while a query expression runs
// against one system.
type RuleContext struct {
	// Snapshot is the system binding, see SystemBinding.
	Snapshot any
	Now      *time.Time
	Args     map[string]any
	Metadata map[string]any
	// System is the id of the system being evaluated.
	System string
}

func (ctx RuleContext) withDefaultNow() RuleContext {
	if ctx.Now != nil {
		return ctx
	}
	now := time.Now()
	ctx.Now = &now
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	ctx = ctx.withDefaultNow()
	return *ctx.Now
}

func (ctx RuleContext) withDefaultMaps() RuleContext {
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) withDefaults() RuleContext {
	return ctx.withDefaultNow().withDefaultMaps()
}

func (ctx RuleContext) systemLabel() string {
	if ctx.System != "" {
		return ctx.System
	}
	return "unknown"
}

// Evaluator executes query expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures evaluator compile behaviour.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct{}

// Names bound for every system, regardless of which base fields it carries.
const (
	bindID        = "id"
	bindName      = "name"
	bindFields    = "fields"
	bindCoords    = "coords"
	bindGrid      = "grid"
	bindSector    = "sector"
	bindHasCoords = "has_coords"
	bindHasGrid   = "has_grid"
	bindHasSector = "has_sector"
)

var systemBindingNames = []string{
	bindID, bindName, bindFields, bindCoords, bindGrid,
	bindSector, bindHasCoords, bindHasGrid, bindHasSector,
}

// SystemBinding exposes a canonical system to query expressions. Absent
// coords bind as an empty list, absent sector as "" and absent grid as nil;
// the has_* flags tell them apart from present values.
func SystemBinding(system System) map[string]any {
	fields := make(map[string]any, len(system.Fields))
	for key, value := range system.Fields {
		fields[key] = value
	}
	coords := []float64{}
	if c, ok := system.Coords.Get(); ok {
		coords = []float64{c.X(), c.Y()}
	}
	grid, hasGrid := system.Grid.Get()
	sector, hasSector := system.Sector.Get()
	return map[string]any{
		bindID:        system.ID,
		bindName:      system.Name(),
		bindFields:    fields,
		bindCoords:    coords,
		bindGrid:      grid,
		bindSector:    sector,
		bindHasCoords: system.Coords.Present(),
		bindHasGrid:   hasGrid,
		bindHasSector: hasSector,
	}
}
