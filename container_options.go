package starmap

import (
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/goliatone/go-starmap/diag"
	"github.com/goliatone/go-starmap/pkg/activity"
	"github.com/goliatone/go-starmap/pkg/config"
)

// Option configures a Container.
type Option func(*containerConfig)

// Actor identifies who drives a container. Its ids are stamped on every
// activity event.
type Actor struct {
	ActorID  string
	UserID   string
	TenantID string
}

type containerConfig struct {
	diag             diag.Sink
	clock            clock.Clock
	window           time.Duration
	activityHooks    activity.Hooks
	activityChannel  string
	activityVerbs    []string
	actor            Actor
	sessionID        string
	defaults         Config
	newID            func() string
	engine           string
	programCacheSize int
	scriptTimeout    time.Duration
	query            []QueryOption
}

func applyOptions(opts []Option) containerConfig {
	cfg := containerConfig{
		diag:             diag.Nop(),
		clock:            clock.New(),
		window:           DefaultQuiescenceWindow,
		newID:            uuid.NewString,
		programCacheSize: DefaultProgramCacheSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// WithDiagnostics routes container diagnostics to sink.
func WithDiagnostics(sink diag.Sink) Option {
	return func(cfg *containerConfig) {
		cfg.diag = diag.OrNop(sink)
	}
}

// WithClock injects the clock used for the quiescence timer and job
// timestamps.
func WithClock(clk clock.Clock) Option {
	return func(cfg *containerConfig) {
		if clk != nil {
			cfg.clock = clk
		}
	}
}

// WithQuiescenceWindow overrides DefaultQuiescenceWindow.
func WithQuiescenceWindow(window time.Duration) Option {
	return func(cfg *containerConfig) {
		if window > 0 {
			cfg.window = window
		}
	}
}

// Config layer names reported by Container.ConfigOrigin.
const (
	ConfigSourceHost     = "host"
	ConfigSourceDefaults = "defaults"
)

// WithConfigDefaults layers the host config passed to New over defaults.
// Keys set by the host win; nested maps merge per key.
func WithConfigDefaults(defaults Config) Option {
	return func(cfg *containerConfig) {
		cfg.defaults = defaults
	}
}

// WithActor attributes activity events to actor.
func WithActor(actor Actor) Option {
	return func(cfg *containerConfig) {
		cfg.actor = actor
	}
}

// WithSessionID tags activity events with the editor session id.
func WithSessionID(id string) Option {
	return func(cfg *containerConfig) {
		cfg.sessionID = id
	}
}

// WithIDGenerator replaces uuid.NewString for editor job ids.
func WithIDGenerator(fn func() string) Option {
	return func(cfg *containerConfig) {
		if fn != nil {
			cfg.newID = fn
		}
	}
}

// WithQueryOptions applies opts to every QuerySystems call.
func WithQueryOptions(opts ...QueryOption) Option {
	return func(cfg *containerConfig) {
		cfg.query = append(cfg.query, opts...)
	}
}

// WithSettings applies loaded settings: the quiescence window and the query
// defaults (engine, program cache size, script timeout).
func WithSettings(settings *config.Settings) Option {
	return func(cfg *containerConfig) {
		if settings == nil {
			return
		}
		if settings.Scheduler.Window > 0 {
			cfg.window = settings.Scheduler.Window
		}
		if settings.Query.Engine != "" {
			cfg.engine = settings.Query.Engine
		}
		if settings.Query.ProgramCacheSize > 0 {
			cfg.programCacheSize = settings.Query.ProgramCacheSize
		}
		if settings.Query.ScriptTimeout > 0 {
			cfg.scriptTimeout = settings.Query.ScriptTimeout
		}
	}
}

// queryOptions puts the container defaults first so per-call options win.
func (cfg containerConfig) queryOptions() []QueryOption {
	opts := []QueryOption{
		QueryWithProgramCache(NewLRUProgramCache(cfg.programCacheSize)),
		QueryWithEvaluatorLogger(DiagnosticsEvaluatorLogger(cfg.diag)),
		QueryWithFunctionRegistry(NewMapFunctionRegistry()),
	}
	if cfg.engine != "" {
		opts = append(opts, QueryWithEngine(cfg.engine))
	}
	if cfg.scriptTimeout > 0 {
		opts = append(opts, QueryWithScriptTimeout(cfg.scriptTimeout))
	}
	return append(opts, cfg.query...)
}
