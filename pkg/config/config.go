// Package config loads starmap runtime settings from struct defaults,
// STARMAP_* environment variables and explicit overrides, in that order.
package config

import (
	"time"
)

// EnvPrefix is stripped from environment variables before they are mapped
// onto settings keys. STARMAP_CACHE_FINGERPRINT_SIZE becomes
// cache.fingerprint_size.
const EnvPrefix = "STARMAP_"

// Settings configures the starmap core.
type Settings struct {
	Scheduler SchedulerSettings `koanf:"scheduler"`
	Worker    WorkerSettings    `koanf:"worker"`
	Cache     CacheSettings     `koanf:"cache"`
	Query     QuerySettings     `koanf:"query"`
	Log       LogSettings       `koanf:"log"`
}

// SchedulerSettings configures change notification batching.
type SchedulerSettings struct {
	// Window is the quiescence window measured from the first change of a
	// batch.
	Window time.Duration `koanf:"window" validate:"gt=0"`
}

// WorkerSettings configures background normalization.
type WorkerSettings struct {
	Enabled bool          `koanf:"enabled"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
	Queue   int           `koanf:"queue"   validate:"gt=0"`
}

// CacheSettings configures dataset cache keys.
type CacheSettings struct {
	Threshold       int `koanf:"threshold"        validate:"gt=0"`
	FingerprintSize int `koanf:"fingerprint_size" validate:"gt=0"`
}

// QuerySettings configures system queries.
type QuerySettings struct {
	Engine           string        `koanf:"engine"             validate:"oneof=expr cel js"`
	ProgramCacheSize int           `koanf:"program_cache_size" validate:"gt=0"`
	ScriptTimeout    time.Duration `koanf:"script_timeout"     validate:"gte=0"`
}

// LogSettings configures the diagnostics logger.
type LogSettings struct {
	Level string `koanf:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		Scheduler: SchedulerSettings{
			Window: 10 * time.Millisecond,
		},
		Worker: WorkerSettings{
			Enabled: true,
			Timeout: 5 * time.Second,
			Queue:   64,
		},
		Cache: CacheSettings{
			Threshold:       100,
			FingerprintSize: 10,
		},
		Query: QuerySettings{
			Engine:           "expr",
			ProgramCacheSize: 128,
			ScriptTimeout:    250 * time.Millisecond,
		},
		Log: LogSettings{
			Level: "info",
		},
	}
}
