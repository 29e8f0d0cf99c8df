package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load(WithoutEnv())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	if settings.Scheduler.Window != want.Scheduler.Window {
		t.Fatalf("expected window %v, got %v", want.Scheduler.Window, settings.Scheduler.Window)
	}
	if settings.Worker.Timeout != 5*time.Second || !settings.Worker.Enabled {
		t.Fatalf("unexpected worker settings %+v", settings.Worker)
	}
	if settings.Cache.Threshold != 100 || settings.Cache.FingerprintSize != 10 {
		t.Fatalf("unexpected cache settings %+v", settings.Cache)
	}
	if settings.Query.Engine != "expr" || settings.Query.ScriptTimeout != 250*time.Millisecond {
		t.Fatalf("unexpected query settings %+v", settings.Query)
	}
}

func TestLoadEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("STARMAP_SCHEDULER_WINDOW", "25ms")
	t.Setenv("STARMAP_CACHE_FINGERPRINT_SIZE", "4")
	t.Setenv("STARMAP_WORKER_ENABLED", "false")
	t.Setenv("STARMAP_QUERY_SCRIPT_TIMEOUT", "1s")

	settings, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Scheduler.Window != 25*time.Millisecond {
		t.Fatalf("expected 25ms window, got %v", settings.Scheduler.Window)
	}
	if settings.Cache.FingerprintSize != 4 {
		t.Fatalf("expected fingerprint size 4, got %d", settings.Cache.FingerprintSize)
	}
	if settings.Worker.Enabled {
		t.Fatalf("expected worker disabled from env")
	}
	if settings.Query.ScriptTimeout != time.Second {
		t.Fatalf("expected 1s script timeout, got %v", settings.Query.ScriptTimeout)
	}
}

func TestLoadOverridesWinOverEnvironment(t *testing.T) {
	t.Setenv("STARMAP_QUERY_ENGINE", "js")

	settings, err := Load(WithOverrides(map[string]any{
		"query":          map[string]any{"engine": "cel"},
		"worker.timeout": "2s",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if settings.Query.Engine != "cel" {
		t.Fatalf("expected override engine cel, got %q", settings.Query.Engine)
	}
	if settings.Worker.Timeout != 2*time.Second {
		t.Fatalf("expected 2s timeout, got %v", settings.Worker.Timeout)
	}
}

func TestLoadRejectsInvalidSettings(t *testing.T) {
	_, err := Load(WithoutEnv(), WithOverrides(map[string]any{
		"query.engine": "lua",
	}))
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "validation failed") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestTransformEnvKey(t *testing.T) {
	cases := map[string]string{
		"CACHE_FINGERPRINT_SIZE": "cache.fingerprint_size",
		"LOG_LEVEL":              "log.level",
		"WORKER__TIMEOUT":        "worker.timeout",
		"LEVEL":                  "level",
		"":                       "",
	}
	for in, want := range cases {
		if got := transformEnvKey(in); got != want {
			t.Fatalf("transformEnvKey(%q) = %q, want %q", in, got, want)
		}
	}
}
