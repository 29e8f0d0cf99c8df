package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// Option configures Load.
type Option func(*loadConfig)

type loadConfig struct {
	env       bool
	overrides []map[string]any
}

// WithoutEnv skips environment variables.
func WithoutEnv() Option {
	return func(cfg *loadConfig) {
		cfg.env = false
	}
}

// WithOverrides applies values keyed by dotted path, or nested maps, after
// the environment. Later overrides win.
func WithOverrides(values map[string]any) Option {
	return func(cfg *loadConfig) {
		if len(values) > 0 {
			cfg.overrides = append(cfg.overrides, values)
		}
	}
}

// Load builds validated settings from defaults, environment and overrides.
func Load(opts ...Option) (*Settings, error) {
	cfg := loadConfig{env: true}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}
	if cfg.env {
		if err := k.Load(env.Provider(".", env.Opt{
			Prefix: EnvPrefix,
			TransformFunc: func(key, value string) (string, any) {
				return transformEnvKey(strings.TrimPrefix(key, EnvPrefix)), value
			},
		}), nil); err != nil {
			return nil, fmt.Errorf("config: load environment: %w", err)
		}
	}
	for _, values := range cfg.overrides {
		for key, value := range flattenMap("", values) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("config: set %s: %w", key, err)
			}
		}
	}

	var settings Settings
	if err := k.UnmarshalWithConf("", &settings, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &settings,
			TagName:          "koanf",
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
		},
	}); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := Validate(&settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks struct constraints.
func Validate(settings *Settings) error {
	if settings == nil {
		return fmt.Errorf("config: settings cannot be nil")
	}
	if err := validator.New().Struct(settings); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

// transformEnvKey maps CACHE_FINGERPRINT_SIZE to cache.fingerprint_size: the
// first segment names the section, the rest is the field.
func transformEnvKey(s string) string {
	parts := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return r == '_'
	})
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "_")
}

func flattenMap(prefix string, m map[string]any) map[string]any {
	result := make(map[string]any)
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]any); ok {
			for fk, fv := range flattenMap(key, nested) {
				result[fk] = fv
			}
			continue
		}
		result[key] = v
	}
	return result
}
