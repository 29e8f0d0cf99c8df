// Package hydrate decodes the free-form maps carried in state (editor job
// payloads, campaigns) into typed structs.
package hydrate

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/goliatone/go-starmap/layering"
)

// Context identifies the map being decoded in error messages and hooks.
type Context struct {
	Kind string
	ID   string
}

func (c Context) label() string {
	if c.ID == "" {
		return c.Kind
	}
	return c.Kind + " " + c.ID
}

// PreHook lets callers reshape the payload before decoding. It receives a
// private copy.
type PreHook func(Context, map[string]any) (map[string]any, error)

// PostHook lets callers adjust or validate the decoded value.
type PostHook[T any] func(Context, *T) error

// CustomDecoder replaces the default mapstructure decoding when provided.
type CustomDecoder[T any] func(Context, map[string]any) (T, error)

// DecoderOption configures a Decoder instance.
type DecoderOption[T any] func(*Decoder[T])

// Decoder converts maps into T using json tags for field names.
type Decoder[T any] struct {
	preHooks  []PreHook
	postHooks []PostHook[T]
	custom    CustomDecoder[T]
	weak      bool
	strict    bool
}

// WithPreHook appends hook; pre-hooks run in the order added.
func WithPreHook[T any](hook PreHook) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.preHooks = append(d.preHooks, hook)
	}
}

// WithPostHook appends hook; post-hooks run in the order added.
func WithPostHook[T any](hook PostHook[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.postHooks = append(d.postHooks, hook)
	}
}

// WithWeakTyping accepts "3" for an int field, 1 for a bool and similar.
func WithWeakTyping[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.weak = true
	}
}

// WithStrict rejects payload keys that have no matching field.
func WithStrict[T any]() DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.strict = true
	}
}

// WithCustomDecoder replaces the default decoding path.
func WithCustomDecoder[T any](decoder CustomDecoder[T]) DecoderOption[T] {
	return func(d *Decoder[T]) {
		d.custom = decoder
	}
}

// NewDecoder builds a decoder applying opts in order.
func NewDecoder[T any](opts ...DecoderOption[T]) *Decoder[T] {
	d := &Decoder[T]{}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Decode converts payload into T applying configured hooks. payload is
// never modified. Strings decode into time.Time (RFC 3339) and
// time.Duration fields.
func (d *Decoder[T]) Decode(ctx Context, payload map[string]any) (T, error) {
	var zero T

	if payload == nil {
		return zero, fmt.Errorf("hydrate: payload is nil for %s", ctx.label())
	}

	current := layering.Clone(payload)
	for _, hook := range d.preHooks {
		if hook == nil {
			continue
		}
		next, err := hook(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: pre-hook for %s failed: %w", ctx.label(), err)
		}
		if next != nil {
			current = next
		}
	}

	var result T
	if d.custom != nil {
		decoded, err := d.custom(ctx, current)
		if err != nil {
			return zero, fmt.Errorf("hydrate: custom decoder for %s failed: %w", ctx.label(), err)
		}
		result = decoded
	} else {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &result,
			TagName:          "json",
			WeaklyTypedInput: d.weak,
			ErrorUnused:      d.strict,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeHookFunc(time.RFC3339),
				mapstructure.StringToTimeDurationHookFunc(),
			),
		})
		if err != nil {
			return zero, fmt.Errorf("hydrate: configure decoder for %s: %w", ctx.label(), err)
		}
		if err := dec.Decode(current); err != nil {
			return zero, fmt.Errorf("hydrate: decode %s: %w", ctx.label(), err)
		}
	}

	for _, hook := range d.postHooks {
		if hook == nil {
			continue
		}
		if err := hook(ctx, &result); err != nil {
			return zero, fmt.Errorf("hydrate: post-hook for %s failed: %w", ctx.label(), err)
		}
	}

	return result, nil
}
