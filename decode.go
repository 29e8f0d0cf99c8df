package starmap

import "github.com/goliatone/go-starmap/internal/hydrate"

// DecodeContext names the map being decoded, e.g. {"editor job", "j1"}.
type DecodeContext = hydrate.Context

// DecodeOption customises DecodeJobPayload and DecodeCampaign.
type DecodeOption[T any] = hydrate.DecoderOption[T]

// DecodeWithPreHook reshapes the payload before decoding. The hook receives
// a private copy; returning nil keeps the current map.
func DecodeWithPreHook[T any](hook func(DecodeContext, map[string]any) (map[string]any, error)) DecodeOption[T] {
	return hydrate.WithPreHook[T](hook)
}

// DecodeWithPostHook adjusts or validates the decoded value.
func DecodeWithPostHook[T any](hook func(DecodeContext, *T) error) DecodeOption[T] {
	return hydrate.WithPostHook[T](hook)
}

// DecodeWithCustomDecoder replaces the json tag mapping entirely.
func DecodeWithCustomDecoder[T any](decoder func(DecodeContext, map[string]any) (T, error)) DecodeOption[T] {
	return hydrate.WithCustomDecoder[T](decoder)
}

// DecodeStrict rejects payload keys that have no matching field.
func DecodeStrict[T any]() DecodeOption[T] {
	return hydrate.WithStrict[T]()
}

// DecodeJobPayload decodes job.Payload into T using json field tags.
// Scalars are converted leniently ("3" fills an int field). A job without a
// payload decodes to the zero value unless a hook or custom decoder fills it.
func DecodeJobPayload[T any](job EditorJob, opts ...DecodeOption[T]) (T, error) {
	payload := job.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	options := append([]DecodeOption[T]{hydrate.WithWeakTyping[T]()}, opts...)
	return hydrate.NewDecoder(options...).
		Decode(DecodeContext{Kind: "editor job", ID: job.ID}, payload)
}

// DecodeCampaign decodes the campaign map into T using json field tags.
func DecodeCampaign[T any](campaign Campaign, opts ...DecodeOption[T]) (T, error) {
	if campaign == nil {
		campaign = Campaign{}
	}
	return hydrate.NewDecoder(opts...).
		Decode(DecodeContext{Kind: "campaign"}, campaign)
}
