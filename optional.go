package starmap

// Optional tags a value as present or absent. The zero value is absent, which
// keeps "missing" distinct from a present zero value such as "" or [0, 0].
type Optional[T any] struct {
	value   T
	present bool
}

// Some wraps value as present.
func Some[T any](value T) Optional[T] {
	return Optional[T]{value: value, present: true}
}

// None returns an absent value.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

// Get returns the wrapped value and whether it is present.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.present
}

// Present reports whether a value is set.
func (o Optional[T]) Present() bool {
	return o.present
}

// Or returns o when present, otherwise fallback.
func (o Optional[T]) Or(fallback Optional[T]) Optional[T] {
	if o.present {
		return o
	}
	return fallback
}

// ValueOr returns the wrapped value or def when absent.
func (o Optional[T]) ValueOr(def T) T {
	if o.present {
		return o.value
	}
	return def
}
