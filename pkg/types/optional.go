package types

// Optional holds a collaborator that may not be installed. Code that depends
// on it must check Get before use; the zero value is unavailable.
type Optional[T any] struct {
	value T
	ok    bool
}

func Available[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

func Unavailable[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

func (o Optional[T]) Available() bool {
	return o.ok
}
