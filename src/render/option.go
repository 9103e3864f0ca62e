package render

// Option tracks values that may not have been resolved yet, such as queue
// family indices during device negotiation.
type Option[T any] struct {
	v   T
	set bool
}

func Some[T any](value T) Option[T] {
	return Option[T]{v: value, set: true}
}

func None[T any]() Option[T] {
	return Option[T]{set: false}
}

func (option Option[T]) IsSet() bool { return option.set }

func (option Option[T]) Some() T {
	return option.SomeOr(func() T { panic("attempt to get from None") })
}

func (option Option[T]) SomeOr(callback func() T) T {
	if option.set {
		return option.v
	}
	return callback()
}
