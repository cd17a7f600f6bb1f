package processing

import "context"

// Kind classifies the result of processing one item.
type Kind uint8

const (
	// Null means the item produced nothing, typically because it was skipped
	// or its format is unsupported.
	Null Kind = iota
	Success
	Failure
)

func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case Failure:
		return "failure"
	default:
		return "null"
	}
}

// Outcome is the immutable per-item result.
type Outcome[T any] struct {
	Kind  Kind
	Value T
	Err   error
}

// Succeed wraps a produced value.
func Succeed[T any](v T) Outcome[T] {
	return Outcome[T]{Kind: Success, Value: v}
}

// Skip reports an item that produced nothing without failing.
func Skip[T any]() Outcome[T] {
	return Outcome[T]{Kind: Null}
}

// Fail wraps an item-level error.
func Fail[T any](err error) Outcome[T] {
	return Outcome[T]{Kind: Failure, Err: err}
}

// Get returns the value and whether the outcome is a success.
func (o Outcome[T]) Get() (T, bool) {
	return o.Value, o.Kind == Success
}

// Maybe is an optional input item.
type Maybe[T any] struct {
	value T
	ok    bool
}

func Some[T any](v T) Maybe[T] { return Maybe[T]{value: v, ok: true} }

func None[T any]() Maybe[T] { return Maybe[T]{} }

// Get returns the value and whether it is present.
func (m Maybe[T]) Get() (T, bool) { return m.value, m.ok }

// Present wraps every value as Some.
func Present[T any](values ...T) []Maybe[T] {
	out := make([]Maybe[T], len(values))
	for i, v := range values {
		out[i] = Some(v)
	}
	return out
}

// Func processes a single item. Implementations report problems through the
// returned outcome; a panic is converted into a Failure.
type Func[I, O any] func(ctx context.Context, item I) Outcome[O]
