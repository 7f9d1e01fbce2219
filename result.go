package passport

// Result is the discriminated outcome returned across the outer surface.
// Exactly one of Data (OK) or Kind (failure) is meaningful.
type Result[T any] struct {
	OK      bool      `json:"status"`
	Kind    ErrorKind `json:"kind,omitempty"`
	Message string    `json:"message,omitempty"`
	Data    T         `json:"data,omitempty"`
}

// NewResult folds (data, err) into a Result. The message is the error chain
// when debug is set and a generic text per kind otherwise.
func NewResult[T any](data T, err error, debug bool) Result[T] {
	if err != nil {
		var zero T
		return Result[T]{
			OK:      false,
			Kind:    KindOf(err),
			Message: PublicMessage(err, debug),
			Data:    zero,
		}
	}
	return Result[T]{OK: true, Data: data}
}

// Fail builds a failed Result from err.
func Fail[T any](err error, debug bool) Result[T] {
	var zero T
	return NewResult(zero, err, debug)
}
