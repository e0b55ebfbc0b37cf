package serializationerrors

import "fmt"

// ErrInvalidUUID indicates that a UUID field could not be parsed
type ErrInvalidUUID struct {
	Field string
	Err   error
}

func (e ErrInvalidUUID) Error() string { return fmt.Sprintf("invalid %s: %v", e.Field, e.Err) }

func (e ErrInvalidUUID) Unwrap() error { return e.Err }

// ErrInvalidWindow indicates that a time window failed validation during deserialization
type ErrInvalidWindow struct{ Err error }

func (e ErrInvalidWindow) Error() string { return fmt.Sprintf("invalid time window: %v", e.Err) }

func (e ErrInvalidWindow) Unwrap() error { return e.Err }
