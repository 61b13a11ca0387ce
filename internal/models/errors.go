package models

import "fmt"

// ValidationError reports a missing required field in an inbound request.
// The message doubles as the wire-level error text.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Field %s is required", e.Field)
}

// StorageError wraps a failed store or file operation and names the step
// that failed so callers can log and map it to a transport status.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
