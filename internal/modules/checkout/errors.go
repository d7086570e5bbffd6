package checkout

import "fmt"

// ValidationError names the offending field. Never retried server-side.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Msg)
}

func Invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Msg: msg}
}
