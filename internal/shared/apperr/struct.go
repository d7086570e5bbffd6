package apperr

type Kind string

type AppError struct {
	Kind      Kind
	PublicMsg string            // safe to show to the user
	Fields    map[string]string // form/validation field errors (optional)
	Err       error             // internal error (for logs)
}
