package orders

import "errors"

var (
	ErrNotFound   = errors.New("order not found")
	ErrNotPending = errors.New("order is not pending")
)
